package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ChatBGM/cache"
	"ChatBGM/config"
	"ChatBGM/core/bus"
	"ChatBGM/core/engine"
	"ChatBGM/core/preset"
	"ChatBGM/core/settings"
	sig "ChatBGM/core/signal"
	"ChatBGM/db"
	"ChatBGM/logger"
	"ChatBGM/model"
	"ChatBGM/repository"
	"ChatBGM/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sho0pi/naturaltime"
	"golang.org/x/time/rate"
)

// Components 服务运行所需的已初始化组件
type Components struct {
	Settings *settings.Store
	Catalog  *preset.Catalog
	Assets   storage.AssetStore
	States   engine.StateStore // 可为 nil
	Parser   sig.TimeParser    // 可为 nil
}

// Server 控制接口：HTTP + WebSocket
type Server struct {
	cfg      *config.Config
	engine   *engine.Engine
	settings *settings.Store
	catalog  *preset.Catalog
	assets   storage.AssetStore
	host     *HostContext
	hub      *Hub
	bus      *bus.Bus
	handles  map[bus.Role]*RemoteHandle
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
}

// New 组装总线、远程句柄和引擎，并把状态变化接到 Hub 广播
func New(cfg *config.Config, c Components) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		settings: c.Settings,
		catalog:  c.Catalog,
		assets:   c.Assets,
		hub:      NewHub(),
		bus:      bus.New(bus.WithFade(cfg.FadeDuration, cfg.FadeFrameTime)),
		handles:  make(map[bus.Role]*RemoteHandle),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 宿主页面与本服务通常不同源
			},
		},
	}
	s.host = NewHostContext(c.Catalog.BoundPresetID)
	if cfg.TickRateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.TickRateLimit), max(cfg.TickBurst, 1))
	}

	for _, role := range bus.Roles {
		h := NewRemoteHandle(role, s.hub)
		if err := s.bus.Register(role, h); err != nil {
			return nil, fmt.Errorf("register %s handle: %w", role, err)
		}
		s.handles[role] = h
	}

	deps := engine.Deps{
		Bus:      s.bus,
		Chat:     s.host,
		Settings: c.Settings,
		Presets:  c.Catalog,
		Assets:   c.Assets,
		States:   c.States,
		Signals:  sig.NewExtractor(c.Parser, nil),
	}
	s.engine = engine.New(deps)

	s.engine.OnChange(func(np engine.NowPlaying) {
		s.hub.Publish(MsgTypeNowPlaying, "now_playing", np)
	})
	// 订阅者可能在引擎锁内被调用，这里只做广播
	c.Settings.Subscribe(func(next model.Settings) {
		s.hub.Publish(MsgTypeSettings, "settings", next)
	})
	s.hub.Publish(MsgTypeSettings, "settings", c.Settings.Snapshot())

	return s, nil
}

// Engine 仲裁引擎
func (s *Server) Engine() *engine.Engine { return s.engine }

// Hub WebSocket 中心
func (s *Server) Hub() *Hub { return s.hub }

// Host 宿主上下文
func (s *Server) Host() *HostContext { return s.host }

// Handle 某个角色的远程句柄
func (s *Server) Handle(role bus.Role) *RemoteHandle { return s.handles[role] }

// Router 注册全部路由
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)
	// <audio> 标签无法携带令牌，资源流不鉴权
	router.HandleFunc("/assets/{key:.+}", s.StreamAssetHandler).Methods(http.MethodGet, http.MethodHead)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.AuthMiddleware)

	// 宿主上下文与仲裁
	api.HandleFunc("/chat/message", s.ChatMessageHandler).Methods(http.MethodPost)
	api.HandleFunc("/chat/switch", throttle(s.limiter, s.ChatSwitchHandler)).Methods(http.MethodPost)
	api.HandleFunc("/tick", throttle(s.limiter, s.TickHandler)).Methods(http.MethodPost)
	api.HandleFunc("/prompt", s.PromptHandler).Methods(http.MethodGet)

	// 播放控制
	api.HandleFunc("/now-playing", s.NowPlayingHandler).Methods(http.MethodGet)
	api.HandleFunc("/nav/prev", s.PrevHandler).Methods(http.MethodPost)
	api.HandleFunc("/nav/next", s.NextHandler).Methods(http.MethodPost)
	api.HandleFunc("/toggle", s.ToggleHandler).Methods(http.MethodPost)
	api.HandleFunc("/play", s.PlayFileHandler).Methods(http.MethodPost)
	api.HandleFunc("/volume", s.VolumeHandler).Methods(http.MethodPost)

	// 试听与曲库播放
	api.HandleFunc("/preview/start", s.PreviewStartHandler).Methods(http.MethodPost)
	api.HandleFunc("/preview/end", s.PreviewEndHandler).Methods(http.MethodPost)
	api.HandleFunc("/freesrc/start", s.FreeSrcStartHandler).Methods(http.MethodPost)
	api.HandleFunc("/freesrc/stop", s.FreeSrcStopHandler).Methods(http.MethodPost)

	// 设置
	api.HandleFunc("/settings", s.GetSettingsHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.UpdateSettingsHandler).Methods(http.MethodPut)

	// 预设与角色绑定
	api.HandleFunc("/presets", s.ListPresetsHandler).Methods(http.MethodGet)
	api.HandleFunc("/presets", s.CreatePresetHandler).Methods(http.MethodPost)
	api.HandleFunc("/presets/import", s.ImportPresetHandler).Methods(http.MethodPost)
	api.HandleFunc("/presets/{id}", s.GetPresetHandler).Methods(http.MethodGet)
	api.HandleFunc("/presets/{id}", s.SavePresetHandler).Methods(http.MethodPut)
	api.HandleFunc("/presets/{id}", s.DeletePresetHandler).Methods(http.MethodDelete)
	api.HandleFunc("/presets/{id}/activate", s.ActivatePresetHandler).Methods(http.MethodPost)
	api.HandleFunc("/bindings", s.BindHandler).Methods(http.MethodPost)
	api.HandleFunc("/bindings/{characterId}", s.UnbindHandler).Methods(http.MethodDelete)

	// 资源缓存
	api.HandleFunc("/assets/integrity", s.IntegrityHandler).Methods(http.MethodGet)
	api.HandleFunc("/assets/{key:.+}", s.UploadAssetHandler).Methods(http.MethodPut)

	api.HandleFunc("/ws", s.WebSocketHandler).Methods(http.MethodGet)

	return router
}

// Shutdown 等待进行中的加载，写出未保存的状态并停止 Hub
func (s *Server) Shutdown() {
	if err := s.engine.Close(); err != nil {
		logger.Warn("关闭引擎失败", logger.ErrorField(err))
	}
	s.bus.Wait()
	if err := s.settings.Close(); err != nil {
		logger.Warn("保存设置失败", logger.ErrorField(err))
	}
	s.hub.Stop()
}

// OpenAssets MinIO 配置了凭据时使用 MinIO，否则退回进程内缓存
func OpenAssets(ctx context.Context, cfg *config.Config) storage.AssetStore {
	if cfg.MinioEndpoint != "" && cfg.MinioAccessKey != "" {
		store, err := storage.NewMinioAssetStore(ctx, cfg)
		if err == nil {
			return store
		}
		logger.Warn("MinIO 不可用，改用内存资源缓存", logger.ErrorField(err))
	}
	return storage.NewMemoryAssetStore()
}

// OpenSettings 按配置选择设置后端，文件后端会监听手动修改
func OpenSettings(ctx context.Context, cfg *config.Config) (*settings.Store, *settings.FileBackend, error) {
	var backend settings.Backend
	var file *settings.FileBackend
	switch cfg.SettingsBackend {
	case "redis":
		if cache.RedisClient == nil {
			return nil, nil, errors.New("settings backend redis requires a redis connection")
		}
		backend = cache.NewSettingsCache(cache.RedisClient)
	default:
		file = settings.NewFileBackend(cfg.SettingsFile)
		backend = file
	}

	store, err := settings.NewStore(ctx, backend, cfg.PersistDelay)
	if err != nil {
		return nil, nil, err
	}
	return store, file, nil
}

// Start initializes and starts the HTTP server.
func Start(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 预设库
	if err := db.ConnectGormDB(cfg); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.CloseGormDB()
	if err := repository.Migrate(db.GormDB); err != nil {
		return fmt.Errorf("failed to migrate presets: %w", err)
	}

	// Redis 可选：用于聊天状态与 redis 设置后端
	var states engine.StateStore
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis 不可用，聊天状态只保存在内存中", logger.ErrorField(err))
		cache.RedisClient = nil
	} else {
		defer cache.CloseRedis()
		states = cache.NewChatStateCache(cache.RedisClient)
	}

	store, fileBackend, err := OpenSettings(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	catalog, err := preset.NewCatalog(ctx, repository.NewGormPresetRepository(db.GormDB), store)
	if err != nil {
		return fmt.Errorf("failed to load presets: %w", err)
	}

	parser, err := naturaltime.New()
	if err != nil {
		logger.Warn("自然语言时间解析器初始化失败，聊天时间只识别 HH:MM", logger.ErrorField(err))
	}
	comps := Components{
		Settings: store,
		Catalog:  catalog,
		Assets:   OpenAssets(ctx, cfg),
		States:   states,
	}
	if parser != nil {
		comps.Parser = parser
	}

	srv, err := New(cfg, comps)
	if err != nil {
		return err
	}
	go srv.hub.Run()

	if fileBackend != nil {
		err := fileBackend.Watch(ctx, func(next *model.Settings) {
			store.Replace(*next)
			srv.engine.Tick(ctx)
		})
		if err != nil {
			logger.Warn("设置文件监听失败", logger.ErrorField(err))
		}
	}

	// 设置服务器超时
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务启动", logger.String("addr", cfg.HTTPAddr), logger.Int("presets", len(catalog.List())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		srv.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("正在关闭服务...")
	cancel()

	// 创建一个5秒超时的上下文
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// 优雅关闭服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务强制关闭", logger.ErrorField(err))
	}
	srv.Shutdown()

	logger.Info("服务已停止")
	return nil
}
