// Package engine 播放仲裁引擎：根据设置、聊天上下文和提取到的信号决定播放哪首曲目，
// 并通过音频通道总线驱动播放。
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"ChatBGM/core/bus"
	"ChatBGM/core/persist"
	"ChatBGM/core/signal"
	"ChatBGM/logger"
	"ChatBGM/model"
)

const (
	defaultLoadTimeout = 15 * time.Second
	stateSaveDelay     = 200 * time.Millisecond

	// noMessageSig 没有助手消息时使用的指纹，与"尚未处理"(0) 区分
	noMessageSig = math.MaxUint64
)

// ChatContext 宿主聊天应用
type ChatContext interface {
	CurrentChatKey() string
	LatestAssistantMessage() string
	BoundPresetID() string
}

// SettingsStore 全局设置读写
type SettingsStore interface {
	Snapshot() model.Settings
	Update(fn func(*model.Settings)) model.Settings
}

// PresetSource 预设查询
type PresetSource interface {
	Get(id string) *model.Preset
	List() []*model.Preset
}

// AssetStore 资源缓存，找不到时返回 storage.ErrAssetNotFound
type AssetStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// StateStore 聊天播放状态的持久化，可选
type StateStore interface {
	Load(ctx context.Context, chatKey string) (*model.ChatPlaybackState, error)
	Save(ctx context.Context, state *model.ChatPlaybackState) error
}

// SignalExtractor 关键词/时段信号提取
type SignalExtractor interface {
	Extract(ctx context.Context, req signal.Request) (signal.Signal, bool)
}

// Deps 引擎依赖
type Deps struct {
	Bus      *bus.Bus
	Chat     ChatContext
	Settings SettingsStore
	Presets  PresetSource
	Assets   AssetStore
	States   StateStore      // 可为 nil，只在内存中保存
	Signals  SignalExtractor // 为 nil 时使用默认提取器
}

// activeSelection engine 通道上当前应当播放的内容
type activeSelection struct {
	chatKey  string
	presetID string
	entry    model.TrackEntry
	keyword  string
	volume   float64
	loop     bool
}

// Engine 播放仲裁引擎，所有操作串行执行
type Engine struct {
	mu sync.Mutex

	bus      *bus.Bus
	chat     ChatContext
	settings SettingsStore
	presets  PresetSource
	assets   AssetStore
	states   StateStore
	signals  SignalExtractor

	chatStates map[string]*model.ChatPlaybackState
	savers     map[string]*persist.Debouncer

	gens       map[bus.Role]uint64 // 每个角色的选择代数，用于丢弃过期的异步加载
	current    activeSelection
	pendingKey string          // engine 通道正在加载的 fileKey
	failed     map[string]bool // 本条消息内加载失败过的 fileKey

	loadTimeout time.Duration
	observers   []func(NowPlaying)
	wg          sync.WaitGroup
}

// Option 引擎配置项
type Option func(*Engine)

// WithLoadTimeout 设置单次资源加载的超时
func WithLoadTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.loadTimeout = d
		}
	}
}

// New 创建引擎
func New(d Deps, opts ...Option) *Engine {
	e := &Engine{
		bus:         d.Bus,
		chat:        d.Chat,
		settings:    d.Settings,
		presets:     d.Presets,
		assets:      d.Assets,
		states:      d.States,
		signals:     d.Signals,
		chatStates:  make(map[string]*model.ChatPlaybackState),
		savers:      make(map[string]*persist.Debouncer),
		gens:        make(map[bus.Role]uint64),
		failed:      make(map[string]bool),
		loadTimeout: defaultLoadTimeout,
	}
	if e.signals == nil {
		e.signals = signal.NewExtractor(nil, nil)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnChange 注册播放状态变化的回调。回调在引擎锁内执行，不能再调用引擎方法。
func (e *Engine) OnChange(fn func(NowPlaying)) {
	e.mu.Lock()
	e.observers = append(e.observers, fn)
	e.mu.Unlock()
}

// CurrentFileKey engine 通道当前选择的 fileKey
func (e *Engine) CurrentFileKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.entry.FileKey
}

// CurrentPresetID 当前播放所属的预设，没有播放时返回当前聊天解析出的预设
func (e *Engine) CurrentPresetID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current.presetID != "" {
		return e.current.presetID
	}
	if p := e.resolvePresetLocked(e.settings.Snapshot()); p != nil {
		return p.ID
	}
	return ""
}

// IsPaused 没有播放内容或 engine 句柄处于暂停时返回 true
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isPausedLocked()
}

func (e *Engine) isPausedLocked() bool {
	h := e.bus.Handle(bus.RoleEngine)
	return h == nil || e.current.entry.FileKey == "" || h.Paused()
}

// ChatState 返回聊天状态的副本，不存在时返回 nil
func (e *Engine) ChatState(chatKey string) *model.ChatPlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chatStates[chatKey].Clone()
}

// WaitIdle 等待进行中的异步加载结束
func (e *Engine) WaitIdle() {
	e.wg.Wait()
}

// Close 等待加载结束并写出所有聊天状态
func (e *Engine) Close() error {
	e.WaitIdle()

	e.mu.Lock()
	savers := make([]*persist.Debouncer, 0, len(e.savers))
	for _, d := range e.savers {
		savers = append(savers, d)
	}
	e.mu.Unlock()

	var firstErr error
	for _, d := range savers {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// resolvePresetLocked 角色绑定优先，其次全局激活预设，最后第一个预设
func (e *Engine) resolvePresetLocked(s model.Settings) *model.Preset {
	if id := e.chat.BoundPresetID(); id != "" {
		if p := e.presets.Get(id); p != nil {
			return p
		}
	}
	if p := e.presets.Get(s.ActivePresetID); p != nil {
		return p
	}
	if list := e.presets.List(); len(list) > 0 {
		return list[0]
	}
	return nil
}

// stateLocked 懒加载聊天状态
func (e *Engine) stateLocked(ctx context.Context, chatKey string) *model.ChatPlaybackState {
	if st, ok := e.chatStates[chatKey]; ok {
		return st
	}

	st := &model.ChatPlaybackState{ChatKey: chatKey}
	if e.states != nil {
		loaded, err := e.states.Load(ctx, chatKey)
		if err != nil {
			logger.Warn("读取聊天播放状态失败", logger.String("chatKey", chatKey), logger.ErrorField(err))
		} else if loaded != nil {
			st = loaded
			st.ChatKey = chatKey
		}
	}
	e.chatStates[chatKey] = st
	return st
}

// saveStateLocked 标记聊天状态待写出
func (e *Engine) saveStateLocked(st *model.ChatPlaybackState) {
	st.UpdatedAt = time.Now().UnixMilli()
	if e.states == nil {
		return
	}

	chatKey := st.ChatKey
	d, ok := e.savers[chatKey]
	if !ok {
		d = persist.NewDebouncer("chat-state:"+chatKey, stateSaveDelay, func() error {
			e.mu.Lock()
			snap := e.chatStates[chatKey].Clone()
			e.mu.Unlock()
			if snap == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return e.states.Save(ctx, snap)
		})
		e.savers[chatKey] = d
	}
	d.MarkDirty()
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

func trackVolume(s model.Settings, entry model.TrackEntry) float64 {
	return clamp01(s.GlobalVolume * entry.Volume)
}
