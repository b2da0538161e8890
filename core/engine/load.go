package engine

import (
	"context"
	"errors"
	"slices"

	"ChatBGM/core/bus"
	"ChatBGM/core/signal"
	"ChatBGM/logger"
	"ChatBGM/model"
	"ChatBGM/storage"
)

// loadRequest 一次播放请求，资源就绪后才生效
type loadRequest struct {
	role     bus.Role
	gen      uint64
	chatKey  string
	presetID string
	entry    model.TrackEntry
	keyword  string
	volume   float64
	loop     bool
	autoplay bool

	// commit 加载成功后更新聊天状态，可为 nil
	commit func(st *model.ChatPlaybackState)
}

// startLocked 开始一次加载。URL 直接加载，缓存键异步读取；
// 期间有新的同角色请求时旧结果被丢弃。
func (e *Engine) startLocked(req loadRequest) {
	e.gens[req.role]++
	req.gen = e.gens[req.role]
	key := req.entry.FileKey

	if model.IsURL(key) {
		if req.role == bus.RoleEngine {
			e.pendingKey = ""
		}
		e.applyLocked(req, bus.Source{Key: key, URL: key})
		return
	}

	if req.role == bus.RoleEngine {
		e.pendingKey = key
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.loadTimeout)
		data, err := e.assets.Fetch(ctx, key)
		cancel()

		e.mu.Lock()
		defer e.mu.Unlock()

		if req.gen != e.gens[req.role] {
			logger.Debug("丢弃过期的加载结果", logger.String("role", string(req.role)), logger.String("fileKey", key))
			return
		}
		if req.role == bus.RoleEngine {
			e.pendingKey = ""
		}
		if err != nil {
			e.failed[key] = true
			if errors.Is(err, storage.ErrAssetNotFound) {
				logger.Warn("音频资源不在缓存中，保持当前播放", logger.String("fileKey", key))
			} else {
				logger.Error("读取音频资源失败", logger.String("fileKey", key), logger.ErrorField(err))
			}
			return
		}
		e.applyLocked(req, bus.Source{Key: key, Data: data})
	}()
}

// applyLocked 资源就绪：独占通道、加载并播放，然后提交聊天状态
func (e *Engine) applyLocked(req loadRequest, src bus.Source) {
	h := e.bus.Handle(req.role)
	if h == nil {
		logger.Warn("通道没有注册音频句柄", logger.String("role", string(req.role)))
		return
	}

	e.bus.RequestExclusive(req.role)
	if err := h.Load(src); err != nil {
		e.failed[src.Key] = true
		logger.Error("加载音频失败", logger.String("fileKey", src.Key), logger.ErrorField(err))
		return
	}
	h.SetLoop(req.loop)
	h.SetVolume(req.volume)
	if req.autoplay {
		// 播放失败只记录，不影响选择结果
		if err := h.Play(); err != nil {
			logger.Warn("播放被拒绝", logger.String("fileKey", src.Key), logger.ErrorField(err))
		}
	}

	if req.role == bus.RoleEngine {
		e.current = activeSelection{
			chatKey:  req.chatKey,
			presetID: req.presetID,
			entry:    req.entry,
			keyword:  req.keyword,
			volume:   req.volume,
			loop:     req.loop,
		}
	}
	if req.commit != nil {
		st := e.stateLocked(context.Background(), req.chatKey)
		req.commit(st)
		e.saveStateLocked(st)
	}

	logger.Info("开始播放",
		logger.String("role", string(req.role)),
		logger.String("fileKey", src.Key),
		logger.String("chatKey", req.chatKey),
		logger.Float64("volume", req.volume),
		logger.Bool("loop", req.loop),
	)
	e.notifyLocked()
}

// cancelPendingLocked 作废 engine 通道上尚未完成的加载
func (e *Engine) cancelPendingLocked() {
	if e.pendingKey == "" {
		return
	}
	logger.Debug("取消进行中的加载", logger.String("fileKey", e.pendingKey))
	e.gens[bus.RoleEngine]++
	e.pendingKey = ""
}

// stopLocked 停止所有通道并作废进行中的加载
func (e *Engine) stopLocked() {
	for _, role := range bus.Roles {
		e.gens[role]++
	}
	e.pendingKey = ""
	hadSelection := e.current.entry.FileKey != ""
	e.current = activeSelection{}
	e.bus.StopAll()
	if hadSelection {
		logger.Info("播放已停用，停止所有通道")
		e.notifyLocked()
	}
}

// selectLocked 在 engine 通道上选中一首曲目。成功后 currentKey 才变化，
// prevKey 只在键真正改变时记录。
func (e *Engine) selectLocked(s model.Settings, preset *model.Preset, st *model.ChatPlaybackState, entry model.TrackEntry, keyword string) {
	key := entry.FileKey
	index := slices.Index(e.navKeys(s, preset), key)
	e.startLocked(loadRequest{
		role:     bus.RoleEngine,
		chatKey:  st.ChatKey,
		presetID: preset.ID,
		entry:    entry,
		keyword:  keyword,
		volume:   trackVolume(s, entry),
		loop:     s.PlayMode == model.PlayModeLoopOne,
		autoplay: true,
		commit:   commitSelection(key, index, keyword),
	})
}

// playSFXLocked 在 sfx 通道叠加播放，不改变当前选择
func (e *Engine) playSFXLocked(s model.Settings, chatKey string, entry model.TrackEntry) {
	e.startLocked(loadRequest{
		role:     bus.RoleSFX,
		chatKey:  chatKey,
		entry:    entry,
		volume:   trackVolume(s, entry),
		autoplay: true,
	})
}

// commitSelection 选中成功后的聊天状态更新
func commitSelection(key string, index int, keyword string) func(*model.ChatPlaybackState) {
	return func(st *model.ChatPlaybackState) {
		if st.CurrentKey != key {
			st.PrevKey = st.CurrentKey
			st.CurrentKey = key
		}
		st.ListIndex = index
		if keyword != "" {
			st.RecentKeywords = signal.PushRecent(st.RecentKeywords, keyword)
		}
	}
}
