package engine

import (
	"context"
	"errors"
	"slices"
	"strings"

	"ChatBGM/core/bus"
	"ChatBGM/core/selection"
	"ChatBGM/core/signal"
	"ChatBGM/logger"
	"ChatBGM/model"
)

var (
	ErrDisabled     = errors.New("playback disabled")
	ErrEmptyFileKey = errors.New("empty file key")
)

// PlayFile 显式播放请求
type PlayFile struct {
	FileKey  string
	PresetID string   // 为空时使用当前聊天解析出的预设
	Volume   *float64 // 为 nil 时按全局音量×曲目音量计算
	Loop     bool
	Autoplay bool
}

// Next 下一首。关键词模式下改为切换 keywordOnce 并重新仲裁。
func (e *Engine) Next(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.navigateLocked(ctx, 1)
}

// Prev 上一首。关键词模式下改为切换 useDefault 并重新仲裁。
func (e *Engine) Prev(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.navigateLocked(ctx, -1)
}

// OnEnded engine 通道自然播放结束，列表循环和随机模式自动前进
func (e *Engine) OnEnded(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.settings.Snapshot()
	if !s.Enabled || s.KeywordMode {
		return
	}
	switch s.PlayMode {
	case model.PlayModeLoopList, model.PlayModeRandom:
		e.navigateLocked(ctx, 1)
	}
}

func (e *Engine) navigateLocked(ctx context.Context, delta int) {
	s := e.settings.Snapshot()
	if !s.Enabled {
		return
	}

	if s.KeywordMode {
		e.settings.Update(func(s *model.Settings) {
			if delta < 0 {
				s.UseDefault = !s.UseDefault
			} else {
				s.KeywordOnce = !s.KeywordOnce
			}
		})
		e.tickLocked(ctx)
		return
	}

	preset := e.resolvePresetLocked(s)
	if preset == nil {
		return
	}
	st := e.stateLocked(ctx, e.chat.CurrentChatKey())
	keys := e.navKeys(s, preset)
	if len(keys) == 0 {
		return
	}

	target := navTarget(s, preset, st, keys, delta)
	if target == "" {
		return
	}
	if target == st.CurrentKey && target == e.current.entry.FileKey && !e.isPausedLocked() {
		return
	}

	delete(e.failed, target)
	e.selectLocked(s, preset, st, *selection.FindByKey(preset, target), "")
}

// navTarget 计算导航目标。当前没有有效选择时默认曲优先，
// 否则 next 取第一首、prev 取最后一首。
func navTarget(s model.Settings, preset *model.Preset, st *model.ChatPlaybackState, keys []string, delta int) string {
	current := st.CurrentKey
	if !slices.Contains(keys, current) {
		if def := preset.DefaultKey(); slices.Contains(keys, def) {
			return def
		}
		_, key := selection.Step(keys, "", delta)
		return key
	}

	if s.PlayMode == model.PlayModeRandom {
		if delta < 0 {
			if st.PrevKey != current && slices.Contains(keys, st.PrevKey) {
				return st.PrevKey
			}
			return ""
		}
		return selection.PickRandomKey(keys, current)
	}

	_, key := selection.Step(keys, current, delta)
	return key
}

// navKeys 导航使用的有序键列表
func (e *Engine) navKeys(s model.Settings, preset *model.Preset) []string {
	if s.SfxMode.SkipInOtherModes {
		return selection.SortedBGMKeys(preset, s.SortMode)
	}
	return selection.SortedKeys(preset, s.SortMode)
}

// TogglePlayPause 切换 engine 通道的播放/暂停。
// 没有已加载的选择时，回退到聊天的当前曲目或默认曲。
func (e *Engine) TogglePlayPause(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.bus.Handle(bus.RoleEngine)
	if key := e.current.entry.FileKey; h != nil && key != "" && h.Source() == key {
		if h.Paused() {
			e.bus.RequestExclusive(bus.RoleEngine)
			if err := h.Play(); err != nil {
				logger.Warn("播放被拒绝", logger.String("fileKey", key), logger.ErrorField(err))
			}
		} else {
			h.Pause()
			// 暂停也作废进行中的加载，避免资源就绪后自动播放
			e.cancelPendingLocked()
		}
		e.notifyLocked()
		return
	}
	if e.pendingKey != "" {
		// 首次加载尚未完成时再按一次视为取消
		e.cancelPendingLocked()
		return
	}

	s := e.settings.Snapshot()
	if !s.Enabled {
		return
	}
	preset := e.resolvePresetLocked(s)
	if preset == nil {
		return
	}
	st := e.stateLocked(ctx, e.chat.CurrentChatKey())
	key := st.CurrentKey
	if !preset.HasKey(key) {
		key = preset.DefaultKey()
	}
	if key == "" {
		logger.Debug("没有可播放的曲目")
		return
	}
	delete(e.failed, key)
	e.selectLocked(s, preset, st, *selection.FindByKey(preset, key), "")
}

// EnsurePlayFile 显式选择一首曲目，用于曲库中的手动点播
func (e *Engine) EnsurePlayFile(ctx context.Context, p PlayFile) error {
	key := strings.TrimSpace(p.FileKey)
	if key == "" {
		return ErrEmptyFileKey
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.settings.Snapshot()
	if !s.Enabled {
		return ErrDisabled
	}

	var preset *model.Preset
	if p.PresetID != "" {
		preset = e.presets.Get(p.PresetID)
	}
	if preset == nil {
		preset = e.resolvePresetLocked(s)
	}

	entry := model.TrackEntry{FileKey: key, Name: model.NameFromKey(key), Volume: 1, Type: model.TrackTypeBGM}
	presetID := ""
	index := -1
	if preset != nil {
		presetID = preset.ID
		if found := selection.FindByKey(preset, key); found != nil {
			entry = *found
		}
		index = slices.Index(e.navKeys(s, preset), key)
	}

	volume := trackVolume(s, entry)
	if p.Volume != nil {
		volume = clamp01(*p.Volume)
	}

	chatKey := e.stateLocked(ctx, e.chat.CurrentChatKey()).ChatKey
	delete(e.failed, key)
	e.startLocked(loadRequest{
		role:     bus.RoleEngine,
		chatKey:  chatKey,
		presetID: presetID,
		entry:    entry,
		volume:   volume,
		loop:     p.Loop,
		autoplay: p.Autoplay,
		commit:   commitSelection(key, index, ""),
	})
	return nil
}

// OnPreviewEnded 试听结束。engine 是被试听暂停的就原地恢复。
func (e *Engine) OnPreviewEnded(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.bus.PreviewEnded() {
		return
	}
	if !e.settings.Snapshot().Enabled {
		return
	}
	h := e.bus.Handle(bus.RoleEngine)
	if h == nil || e.current.entry.FileKey == "" || !h.Paused() {
		return
	}

	e.bus.RequestExclusive(bus.RoleEngine)
	if err := h.Play(); err != nil {
		logger.Warn("试听结束后恢复播放失败", logger.ErrorField(err))
	}
	e.notifyLocked()
}

// SetVolume 设置全局音量并立即作用到当前曲目，返回钳制后的值
func (e *Engine) SetVolume(v float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.settings.Update(func(s *model.Settings) {
		s.GlobalVolume = clamp01(v)
	})
	if e.current.entry.FileKey != "" {
		e.current.volume = trackVolume(s, e.current.entry)
		if h := e.bus.Handle(bus.RoleEngine); h != nil {
			h.SetVolume(e.current.volume)
		}
	}
	e.notifyLocked()
	return s.GlobalVolume
}

// KeywordPrompt 供宿主注入的关键词提示，只在标记类子模式下非空
func (e *Engine) KeywordPrompt(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.settings.Snapshot()
	if !s.Enabled || !s.KeywordMode {
		return ""
	}
	if s.KeywordSubMode != model.KeywordSubModeToken && s.KeywordSubMode != model.KeywordSubModeHybrid {
		return ""
	}
	preset := e.resolvePresetLocked(s)
	if preset == nil {
		return ""
	}
	st := e.stateLocked(ctx, e.chat.CurrentChatKey())
	return signal.BuildKeywordPrompt(signal.NewVocabulary(preset.Tracks).Keywords(), st.RecentKeywords)
}
