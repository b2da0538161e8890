package engine

import (
	"context"

	"ChatBGM/core/selection"
	"ChatBGM/core/signal"
	"ChatBGM/logger"
	"ChatBGM/model"
)

// Tick 根据当前设置与聊天上下文做一次仲裁。
// 相同输入重复调用不会产生额外的播放或状态变化。
func (e *Engine) Tick(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked(ctx)
}

func messageSig(text string) uint64 {
	if sig := signal.Fingerprint(text); sig != 0 {
		return sig
	}
	return noMessageSig
}

func (e *Engine) tickLocked(ctx context.Context) {
	s := e.settings.Snapshot()
	if !s.Enabled {
		e.stopLocked()
		return
	}

	preset := e.resolvePresetLocked(s)
	if preset == nil {
		return
	}

	st := e.stateLocked(ctx, e.chat.CurrentChatKey())
	text := e.chat.LatestAssistantMessage()
	sig := messageSig(text)
	newMessage := sig != st.LastSig
	if newMessage {
		clear(e.failed)
	}
	defaultSig := st.DefaultPlayedSig
	slot := st.LastSlot

	selected := false
	if s.KeywordMode {
		selected = e.keywordTickLocked(ctx, s, preset, st, text, sig, newMessage)
	}
	if !selected {
		e.resumeLocked(s, preset, st)
	}

	if newMessage || st.DefaultPlayedSig != defaultSig || st.LastSlot != slot {
		st.LastSig = sig
		e.saveStateLocked(st)
	}
}

// keywordTickLocked 关键词模式：命中信号时切换曲目，否则按需播放一次默认曲。
// 命中只在新消息或时段变化时生效，消息不变的 tick 不会覆盖手动点播。
func (e *Engine) keywordTickLocked(ctx context.Context, s model.Settings, preset *model.Preset, st *model.ChatPlaybackState, text string, sig uint64, newMessage bool) bool {
	sg, ok := e.signals.Extract(ctx, signal.Request{
		Text:     text,
		Tracks:   preset.Tracks,
		SortMode: s.SortMode,
		SubMode:  s.KeywordSubMode,
		TimeMode: s.TimeMode,
	})
	if ok {
		entry := sg.Track
		slotChanged := sg.Slot != st.LastSlot
		st.LastSlot = sg.Slot
		if entry.IsSFX() && s.SfxMode.Overlay {
			if newMessage && !e.failed[entry.FileKey] {
				e.playSFXLocked(s, st.ChatKey, entry)
			}
			return false
		}

		key := entry.FileKey
		switch {
		case e.failed[key]:
			return false
		case !newMessage && (s.KeywordOnce || !slotChanged):
			// keywordOnce 每条消息只触发一次，时段变化不算
			return false
		case key == e.pendingKey:
			return false
		case key == st.CurrentKey && key == e.current.entry.FileKey:
			// 同一曲目不重新开始；keywordOnce 下已停住的曲目会被新消息重新播放
			if !s.KeywordOnce || !e.isPausedLocked() || e.bus.PausedByPreview() {
				return false
			}
		}

		logger.Debug("关键词命中",
			logger.String("keyword", sg.Keyword),
			logger.String("source", sg.Source),
			logger.String("slot", sg.Slot),
			logger.String("fileKey", key),
		)
		e.selectLocked(s, preset, st, entry, sg.Keyword)
		return true
	}

	if !s.UseDefault {
		return false
	}
	def := preset.DefaultKey()
	if def == "" || def == st.CurrentKey || def == e.pendingKey || e.failed[def] || st.DefaultPlayedSig == sig {
		return false
	}
	st.DefaultPlayedSig = sig
	e.selectLocked(s, preset, st, *selection.FindByKey(preset, def), "")
	return true
}

// resumeLocked engine 通道与聊天记录的当前曲目不一致时重新载入，
// 用于切换聊天或重新启用之后。
func (e *Engine) resumeLocked(s model.Settings, preset *model.Preset, st *model.ChatPlaybackState) {
	key := st.CurrentKey
	if key == "" || key == e.current.entry.FileKey || key == e.pendingKey || e.failed[key] {
		return
	}
	entry := selection.FindByKey(preset, key)
	if entry == nil {
		return
	}
	e.selectLocked(s, preset, st, *entry, "")
}
