// Package settings 全局设置：补全默认值、快照读取、延迟持久化
package settings

import (
	"ChatBGM/core/signal"
	"ChatBGM/logger"
	"ChatBGM/model"
)

const DefaultGlobalVolume = 0.5

// Defaults 全新安装时的设置
func Defaults() model.Settings {
	s := model.Settings{}
	EnsureDefaults(&s)
	s.Enabled = true
	s.UseDefault = true
	s.GlobalVolume = DefaultGlobalVolume
	s.SfxMode.Overlay = true
	return s
}

// EnsureDefaults 补全缺失字段、纠正非法枚举与越界音量，返回是否有修改
func EnsureDefaults(s *model.Settings) bool {
	changed := false
	set := func(cond bool, apply func()) {
		if cond {
			apply()
			changed = true
		}
	}

	switch s.PlayMode {
	case model.PlayModeManual, model.PlayModeLoopOne, model.PlayModeLoopList, model.PlayModeRandom:
	default:
		set(true, func() { s.PlayMode = model.PlayModeLoopList })
	}

	switch s.KeywordSubMode {
	case model.KeywordSubModeMatching, model.KeywordSubModeToken, model.KeywordSubModeHybrid, model.KeywordSubModeRecommend:
	default:
		set(true, func() { s.KeywordSubMode = model.KeywordSubModeMatching })
	}

	switch s.SortMode {
	case model.SortNameAsc, model.SortNameDesc, model.SortAddedAsc, model.SortAddedDesc,
		model.SortPriorityAsc, model.SortPriorityDesc:
	default:
		set(true, func() { s.SortMode = model.SortAddedAsc })
	}

	set(s.GlobalVolume < 0, func() { s.GlobalVolume = 0 })
	set(s.GlobalVolume > 1, func() { s.GlobalVolume = 1 })

	tm := &s.TimeMode
	set(tm.Source != model.TimeSourceClock && tm.Source != model.TimeSourceChat,
		func() { tm.Source = model.TimeSourceClock })
	set(tm.Scheme != model.TimeSchemeDay4 && tm.Scheme != model.TimeSchemeAmPm2,
		func() { tm.Scheme = model.TimeSchemeDay4 })
	set(!validSlots(tm.Day4), func() { tm.Day4 = signal.DefaultSlots(model.TimeSchemeDay4) })
	set(!validSlots(tm.AmPm2), func() { tm.AmPm2 = signal.DefaultSlots(model.TimeSchemeAmPm2) })

	set(s.CharacterBindings == nil, func() { s.CharacterBindings = map[string]string{} })

	return changed
}

func validSlots(slots []model.TimeSlot) bool {
	if len(slots) == 0 {
		return false
	}
	if err := signal.ValidatePartition(slots); err != nil {
		logger.Warn("时段配置不完整，恢复默认", logger.ErrorField(err))
		return false
	}
	return true
}
