package model

// PlayMode 非关键词模式下的播放策略
type PlayMode string

const (
	PlayModeManual   PlayMode = "manual"
	PlayModeLoopOne  PlayMode = "loop_one"
	PlayModeLoopList PlayMode = "loop_list"
	PlayModeRandom   PlayMode = "random"
)

// KeywordSubMode 关键词模式的子模式
type KeywordSubMode string

const (
	KeywordSubModeMatching  KeywordSubMode = "matching"
	KeywordSubModeToken     KeywordSubMode = "token"
	KeywordSubModeHybrid    KeywordSubMode = "hybrid"
	KeywordSubModeRecommend KeywordSubMode = "recommend"
)

// SortMode 曲目列表排序方式
type SortMode string

const (
	SortNameAsc      SortMode = "name_asc"
	SortNameDesc     SortMode = "name_desc"
	SortAddedAsc     SortMode = "added_asc"
	SortAddedDesc    SortMode = "added_desc"
	SortPriorityAsc  SortMode = "priority_asc"
	SortPriorityDesc SortMode = "priority_desc"
)

// TimeScheme 时段划分方案
type TimeScheme string

const (
	TimeSchemeDay4  TimeScheme = "day4"  // morning/day/evening/night
	TimeSchemeAmPm2 TimeScheme = "ampm2" // am/pm
)

// TimeSource 时段信号来源
type TimeSource string

const (
	TimeSourceClock TimeSource = "clock"
	TimeSourceChat  TimeSource = "chat"
)

// TimeSlot 一个时段定义，Start/End 为 "HH:MM"，闭区间，可跨越午夜
type TimeSlot struct {
	Name     string `json:"name" yaml:"name"`
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Keywords string `json:"keywords" yaml:"keywords"`
}

// TimeMode 时段模式配置
type TimeMode struct {
	Enabled bool       `json:"enabled" yaml:"enabled"`
	Source  TimeSource `json:"source" yaml:"source"`
	Scheme  TimeScheme `json:"scheme" yaml:"scheme"`
	Day4    []TimeSlot `json:"day4" yaml:"day4"`
	AmPm2   []TimeSlot `json:"ampm2" yaml:"ampm2"`
}

// ActiveSlots 当前方案对应的时段表
func (t TimeMode) ActiveSlots() []TimeSlot {
	if t.Scheme == TimeSchemeAmPm2 {
		return t.AmPm2
	}
	return t.Day4
}

// SfxMode 音效播放策略
type SfxMode struct {
	Overlay          bool `json:"overlay" yaml:"overlay"`
	SkipInOtherModes bool `json:"skipInOtherModes" yaml:"skipInOtherModes"`
}

// Settings 全局设置中与音频相关的字段
type Settings struct {
	Enabled           bool              `json:"enabled" yaml:"enabled"`
	PlayMode          PlayMode          `json:"playMode" yaml:"playMode"`
	KeywordMode       bool              `json:"keywordMode" yaml:"keywordMode"`
	KeywordSubMode    KeywordSubMode    `json:"keywordSubMode" yaml:"keywordSubMode"`
	KeywordOnce       bool              `json:"keywordOnce" yaml:"keywordOnce"`
	UseDefault        bool              `json:"useDefault" yaml:"useDefault"`
	GlobalVolume      float64           `json:"globalVolume" yaml:"globalVolume"`
	ActivePresetID    string            `json:"activePresetId" yaml:"activePresetId"`
	SortMode          SortMode          `json:"sortMode" yaml:"sortMode"`
	TimeMode          TimeMode          `json:"timeMode" yaml:"timeMode"`
	SfxMode           SfxMode           `json:"sfxMode" yaml:"sfxMode"`
	CharacterBindings map[string]string `json:"characterBindings" yaml:"characterBindings"` // characterID -> presetID
}

// Clone 深拷贝，避免调用方修改共享的 map/slice
func (s Settings) Clone() Settings {
	cp := s
	cp.TimeMode.Day4 = append([]TimeSlot(nil), s.TimeMode.Day4...)
	cp.TimeMode.AmPm2 = append([]TimeSlot(nil), s.TimeMode.AmPm2...)
	if s.CharacterBindings != nil {
		cp.CharacterBindings = make(map[string]string, len(s.CharacterBindings))
		for k, v := range s.CharacterBindings {
			cp.CharacterBindings[k] = v
		}
	}
	return cp
}
