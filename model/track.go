package model

import (
	"path"
	"strings"
)

// TrackType 曲目类型
type TrackType string

const (
	TrackTypeBGM TrackType = "BGM"
	TrackTypeSFX TrackType = "SFX"
)

// TrackEntry 预设中的一个可播放单元
type TrackEntry struct {
	ID            string    `json:"id" yaml:"id" gorm:"primaryKey;size:64"`
	PresetID      string    `json:"-" yaml:"-" gorm:"size:64;index;not null"`
	Position      int       `json:"-" yaml:"-" gorm:"not null"` // 插入顺序，added_* 排序依据
	FileKey       string    `json:"fileKey" yaml:"fileKey" gorm:"size:512"`
	Name          string    `json:"name" yaml:"name" gorm:"size:255"`
	Keywords      string    `json:"keywords" yaml:"keywords" gorm:"type:text"`
	Priority      int       `json:"priority" yaml:"priority"`
	Volume        float64   `json:"volume" yaml:"volume"`
	VolLocked     bool      `json:"volLocked" yaml:"volLocked"`
	Type          TrackType `json:"type" yaml:"type" gorm:"size:8"`
	License       string    `json:"license,omitempty" yaml:"license,omitempty" gorm:"size:255"`
	Lyrics        string    `json:"lyrics,omitempty" yaml:"lyrics,omitempty" gorm:"type:text"`
	ImageURL      string    `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty" gorm:"size:1024"`
	ImageAssetKey string    `json:"imageAssetKey,omitempty" yaml:"imageAssetKey,omitempty" gorm:"size:512"`
}

// TableName 指定表名
func (TrackEntry) TableName() string {
	return "preset_tracks"
}

// Selectable 空 fileKey 的曲目不可被选中
func (t *TrackEntry) Selectable() bool {
	return strings.TrimSpace(t.FileKey) != ""
}

// IsSFX 是否为音效
func (t *TrackEntry) IsSFX() bool {
	return strings.EqualFold(string(t.Type), string(TrackTypeSFX))
}

// DisplayName 显示名称，缺省时由 fileKey 推导
func (t *TrackEntry) DisplayName() string {
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return NameFromKey(t.FileKey)
}

// KeywordList 将逗号/换行分隔的关键词拆分为小写列表（去重，保持顺序）
func (t *TrackEntry) KeywordList() []string {
	return SplitKeywords(t.Keywords)
}

// SplitKeywords 拆分关键词字符串，兼容全角逗号和顿号
func SplitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', '\n', '\r', '，', '、':
			return true
		}
		return false
	})

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		kw := strings.ToLower(strings.TrimSpace(f))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// IsURL 判断 fileKey 是否为可直接播放的地址而非缓存键
func IsURL(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	return strings.HasPrefix(k, "http://") ||
		strings.HasPrefix(k, "https://") ||
		strings.HasPrefix(k, "data:") ||
		strings.HasPrefix(k, "blob:")
}

// NameFromKey 从缓存键或 URL 推导显示名称：取最后一段并去掉扩展名
func NameFromKey(key string) string {
	k := strings.TrimSpace(key)
	if k == "" {
		return ""
	}
	if i := strings.IndexAny(k, "?#"); i >= 0 && IsURL(k) {
		k = k[:i]
	}
	base := path.Base(strings.TrimRight(k, "/"))
	if ext := path.Ext(base); ext != "" && len(ext) < len(base) {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
