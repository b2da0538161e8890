package model

import "time"

// Preset 命名的有序曲目集合，附带一个默认 BGM
type Preset struct {
	ID            string       `json:"id" yaml:"id" gorm:"primaryKey;size:64"`
	Name          string       `json:"name" yaml:"name" gorm:"size:255;not null"`
	DefaultBgmKey string       `json:"defaultBgmKey" yaml:"defaultBgmKey" gorm:"size:512"`
	Tracks        []TrackEntry `json:"tracks" yaml:"tracks" gorm:"foreignKey:PresetID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time    `json:"updatedAt" yaml:"-"`
}

// TableName 指定表名
func (Preset) TableName() string {
	return "presets"
}

// HasKey 预设中是否存在该 fileKey
func (p *Preset) HasKey(fileKey string) bool {
	if p == nil || fileKey == "" {
		return false
	}
	for i := range p.Tracks {
		if p.Tracks[i].FileKey == fileKey {
			return true
		}
	}
	return false
}

// DefaultKey 返回有效的默认 BGM；悬空的默认键视为没有默认
func (p *Preset) DefaultKey() string {
	if p == nil || !p.HasKey(p.DefaultBgmKey) {
		return ""
	}
	return p.DefaultBgmKey
}

// Clone 深拷贝
func (p *Preset) Clone() *Preset {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tracks = append([]TrackEntry(nil), p.Tracks...)
	return &cp
}
