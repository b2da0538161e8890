package engine

import "ChatBGM/model"

// NowPlaying 当前播放快照，供界面展示
type NowPlaying struct {
	ChatKey         string          `json:"chatKey"`
	PresetID        string          `json:"presetId"`
	FileKey         string          `json:"fileKey"`
	Name            string          `json:"name"`
	Type            model.TrackType `json:"type,omitempty"`
	Keyword         string          `json:"keyword,omitempty"`
	License         string          `json:"license,omitempty"`
	Lyrics          string          `json:"lyrics,omitempty"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	ImageAssetKey   string          `json:"imageAssetKey,omitempty"`
	Paused          bool            `json:"paused"`
	Volume          float64         `json:"volume"`
	Loop            bool            `json:"loop"`
	PausedByPreview bool            `json:"pausedByPreview"`

	Enabled     bool                 `json:"enabled"`
	PlayMode    model.PlayMode       `json:"playMode"`
	KeywordMode bool                 `json:"keywordMode"`
	SubMode     model.KeywordSubMode `json:"keywordSubMode"`
	KeywordOnce bool                 `json:"keywordOnce"`
	UseDefault  bool                 `json:"useDefault"`
}

// NowPlaying 返回当前播放快照
func (e *Engine) NowPlaying() NowPlaying {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() NowPlaying {
	s := e.settings.Snapshot()
	cur := e.current
	return NowPlaying{
		ChatKey:         cur.chatKey,
		PresetID:        cur.presetID,
		FileKey:         cur.entry.FileKey,
		Name:            cur.entry.DisplayName(),
		Type:            cur.entry.Type,
		Keyword:         cur.keyword,
		License:         cur.entry.License,
		Lyrics:          cur.entry.Lyrics,
		ImageURL:        cur.entry.ImageURL,
		ImageAssetKey:   cur.entry.ImageAssetKey,
		Paused:          e.isPausedLocked(),
		Volume:          cur.volume,
		Loop:            cur.loop,
		PausedByPreview: e.bus.PausedByPreview(),
		Enabled:         s.Enabled,
		PlayMode:        s.PlayMode,
		KeywordMode:     s.KeywordMode,
		SubMode:         s.KeywordSubMode,
		KeywordOnce:     s.KeywordOnce,
		UseDefault:      s.UseDefault,
	}
}

func (e *Engine) notifyLocked() {
	if len(e.observers) == 0 {
		return
	}
	np := e.snapshotLocked()
	for _, fn := range e.observers {
		fn(np)
	}
}
