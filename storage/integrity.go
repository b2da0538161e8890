package storage

import (
	"context"
	"errors"

	"ChatBGM/logger"
	"ChatBGM/model"
)

// MissingAsset 预设中引用但缓存里找不到的资源
type MissingAsset struct {
	PresetID   string `json:"presetId"`
	PresetName string `json:"presetName"`
	TrackName  string `json:"trackName"`
	Key        string `json:"key"`
	Kind       string `json:"kind"` // audio | image
}

// IntegrityReport 完整性检查结果
type IntegrityReport struct {
	Checked int            `json:"checked"`
	Missing []MissingAsset `json:"missing"`
}

// OK 是否没有缺失
func (r IntegrityReport) OK() bool {
	return len(r.Missing) == 0
}

// CheckIntegrity 比对预设引用的 fileKey / imageAssetKey 与资源缓存，只做报告，不影响播放
func CheckIntegrity(ctx context.Context, store AssetStore, presets []*model.Preset) (IntegrityReport, error) {
	report := IntegrityReport{Missing: []MissingAsset{}}
	seen := make(map[string]bool) // key -> 是否存在

	exists := func(key string) (bool, error) {
		if found, ok := seen[key]; ok {
			return found, nil
		}
		_, err := store.Stat(ctx, key)
		switch {
		case err == nil:
			seen[key] = true
		case errors.Is(err, ErrAssetNotFound):
			seen[key] = false
		default:
			return false, err
		}
		return seen[key], nil
	}

	for _, p := range presets {
		for _, t := range p.Tracks {
			refs := []struct {
				key  string
				kind string
			}{
				{t.FileKey, "audio"},
				{t.ImageAssetKey, "image"},
			}
			for _, ref := range refs {
				if ref.key == "" || model.IsURL(ref.key) {
					continue
				}
				report.Checked++
				ok, err := exists(ref.key)
				if err != nil {
					return report, err
				}
				if !ok {
					report.Missing = append(report.Missing, MissingAsset{
						PresetID:   p.ID,
						PresetName: p.Name,
						TrackName:  t.DisplayName(),
						Key:        ref.key,
						Kind:       ref.kind,
					})
				}
			}
		}
	}

	if !report.OK() {
		logger.Warn("资源完整性检查发现缺失", logger.Int("missing", len(report.Missing)), logger.Int("checked", report.Checked))
	}
	return report, nil
}
