// Package preset 预设目录：创建、导入、删除（保护最后一个）、角色绑定
package preset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ChatBGM/logger"
	"ChatBGM/model"
	"ChatBGM/repository"
)

var (
	ErrLastPreset     = errors.New("cannot delete the last preset")
	ErrPresetNotFound = errors.New("preset not found")
)

const DefaultPresetName = "Default"

// SettingsStore 目录需要读写的设置字段（激活预设、角色绑定）
type SettingsStore interface {
	Snapshot() model.Settings
	Update(fn func(*model.Settings)) model.Settings
}

// Catalog 预设目录，内存中保留全部预设，写操作同步到仓库
type Catalog struct {
	repo     repository.PresetRepository
	settings SettingsStore

	mu      sync.RWMutex
	presets map[string]*model.Preset
	order   []string
}

// NewCatalog 加载全部预设；库为空时创建一个默认预设，并修正悬空的激活预设
func NewCatalog(ctx context.Context, repo repository.PresetRepository, settings SettingsStore) (*Catalog, error) {
	c := &Catalog{
		repo:     repo,
		settings: settings,
		presets:  make(map[string]*model.Preset),
	}

	list, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	for _, p := range list {
		if Normalize(p) {
			if err := repo.Save(ctx, p); err != nil {
				logger.Warn("修正预设失败", logger.String("presetId", p.ID), logger.ErrorField(err))
			}
		}
		c.presets[p.ID] = p
		c.order = append(c.order, p.ID)
	}

	if len(c.order) == 0 {
		if _, err := c.Create(ctx, DefaultPresetName); err != nil {
			return nil, err
		}
	}
	c.ensureActive()
	logger.Info("预设目录加载完成", logger.Int("count", len(c.order)))
	return c, nil
}

// Normalize 补齐 ID 与名称、去掉重复 fileKey、清除悬空的默认 BGM，返回是否有修改
func Normalize(p *model.Preset) bool {
	changed := false
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
		changed = true
	}
	if name := strings.TrimSpace(p.Name); name != p.Name || name == "" {
		if name == "" {
			name = DefaultPresetName
		}
		p.Name = name
		changed = true
	}

	seen := make(map[string]bool, len(p.Tracks))
	tracks := p.Tracks[:0]
	for _, t := range p.Tracks {
		t.FileKey = strings.TrimSpace(t.FileKey)
		if t.FileKey != "" && seen[t.FileKey] {
			logger.Warn("预设中存在重复的 fileKey，已忽略", logger.String("presetId", p.ID), logger.String("fileKey", t.FileKey))
			changed = true
			continue
		}
		if t.FileKey != "" {
			seen[t.FileKey] = true
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
			// 新条目未设置音量时按满音量处理
			if t.Volume == 0 {
				t.Volume = 1
			}
			changed = true
		}
		if strings.TrimSpace(t.Name) == "" && t.FileKey != "" {
			t.Name = model.NameFromKey(t.FileKey)
			changed = true
		}
		if t.Type == "" {
			t.Type = model.TrackTypeBGM
			changed = true
		}
		if t.Volume < 0 || t.Volume > 1 {
			t.Volume = min(max(t.Volume, 0), 1)
			changed = true
		}
		tracks = append(tracks, t)
	}
	p.Tracks = tracks

	if p.DefaultBgmKey != "" && !p.HasKey(p.DefaultBgmKey) {
		p.DefaultBgmKey = ""
		changed = true
	}
	return changed
}

// Get 返回预设副本，不存在时返回 nil
func (c *Catalog) Get(id string) *model.Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presets[id].Clone()
}

// List 按创建顺序返回所有预设副本
func (c *Catalog) List() []*model.Preset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Preset, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.presets[id].Clone())
	}
	return out
}

// Create 新建空预设
func (c *Catalog) Create(ctx context.Context, name string) (*model.Preset, error) {
	p := &model.Preset{Name: name}
	return c.add(ctx, p)
}

// Import 导入外部预设：总是分配新的 ID，避免与已有数据冲突
func (c *Catalog) Import(ctx context.Context, p *model.Preset) (*model.Preset, error) {
	if p == nil {
		return nil, fmt.Errorf("import: %w", ErrPresetNotFound)
	}
	in := p.Clone()
	in.ID = ""
	for i := range in.Tracks {
		in.Tracks[i].ID = ""
	}
	return c.add(ctx, in)
}

func (c *Catalog) add(ctx context.Context, p *model.Preset) (*model.Preset, error) {
	Normalize(p)
	if err := c.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create preset: %w", err)
	}

	c.mu.Lock()
	c.presets[p.ID] = p
	c.order = append(c.order, p.ID)
	c.mu.Unlock()

	logger.Info("预设已创建", logger.String("presetId", p.ID), logger.String("name", p.Name), logger.Int("tracks", len(p.Tracks)))
	return p.Clone(), nil
}

// Save 更新已有预设（曲目增删、默认 BGM 修改等）
func (c *Catalog) Save(ctx context.Context, p *model.Preset) (*model.Preset, error) {
	c.mu.RLock()
	_, ok := c.presets[p.ID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("save %q: %w", p.ID, ErrPresetNotFound)
	}

	next := p.Clone()
	Normalize(next)
	if err := c.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save preset: %w", err)
	}

	c.mu.Lock()
	c.presets[next.ID] = next
	c.mu.Unlock()
	return next.Clone(), nil
}

// Delete 删除预设；最后一个预设不能删除。删除激活预设时回退到第一个剩余预设
func (c *Catalog) Delete(ctx context.Context, id string) error {
	c.mu.RLock()
	_, ok := c.presets[id]
	remaining := len(c.order)
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("delete %q: %w", id, ErrPresetNotFound)
	}
	if remaining <= 1 {
		return ErrLastPreset
	}

	if err := c.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}

	c.mu.Lock()
	delete(c.presets, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.settings.Update(func(s *model.Settings) {
		for character, bound := range s.CharacterBindings {
			if bound == id {
				delete(s.CharacterBindings, character)
			}
		}
	})
	c.ensureActive()
	logger.Info("预设已删除", logger.String("presetId", id))
	return nil
}

// SetActive 设置全局激活预设
func (c *Catalog) SetActive(id string) error {
	if c.Get(id) == nil {
		return fmt.Errorf("activate %q: %w", id, ErrPresetNotFound)
	}
	c.settings.Update(func(s *model.Settings) { s.ActivePresetID = id })
	return nil
}

// Bind 把角色绑定到预设
func (c *Catalog) Bind(characterID, presetID string) error {
	if strings.TrimSpace(characterID) == "" {
		return errors.New("character id is required")
	}
	if c.Get(presetID) == nil {
		return fmt.Errorf("bind %q: %w", presetID, ErrPresetNotFound)
	}
	c.settings.Update(func(s *model.Settings) {
		if s.CharacterBindings == nil {
			s.CharacterBindings = map[string]string{}
		}
		s.CharacterBindings[characterID] = presetID
	})
	return nil
}

// Unbind 解除角色绑定
func (c *Catalog) Unbind(characterID string) {
	c.settings.Update(func(s *model.Settings) { delete(s.CharacterBindings, characterID) })
}

// BoundPresetID 角色绑定的预设，绑定悬空时返回空
func (c *Catalog) BoundPresetID(characterID string) string {
	id := c.settings.Snapshot().CharacterBindings[characterID]
	if id == "" || c.Get(id) == nil {
		return ""
	}
	return id
}

// ensureActive 激活预设不存在时回退到第一个
func (c *Catalog) ensureActive() {
	active := c.settings.Snapshot().ActivePresetID
	if c.Get(active) != nil {
		return
	}

	c.mu.RLock()
	first := ""
	if len(c.order) > 0 {
		first = c.order[0]
	}
	c.mu.RUnlock()

	c.settings.Update(func(s *model.Settings) { s.ActivePresetID = first })
	logger.Info("激活预设不存在，回退到第一个预设", logger.String("presetId", first))
}
