package repository

import (
	"context"
	"errors"

	"ChatBGM/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PresetRepository 预设库数据访问接口
type PresetRepository interface {
	Create(ctx context.Context, preset *model.Preset) error
	GetByID(ctx context.Context, id string) (*model.Preset, error)
	List(ctx context.Context) ([]*model.Preset, error)
	Save(ctx context.Context, preset *model.Preset) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// gormPresetRepository GORM 实现
type gormPresetRepository struct {
	db *gorm.DB
}

// NewGormPresetRepository 创建 GORM 预设仓库
func NewGormPresetRepository(db *gorm.DB) PresetRepository {
	return &gormPresetRepository{db: db}
}

// Migrate 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Preset{}, &model.TrackEntry{})
}

// tracksInOrder 按插入顺序预加载曲目
func tracksInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// prepareTracks 写入前补齐外键与插入顺序
func prepareTracks(preset *model.Preset) {
	for i := range preset.Tracks {
		preset.Tracks[i].PresetID = preset.ID
		preset.Tracks[i].Position = i
	}
}

// Create 创建预设及其曲目
func (r *gormPresetRepository) Create(ctx context.Context, preset *model.Preset) error {
	prepareTracks(preset)
	return r.db.WithContext(ctx).Create(preset).Error
}

// GetByID 根据ID获取预设，不存在时返回 nil, nil
func (r *gormPresetRepository) GetByID(ctx context.Context, id string) (*model.Preset, error) {
	var preset model.Preset
	err := r.db.WithContext(ctx).
		Preload("Tracks", tracksInOrder).
		Where("id = ?", id).
		First(&preset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &preset, nil
}

// List 按创建顺序列出所有预设
func (r *gormPresetRepository) List(ctx context.Context) ([]*model.Preset, error) {
	var presets []*model.Preset
	err := r.db.WithContext(ctx).
		Preload("Tracks", tracksInOrder).
		Order("created_at ASC, id ASC").
		Find(&presets).Error
	return presets, err
}

// Save 更新预设并整体替换曲目列表
func (r *gormPresetRepository) Save(ctx context.Context, preset *model.Preset) error {
	prepareTracks(preset)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(preset).Error; err != nil {
			return err
		}
		if err := tx.Where("preset_id = ?", preset.ID).Delete(&model.TrackEntry{}).Error; err != nil {
			return err
		}
		if len(preset.Tracks) == 0 {
			return nil
		}
		return tx.Create(&preset.Tracks).Error
	})
}

// Delete 删除预设及其曲目
func (r *gormPresetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("preset_id = ?", id).Delete(&model.TrackEntry{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Preset{}).Error
	})
}

// Count 预设数量
func (r *gormPresetRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Preset{}).Count(&count).Error
	return count, err
}
