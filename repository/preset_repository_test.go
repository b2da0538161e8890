package repository

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ChatBGM/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "presets.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func samplePreset(id string) *model.Preset {
	return &model.Preset{
		ID:            id,
		Name:          "Preset " + id,
		DefaultBgmKey: id + "-b.mp3",
		Tracks: []model.TrackEntry{
			{ID: id + "-t1", FileKey: id + "-b.mp3", Name: "B", Keywords: "battle", Priority: 5, Volume: 1, Type: model.TrackTypeBGM},
			{ID: id + "-t2", FileKey: id + "-a.mp3", Name: "A", Keywords: "rain", Volume: 0.5, Type: model.TrackTypeBGM},
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := NewGormPresetRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, samplePreset("p1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID(ctx, "p1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if len(got.Tracks) != 2 || got.Tracks[0].Name != "B" || got.Tracks[1].Name != "A" {
		t.Fatalf("tracks should keep insertion order: %+v", got.Tracks)
	}
	if got.DefaultBgmKey != "p1-b.mp3" {
		t.Fatalf("unexpected default key %q", got.DefaultBgmKey)
	}

	missing, err := repo.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("missing preset should be nil, nil; got %v, %v", missing, err)
	}
}

func TestSaveReplacesTracks(t *testing.T) {
	repo := NewGormPresetRepository(newTestDB(t))
	ctx := context.Background()
	p := samplePreset("p1")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	p.Name = "Renamed"
	p.Tracks = []model.TrackEntry{
		{ID: "new-1", FileKey: "c.mp3", Name: "C"},
		p.Tracks[1],
	}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := repo.GetByID(ctx, "p1")
	if got.Name != "Renamed" || len(got.Tracks) != 2 || got.Tracks[0].FileKey != "c.mp3" || got.Tracks[1].Name != "A" {
		t.Fatalf("unexpected saved preset %+v", got)
	}
}

func TestListAndDelete(t *testing.T) {
	repo := NewGormPresetRepository(newTestDB(t))
	ctx := context.Background()
	for _, id := range []string{"p1", "p2"} {
		if err := repo.Create(ctx, samplePreset(id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %v", list, err)
	}

	if err := repo.Delete(ctx, "p1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := repo.Count(ctx); n != 1 {
		t.Fatalf("expected 1 preset, got %d", n)
	}
	var orphans int64
	repo.(*gormPresetRepository).db.Model(&model.TrackEntry{}).Where("preset_id = ?", "p1").Count(&orphans)
	if orphans != 0 {
		t.Fatalf("tracks of deleted preset remain: %d", orphans)
	}
}
