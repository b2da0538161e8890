package db

import (
	"path/filepath"
	"strings"
	"testing"

	"ChatBGM/config"
	"ChatBGM/model"
)

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(&config.Config{
		DBUser:     "bgm",
		DBPassword: "p@ss",
		DBHost:     "db",
		DBPort:     "3306",
		DBName:     "chatbgm",
	})
	for _, part := range []string{"bgm:p@ss@tcp(db:3306)/chatbgm", "parseTime=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("dsn %q missing %q", dsn, part)
		}
	}
}

func TestConnectSQLiteAndMigrate(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "sub", "presets.db")}
	if err := ConnectGormDB(cfg); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer CloseGormDB()

	if err := AutoMigrateModels(&model.Preset{}, &model.TrackEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !GormDB.Migrator().HasTable("preset_tracks") {
		t.Fatal("preset_tracks table missing")
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if err := ConnectGormDB(&config.Config{DBDriver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
