package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"ChatBGM/cache"
	"ChatBGM/core/preset"
	"ChatBGM/core/settings"
	"ChatBGM/db"
	"ChatBGM/logger"
	"ChatBGM/model"
	"ChatBGM/repository"
	"ChatBGM/server"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "预设管理",
	Long:  `列出、导入、导出 BGM 预设。导入文件可以是 YAML 或 JSON。`,
}

// openCatalog 打开预设库与设置，返回的 cleanup 会写出设置并关闭连接
func openCatalog(ctx context.Context) (*preset.Catalog, *settings.Store, func(), error) {
	if err := db.ConnectGormDB(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if err := repository.Migrate(db.GormDB); err != nil {
		db.CloseGormDB()
		return nil, nil, nil, fmt.Errorf("迁移预设表失败: %w", err)
	}
	if cfg.SettingsBackend == "redis" {
		if err := cache.ConnectRedis(cfg); err != nil {
			db.CloseGormDB()
			return nil, nil, nil, err
		}
	}

	cleanup := func() {
		if cache.RedisClient != nil {
			cache.CloseRedis()
		}
		db.CloseGormDB()
	}

	store, _, err := server.OpenSettings(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("读取设置失败: %w", err)
	}
	catalog, err := preset.NewCatalog(ctx, repository.NewGormPresetRepository(db.GormDB), store)
	if err != nil {
		store.Close()
		cleanup()
		return nil, nil, nil, err
	}

	return catalog, store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("保存设置失败", logger.ErrorField(err))
		}
		cleanup()
	}, nil
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出全部预设",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		catalog, store, cleanup, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		active := store.Snapshot().ActivePresetID
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tTRACKS\tDEFAULT")
		for _, p := range catalog.List() {
			mark := ""
			if p.ID == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", mark, p.ID, p.Name, len(p.Tracks), p.DefaultBgmKey)
		}
		return w.Flush()
	},
}

var presetsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "导入预设文件",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var in model.Preset
		if err := yaml.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("解析预设文件失败: %w", err)
		}

		ctx := context.Background()
		catalog, _, cleanup, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		p, err := catalog.Import(ctx, &in)
		if err != nil {
			return err
		}
		fmt.Printf("已导入预设 %s (%s)，共 %d 首曲目\n", p.Name, p.ID, len(p.Tracks))
		return nil
	},
}

var presetsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "以 YAML 导出预设",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		catalog, _, cleanup, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		p := catalog.Get(args[0])
		if p == nil {
			return fmt.Errorf("%q: %w", args[0], preset.ErrPresetNotFound)
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(p)
	},
}

func init() {
	presetsCmd.AddCommand(presetsListCmd, presetsImportCmd, presetsExportCmd)
	rootCmd.AddCommand(presetsCmd)
}
