package cmd

import (
	"context"
	"fmt"
	"time"

	"ChatBGM/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okColor      = color.New(color.FgHiGreen)
	missingColor = color.New(color.FgHiRed)
	dimColor     = color.New(color.FgHiBlack)
)

var assetsVerbose bool

var checkAssetsCmd = &cobra.Command{
	Use:   "check-assets",
	Short: "检查预设引用的资源是否都在 MinIO 中",
	Long:  `比对所有预设中的 fileKey 与 imageAssetKey 和资源缓存，列出缺失项。只做报告，不修改任何数据。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)
		assets, err := storage.NewMinioAssetStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		catalog, _, cleanup, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if assetsVerbose {
			objects, err := assets.List(ctx)
			if err != nil {
				return err
			}
			for _, obj := range objects {
				dimColor.Printf("  %-48s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format(time.DateTime))
			}
		}

		report, err := storage.CheckIntegrity(ctx, assets, catalog.List())
		if err != nil {
			return err
		}
		if report.OK() {
			okColor.Printf("全部 %d 个资源引用均存在\n", report.Checked)
			return nil
		}

		for _, m := range report.Missing {
			missingColor.Printf("缺失 [%s] %s", m.Kind, m.Key)
			dimColor.Printf("  预设 %s / 曲目 %s\n", m.PresetName, m.TrackName)
		}
		return fmt.Errorf("%d/%d 个资源引用缺失", len(report.Missing), report.Checked)
	},
}

func init() {
	checkAssetsCmd.Flags().BoolVarP(&assetsVerbose, "verbose", "v", false, "同时列出缓存中的全部对象")
	rootCmd.AddCommand(checkAssetsCmd)
}
