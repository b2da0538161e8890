package cmd

import (
	"ChatBGM/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 ChatBGM 服务",
	Long:  `启动控制接口（HTTP + WebSocket），浏览器播放端通过 /api/ws 接收音频句柄状态。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
