package cmd

import (
	"context"
	"fmt"
	"time"

	"ChatBGM/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并列出已保存的聊天播放状态。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer cache.CloseRedis()
		fmt.Println("Redis连接成功！")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := cache.CheckRedis(ctx, cache.RedisClient); err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		keys, err := cache.NewChatStateCache(cache.RedisClient).Keys(ctx)
		if err != nil {
			return fmt.Errorf("读取聊天状态失败: %w", err)
		}
		fmt.Printf("已保存 %d 个聊天的播放状态\n", len(keys))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
