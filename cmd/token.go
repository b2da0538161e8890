package cmd

import (
	"errors"
	"fmt"
	"time"

	"ChatBGM/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发控制接口令牌",
	Long:  `使用 JWT_SECRET 签发 Bearer 令牌，供宿主插件调用控制接口。--ttl 为 0 时不过期。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET 未设置，控制接口无需令牌")
		}
		token, err := auth.GenerateToken(cfg.JWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "host", "令牌主体")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "有效期，例如 720h")
	rootCmd.AddCommand(tokenCmd)
}
