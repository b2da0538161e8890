package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ChatBGM/model"

	"github.com/redis/go-redis/v9"
)

const settingsKey = "chatbgm:settings" // String: 设置文档 JSON

// SettingsCache 把全局设置保存在 Redis 中
type SettingsCache struct {
	client *redis.Client
}

// NewSettingsCache 创建设置缓存，client 为 nil 时使用全局客户端
func NewSettingsCache(client *redis.Client) *SettingsCache {
	if client == nil {
		client = RedisClient
	}
	return &SettingsCache{client: client}
}

// Load 读取设置，尚未保存过时返回 nil, nil
func (c *SettingsCache) Load(ctx context.Context) (*model.Settings, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := c.client.Get(ctx, settingsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var s model.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &s, nil
}

// Save 写入设置
func (c *SettingsCache) Save(ctx context.Context, s model.Settings) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return c.client.Set(ctx, settingsKey, data, 0).Err()
}
