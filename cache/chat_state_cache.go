package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ChatBGM/model"

	"github.com/redis/go-redis/v9"
)

const (
	chatStateKey   = "chatbgm:chat:%s" // String: ChatPlaybackState JSON
	chatStateIndex = "chatbgm:chats"   // Set: 所有保存过状态的聊天键
	chatStateTTL   = 30 * 24 * time.Hour
)

// ChatStateCache 每个聊天上下文的播放状态
type ChatStateCache struct {
	client *redis.Client
}

// NewChatStateCache 创建聊天状态缓存，client 为 nil 时使用全局客户端
func NewChatStateCache(client *redis.Client) *ChatStateCache {
	if client == nil {
		client = RedisClient
	}
	return &ChatStateCache{client: client}
}

// Load 读取聊天状态，不存在时返回 nil, nil
func (c *ChatStateCache) Load(ctx context.Context, chatKey string) (*model.ChatPlaybackState, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	data, err := c.client.Get(ctx, fmt.Sprintf(chatStateKey, chatKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var state model.ChatPlaybackState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat state: %w", err)
	}
	return &state, nil
}

// Save 保存聊天状态并刷新过期时间
func (c *ChatStateCache) Save(ctx context.Context, state *model.ChatPlaybackState) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal chat state: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(chatStateKey, state.ChatKey), data, chatStateTTL)
	pipe.SAdd(ctx, chatStateIndex, state.ChatKey)
	_, err = pipe.Exec(ctx)
	return err
}

// Keys 列出保存过状态的聊天键
func (c *ChatStateCache) Keys(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	return c.client.SMembers(ctx, chatStateIndex).Result()
}

// Delete 删除聊天状态
func (c *ChatStateCache) Delete(ctx context.Context, chatKey string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(chatStateKey, chatKey))
	pipe.SRem(ctx, chatStateIndex, chatKey)
	_, err := pipe.Exec(ctx)
	return err
}
