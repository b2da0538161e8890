package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ChatBGM/model"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSettingsCache(t *testing.T) {
	_, client := newTestClient(t)
	c := NewSettingsCache(client)
	ctx := context.Background()

	got, err := c.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("empty cache should load nil, got %+v %v", got, err)
	}

	want := model.Settings{
		Enabled:           true,
		PlayMode:          model.PlayModeRandom,
		GlobalVolume:      0.4,
		CharacterBindings: map[string]string{"alice": "p1"},
	}
	if err := c.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = c.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.PlayMode != model.PlayModeRandom || got.GlobalVolume != 0.4 || got.CharacterBindings["alice"] != "p1" {
		t.Fatalf("unexpected settings %+v", got)
	}
}

func TestChatStateCache(t *testing.T) {
	mr, client := newTestClient(t)
	c := NewChatStateCache(client)
	ctx := context.Background()

	state := &model.ChatPlaybackState{
		ChatKey:        model.ChatKey("chat1", "alice"),
		CurrentKey:     "b.mp3",
		ListIndex:      1,
		LastSig:        42,
		RecentKeywords: []string{"battle"},
	}
	if err := c.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("chatbgm:chat:chat1::alice"); ttl != chatStateTTL {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := c.Load(ctx, state.ChatKey)
	if err != nil || got == nil || got.CurrentKey != "b.mp3" || got.LastSig != 42 {
		t.Fatalf("load: %+v %v", got, err)
	}

	keys, err := c.Keys(ctx)
	if err != nil || len(keys) != 1 || keys[0] != state.ChatKey {
		t.Fatalf("keys: %v %v", keys, err)
	}

	if err := c.Delete(ctx, state.ChatKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := c.Load(ctx, state.ChatKey); got != nil {
		t.Fatalf("state should be deleted, got %+v", got)
	}
}

func TestCheckRedis(t *testing.T) {
	_, client := newTestClient(t)
	if err := CheckRedis(context.Background(), client); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := CheckRedis(context.Background(), nil); err == nil {
		t.Fatal("nil client should fail")
	}
}

func TestNilClientGuards(t *testing.T) {
	RedisClient = nil
	if _, err := NewSettingsCache(nil).Load(context.Background()); err == nil {
		t.Fatal("expected error without client")
	}
	if err := NewChatStateCache(nil).Save(context.Background(), &model.ChatPlaybackState{}); err == nil {
		t.Fatal("expected error without client")
	}
}
