package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ChatBGM/core/persist"
	"ChatBGM/logger"
	"ChatBGM/model"
)

const saveTimeout = 5 * time.Second

// Backend 设置文档的持久化后端
type Backend interface {
	// Load 读取设置，尚未保存过时返回 nil, nil
	Load(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, s model.Settings) error
}

// Store 内存中的设置快照，修改后延迟写回后端
type Store struct {
	mu      sync.RWMutex
	current model.Settings

	backend   Backend
	debouncer *persist.Debouncer

	subsMu sync.Mutex
	subs   []func(model.Settings)
}

// NewStore 从后端加载设置并补全默认值；后端为空时使用 Defaults()
func NewStore(ctx context.Context, backend Backend, delay time.Duration) (*Store, error) {
	s := &Store{backend: backend}
	s.debouncer = persist.NewDebouncer("settings", delay, s.save)

	loaded, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if loaded == nil {
		s.current = Defaults()
		s.debouncer.MarkDirty()
		logger.Info("未找到已保存的设置，使用默认值")
		return s, nil
	}

	s.current = loaded.Clone()
	if EnsureDefaults(&s.current) {
		s.debouncer.MarkDirty()
	}
	return s, nil
}

// Snapshot 返回当前设置的副本
func (s *Store) Snapshot() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update 修改设置并安排持久化，返回修改后的快照
func (s *Store) Update(fn func(*model.Settings)) model.Settings {
	s.mu.Lock()
	next := s.current.Clone()
	fn(&next)
	EnsureDefaults(&next)
	s.current = next
	snap := next.Clone()
	s.mu.Unlock()

	s.debouncer.MarkDirty()
	s.notify(snap)
	return snap
}

// Replace 用外部来源（例如文件被手动编辑）覆盖当前设置，不回写后端
func (s *Store) Replace(next model.Settings) {
	next = next.Clone()
	EnsureDefaults(&next)
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	s.notify(next.Clone())
}

// Subscribe 注册设置变化的回调
func (s *Store) Subscribe(fn func(model.Settings)) {
	s.subsMu.Lock()
	s.subs = append(s.subs, fn)
	s.subsMu.Unlock()
}

// Flush 立即写出未保存的修改
func (s *Store) Flush() error {
	return s.debouncer.Flush()
}

// Close 写出剩余修改
func (s *Store) Close() error {
	return s.debouncer.Close()
}

func (s *Store) save() error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	return s.backend.Save(ctx, s.Snapshot())
}

func (s *Store) notify(snap model.Settings) {
	s.subsMu.Lock()
	subs := append([]func(model.Settings){}, s.subs...)
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(snap.Clone())
	}
}
