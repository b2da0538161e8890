package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryAssetStore 进程内资源缓存，未配置 MinIO 时使用
type MemoryAssetStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

var _ AssetStore = (*MemoryAssetStore)(nil)

// NewMemoryAssetStore 创建内存资源缓存
func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryAssetStore) Fetch(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrAssetNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryAssetStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    time.Now(),
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryAssetStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, fmt.Errorf("%s: %w", key, ErrAssetNotFound)
	}
	return ObjectInfo{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified, ContentType: obj.contentType}, nil
}

func (m *MemoryAssetStore) List(_ context.Context) ([]ObjectInfo, error) {
	m.mu.RLock()
	out := make([]ObjectInfo, 0, len(m.objects))
	for k, obj := range m.objects {
		out = append(out, ObjectInfo{Key: k, Size: int64(len(obj.data)), LastModified: obj.modified, ContentType: obj.contentType})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryAssetStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}
