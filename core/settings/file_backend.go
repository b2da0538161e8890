package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"ChatBGM/logger"
	"ChatBGM/model"
)

// FileBackend 将设置保存为 YAML 文件
type FileBackend struct {
	path string

	mu        sync.Mutex
	lastWrite []byte // 自己写出的内容，用于忽略自身触发的文件事件
	lastSeen  []byte
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend 创建文件后端
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path 设置文件路径
func (f *FileBackend) Path() string {
	return f.path
}

func (f *FileBackend) Load(ctx context.Context) (*model.Settings, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return decodeSettings(data)
}

func (f *FileBackend) Save(ctx context.Context, s model.Settings) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// 先写临时文件再重命名，避免读到半个文件
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	f.lastWrite = data
	return nil
}

// Watch 监听设置文件被外部修改，解析成功后回调 onChange，直到 ctx 结束
func (f *FileBackend) Watch(ctx context.Context, onChange func(*model.Settings)) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// 监听目录：重命名写入会替换文件本身
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer w.Close()
		target := filepath.Clean(f.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				f.reload(onChange)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("设置文件监听出错", logger.ErrorField(err))
			}
		}
	}()
	return nil
}

func (f *FileBackend) reload(onChange func(*model.Settings)) {
	data, err := os.ReadFile(f.path)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		// 编辑器截断后还没写完
		return
	}

	f.mu.Lock()
	unchanged := bytes.Equal(data, f.lastWrite) || bytes.Equal(data, f.lastSeen)
	f.lastSeen = data
	f.mu.Unlock()
	if unchanged {
		return
	}

	s, err := decodeSettings(data)
	if err != nil {
		logger.Warn("设置文件解析失败，忽略本次修改", logger.String("path", f.path), logger.ErrorField(err))
		return
	}
	logger.Info("设置文件已重新加载", logger.String("path", f.path))
	onChange(s)
}

func decodeSettings(data []byte) (*model.Settings, error) {
	var s model.Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}
