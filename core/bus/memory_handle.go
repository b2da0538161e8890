package bus

import (
	"errors"
	"sync"
)

var ErrNothingLoaded = errors.New("no source loaded")

// MemoryHandle 纯内存的句柄，记录状态但不发声。
// 用于无浏览器客户端时的无头运行和测试。
type MemoryHandle struct {
	mu       sync.Mutex
	source   string
	paused   bool
	volume   float64
	loop     bool
	position int // 逻辑播放位置，Rewind 归零

	loads   int
	plays   int
	rewinds int
	// PlayErr 非空时 Play 返回该错误，模拟播放失败
	PlayErr error
}

var _ Handle = (*MemoryHandle)(nil)

// NewMemoryHandle 创建暂停状态、音量为 1 的句柄
func NewMemoryHandle() *MemoryHandle {
	return &MemoryHandle{paused: true, volume: 1}
}

func (m *MemoryHandle) Load(src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if src.URL == "" && len(src.Data) == 0 {
		return ErrNothingLoaded
	}
	m.source = src.Key
	m.position = 0
	m.paused = true
	m.loads++
	return nil
}

func (m *MemoryHandle) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

func (m *MemoryHandle) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.source == "" {
		return ErrNothingLoaded
	}
	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.paused = false
	m.position++
	m.plays++
	return nil
}

func (m *MemoryHandle) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *MemoryHandle) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *MemoryHandle) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *MemoryHandle) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
}

func (m *MemoryHandle) SetLoop(loop bool) {
	m.mu.Lock()
	m.loop = loop
	m.mu.Unlock()
}

// Loop 当前是否单曲循环
func (m *MemoryHandle) Loop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loop
}

func (m *MemoryHandle) Rewind() {
	m.mu.Lock()
	m.position = 0
	m.rewinds++
	m.mu.Unlock()
}

// Position 逻辑播放位置，用于判断暂停后能否原位恢复
func (m *MemoryHandle) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Counters 返回加载、播放、回绕次数的快照
func (m *MemoryHandle) Counters() (loads, plays, rewinds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads, m.plays, m.rewinds
}
