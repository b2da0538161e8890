// Package bus 音频通道总线：少量具名角色，每个角色至多持有一个音频句柄，
// 保证同一时刻只有一个主音源发声，切换时淡出其他角色。
package bus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ChatBGM/logger"
)

// Role 总线上的通道角色
type Role string

const (
	RoleEngine  Role = "engine"  // BGM / 关键词驱动播放
	RoleFreeSrc Role = "freesrc" // 曲库试听
	RolePreview Role = "preview" // 播放按钮的临时试听
	RoleSFX     Role = "sfx"     // 音效叠加，不参与互斥
)

// Roles 所有已知角色
var Roles = []Role{RoleEngine, RoleFreeSrc, RolePreview, RoleSFX}

const (
	DefaultFadeDuration = 120 * time.Millisecond
	DefaultFrame        = 16 * time.Millisecond
)

var ErrUnknownRole = errors.New("unknown bus role")

// Source 待加载的音频：URL 直接播放，否则使用 Data
type Source struct {
	Key  string
	URL  string
	Data []byte
}

// Handle 一个可控制的音频输出
type Handle interface {
	Load(src Source) error
	Source() string
	Play() error
	Pause()
	Paused() bool
	Volume() float64
	SetVolume(v float64)
	SetLoop(loop bool)
	Rewind()
}

type fadeState struct {
	token  uint64
	base   float64 // 淡出开始前的音量，结束后恢复
	active bool
}

// Bus 音频通道总线，由应用根对象创建并传递给需要的组件
type Bus struct {
	mu              sync.Mutex
	handles         map[Role]Handle
	fades           map[Role]*fadeState
	pausedByPreview bool

	fadeDuration time.Duration
	frame        time.Duration
	wg           sync.WaitGroup
}

// Option 总线配置项
type Option func(*Bus)

// WithFade 设置淡出时长与帧间隔，duration <= 0 表示直接硬停
func WithFade(duration, frame time.Duration) Option {
	return func(b *Bus) {
		b.fadeDuration = duration
		if frame > 0 {
			b.frame = frame
		}
	}
}

// New 创建总线
func New(opts ...Option) *Bus {
	b := &Bus{
		handles:      make(map[Role]Handle, len(Roles)),
		fades:        make(map[Role]*fadeState, len(Roles)),
		fadeDuration: DefaultFadeDuration,
		frame:        DefaultFrame,
	}
	for _, r := range Roles {
		b.fades[r] = &fadeState{}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func knownRole(role Role) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Register 为角色注册句柄，传 nil 表示注销
func (b *Bus) Register(role Role, h Handle) error {
	if !knownRole(role) {
		return fmt.Errorf("register %q: %w", role, ErrUnknownRole)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cancelFadeLocked(role)
	if h == nil {
		delete(b.handles, role)
	} else {
		b.handles[role] = h
	}
	return nil
}

// Handle 返回角色当前的句柄，可能为 nil
func (b *Bus) Handle(role Role) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handles[role]
}

// RequestExclusive 激活某个角色前调用，按角色规则暂停或淡出其他角色
func (b *Bus) RequestExclusive(role Role) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 自己正在淡出时先取消，否则淡出结束会把刚开始的播放停掉
	b.cancelFadeLocked(role)

	switch role {
	case RolePreview:
		if h := b.handles[RoleEngine]; h != nil {
			b.cancelFadeLocked(RoleEngine)
			if !h.Paused() {
				h.Pause()
				b.pausedByPreview = true
			}
		}
		b.fadeOutLocked(RoleFreeSrc)
	case RoleFreeSrc:
		b.fadeOutLocked(RolePreview)
		b.fadeOutLocked(RoleEngine)
		b.pausedByPreview = false
	case RoleEngine:
		b.fadeOutLocked(RoleFreeSrc)
	case RoleSFX:
		// 叠加音效不打断任何角色
	default:
		for _, r := range Roles {
			if r != role && r != RoleSFX {
				b.fadeOutLocked(r)
			}
		}
	}
	logger.Debug("请求独占通道", logger.String("role", string(role)))
}

// PreviewEnded 试听结束时调用，返回 engine 是否因试听被暂停过（需要恢复）
func (b *Bus) PreviewEnded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	was := b.pausedByPreview
	b.pausedByPreview = false
	return was
}

// PausedByPreview engine 当前是否处于"被试听暂停"状态
func (b *Bus) PausedByPreview() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pausedByPreview
}

// FadeOut 淡出指定角色
func (b *Bus) FadeOut(role Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fadeOutLocked(role)
}

// Stop 立即停止角色：取消淡出、暂停并回到开头
func (b *Bus) Stop(role Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked(role)
}

// StopAll 停止所有角色
func (b *Bus) StopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range Roles {
		b.stopLocked(r)
	}
	b.pausedByPreview = false
}

// Wait 等待进行中的淡出全部结束
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) stopLocked(role Role) {
	h := b.handles[role]
	if h == nil {
		return
	}
	b.cancelFadeLocked(role)
	h.Pause()
	h.Rewind()
}

// cancelFadeLocked 作废进行中的淡出并恢复原音量
func (b *Bus) cancelFadeLocked(role Role) {
	st := b.fades[role]
	if st == nil {
		return
	}
	st.token++
	if st.active {
		if h := b.handles[role]; h != nil {
			h.SetVolume(st.base)
		}
		st.active = false
	}
}

func (b *Bus) fadeOutLocked(role Role) {
	h := b.handles[role]
	if h == nil {
		return
	}
	st := b.fades[role]
	st.token++
	token := st.token
	if !st.active {
		st.base = h.Volume()
	}

	from := h.Volume()
	if h.Paused() || from <= 0 || b.fadeDuration <= 0 {
		h.Pause()
		h.Rewind()
		h.SetVolume(st.base)
		st.active = false
		return
	}

	st.active = true
	b.wg.Add(1)
	go b.runFade(role, h, token, from)
}

// runFade 线性淡出；每帧检查 token，被新的淡出或停止取代时静默退出
func (b *Bus) runFade(role Role, h Handle, token uint64, from float64) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.frame)
	defer ticker.Stop()
	start := time.Now()

	for range ticker.C {
		b.mu.Lock()
		st := b.fades[role]
		if st.token != token || b.handles[role] != h {
			b.mu.Unlock()
			return
		}

		progress := float64(time.Since(start)) / float64(b.fadeDuration)
		if progress >= 1 {
			h.SetVolume(0)
			h.Pause()
			h.Rewind()
			h.SetVolume(st.base)
			st.active = false
			b.mu.Unlock()
			return
		}
		h.SetVolume(from * (1 - progress))
		b.mu.Unlock()
	}
}
