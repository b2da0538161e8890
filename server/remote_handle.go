package server

import (
	"net/url"
	"sync"

	"ChatBGM/core/bus"
)

// HandleState 音频句柄状态，每次变化都整体广播，客户端按 Seq 应用
type HandleState struct {
	Role   bus.Role `json:"role"`
	Op     string   `json:"op"`
	Key    string   `json:"key,omitempty"`
	URL    string   `json:"url,omitempty"`
	Paused bool     `json:"paused"`
	Volume float64  `json:"volume"`
	Loop   bool     `json:"loop"`
	Seq    uint64   `json:"seq"`
}

// Publisher 广播出口，由 Hub 实现
type Publisher interface {
	Publish(msgType MessageType, retainKey string, payload any)
}

// RemoteHandle 服务端的音频句柄：真正的 <audio> 在浏览器里，
// 这里只维护状态并把每次变化广播出去。
type RemoteHandle struct {
	mu    sync.Mutex
	out   Publisher
	state HandleState
}

var _ bus.Handle = (*RemoteHandle)(nil)

// NewRemoteHandle 创建暂停状态、音量为 1 的远程句柄
func NewRemoteHandle(role bus.Role, out Publisher) *RemoteHandle {
	return &RemoteHandle{
		out:   out,
		state: HandleState{Role: role, Paused: true, Volume: 1},
	}
}

// AssetURL 浏览器读取缓存资源的地址
func AssetURL(key string) string {
	return "/assets/" + url.PathEscape(key)
}

// publishLocked 广播当前状态（需要持有锁）
func (h *RemoteHandle) publishLocked(op string) {
	h.state.Op = op
	h.state.Seq++
	if h.out != nil {
		h.out.Publish(MsgTypeHandle, "handle:"+string(h.state.Role), h.state)
	}
}

func (h *RemoteHandle) Load(src bus.Source) error {
	if src.URL == "" && len(src.Data) == 0 {
		return bus.ErrNothingLoaded
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Key = src.Key
	h.state.URL = src.URL
	if h.state.URL == "" {
		// 数据已确认在缓存中，浏览器按键取流
		h.state.URL = AssetURL(src.Key)
	}
	h.state.Paused = true
	h.publishLocked("load")
	return nil
}

func (h *RemoteHandle) Source() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Key
}

func (h *RemoteHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Key == "" {
		return bus.ErrNothingLoaded
	}
	h.state.Paused = false
	h.publishLocked("play")
	return nil
}

func (h *RemoteHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state.Paused = true
	h.publishLocked("pause")
}

func (h *RemoteHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Paused
}

func (h *RemoteHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Volume
}

func (h *RemoteHandle) SetVolume(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Volume == v {
		return
	}
	h.state.Volume = v
	h.publishLocked("volume")
}

func (h *RemoteHandle) SetLoop(loop bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Loop == loop {
		return
	}
	h.state.Loop = loop
	h.publishLocked("loop")
}

func (h *RemoteHandle) Rewind() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publishLocked("rewind")
}

// Report 客户端上报的真实状态（自然结束、浏览器拒绝自动播放），不再回播
func (h *RemoteHandle) Report(paused bool) {
	h.mu.Lock()
	h.state.Paused = paused
	h.mu.Unlock()
}

// State 当前状态快照
func (h *RemoteHandle) State() HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
