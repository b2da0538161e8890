package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ChatBGM/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypePing  MessageType = "ping"  // 心跳
	MsgTypePong  MessageType = "pong"  // 心跳响应
	MsgTypeError MessageType = "error" // 错误消息

	// 服务端 -> 客户端
	MsgTypeNowPlaying MessageType = "now_playing" // 当前播放快照
	MsgTypeSettings   MessageType = "settings"    // 设置变更
	MsgTypeHandle     MessageType = "handle"      // 音频句柄状态，客户端据此驱动 <audio>

	// 客户端 -> 服务端
	MsgTypeEnded       MessageType = "ended"        // 某个通道自然播放结束
	MsgTypeHandleState MessageType = "handle_state" // 客户端上报真实播放状态（被浏览器拒绝播放等）
)

const (
	sendBufferSize  = 64
	readLimit       = 4096
	pongWait        = 60 * time.Second
	pingInterval    = 30 * time.Second
	writeWait       = 10 * time.Second
	broadcastBuffer = 256
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client 一个浏览器连接
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	mu     sync.Mutex
	closed bool
}

// Hub WebSocket 管理中心：向所有浏览器客户端广播，并为新连接回放最近状态
type Hub struct {
	clients map[*Client]bool

	// 保留消息：新客户端注册时按顺序回放
	retained     map[string][]byte
	retainedKeys []string

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		retained:   make(map[string][]byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// NewClient 为连接创建客户端
func (h *Hub) NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, sendBufferSize),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastAll(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	for _, key := range h.retainedKeys {
		client.trySend(h.retained[key])
	}

	logger.Info("客户端已连接", logger.String("client", client.ID), logger.Int("clients", len(h.clients)))
}

// removeClient 移除客户端（需要持有锁）
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.closeSend()
	logger.Info("客户端已断开", logger.String("client", client.ID), logger.Int("clients", len(h.clients)))
}

func (h *Hub) broadcastAll(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.trySend(msg) {
			// 发送缓冲区满，移除客户端
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[*Client]bool)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish 广播一条消息，retainKey 非空时保留为该键的最新状态。
// 不会阻塞：队列满时丢弃并记录日志。
func (h *Hub) Publish(msgType MessageType, retainKey string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("序列化广播数据失败", logger.String("type", string(msgType)), logger.ErrorField(err))
		return
	}
	raw, err := json.Marshal(&WSMessage{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		logger.Error("序列化广播消息失败", logger.ErrorField(err))
		return
	}

	if retainKey != "" {
		h.mu.Lock()
		if _, ok := h.retained[retainKey]; !ok {
			h.retainedKeys = append(h.retainedKeys, retainKey)
		}
		h.retained[retainKey] = raw
		h.mu.Unlock()
	}

	select {
	case h.broadcast <- raw:
	case <-h.done:
	default:
		logger.Warn("广播队列已满，丢弃消息", logger.String("type", string(msgType)))
	}
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, client *Client, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err), logger.String("client", c.ID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err), logger.String("client", c.ID))
			continue
		}

		if msg.Type == MsgTypePing {
			c.SendMessage(&WSMessage{Type: MsgTypePong})
			continue
		}

		handler(ctx, c, &msg)
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端，缓冲区满时丢弃
func (c *Client) SendMessage(msg *WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.trySend(data)
}

// trySend 非阻塞发送，通道已关闭或已满时返回 false
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
