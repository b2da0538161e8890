package server

import (
	"context"
	"encoding/json"
	"net/http"

	"ChatBGM/core/bus"
	"ChatBGM/logger"
)

// endedPayload 客户端上报某个角色自然播放结束
type endedPayload struct {
	Role bus.Role `json:"role"`
}

// handleStatePayload 客户端上报真实播放状态
type handleStatePayload struct {
	Role   bus.Role `json:"role"`
	Paused bool     `json:"paused"`
}

// WebSocketHandler 浏览器播放端连接：接收句柄状态，上报结束事件
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	// 升级为 WebSocket 连接
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := s.hub.NewClient(conn)
	s.hub.Register(client)

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump(context.Background(), s.handleClientMessage)

	logger.Info("WebSocket 连接建立",
		logger.String("client", client.ID),
		logger.String("subject", SubjectFromContext(r.Context())))
}

func (s *Server) handleClientMessage(ctx context.Context, client *Client, msg *WSMessage) {
	switch msg.Type {
	case MsgTypeEnded:
		var p endedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			client.sendError("invalid ended payload")
			return
		}
		h := s.handles[p.Role]
		if h == nil {
			client.sendError("unknown role")
			return
		}
		h.Report(true)

		switch p.Role {
		case bus.RoleEngine:
			s.engine.OnEnded(ctx)
		case bus.RolePreview:
			s.engine.OnPreviewEnded(ctx)
		}

	case MsgTypeHandleState:
		var p handleStatePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			client.sendError("invalid handle_state payload")
			return
		}
		h := s.handles[p.Role]
		if h == nil {
			client.sendError("unknown role")
			return
		}
		h.Report(p.Paused)
		if p.Role == bus.RoleEngine {
			s.hub.Publish(MsgTypeNowPlaying, "now_playing", s.engine.NowPlaying())
		}

	default:
		logger.Debug("未知的客户端消息", logger.String("type", string(msg.Type)), logger.String("client", client.ID))
	}
}

func (c *Client) sendError(text string) {
	data, _ := json.Marshal(map[string]string{"message": text})
	c.SendMessage(&WSMessage{Type: MsgTypeError, Data: data})
}
