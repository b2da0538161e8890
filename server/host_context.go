package server

import (
	"sync"

	"ChatBGM/model"
)

// HostContext 宿主聊天应用推送过来的上下文：当前聊天、角色与每个聊天最新的助手消息
type HostContext struct {
	mu          sync.RWMutex
	chatID      string
	characterID string
	messages    map[string]string // chatKey -> 最新助手消息

	binding func(characterID string) string
}

// NewHostContext 创建宿主上下文，binding 返回角色绑定的预设，可为 nil
func NewHostContext(binding func(characterID string) string) *HostContext {
	return &HostContext{
		messages: make(map[string]string),
		binding:  binding,
	}
}

// Switch 切换当前聊天
func (h *HostContext) Switch(chatID, characterID string) {
	h.mu.Lock()
	h.chatID = chatID
	h.characterID = characterID
	h.mu.Unlock()
}

// SetMessage 记录助手消息，chatID 为空时记到当前聊天
func (h *HostContext) SetMessage(chatID, characterID, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if chatID == "" {
		chatID, characterID = h.chatID, h.characterID
	}
	h.messages[model.ChatKey(chatID, characterID)] = text
}

// Current 当前聊天与角色
func (h *HostContext) Current() (chatID, characterID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.chatID, h.characterID
}

// CurrentChatKey 尚未打开任何聊天时返回空
func (h *HostContext) CurrentChatKey() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.chatID == "" && h.characterID == "" {
		return ""
	}
	return model.ChatKey(h.chatID, h.characterID)
}

func (h *HostContext) LatestAssistantMessage() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.messages[model.ChatKey(h.chatID, h.characterID)]
}

func (h *HostContext) BoundPresetID() string {
	h.mu.RLock()
	characterID := h.characterID
	h.mu.RUnlock()
	if h.binding == nil || characterID == "" {
		return ""
	}
	return h.binding(characterID)
}
