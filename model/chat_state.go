package model

// ChatPlaybackState 每个聊天上下文的播放状态
type ChatPlaybackState struct {
	ChatKey          string   `json:"chatKey"`
	CurrentKey       string   `json:"currentKey"`
	ListIndex        int      `json:"listIndex"`
	LastSig          uint64   `json:"lastSig"`          // 最近处理过的消息指纹
	DefaultPlayedSig uint64   `json:"defaultPlayedSig"` // 已为该消息播放过默认曲
	LastSlot         string   `json:"lastSlot"`         // 最近一次命中时所在的时段
	PrevKey          string   `json:"prevKey"`          // random 模式的"上一首"
	RecentKeywords   []string `json:"recentKeywords"`   // 最近选中的关键词，最新在前
	UpdatedAt        int64    `json:"updatedAt"`        // 时间戳毫秒
}

// ChatKey 由聊天ID与角色ID组合出聊天上下文键
func ChatKey(chatID, characterID string) string {
	return chatID + "::" + characterID
}

// Clone 深拷贝
func (s *ChatPlaybackState) Clone() *ChatPlaybackState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.RecentKeywords = append([]string(nil), s.RecentKeywords...)
	return &cp
}
