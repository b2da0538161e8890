package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"ChatBGM/core/engine"
	"ChatBGM/logger"
	"ChatBGM/model"
)

// writeJSON 输出 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写出响应失败", logger.ErrorField(err))
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// HealthHandler 健康检查
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

type chatMessageRequest struct {
	ChatID      string `json:"chatId"`
	CharacterID string `json:"characterId"`
	Text        string `json:"text"`
}

// ChatMessageHandler 记录最新的助手消息并触发一次仲裁。
// 消息总是会被记录，超出频率限制时只跳过仲裁，下一次 tick 会补上。
func (s *Server) ChatMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.host.SetMessage(req.ChatID, req.CharacterID, req.Text)

	ticked := s.limiter == nil || s.limiter.Allow()
	if ticked {
		s.engine.Tick(r.Context())
	} else {
		logger.Debug("tick 频率超限，仅记录消息", logger.String("chatId", req.ChatID))
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"ticked":     ticked,
		"nowPlaying": s.engine.NowPlaying(),
	})
}

type chatSwitchRequest struct {
	ChatID      string `json:"chatId"`
	CharacterID string `json:"characterId"`
}

// ChatSwitchHandler 宿主切换聊天
func (s *Server) ChatSwitchHandler(w http.ResponseWriter, r *http.Request) {
	var req chatSwitchRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.host.Switch(req.ChatID, req.CharacterID)
	logger.Info("聊天已切换", logger.String("chatId", req.ChatID), logger.String("characterId", req.CharacterID))
	s.engine.Tick(r.Context())
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

// TickHandler 手动触发一次仲裁
func (s *Server) TickHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Tick(r.Context())
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

// PromptHandler 关键词提示，供宿主拼进系统提示词
func (s *Server) PromptHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"prompt": s.engine.KeywordPrompt(r.Context()),
	})
}

// NowPlayingHandler 当前播放快照
func (s *Server) NowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

func (s *Server) PrevHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Prev(r.Context())
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

func (s *Server) NextHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Next(r.Context())
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

// ToggleHandler 播放/暂停
func (s *Server) ToggleHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.TogglePlayPause(r.Context())
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

type playFileRequest struct {
	FileKey  string   `json:"fileKey"`
	PresetID string   `json:"presetId"`
	Volume   *float64 `json:"volume"`
	Loop     bool     `json:"loop"`
	Autoplay *bool    `json:"autoplay"` // 缺省为 true
}

// PlayFileHandler 手动点播一首曲目
func (s *Server) PlayFileHandler(w http.ResponseWriter, r *http.Request) {
	var req playFileRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	autoplay := true
	if req.Autoplay != nil {
		autoplay = *req.Autoplay
	}
	err := s.engine.EnsurePlayFile(r.Context(), engine.PlayFile{
		FileKey:  req.FileKey,
		PresetID: req.PresetID,
		Volume:   req.Volume,
		Loop:     req.Loop,
		Autoplay: autoplay,
	})
	switch {
	case errors.Is(err, engine.ErrEmptyFileKey):
		http.Error(w, "fileKey is required", http.StatusBadRequest)
		return
	case errors.Is(err, engine.ErrDisabled):
		http.Error(w, "Playback is disabled", http.StatusConflict)
		return
	case err != nil:
		logger.Error("点播失败", logger.String("fileKey", req.FileKey), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, s.engine.NowPlaying())
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

// VolumeHandler 设置全局音量
func (s *Server) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"volume": s.engine.SetVolume(req.Volume),
	})
}

// GetSettingsHandler 当前设置
func (s *Server) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Snapshot())
}

// UpdateSettingsHandler 部分更新设置：请求体覆盖在当前快照上，缺省字段保持不变
func (s *Server) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	current := s.settings.Snapshot()
	next := current.Clone()
	if err := decodeJSON(r, &next); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated := s.settings.Update(func(cur *model.Settings) { *cur = next })
	if updated.GlobalVolume != current.GlobalVolume {
		// 把新音量作用到正在播放的曲目
		s.engine.SetVolume(updated.GlobalVolume)
	}
	s.engine.Tick(r.Context())

	writeJSON(w, http.StatusOK, s.settings.Snapshot())
}
