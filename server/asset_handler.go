package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ChatBGM/core/bus"
	"ChatBGM/logger"
	"ChatBGM/storage"

	"github.com/gorilla/mux"
)

const maxAssetSize = 64 << 20

// StreamAssetHandler 从资源缓存读取音频/图片，支持 Range 请求
func (s *Server) StreamAssetHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	data, err := s.assets.Fetch(r.Context(), key)
	if errors.Is(err, storage.ErrAssetNotFound) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("读取资源失败", logger.String("key", key), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", storage.ContentTypeFor(key))
	w.Header().Set("Cache-Control", "public, max-age=31536000") // 缓存一年
	http.ServeContent(w, r, key, time.Time{}, bytes.NewReader(data))
}

// UploadAssetHandler 把请求体写入资源缓存
func (s *Server) UploadAssetHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(mux.Vars(r)["key"])
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxAssetSize+1))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if len(data) > maxAssetSize {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Empty body", http.StatusBadRequest)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(key)
	}
	if err := s.assets.Put(r.Context(), key, data, contentType); err != nil {
		logger.Error("写入资源失败", logger.String("key", key), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Info("资源已缓存", logger.String("key", key), logger.String("size", storage.FormatSize(int64(len(data)))))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"key":  key,
		"size": len(data),
		"url":  AssetURL(key),
	})
}

// IntegrityHandler 检查预设引用的资源是否都在缓存中
func (s *Server) IntegrityHandler(w http.ResponseWriter, r *http.Request) {
	report, err := storage.CheckIntegrity(r.Context(), s.assets, s.catalog.List())
	if err != nil {
		logger.Error("资源完整性检查失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type sourceRequest struct {
	FileKey string   `json:"fileKey"`
	URL     string   `json:"url"`
	Volume  *float64 `json:"volume"`
}

// startSource 在独立角色上加载并播放，缓存中不存在时返回 404
func (s *Server) startSource(w http.ResponseWriter, r *http.Request, role bus.Role) {
	var req sourceRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileKey == "" && req.URL == "" {
		http.Error(w, "fileKey or url is required", http.StatusBadRequest)
		return
	}

	src := bus.Source{Key: req.FileKey, URL: req.URL}
	if src.Key == "" {
		src.Key = req.URL
	}
	if req.URL == "" {
		data, err := s.assets.Fetch(r.Context(), req.FileKey)
		if errors.Is(err, storage.ErrAssetNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("读取资源失败", logger.String("key", req.FileKey), logger.ErrorField(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		src.Data = data
	}

	h := s.handles[role]
	s.bus.RequestExclusive(role)
	if err := h.Load(src); err != nil {
		logger.Warn("加载试听失败", logger.String("role", string(role)), logger.ErrorField(err))
		http.Error(w, "Failed to load source", http.StatusBadGateway)
		return
	}
	if req.Volume != nil {
		h.SetVolume(min(max(*req.Volume, 0), 1))
	}
	if err := h.Play(); err != nil {
		logger.Warn("试听播放失败", logger.String("role", string(role)), logger.ErrorField(err))
	}

	// 试听会暂停 engine，让客户端看到 pausedByPreview
	s.hub.Publish(MsgTypeNowPlaying, "now_playing", s.engine.NowPlaying())
	writeJSON(w, http.StatusOK, h.State())
}

// PreviewStartHandler 播放按钮的临时试听，会暂停正在播放的 BGM
func (s *Server) PreviewStartHandler(w http.ResponseWriter, r *http.Request) {
	s.startSource(w, r, bus.RolePreview)
}

// PreviewEndHandler 结束试听，BGM 是被试听暂停的就恢复
func (s *Server) PreviewEndHandler(w http.ResponseWriter, r *http.Request) {
	s.handles[bus.RolePreview].Pause()
	s.engine.OnPreviewEnded(r.Context())
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

// FreeSrcStartHandler 曲库试听，会淡出 BGM
func (s *Server) FreeSrcStartHandler(w http.ResponseWriter, r *http.Request) {
	s.startSource(w, r, bus.RoleFreeSrc)
}

func (s *Server) FreeSrcStopHandler(w http.ResponseWriter, r *http.Request) {
	s.bus.Stop(bus.RoleFreeSrc)
	writeJSON(w, http.StatusOK, s.handles[bus.RoleFreeSrc].State())
}
