package server

import (
	"errors"
	"net/http"

	"ChatBGM/core/preset"
	"ChatBGM/logger"
	"ChatBGM/model"

	"github.com/gorilla/mux"
)

// presetError 把目录错误映射为状态码
func presetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preset.ErrPresetNotFound):
		http.Error(w, "Preset not found", http.StatusNotFound)
	case errors.Is(err, preset.ErrLastPreset):
		http.Error(w, "Cannot delete the last preset", http.StatusConflict)
	default:
		logger.Error("预设操作失败", logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// ListPresetsHandler 全部预设
func (s *Server) ListPresetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets":  s.catalog.List(),
		"activeId": s.settings.Snapshot().ActivePresetID,
	})
}

func (s *Server) GetPresetHandler(w http.ResponseWriter, r *http.Request) {
	p := s.catalog.Get(mux.Vars(r)["id"])
	if p == nil {
		http.Error(w, "Preset not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createPresetRequest struct {
	Name string `json:"name"`
}

// CreatePresetHandler 新建空预设
func (s *Server) CreatePresetHandler(w http.ResponseWriter, r *http.Request) {
	var req createPresetRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.catalog.Create(r.Context(), req.Name)
	if err != nil {
		presetError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ImportPresetHandler 导入导出的预设文件，总是分配新 ID
func (s *Server) ImportPresetHandler(w http.ResponseWriter, r *http.Request) {
	var in model.Preset
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p, err := s.catalog.Import(r.Context(), &in)
	if err != nil {
		presetError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// SavePresetHandler 保存预设并重新仲裁（曲目或默认 BGM 可能已变化）
func (s *Server) SavePresetHandler(w http.ResponseWriter, r *http.Request) {
	var in model.Preset
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	in.ID = mux.Vars(r)["id"]

	p, err := s.catalog.Save(r.Context(), &in)
	if err != nil {
		presetError(w, err)
		return
	}
	s.engine.Tick(r.Context())
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) DeletePresetHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		presetError(w, err)
		return
	}
	s.engine.Tick(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// ActivatePresetHandler 设置全局激活预设
func (s *Server) ActivatePresetHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.SetActive(mux.Vars(r)["id"]); err != nil {
		presetError(w, err)
		return
	}
	s.engine.Tick(r.Context())
	writeJSON(w, http.StatusOK, s.engine.NowPlaying())
}

type bindRequest struct {
	CharacterID string `json:"characterId"`
	PresetID    string `json:"presetId"`
}

// BindHandler 把角色绑定到预设
func (s *Server) BindHandler(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CharacterID == "" {
		http.Error(w, "characterId is required", http.StatusBadRequest)
		return
	}

	if err := s.catalog.Bind(req.CharacterID, req.PresetID); err != nil {
		presetError(w, err)
		return
	}
	s.engine.Tick(r.Context())
	writeJSON(w, http.StatusOK, s.settings.Snapshot().CharacterBindings)
}

func (s *Server) UnbindHandler(w http.ResponseWriter, r *http.Request) {
	s.catalog.Unbind(mux.Vars(r)["characterId"])
	s.engine.Tick(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
