package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/agentchat/api"
	"github.com/BaSui01/agentchat/internal/cache"
	"github.com/BaSui01/agentchat/types"
	"go.uber.org/zap"
)

// PresetStore 由 cache.PresetStore 实现
type PresetStore interface {
	PresetReader
	Save(ctx context.Context, p cache.Preset) (cache.Preset, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

// PresetHandler 会话 setup 预设的读写
type PresetHandler struct {
	store  PresetStore
	logger *zap.Logger
}

// NewPresetHandler 创建预设处理器
func NewPresetHandler(store PresetStore, logger *zap.Logger) *PresetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresetHandler{store: store, logger: logger.With(zap.String("component", "preset_handler"))}
}

// RegisterRoutes 注册 /api/v1/presets 下的路由
func (h *PresetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/presets", h.HandleList)
	mux.HandleFunc("GET /api/v1/presets/{name}", h.HandleGet)
	mux.HandleFunc("PUT /api/v1/presets/{name}", h.HandlePut)
	mux.HandleFunc("DELETE /api/v1/presets/{name}", h.HandleDelete)
}

// HandleList 返回所有预设名称
func (h *PresetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context())
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.PresetList{Names: names})
}

// HandleGet 返回单个预设
func (h *PresetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	WriteSuccess(w, p)
}

// HandlePut 创建或覆盖预设
func (h *PresetHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := cache.ValidatePresetName(name); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, err.Error(), h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.PresetRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	saved, err := h.store.Save(r.Context(), cache.Preset{
		Name:             name,
		Topic:            req.Topic,
		Agents:           req.Agents,
		Instruction:      req.Instruction,
		MaxTurnsPerAgent: req.MaxTurnsPerAgent,
	})
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	WriteSuccess(w, saved)
}

// HandleDelete 删除预设
func (h *PresetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("name")); err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
