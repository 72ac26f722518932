package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/agentchat/agent/conversation"
	"github.com/BaSui01/agentchat/api"
	"github.com/BaSui01/agentchat/internal/cache"
	"github.com/BaSui01/agentchat/internal/ctxkeys"
	"github.com/BaSui01/agentchat/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 会话 Handler
// =============================================================================

// ConversationManager 由 conversation.Manager 实现
type ConversationManager interface {
	Create(ctx context.Context, cfg conversation.ConversationConfig) (*conversation.Session, error)
	Get(id string) (*conversation.Session, error)
	List() []*conversation.Session
	Remove(id string) error
}

// PresetReader 按名称读取预设
type PresetReader interface {
	Get(ctx context.Context, name string) (cache.Preset, error)
}

// ActiveGauge 接收未停止的会话数，metrics.Collector 实现了它
type ActiveGauge interface {
	SetActiveConversations(n int)
}

// ConversationHandler 会话 setup、控制与查询
type ConversationHandler struct {
	manager ConversationManager
	presets PresetReader
	gauge   ActiveGauge
	logger  *zap.Logger
}

// NewConversationHandler 创建会话处理器。presets 与 gauge 可以为 nil。
func NewConversationHandler(manager ConversationManager, presets PresetReader, gauge ActiveGauge, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		manager: manager,
		presets: presets,
		gauge:   gauge,
		logger:  logger.With(zap.String("component", "conversation_handler")),
	}
}

// RegisterRoutes 注册 /api/v1/conversations 下的路由
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/conversations", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/conversations", h.HandleList)
	mux.HandleFunc("GET /api/v1/conversations/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/v1/conversations/{id}/messages", h.HandleMessage)
	mux.HandleFunc("POST /api/v1/conversations/{id}/pause", h.control(func(ctx context.Context, s *conversation.Session) error { return s.Pause(ctx) }))
	mux.HandleFunc("POST /api/v1/conversations/{id}/resume", h.control(func(ctx context.Context, s *conversation.Session) error { return s.Resume(ctx) }))
	mux.HandleFunc("POST /api/v1/conversations/{id}/stop", h.control(func(ctx context.Context, s *conversation.Session) error { return s.Stop(ctx) }))
	mux.HandleFunc("POST /api/v1/conversations/{id}/tick", h.HandleTick)
}

// HandleCreate 校验配置、创建并启动会话，返回 201
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.CreateConversationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	cfg, err := req.Config()
	if err != nil {
		WriteError(w, types.NewError(types.ErrConfigInvalid, err.Error()), h.logger)
		return
	}

	if req.Preset != "" {
		if h.presets == nil {
			WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "preset storage is not enabled", h.logger)
			return
		}
		preset, err := h.presets.Get(r.Context(), req.Preset)
		if err != nil {
			WriteAPIError(w, err, h.logger)
			return
		}
		creds := cfg.Credentials
		cfg = preset.Config()
		cfg.Credentials = creds
	}

	sess, err := h.manager.Create(r.Context(), cfg)
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	h.updateGauge()
	h.requestLogger(r).Info("conversation created",
		zap.String("conversation_id", sess.ID),
		zap.Int("agents", len(cfg.Agents)))

	WriteSuccessStatus(w, http.StatusCreated, api.ConversationResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		State:     sess.State(),
	})
}

// HandleList 返回全部会话摘要，按创建时间排序
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()
	out := make([]api.ConversationSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, api.NewConversationSummary(s.ID, s.CreatedAt, s.State()))
	}
	WriteSuccess(w, out)
}

// HandleGet 返回会话快照
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, api.ConversationResponse{ID: sess.ID, CreatedAt: sess.CreatedAt, State: sess.State()})
}

// HandleDelete 销毁会话
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Remove(id); err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	h.updateGauge()
	h.requestLogger(r).Info("conversation removed", zap.String("conversation_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// HandleMessage 提交用户输入，命令被拦截
func (h *ConversationHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.MessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	isCommand, err := sess.SubmitInput(r.Context(), req.Content)
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	if isCommand {
		h.updateGauge()
	}
	WriteSuccess(w, api.MessageResponse{Command: isCommand, State: sess.State()})
}

// HandleTick 手动触发一次调度
func (h *ConversationHandler) HandleTick(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	started, err := sess.Tick(r.Context())
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.TickResponse{Started: started, State: sess.State()})
}

func (h *ConversationHandler) control(fn func(context.Context, *conversation.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		if err := fn(r.Context(), sess); err != nil {
			WriteAPIError(w, err, h.logger)
			return
		}
		h.updateGauge()
		WriteSuccess(w, api.ConversationResponse{ID: sess.ID, CreatedAt: sess.CreatedAt, State: sess.State()})
	}
}

func (h *ConversationHandler) session(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return nil, false
	}
	return sess, true
}

// updateGauge 只统计未停止的会话；已停止但尚未删除的会话不算活跃
func (h *ConversationHandler) updateGauge() {
	if h.gauge == nil {
		return
	}
	active := 0
	for _, s := range h.manager.List() {
		if s.State().Status != conversation.StatusStopped {
			active++
		}
	}
	h.gauge.SetActiveConversations(active)
}

// requestLogger 附带请求 ID 与调用方标识
func (h *ConversationHandler) requestLogger(r *http.Request) *zap.Logger {
	logger := h.logger
	if id, ok := ctxkeys.RequestID(r.Context()); ok {
		logger = logger.With(zap.String("request_id", id))
	}
	if p, ok := ctxkeys.Principal(r.Context()); ok {
		logger = logger.With(zap.String("principal", p))
	}
	return logger
}
