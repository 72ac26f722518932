package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/agentchat/agent/conversation"
	"github.com/BaSui01/agentchat/api"
	"github.com/BaSui01/agentchat/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// =============================================================================
// 📡 会话状态流（WebSocket）
// =============================================================================

// StreamHandler 把会话快照推送给 WebSocket 客户端，并接受 input/tick 帧
type StreamHandler struct {
	manager        ConversationManager
	originPatterns []string
	writeTimeout   time.Duration
	logger         *zap.Logger
}

// NewStreamHandler 创建状态流处理器。originPatterns 为空时只接受同源请求。
func NewStreamHandler(manager ConversationManager, originPatterns []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		manager:        manager,
		originPatterns: originPatterns,
		writeTimeout:   10 * time.Second,
		logger:         logger.With(zap.String("component", "stream_handler")),
	}
}

// RegisterRoutes 注册 /api/v1/conversations/{id}/ws
func (h *StreamHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/conversations/{id}/ws", h.HandleStream)
}

// HandleStream 升级为 WebSocket。连接建立后先推送当前快照，之后每次变更推送一次（慢客户端只看到最新）。
// 会话销毁时以 1000 关闭连接。
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		WriteAPIError(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	logger := h.logger.With(zap.String("conversation_id", sess.ID))
	logger.Debug("stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	go h.readLoop(ctx, cancel, conn, sess, logger)

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "conversation closed")
				return
			}
			if err := h.write(ctx, conn, api.ServerFrame{Type: api.FrameState, State: &st}); err != nil {
				logger.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ctx.Done():
			logger.Debug("stream closed", zap.Error(context.Cause(ctx)))
			return
		}
	}
}

// readLoop 处理客户端帧，连接断开时取消 ctx
func (h *StreamHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *conversation.Session, logger *zap.Logger) {
	defer cancel()
	for {
		var frame api.ClientFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				logger.Debug("stream read failed", zap.Error(err))
			}
			return
		}

		var err error
		switch frame.Type {
		case api.FrameInput:
			_, err = sess.SubmitInput(ctx, frame.Content)
		case api.FrameTick:
			_, err = sess.Tick(ctx)
		default:
			_ = h.write(ctx, conn, api.ServerFrame{Type: api.FrameError, Error: &api.StreamError{
				Code:    string(types.ErrInvalidRequest),
				Message: "unknown frame type " + frame.Type,
			}})
			continue
		}
		if err != nil {
			apiErr := ToAPIError(err)
			_ = h.write(ctx, conn, api.ServerFrame{Type: api.FrameError, Error: &api.StreamError{
				Code:    string(apiErr.Code),
				Message: apiErr.Message,
			}})
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, frame api.ServerFrame) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, frame)
}
