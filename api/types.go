package api

import (
	"time"

	"github.com/BaSui01/agentchat/agent/conversation"
)

// =============================================================================
// 会话 setup
// =============================================================================

// CreateConversationRequest 创建并启动一个会话。
// 设置 Preset 时 topic/agents/instruction/max_turns_per_agent 取自预设，请求中的同名字段被忽略。
type CreateConversationRequest struct {
	Preset           string               `json:"preset,omitempty"`
	Topic            string               `json:"topic,omitempty"`
	Agents           []conversation.Agent `json:"agents,omitempty"`
	Instruction      string               `json:"instruction,omitempty"`
	MaxTurnsPerAgent int                  `json:"max_turns_per_agent,omitempty"`
	// provider kind → API Key，只在内存中透传给 provider，不回显也不持久化
	Credentials map[string]string `json:"credentials,omitempty"`
}

// Config converts the request into a ConversationConfig. Unknown provider
// kinds in Credentials are reported as errors.
func (r CreateConversationRequest) Config() (conversation.ConversationConfig, error) {
	keys := make(map[conversation.ProviderKind]string, len(r.Credentials))
	for k, v := range r.Credentials {
		kind, err := conversation.ParseProviderKind(k)
		if err != nil {
			return conversation.ConversationConfig{}, err
		}
		keys[kind] = v
	}
	return conversation.ConversationConfig{
		Topic:            r.Topic,
		Agents:           r.Agents,
		Instruction:      r.Instruction,
		MaxTurnsPerAgent: r.MaxTurnsPerAgent,
		Credentials:      conversation.NewCredentials(keys),
	}, nil
}

// ConversationSummary 列表项
type ConversationSummary struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	Status    conversation.Status `json:"status"`
	Topic     string              `json:"topic"`
	Agents    []string            `json:"agents"`
	Records   int                 `json:"records"`
}

// ConversationResponse 单个会话的完整快照
type ConversationResponse struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	State     conversation.State `json:"state"`
}

// NewConversationSummary builds a list item from a session snapshot.
func NewConversationSummary(id string, createdAt time.Time, st conversation.State) ConversationSummary {
	names := make([]string, len(st.Roster))
	for i, a := range st.Roster {
		names[i] = a.Name
	}
	return ConversationSummary{
		ID:        id,
		CreatedAt: createdAt,
		Status:    st.Status,
		Topic:     st.Topic,
		Agents:    names,
		Records:   st.Transcript.Len(),
	}
}

// =============================================================================
// 用户输入与控制
// =============================================================================

// MessageRequest 用户输入。以命令前缀开头的 pause/resume 会被当作控制命令。
type MessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse 说明输入是否被当作命令处理
type MessageResponse struct {
	Command bool               `json:"command"`
	State   conversation.State `json:"state"`
}

// TickResponse 手动 tick 的结果。Started 为 false 表示本次是 no-op。
type TickResponse struct {
	Started bool               `json:"started"`
	State   conversation.State `json:"state"`
}

// =============================================================================
// 预设
// =============================================================================

// PresetRequest 保存预设的请求体，名称取自路径
type PresetRequest struct {
	Topic            string               `json:"topic"`
	Agents           []conversation.Agent `json:"agents"`
	Instruction      string               `json:"instruction,omitempty"`
	MaxTurnsPerAgent int                  `json:"max_turns_per_agent,omitempty"`
}

// PresetList 预设名称列表
type PresetList struct {
	Names []string `json:"names"`
}

// =============================================================================
// WebSocket 帧
// =============================================================================

// 帧类型
const (
	FrameState = "state"
	FrameError = "error"
	FrameInput = "input"
	FrameTick  = "tick"
)

// ClientFrame 客户端通过 WebSocket 发送的帧：input 携带 content，tick 触发一次手动调度
type ClientFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// ServerFrame 服务端推送的帧
type ServerFrame struct {
	Type  string              `json:"type"`
	State *conversation.State `json:"state,omitempty"`
	Error *StreamError        `json:"error,omitempty"`
}

// StreamError 通过 WebSocket 返回的错误
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
