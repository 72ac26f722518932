package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordKind 区分 transcript 中的记录来源。
type RecordKind string

const (
	RecordSystem RecordKind = "system"
	RecordUser   RecordKind = "user"
	RecordAgent  RecordKind = "agent"
)

// TurnRecord 是 transcript 中的一条记录，追加后不可变。
// AgentName 仅在 Kind 为 agent 时存在。
type TurnRecord struct {
	ID        string     `json:"id"`
	Kind      RecordKind `json:"kind"`
	Content   string     `json:"content"`
	AgentName string     `json:"agent_name,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func newRecord(kind RecordKind, content, agent string) TurnRecord {
	return TurnRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		AgentName: agent,
		CreatedAt: time.Now(),
	}
}

// NewSystemRecord creates a system-kind record.
func NewSystemRecord(content string) TurnRecord {
	return newRecord(RecordSystem, content, "")
}

// NewUserRecord creates a user-kind record.
func NewUserRecord(content string) TurnRecord {
	return newRecord(RecordUser, content, "")
}

// NewAgentRecord creates an agent-kind record attributed to agent.
func NewAgentRecord(agent, content string) TurnRecord {
	return newRecord(RecordAgent, content, agent)
}

// Validate checks the kind/agent-name pairing.
func (r TurnRecord) Validate() error {
	switch r.Kind {
	case RecordAgent:
		if r.AgentName == "" {
			return fmt.Errorf("agent record %s has no agent name", r.ID)
		}
	case RecordSystem, RecordUser:
		if r.AgentName != "" {
			return fmt.Errorf("%s record %s must not carry an agent name", r.Kind, r.ID)
		}
	default:
		return fmt.Errorf("record %s has unknown kind %q", r.ID, r.Kind)
	}
	return nil
}
