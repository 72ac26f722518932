package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/agentchat/types"
)

// Roster size limits.
const (
	MinAgents = 2
	MaxAgents = 10
)

// ProviderKind 标识 Agent 背后的文本生成服务。
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderGemini ProviderKind = "gemini"
)

// Valid reports whether k is one of the supported provider kinds.
func (k ProviderKind) Valid() bool {
	return k == ProviderOpenAI || k == ProviderGemini
}

func normalizeProviderKind(s string) ProviderKind {
	return ProviderKind(strings.ToLower(strings.TrimSpace(s)))
}

// UnmarshalText 归一化大小写与空白，JSON 与 YAML 解码都经过这里。
// 未知名称原样保留，交给 ValidateConfig 报告。
func (k *ProviderKind) UnmarshalText(text []byte) error {
	*k = normalizeProviderKind(string(text))
	return nil
}

// ParseProviderKind 解析 provider 名称，大小写不敏感。
func ParseProviderKind(s string) (ProviderKind, error) {
	k := normalizeProviderKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown provider kind %q", s)
	}
	return k, nil
}

// Agent 是会话参与者，会话开始后不可变。Name 是唯一标识。
type Agent struct {
	Name     string       `json:"name" yaml:"name"`
	Persona  string       `json:"persona" yaml:"persona"`
	Provider ProviderKind `json:"provider" yaml:"provider"`
	Model    string       `json:"model,omitempty" yaml:"model,omitempty"`
}

// Credentials 按 provider kind 保存调用方提供的 API Key。
// 调度器只透传，不读取；String 与 MarshalJSON 均打码。
type Credentials struct {
	keys map[ProviderKind]string
}

// NewCredentials copies the given keys; blank values are dropped.
func NewCredentials(keys map[ProviderKind]string) Credentials {
	c := Credentials{keys: make(map[ProviderKind]string, len(keys))}
	for k, v := range keys {
		if v = strings.TrimSpace(v); v != "" {
			c.keys[k] = v
		}
	}
	return c
}

// APIKey returns the key supplied for kind, or "".
func (c Credentials) APIKey(kind ProviderKind) string {
	return c.keys[kind]
}

// Empty reports whether no key was supplied.
func (c Credentials) Empty() bool { return len(c.keys) == 0 }

func (c Credentials) String() string {
	if c.Empty() {
		return "Credentials{}"
	}
	parts := make([]string, 0, len(c.keys))
	for _, k := range []ProviderKind{ProviderOpenAI, ProviderGemini} {
		if _, ok := c.keys[k]; ok {
			parts = append(parts, string(k)+":***")
		}
	}
	return "Credentials{" + strings.Join(parts, ", ") + "}"
}

func (c Credentials) MarshalJSON() ([]byte, error) {
	out := make(map[ProviderKind]string, len(c.keys))
	for k := range c.keys {
		out[k] = "***"
	}
	return json.Marshal(out)
}

// ConversationConfig 由 setup 一次性创建，之后只读。
// MaxTurnsPerAgent 为 0 表示不限轮次。
type ConversationConfig struct {
	Topic            string      `json:"topic"`
	Agents           []Agent     `json:"agents"`
	Instruction      string      `json:"instruction,omitempty"`
	MaxTurnsPerAgent int         `json:"max_turns_per_agent,omitempty"`
	Credentials      Credentials `json:"-"`
}

// AgentNames returns the roster names in order.
func (c ConversationConfig) AgentNames() []string {
	names := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		names[i] = a.Name
	}
	return names
}

// clone 深拷贝 roster，保证调度器持有的配置不受调用方后续修改影响。
func (c ConversationConfig) clone() ConversationConfig {
	out := c
	out.Agents = append([]Agent(nil), c.Agents...)
	return out
}

// ValidateConfig 在 setup 阶段校验配置，失败返回 CONFIG_INVALID，
// Details 中列出全部问题。
func ValidateConfig(cfg ConversationConfig) error {
	var problems []string

	if strings.TrimSpace(cfg.Topic) == "" {
		problems = append(problems, "topic is required")
	}
	if n := len(cfg.Agents); n < MinAgents || n > MaxAgents {
		problems = append(problems, fmt.Sprintf("roster must have %d-%d agents, got %d", MinAgents, MaxAgents, n))
	}

	seen := make(map[string]struct{}, len(cfg.Agents))
	for i, a := range cfg.Agents {
		name := strings.TrimSpace(a.Name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("agents[%d]: name is required", i))
		case name != a.Name:
			problems = append(problems, fmt.Sprintf("agents[%d]: name %q has surrounding whitespace", i, a.Name))
		default:
			if _, dup := seen[name]; dup {
				problems = append(problems, fmt.Sprintf("agents[%d]: duplicate name %q", i, name))
			}
			seen[name] = struct{}{}
		}
		if !a.Provider.Valid() {
			problems = append(problems, fmt.Sprintf("agents[%d]: unknown provider kind %q", i, a.Provider))
		}
	}

	if cfg.MaxTurnsPerAgent < 0 {
		problems = append(problems, "max_turns_per_agent must be >= 0")
	}

	if len(problems) == 0 {
		return nil
	}
	return types.NewError(types.ErrConfigInvalid, "invalid conversation config").
		WithHTTPStatus(400).
		WithDetails(problems...)
}
