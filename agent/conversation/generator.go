package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/llm/tokenizer"
	"go.uber.org/zap"
)

// GenerationRequest 是生成一轮发言所需的输入。
type GenerationRequest struct {
	Agent       Agent
	Transcript  Transcript
	Topic       string
	Instruction string
	Credentials Credentials
}

// ResponseGenerator 为选中的 Agent 生成非空回复，失败时返回 *GenerationError。
type ResponseGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GenerationCause classifies why a turn could not be generated.
type GenerationCause string

const (
	CauseUnauthenticated     GenerationCause = "unauthenticated"
	CauseRateLimited         GenerationCause = "rate-limited"
	CauseMalformedResponse   GenerationCause = "malformed-response"
	CauseProviderUnreachable GenerationCause = "provider-unreachable"
	CauseUnsupportedProvider GenerationCause = "unsupported-provider-kind"
)

// GenerationError 描述一次失败的生成。Error() 的文本会原样写入 transcript。
type GenerationError struct {
	Agent    string
	Provider ProviderKind
	Cause    GenerationCause
	Message  string
	Err      error
}

func (e *GenerationError) Error() string {
	var reason string
	switch e.Cause {
	case CauseUnauthenticated:
		reason = fmt.Sprintf("the %s API key was rejected", e.Provider)
	case CauseRateLimited:
		reason = fmt.Sprintf("%s is rate limiting requests", e.Provider)
	case CauseMalformedResponse:
		reason = fmt.Sprintf("%s returned a response that could not be used", e.Provider)
	case CauseUnsupportedProvider:
		reason = fmt.Sprintf("provider %q is not supported", e.Provider)
	default:
		reason = fmt.Sprintf("%s could not be reached", e.Provider)
	}
	msg := fmt.Sprintf("%s could not respond: %s", e.Agent, reason)
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ClassifyGenerationError maps a provider error to a GenerationError.
func ClassifyGenerationError(agent Agent, err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr
	}
	ge := &GenerationError{Agent: agent.Name, Provider: agent.Provider, Cause: CauseProviderUnreachable, Err: err}

	var llmErr *llm.Error
	switch {
	case errors.As(err, &llmErr):
		ge.Message = truncate(llmErr.Message, 200)
		switch llmErr.Code {
		case llm.ErrUnauthorized, llm.ErrForbidden:
			ge.Cause = CauseUnauthenticated
		case llm.ErrRateLimited, llm.ErrQuotaExceeded, llm.ErrModelOverloaded:
			ge.Cause = CauseRateLimited
		case llm.ErrMalformedResponse, llm.ErrInvalidRequest, llm.ErrContentFiltered:
			ge.Cause = CauseMalformedResponse
		}
	case errors.Is(err, context.DeadlineExceeded):
		ge.Message = "request timed out"
	case errors.Is(err, context.Canceled):
		ge.Message = "request cancelled"
	default:
		ge.Message = truncate(err.Error(), 200)
	}
	return ge
}

func truncate(s string, n int) string {
	s = oneLine(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

// ProviderLookup resolves a provider by kind. *llm.ProviderRegistry
// satisfies it.
type ProviderLookup interface {
	Get(name string) (llm.Provider, bool)
}

// LLMGenerator routes each agent to the provider registered for its kind.
type LLMGenerator struct {
	providers        ProviderLookup
	maxContextTokens int
	maxReplyTokens   int
	logger           *zap.Logger
}

// GeneratorOption configures an LLMGenerator.
type GeneratorOption func(*LLMGenerator)

// WithContextTokenLimit sends only the most recent records that fit in n
// tokens. The opening topic record is always kept. 0 disables the limit.
func WithContextTokenLimit(n int) GeneratorOption {
	return func(g *LLMGenerator) { g.maxContextTokens = n }
}

// WithMaxReplyTokens caps the reply length requested from the provider.
func WithMaxReplyTokens(n int) GeneratorOption {
	return func(g *LLMGenerator) { g.maxReplyTokens = n }
}

// NewLLMGenerator creates a generator backed by providers.
func NewLLMGenerator(providers ProviderLookup, logger *zap.Logger, opts ...GeneratorOption) *LLMGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &LLMGenerator{
		providers: providers,
		logger:    logger.With(zap.String("component", "response_generator")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the agent's next contribution.
func (g *LLMGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	agent := req.Agent
	p, ok := g.providers.Get(string(agent.Provider))
	if !ok {
		return "", &GenerationError{Agent: agent.Name, Provider: agent.Provider, Cause: CauseUnsupportedProvider}
	}

	ctx = llm.WithCredentialOverride(ctx, llm.CredentialOverride{APIKey: req.Credentials.APIKey(agent.Provider)})
	resp, err := p.Completion(ctx, &llm.ChatRequest{
		Model:     agent.Model,
		Messages:  g.buildMessages(req),
		MaxTokens: g.maxReplyTokens,
		Metadata:  map[string]string{"agent": agent.Name},
	})
	if err != nil {
		ge := ClassifyGenerationError(agent, err)
		g.logger.Warn("generation failed",
			zap.String("agent", agent.Name),
			zap.String("provider", string(agent.Provider)),
			zap.String("cause", string(ge.Cause)),
			zap.Error(err))
		return "", ge
	}

	text, err := llm.ResponseText(resp)
	if err != nil {
		return "", ClassifyGenerationError(agent, err)
	}
	return stripSpeakerPrefix(text, agent.Name), nil
}

// buildMessages 构造单个 Agent 的提示词：
// system（共享指令 + 角色 + 话题）→ transcript → 轮到你了。
func (g *LLMGenerator) buildMessages(req GenerationRequest) []llm.Message {
	agent := req.Agent

	var sys strings.Builder
	if in := strings.TrimSpace(req.Instruction); in != "" {
		sys.WriteString(in)
		sys.WriteString("\n\n")
	}
	fmt.Fprintf(&sys, "You are %s.", agent.Name)
	if p := strings.TrimSpace(agent.Persona); p != "" {
		sys.WriteString(" " + p)
	}
	fmt.Fprintf(&sys, "\n\nYou are taking part in a group discussion about: %s\n", req.Topic)
	sys.WriteString("Other participants' messages are prefixed with their names. " +
		"Reply with your own next contribution only, in your own voice, without prefixing your name.")

	head := []llm.Message{{Role: llm.RoleSystem, Content: sys.String()}}
	cue := llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("It is your turn, %s.", agent.Name)}

	history := make([]llm.Message, 0, req.Transcript.Len())
	for rec := range req.Transcript.Render() {
		history = append(history, recordToMessage(rec, agent.Name))
	}
	history = g.fitContext(agent, head, history, cue)

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, head...)
	msgs = append(msgs, history...)
	return append(msgs, cue)
}

func recordToMessage(rec TurnRecord, self string) llm.Message {
	switch rec.Kind {
	case RecordAgent:
		if rec.AgentName == self {
			return llm.Message{Role: llm.RoleAssistant, Content: rec.Content}
		}
		return llm.Message{Role: llm.RoleUser, Content: rec.AgentName + ": " + rec.Content, Name: rec.AgentName}
	case RecordUser:
		return llm.Message{Role: llm.RoleUser, Content: "User: " + rec.Content}
	default:
		return llm.Message{Role: llm.RoleSystem, Content: rec.Content}
	}
}

// fitContext 在 maxContextTokens > 0 时从最新记录向前保留，直到超出预算；
// 第一条（话题公告）始终保留。
func (g *LLMGenerator) fitContext(agent Agent, head, history []llm.Message, cue llm.Message) []llm.Message {
	if g.maxContextTokens <= 0 || len(history) == 0 {
		return history
	}
	tk := tokenizer.ForModel(string(agent.Provider), agent.Model)
	count := func(m llm.Message) int {
		n, _ := tk.CountMessages([]tokenizer.Message{{Role: string(m.Role), Content: m.Content}})
		return n
	}

	used := count(cue) + count(history[0])
	for _, m := range head {
		used += count(m)
	}

	keepFrom := len(history)
	for i := len(history) - 1; i >= 1; i-- {
		n := count(history[i])
		if used+n > g.maxContextTokens {
			break
		}
		used += n
		keepFrom = i
	}
	if keepFrom == 1 {
		return history
	}

	g.logger.Debug("trimmed transcript to context window",
		zap.String("agent", agent.Name),
		zap.Int("dropped", keepFrom-1),
		zap.Int("tokens", used))
	out := make([]llm.Message, 0, len(history)-keepFrom+1)
	out = append(out, history[0])
	return append(out, history[keepFrom:]...)
}

// stripSpeakerPrefix 去掉模型自作主张加上的 "Name:" 前缀。
func stripSpeakerPrefix(text, name string) string {
	for _, p := range []string{name + ":", "**" + name + ":**", "**" + name + "**:"} {
		if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
			if rest := strings.TrimSpace(text[len(p):]); rest != "" {
				return rest
			}
		}
	}
	return text
}
