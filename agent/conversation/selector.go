package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/agentchat/llm"
	"go.uber.org/zap"
)

// SelectionRequest 是选择下一位发言人所需的输入。
type SelectionRequest struct {
	Topic      string
	Roster     []Agent
	Transcript Transcript
}

// SpeakerSelector 返回下一位发言人的名字。
// 名字无法匹配 roster 时由调度器回退到 roster[0]；
// 返回错误表示本轮没有可用发言人，调度器放弃这次 tick。
type SpeakerSelector interface {
	SelectNext(ctx context.Context, req SelectionRequest) (string, error)
}

// ErrEmptyRoster is returned when a selection is requested with no agents.
var ErrEmptyRoster = errors.New("conversation: roster is empty")

// =============================================================================
// RoundRobinSelector
// =============================================================================

// RoundRobinSelector picks the roster entry after the last agent who spoke.
// It derives everything from the transcript and holds no state.
type RoundRobinSelector struct{}

func (RoundRobinSelector) SelectNext(_ context.Context, req SelectionRequest) (string, error) {
	if len(req.Roster) == 0 {
		return "", ErrEmptyRoster
	}
	last, ok := req.Transcript.LastAgentRecord()
	if !ok {
		return req.Roster[0].Name, nil
	}
	for i, a := range req.Roster {
		if a.Name == last.AgentName {
			return req.Roster[(i+1)%len(req.Roster)].Name, nil
		}
	}
	return req.Roster[0].Name, nil
}

// =============================================================================
// LLMSelector
// =============================================================================

const defaultSelectorHistory = 20

// LLMSelector asks a moderator model which participant should speak next.
type LLMSelector struct {
	provider llm.Provider
	model    string
	history  int
	apiKey   string
	logger   *zap.Logger
}

// LLMSelectorOption configures an LLMSelector.
type LLMSelectorOption func(*LLMSelector)

// WithSelectorModel overrides the moderator model.
func WithSelectorModel(model string) LLMSelectorOption {
	return func(s *LLMSelector) { s.model = model }
}

// WithSelectorHistory limits how many recent records the moderator sees.
func WithSelectorHistory(n int) LLMSelectorOption {
	return func(s *LLMSelector) {
		if n > 0 {
			s.history = n
		}
	}
}

// WithSelectorCredential makes moderator calls with the caller's API key
// instead of the server-side one.
func WithSelectorCredential(apiKey string) LLMSelectorOption {
	return func(s *LLMSelector) { s.apiKey = apiKey }
}

// NewLLMSelector creates a moderator-backed selector.
func NewLLMSelector(provider llm.Provider, logger *zap.Logger, opts ...LLMSelectorOption) *LLMSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LLMSelector{
		provider: provider,
		history:  defaultSelectorHistory,
		logger:   logger.With(zap.String("component", "speaker_selector")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectNext returns the moderator's choice. Upstream failures and
// unparseable answers yield "" so the scheduler falls back; only context
// cancellation is reported as an error.
func (s *LLMSelector) SelectNext(ctx context.Context, req SelectionRequest) (string, error) {
	if len(req.Roster) == 0 {
		return "", ErrEmptyRoster
	}

	ctx = llm.WithCredentialOverride(ctx, llm.CredentialOverride{APIKey: s.apiKey})
	resp, err := s.provider.Completion(ctx, &llm.ChatRequest{
		Model:       s.model,
		Messages:    s.buildPrompt(req),
		MaxTokens:   32,
		Temperature: 0.2,
		Metadata:    map[string]string{"purpose": "speaker_selection"},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		s.logger.Warn("moderator call failed, falling back", zap.Error(err))
		return "", nil
	}

	text, err := llm.ResponseText(resp)
	if err != nil {
		s.logger.Warn("moderator returned no usable text, falling back", zap.Error(err))
		return "", nil
	}

	name, ok := ParseSpeaker(text, req.Roster)
	if !ok {
		s.logger.Warn("moderator answer did not name a participant", zap.String("answer", text))
		return "", nil
	}
	return name, nil
}

func (s *LLMSelector) buildPrompt(req SelectionRequest) []llm.Message {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You moderate a group discussion about: %s\n\nParticipants:\n", req.Topic)
	for _, a := range req.Roster {
		fmt.Fprintf(&sys, "- %s: %s\n", a.Name, oneLine(a.Persona))
	}
	sys.WriteString("\nDecide who should speak next so the discussion stays varied and on topic. " +
		"Prefer participants who have not spoken recently or who were addressed directly. " +
		"Answer with the participant's name only.")

	var hist strings.Builder
	hist.WriteString("Recent discussion:\n")
	recent := req.Transcript.Tail(s.history)
	if recent.Len() == 0 {
		hist.WriteString("(nobody has spoken yet)\n")
	}
	for rec := range recent.Render() {
		fmt.Fprintf(&hist, "%s: %s\n", speakerLabel(rec), oneLine(rec.Content))
	}
	names := make([]string, len(req.Roster))
	for i, a := range req.Roster {
		names[i] = a.Name
	}
	fmt.Fprintf(&hist, "\nWho speaks next? Choose one of: %s", strings.Join(names, ", "))

	return []llm.Message{
		{Role: llm.RoleSystem, Content: sys.String()},
		{Role: llm.RoleUser, Content: hist.String()},
	}
}

func speakerLabel(rec TurnRecord) string {
	switch rec.Kind {
	case RecordAgent:
		return rec.AgentName
	case RecordUser:
		return "User"
	default:
		return "System"
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var speakerPrefixes = []string{"next speaker:", "next speaker is", "speaker:", "next:", "name:"}

// ParseSpeaker extracts a roster name from a moderator answer. It strips
// quotes, markdown and "Next speaker:" style prefixes and matches
// case-insensitively. When the answer is a sentence, it succeeds only if
// exactly one roster name appears in it as a whole word.
func ParseSpeaker(answer string, roster []Agent) (string, bool) {
	line := strings.TrimSpace(answer)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	lower := strings.ToLower(line)
	for _, p := range speakerPrefixes {
		if strings.HasPrefix(lower, p) {
			line = line[len(p):]
			break
		}
	}
	line = strings.Trim(line, " \t\"'`*_.,!?:;()[]<>")

	for _, a := range roster {
		if strings.EqualFold(line, a.Name) {
			return a.Name, true
		}
	}

	var found string
	for _, a := range roster {
		if containsWord(answer, a.Name) {
			if found != "" {
				return "", false
			}
			found = a.Name
		}
	}
	return found, found != ""
}

func containsWord(text, word string) bool {
	re := regexp.MustCompile(`(?i)(^|[^\pL\pN_])` + regexp.QuoteMeta(word) + `($|[^\pL\pN_])`)
	return re.MatchString(text)
}

// resolveSpeaker maps a selector answer to a roster entry: exact name
// first, then a unique case-insensitive match.
func resolveSpeaker(name string, roster []Agent) (Agent, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Agent{}, false
	}
	for _, a := range roster {
		if a.Name == name {
			return a, true
		}
	}
	var match Agent
	n := 0
	for _, a := range roster {
		if strings.EqualFold(a.Name, name) {
			match = a
			n++
		}
	}
	return match, n == 1
}
