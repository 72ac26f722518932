package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/BaSui01/agentchat/agent/conversation"
	"github.com/BaSui01/agentchat/api"
	"github.com/BaSui01/agentchat/internal/cache"
	"github.com/BaSui01/agentchat/testutil"
	"github.com/BaSui01/agentchat/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createBody = `{
	"topic": "Should cities ban cars from downtown?",
	"agents": [
		{"name": "Alice", "persona": "Optimist", "provider": "openai"},
		{"name": "Bob", "persona": "Skeptic", "provider": "gemini"}
	],
	"max_turns_per_agent": 2,
	"credentials": {"openai": "sk-test-secret"}
}`

func createConversation(t *testing.T, a *testAPI) api.ConversationResponse {
	t.Helper()
	w := serve(t, a.mux, http.MethodPost, "/api/v1/conversations", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeEnvelope[api.ConversationResponse](t, w).Data
}

func waitIdle(t *testing.T, a *testAPI, id string) conversation.State {
	t.Helper()
	sess, err := a.manager.Get(id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !sess.State().TurnInFlight }, 2*time.Second, 5*time.Millisecond)
	return sess.State()
}

func TestConversationHandler_Create(t *testing.T) {
	a := newTestAPI(t, nil)
	w := serve(t, a.mux, http.MethodPost, "/api/v1/conversations", createBody)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "sk-test-secret")

	resp := decodeEnvelope[api.ConversationResponse](t, w).Data
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, conversation.StatusRunning, resp.State.Status)
	assert.Equal(t, "Should cities ban cars from downtown?", resp.State.Topic)
	assert.Equal(t, map[string]int{"Alice": 2, "Bob": 2}, resp.State.Budgets)
	assert.Equal(t, int64(1), a.gauge.n.Load())

	// 首个 tick 在启动时立即触发，凭据透传给 provider
	st := waitIdle(t, a, resp.ID)
	last, ok := st.Transcript.Last()
	require.True(t, ok)
	assert.Equal(t, conversation.RecordAgent, last.Kind)
	require.Eventually(t, func() bool { return a.openai.GetCallCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "sk-test-secret", a.openai.GetLastCall().Credential.APIKey)
}

func TestConversationHandler_CreateRejected(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"one agent", `{"topic":"t","agents":[{"name":"A","provider":"openai"}]}`, http.StatusBadRequest, "CONFIG_INVALID"},
		{"bad provider", `{"topic":"t","agents":[{"name":"A","provider":"openai"},{"name":"B","provider":"claude"}]}`, http.StatusBadRequest, "CONFIG_INVALID"},
		{"bad credential kind", `{"topic":"t","agents":[{"name":"A","provider":"openai"},{"name":"B","provider":"gemini"}],"credentials":{"claude":"k"}}`, http.StatusBadRequest, "CONFIG_INVALID"},
		{"unknown field", `{"topic":"t","roster":[]}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"preset disabled", `{"preset":"x"}`, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, a.mux, http.MethodPost, "/api/v1/conversations", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			env := decodeEnvelope[any](t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
	assert.Zero(t, a.manager.Len())
}

func TestConversationHandler_CreateAcceptsMixedCaseProvider(t *testing.T) {
	a := newTestAPI(t, nil)

	body := `{"topic":"t","agents":[{"name":"A","provider":"OpenAI"},{"name":"B","provider":"Gemini"}],` +
		`"credentials":{"OPENAI":"sk-mixed"}}`
	w := serve(t, a.mux, http.MethodPost, "/api/v1/conversations", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeEnvelope[api.ConversationResponse](t, w).Data
	require.Len(t, resp.State.Roster, 2)
	assert.Equal(t, conversation.ProviderOpenAI, resp.State.Roster[0].Provider)
	assert.Equal(t, conversation.ProviderGemini, resp.State.Roster[1].Provider)
	require.Eventually(t, func() bool { return a.openai.GetCallCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "sk-mixed", a.openai.GetLastCall().Credential.APIKey)
}

type presetMap map[string]cache.Preset

func (m presetMap) Get(_ context.Context, name string) (cache.Preset, error) {
	p, ok := m[name]
	if !ok {
		return cache.Preset{}, cache.ErrPresetNotFound
	}
	return p, nil
}

func TestConversationHandler_CreateFromPreset(t *testing.T) {
	presets := presetMap{"remote": cache.PresetFromConfig("remote", fixtures.BudgetedConfig(1))}
	a := newTestAPI(t, presets)

	w := serve(t, a.mux, http.MethodPost, "/api/v1/conversations", `{"preset":"remote","topic":"ignored"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	st := decodeEnvelope[api.ConversationResponse](t, w).Data.State
	assert.Equal(t, "Is remote work here to stay?", st.Topic)
	assert.Len(t, st.Roster, 3)
	assert.Equal(t, 1, st.MaxTurnsPerAgent)

	w = serve(t, a.mux, http.MethodPost, "/api/v1/conversations", `{"preset":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_Lifecycle(t *testing.T) {
	a := newTestAPI(t, nil)
	id := createConversation(t, a).ID
	base := "/api/v1/conversations/" + id

	steps := []struct {
		path       string
		wantStatus int
		wantState  conversation.Status
		wantCode   string
	}{
		{"/pause", http.StatusOK, conversation.StatusPaused, ""},
		{"/pause", http.StatusConflict, "", "INVALID_TRANSITION"},
		{"/resume", http.StatusOK, conversation.StatusRunning, ""},
		{"/stop", http.StatusOK, conversation.StatusStopped, ""},
		{"/stop", http.StatusOK, conversation.StatusStopped, ""},
		{"/resume", http.StatusConflict, "", "INVALID_TRANSITION"},
	}
	for _, step := range steps {
		w := serve(t, a.mux, http.MethodPost, base+step.path, "")
		require.Equal(t, step.wantStatus, w.Code, "%s: %s", step.path, w.Body.String())
		env := decodeEnvelope[api.ConversationResponse](t, w)
		if step.wantCode != "" {
			assert.Equal(t, step.wantCode, env.Error.Code)
			continue
		}
		assert.Equal(t, step.wantState, env.Data.State.Status, step.path)
	}
}

func TestConversationHandler_GaugeExcludesStopped(t *testing.T) {
	a := newTestAPI(t, nil)
	first := createConversation(t, a).ID
	second := createConversation(t, a).ID
	assert.Equal(t, int64(2), a.gauge.n.Load())

	w := serve(t, a.mux, http.MethodPost, "/api/v1/conversations/"+first+"/stop", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(1), a.gauge.n.Load(), "stopped sessions are not active")

	waitIdle(t, a, second)
	w = serve(t, a.mux, http.MethodPost, "/api/v1/conversations/"+second+"/messages", `{"content":"/stop"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, a.gauge.n.Load())

	// 已停止的会话仍然登记，直到被删除
	assert.Equal(t, 2, a.manager.Len())
	w = serve(t, a.mux, http.MethodDelete, "/api/v1/conversations/"+first, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, a.gauge.n.Load())
}

func TestConversationHandler_Messages(t *testing.T) {
	a := newTestAPI(t, nil)
	id := createConversation(t, a).ID
	waitIdle(t, a, id)
	path := "/api/v1/conversations/" + id + "/messages"

	w := serve(t, a.mux, http.MethodPost, path, `{"content":"  /PAUSE "}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope[api.MessageResponse](t, w).Data
	assert.True(t, resp.Command)
	assert.Equal(t, conversation.StatusPaused, resp.State.Status)
	before := resp.State.Transcript.Len()

	w = serve(t, a.mux, http.MethodPost, path, `{"content":"What about buses?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeEnvelope[api.MessageResponse](t, w).Data
	assert.False(t, resp.Command)
	require.Equal(t, before+1, resp.State.Transcript.Len())
	last, _ := resp.State.Transcript.Last()
	assert.Equal(t, conversation.RecordUser, last.Kind)
	assert.Equal(t, "What about buses?", last.Content)

	w = serve(t, a.mux, http.MethodPost, path, `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, a.mux, http.MethodPost, path, `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConversationHandler_Tick(t *testing.T) {
	a := newTestAPI(t, nil)
	id := createConversation(t, a).ID
	waitIdle(t, a, id)
	base := "/api/v1/conversations/" + id

	w := serve(t, a.mux, http.MethodPost, base+"/tick", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeEnvelope[api.TickResponse](t, w).Data.Started)
	st := waitIdle(t, a, id)
	assert.Equal(t, 3, st.Transcript.Len(), "announcement plus two agent turns")

	serve(t, a.mux, http.MethodPost, base+"/pause", "")
	w = serve(t, a.mux, http.MethodPost, base+"/tick", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeEnvelope[api.TickResponse](t, w).Data.Started, "ticks are no-ops while paused")
}

func TestConversationHandler_ListGetDelete(t *testing.T) {
	a := newTestAPI(t, nil)
	first := createConversation(t, a)
	second := createConversation(t, a)
	assert.Equal(t, int64(2), a.gauge.n.Load())

	w := serve(t, a.mux, http.MethodGet, "/api/v1/conversations", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeEnvelope[[]api.ConversationSummary](t, w).Data
	require.Len(t, list, 2)
	assert.Equal(t, []string{"Alice", "Bob"}, list[0].Agents)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	w = serve(t, a.mux, http.MethodGet, "/api/v1/conversations/"+first.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decodeEnvelope[api.ConversationResponse](t, w).Data.ID)

	w = serve(t, a.mux, http.MethodDelete, "/api/v1/conversations/"+first.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(1), a.gauge.n.Load())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w = serve(t, a.mux, method, "/api/v1/conversations/"+first.ID, "")
		assert.Equal(t, http.StatusNotFound, w.Code, method)
		assert.Equal(t, "NOT_FOUND", decodeEnvelope[any](t, w).Error.Code)
	}
}

func TestConversationHandler_ContentType(t *testing.T) {
	a := newTestAPI(t, nil)
	req := testutil.MustJSON(map[string]string{"topic": "x"})
	w := serve(t, a.mux, http.MethodPost, "/api/v1/conversations", req)
	assert.NotEqual(t, http.StatusUnsupportedMediaType, w.Code)

	r := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("Content-Type", "text/plain")
		a.mux.ServeHTTP(w, r)
	}), http.MethodPost, "/api/v1/conversations", req)
	assert.Equal(t, http.StatusUnsupportedMediaType, r.Code)
}
