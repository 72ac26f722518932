package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/agentchat/agent/conversation"
	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/testutil/mocks"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

type gaugeRecorder struct{ n atomic.Int64 }

func (g *gaugeRecorder) SetActiveConversations(n int) { g.n.Store(int64(n)) }

type testAPI struct {
	mux     *http.ServeMux
	manager *conversation.Manager
	openai  *mocks.MockProvider
	gauge   *gaugeRecorder
}

func newTestAPI(t *testing.T, presets PresetReader) *testAPI {
	t.Helper()
	openai := mocks.NewSuccessProvider("Cars make downtown noisy.").WithName("openai")
	gemini := mocks.NewSuccessProvider("Shops depend on parking.").WithName("gemini")
	reg := llm.NewProviderRegistry()
	reg.Register("openai", openai)
	reg.Register("gemini", gemini)

	mgr := conversation.NewManager(conversation.ManagerOptions{
		Generator:    conversation.NewLLMGenerator(reg, nil),
		TickInterval: -1,
	})
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })

	gauge := &gaugeRecorder{}
	mux := http.NewServeMux()
	NewConversationHandler(mgr, presets, gauge, nil).RegisterRoutes(mux)
	NewStreamHandler(mgr, nil, nil).RegisterRoutes(mux)

	return &testAPI{mux: mux, manager: mgr, openai: openai, gauge: gauge}
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data"`
	Error   *ErrorInfo `json:"error"`
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
