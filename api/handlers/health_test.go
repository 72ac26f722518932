package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProviders map[string]error

func (s stubProviders) HealthCheckAll(context.Context) map[string]error { return s }

func readyStatus(t *testing.T, h *HealthHandler) (int, HealthStatus) {
	t.Helper()
	w := httptest.NewRecorder()
	h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	return w.Code, status
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, "1.0.0", "2026-01-01", "abc123")

	for _, path := range []string{"/health", "/healthz"} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", data["version"])
	assert.Equal(t, "abc123", data["git_commit"])
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		critical   error
		optional   error
		wantCode   int
		wantStatus string
	}{
		{"all pass", nil, nil, http.StatusOK, StatusHealthy},
		{"optional fails", nil, errors.New("quota"), http.StatusOK, StatusDegraded},
		{"critical fails", errors.New("redis down"), nil, http.StatusServiceUnavailable, StatusUnhealthy},
		{"both fail", errors.New("redis down"), errors.New("quota"), http.StatusServiceUnavailable, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(nil)
			h.RegisterCheck(NewFuncCheck("redis", func(context.Context) error { return tt.critical }))
			h.RegisterOptionalCheck(NewFuncCheck("llm", func(context.Context) error { return tt.optional }))

			code, status := readyStatus(t, h)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, status.Status)
			require.Len(t, status.Checks, 2)
			assert.True(t, status.Checks["redis"].Critical)
			assert.False(t, status.Checks["llm"].Critical)
			if tt.critical != nil {
				assert.Equal(t, "fail", status.Checks["redis"].Status)
				assert.Equal(t, tt.critical.Error(), status.Checks["redis"].Message)
			}
		})
	}
}

func TestProviderHealthCheck(t *testing.T) {
	ok := NewProviderHealthCheck(stubProviders{"openai": nil, "gemini": nil})
	assert.Equal(t, "llm_providers", ok.Name())
	assert.NoError(t, ok.Check(context.Background()))

	bad := NewProviderHealthCheck(stubProviders{
		"openai": errors.New("401"),
		"gemini": errors.New("unreachable"),
	})
	err := bad.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, "gemini: unreachable\nopenai: 401", err.Error())
}

func TestHealthHandler_ConcurrentReady(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	for i := 0; i < 10; i++ {
		h.RegisterCheck(NewFuncCheck(string(rune('a'+i)), func(context.Context) error { return nil }))
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()
}
