package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentchat/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestChooseModel_Priority(t *testing.T) {
	tests := []struct {
		name          string
		req           *llm.ChatRequest
		configModel   string
		defaultModel  string
		expectedModel string
	}{
		{"request wins", &llm.ChatRequest{Model: "request-model"}, "config-model", "default-model", "request-model"},
		{"config when request empty", &llm.ChatRequest{}, "config-model", "default-model", "config-model"},
		{"fallback when both empty", &llm.ChatRequest{}, "", "default-model", "default-model"},
		{"nil request", nil, "", "default-model", "default-model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedModel, ChooseModel(tt.req, tt.configModel, tt.defaultModel))
		})
	}
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		code      llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{http.StatusForbidden, "denied", llm.ErrForbidden, false},
		{http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{http.StatusBadRequest, "You exceeded your current quota", llm.ErrQuotaExceeded, false},
		{http.StatusBadRequest, "API key not valid. Please pass a valid API key.", llm.ErrUnauthorized, false},
		{http.StatusBadRequest, "missing messages", llm.ErrInvalidRequest, false},
		{http.StatusGatewayTimeout, "timeout", llm.ErrUpstreamTimeout, true},
		{http.StatusServiceUnavailable, "down", llm.ErrUpstreamError, true},
		{529, "overloaded", llm.ErrModelOverloaded, true},
		{http.StatusInternalServerError, "boom", llm.ErrUpstreamError, true},
		{http.StatusNotFound, "no model", llm.ErrUpstreamError, false},
	}
	for _, tt := range tests {
		e := MapHTTPError(tt.status, tt.msg, "openai")
		assert.Equal(t, tt.code, e.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, e.Retryable, "status %d", tt.status)
		assert.Equal(t, "openai", e.Provider)
		assert.Equal(t, tt.msg, e.Message)
	}
}

func TestProperty_MapHTTPError_ServerErrorsRetryable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		status := rapid.IntRange(500, 599).Draw(rt, "status")
		e := MapHTTPError(status, "x", "gemini")
		assert.True(rt, e.Retryable)
		assert.Equal(rt, status, e.HTTPStatus)
	})
}

func TestReadErrorMessage(t *testing.T) {
	msg := ReadErrorMessage(strings.NewReader(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	assert.Equal(t, "Incorrect API key (type: invalid_request_error)", msg)

	msg = ReadErrorMessage(strings.NewReader(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	assert.Equal(t, "API key not valid (type: INVALID_ARGUMENT)", msg)

	assert.Equal(t, "plain failure", ReadErrorMessage(strings.NewReader("plain failure\n")))
}

func TestConvertMessagesToOpenAI_SanitizesNames(t *testing.T) {
	out := ConvertMessagesToOpenAI([]llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "hi", Name: "Dr. Who"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "", out[0].Name)
	assert.Equal(t, "Dr__Who", out[1].Name)
}

func TestResolveAPIKey(t *testing.T) {
	assert.Equal(t, "cfg", ResolveAPIKey(context.Background(), "cfg"))
	ctx := llm.WithCredentialOverride(context.Background(), llm.CredentialOverride{APIKey: " override "})
	assert.Equal(t, "override", ResolveAPIKey(ctx, "cfg"))
}

// stubProvider 返回预设的错误序列。
type stubProvider struct {
	calls atomic.Int32
	errs  []error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{Message: llm.Message{Content: "ok"}}}}, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestRetryableProvider_RetriesTransientErrors(t *testing.T) {
	inner := &stubProvider{errs: []error{
		&llm.Error{Code: llm.ErrRateLimited, Retryable: true},
		&llm.Error{Code: llm.ErrUpstreamError, Retryable: true},
	}}
	p := NewRetryableProvider(inner, fastRetry(), zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetryableProvider_StopsOnPermanentError(t *testing.T) {
	inner := &stubProvider{errs: []error{&llm.Error{Code: llm.ErrUnauthorized}}}
	p := NewRetryableProvider(inner, fastRetry(), nil)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())

	plain := &stubProvider{errs: []error{errors.New("boom")}}
	_, err = NewRetryableProvider(plain, fastRetry(), nil).Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), plain.calls.Load())
}

func TestRetryableProvider_GivesUp(t *testing.T) {
	retryable := &llm.Error{Code: llm.ErrUpstreamError, Retryable: true}
	inner := &stubProvider{errs: []error{retryable, retryable, retryable, retryable}}
	p := NewRetryableProvider(inner, fastRetry(), nil)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	var llmErr *llm.Error
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, llm.ErrUpstreamError, llmErr.Code)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetryableProvider_CalculateDelayCapped(t *testing.T) {
	p := NewRetryableProvider(&stubProvider{}, RetryConfig{
		InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2,
	}, nil)
	assert.Equal(t, time.Second, p.calculateDelay(1))
	assert.Equal(t, 2*time.Second, p.calculateDelay(2))
	assert.Equal(t, 3*time.Second, p.calculateDelay(3))
}
