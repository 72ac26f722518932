package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentchat/llm/circuitbreaker"
	"go.uber.org/zap"
)

// Handler processes a request and returns a response.
type Handler func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

// Middleware wraps a handler with additional functionality.
type Middleware func(next Handler) Handler

// Chain represents a middleware chain.
type Chain struct {
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewChain creates a new middleware chain.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use adds middleware to the chain.
func (c *Chain) Use(m Middleware) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, m)
	return c
}

// Then wraps a handler with all middleware. The first middleware added is
// the outermost.
func (c *Chain) Then(h Handler) Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// Len returns the number of middleware.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.middlewares)
}

// LoggingMiddleware logs every completion at debug level and failures at warn.
func LoggingMiddleware(provider string, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "llm"), zap.String("provider", provider))
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("model", req.Model),
				zap.Int("messages", len(req.Messages)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("completion failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("completion", append(fields, zap.Int("total_tokens", resp.Usage.TotalTokens))...)
			return resp, nil
		}
	}
}

// TimeoutMiddleware adds timeout to requests that do not carry their own.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			if timeout <= 0 || req.Timeout > 0 {
				return next(ctx, req)
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// RecoveryMiddleware turns a panicking provider into a PanicError.
func RecoveryMiddleware(onPanic func(any)) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (resp *ChatResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					if onPanic != nil {
						onPanic(r)
					}
					resp, err = nil, &PanicError{Value: r}
				}
			}()
			return next(ctx, req)
		}
	}
}

// PanicError represents a recovered panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.Value)
}

// MetricsRecorder receives one observation per completion.
// internal/metrics.Collector implements it.
type MetricsRecorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// MetricsMiddleware reports status, latency and token usage.
func MetricsMiddleware(provider string, recorder MetricsRecorder) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			status := "success"
			var prompt, completion int
			switch {
			case err != nil:
				status = "error"
				var le *Error
				if errors.As(err, &le) {
					status = string(le.Code)
				}
			case resp != nil:
				prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
			}
			model := req.Model
			if resp != nil && resp.Model != "" {
				model = resp.Model
			}
			recorder.RecordLLMRequest(provider, model, status, time.Since(start), prompt, completion)
			return resp, err
		}
	}
}

// IsProviderFailure reports whether err indicates the upstream itself is
// unhealthy. Caller-side problems (bad key, rate limit, invalid request)
// and cancellation do not count.
func IsProviderFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var le *Error
	if errors.As(err, &le) {
		switch le.Code {
		case ErrUpstreamError, ErrUpstreamTimeout, ErrProviderUnavailable:
			return true
		}
		return false
	}
	return true
}

// CircuitBreakerMiddleware fails fast with ErrProviderUnavailable while the
// breaker is open.
func CircuitBreakerMiddleware(provider string, cb circuitbreaker.CircuitBreaker) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			resp, err := circuitbreaker.Do(ctx, cb, func(ctx context.Context) (*ChatResponse, error) {
				return next(ctx, req)
			})
			if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrTooManyCallsInHalfOpen) {
				return nil, &Error{
					Code:       ErrProviderUnavailable,
					Message:    fmt.Sprintf("%s is temporarily unavailable: %v", provider, err),
					HTTPStatus: 503,
					Provider:   provider,
				}
			}
			return resp, err
		}
	}
}

// =============================================================================
// Provider wrapper
// =============================================================================

type chainedProvider struct {
	inner   Provider
	handler Handler
}

// WrapProvider returns a Provider whose Completion runs through chain.
// HealthCheck and Name are delegated unchanged.
func WrapProvider(p Provider, chain *Chain) Provider {
	if chain == nil || chain.Len() == 0 {
		return p
	}
	return &chainedProvider{inner: p, handler: chain.Then(p.Completion)}
}

func (p *chainedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return p.handler(ctx, req)
}

func (p *chainedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

func (p *chainedProvider) Name() string { return p.inner.Name() }
