// Package factory creates llm.Provider instances by kind. It imports the
// provider sub-packages so the llm package itself stays dependency free.
package factory

import (
	"fmt"
	"time"

	"github.com/BaSui01/agentchat/llm"
	"github.com/BaSui01/agentchat/llm/circuitbreaker"
	"github.com/BaSui01/agentchat/llm/providers"
	"github.com/BaSui01/agentchat/llm/providers/gemini"
	"github.com/BaSui01/agentchat/llm/providers/openai"
	"github.com/BaSui01/agentchat/llm/providers/openaicompat"
	"go.uber.org/zap"
)

// ProviderConfig is the flat configuration accepted by the factory.
type ProviderConfig struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Organization string        `json:"organization,omitempty" yaml:"organization,omitempty"`
}

// NewProviderFromConfig creates a Provider for the given kind.
//
// Supported kinds: openai, gemini. Any other kind with a base_url is treated
// as a generic OpenAI-compatible endpoint.
func NewProviderFromConfig(kind string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch kind {
	case "openai":
		return openai.NewOpenAIProvider(providers.OpenAIConfig{
			BaseProviderConfig: base,
			Organization:       cfg.Organization,
		}, logger), nil

	case "gemini":
		return gemini.NewGeminiProvider(providers.GeminiConfig{BaseProviderConfig: base}, logger), nil

	default:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider %q: base_url is required for a generic OpenAI-compatible provider", kind)
		}
		logger.Info("creating generic OpenAI-compatible provider",
			zap.String("provider", kind),
			zap.String("base_url", cfg.BaseURL))
		return openaicompat.New(openaicompat.Config{
			ProviderName: kind,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger), nil
	}
}

// SupportedProviders returns the built-in provider kinds.
func SupportedProviders() []string {
	return []string{"openai", "gemini"}
}

// RegistryConfig describes every provider the service talks to.
type RegistryConfig struct {
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Retry     providers.RetryConfig     `json:"retry" yaml:"retry"`
	// CircuitBreaker is applied per provider. Threshold 0 disables it.
	CircuitBreaker circuitbreaker.Config `json:"circuit_breaker" yaml:"circuit_breaker"`
}

// RegistryOption customizes NewRegistryFromConfig.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	recorder llm.MetricsRecorder
}

// WithMetricsRecorder reports every completion to rec.
func WithMetricsRecorder(rec llm.MetricsRecorder) RegistryOption {
	return func(o *registryOptions) { o.recorder = rec }
}

// NewRegistryFromConfig builds a ProviderRegistry where every provider is
// wrapped in a RetryableProvider and a recovery/logging/metrics middleware
// chain. A provider that fails to initialize is logged and skipped.
func NewRegistryFromConfig(cfg RegistryConfig, logger *zap.Logger, opts ...RegistryOption) *llm.ProviderRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	reg := llm.NewProviderRegistry()
	for name, pcfg := range cfg.Providers {
		p, err := NewProviderFromConfig(name, pcfg, logger)
		if err != nil {
			logger.Warn("skipping provider: initialization failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		chain := llm.NewChain(
			llm.RecoveryMiddleware(func(v any) {
				logger.Error("provider panicked", zap.String("provider", name), zap.Any("panic", v))
			}),
			llm.LoggingMiddleware(name, logger),
		)
		if o.recorder != nil {
			chain.Use(llm.MetricsMiddleware(name, o.recorder))
		}
		if cfg.CircuitBreaker.Threshold > 0 {
			chain.Use(llm.CircuitBreakerMiddleware(name, newBreaker(name, cfg.CircuitBreaker, logger)))
		}
		reg.Register(name, llm.WrapProvider(providers.NewRetryableProvider(p, cfg.Retry, logger), chain))
		logger.Info("provider registered", zap.String("provider", name))
	}
	return reg
}

func newBreaker(name string, cfg circuitbreaker.Config, logger *zap.Logger) circuitbreaker.CircuitBreaker {
	cfg.IsFailure = llm.IsProviderFailure
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("provider circuit state changed",
			zap.String("provider", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	return circuitbreaker.New(cfg, logger.With(zap.String("provider", name)))
}
