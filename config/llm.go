package config

import (
	"github.com/BaSui01/agentchat/llm/factory"
	"github.com/BaSui01/agentchat/llm/providers"
)

// Registry converts the LLM section into the factory's registry config.
// Both built-in providers are always registered; requests without a
// server-side key rely on per-conversation credentials.
func (c LLMConfig) Registry() factory.RegistryConfig {
	return factory.RegistryConfig{
		Providers: map[string]factory.ProviderConfig{
			"openai": toProviderConfig(c.OpenAI.BaseProviderConfig, c.OpenAI.Organization),
			"gemini": toProviderConfig(c.Gemini.BaseProviderConfig, ""),
		},
		Retry:          c.Retry,
		CircuitBreaker: c.CircuitBreaker,
	}
}

func toProviderConfig(b providers.BaseProviderConfig, org string) factory.ProviderConfig {
	return factory.ProviderConfig{
		APIKey:       b.APIKey,
		BaseURL:      b.BaseURL,
		Model:        b.Model,
		Timeout:      b.Timeout,
		Organization: org,
	}
}
