// =============================================================================
// 📦 AgentChat 默认配置
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/agentchat/llm/circuitbreaker"
	"github.com/BaSui01/agentchat/llm/providers"
)

// 发言者选择策略
const (
	SelectorLLM        = "llm"
	SelectorRoundRobin = "round_robin"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Scheduler: DefaultSchedulerConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		OpenAI: providers.OpenAIConfig{
			BaseProviderConfig: providers.BaseProviderConfig{
				BaseURL: "https://api.openai.com",
				Model:   "gpt-4o-mini",
				Timeout: 60 * time.Second,
			},
		},
		Gemini: providers.GeminiConfig{
			BaseProviderConfig: providers.BaseProviderConfig{
				BaseURL: "https://generativelanguage.googleapis.com",
				Model:   "gemini-1.5-flash",
				Timeout: 60 * time.Second,
			},
		},
		Moderator: ModeratorConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Retry:          providers.DefaultRetryConfig(),
		CircuitBreaker: circuitbreaker.DefaultConfig(),
	}
}

// DefaultSchedulerConfig 返回默认调度配置
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:     3 * time.Second,
		CommandPrefix:    "/",
		Selector:         SelectorLLM,
		MaxContextTokens: 12000,
		MaxReplyTokens:   400,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置，默认关闭预设存储
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:   false,
		Addr:      "localhost:6379",
		PoolSize:  10,
		KeyPrefix: "agentchat:",
		PresetTTL: 30 * 24 * time.Hour,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentchat",
		SampleRate:   0.1,
	}
}
