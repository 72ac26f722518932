// 配置加载器测试。
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 3*time.Second, cfg.Scheduler.TickInterval)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 8888
  api_keys: ["k1", "k2"]
llm:
  openai:
    api_key: sk-yaml
    model: gpt-4o
  gemini:
    base_url: http://gemini.local
  moderator:
    provider: gemini
scheduler:
  tick_interval: 5s
  command_prefix: "!"
  selector: round_robin
redis:
  enabled: true
  addr: redis:6379
log:
  level: debug
  format: console
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Server.APIKeys)
	assert.Equal(t, "sk-yaml", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "http://gemini.local", cfg.LLM.Gemini.BaseURL)
	assert.Equal(t, "gemini", cfg.LLM.Moderator.Provider)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, "!", cfg.Scheduler.CommandPrefix)
	assert.Equal(t, SelectorRoundRobin, cfg.Scheduler.Selector)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "console", cfg.Log.Format)

	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, "agentchat:", cfg.Redis.KeyPrefix)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTCHAT_SERVER_HTTP_PORT", "9000")
	t.Setenv("AGENTCHAT_SERVER_CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("AGENTCHAT_LLM_OPENAI_API_KEY", "sk-env")
	t.Setenv("AGENTCHAT_LLM_GEMINI_TIMEOUT", "15s")
	t.Setenv("AGENTCHAT_LLM_RETRY_BACKOFF_FACTOR", "1.5")
	t.Setenv("AGENTCHAT_SCHEDULER_TICK_INTERVAL", "250ms")
	t.Setenv("AGENTCHAT_LLM_CIRCUIT_BREAKER_THRESHOLD", "3")
	t.Setenv("AGENTCHAT_LLM_CIRCUIT_BREAKER_RESET_TIMEOUT", "10s")
	t.Setenv("AGENTCHAT_REDIS_ENABLED", "true")
	t.Setenv("AGENTCHAT_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "sk-env", cfg.LLM.OpenAI.APIKey, "embedded struct fields use the outer prefix")
	assert.Equal(t, 15*time.Second, cfg.LLM.Gemini.Timeout)
	assert.Equal(t, 1.5, cfg.LLM.Retry.BackoffFactor)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.TickInterval)
	assert.Equal(t, 3, cfg.LLM.CircuitBreaker.Threshold)
	assert.Equal(t, 10*time.Second, cfg.LLM.CircuitBreaker.ResetTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  command_prefix: \"!\"\n")
	t.Setenv("AGENTCHAT_SCHEDULER_COMMAND_PREFIX", "#")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "#", cfg.Scheduler.CommandPrefix)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("CHAT_SERVER_HTTP_PORT", "7000")
	t.Setenv("AGENTCHAT_SERVER_HTTP_PORT", "7001")

	cfg, err := NewLoader().WithEnvPrefix("CHAT").Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.HTTPPort)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTCHAT_SCHEDULER_TICK_INTERVAL", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTCHAT_SCHEDULER_TICK_INTERVAL")
}

func TestLoader_WithValidator(t *testing.T) {
	sentinel := errors.New("nope")
	_, err := NewLoader().WithValidator(func(*Config) error { return sentinel }).Load()
	assert.ErrorIs(t, err, sentinel)

	_, err = NewLoader().WithValidator((*Config).Validate).Load()
	assert.NoError(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, "invalid HTTP port"},
		{"port clash", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, "metrics port must differ"},
		{"zero tick", func(c *Config) { c.Scheduler.TickInterval = 0 }, "tick_interval"},
		{"blank prefix", func(c *Config) { c.Scheduler.CommandPrefix = "  " }, "command_prefix"},
		{"unknown selector", func(c *Config) { c.Scheduler.Selector = "random" }, "scheduler.selector"},
		{"bad moderator", func(c *Config) { c.LLM.Moderator.Provider = "anthropic" }, "llm.moderator.provider"},
		{"round robin ignores moderator", func(c *Config) {
			c.Scheduler.Selector = SelectorRoundRobin
			c.LLM.Moderator.Provider = ""
		}, ""},
		{"negative breaker", func(c *Config) { c.LLM.CircuitBreaker.Threshold = -1 }, "circuit_breaker"},
		{"breaker disabled", func(c *Config) { c.LLM.CircuitBreaker.Threshold = 0 }, ""},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  selector: random\n")
	assert.Panics(t, func() { MustLoad(path) })

	ok := writeConfig(t, "server:\n  http_port: 8181\n")
	assert.Equal(t, 8181, MustLoad(ok).Server.HTTPPort)
}
