package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxConcurrent)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	require.NoError(t, cfg.Validate())
}

func TestNewConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithProvider("  Anthropic "),
		WithModel("claude-sonnet-4-5"),
		WithAPIKey("sk-test"),
		WithTimeout(30*time.Second),
		WithMaxConcurrent(2),
		WithRequestInterval(500*time.Millisecond),
		WithMaxRetries(5),
		WithRetryDelay(time.Second),
		WithEmbedding("http://localhost:11434/v1", "embeddinggemma", "none"),
	)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxConcurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.RequestInterval)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "palm" }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"empty embedding model", func(c *Config) { c.EmbeddingModel = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
