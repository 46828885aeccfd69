// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"strings"
	"time"
)

// Provider names understood by the backend subpackages.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogleAI  = "googleai"
	ProviderOllama    = "ollama"
)

// Providers lists every supported provider name.
var Providers = []string{ProviderOpenAI, ProviderAnthropic, ProviderGoogleAI, ProviderOllama}

// Config holds configuration for LLM and embedding services.
type Config struct {
	// Provider selects the backend wire protocol. One of Providers.
	Provider string

	// Host is the provider base URL. Empty uses the provider's default
	// endpoint; for OpenAI-compatible local services something like
	// "http://localhost:11434/v1".
	Host string

	// Model is the completion model identifier.
	// Example: "gpt-4o-mini", "claude-sonnet-4-5", "qwen2.5:3b"
	Model string

	// APIKey authenticates completion calls. May be empty for local
	// services that require no authentication.
	APIKey string

	// Timeout bounds one completion or embedding call.
	// Default: 60s.
	Timeout time.Duration

	// MaxConcurrent is the global ceiling on in-flight completion calls.
	// Default: 5.
	MaxConcurrent int

	// RequestInterval is the minimum spacing between request launches.
	// Zero disables spacing.
	RequestInterval time.Duration

	// MaxRetries is how many times a retryable failure is requeued before
	// the call fails. Default: 3.
	MaxRetries int

	// RetryDelay is the base requeue delay; it doubles per retry and is
	// capped at MaxBackoff. Default: 2s.
	RetryDelay time.Duration

	// MaxBackoff caps the requeue delay. Default: 60s.
	MaxBackoff time.Duration

	// EmbeddingHost is the base URL of the OpenAI-compatible embedding
	// service. Empty uses the provider default.
	EmbeddingHost string

	// EmbeddingModel is the embedding model identifier.
	// Default: "text-embedding-3-small".
	EmbeddingModel string

	// EmbeddingAPIKey authenticates embedding calls. Falls back to APIKey
	// when empty.
	EmbeddingAPIKey string

	// EmbeddingDimensions is the expected vector length. Default: 1536.
	EmbeddingDimensions int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the backend provider.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = strings.ToLower(strings.TrimSpace(provider))
	}
}

// WithHost sets the completion service host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the completion model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the completion API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithMaxConcurrent sets the in-flight request ceiling.
func WithMaxConcurrent(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.MaxConcurrent = n
		}
	}
}

// WithRequestInterval sets the minimum spacing between request launches.
func WithRequestInterval(interval time.Duration) ConfigOption {
	return func(c *Config) {
		if interval >= 0 {
			c.RequestInterval = interval
		}
	}
}

// WithMaxRetries sets the requeue ceiling for retryable failures.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		if n >= 0 {
			c.MaxRetries = n
		}
	}
}

// WithRetryDelay sets the base requeue delay.
func WithRetryDelay(delay time.Duration) ConfigOption {
	return func(c *Config) {
		if delay > 0 {
			c.RetryDelay = delay
		}
	}
}

// WithEmbedding configures the embedding service.
func WithEmbedding(host, model, apiKey string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		if model != "" {
			c.EmbeddingModel = model
		}
		c.EmbeddingAPIKey = apiKey
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:            ProviderOpenAI,
		Model:               "gpt-4o-mini",
		Timeout:             60 * time.Second,
		MaxConcurrent:       5,
		MaxRetries:          3,
		RetryDelay:          2 * time.Second,
		MaxBackoff:          60 * time.Second,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
	}
}

// NewConfig creates a Config with defaults and applies the provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	valid := false
	for _, p := range Providers {
		if c.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return errors.New("ai config: Provider must be one of " + strings.Join(Providers, ", "))
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	if c.MaxConcurrent < 1 {
		return errors.New("ai config: MaxConcurrent must be at least 1")
	}
	if c.MaxRetries < 0 {
		return errors.New("ai config: MaxRetries must not be negative")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	return nil
}
