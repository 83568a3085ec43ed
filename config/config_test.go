// videoquery/config/config_test.go
package config_test

import (
	"testing"
	"time"

	"videoquery/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VIDEOQUERY_PORT",
		"VIDEOQUERY_MAX_CONCURRENCY",
		"VIDEOQUERY_AUTH_ENABLE",
		"VIDEOQUERY_POLL_INTERVAL",
		"VIDEOQUERY_POLL_TIMEOUT",
		"VIDEOQUERY_MAX_INPUT_SIZE",
		"VIDEOQUERY_AGENT_PROVIDER",
		"VIDEOQUERY_SEARCH_PROVIDER",
		"VIDEOQUERY_GOOGLE_API_KEY",
		"GOOGLE_API_KEY",
		"GEMINI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("loads default values correctly", func(t *testing.T) {
		clearEnv(t)

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 1, cfg.MaxConcurrency)
		assert.False(t, cfg.AuthEnable)
		assert.Equal(t, config.ProviderGemini, cfg.AgentProvider)
		assert.Equal(t, "gemini-2.0-flash-exp", cfg.Model)
		assert.Equal(t, config.SearchDuckDuckGo, cfg.SearchProvider)
		assert.Equal(t, time.Second, cfg.PollInterval)
		assert.Equal(t, 10*time.Minute, cfg.PollTimeout)
		assert.Equal(t, 15*time.Minute, cfg.RequestTimeout)
		assert.Equal(t, int64(200*1024*1024), cfg.MaxInputSize)
		assert.Equal(t, 100, cfg.QueueSize)
	})

	t.Run("overrides defaults with environment variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VIDEOQUERY_PORT", "9999")
		t.Setenv("VIDEOQUERY_MAX_CONCURRENCY", "10")
		t.Setenv("VIDEOQUERY_AUTH_ENABLE", "true")
		t.Setenv("VIDEOQUERY_AUTH_KEY", "newsecret")
		t.Setenv("VIDEOQUERY_MAX_INPUT_SIZE", "50MB")
		t.Setenv("VIDEOQUERY_POLL_INTERVAL", "250ms")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Port)
		assert.Equal(t, 10, cfg.MaxConcurrency)
		assert.True(t, cfg.AuthEnable)
		assert.Equal(t, "newsecret", cfg.AuthKey)
		assert.Equal(t, int64(50*1024*1024), cfg.MaxInputSize)
		assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	})

	t.Run("picks the model default for the provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VIDEOQUERY_AGENT_PROVIDER", "openai")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", cfg.Model)
	})

	t.Run("reads the api key from GOOGLE_API_KEY", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GOOGLE_API_KEY", "from-google-env")

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, "from-google-env", cfg.APIKey())
	})

	t.Run("rejects unknown providers", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("VIDEOQUERY_AGENT_PROVIDER", "llama")

		_, err := config.Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown agent provider")
	})
}

func TestValidate(t *testing.T) {
	base := config.Config{
		AgentProvider:  config.ProviderOpenAI,
		SearchProvider: config.SearchGoogle,
		PollInterval:   time.Second,
		MaxConcurrency: 1,
	}

	err := base.Validate()
	assert.Error(t, err, "google grounding is only available on gemini")

	base.SearchProvider = config.SearchDuckDuckGo
	assert.NoError(t, base.Validate())

	base.MaxConcurrency = 0
	assert.Error(t, base.Validate())

	base.MaxConcurrency = 1
	base.PollInterval = 0
	assert.Error(t, base.Validate())
}
