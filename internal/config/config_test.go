package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Empty(t, cfg.LLM.Provider, "no provider means template-only composing")
	assert.Equal(t, "friendly", cfg.Engagement.Tone)
	assert.Equal(t, 20, cfg.Engagement.DailyLimit)
	assert.Equal(t, 30*time.Second, cfg.Engagement.MinDelay())
	assert.Equal(t, 2*time.Minute, cfg.Engagement.MaxDelay())
	assert.True(t, cfg.Engagement.SkipAlreadyEngaged())
	assert.Equal(t, 1, cfg.Engagement.MaxRetries)
	assert.Equal(t, "data/engagement.db", cfg.Storage.DatabasePath)

	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Engagement.DailyLimit, cfg.Engagement.DailyLimit)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sengage.yaml")
	data := `
llm:
  provider: openai
  api_key: sk-test
  model: gpt-4o-mini
engagement:
  tone: casual
  daily_limit: 5
  min_delay: 10
  max_delay: 20
  skip_engaged: false
  max_retries: 2
storage:
  database_path: /tmp/test.db
platforms:
  instagram:
    headless: "true"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "casual", cfg.Engagement.Tone)
	assert.Equal(t, 5, cfg.Engagement.DailyLimit)
	assert.False(t, cfg.Engagement.SkipAlreadyEngaged())
	assert.Equal(t, 2, cfg.Engagement.MaxRetries)
	assert.Equal(t, "/tmp/test.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "true", cfg.Platforms["instagram"]["headless"])
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engagement: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("SENGAGE_DB_PATH", "/tmp/env.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	// GEMINI_API_KEY selects the provider when none is configured.
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.DatabasePath)
}

func TestEnvOverrideMatchesProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("GEMINI_API_KEY", "")

	path := filepath.Join(t.TempDir(), "sengage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: openai\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero daily limit", func(c *Config) { c.Engagement.DailyLimit = 0 }},
		{"negative min delay", func(c *Config) { c.Engagement.MinDelaySec = -1 }},
		{"max below min", func(c *Config) { c.Engagement.MinDelaySec = 60; c.Engagement.MaxDelaySec = 30 }},
		{"negative retries", func(c *Config) { c.Engagement.MaxRetries = -1 }},
		{"unknown tone", func(c *Config) { c.Engagement.Tone = "aggressive" }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama"; c.LLM.APIKey = "x" }},
		{"provider without key", func(c *Config) { c.LLM.Provider = "gemini" }},
		{"unknown platform", func(c *Config) { c.Platforms = map[string]map[string]string{"myspace": {}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sengage.yaml")

	cfg := DefaultConfig()
	cfg.Engagement.DailyLimit = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Engagement.DailyLimit)
}

func TestLLMTimeout(t *testing.T) {
	c := LLMConfig{Timeout: "5s"}
	assert.Equal(t, 5*time.Second, c.LLMTimeout())

	c.Timeout = "not-a-duration"
	assert.Equal(t, 60*time.Second, c.LLMTimeout())

	c.Timeout = ""
	assert.Equal(t, 60*time.Second, c.LLMTimeout())
}
