// Package config loads and validates sengage configuration from YAML,
// with environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"sengage/internal/compose"
	"sengage/internal/platform"
)

// Config holds all sengage configuration.
type Config struct {
	// LLM configuration for the comment composer.
	LLM LLMConfig `yaml:"llm"`

	// Engagement pacing and safety settings.
	Engagement EngagementConfig `yaml:"engagement"`

	// Storage configures the durable engagement ledger.
	Storage StorageConfig `yaml:"storage"`

	// Platforms maps a platform name to its adapter settings
	// (session file, headless flag, base URL, ...).
	Platforms map[string]map[string]string `yaml:"platforms"`
}

// LLMConfig configures the comment-generation provider.
// An empty provider disables the LLM entirely; the composer then runs on
// templates alone, which requires no credentials.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // gemini, openai, or empty
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// EngagementConfig configures run pacing, quotas and retry policy.
type EngagementConfig struct {
	Tone        string `yaml:"tone"`
	DailyLimit  int    `yaml:"daily_limit"`
	MinDelaySec int    `yaml:"min_delay"`
	MaxDelaySec int    `yaml:"max_delay"`
	// SkipEngaged gates the ledger dedup check. Setting it false is an
	// explicit opt-out: already-engaged candidates will be engaged again.
	SkipEngaged *bool `yaml:"skip_engaged"`
	MaxRetries  int   `yaml:"max_retries"`
}

// StorageConfig configures the ledger database.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ValidProviders lists the recognized LLM providers.
var ValidProviders = []string{"gemini", "openai"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	skip := true
	return &Config{
		LLM: LLMConfig{
			Provider:    "",
			Temperature: 0.8,
			Timeout:     "60s",
		},
		Engagement: EngagementConfig{
			Tone:        "friendly",
			DailyLimit:  20,
			MinDelaySec: 30,
			MaxDelaySec: 120,
			SkipEngaged: &skip,
			MaxRetries:  1,
		},
		Storage: StorageConfig{
			DatabasePath: "data/engagement.db",
		},
		Platforms: map[string]map[string]string{},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides lets environment variables override file values.
// Secrets in particular should come from the environment, not the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && (c.LLM.Provider == "" || c.LLM.Provider == "gemini") {
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
		c.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("SENGAGE_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
}

// Validate validates the configuration. Violations are fatal at startup,
// before any engagement action is attempted.
func (c *Config) Validate() error {
	if c.Engagement.DailyLimit <= 0 {
		return fmt.Errorf("engagement.daily_limit must be positive, got %d", c.Engagement.DailyLimit)
	}
	if c.Engagement.MinDelaySec < 0 {
		return fmt.Errorf("engagement.min_delay must be non-negative, got %d", c.Engagement.MinDelaySec)
	}
	if c.Engagement.MaxDelaySec < c.Engagement.MinDelaySec {
		return fmt.Errorf("engagement.max_delay (%d) must be >= min_delay (%d)",
			c.Engagement.MaxDelaySec, c.Engagement.MinDelaySec)
	}
	if c.Engagement.MaxRetries < 0 {
		return fmt.Errorf("engagement.max_retries must be non-negative, got %d", c.Engagement.MaxRetries)
	}
	if _, err := compose.ParseTone(c.Engagement.Tone); err != nil {
		return err
	}

	if c.LLM.Provider != "" {
		valid := false
		for _, p := range ValidProviders {
			if c.LLM.Provider == p {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
		}
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key not configured for provider %s (set GEMINI_API_KEY or OPENAI_API_KEY)", c.LLM.Provider)
		}
	}

	for name := range c.Platforms {
		if !platform.Platform(name).Valid() {
			return fmt.Errorf("unknown platform in config: %s", name)
		}
	}

	return nil
}

// MinDelay returns the configured minimum inter-action delay.
func (c *EngagementConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelaySec) * time.Second
}

// MaxDelay returns the configured maximum inter-action delay.
func (c *EngagementConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySec) * time.Second
}

// SkipAlreadyEngaged reports whether the dedup check applies (default true).
func (c *EngagementConfig) SkipAlreadyEngaged() bool {
	return c.SkipEngaged == nil || *c.SkipEngaged
}

// LLMTimeout parses the configured LLM timeout, defaulting to 60s.
func (c *LLMConfig) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
