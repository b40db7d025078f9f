package llm

import (
	"context"
	"fmt"

	"sengage/internal/compose"
	"sengage/internal/config"
)

// NewClient builds the provider client selected by the configuration.
// An empty provider returns (nil, nil): the composer treats a nil client
// as template-only mode.
func NewClient(ctx context.Context, cfg config.LLMConfig) (compose.Client, error) {
	switch cfg.Provider {
	case "":
		return nil, nil

	case "gemini":
		gc := DefaultGeminiConfig(cfg.APIKey)
		if cfg.Model != "" {
			gc.Model = cfg.Model
		}
		if cfg.Temperature > 0 {
			gc.Temperature = cfg.Temperature
		}
		gc.Timeout = cfg.LLMTimeout()
		return NewGeminiClient(ctx, gc)

	case "openai":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.Temperature > 0 {
			oc.Temperature = cfg.Temperature
		}
		oc.Timeout = cfg.LLMTimeout()
		return NewOpenAIClient(oc)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}
