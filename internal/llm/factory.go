package llm

import (
	"context"
	"fmt"

	"github.com/ashureev/skincare-assistant/internal/config"
)

// New returns the client for the configured provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.Timeout), nil
	case config.ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.GoogleAPIKey, cfg.GeminiModel, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
