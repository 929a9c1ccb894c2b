package ai

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/watchtower/internal/ai/gemini"
	"github.com/kiranshivaraju/watchtower/internal/ai/mock"
	"github.com/kiranshivaraju/watchtower/internal/ai/openai"
	"github.com/kiranshivaraju/watchtower/internal/config"
	"github.com/kiranshivaraju/watchtower/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(ctx context.Context, cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "gemini":
		p, err := gemini.NewProvider(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		return openai.NewProvider("openai", cfg.OpenAI), nil
	case "ollama":
		return openai.NewProvider("ollama", config.OpenAIConfig{
			APIKey:  "ollama",
			Model:   cfg.Ollama.Model,
			BaseURL: cfg.Ollama.BaseURL,
		}), nil
	case "vllm":
		return openai.NewProvider("vllm", config.OpenAIConfig{
			APIKey:  "EMPTY",
			Model:   cfg.VLLM.Model,
			BaseURL: cfg.VLLM.BaseURL,
		}), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, openai, ollama, vllm, mock", cfg.Provider)
	}
}
