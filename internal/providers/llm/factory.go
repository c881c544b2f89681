package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

// NewProvider creates a chat provider from the OpenAI-compatible family.
// The gemini provider is constructed separately since it also carries the
// embedding and token-counting capabilities.
func NewProvider(ctx context.Context, provider string) (core.ChatProvider, error) {
	log.FromCtx(ctx).Info().
		Str("provider", provider).
		Msg("starting llm provider")

	switch provider {
	case "openrouter":
		cfg := config.NewOpenRouterConfig(ctx)
		return NewOpenRouter(cfg.APIKey, cfg.Model), nil
	case "ollama":
		cfg := config.NewOllamaConfig(ctx)
		return NewOllama(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
