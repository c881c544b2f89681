package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/recall/pkg/log"
)

type GeminiConfig struct {
	APIKey         string `env:"GEMINI_API_KEY,required,notEmpty"`
	Model          string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	EmbeddingModel string `env:"GEMINI_EMBEDDING_MODEL" envDefault:"gemini-embedding-001"`
	// All stored vectors must share one dimensionality; changing it
	// invalidates every embedding already on disk.
	EmbeddingDimensions int `env:"GEMINI_EMBEDDING_DIMENSIONS" envDefault:"768"`
}

func NewGeminiConfig(ctx context.Context) *GeminiConfig {
	c := &GeminiConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Gemini config")
	}
	return c
}
