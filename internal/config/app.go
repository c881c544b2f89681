package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/recall/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"RECALL_RUNTIME_PATH" envDefault:".recall"`
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"gemini"`
	UserID      string `env:"RECALL_USER_ID" envDefault:"local"`

	// Embeddings: "gemini" (remote) or "local" (llama.cpp GGUF model).
	// All stored vectors must come from one provider; switching requires a
	// fresh database.
	EmbeddingProvider  string `env:"EMBEDDING_PROVIDER" envDefault:"gemini"`
	EmbeddingModelPath string `env:"EMBEDDING_MODEL_PATH"`

	// Context budgets
	MaxContextTokens int `env:"MAX_CONTEXT_TOKENS" envDefault:"32768"`
	SystemBuffer     int `env:"SYSTEM_TOKEN_BUFFER" envDefault:"1024"`
	ResponseBuffer   int `env:"RESPONSE_TOKEN_BUFFER" envDefault:"2048"`
	MaxMessages      int `env:"MAX_CONTEXT_MESSAGES" envDefault:"60"`
	MinRecent        int `env:"MIN_RECENT_MESSAGES" envDefault:"4"`

	// Summarization
	SummaryThresholdTokens int `env:"SUMMARY_THRESHOLD_TOKENS" envDefault:"3000"`
	KeepFreshMessages      int `env:"KEEP_FRESH_MESSAGES" envDefault:"10"`

	// Cross-session memory
	MemoryEnabled bool `env:"MEMORY_ENABLED" envDefault:"true"`

	// Generation
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "recall.db")
}

func (c AppConfig) GetSystemPromptPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func IsDebug() bool {
	return os.Getenv("RECALL_DEBUG") == "1"
}

// GetRuntimePath reads the runtime directory before full config parsing,
// so the .env file inside it can be loaded first.
func GetRuntimePath() string {
	if p := os.Getenv("RECALL_RUNTIME_PATH"); p != "" {
		return p
	}
	return ".recall"
}
