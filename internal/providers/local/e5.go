// Package local embeds text fully offline through a GGUF model loaded with
// llama.cpp. The default model is multilingual-e5-base, whose encodings
// require "query: " and "passage: " prefixes.
package local

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/pkg/llamacpp"
)

const (
	ModelNameE5BaseQ8 = "multilingual-e5-base-q8.gguf"
	ModelURLE5BaseQ8  = "https://huggingface.co/dinab/multilingual-e5-base-Q8_0-GGUF/resolve/main/multilingual-e5-base-q8_0.gguf"

	e5Dimensions = 768
)

type E5Embedder struct {
	emb *llamacpp.LlamaEmbedder
}

// NewE5Embedder loads the model from modelPath, defaulting to the runtime
// models directory.
func NewE5Embedder(modelPath string) (*E5Embedder, error) {
	if modelPath == "" {
		modelPath = filepath.Join(config.GetRuntimePath(), "models", ModelNameE5BaseQ8)
	}

	emb, err := llamacpp.NewLlamaEmbedder(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding model: %w", err)
	}
	return &E5Embedder{emb: emb}, nil
}

func (m *E5Embedder) EncodeQuery(_ context.Context, text string) ([]float32, error) {
	return m.emb.Embed("query: " + text)
}

func (m *E5Embedder) EncodeDocument(_ context.Context, text string) ([]float32, error) {
	return m.emb.Embed("passage: " + text)
}

func (m *E5Embedder) Dimensions() int {
	return e5Dimensions
}

func (m *E5Embedder) Close() error {
	m.emb.Free()
	return nil
}
