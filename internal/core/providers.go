package core

import "context"

// StreamChunk is one demultiplexed piece of a streaming completion.
// Thinking chunks carry model-internal reasoning; answer chunks carry
// user-visible text. Chunks arrive in model order.
type StreamChunk struct {
	Text     string
	Thinking bool
}

// ChatRequest is the provider-independent shape of one completion call.
type ChatRequest struct {
	System      string
	Messages    []Message
	Temperature float32
	Thinking    bool
}

// ChatProvider is the LLM completion boundary. Chat streams chunks into the
// returned channel and closes it when the stream ends; the first error (or
// nil) is delivered on the error channel exactly once. Complete is the
// non-streaming variant used by internal callers (summaries, extraction).
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, <-chan error)
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder produces fixed-dimension vectors. Query and document encodings
// must come from the same model and dimensionality: similarity scores across
// mixed embedding models are meaningless.
type Embedder interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	EncodeDocument(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// TokenCounter is an exact token-counting capability backing the hybrid
// estimator. Implementations may be local (BPE) or remote.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}
