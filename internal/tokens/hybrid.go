package tokens

import (
	"context"
	"sync/atomic"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

// Every Nth message gets an exact count as a drift check on the heuristic.
const defaultDriftInterval = 10

// Hybrid layers an exact TokenCounter over the heuristic Estimator.
// Exact counts are used when precision matters (summarization boundaries)
// and periodically as a drift check; everything else stays heuristic.
// Exact-count failures fall back silently: estimation never errors.
type Hybrid struct {
	estimator     *Estimator
	counter       core.TokenCounter
	cache         *CountCache
	driftInterval int
	seen          atomic.Int64
}

func NewHybrid(counter core.TokenCounter, cache *CountCache) *Hybrid {
	if cache == nil {
		cache = NewCountCache()
	}
	return &Hybrid{
		estimator:     NewEstimator(),
		counter:       counter,
		cache:         cache,
		driftInterval: defaultDriftInterval,
	}
}

func (h *Hybrid) EstimateText(text string) int {
	return h.estimator.EstimateText(text)
}

func (h *Hybrid) EstimateMessages(msgs []core.Message) int {
	total := 0
	for _, m := range msgs {
		total += h.EstimateMessage(context.Background(), m)
	}
	return total
}

// EstimateMessage is heuristic except on the drift interval, where the text
// portion is counted exactly (cached, best-effort).
func (h *Hybrid) EstimateMessage(ctx context.Context, msg core.Message) int {
	overhead := roleOverheadTokens + len(msg.Attachments)*attachmentTokens
	if msg.Content == "" {
		return overhead
	}

	if h.counter != nil && h.seen.Add(1)%int64(h.driftInterval) == 0 {
		return h.CountExact(ctx, msg.Content) + overhead
	}
	return h.estimator.EstimateText(msg.Content) + overhead
}

// CountExact returns the exact token count for text, consulting the cache
// first. On counter failure it falls back to the heuristic and logs at
// debug; it never returns an error.
func (h *Hybrid) CountExact(ctx context.Context, text string) int {
	if text == "" {
		return 0
	}
	if h.counter == nil {
		return h.estimator.EstimateText(text)
	}

	if n, ok := h.cache.Get(text); ok {
		return n
	}

	n, err := h.counter.CountTokens(ctx, text)
	if err != nil {
		log.FromCtx(ctx).Debug().Err(err).Msg("exact token count failed, using heuristic")
		return h.estimator.EstimateText(text)
	}

	h.cache.Put(text, n)
	return n
}

// CountExactMessages sums exact text counts plus per-message overheads.
// Used ahead of summarization decisions where boundary precision matters.
func (h *Hybrid) CountExactMessages(ctx context.Context, msgs []core.Message) int {
	total := 0
	for _, m := range msgs {
		total += h.CountExact(ctx, m.Content) + roleOverheadTokens + len(m.Attachments)*attachmentTokens
	}
	return total
}
