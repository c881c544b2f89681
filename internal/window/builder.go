// Package window implements the sliding-window context fallback: the one
// tier of context assembly that touches no external service and cannot fail.
package window

import "github.com/sandevgo/recall/internal/core"

const (
	defaultMaxContextTokens = 32768
	defaultSystemBuffer     = 1024
	defaultResponseBuffer   = 2048
	defaultMaxMessages      = 60

	// The most recent messages are always kept, token budget or not:
	// recency wins over budget compliance for the tail.
	defaultMinRecent = 4
)

type estimator interface {
	EstimateMessage(msg core.Message) int
}

type Builder struct {
	estimator        estimator
	maxContextTokens int
	systemBuffer     int
	responseBuffer   int
	maxMessages      int
	minRecent        int
}

type Options struct {
	MaxContextTokens int
	SystemBuffer     int
	ResponseBuffer   int
	MaxMessages      int
	MinRecent        int
}

func NewBuilder(est estimator, opts Options) *Builder {
	b := &Builder{
		estimator:        est,
		maxContextTokens: opts.MaxContextTokens,
		systemBuffer:     opts.SystemBuffer,
		responseBuffer:   opts.ResponseBuffer,
		maxMessages:      opts.MaxMessages,
		minRecent:        opts.MinRecent,
	}
	if b.maxContextTokens <= 0 {
		b.maxContextTokens = defaultMaxContextTokens
	}
	if b.systemBuffer <= 0 {
		b.systemBuffer = defaultSystemBuffer
	}
	if b.responseBuffer <= 0 {
		b.responseBuffer = defaultResponseBuffer
	}
	if b.maxMessages <= 0 {
		b.maxMessages = defaultMaxMessages
	}
	if b.minRecent <= 0 {
		b.minRecent = defaultMinRecent
	}
	return b
}

// Build walks history newest to oldest, keeping messages while both the
// token budget and the message ceiling hold. Error-flagged messages are
// dropped first. The result is chronological; Truncated reports whether any
// valid message was cut.
func (b *Builder) Build(history []core.Message, systemTokens int) core.ContextWindow {
	valid := make([]core.Message, 0, len(history))
	for _, m := range history {
		if !m.HasError {
			valid = append(valid, m)
		}
	}

	budget := b.maxContextTokens - b.systemBuffer - b.responseBuffer - systemTokens
	if budget < 0 {
		budget = 0
	}

	kept := 0
	total := 0
	for i := len(valid) - 1; i >= 0; i-- {
		cost := b.estimator.EstimateMessage(valid[i])
		withinFloor := kept < b.minRecent

		if kept >= b.maxMessages {
			break
		}
		if !withinFloor && total+cost > budget {
			break
		}

		kept++
		total += cost
	}

	start := len(valid) - kept
	messages := make([]core.Message, kept)
	copy(messages, valid[start:])

	return core.ContextWindow{
		Messages:      messages,
		TokenCount:    total,
		Truncated:     kept < len(valid),
		OriginalCount: len(valid),
	}
}
