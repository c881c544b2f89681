package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	// Synopses are deliberately tiny: just enough for a short session to be
	// discoverable by session retrieval.
	synopsisMaxWords = 100

	// DefaultIdleTimeout is how long a session must sit idle before a
	// synopsis run is due (the other trigger is a session switch).
	DefaultIdleTimeout = 10 * time.Minute
)

// Synopsizer condenses sessions that never crossed the full summarization
// threshold, so short conversations still show up in session retrieval.
// Unlike the full engine there is no keep-fresh reservation: the whole
// session (or the delta since the last synopsis) goes through in one pass.
type Synopsizer struct {
	provider core.ChatProvider
	embedder core.Embedder
	repo     core.SummaryRepository
}

func NewSynopsizer(provider core.ChatProvider, embedder core.Embedder, repo core.SummaryRepository) *Synopsizer {
	return &Synopsizer{provider: provider, embedder: embedder, repo: repo}
}

// Due reports whether an idle-timeout synopsis run is warranted.
func Due(lastActivity time.Time, idle time.Duration) bool {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return time.Since(lastActivity) >= idle
}

// Generate creates or extends the synopsis for a session. A session that
// already has a full summary is left alone. When nothing new arrived since
// the last synopsis the existing row is returned unchanged.
func (s *Synopsizer) Generate(ctx context.Context, session core.Session, history []core.Message) (*core.SessionSummary, error) {
	valid := filterValid(history)
	if len(valid) == 0 {
		return nil, nil
	}

	existing, err := s.repo.GetSummary(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	if existing != nil && existing.Kind == core.SummaryFull {
		return existing, nil
	}

	start := 0
	prior := ""
	if existing != nil {
		start = existing.MessageCount
		prior = existing.Summary
	}
	if start >= len(valid) {
		return existing, nil
	}
	delta := valid[start:]

	text, err := s.provider.Complete(ctx, core.ChatRequest{
		System:   summarySystemPrompt,
		Messages: []core.Message{{Role: core.RoleUser, Content: buildSummaryPrompt(prior, delta, synopsisMaxWords)}},
	})
	if err != nil {
		return nil, fmt.Errorf("synopsize: %w", err)
	}
	text = capWords(strings.TrimSpace(text), synopsisMaxWords)
	if text == "" {
		return existing, nil
	}

	updated := core.SessionSummary{
		SessionID:    session.ID,
		UserID:       session.UserID,
		Summary:      text,
		MessageCount: len(valid),
		Version:      1,
		Kind:         core.SummarySynopsis,
		UpdatedAt:    time.Now().UTC(),
	}
	if existing != nil {
		updated.Version = existing.Version + 1
	}

	if s.embedder != nil {
		if vec, embErr := s.embedder.EncodeDocument(ctx, text); embErr != nil {
			log.FromCtx(ctx).Warn().Err(embErr).Str("session", session.ID).Msg("synopsis embedding failed")
		} else {
			updated.Embedding = vec
		}
	}

	if err := s.repo.UpsertSummary(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist synopsis: %w", err)
	}
	return &updated, nil
}
