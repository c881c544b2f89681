// Package summary maintains one running, incrementally compressed summary
// per session. Older turns are folded into the summary text; a keep-fresh
// tail of recent messages is never summarized.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/tokens"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	defaultThresholdTokens = 3000
	defaultKeepFresh       = 10

	// One paragraph, hard word ceiling on the generated summary.
	summaryMaxWords = 250
)

type Engine struct {
	provider  core.ChatProvider
	embedder  core.Embedder
	repo      core.SummaryRepository
	estimator *tokens.Hybrid
	threshold int
	keepFresh int
}

type Options struct {
	ThresholdTokens int
	KeepFresh       int
}

func NewEngine(provider core.ChatProvider, embedder core.Embedder, repo core.SummaryRepository, estimator *tokens.Hybrid, opts Options) *Engine {
	e := &Engine{
		provider:  provider,
		embedder:  embedder,
		repo:      repo,
		estimator: estimator,
		threshold: opts.ThresholdTokens,
		keepFresh: opts.KeepFresh,
	}
	if e.threshold <= 0 {
		e.threshold = defaultThresholdTokens
	}
	if e.keepFresh <= 0 {
		e.keepFresh = defaultKeepFresh
	}
	return e
}

// NeedsSummarization reports whether the existing summary text plus the
// messages not yet folded into it meet the token threshold. Token counts
// here use the exact counter: this decision fixes truncation boundaries.
func (e *Engine) NeedsSummarization(ctx context.Context, sessionID string, history []core.Message) (bool, error) {
	valid := filterValid(history)

	existing, err := e.repo.GetSummary(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("load summary: %w", err)
	}

	cost := 0
	folded := 0
	if existing != nil && existing.Kind == core.SummaryFull {
		cost = e.estimator.CountExact(ctx, existing.Summary)
		folded = existing.MessageCount
	}
	if folded > len(valid) {
		folded = len(valid)
	}
	cost += e.estimator.CountExactMessages(ctx, valid[folded:])

	return cost >= e.threshold, nil
}

// SummarizeIfNeeded folds everything older than the keep-fresh tail into
// the session summary, merging with the prior summary text when one exists.
// When all unfolded messages sit inside the keep-fresh window this is a
// no-op and the existing summary is returned unchanged.
func (e *Engine) SummarizeIfNeeded(ctx context.Context, session core.Session, history []core.Message) (*core.SessionSummary, error) {
	needed, err := e.NeedsSummarization(ctx, session.ID, history)
	if err != nil {
		return nil, err
	}

	existing, err := e.repo.GetSummary(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	if !needed {
		return existing, nil
	}

	valid := filterValid(history)
	start := 0
	prior := ""
	if existing != nil && existing.Kind == core.SummaryFull {
		start = existing.MessageCount
		prior = existing.Summary
	}

	foldEnd := len(valid) - e.keepFresh
	if foldEnd <= start {
		// Everything new is inside the keep-fresh window.
		return existing, nil
	}
	toFold := valid[start:foldEnd]

	text, err := e.provider.Complete(ctx, core.ChatRequest{
		System:   summarySystemPrompt,
		Messages: []core.Message{{Role: core.RoleUser, Content: buildSummaryPrompt(prior, toFold, summaryMaxWords)}},
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	text = capWords(strings.TrimSpace(text), summaryMaxWords)
	if text == "" {
		return nil, fmt.Errorf("summarize: empty model output")
	}

	updated := core.SessionSummary{
		SessionID:    session.ID,
		UserID:       session.UserID,
		Summary:      text,
		MessageCount: foldEnd,
		Version:      1,
		Kind:         core.SummaryFull,
		UpdatedAt:    time.Now().UTC(),
	}
	if existing != nil {
		updated.Version = existing.Version + 1
	}

	// A missing embedding only makes the summary unsearchable by session
	// RAG; the summary itself is still saved.
	if e.embedder != nil {
		if vec, embErr := e.embedder.EncodeDocument(ctx, text); embErr != nil {
			log.FromCtx(ctx).Warn().Err(embErr).Str("session", session.ID).Msg("summary embedding failed")
		} else {
			updated.Embedding = vec
		}
	}

	if err := e.repo.UpsertSummary(ctx, updated); err != nil {
		return nil, fmt.Errorf("persist summary: %w", err)
	}
	return &updated, nil
}

// BuildContextWithSummary renders the persisted summary as a synthetic
// previous-context exchange followed by the messages not yet folded into
// it. Without a summary all valid messages pass through untouched.
func (e *Engine) BuildContextWithSummary(ctx context.Context, sessionID string, history []core.Message) ([]core.Message, error) {
	valid := filterValid(history)

	existing, err := e.repo.GetSummary(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	if existing == nil || existing.Kind != core.SummaryFull {
		return valid, nil
	}

	folded := existing.MessageCount
	if folded > len(valid) {
		folded = len(valid)
	}

	out := make([]core.Message, 0, len(valid)-folded+2)
	out = append(out, SyntheticPair(
		"Previous conversation context:\n"+existing.Summary,
		"Understood. I have the context of our previous conversation and will keep it in mind.",
	)...)
	out = append(out, valid[folded:]...)
	return out, nil
}

// SyntheticPair builds a (context, acknowledgment) message pair used to
// inject non-conversational text into model context.
func SyntheticPair(contextText, ack string) []core.Message {
	return []core.Message{
		{Role: core.RoleUser, Content: contextText},
		{Role: core.RoleAssistant, Content: ack},
	}
}

func filterValid(history []core.Message) []core.Message {
	valid := make([]core.Message, 0, len(history))
	for _, m := range history {
		if !m.HasError {
			valid = append(valid, m)
		}
	}
	return valid
}

func capWords(text string, max int) string {
	words := strings.Fields(text)
	if len(words) <= max {
		return text
	}
	return strings.Join(words[:max], " ")
}
