package summary

import (
	"context"
	"testing"
	"time"

	"github.com/sandevgo/recall/internal/core"
)

func TestSynopsizer_CreatesForShortSession(t *testing.T) {
	repo := newMockSummaryRepo()
	provider := &mockProvider{response: "User asked about Go generics."}
	s := NewSynopsizer(provider, &mockEmbedder{vec: []float32{0.5}}, repo)

	session := core.Session{ID: "s1", UserID: "u1"}
	got, err := s.Generate(context.Background(), session, longHistory(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected synopsis")
	}
	if got.Kind != core.SummarySynopsis {
		t.Errorf("kind = %q, want synopsis", got.Kind)
	}
	if got.MessageCount != 4 {
		t.Errorf("message count = %d, want 4 (no keep-fresh reservation)", got.MessageCount)
	}
}

func TestSynopsizer_AppendsOnlyDelta(t *testing.T) {
	repo := newMockSummaryRepo()
	provider := &mockProvider{response: "Updated synopsis."}
	s := NewSynopsizer(provider, nil, repo)
	ctx := context.Background()
	session := core.Session{ID: "s1", UserID: "u1"}

	if _, err := s.Generate(ctx, session, longHistory(4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No new messages: no model call, unchanged row.
	before := provider.calls
	got, err := s.Generate(ctx, session, longHistory(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != before {
		t.Error("expected no model call without new messages")
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}

	// Two more messages: one append pass over the delta.
	got, err = s.Generate(ctx, session, longHistory(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2 after append", got.Version)
	}
	if got.MessageCount != 6 {
		t.Errorf("message count = %d, want 6", got.MessageCount)
	}
}

func TestSynopsizer_SkipsFullySummarizedSessions(t *testing.T) {
	repo := newMockSummaryRepo()
	repo.summaries["s1"] = &core.SessionSummary{
		SessionID: "s1", Summary: "full summary", MessageCount: 590, Version: 3, Kind: core.SummaryFull,
	}
	provider := &mockProvider{response: "should not run"}
	s := NewSynopsizer(provider, nil, repo)

	got, err := s.Generate(context.Background(), core.Session{ID: "s1"}, longHistory(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 0 {
		t.Error("synopsizer must not touch fully summarized sessions")
	}
	if got.Kind != core.SummaryFull {
		t.Errorf("kind = %q, want untouched full summary", got.Kind)
	}
}

func TestDue(t *testing.T) {
	if Due(time.Now(), DefaultIdleTimeout) {
		t.Error("fresh activity should not be due")
	}
	if !Due(time.Now().Add(-time.Hour), DefaultIdleTimeout) {
		t.Error("hour-old activity should be due")
	}
}
