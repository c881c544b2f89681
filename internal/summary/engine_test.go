package summary

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/tokens"
)

type mockProvider struct {
	response string
	err      error
	calls    int
}

func (m *mockProvider) Chat(_ context.Context, _ core.ChatRequest) (<-chan core.StreamChunk, <-chan error) {
	panic("not used")
}

func (m *mockProvider) Complete(_ context.Context, _ core.ChatRequest) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) EncodeQuery(_ context.Context, _ string) ([]float32, error) {
	return m.vec, m.err
}

func (m *mockEmbedder) EncodeDocument(_ context.Context, _ string) ([]float32, error) {
	return m.vec, m.err
}

func (m *mockEmbedder) Dimensions() int { return len(m.vec) }

type mockSummaryRepo struct {
	summaries map[string]*core.SessionSummary
	getErr    error
	upsertErr error
}

func newMockSummaryRepo() *mockSummaryRepo {
	return &mockSummaryRepo{summaries: make(map[string]*core.SessionSummary)}
}

func (m *mockSummaryRepo) GetSummary(_ context.Context, sessionID string) (*core.SessionSummary, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.summaries[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *mockSummaryRepo) UpsertSummary(_ context.Context, s core.SessionSummary) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := s
	m.summaries[s.SessionID] = &cp
	return nil
}

func (m *mockSummaryRepo) SearchSummaries(_ context.Context, _ string, _ []float32, _ float32, _, _ int) ([]core.SummaryMatch, error) {
	return nil, nil
}

func longHistory(n int) []core.Message {
	msgs := make([]core.Message, n)
	for i := range msgs {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		msgs[i] = core.Message{ID: int64(i + 1), Role: role, Content: fmt.Sprintf("short message number %d", i)}
	}
	return msgs
}

func newTestEngine(provider *mockProvider, embedder core.Embedder, repo core.SummaryRepository) *Engine {
	return NewEngine(provider, embedder, repo, tokens.NewHybrid(nil, nil), Options{})
}

func TestNeedsSummarization(t *testing.T) {
	repo := newMockSummaryRepo()
	e := newTestEngine(&mockProvider{}, nil, repo)
	ctx := context.Background()

	short := longHistory(5)
	needed, err := e.NeedsSummarization(ctx, "s1", short)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if needed {
		t.Error("5 short messages should not need summarization")
	}

	long := longHistory(600)
	needed, err = e.NeedsSummarization(ctx, "s1", long)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !needed {
		t.Error("600 messages should need summarization")
	}
}

func TestSummarizeIfNeeded_FoldsAndKeepsFreshTail(t *testing.T) {
	repo := newMockSummaryRepo()
	provider := &mockProvider{response: "The user and assistant discussed many short messages."}
	e := newTestEngine(provider, &mockEmbedder{vec: []float32{0.1, 0.2}}, repo)
	ctx := context.Background()

	session := core.Session{ID: "s1", UserID: "u1"}
	history := longHistory(600)

	got, err := e.SummarizeIfNeeded(ctx, session, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a summary")
	}
	if got.MessageCount != 590 {
		t.Errorf("folded count = %d, want 590 (600 minus keep-fresh 10)", got.MessageCount)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if len(got.Embedding) == 0 {
		t.Error("expected embedding on summary")
	}

	built, err := e.BuildContextWithSummary(ctx, "s1", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 2+10 {
		t.Fatalf("built context has %d messages, want 12 (summary pair + keep-fresh)", len(built))
	}
	if built[0].Role != core.RoleUser || built[1].Role != core.RoleAssistant {
		t.Error("synthetic pair roles wrong")
	}
	if built[2].ID != history[590].ID {
		t.Errorf("tail starts at id %d, want %d", built[2].ID, history[590].ID)
	}
}

func TestSummarizeIfNeeded_IdempotentWithoutNewMessages(t *testing.T) {
	repo := newMockSummaryRepo()
	provider := &mockProvider{response: "A running summary."}
	e := newTestEngine(provider, nil, repo)
	ctx := context.Background()

	session := core.Session{ID: "s1", UserID: "u1"}
	history := longHistory(600)

	first, err := e.SummarizeIfNeeded(ctx, session, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := e.SummarizeIfNeeded(ctx, session, history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Version != first.Version {
		t.Errorf("version changed on no-op: %d -> %d", first.Version, second.Version)
	}
	if second.MessageCount != first.MessageCount {
		t.Errorf("folded count changed on no-op: %d -> %d", first.MessageCount, second.MessageCount)
	}
	if second.Summary != first.Summary {
		t.Error("summary text changed on no-op")
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestSummarizeIfNeeded_IncrementalMerge(t *testing.T) {
	repo := newMockSummaryRepo()
	provider := &mockProvider{response: "Merged summary."}
	e := newTestEngine(provider, nil, repo)
	ctx := context.Background()

	session := core.Session{ID: "s1", UserID: "u1"}
	first, err := e.SummarizeIfNeeded(ctx, session, longHistory(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := e.SummarizeIfNeeded(ctx, session, longHistory(1200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Version != first.Version+1 {
		t.Errorf("version = %d, want %d", second.Version, first.Version+1)
	}
	if second.MessageCount != 1190 {
		t.Errorf("folded count = %d, want 1190", second.MessageCount)
	}
}

func TestSummarizeIfNeeded_EmbeddingFailureNonFatal(t *testing.T) {
	repo := newMockSummaryRepo()
	provider := &mockProvider{response: "Summary without a vector."}
	e := newTestEngine(provider, &mockEmbedder{err: errors.New("embedding service down")}, repo)

	got, err := e.SummarizeIfNeeded(context.Background(), core.Session{ID: "s1", UserID: "u1"}, longHistory(600))
	if err != nil {
		t.Fatalf("embedding failure must not fail summarization: %v", err)
	}
	if got == nil || got.Summary == "" {
		t.Fatal("expected summary to be saved")
	}
	if len(got.Embedding) != 0 {
		t.Error("expected no embedding after failure")
	}
}

func TestBuildContextWithSummary_NoSummaryPassesThrough(t *testing.T) {
	repo := newMockSummaryRepo()
	e := newTestEngine(&mockProvider{}, nil, repo)

	history := longHistory(8)
	history = append(history, core.Message{ID: 99, Role: core.RoleAssistant, Content: "broken", HasError: true})

	built, err := e.BuildContextWithSummary(context.Background(), "s1", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(built) != 8 {
		t.Fatalf("got %d messages, want 8 valid, no synthetic pair", len(built))
	}
	for _, m := range built {
		if m.HasError {
			t.Fatal("error message leaked through")
		}
	}
}
