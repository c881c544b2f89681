package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/recall/internal/core"
)

type vecEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (e *vecEmbedder) encode(text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *vecEmbedder) EncodeQuery(_ context.Context, text string) ([]float32, error) {
	return e.encode(text)
}

func (e *vecEmbedder) EncodeDocument(_ context.Context, text string) ([]float32, error) {
	return e.encode(text)
}

func (e *vecEmbedder) Dimensions() int { return 3 }

type memFactRepo struct {
	facts     map[int64]*core.MemoryFact
	nextID    int64
	searchErr error
	bumpErr   error
	bumped    []int64
}

func newMemFactRepo() *memFactRepo {
	return &memFactRepo{facts: make(map[int64]*core.MemoryFact), nextID: 1}
}

func (r *memFactRepo) InsertFact(_ context.Context, f core.MemoryFact) (int64, error) {
	for _, existing := range r.facts {
		if existing.UserID == f.UserID && existing.Fact == f.Fact {
			return 0, errors.New("UNIQUE constraint failed: memory_facts.user_id, memory_facts.fact")
		}
	}
	f.ID = r.nextID
	r.nextID++
	r.facts[f.ID] = &f
	return f.ID, nil
}

func (r *memFactRepo) UpdateFact(_ context.Context, id int64, fact string, confidence float64, embedding []float32) error {
	existing, ok := r.facts[id]
	if !ok {
		return fmt.Errorf("fact %d not found", id)
	}
	existing.Fact = fact
	existing.Confidence = confidence
	existing.Embedding = embedding
	return nil
}

func (r *memFactRepo) SearchFacts(_ context.Context, userID string, vector []float32, minSimilarity float32, limit int) ([]core.FactMatch, error) {
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	var matches []core.FactMatch
	for _, f := range r.facts {
		if f.UserID != userID || f.Deleted {
			continue
		}
		sim := cosine(vector, f.Embedding)
		if sim >= minSimilarity {
			matches = append(matches, core.FactMatch{Fact: *f, Similarity: sim})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *memFactRepo) BumpAccess(_ context.Context, ids []int64, _ time.Time) error {
	if r.bumpErr != nil {
		return r.bumpErr
	}
	r.bumped = append(r.bumped, ids...)
	return nil
}

func (r *memFactRepo) SoftDeleteFact(_ context.Context, id int64) error {
	if f, ok := r.facts[id]; ok {
		f.Deleted = true
	}
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func TestStoreFacts_InsertsNewFact(t *testing.T) {
	repo := newMemFactRepo()
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"User is a software engineer": {1, 0, 0},
	}}
	s := NewStore(repo, embedder)

	err := s.StoreFacts(context.Background(), "u1", "s1", []Candidate{
		{Fact: "User is a software engineer", Category: core.CategoryPersonal, Confidence: 0.95},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.facts) != 1 {
		t.Fatalf("stored %d facts, want 1", len(repo.facts))
	}
}

func TestStoreFacts_LowerConfidenceDoesNotOverwrite(t *testing.T) {
	repo := newMemFactRepo()
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"User is a software engineer":      {1, 0, 0},
		"User works as a software engineer": {0.99, 0.14, 0},
	}}
	s := NewStore(repo, embedder)
	ctx := context.Background()

	if err := s.StoreFacts(ctx, "u1", "s1", []Candidate{
		{Fact: "User is a software engineer", Category: core.CategoryPersonal, Confidence: 0.95},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.StoreFacts(ctx, "u1", "s2", []Candidate{
		{Fact: "User works as a software engineer", Category: core.CategoryPersonal, Confidence: 0.80},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.facts) != 1 {
		t.Fatalf("stored %d facts, want 1 (near-duplicate skipped)", len(repo.facts))
	}
	got := repo.facts[1]
	if got.Fact != "User is a software engineer" || got.Confidence != 0.95 {
		t.Errorf("stored fact changed: %q conf %v", got.Fact, got.Confidence)
	}
}

func TestStoreFacts_HigherConfidencePromotes(t *testing.T) {
	repo := newMemFactRepo()
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"User likes tea":        {0, 1, 0},
		"User prefers green tea": {0.1, 0.99, 0},
	}}
	s := NewStore(repo, embedder)
	ctx := context.Background()

	if err := s.StoreFacts(ctx, "u1", "s1", []Candidate{
		{Fact: "User likes tea", Category: core.CategoryPreference, Confidence: 0.6},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.StoreFacts(ctx, "u1", "s2", []Candidate{
		{Fact: "User prefers green tea", Category: core.CategoryPreference, Confidence: 0.9},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.facts) != 1 {
		t.Fatalf("stored %d facts, want 1 (in-place promotion)", len(repo.facts))
	}
	got := repo.facts[1]
	if got.Fact != "User prefers green tea" || got.Confidence != 0.9 {
		t.Errorf("promotion failed: %q conf %v", got.Fact, got.Confidence)
	}
}

func TestStoreFacts_PinnedNeverOverwritten(t *testing.T) {
	repo := newMemFactRepo()
	repo.facts[1] = &core.MemoryFact{
		ID: 1, UserID: "u1", Fact: "User likes tea", Confidence: 0.5,
		Embedding: []float32{0, 1, 0}, Pinned: true,
	}
	repo.nextID = 2
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"User prefers green tea": {0.1, 0.99, 0},
	}}
	s := NewStore(repo, embedder)

	if err := s.StoreFacts(context.Background(), "u1", "s2", []Candidate{
		{Fact: "User prefers green tea", Category: core.CategoryPreference, Confidence: 0.99},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.facts[1].Fact != "User likes tea" {
		t.Error("pinned fact was overwritten")
	}
}

func TestStoreFacts_ExactTextRaceSkipped(t *testing.T) {
	repo := newMemFactRepo()
	// Orthogonal vectors so dedup search misses, forcing the insert path
	// to hit the unique text constraint.
	repo.facts[1] = &core.MemoryFact{
		ID: 1, UserID: "u1", Fact: "User is left-handed", Confidence: 0.9,
		Embedding: []float32{1, 0, 0},
	}
	repo.nextID = 2
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"User is left-handed": {0, 1, 0},
	}}
	s := NewStore(repo, embedder)

	if err := s.StoreFacts(context.Background(), "u1", "s2", []Candidate{
		{Fact: "User is left-handed", Category: core.CategoryPersonal, Confidence: 0.9},
	}); err != nil {
		t.Fatalf("duplicate insert must be swallowed, got: %v", err)
	}
	if len(repo.facts) != 1 {
		t.Errorf("stored %d facts, want 1", len(repo.facts))
	}
}

func TestRetrieve_EmptyBelowThreshold(t *testing.T) {
	repo := newMemFactRepo()
	repo.facts[1] = &core.MemoryFact{
		ID: 1, UserID: "u1", Fact: "User plays chess", Embedding: []float32{1, 0, 0},
	}
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"unrelated query": {0, 0, 1},
	}}
	s := NewStore(repo, embedder)

	facts := s.Retrieve(context.Background(), "u1", "unrelated query", 5)
	if len(facts) != 0 {
		t.Errorf("got %d facts, want 0", len(facts))
	}
}

func TestRetrieve_FailureReturnsEmptyNotError(t *testing.T) {
	repo := newMemFactRepo()
	repo.searchErr = errors.New("vector index offline")
	s := NewStore(repo, &vecEmbedder{})

	facts := s.Retrieve(context.Background(), "u1", "anything", 5)
	if facts != nil {
		t.Errorf("expected nil on failure, got %v", facts)
	}

	s2 := NewStore(newMemFactRepo(), &vecEmbedder{err: errors.New("embedder down")})
	if facts := s2.Retrieve(context.Background(), "u1", "anything", 5); facts != nil {
		t.Errorf("expected nil on embed failure, got %v", facts)
	}
}

func TestRetrieve_BumpsAccessBestEffort(t *testing.T) {
	repo := newMemFactRepo()
	repo.facts[1] = &core.MemoryFact{
		ID: 1, UserID: "u1", Fact: "User plays chess", Embedding: []float32{1, 0, 0},
	}
	embedder := &vecEmbedder{vectors: map[string][]float32{"chess": {1, 0, 0}}}
	s := NewStore(repo, embedder)

	facts := s.Retrieve(context.Background(), "u1", "chess", 5)
	if len(facts) != 1 {
		t.Fatalf("got %d facts, want 1", len(facts))
	}
	if len(repo.bumped) != 1 || repo.bumped[0] != 1 {
		t.Errorf("access bump ids = %v, want [1]", repo.bumped)
	}

	// Bump failure must not drop results.
	repo.bumpErr = errors.New("write failed")
	if facts := s.Retrieve(context.Background(), "u1", "chess", 5); len(facts) != 1 {
		t.Errorf("bump failure dropped results: got %d facts", len(facts))
	}
}

func TestFormatFacts_CategoryPriorityOrder(t *testing.T) {
	facts := []core.MemoryFact{
		{Fact: "User contributes to open source", Category: core.CategoryTechnical},
		{Fact: "User lives in Warsaw", Category: core.CategoryPersonal},
		{Fact: "User prefers concise answers", Category: core.CategoryPreference},
	}

	out := FormatFacts(facts)
	if out == "" {
		t.Fatal("expected formatted output")
	}

	warsaw := indexOf(t, out, "User lives in Warsaw")
	concise := indexOf(t, out, "User prefers concise answers")
	oss := indexOf(t, out, "User contributes to open source")
	if !(warsaw < concise && concise < oss) {
		t.Errorf("category order wrong: personal=%d preference=%d technical=%d", warsaw, concise, oss)
	}

	if indexOf(t, out, factsHeader) != 0 {
		t.Error("output must start with the header marker")
	}
	if !strings.HasSuffix(out, factsFooter) {
		t.Error("output must end with the footer marker")
	}
}

func TestFormatFacts_Empty(t *testing.T) {
	if out := FormatFacts(nil); out != "" {
		t.Errorf("expected empty string, got %q", out)
	}
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	i := strings.Index(s, sub)
	if i == -1 {
		t.Fatalf("%q not found in output", sub)
	}
	return i
}
