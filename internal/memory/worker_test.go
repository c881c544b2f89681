package memory

import (
	"context"
	"testing"
	"time"
)

func TestWorker_ProcessesSubmittedJob(t *testing.T) {
	repo := newMemFactRepo()
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"User is a backend engineer": {1, 0, 0},
	}}
	provider := &mockProvider{response: `[{"fact": "User is a backend engineer", "category": "personal", "confidence": 0.9}]`}

	w := NewWorker(NewExtractor(provider), NewStore(repo, embedder))
	ctx, cancel := context.WithCancel(context.Background())

	go func() { _ = w.Start(ctx) }()

	if !w.Submit(ctx, Job{UserID: "u1", SessionID: "s1", Messages: convo()}) {
		t.Fatal("submit rejected")
	}

	deadline := time.After(2 * time.Second)
	for len(repo.facts) == 0 {
		select {
		case <-deadline:
			t.Fatal("worker never stored the fact")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := w.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestWorker_SubmitNeverBlocksWhenFull(t *testing.T) {
	// Worker not started: the queue fills and further submits must drop.
	w := NewWorker(NewExtractor(&mockProvider{response: "[]"}), NewStore(newMemFactRepo(), &vecEmbedder{}))
	ctx := context.Background()

	accepted := 0
	for i := 0; i < defaultQueueSize+10; i++ {
		if w.Submit(ctx, Job{UserID: "u1", SessionID: "s1"}) {
			accepted++
		}
	}
	if accepted != defaultQueueSize {
		t.Errorf("accepted %d jobs, want queue capacity %d", accepted, defaultQueueSize)
	}
}

func TestWorker_DrainsQueuedJobsOnStop(t *testing.T) {
	repo := newMemFactRepo()
	embedder := &vecEmbedder{vectors: map[string][]float32{
		"User is a backend engineer": {1, 0, 0},
	}}
	provider := &mockProvider{response: `[{"fact": "User is a backend engineer", "category": "personal", "confidence": 0.9}]`}

	w := NewWorker(NewExtractor(provider), NewStore(repo, embedder))

	// Job accepted before the stop signal must still be processed.
	if !w.Submit(context.Background(), Job{UserID: "u1", SessionID: "s1", Messages: convo()}) {
		t.Fatal("submit rejected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(repo.facts) != 1 {
		t.Errorf("stored %d facts, want 1 from the drained queue", len(repo.facts))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := w.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestWorker_ExtractionFailureIsSwallowed(t *testing.T) {
	repo := newMemFactRepo()
	provider := &mockProvider{response: "no json here"}
	w := NewWorker(NewExtractor(provider), NewStore(repo, &vecEmbedder{}))

	// process directly: failures must not panic or propagate.
	w.process(context.Background(), Job{UserID: "u1", SessionID: "s1", Messages: convo()})
	if len(repo.facts) != 0 {
		t.Errorf("stored %d facts from a failed extraction", len(repo.facts))
	}
}
