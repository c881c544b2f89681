package memory

import (
	"context"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

const defaultQueueSize = 64

// Job is one fire-and-forget extraction request, submitted after a
// completed turn. The submitting turn never waits for it.
type Job struct {
	UserID    string
	SessionID string
	Messages  []core.Message
}

// Worker drains extraction jobs off a bounded queue. Failures are logged
// and swallowed: background memory must never surface into a user turn.
type Worker struct {
	extractor *Extractor
	store     *Store
	jobs      chan Job
	done      chan struct{}
}

func NewWorker(extractor *Extractor, store *Store) *Worker {
	return &Worker{
		extractor: extractor,
		store:     store,
		jobs:      make(chan Job, defaultQueueSize),
		done:      make(chan struct{}),
	}
}

// Submit enqueues a job without blocking. A full queue drops the job: lost
// extraction is cheaper than a stalled turn.
func (w *Worker) Submit(ctx context.Context, job Job) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		log.FromCtx(ctx).Warn().Str("session", job.SessionID).Msg("extraction queue full, job dropped")
		return false
	}
}

// Pending reports how many jobs sit in the queue.
func (w *Worker) Pending() int {
	return len(w.jobs)
}

func (w *Worker) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("starting memory extraction worker")
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return nil
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

// drain processes jobs that were accepted before the stop signal. The run
// context is already cancelled here, so jobs run detached from it.
func (w *Worker) drain(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for {
		select {
		case job := <-w.jobs:
			w.process(ctx, job)
		default:
			return
		}
	}
}

func (w *Worker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
	case <-ctx.Done():
	}
	return nil
}

func (w *Worker) process(ctx context.Context, job Job) {
	logger := log.FromCtx(ctx)

	candidates, err := w.extractor.ExtractFacts(ctx, job.Messages)
	if err != nil {
		logger.Error().Err(err).Str("session", job.SessionID).Msg("fact extraction failed")
		return
	}
	if len(candidates) == 0 {
		return
	}

	if err := w.store.StoreFacts(ctx, job.UserID, job.SessionID, candidates); err != nil {
		logger.Error().Err(err).Str("session", job.SessionID).Msg("fact storage failed")
	}
}
