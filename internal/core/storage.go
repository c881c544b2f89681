package core

import (
	"context"
	"time"
)

type SessionRepository interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	TouchSearched(ctx context.Context, id string, at time.Time) error
	DeleteSession(ctx context.Context, id string) error
}

type MessagesRepository interface {
	AddMessage(ctx context.Context, sessionID string, msg Message) (int64, error)
	GetMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
}

type SummaryRepository interface {
	GetSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	// UpsertSummary inserts or replaces the single summary row for the
	// session, bumping version and updated_at. A nil embedding leaves the
	// row unsearchable but valid.
	UpsertSummary(ctx context.Context, s SessionSummary) error
	// SearchSummaries runs nearest-neighbor search over summary embeddings
	// for one user, restricted to the most recently searched sessions.
	SearchSummaries(ctx context.Context, userID string, vector []float32, minSimilarity float32, recentSessions, limit int) ([]SummaryMatch, error)
}

type FactRepository interface {
	InsertFact(ctx context.Context, f MemoryFact) (int64, error)
	// UpdateFact overwrites text, confidence and embedding of an existing
	// row in place (dedup promotion).
	UpdateFact(ctx context.Context, id int64, fact string, confidence float64, embedding []float32) error
	SearchFacts(ctx context.Context, userID string, vector []float32, minSimilarity float32, limit int) ([]FactMatch, error)
	BumpAccess(ctx context.Context, ids []int64, at time.Time) error
	SoftDeleteFact(ctx context.Context, id int64) error
}
