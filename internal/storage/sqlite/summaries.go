package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sandevgo/recall/internal/core"
)

type SummariesRepo struct {
	db *sql.DB
}

func NewSummariesRepo(db *sql.DB) *SummariesRepo {
	return &SummariesRepo{db: db}
}

// GetSummary returns the session's summary row, or nil when the session has
// never been summarized.
func (r *SummariesRepo) GetSummary(ctx context.Context, sessionID string) (*core.SessionSummary, error) {
	query := `SELECT id, session_id, user_id, summary, message_count, version, kind, updated_at
		FROM session_summaries WHERE session_id = ?`

	var s core.SessionSummary
	var kind string
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID, &s.SessionID, &s.UserID, &s.Summary, &s.MessageCount, &s.Version, &kind, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	s.Kind = core.SummaryKind(kind)
	return &s, nil
}

// UpsertSummary replaces the session's single summary row and its vector.
// A nil embedding removes the old vector, leaving the row unsearchable.
func (r *SummariesRepo) UpsertSummary(ctx context.Context, s core.SessionSummary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO session_summaries (session_id, user_id, summary, message_count, version, kind, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			summary = excluded.summary,
			message_count = excluded.message_count,
			version = excluded.version,
			kind = excluded.kind,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.ExecContext(ctx, query, s.SessionID, s.UserID, s.Summary, s.MessageCount, s.Version, string(s.Kind)); err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM session_summaries WHERE session_id = ?`, s.SessionID).Scan(&id); err != nil {
		return fmt.Errorf("failed to resolve summary id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries_vec WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("failed to delete old summary vector: %w", err)
	}
	if len(s.Embedding) > 0 {
		vecBlob, err := serializeVector(s.Embedding)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO summaries_vec (rowid, embedding) VALUES (?, ?)`, id, vecBlob); err != nil {
			return fmt.Errorf("failed to insert summary vector: %w", err)
		}
	}

	return tx.Commit()
}

// SearchSummaries runs KNN over summary vectors for one user. Results are
// restricted to the user's most recently active sessions, then filtered by
// the similarity floor. sqlite-vec reports cosine distance; similarity is
// 1 - distance.
func (r *SummariesRepo) SearchSummaries(ctx context.Context, userID string, vector []float32, minSimilarity float32, recentSessions, limit int) ([]core.SummaryMatch, error) {
	recent, err := r.recentSessionIDs(ctx, userID, recentSessions)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}

	vecBlob, err := serializeVector(vector)
	if err != nil {
		return nil, err
	}

	// Overfetch to recentSessions: the recency and similarity filters run
	// after the KNN pass.
	query := `
		SELECT s.session_id, s.summary, v.distance, s.updated_at
		FROM summaries_vec v
		JOIN session_summaries s ON s.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ? AND s.user_id = ?
		ORDER BY v.distance
	`
	rows, err := r.db.QueryContext(ctx, query, vecBlob, recentSessions, userID)
	if err != nil {
		return nil, fmt.Errorf("summary search failed: %w", err)
	}
	defer rows.Close()

	var matches []core.SummaryMatch
	for rows.Next() {
		var m core.SummaryMatch
		var distance float32
		if err := rows.Scan(&m.SessionID, &m.Summary, &distance, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary match: %w", err)
		}
		m.Similarity = 1 - distance

		if !recent[m.SessionID] || m.Similarity < minSimilarity {
			continue
		}
		matches = append(matches, m)
		if len(matches) >= limit {
			break
		}
	}
	return matches, rows.Err()
}

func (r *SummariesRepo) recentSessionIDs(ctx context.Context, userID string, limit int) (map[string]bool, error) {
	// Sessions never surfaced by retrieval fall back to plain activity.
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE user_id = ?
		 ORDER BY COALESCE(last_searched_at, updated_at) DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sessions: %w", err)
	}
	defer rows.Close()

	recent := make(map[string]bool, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		recent[id] = true
	}
	return recent, rows.Err()
}
