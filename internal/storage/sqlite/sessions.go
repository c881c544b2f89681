package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/recall/internal/core"
)

type SessionsRepo struct {
	db *sql.DB
}

func NewSessionsRepo(db *sql.DB) *SessionsRepo {
	return &SessionsRepo{db: db}
}

func (r *SessionsRepo) CreateSession(ctx context.Context, s core.Session) error {
	query := `INSERT INTO sessions (id, user_id, title, kind) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.Title, string(s.Kind))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionsRepo) GetSession(ctx context.Context, id string) (core.Session, error) {
	query := `SELECT id, user_id, title, kind, created_at, updated_at, last_searched_at FROM sessions WHERE id = ?`

	var s core.Session
	var kind string
	var searched sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.Title, &kind, &s.CreatedAt, &s.UpdatedAt, &searched,
	)
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	s.Kind = core.SessionKind(kind)
	if searched.Valid {
		s.LastSearchedAt = searched.Time
	}
	return s, nil
}

// TouchSearched records that cross-session retrieval surfaced this session,
// which keeps it inside the recency window for future searches.
func (r *SessionsRepo) TouchSearched(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET last_searched_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

func (r *SessionsRepo) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM summaries_vec WHERE rowid IN (SELECT id FROM session_summaries WHERE session_id = ?)`, id); err != nil {
		return fmt.Errorf("failed to delete summary vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_summaries WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete summaries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return tx.Commit()
}
