package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/recall/internal/core"
)

type FactsRepo struct {
	db *sql.DB
}

func NewFactsRepo(db *sql.DB) *FactsRepo {
	return &FactsRepo{db: db}
}

// InsertFact stores the fact row and its vector in one transaction. The
// UNIQUE(user_id, fact) constraint surfaces as an error the caller treats
// as a duplicate.
func (r *FactsRepo) InsertFact(ctx context.Context, f core.MemoryFact) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `INSERT INTO memory_facts (user_id, fact, category, confidence, source_session, source_message, pinned)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, query,
		f.UserID, f.Fact, f.Category, f.Confidence, f.SourceSession, f.SourceMessage, f.Pinned,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(f.Embedding) > 0 {
		vecBlob, err := serializeVector(f.Embedding)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO facts_vec (rowid, embedding) VALUES (?, ?)`, id, vecBlob); err != nil {
			return 0, fmt.Errorf("failed to insert fact vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateFact rewrites text, confidence and embedding in place. Used when a
// higher-confidence duplicate promotes an existing fact.
func (r *FactsRepo) UpdateFact(ctx context.Context, id int64, fact string, confidence float64, embedding []float32) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `UPDATE memory_facts SET fact = ?, confidence = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, fact, confidence, id); err != nil {
		return fmt.Errorf("failed to update fact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM facts_vec WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("failed to delete old fact vector: %w", err)
	}
	if len(embedding) > 0 {
		vecBlob, err := serializeVector(embedding)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO facts_vec (rowid, embedding) VALUES (?, ?)`, id, vecBlob); err != nil {
			return fmt.Errorf("failed to insert fact vector: %w", err)
		}
	}

	return tx.Commit()
}

// SearchFacts runs KNN over fact vectors for one user, dropping soft-deleted
// rows and anything under the similarity floor.
func (r *FactsRepo) SearchFacts(ctx context.Context, userID string, vector []float32, minSimilarity float32, limit int) ([]core.FactMatch, error) {
	vecBlob, err := serializeVector(vector)
	if err != nil {
		return nil, err
	}

	// Overfetch: the user and deleted filters run after the KNN pass, so
	// k must be larger than the requested limit.
	query := `
		SELECT f.id, f.user_id, f.fact, f.category, f.confidence, f.access_count, f.pinned, f.created_at, v.distance
		FROM facts_vec v
		JOIN memory_facts f ON f.id = v.rowid
		WHERE v.embedding MATCH ? AND k = ? AND f.user_id = ? AND f.deleted = 0
		ORDER BY v.distance
	`
	rows, err := r.db.QueryContext(ctx, query, vecBlob, limit*4, userID)
	if err != nil {
		return nil, fmt.Errorf("fact search failed: %w", err)
	}
	defer rows.Close()

	var matches []core.FactMatch
	for rows.Next() {
		var m core.FactMatch
		var distance float32
		if err := rows.Scan(
			&m.Fact.ID, &m.Fact.UserID, &m.Fact.Fact, &m.Fact.Category, &m.Fact.Confidence,
			&m.Fact.AccessCount, &m.Fact.Pinned, &m.Fact.CreatedAt, &distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fact match: %w", err)
		}
		m.Similarity = 1 - distance

		if m.Similarity < minSimilarity {
			continue
		}
		matches = append(matches, m)
		if len(matches) >= limit {
			break
		}
	}
	return matches, rows.Err()
}

// BumpAccess records retrieval hits so rarely used facts can be aged out
// later.
func (r *FactsRepo) BumpAccess(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(
		`UPDATE memory_facts SET access_count = access_count + 1, last_accessed = ? WHERE id IN (%s)`,
		placeholders,
	)

	args := make([]any, 0, len(ids)+1)
	args = append(args, at)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bump access: %w", err)
	}
	return nil
}

// SoftDeleteFact hides the fact from retrieval and drops its vector while
// keeping the row for audit.
func (r *FactsRepo) SoftDeleteFact(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE memory_facts SET deleted = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to soft delete fact: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts_vec WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("failed to delete fact vector: %w", err)
	}

	return tx.Commit()
}
