package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	// Two facts above this similarity are considered the same statement.
	defaultDedupSimilarity = 0.88

	// Retrieval ignores matches below this floor.
	defaultRetrievalFloor = 0.55

	defaultRetrieveLimit = 8
)

type Store struct {
	repo            core.FactRepository
	embedder        core.Embedder
	dedupSimilarity float32
	retrievalFloor  float32
}

func NewStore(repo core.FactRepository, embedder core.Embedder) *Store {
	return &Store{
		repo:            repo,
		embedder:        embedder,
		dedupSimilarity: defaultDedupSimilarity,
		retrievalFloor:  defaultRetrievalFloor,
	}
}

// StoreFacts persists candidates with near-duplicate suppression: an
// existing fact above the dedup similarity is overwritten in place only
// when the new candidate arrives with strictly higher confidence (and the
// stored fact is not pinned); otherwise the candidate is dropped. The
// unique (user, fact text) constraint backs this up against races.
func (s *Store) StoreFacts(ctx context.Context, userID, sessionID string, candidates []Candidate) error {
	logger := log.FromCtx(ctx)

	for _, c := range candidates {
		vec, err := s.embedder.EncodeDocument(ctx, c.Fact)
		if err != nil {
			return fmt.Errorf("embed fact: %w", err)
		}

		matches, err := s.repo.SearchFacts(ctx, userID, vec, s.dedupSimilarity, 1)
		if err != nil {
			return fmt.Errorf("dedup search: %w", err)
		}

		if len(matches) > 0 {
			existing := matches[0].Fact
			if existing.Pinned || c.Confidence <= existing.Confidence {
				logger.Debug().Str("fact", c.Fact).Msg("near-duplicate fact skipped")
				continue
			}
			if err := s.repo.UpdateFact(ctx, existing.ID, c.Fact, c.Confidence, vec); err != nil {
				return fmt.Errorf("promote fact: %w", err)
			}
			logger.Info().Str("category", c.Category).Msg("memory fact promoted")
			continue
		}

		_, err = s.repo.InsertFact(ctx, core.MemoryFact{
			UserID:        userID,
			Fact:          c.Fact,
			Category:      c.Category,
			Confidence:    c.Confidence,
			Embedding:     vec,
			SourceSession: sessionID,
		})
		if err != nil {
			if isDuplicateError(err) {
				continue
			}
			return fmt.Errorf("insert fact: %w", err)
		}
		logger.Info().Str("category", c.Category).Msg("memory fact stored")
	}
	return nil
}

// Retrieve returns up to limit facts relevant to query, ordered by
// similarity. Memory is an enhancement: every failure path returns an empty
// slice, never an error. Access bookkeeping on returned facts is
// best-effort.
func (s *Store) Retrieve(ctx context.Context, userID, query string, limit int) []core.MemoryFact {
	logger := log.FromCtx(ctx)
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}

	vec, err := s.embedder.EncodeQuery(ctx, query)
	if err != nil {
		logger.Warn().Err(err).Msg("memory query embedding failed")
		return nil
	}

	matches, err := s.repo.SearchFacts(ctx, userID, vec, s.retrievalFloor, limit)
	if err != nil {
		logger.Warn().Err(err).Msg("memory search failed")
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	facts := make([]core.MemoryFact, len(matches))
	ids := make([]int64, len(matches))
	for i, m := range matches {
		facts[i] = m.Fact
		ids[i] = m.Fact.ID
	}

	if err := s.repo.BumpAccess(ctx, ids, time.Now().UTC()); err != nil {
		logger.Debug().Err(err).Msg("access bump failed")
	}
	return facts
}

func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
