// Package rag retrieves context from other sessions of the same user by
// similarity search over persisted session summaries.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/pkg/log"
)

const (
	defaultMinSimilarity = 0.55

	// Cost control: only this many most-recently-searched sessions are
	// candidates for any one query.
	defaultRecentSessions = 50

	defaultLimit = 3
)

type Retriever struct {
	summaries      core.SummaryRepository
	sessions       core.SessionRepository
	embedder       core.Embedder
	minSimilarity  float32
	recentSessions int
}

func NewRetriever(summaries core.SummaryRepository, sessions core.SessionRepository, embedder core.Embedder) *Retriever {
	return &Retriever{
		summaries:      summaries,
		sessions:       sessions,
		embedder:       embedder,
		minSimilarity:  defaultMinSimilarity,
		recentSessions: defaultRecentSessions,
	}
}

// RelevantSessions returns up to limit summary matches for the query,
// ordered by similarity, never including the session the query came from.
func (r *Retriever) RelevantSessions(ctx context.Context, userID, excludeSession, query string, limit int) ([]core.SummaryMatch, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	vec, err := r.embedder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Fetch one extra in case the current session shows up.
	matches, err := r.summaries.SearchSummaries(ctx, userID, vec, r.minSimilarity, r.recentSessions, limit+1)
	if err != nil {
		return nil, fmt.Errorf("summary search: %w", err)
	}

	out := make([]core.SummaryMatch, 0, limit)
	for _, m := range matches {
		if m.SessionID == excludeSession {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}

	// Surfaced sessions stay inside the recency window for future
	// queries. Best-effort: a lost bump only narrows a later candidate
	// set.
	if r.sessions != nil {
		now := time.Now().UTC()
		for _, m := range out {
			if err := r.sessions.TouchSearched(ctx, m.SessionID, now); err != nil {
				log.FromCtx(ctx).Debug().Err(err).Str("session", m.SessionID).Msg("session search touch failed")
			}
		}
	}

	return out, nil
}

// FormatMatches renders matches with a human-relative label plus the
// absolute date, each quoting the stored summary verbatim.
func FormatMatches(matches []core.SummaryMatch, now time.Time) string {
	if len(matches) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== RELATED PAST CONVERSATIONS ===\n")
	for _, m := range matches {
		b.WriteString(fmt.Sprintf("[%s, %s]\n", RelativeLabel(m.UpdatedAt, now), m.UpdatedAt.Format("2006-01-02")))
		b.WriteString(m.Summary)
		b.WriteString("\n\n")
	}
	b.WriteString("=== END OF RELATED PAST CONVERSATIONS ===")
	return b.String()
}

// RelativeLabel maps an age to "today", "yesterday", "N days ago",
// "N weeks ago" or "N months ago".
func RelativeLabel(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		weeks := days / 7
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		months := days / 30
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	}
}
