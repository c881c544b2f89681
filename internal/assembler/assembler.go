// Package assembler builds the final bounded message sequence for one
// conversational turn, degrading through three tiers: memory + session
// retrieval + summary, then summary alone, then the sliding window.
package assembler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/memory"
	"github.com/sandevgo/recall/internal/rag"
	"github.com/sandevgo/recall/internal/summary"
	"github.com/sandevgo/recall/internal/window"
	"github.com/sandevgo/recall/pkg/log"
)

const memoryRetrieveLimit = 8

type memoryRetriever interface {
	Retrieve(ctx context.Context, userID, query string, limit int) []core.MemoryFact
}

type sessionRetriever interface {
	RelevantSessions(ctx context.Context, userID, excludeSession, query string, limit int) ([]core.SummaryMatch, error)
}

type summarizer interface {
	BuildContextWithSummary(ctx context.Context, sessionID string, history []core.Message) ([]core.Message, error)
}

type Assembler struct {
	memory        memoryRetriever
	sessions      sessionRetriever
	summarizer    summarizer
	window        *window.Builder
	memoryEnabled bool
}

func New(mem memoryRetriever, sessions sessionRetriever, sum summarizer, win *window.Builder, memoryEnabled bool) *Assembler {
	return &Assembler{
		memory:        mem,
		sessions:      sessions,
		summarizer:    sum,
		window:        win,
		memoryEnabled: memoryEnabled,
	}
}

// Request carries everything one assembly call needs. History holds the
// prior turns only; Query is the new user turn and is always appended last.
type Request struct {
	UserID       string
	Session      core.Session
	History      []core.Message
	Query        string
	SystemTokens int
}

// Assemble returns the ordered message sequence for the turn. It cannot
// fail: each enhancement tier catches its own errors and falls through,
// and the innermost sliding window always produces a result.
func (a *Assembler) Assemble(ctx context.Context, req Request) []core.Message {
	logger := log.FromCtx(ctx)

	// Guests and temporary sessions never consult persistent state.
	ephemeral := req.UserID == "" || req.Session.ID == "" || req.Session.Kind == core.SessionTemporary

	if a.memoryEnabled && !ephemeral {
		if msgs, err := a.assembleWithMemory(ctx, req); err == nil {
			return msgs
		} else {
			logger.Warn().Err(err).Msg("memory tier failed, falling back to summary tier")
		}
	}

	if !ephemeral && a.summarizer != nil {
		if tail, err := a.summarizer.BuildContextWithSummary(ctx, req.Session.ID, req.History); err == nil {
			return appendQuery(tail, req.Query)
		} else {
			logger.Warn().Err(err).Msg("summary tier failed, falling back to sliding window")
		}
	}

	win := a.window.Build(req.History, req.SystemTokens)
	return appendQuery(win.Messages, req.Query)
}

func (a *Assembler) assembleWithMemory(ctx context.Context, req Request) ([]core.Message, error) {
	var (
		facts   []core.MemoryFact
		matches []core.SummaryMatch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		facts = a.memory.Retrieve(gctx, req.UserID, req.Query, memoryRetrieveLimit)
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = a.sessions.RelevantSessions(gctx, req.UserID, req.Session.ID, req.Query, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tail, err := a.summarizer.BuildContextWithSummary(ctx, req.Session.ID, req.History)
	if err != nil {
		return nil, err
	}

	out := make([]core.Message, 0, len(tail)+5)
	if block := memory.FormatFacts(facts); block != "" {
		out = append(out, summary.SyntheticPair(
			block,
			"Noted. I will keep these remembered facts in mind.",
		)...)
	}
	if block := rag.FormatMatches(matches, time.Now()); block != "" {
		out = append(out, summary.SyntheticPair(
			block,
			"Noted. I will use these past conversations where relevant.",
		)...)
	}
	out = append(out, tail...)
	return appendQuery(out, req.Query), nil
}

func appendQuery(msgs []core.Message, query string) []core.Message {
	if query == "" {
		return msgs
	}
	return append(msgs, core.Message{
		Role:      core.RoleUser,
		Content:   query,
		CreatedAt: time.Now().UTC(),
	})
}
