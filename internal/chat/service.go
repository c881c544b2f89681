// Package chat owns the lifecycle of one interactive session: creating or
// resuming it, persisting turns, and triggering summarization work around
// the generation pipeline.
package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandevgo/recall/internal/assembler"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/summary"
	"github.com/sandevgo/recall/pkg/log"
)

// How much history is replayed into memory when resuming a session.
const resumeHistoryLimit = 200

type turnRunner interface {
	Turn(ctx context.Context, req assembler.Request, onChunk func(core.StreamChunk)) (string, error)
}

type Service struct {
	runner       turnRunner
	sessions     core.SessionRepository
	messages     core.MessagesRepository
	engine       *summary.Engine
	synopsizer   *summary.Synopsizer
	systemTokens int

	mu           sync.Mutex
	userID       string
	session      core.Session
	history      []core.Message
	lastActivity time.Time
}

func NewService(
	runner turnRunner,
	sessions core.SessionRepository,
	messages core.MessagesRepository,
	engine *summary.Engine,
	synopsizer *summary.Synopsizer,
	systemTokens int,
) *Service {
	return &Service{
		runner:       runner,
		sessions:     sessions,
		messages:     messages,
		engine:       engine,
		synopsizer:   synopsizer,
		systemTokens: systemTokens,
	}
}

// StartSession opens a fresh session. Temporary sessions are deleted with
// all their rows when the service closes.
func (s *Service) StartSession(ctx context.Context, userID string, kind core.SessionKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := core.Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Kind:   kind,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	s.userID = userID
	s.session = session
	s.history = nil
	s.lastActivity = time.Now()
	return nil
}

// Resume reloads an existing session and its recent history.
func (s *Service) Resume(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	history, err := s.messages.GetMessages(ctx, sessionID, resumeHistoryLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	s.userID = session.UserID
	s.session = session
	s.history = history
	s.lastActivity = time.Now()
	return nil
}

func (s *Service) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.ID
}

// Send runs one turn. The user message is persisted even when generation
// fails, flagged so it never re-enters context assembly. Summarization runs
// in the background after a successful turn.
func (s *Service) Send(ctx context.Context, query string, attachments []core.Attachment, onChunk func(core.StreamChunk)) (string, error) {
	s.mu.Lock()
	req := assembler.Request{
		UserID:       s.userID,
		Session:      s.session,
		History:      append([]core.Message(nil), s.history...),
		Query:        query,
		SystemTokens: s.systemTokens,
	}
	idleSince := s.lastActivity
	s.mu.Unlock()

	// A session that sat idle gets its synopsis refreshed before the new
	// turn lands, so retrieval can already see the pre-idle conversation.
	if s.synopsizer != nil && req.Session.Kind != core.SessionTemporary &&
		len(req.History) > 0 && summary.Due(idleSince, 0) {
		go s.synopsize(context.WithoutCancel(ctx), req.Session, req.History)
	}

	answer, turnErr := s.runner.Turn(ctx, req, onChunk)

	userMsg := core.Message{
		Role:        core.RoleUser,
		Content:     query,
		Attachments: attachments,
		HasError:    turnErr != nil,
		CreatedAt:   time.Now(),
	}
	s.persist(ctx, req.Session.ID, &userMsg)

	if turnErr != nil {
		return "", turnErr
	}

	assistantMsg := core.Message{
		Role:      core.RoleAssistant,
		Content:   answer,
		CreatedAt: time.Now(),
	}
	s.persist(ctx, req.Session.ID, &assistantMsg)

	s.mu.Lock()
	s.history = append(s.history, userMsg, assistantMsg)
	s.lastActivity = time.Now()
	session := s.session
	history := append([]core.Message(nil), s.history...)
	s.mu.Unlock()

	if session.Kind != core.SessionTemporary && s.engine != nil {
		go s.summarize(context.WithoutCancel(ctx), session, history)
	}

	return answer, nil
}

// Close ends the session: temporary sessions are wiped, persistent ones
// that went idle without a full summary get a synopsis so cross-session
// retrieval can still find them.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	history := append([]core.Message(nil), s.history...)
	s.mu.Unlock()

	if session.ID == "" {
		return nil
	}

	if session.Kind == core.SessionTemporary {
		if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
			return fmt.Errorf("delete temporary session: %w", err)
		}
		return nil
	}

	if s.synopsizer != nil && len(history) > 0 {
		if _, err := s.synopsizer.Generate(ctx, session, history); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("session", session.ID).Msg("synopsis generation failed")
		}
	}
	return nil
}

func (s *Service) persist(ctx context.Context, sessionID string, msg *core.Message) {
	id, err := s.messages.AddMessage(ctx, sessionID, *msg)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to persist message")
		return
	}
	msg.ID = id
}

func (s *Service) synopsize(ctx context.Context, session core.Session, history []core.Message) {
	if _, err := s.synopsizer.Generate(ctx, session, history); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("session", session.ID).Msg("idle synopsis failed")
	}
}

func (s *Service) summarize(ctx context.Context, session core.Session, history []core.Message) {
	if _, err := s.engine.SummarizeIfNeeded(ctx, session, history); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("session", session.ID).Msg("summarization failed")
	}
}
