package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/recall/internal/assembler"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/summary"
)

type stubRunner struct {
	answer string
	err    error
	reqs   []assembler.Request
}

func (r *stubRunner) Turn(_ context.Context, req assembler.Request, onChunk func(core.StreamChunk)) (string, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return "", r.err
	}
	if onChunk != nil {
		onChunk(core.StreamChunk{Text: r.answer})
	}
	return r.answer, nil
}

type stubSessions struct {
	created []core.Session
	deleted []string
	get     map[string]core.Session
}

func (s *stubSessions) CreateSession(_ context.Context, sess core.Session) error {
	s.created = append(s.created, sess)
	return nil
}

func (s *stubSessions) GetSession(_ context.Context, id string) (core.Session, error) {
	sess, ok := s.get[id]
	if !ok {
		return core.Session{}, errors.New("not found")
	}
	return sess, nil
}

func (s *stubSessions) TouchSearched(context.Context, string, time.Time) error {
	return nil
}

func (s *stubSessions) DeleteSession(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubMessages struct {
	added  []core.Message
	stored map[string][]core.Message
	nextID int64
}

func (m *stubMessages) AddMessage(_ context.Context, _ string, msg core.Message) (int64, error) {
	m.added = append(m.added, msg)
	m.nextID++
	return m.nextID, nil
}

func (m *stubMessages) GetMessages(_ context.Context, sessionID string, _ int) ([]core.Message, error) {
	return m.stored[sessionID], nil
}

func TestSendPersistsBothTurns(t *testing.T) {
	runner := &stubRunner{answer: "hi there"}
	sessions := &stubSessions{}
	messages := &stubMessages{}
	svc := newTestService(runner, sessions, messages)

	require.NoError(t, svc.StartSession(context.Background(), "u1", core.SessionPersistent))
	require.Len(t, sessions.created, 1)

	answer, err := svc.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", answer)

	require.Len(t, messages.added, 2)
	assert.Equal(t, core.RoleUser, messages.added[0].Role)
	assert.False(t, messages.added[0].HasError)
	assert.Equal(t, core.RoleAssistant, messages.added[1].Role)
	assert.Equal(t, "hi there", messages.added[1].Content)
}

func TestSendFailureFlagsUserMessage(t *testing.T) {
	runner := &stubRunner{err: errors.New("boom")}
	sessions := &stubSessions{}
	messages := &stubMessages{}
	svc := newTestService(runner, sessions, messages)

	require.NoError(t, svc.StartSession(context.Background(), "u1", core.SessionPersistent))

	_, err := svc.Send(context.Background(), "hello", nil, nil)
	require.Error(t, err)

	// The failed user turn is kept but flagged, and no assistant row exists.
	require.Len(t, messages.added, 1)
	assert.Equal(t, core.RoleUser, messages.added[0].Role)
	assert.True(t, messages.added[0].HasError)
}

func TestFailedTurnStaysOutOfNextRequest(t *testing.T) {
	runner := &stubRunner{err: errors.New("boom")}
	sessions := &stubSessions{}
	messages := &stubMessages{}
	svc := newTestService(runner, sessions, messages)

	require.NoError(t, svc.StartSession(context.Background(), "u1", core.SessionPersistent))
	_, err := svc.Send(context.Background(), "first", nil, nil)
	require.Error(t, err)

	runner.err = nil
	runner.answer = "ok"
	_, err = svc.Send(context.Background(), "second", nil, nil)
	require.NoError(t, err)

	// In-memory history never accumulated the failed turn.
	require.Len(t, runner.reqs, 2)
	assert.Empty(t, runner.reqs[1].History)
	assert.Equal(t, "second", runner.reqs[1].Query)
}

func TestCloseDeletesTemporarySession(t *testing.T) {
	runner := &stubRunner{answer: "ok"}
	sessions := &stubSessions{}
	messages := &stubMessages{}
	svc := newTestService(runner, sessions, messages)

	require.NoError(t, svc.StartSession(context.Background(), "u1", core.SessionTemporary))
	id := svc.SessionID()

	require.NoError(t, svc.Close(context.Background()))
	require.Len(t, sessions.deleted, 1)
	assert.Equal(t, id, sessions.deleted[0])
}

func TestResumeLoadsHistoryIntoRequests(t *testing.T) {
	runner := &stubRunner{answer: "ok"}
	sessions := &stubSessions{get: map[string]core.Session{
		"old": {ID: "old", UserID: "u1", Kind: core.SessionPersistent},
	}}
	messages := &stubMessages{stored: map[string][]core.Message{
		"old": {
			{Role: core.RoleUser, Content: "before"},
			{Role: core.RoleAssistant, Content: "earlier answer"},
		},
	}}
	svc := newTestService(runner, sessions, messages)

	require.NoError(t, svc.Resume(context.Background(), "old"))
	assert.Equal(t, "old", svc.SessionID())

	_, err := svc.Send(context.Background(), "again", nil, nil)
	require.NoError(t, err)

	require.Len(t, runner.reqs, 1)
	require.Len(t, runner.reqs[0].History, 2)
	assert.Equal(t, "before", runner.reqs[0].History[0].Content)
	assert.Equal(t, "u1", runner.reqs[0].UserID)
}

type stubProvider struct {
	response string
}

func (p *stubProvider) Chat(context.Context, core.ChatRequest) (<-chan core.StreamChunk, <-chan error) {
	chunks := make(chan core.StreamChunk)
	close(chunks)
	errs := make(chan error, 1)
	errs <- nil
	return chunks, errs
}

func (p *stubProvider) Complete(context.Context, core.ChatRequest) (string, error) {
	return p.response, nil
}

type recordingSummaries struct {
	mu      sync.Mutex
	upserts []core.SessionSummary
}

func (r *recordingSummaries) GetSummary(context.Context, string) (*core.SessionSummary, error) {
	return nil, nil
}

func (r *recordingSummaries) UpsertSummary(_ context.Context, s core.SessionSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, s)
	return nil
}

func (r *recordingSummaries) SearchSummaries(context.Context, string, []float32, float32, int, int) ([]core.SummaryMatch, error) {
	return nil, nil
}

func (r *recordingSummaries) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.upserts)
}

func TestIdleSessionGetsSynopsisOnNextSend(t *testing.T) {
	runner := &stubRunner{answer: "ok"}
	sessions := &stubSessions{get: map[string]core.Session{
		"old": {ID: "old", UserID: "u1", Kind: core.SessionPersistent},
	}}
	messages := &stubMessages{stored: map[string][]core.Message{
		"old": {
			{Role: core.RoleUser, Content: "tell me about trains"},
			{Role: core.RoleAssistant, Content: "trains are great"},
		},
	}}
	repo := &recordingSummaries{}
	syn := summary.NewSynopsizer(&stubProvider{response: "User discussed trains."}, nil, repo)
	svc := NewService(runner, sessions, messages, nil, syn, 100)

	require.NoError(t, svc.Resume(context.Background(), "old"))

	// Fake a long pause since the resumed session's last turn.
	svc.mu.Lock()
	svc.lastActivity = time.Now().Add(-time.Hour)
	svc.mu.Unlock()

	_, err := svc.Send(context.Background(), "back again", nil, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 10*time.Millisecond,
		"idle send never produced a synopsis")

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, core.SummarySynopsis, repo.upserts[0].Kind)
	assert.Equal(t, "old", repo.upserts[0].SessionID)
}

func newTestService(runner *stubRunner, sessions *stubSessions, messages *stubMessages) *Service {
	return NewService(runner, sessions, messages, nil, nil, 100)
}
