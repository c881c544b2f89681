package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/recall/internal/core"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n\n"))
		}
	}))
}

func collect(t *testing.T, p *OpenAICompatible, req core.ChatRequest) ([]core.StreamChunk, error) {
	t.Helper()
	chunks, errs := p.Chat(context.Background(), req)
	var got []core.StreamChunk
	for c := range chunks {
		got = append(got, c)
	}
	return got, <-errs
}

func TestChatStreamsDeltasInOrder(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"reasoning":"let me think"}}]}`,
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"choices":[{"delta":{"content":" world"}}]}`,
		`data: [DONE]`,
	})
	defer srv.Close()

	p := NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: srv.URL, Model: "test"})
	got, err := collect(t, p, core.ChatRequest{Messages: []core.Message{{Role: core.RoleUser, Content: "hi"}}})

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Thinking)
	assert.Equal(t, "let me think", got[0].Text)
	assert.False(t, got[1].Thinking)
	assert.Equal(t, "Hello", got[1].Text)
	assert.Equal(t, " world", got[2].Text)
}

func TestChatContentFilterStopsStream(t *testing.T) {
	srv := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"par"}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"content_filter"}]}`,
	})
	defer srv.Close()

	p := NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: srv.URL, Model: "test"})
	got, err := collect(t, p, core.ChatRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "content filter")
	require.Len(t, got, 1)
}

func TestChatHTTPErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: srv.URL, Model: "test"})
	got, err := collect(t, p, core.ChatRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limit")
	assert.Empty(t, got)
}

func TestCompleteReturnsMessageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: srv.URL, Model: "test"})
	out, err := p.Complete(context.Background(), core.ChatRequest{System: "be brief"})

	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestWireMessagesPrependSystem(t *testing.T) {
	p := NewOpenAICompatible(OpenAICompatibleConfig{Model: "test"})
	msgs := p.wireMessages(core.ChatRequest{
		System: "sys",
		Messages: []core.Message{
			{Role: core.RoleUser, Content: "a"},
			{Role: core.RoleAssistant, Content: "b"},
		},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, core.RoleUser, msgs[1].Role)
	assert.Equal(t, core.RoleAssistant, msgs[2].Role)
}
