package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sandevgo/recall/internal/core"
)

// OpenAICompatible speaks the chat-completions wire format shared by
// OpenRouter, Ollama and self-hosted gateways. Streaming uses SSE with
// "data:" framed JSON deltas.
type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string
}

type OpenAICompatibleConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	return &OpenAICompatible{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		extraHeaders: cfg.ExtraHeaders,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat streams one completion over SSE. Reasoning deltas arrive as thinking
// chunks, content deltas as answer text. The chunk channel closes when the
// stream ends; exactly one value is then readable from the error channel.
func (o *OpenAICompatible) Chat(ctx context.Context, req core.ChatRequest) (<-chan core.StreamChunk, <-chan error) {
	chunks := make(chan core.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		errs <- o.stream(ctx, req, chunks)
	}()

	return chunks, errs
}

func (o *OpenAICompatible) stream(ctx context.Context, req core.ChatRequest, chunks chan<- core.StreamChunk) error {
	payload := map[string]any{
		"model":       o.model,
		"messages":    o.wireMessages(req),
		"temperature": req.Temperature,
		"stream":      true,
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, o.headers())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}

		var delta streamDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}
		if len(delta.Choices) == 0 {
			continue
		}
		choice := delta.Choices[0]

		if choice.FinishReason == "content_filter" {
			return fmt.Errorf("stream stopped: response blocked by content filter")
		}

		if choice.Delta.Reasoning != "" {
			if err := send(ctx, chunks, core.StreamChunk{Text: choice.Delta.Reasoning, Thinking: true}); err != nil {
				return err
			}
		}
		if choice.Delta.Content != "" {
			if err := send(ctx, chunks, core.StreamChunk{Text: choice.Delta.Content}); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

// Complete is the single-shot call used by background summarization and
// extraction work.
func (o *OpenAICompatible) Complete(ctx context.Context, req core.ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	payload := map[string]any{
		"model":       o.model,
		"messages":    o.wireMessages(req),
		"temperature": req.Temperature,
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, o.headers())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errorFromResponse(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var result struct {
		Choices []struct {
			Message wireMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty choices: %s", string(data))
	}
	return result.Choices[0].Message.Content, nil
}

func (o *OpenAICompatible) wireMessages(req core.ChatRequest) []wireMessage {
	msgs := make([]wireMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func (o *OpenAICompatible) headers() map[string]string {
	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}
	return headers
}

func send(ctx context.Context, chunks chan<- core.StreamChunk, c core.StreamChunk) error {
	select {
	case chunks <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
