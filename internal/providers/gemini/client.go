// Package gemini adapts the Google GenAI SDK to the pipeline's provider
// interfaces: streaming chat with thinking demultiplexing, embeddings with
// task-type hints, and exact token counting.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
)

var defaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
}

type Client struct {
	client     *genai.Client
	model      string
	embedModel string
	dimensions int32
}

func NewClient(ctx context.Context, cfg *config.GeminiConfig) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		client:     client,
		model:      cfg.Model,
		embedModel: cfg.EmbeddingModel,
		dimensions: int32(cfg.EmbeddingDimensions),
	}, nil
}

// Chat streams one completion. Thinking parts become Thinking chunks;
// answer parts stream as plain text. An explicit safety finish reason
// surfaces as an error without yielding further content.
func (c *Client) Chat(ctx context.Context, req core.ChatRequest) (<-chan core.StreamChunk, <-chan error) {
	chunks := make(chan core.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)

		cfg := c.generateConfig(req)
		contents := toContents(req.Messages)

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, cfg) {
			if err != nil {
				errs <- fmt.Errorf("generate stream: %w", err)
				return
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]

			if cand.FinishReason == genai.FinishReasonSafety {
				errs <- fmt.Errorf("stream stopped: response blocked by safety settings")
				return
			}

			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case chunks <- core.StreamChunk{Text: part.Text, Thinking: part.Thought}:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
		errs <- nil
	}()

	return chunks, errs
}

// Complete is the non-streaming call used by summarization and fact
// extraction.
func (c *Client) Complete(ctx context.Context, req core.ChatRequest) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(req.Messages), c.generateConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

func (c *Client) generateConfig(req core.ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(req.Temperature),
		SafetySettings: defaultSafetySettings,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Thinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}
	return cfg
}

func (c *Client) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, "RETRIEVAL_QUERY")
}

func (c *Client) EncodeDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, "RETRIEVAL_DOCUMENT")
}

func (c *Client) Dimensions() int {
	return int(c.dimensions)
}

func (c *Client) embed(ctx context.Context, text string, task string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	result, err := c.client.Models.EmbedContent(ctx, c.embedModel, contents, &genai.EmbedContentConfig{
		TaskType:             task,
		OutputDimensionality: genai.Ptr(c.dimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

// CountTokens satisfies core.TokenCounter using the remote exact counter.
func (c *Client) CountTokens(ctx context.Context, text string) (int, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.client.Models.CountTokens(ctx, c.model, contents, nil)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return int(resp.TotalTokens), nil
}

func toContents(msgs []core.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if m.Role == core.RoleAssistant {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, 1+len(m.Attachments))
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, a := range m.Attachments {
			parts = append(parts, genai.NewPartFromBytes(a.Data, a.MimeType))
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
