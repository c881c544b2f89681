// Package memory implements durable, user-scoped fact memory: extraction
// from conversation, deduplicated storage, and similarity retrieval.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/recall/internal/core"
)

// Facts below this confidence are discarded before storage.
const defaultMinConfidence = 0.5

// Candidate is one fact proposed by the extraction model, before
// deduplication and persistence.
type Candidate struct {
	Fact       string  `json:"fact"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

type Extractor struct {
	provider      core.ChatProvider
	minConfidence float64
}

func NewExtractor(provider core.ChatProvider) *Extractor {
	return &Extractor{
		provider:      provider,
		minConfidence: defaultMinConfidence,
	}
}

// ExtractFacts asks the model for durable, time-invariant facts present in
// the given messages. It needs at least two valid messages to have any
// conversational signal; fewer is a no-op, not an error.
func (e *Extractor) ExtractFacts(ctx context.Context, msgs []core.Message) ([]Candidate, error) {
	valid := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.HasError && m.Content != "" {
			valid = append(valid, m)
		}
	}
	if len(valid) < 2 {
		return nil, nil
	}

	resp, err := e.provider.Complete(ctx, core.ChatRequest{
		System:   extractionSystemPrompt,
		Messages: []core.Message{{Role: core.RoleUser, Content: buildExtractionPrompt(valid)}},
	})
	if err != nil {
		return nil, fmt.Errorf("llm extraction: %w", err)
	}

	candidates, err := parseExtractionResponse(resp)
	if err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		c.Fact = strings.TrimSpace(c.Fact)
		if c.Fact == "" || c.Confidence < e.minConfidence {
			continue
		}
		c.Category = normalizeCategory(c.Category)
		if c.Confidence > 1 {
			c.Confidence = 1
		}
		kept = append(kept, c)
	}
	return kept, nil
}

func parseExtractionResponse(content string) ([]Candidate, error) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in extraction response")
	}

	var candidates []Candidate
	if err := json.Unmarshal([]byte(jsonStr), &candidates); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}
	return candidates, nil
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}
	return content[start : start+end+1]
}

func normalizeCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case core.CategoryPersonal:
		return core.CategoryPersonal
	case core.CategoryPreference:
		return core.CategoryPreference
	case core.CategoryInterest:
		return core.CategoryInterest
	case core.CategoryProject:
		return core.CategoryProject
	case core.CategoryTechnical:
		return core.CategoryTechnical
	default:
		return core.CategoryGeneral
	}
}
