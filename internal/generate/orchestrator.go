// Package generate runs one completion turn end to end: context assembly,
// streaming with thinking/answer demultiplexing, classified retry, and
// fire-and-forget memory extraction after a fully yielded response.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/recall/internal/assembler"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/memory"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/sandevgo/recall/pkg/retry"
)

// Thinking segments are wrapped in these sentinels when rendered as plain
// text, so downstream consumers can tell reasoning from the answer.
const (
	ThinkingStart = "<thinking>"
	ThinkingEnd   = "</thinking>"
)

// How many trailing history messages accompany the new exchange into the
// background extraction job.
const extractionTailLen = 8

type Orchestrator struct {
	assembler   *assembler.Assembler
	provider    core.ChatProvider
	worker      *memory.Worker
	retryConfig *retry.Config
	system      string
	temperature float32
}

func NewOrchestrator(asm *assembler.Assembler, provider core.ChatProvider, worker *memory.Worker, system string, temperature float32) *Orchestrator {
	return &Orchestrator{
		assembler:   asm,
		provider:    provider,
		worker:      worker,
		retryConfig: retry.NewDefaultConfig(),
		system:      system,
		temperature: temperature,
	}
}

// Turn runs one conversational turn. Chunks stream through onChunk in
// arrival order; the final answer text is returned once the stream ends.
// Failures come back as *Error with recovery advice attached. A bounded
// retry loop wraps the whole attempt: once any chunk has been yielded the
// turn is no longer retryable, because yielded text cannot be unsaid.
func (o *Orchestrator) Turn(ctx context.Context, req assembler.Request, onChunk func(core.StreamChunk)) (string, error) {
	logger := log.FromCtx(ctx)

	messages := o.assembler.Assemble(ctx, req)

	var answer string
	var yielded bool

	retrier := retry.NewRetrier(o.retryConfig, func(err error) bool {
		return !yielded && IsRetryable(Classify(err))
	})

	err := retrier.Do(ctx, func() error {
		var attemptErr error
		answer, yielded, attemptErr = o.attempt(ctx, messages, onChunk)
		if attemptErr != nil {
			logger.Warn().Err(attemptErr).Str("kind", string(Classify(attemptErr))).Msg("generation attempt failed")
		}
		return attemptErr
	})
	if err != nil {
		return "", &Error{Kind: Classify(err), Err: err}
	}

	// A cancelled turn never completed from the user's point of view, so
	// it must not feed background memory.
	if ctx.Err() == nil {
		o.scheduleExtraction(ctx, req, answer)
	}

	return answer, nil
}

func (o *Orchestrator) attempt(ctx context.Context, messages []core.Message, onChunk func(core.StreamChunk)) (string, bool, error) {
	chunks, errs := o.provider.Chat(ctx, core.ChatRequest{
		System:      o.system,
		Messages:    messages,
		Temperature: o.temperature,
		Thinking:    true,
	})

	var answer strings.Builder
	yielded := false
	for chunk := range chunks {
		select {
		case <-ctx.Done():
			// Stop consuming on cancellation; drain is the provider's
			// problem.
			return "", yielded, ctx.Err()
		default:
		}

		yielded = true
		if onChunk != nil {
			onChunk(chunk)
		}
		if !chunk.Thinking {
			answer.WriteString(chunk.Text)
		}
	}

	if err := <-errs; err != nil {
		return "", yielded, err
	}

	// A stream that finished without producing any answer text is an
	// implicit safety block.
	if answer.Len() == 0 {
		return "", yielded, ErrSafetyBlocked
	}

	return answer.String(), yielded, nil
}

func (o *Orchestrator) scheduleExtraction(ctx context.Context, req assembler.Request, answer string) {
	if o.worker == nil || req.UserID == "" || req.Session.Kind == core.SessionTemporary {
		return
	}

	tail := req.History
	if len(tail) > extractionTailLen {
		tail = tail[len(tail)-extractionTailLen:]
	}
	recent := make([]core.Message, 0, len(tail)+2)
	recent = append(recent, tail...)
	recent = append(recent,
		core.Message{Role: core.RoleUser, Content: req.Query},
		core.Message{Role: core.RoleAssistant, Content: answer},
	)

	o.worker.Submit(ctx, memory.Job{
		UserID:    req.UserID,
		SessionID: req.Session.ID,
		Messages:  recent,
	})
}

// WrapThinking renders a thinking segment as sentinel-delimited plain text.
func WrapThinking(text string) string {
	return fmt.Sprintf("%s%s%s", ThinkingStart, text, ThinkingEnd)
}
