// Package cli is the interactive terminal transport: a readline loop that
// streams answers as they arrive and renders thinking separately from the
// final text.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sandevgo/recall/internal/chat"
	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/generate"
	"github.com/sandevgo/recall/internal/ui"
	"github.com/sandevgo/recall/pkg/log"
)

type ReadLine struct {
	cfg  *config.AppConfig
	chat *chat.Service
	rl   *readline.Instance
}

func NewReadLine(chatSvc *chat.Service, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:  cfg,
		chat: chatSvc,
		rl:   rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Str("session", r.chat.SessionID()).Msg("chat started")
	fmt.Fprintln(r.rl.Stdout(), ui.NoticeStyle.Render("Type 'exit' to quit."))

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		r.runTurn(ctx, line)
	}
}

func (r *ReadLine) runTurn(ctx context.Context, query string) {
	out := r.rl.Stdout()
	inThinking := false

	_, err := r.chat.Send(ctx, query, nil, func(chunk core.StreamChunk) {
		switch {
		case chunk.Thinking && !inThinking:
			inThinking = true
			fmt.Fprint(out, ui.ThinkingStyle.Render(generate.ThinkingStart+"\n"+chunk.Text))
		case chunk.Thinking:
			fmt.Fprint(out, ui.ThinkingStyle.Render(chunk.Text))
		case inThinking:
			inThinking = false
			fmt.Fprint(out, ui.ThinkingStyle.Render("\n"+generate.ThinkingEnd+"\n"))
			fmt.Fprint(out, chunk.Text)
		default:
			fmt.Fprint(out, chunk.Text)
		}
	})
	fmt.Fprintln(out)

	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("turn failed")
		fmt.Fprintln(out, ui.ErrorStyle.Render(renderFailure(err)))
	}
}

// renderFailure turns a classified error into the short user-facing message
// plus its recovery suggestions.
func renderFailure(err error) string {
	message, actions := generate.Advice(generate.Classify(err))

	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(message)
	for _, a := range actions {
		b.WriteString("\n  - ")
		b.WriteString(describeAction(a))
	}
	return b.String()
}

func describeAction(a generate.RecoveryAction) string {
	switch a {
	case generate.ActionNewConversation:
		return "start a new conversation"
	case generate.ActionWaitAndRetry:
		return "wait a moment, then try again"
	case generate.ActionRetryNow:
		return "try again"
	case generate.ActionCheckConfig:
		return "check your provider configuration"
	default:
		return string(a)
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if err := r.chat.Close(ctx); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("failed to close chat session")
	}
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
