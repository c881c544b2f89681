package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/transport/cli"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/sandevgo/recall/pkg/srv"
)

var (
	temporary bool
	resumeID  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `Opens a readline chat. Persistent sessions feed long-term memory; temporary ones (--temporary) are wiped on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		ctx, cancel := context.WithCancel(signalCtx)
		defer cancel()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting recall")

		app := NewApp(ctx)

		kind := core.SessionPersistent
		if temporary {
			kind = core.SessionTemporary
		}
		if resumeID != "" {
			if err := app.Chat.Resume(ctx, resumeID); err != nil {
				return err
			}
		} else {
			if err := app.Chat.StartSession(ctx, app.Cfg.UserID, kind); err != nil {
				return err
			}
		}

		rl, err := cli.NewReadLine(app.Chat, app.Cfg)
		if err != nil {
			return err
		}

		// Background services run for the whole chat; the readline loop
		// owns the foreground.
		srv.StartServices(ctx, app.Services)

		runErr := rl.Start(ctx)

		// Close the session before the background services lose the
		// database: synopsis generation and temporary-session cleanup
		// still need it.
		if err := rl.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("readline shutdown failed")
		}

		cancel()
		srv.ShutdownServices(ctx, app.Services)

		logger.Info().Msg("recall has been shut down gracefully")
		if runErr != nil && runErr != context.Canceled {
			return runErr
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().BoolVarP(&temporary, "temporary", "t", false, "throwaway session: no memory, wiped on exit")
	chatCmd.Flags().StringVarP(&resumeID, "resume", "r", "", "resume an existing session by id")
	rootCmd.AddCommand(chatCmd)
}
