// Package cmd implements the assistant CLI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/onlinetcs/support-assistant/internal/app"
	"github.com/onlinetcs/support-assistant/internal/config"
	"github.com/onlinetcs/support-assistant/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Retrieval-augmented support assistant",
	Long: `assistant manages a knowledge base of institutional documents and
answers questions about them using retrieval-augmented generation.

Register documents with "assistant docs add", then ask questions with
"assistant ask". Answers are grounded in the ingested documents only.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger from the verbose flag.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}

// withApp loads configuration, builds the application and runs fn with a
// signal-aware context. The app is closed before withApp returns.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
	}()

	return fn(ctx, a)
}
