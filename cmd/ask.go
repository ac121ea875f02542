package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onlinetcs/support-assistant/internal/agent"
	"github.com/onlinetcs/support-assistant/internal/app"
	"github.com/onlinetcs/support-assistant/internal/session"
)

var (
	askUser    string
	askSession string
	askModel   string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question against the knowledge base",
	Long: `Sends a question to the assistant within an existing session. The
assistant searches the ingested documents and answers from what it finds.
Start a session first with "session start".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			question := strings.Join(args, " ")

			answer, err := a.Orchestrator.Ask(ctx, askUser, askSession, askModel, question)
			if err != nil {
				switch {
				case errors.Is(err, session.ErrSessionNotFound):
					return fmt.Errorf("session %q not found for user %q; create it with \"session start\"", askSession, askUser)
				case errors.Is(err, agent.ErrNoFinalResponse):
					fmt.Println(agent.NoFinalResponseMessage)
					return nil
				default:
					return err
				}
			}

			fmt.Println(answer)
			return nil
		})
	},
}

func init() {
	askCmd.Flags().StringVarP(&askUser, "user", "u", "default", "user identifier")
	askCmd.Flags().StringVarP(&askSession, "session", "s", "default", "session identifier")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "model alias (defaults to the configured default)")
	rootCmd.AddCommand(askCmd)
}
