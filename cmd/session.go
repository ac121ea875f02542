package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onlinetcs/support-assistant/internal/app"
	"github.com/onlinetcs/support-assistant/internal/session"
)

var sessionUser string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <session-id>",
	Short: "Start a new conversation session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			s, err := a.Sessions.Create(ctx, a.Config.AppName, sessionUser, args[0])
			if err != nil {
				if errors.Is(err, session.ErrSessionExists) {
					return fmt.Errorf("session %q already exists for user %q", args[0], sessionUser)
				}
				return err
			}
			fmt.Printf("Started session %q for user %q\n", s.SessionID, s.UserID)
			return nil
		})
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End a session and discard its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			err := a.Sessions.Delete(ctx, a.Config.AppName, sessionUser, args[0])
			if err != nil {
				if errors.Is(err, session.ErrSessionNotFound) {
					return fmt.Errorf("session %q not found for user %q", args[0], sessionUser)
				}
				return err
			}
			fmt.Printf("Ended session %q\n", args[0])
			return nil
		})
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions for a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			sessions, err := a.Sessions.ListForUser(ctx, a.Config.AppName, sessionUser)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Printf("No sessions for user %q.\n", sessionUser)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tTURNS\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%d\t%s\n",
					s.SessionID, len(s.History),
					s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

func init() {
	sessionCmd.PersistentFlags().StringVarP(&sessionUser, "user", "u", "default", "user identifier")
	sessionCmd.AddCommand(sessionStartCmd, sessionEndCmd, sessionListCmd)
	rootCmd.AddCommand(sessionCmd)
}
