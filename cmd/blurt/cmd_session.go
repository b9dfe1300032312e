package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/blurt/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY\tSOURCE\tTURNS\tJOURNAL\tUPDATED")
		for _, s := range list {
			count, err := a.journal.Count(ctx, s.SessionID)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				s.SessionID,
				s.SessionKey,
				s.Source,
				s.Turns,
				count,
				s.UpdatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Clear the journal and dialogue state of a session, or of all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := context.Background()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		root := filepath.Join(cfg.DataDir, "sessions")
		out := cmd.OutOrStdout()

		if args[0] != "all" {
			sess, err := a.sessions.Get(ctx, types.SessionID(args[0]))
			if err != nil {
				return err
			}
			if err := clearSession(ctx, a, root, sess.SessionID); err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s cleared.\n", sess.SessionID)
			return nil
		}

		// Dialogue state can outlive its index entry, so sweep the collection.
		states, err := a.docs.All(ctx, types.CollectionDialogState)
		if err != nil {
			return fmt.Errorf("list dialogue state: %w", err)
		}
		for id := range states {
			if err := a.gateway.ClearState(ctx, types.SessionID(id)); err != nil {
				return fmt.Errorf("clear dialogue state %s: %w", id, err)
			}
		}
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("remove sessions directory: %w", err)
		}
		fmt.Fprintln(out, "All sessions cleared.")
		return nil
	},
}

// clearSession drops the dialogue state and journal of one indexed session.
// The index entry stays so the front-end key keeps its session id.
func clearSession(ctx context.Context, a *app, root string, id types.SessionID) error {
	if err := a.gateway.ClearState(ctx, id); err != nil {
		return fmt.Errorf("clear dialogue state: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(root, string(id))); err != nil {
		return fmt.Errorf("remove session journal: %w", err)
	}
	return nil
}
