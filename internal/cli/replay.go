package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chosenoffset/zeta/pkg/zeta/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Session string
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	StartedAt time.Time `json:"started_at"`
	Changes   int       `json:"changes"`
}

// ReplayResult is the JSON payload of a session replay.
type ReplayResult struct {
	Session string         `json:"session"`
	Applied int            `json:"applied"`
	State   map[string]any `json:"state"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <journal.db>",
		Short: "List journal sessions or replay one into a fresh engine",
		Long: `Without --session, list the sessions recorded in a journal. With
--session, replay that session's top-level writes into an engine configured
from --config and print the resulting state as YAML.

Exit codes:
  0 - Success
  2 - Command error (journal or session not found, etc.)

Examples:
  zeta replay run.db
  zeta replay run.db --session 0192f5e4-...
  zeta replay run.db --session 0192f5e4-... --config app.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to replay")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()

	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	sessions, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if opts.Session == "" {
		return listSessions(opts, cmd.OutOrStdout(), sessions)
	}

	found := false
	for _, s := range sessions {
		if s.ID == opts.Session {
			found = true
			break
		}
	}
	if !found {
		return NewExitError(ExitCommandError, fmt.Sprintf("session %q not found", opts.Session))
	}

	e, err := newEnv(ctx, opts.RootOptions, cmd, envOptions{})
	if err != nil {
		return err
	}
	defer e.Close()

	applied, err := j.Replay(ctx, opts.Session, e.engine)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay session", err)
	}

	result := ReplayResult{Session: opts.Session, Applied: applied, State: jsonState(e.engine.GetState())}
	return writeOutput(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result.State); err != nil {
			return err
		}
		return enc.Close()
	})
}

func listSessions(opts *ReplayOptions, out io.Writer, sessions []journal.Session) error {
	summaries := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		summaries[i] = SessionSummary{ID: s.ID, Label: s.Label, StartedAt: s.StartedAt, Changes: s.Changes}
	}
	return writeOutput(out, opts.Format, summaries, func(w io.Writer) error {
		if len(summaries) == 0 {
			_, err := fmt.Fprintln(w, "No sessions found in journal.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tLABEL\tSTARTED\tCHANGES")
		for _, s := range summaries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Label, s.StartedAt.Format(time.RFC3339), s.Changes)
		}
		return tw.Flush()
	})
}
