package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chosenoffset/zeta/pkg/zeta/actions"
	"github.com/chosenoffset/zeta/pkg/zeta/dom"
	"github.com/chosenoffset/zeta/pkg/zeta/live"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr    string
	Sets    []string
	Journal string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <page.html>",
		Short: "Serve a page and keep browsers in sync with its state",
		Long: `Serve a bound page over HTTP. Browsers receive a websocket client that
forwards clicks and input to the engine and re-renders on every change.

Examples:
  zeta serve page.html
  zeta serve page.html --addr :8080 --journal session.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, else localhost:9090)")
	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "set a state key (key=value, value in YAML)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record changes to this SQLite journal")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command, path string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open page", err)
	}
	doc, err := dom.Parse(f)
	f.Close()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to parse page", err)
	}

	e, err := newEnv(ctx, opts.RootOptions, cmd, envOptions{Sets: opts.Sets, Journal: opts.Journal, Label: path})
	if err != nil {
		return err
	}
	defer e.Close()

	if opts.Verbose {
		doc.Actions().Use(actions.NewLogHandler(e.logger))
	}
	if _, err := dom.Scan(doc, e.engine); err != nil {
		return WrapExitError(ExitCommandError, "failed to scan page", err)
	}

	addr := opts.Addr
	if addr == "" {
		addr = e.cfg.Addr()
	}
	server := live.NewServer(addr, e.engine, doc, e.logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", path, addr)

	select {
	case err := <-errc:
		if err != nil {
			return WrapExitError(ExitCommandError, "live server failed", err)
		}
		return nil
	case <-ctx.Done():
	}
	if err := server.Stop(); err != nil {
		return WrapExitError(ExitFailure, "failed to stop live server", err)
	}
	return nil
}
