package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chosenoffset/zeta/pkg/zeta/actions"
	"github.com/chosenoffset/zeta/pkg/zeta/dom"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Sets    []string
	Execs   []string
	Clicks  []string
	Journal string
}

// RenderResult is the JSON payload of the render command.
type RenderResult struct {
	HTML       string         `json:"html"`
	State      map[string]any `json:"state"`
	Directives int            `json:"directives"`
	Session    string         `json:"session,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <page.html>",
		Short: "Bind a page to state and print the rendered HTML",
		Long: `Parse an HTML page, bind its z: directives to the engine and print the
result. --exec statements run first, in order, then --click events are
dispatched to the elements with the given id.

Exit codes:
  0 - Rendered without errors
  1 - Rendered, but the engine reported errors
  2 - Command error (unreadable page, bad config, etc.)

Examples:
  zeta render page.html --set count=1
  zeta render page.html --exec "count += 10" --click inc
  zeta render page.html --journal run.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "set a state key (key=value, value in YAML)")
	cmd.Flags().StringArrayVar(&opts.Execs, "exec", nil, "execute a statement after binding")
	cmd.Flags().StringArrayVar(&opts.Clicks, "click", nil, "dispatch a click to the element with this id")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record changes to this SQLite journal")

	return cmd
}

func runRender(opts *RenderOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()

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
	scanned, err := dom.Scan(doc, e.engine)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan page", err)
	}

	for _, code := range opts.Execs {
		e.engine.Execute(code)
	}
	var dispatchErrs []string
	for _, id := range opts.Clicks {
		if err := doc.Dispatch(id, actions.ClickEvent, nil); err != nil {
			dispatchErrs = append(dispatchErrs, err.Error())
		}
	}

	result := RenderResult{
		HTML:       doc.String(),
		State:      jsonState(e.engine.GetState()),
		Directives: scanned.Directives,
		Session:    e.session,
	}
	err = writeOutput(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, result.HTML)
		return err
	})
	if err != nil {
		return err
	}

	failures := append(e.errorMessages(), dispatchErrs...)
	if len(failures) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d errors while rendering: %s", len(failures), failures[0]))
	}
	return nil
}
