package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chosenoffset/zeta/pkg/zeta"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Sets  []string
	Execs []string
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression against the configured state",
		Long: `Evaluate an expression against the state from --config and --set, after
running any --exec statements.

Examples:
  zeta eval "a + b" --set a=2 --set b=3
  zeta eval "upper(name)" --config app.yaml
  zeta eval total --exec "qty = 4" --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "set a state key (key=value, value in YAML)")
	cmd.Flags().StringArrayVar(&opts.Execs, "exec", nil, "execute a statement before evaluating")

	return cmd
}

func runEval(opts *EvalOptions, cmd *cobra.Command, expr string) error {
	e, err := newEnv(context.Background(), opts.RootOptions, cmd, envOptions{Sets: opts.Sets})
	if err != nil {
		return err
	}
	defer e.Close()

	for _, code := range opts.Execs {
		e.engine.Execute(code)
	}
	value := e.engine.Evaluate(expr)

	if failures := e.errorMessages(); len(failures) > 0 {
		return NewExitError(ExitFailure, failures[0])
	}
	return writeOutput(cmd.OutOrStdout(), opts.Format, jsonValue(value), func(w io.Writer) error {
		_, err := fmt.Fprintln(w, zeta.ToString(value))
		return err
	})
}
