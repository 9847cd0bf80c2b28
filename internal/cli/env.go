package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chosenoffset/zeta/pkg/zeta"
	"github.com/chosenoffset/zeta/pkg/zeta/config"
	"github.com/chosenoffset/zeta/pkg/zeta/journal"
	"github.com/chosenoffset/zeta/pkg/zeta/logging"
)

// env is a configured engine plus the resources a command opened for it.
type env struct {
	cfg     *config.Config
	logger  logging.Logger
	engine  *zeta.Engine
	journal *journal.Journal
	session string
	errors  []*zeta.Error
}

// envOptions are the per-command inputs to newEnv.
type envOptions struct {
	// Sets are key=value pairs layered over the config's state.
	Sets []string
	// Journal overrides the config's journal path.
	Journal string
	Label   string
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger logs to w. Verbose forces debug. Without a configured format a
// terminal gets text and anything else gets JSON.
func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) logging.Logger {
	level := logging.LogLevelWarn
	if cfg.Logging.Level != "" {
		level = logging.ParseLevel(cfg.Logging.Level)
	}
	if opts.Verbose {
		level = logging.LogLevelDebug
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}
	return logging.NewSlogLogger(level, format, w)
}

func parseSets(sets []string) (map[string]any, error) {
	state := make(map[string]any, len(sets))
	for _, set := range sets {
		key, raw, ok := strings.Cut(set, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q: want key=value", set))
		}
		value, err := config.ParseValue(raw)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --set", err)
		}
		state[key] = value
	}
	return state, nil
}

func newEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command, eopts envOptions) (*env, error) {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	sets, err := parseSets(eopts.Sets)
	if err != nil {
		return nil, err
	}
	if len(sets) > 0 && cfg.State == nil {
		cfg.State = make(map[string]any, len(sets))
	}
	for k, v := range sets {
		cfg.State[k] = v
	}

	e := &env{cfg: cfg, logger: newLogger(opts, cfg, cmd.ErrOrStderr())}
	e.engine = zeta.NewEngine(cfg.EngineOptions(), func(o *zeta.Options) {
		o.Logger = e.logger
		o.OnError = func(zerr *zeta.Error) { e.errors = append(e.errors, zerr) }
	})

	path := cfg.Journal.Path
	if eopts.Journal != "" {
		path = eopts.Journal
	}
	if path != "" {
		if e.journal, err = journal.Open(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		// must precede Apply, which writes derived values
		if e.session, err = journal.Attach(ctx, e.engine, e.journal, eopts.Label); err != nil {
			e.Close()
			return nil, WrapExitError(ExitCommandError, "failed to start journal session", err)
		}
	}

	if err := cfg.Apply(e.engine); err != nil {
		e.Close()
		return nil, WrapExitError(ExitCommandError, "failed to configure engine", err)
	}
	return e, nil
}

// Close releases the journal, if one is open.
func (e *env) Close() error {
	if e.journal != nil {
		return e.journal.Close()
	}
	return nil
}

// errorMessages renders the failures the engine reported.
func (e *env) errorMessages() []string {
	out := make([]string, len(e.errors))
	for i, err := range e.errors {
		out[i] = err.Error()
	}
	return out
}
