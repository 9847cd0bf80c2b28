// Package config loads a zeta engine setup from YAML. Files are checked
// against an embedded CUE schema before they are decoded.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/chosenoffset/zeta/pkg/zeta"
	"github.com/chosenoffset/zeta/pkg/zeta/logging"
	"github.com/chosenoffset/zeta/pkg/zeta/parser"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded configuration file.
type Config struct {
	Options Options           `yaml:"options"`
	Limits  Limits            `yaml:"limits"`
	State   map[string]any    `yaml:"state"`
	Derive  map[string]string `yaml:"derive"`
	// Helpers names the built-in helpers to register; empty registers all.
	Helpers []string `yaml:"helpers"`
	Logging Logging  `yaml:"logging"`
	Journal Journal  `yaml:"journal"`
	Server  Server   `yaml:"server"`
}

type Options struct {
	RequirePrefix bool `yaml:"require_prefix"`
}

// Limits override zeta.DefaultLimits; zero keeps the default.
type Limits struct {
	MaxPropagationDepth int `yaml:"max_propagation_depth"`
	MaxExpressionNodes  int `yaml:"max_expression_nodes"`
	MaxListItems        int `yaml:"max_list_items"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Journal struct {
	Path string `yaml:"path"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

const DefaultAddr = "localhost:9090"

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the schema and decodes it. Unknown fields
// are rejected.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for k, v := range cfg.State {
		cfg.State[k] = normalize(v)
	}
	return &cfg, nil
}

// Validate checks a decoded YAML document against the embedded schema.
func Validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseValue reads a single YAML scalar or flow value, as given on a
// command line: "3" is an int64, "[1, 2]" a list, "hi" a string.
func ParseValue(s string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return normalize(v), nil
}

// normalize turns YAML ints into int64 so config state uses the engine's
// number model.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	}
	return v
}

// EngineLimits merges the configured limits over the defaults.
func (c *Config) EngineLimits() *zeta.Limits {
	limits := zeta.DefaultLimits()
	if c.Limits.MaxPropagationDepth > 0 {
		limits.MaxPropagationDepth = c.Limits.MaxPropagationDepth
	}
	if c.Limits.MaxExpressionNodes > 0 {
		limits.MaxExpressionNodes = c.Limits.MaxExpressionNodes
	}
	if c.Limits.MaxListItems > 0 {
		limits.MaxListItems = c.Limits.MaxListItems
	}
	return limits
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) logging.Logger {
	return logging.NewSlogLogger(logging.ParseLevel(c.Logging.Level), c.Logging.Format, w)
}

// Addr returns the live server address.
func (c *Config) Addr() string {
	if c.Server.Addr == "" {
		return DefaultAddr
	}
	return c.Server.Addr
}

// EngineOptions returns the NewEngine option carrying the configured limits.
func (c *Config) EngineOptions() func(o *zeta.Options) {
	return func(o *zeta.Options) {
		o.Limits = c.EngineLimits()
	}
}

// Apply configures, initializes and derives on engine. engine must not be
// initialized yet.
func (c *Config) Apply(engine *zeta.Engine) error {
	engine.Configure(zeta.ConfigureOptions{RequirePrefix: c.Options.RequirePrefix})

	helpers := zeta.DefaultHelpers()
	if len(c.Helpers) == 0 {
		engine.RegisterHelpers(helpers)
	} else {
		for _, name := range c.Helpers {
			fn, ok := helpers[name]
			if !ok {
				return fmt.Errorf("unknown helper %q", name)
			}
			engine.RegisterHelper(name, fn)
		}
	}

	state := make(map[string]any, len(c.State))
	for k, v := range c.State {
		state[k] = v
	}
	if err := engine.Initialize(state); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	for _, key := range deriveOrder(c.Derive) {
		engine.Derive(key, zeta.Expr(c.Derive[key]))
	}
	return nil
}

// deriveOrder sorts derived keys so a key is derived after the derived keys
// its expression mentions. Keys in a cycle keep alphabetical order.
func deriveOrder(derive map[string]string) []string {
	pending := make([]string, 0, len(derive))
	for k := range derive {
		pending = append(pending, k)
	}
	sort.Strings(pending)

	done := make(map[string]bool, len(derive))
	order := make([]string, 0, len(derive))
	for len(pending) > 0 {
		var next []string
		for _, key := range pending {
			ready := true
			for _, word := range parser.ScanIdentifiers(derive[key]) {
				if _, isDerived := derive[word]; isDerived && word != key && !done[word] {
					ready = false
					break
				}
			}
			if ready {
				order = append(order, key)
				done[key] = true
			} else {
				next = append(next, key)
			}
		}
		if len(next) == len(pending) {
			return append(order, next...)
		}
		pending = next
	}
	return order
}
