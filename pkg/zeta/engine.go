// Package zeta provides a reactive state-binding engine for declarative UI
// attributes. A mutable state store is observed, expressions referencing it
// are evaluated lazily and cached, and binding callbacks run synchronously
// whenever a state key an expression depends on changes.
//
// # Quick Start
//
//	engine := zeta.NewEngine()
//	engine.Initialize(map[string]any{"first": "Ada", "last": "Lovelace"})
//
//	engine.Derive("full", zeta.Expr(`first + " " + last`))
//	engine.Watch("full", func(newValue, oldValue any) {
//		fmt.Println("full name is now", newValue)
//	})
//
//	engine.Write("first", "Augusta") // prints "full name is now Augusta Lovelace"
//
// # Expressions
//
// Expressions are opaque strings evaluated against a flat namespace of
// registered helpers and state keys. The grammar covers identifiers, member
// and index access, helper calls, literals, array literals, arithmetic,
// comparisons, logical operators and the ternary operator. Execute adds
// assignments, compound assignments and ++/-- for imperative handlers.
//
// # Error Handling
//
// Compile, evaluation and callback failures are reported through the
// configured Logger and the OnError hook. They never reach the caller:
// Evaluate and Execute return nil, and a failing callback does not stop the
// callbacks registered after it.
//
// # Concurrency
//
// An Engine is single-threaded and re-entrant. Every Write propagates fully
// before it returns. Callers sharing an engine across goroutines must
// serialize access themselves, as the live server does.
package zeta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chosenoffset/zeta/pkg/zeta/logging"
	"github.com/chosenoffset/zeta/pkg/zeta/metrics"
	"github.com/chosenoffset/zeta/pkg/zeta/parser"
)

// Callback is a binding: it runs with the new and old value of the key it is
// bound to.
type Callback func(newValue, oldValue any)

// Change describes one propagated write.
type Change struct {
	Key      string
	NewValue any
	OldValue any
	// Depth is 1 for a write made outside any callback, and grows by one for
	// each nested write made from inside a propagation.
	Depth int
}

// Limits bounds the work a single engine will accept.
type Limits struct {
	MaxPropagationDepth int // Maximum nesting of writes made from callbacks; 0 disables the check
	MaxExpressionNodes  int // Maximum AST nodes per compiled expression or statement body
	MaxListItems        int // Maximum items a list renderer instantiates per update
}

// DefaultLimits returns reasonable default limits
func DefaultLimits() *Limits {
	return &Limits{
		MaxPropagationDepth: 100,
		MaxExpressionNodes:  1000,
		MaxListItems:        10000,
	}
}

// ConfigureOptions are the recognized Configure options.
type ConfigureOptions struct {
	// RequirePrefix restricts directive recognition to the prefixed
	// z:<name> attribute form. It is read by the directive scanner.
	RequirePrefix bool
}

// Options configure a new Engine.
type Options struct {
	Logger  logging.Logger
	Limits  *Limits
	Metrics *metrics.EngineMetrics
	// OnError, when set, receives every reported failure after it is logged.
	OnError func(*Error)
}

// Engine owns the state store, the expression and dependency caches and the
// binding registry. Independent engines share nothing.
type Engine struct {
	config  ConfigureOptions
	limits  *Limits
	logger  logging.Logger
	metrics *metrics.EngineMetrics
	onError func(*Error)

	state     map[string]any
	helpers   map[string]Helper
	namespace Namespace
	bindings  map[string][]Callback
	observers []func(Change)

	exprCache    map[string]parser.Expression
	programCache map[string]*parser.Program
	depsCache    map[string][]string

	initialized bool
	depth       int
}

// NewEngine creates an engine. It must be initialized with Initialize
// before state can be read, written or evaluated.
func NewEngine(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Limits: DefaultLimits(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewEngineMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Limits == nil {
		opts.Limits = DefaultLimits()
	}

	e := &Engine{
		limits:  opts.Limits,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		onError: opts.OnError,
		helpers: make(map[string]Helper),
	}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.state = make(map[string]any)
	e.bindings = make(map[string][]Callback)
	e.observers = nil
	e.exprCache = make(map[string]parser.Expression)
	e.programCache = make(map[string]*parser.Program)
	e.depsCache = make(map[string][]string)
	e.initialized = false
	e.depth = 0
	e.rebuildNamespace()
}

// Configure replaces the engine's directive options.
func (e *Engine) Configure(opts ConfigureOptions) {
	e.config = opts
}

// Config returns the current directive options.
func (e *Engine) Config() ConfigureOptions {
	return e.config
}

// Initialize merges initialState into the store and activates the write
// path. It must be called exactly once before bindings are evaluated;
// a second call returns ErrAlreadyInitialized and changes nothing.
func (e *Engine) Initialize(initialState map[string]any) error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	for k, v := range initialState {
		e.state[k] = v
	}
	e.rebuildNamespace()
	e.initialized = true
	e.logger.Debug("engine initialized", "keys", len(e.state))
	return nil
}

// Teardown drops state, bindings, observers and caches and returns the
// engine to its uninitialized state. Registered helpers survive.
func (e *Engine) Teardown() {
	e.reset()
	e.logger.Debug("engine torn down")
}

// IsInitialized returns true between Initialize and Teardown.
func (e *Engine) IsInitialized() bool {
	return e.initialized
}

// RegisterHelper adds or replaces a namespace helper and rebuilds the
// namespace.
func (e *Engine) RegisterHelper(name string, fn Helper) {
	e.helpers[name] = fn
	e.rebuildNamespace()
}

// RegisterHelpers registers every helper in the map.
func (e *Engine) RegisterHelpers(helpers map[string]Helper) {
	for name, fn := range helpers {
		e.helpers[name] = fn
	}
	e.rebuildNamespace()
}

// Watch binds fn to each key of a comma separated list. Keys not yet in
// state are bound anyway, with a warning.
func (e *Engine) Watch(keyOrCommaList string, fn Callback) {
	for _, key := range strings.Split(keyOrCommaList, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := e.state[key]; !ok {
			e.logger.Warn("watch: key does not exist in state", "key", key)
		}
		e.Bind(key, fn)
	}
}

// OnChange registers an observer told about every propagated change before
// the key's bindings run. Observers are infrastructure hooks (journal, live
// server), not bindings.
func (e *Engine) OnChange(fn func(Change)) {
	e.observers = append(e.observers, fn)
}

// GetState returns a copy of the store contents.
func (e *Engine) GetState() map[string]any {
	out := make(map[string]any, len(e.state))
	for k, v := range e.state {
		out[k] = v
	}
	return out
}

// Keys returns the state keys in sorted order.
func (e *Engine) Keys() []string {
	keys := make([]string, 0, len(e.state))
	for k := range e.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetBindings returns a copy of the binding registry.
func (e *Engine) GetBindings() map[string][]Callback {
	out := make(map[string][]Callback, len(e.bindings))
	for k, cbs := range e.bindings {
		out[k] = append([]Callback(nil), cbs...)
	}
	return out
}

// ClearCaches empties the expression and dependency caches. Bindings and
// state are untouched.
func (e *Engine) ClearCaches() {
	e.exprCache = make(map[string]parser.Expression)
	e.programCache = make(map[string]*parser.Program)
	e.depsCache = make(map[string][]string)
}

// Limits returns the engine's limits.
func (e *Engine) Limits() *Limits {
	return e.limits
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *metrics.EngineMetrics {
	return e.metrics
}

// Logger returns the engine's logger so collaborators log alongside it.
func (e *Engine) Logger() logging.Logger {
	return e.logger
}

// Report sends a failure found by a collaborator, such as a malformed
// directive, through the engine's error channel.
func (e *Engine) Report(err *Error) {
	if err == nil {
		return
	}
	switch err.Kind {
	case CompileError, EvaluationError:
		e.metrics.RecordEvalError()
	}
	e.logger.Error(fmt.Sprintf("%s error", err.Kind), "source", err.Source, "error", err.Err)
	if e.onError != nil {
		e.onError(err)
	}
}

// ready logs and returns false when op runs before Initialize.
func (e *Engine) ready(op string) bool {
	if !e.initialized {
		e.logger.Warn("engine used before Initialize", "op", op)
		return false
	}
	return true
}

func (e *Engine) rebuildNamespace() {
	ns := make(Namespace, len(e.helpers)+len(e.state))
	for name, fn := range e.helpers {
		ns[name] = fn
	}
	for k, v := range e.state {
		ns[k] = v
	}
	e.namespace = ns
}
