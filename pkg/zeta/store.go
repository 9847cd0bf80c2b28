package zeta

import "fmt"

// Read returns the stored value for key.
func (e *Engine) Read(key string) (any, bool) {
	v, ok := e.state[key]
	return v, ok
}

// Write stores value under key. When the value differs from the previous
// one (SameValue), the namespace is rebuilt and every binding on key runs
// before Write returns. Callbacks may write again; nested writes follow the
// same path.
func (e *Engine) Write(key string, value any) {
	if !e.ready("write") {
		return
	}
	oldValue := e.state[key]
	e.state[key] = value

	changed := !SameValue(oldValue, value)
	e.metrics.RecordWrite(changed)
	if !changed {
		return
	}

	e.rebuildNamespace()
	e.propagate(key, value, oldValue)
}

// propagate runs observers and then the bindings registered for key, in
// registration order. Each call is isolated.
func (e *Engine) propagate(key string, newValue, oldValue any) {
	if limit := e.limits.MaxPropagationDepth; limit > 0 && e.depth >= limit {
		e.Report(newError(RecursionLimitError, key,
			"propagation depth %d exceeds limit %d", e.depth+1, limit))
		return
	}

	e.depth++
	defer func() { e.depth-- }()
	e.metrics.RecordPropagation(e.depth)

	if len(e.observers) > 0 {
		change := Change{Key: key, NewValue: newValue, OldValue: oldValue, Depth: e.depth}
		for _, observe := range e.observers {
			e.observe(observe, change)
		}
	}

	// later registrations made by these callbacks run on the next change
	callbacks := e.bindings[key]
	for _, cb := range callbacks {
		e.invoke(key, cb, newValue, oldValue)
	}
}

func (e *Engine) invoke(key string, cb Callback, newValue, oldValue any) {
	failed := false
	defer func() {
		if r := recover(); r != nil {
			failed = true
			e.Report(&Error{Kind: CallbackError, Source: key, Err: panicError(r)})
		}
		e.metrics.RecordCallback(failed)
	}()
	cb(newValue, oldValue)
}

func (e *Engine) observe(fn func(Change), change Change) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("change observer failed", "key", change.Key, "error", panicError(r))
		}
	}()
	fn(change)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// Ref is a getter/setter handle on one state key for callers that want
// assignment-like access without touching the store directly.
type Ref struct {
	engine *Engine
	key    string
}

// Ref returns a handle on key.
func (e *Engine) Ref(key string) Ref {
	return Ref{engine: e, key: key}
}

// Key returns the state key the handle refers to.
func (r Ref) Key() string { return r.key }

// Get reads the current value.
func (r Ref) Get() any {
	v, _ := r.engine.Read(r.key)
	return v
}

// Set writes through the engine's write path.
func (r Ref) Set(value any) {
	r.engine.Write(r.key, value)
}
