package zeta

import "fmt"

// Computation is the pure function behind a derived key. Source is the text
// scanned for dependencies.
type Computation interface {
	Source() string
	Compute(e *Engine) (any, error)
}

// Expr is a computation given as an expression string.
type Expr string

func (x Expr) Source() string { return string(x) }

func (x Expr) Compute(e *Engine) (any, error) {
	v, err := e.evaluate(string(x))
	if err != nil {
		return nil, err
	}
	return v, nil
}

// FuncComputation is a Go closure over the namespace. Src should mention
// every state key Fn reads, since only Src is scanned for dependencies.
type FuncComputation struct {
	Src string
	Fn  func(ns Namespace) (any, error)
}

// Func builds a FuncComputation.
func Func(src string, fn func(ns Namespace) (any, error)) FuncComputation {
	return FuncComputation{Src: src, Fn: fn}
}

func (f FuncComputation) Source() string { return f.Src }

func (f FuncComputation) Compute(e *Engine) (any, error) {
	return f.Fn(e.namespace)
}

// Derive maintains key as c's result. The updater is bound to every
// dependency of c, runs once immediately and writes only when the result
// differs from the stored value. Derived keys feeding each other in a cycle
// recurse until a fixed point or the propagation depth limit.
func (e *Engine) Derive(key string, c Computation) {
	if !e.ready("derive") {
		return
	}

	update := func(_, _ any) {
		value, err := e.compute(key, c)
		if err != nil {
			e.Report(err)
			return
		}
		if current := e.state[key]; !SameValue(current, value) {
			e.Write(key, value)
		}
	}

	for _, dep := range e.Dependencies(c) {
		e.Bind(dep, update)
	}
	update(nil, nil)
}

func (e *Engine) compute(key string, c Computation) (value any, zerr *Error) {
	defer func() {
		if r := recover(); r != nil {
			value, zerr = nil, &Error{Kind: EvaluationError, Source: key, Err: panicError(r)}
		}
	}()
	v, err := c.Compute(e)
	if err != nil {
		if ze, ok := err.(*Error); ok {
			return nil, ze
		}
		return nil, &Error{Kind: EvaluationError, Source: key, Err: fmt.Errorf("derive %s: %w", key, err)}
	}
	return v, nil
}
