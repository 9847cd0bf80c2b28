package zeta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDependencies(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": 1, "b": map[string]any{"c": 2}, "this": 0, "null": 0})

	assert.Equal(t, []string{"a", "b"}, e.ExtractDependencies("a + b.c"))
	assert.Equal(t, []string{"b", "a"}, e.ExtractDependencies("b.c > 1 ? a : a"))
	assert.Equal(t, []string{}, e.ExtractDependencies("this.x == null"))
	assert.Equal(t, []string{}, e.ExtractDependencies("1 + 2"))
	// a lexical scan: words inside string literals count
	assert.Equal(t, []string{"a"}, e.ExtractDependencies("'a'"))
}

func TestExtractDependenciesReturnsCopy(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": int64(1), "b": int64(2)})
	deps := e.ExtractDependencies("a + b")
	deps[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, e.ExtractDependencies("a + b"))
}

func TestExtractDependenciesCachedPerText(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": 1})

	assert.Equal(t, []string{"a"}, e.ExtractDependencies("a + later"))
	e.Write("later", 2)
	assert.Equal(t, []string{"a"}, e.ExtractDependencies("a + later"))

	e.ClearCaches()
	assert.Equal(t, []string{"a", "later"}, e.ExtractDependencies("a + later"))
}

func TestBindToDependencies(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": 1, "b": 2})
	calls := 0
	e.BindToDependencies("a + b + a", func(_, _ any) { calls++ })

	assert.Equal(t, 1, e.BindingCount("a"))
	assert.Equal(t, 1, e.BindingCount("b"))

	e.Write("a", 5)
	e.Write("b", 5)
	assert.Equal(t, 2, calls)
}

func TestDerive(t *testing.T) {
	e, rec := newTestEngine(t, map[string]any{"first": "A", "last": "B"})
	e.Derive("full", Expr("first + last"))

	v, _ := e.Read("full")
	assert.Equal(t, "AB", v)

	changes := 0
	e.Watch("full", func(_, _ any) { changes++ })

	e.Write("first", "X")
	v, _ = e.Read("full")
	assert.Equal(t, "XB", v)
	assert.Equal(t, 1, changes)
	assert.Empty(t, rec.errs)
}

func TestDeriveWritesOnlyOnChange(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"n": int64(3)})
	e.Derive("odd", Expr("n % 2 == 1"))

	changes := 0
	e.Watch("odd", func(_, _ any) { changes++ })

	e.Write("n", int64(5))
	assert.Equal(t, 0, changes)
	e.Write("n", int64(6))
	assert.Equal(t, 1, changes)
	v, _ := e.Read("odd")
	assert.Equal(t, false, v)
}

func TestDeriveChain(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"price": int64(10), "qty": int64(2)})
	e.Derive("subtotal", Expr("price * qty"))
	e.Derive("total", Expr("subtotal + 5"))

	v, _ := e.Read("total")
	assert.Equal(t, int64(25), v)

	e.Write("qty", int64(3))
	v, _ = e.Read("total")
	assert.Equal(t, int64(35), v)
}

func TestDeriveFunc(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"items": []any{int64(1), int64(2)}})
	e.Derive("count", Func("items", func(ns Namespace) (any, error) {
		items, _ := AsSlice(ns["items"])
		return int64(len(items)), nil
	}))

	v, _ := e.Read("count")
	assert.Equal(t, int64(2), v)

	e.Write("items", []any{int64(1)})
	v, _ = e.Read("count")
	assert.Equal(t, int64(1), v)
	assert.Equal(t, []string{"items"}, e.Dependencies(Func("items", nil)))
}

func TestDeriveErrorsAreReported(t *testing.T) {
	e, rec := newTestEngine(t, map[string]any{"a": int64(1)})
	e.Derive("bad", Func("a", func(Namespace) (any, error) { return nil, errors.New("nope") }))
	e.Derive("worse", Func("a", func(Namespace) (any, error) { panic("boom") }))
	e.Derive("broken", Expr("a +"))

	assert.Equal(t, []ErrorKind{EvaluationError, EvaluationError, CompileError}, rec.kinds())
	_, ok := e.Read("bad")
	assert.False(t, ok)

	e.Write("a", int64(2))
	assert.Len(t, rec.errs, 6)
}

func TestDeriveCycleIsBounded(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPropagationDepth = 10
	e, rec := newTestEngine(t, map[string]any{"a": int64(0), "b": int64(0)}, func(o *Options) { o.Limits = limits })

	e.Derive("a", Expr("b + 1"))
	e.Derive("b", Expr("a + 1"))

	require.NotEmpty(t, rec.errs)
	assert.Equal(t, RecursionLimitError, rec.errs[0].Kind)
}

func TestDeriveBeforeInitialize(t *testing.T) {
	e := NewEngine()
	e.Derive("x", Expr("1"))
	assert.Empty(t, e.GetBindings())
}
