package zeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects reported errors.
type recorder struct {
	errs []*Error
}

func (r *recorder) kinds() []ErrorKind {
	out := make([]ErrorKind, len(r.errs))
	for i, e := range r.errs {
		out[i] = e.Kind
	}
	return out
}

func newTestEngine(t *testing.T, state map[string]any, optFns ...func(o *Options)) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	fns := append([]func(o *Options){func(o *Options) {
		o.OnError = func(err *Error) { rec.errs = append(rec.errs, err) }
	}}, optFns...)
	e := NewEngine(fns...)
	require.NoError(t, e.Initialize(state))
	return e, rec
}

func TestLifecycle(t *testing.T) {
	t.Run("InitializeTwice", func(t *testing.T) {
		e, _ := newTestEngine(t, map[string]any{"a": 1})
		err := e.Initialize(map[string]any{"a": 2})
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
		v, _ := e.Read("a")
		assert.Equal(t, 1, v)
	})

	t.Run("WriteBeforeInitialize", func(t *testing.T) {
		e := NewEngine()
		called := false
		e.Bind("a", func(_, _ any) { called = true })
		e.Write("a", 1)
		assert.False(t, called)
		_, ok := e.Read("a")
		assert.False(t, ok)
		assert.Nil(t, e.Evaluate("1 + 1"))
		assert.Nil(t, e.Execute("a = 1"))
	})

	t.Run("TeardownKeepsHelpers", func(t *testing.T) {
		e, _ := newTestEngine(t, map[string]any{"a": 1})
		e.RegisterHelper("double", func(args ...any) (any, error) {
			n, _ := toInt(args[0])
			return n * 2, nil
		})
		e.Bind("a", func(_, _ any) {})
		e.Evaluate("a")

		e.Teardown()
		assert.False(t, e.IsInitialized())
		assert.Empty(t, e.GetState())
		assert.Empty(t, e.GetBindings())

		require.NoError(t, e.Initialize(map[string]any{"b": int64(4)}))
		assert.Equal(t, int64(8), e.Evaluate("double(b)"))
	})

	t.Run("Configure", func(t *testing.T) {
		e := NewEngine()
		assert.False(t, e.Config().RequirePrefix)
		e.Configure(ConfigureOptions{RequirePrefix: true})
		assert.True(t, e.Config().RequirePrefix)
	})

	t.Run("IndependentEngines", func(t *testing.T) {
		a, _ := newTestEngine(t, map[string]any{"x": 1})
		b, _ := newTestEngine(t, map[string]any{"x": 2})
		a.Write("x", 10)
		assert.Equal(t, 10, a.Evaluate("x"))
		assert.Equal(t, 2, b.Evaluate("x"))
	})
}

func TestWriteSuppressesUnchangedValues(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"name": "Ada", "n": int64(1), "items": []any{1}})
	calls := 0
	e.Watch("name, n, items", func(_, _ any) { calls++ })

	e.Write("name", "Ada")
	e.Write("n", 1)
	e.Write("n", 1.0)
	assert.Equal(t, 0, calls)

	items, _ := e.Read("items")
	e.Write("items", items)
	assert.Equal(t, 0, calls)

	e.Write("items", []any{1})
	assert.Equal(t, 1, calls)

	stats := e.Metrics().GetStats()
	assert.Equal(t, int64(5), stats.Writes)
	assert.Equal(t, int64(4), stats.SuppressedWrites)
}

func TestWriteDetectsLargeIntegerChanges(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"id": int64(1 << 60)})
	calls := 0
	e.Bind("id", func(_, _ any) { calls++ })

	e.Write("id", int64(1<<60+1))
	assert.Equal(t, 1, calls)
	v, _ := e.Read("id")
	assert.Equal(t, int64(1<<60+1), v)

	e.Write("id", int64(1<<60+1))
	assert.Equal(t, 1, calls)
}

type box struct{ V any }

func TestWriteWithUncomparableStructContents(t *testing.T) {
	e, rec := newTestEngine(t, map[string]any{"b": box{V: []any{1}}, "p": box{V: "x"}})
	calls := 0
	e.Watch("b, p", func(_, _ any) { calls++ })

	require.NotPanics(t, func() { e.Write("b", box{V: []any{2}}) })
	assert.Equal(t, 1, calls)

	e.Write("p", box{V: "x"})
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.errs)
}

func TestPropagationOrderAndValues(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"k": "old"})
	var log []string
	cb := func(tag string) Callback {
		return func(newValue, oldValue any) {
			log = append(log, tag+":"+ToString(oldValue)+"->"+ToString(newValue))
		}
	}
	e.Bind("k", cb("first"))
	e.Bind("k", cb("second"))
	e.Bind("k", cb("first"))
	e.Bind("other", cb("other"))

	e.Write("k", "new")
	assert.Equal(t, []string{"first:old->new", "second:old->new", "first:old->new"}, log)
	assert.Equal(t, 3, e.BindingCount("k"))
}

func TestCallbacksSeeRebuiltNamespace(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": int64(1), "b": int64(2)})
	var seen any
	e.Bind("a", func(_, _ any) { seen = e.Evaluate("a + b") })

	e.Write("a", int64(5))
	assert.Equal(t, int64(7), seen)
}

func TestCallbackIsolation(t *testing.T) {
	e, rec := newTestEngine(t, map[string]any{"k": 0})
	ran := false
	e.Bind("k", func(_, _ any) { panic("boom") })
	e.Bind("k", func(_, _ any) { ran = true })

	assert.NotPanics(t, func() { e.Write("k", 1) })
	assert.True(t, ran)
	require.Equal(t, []ErrorKind{CallbackError}, rec.kinds())
	assert.Equal(t, "k", rec.errs[0].Source)
	assert.Equal(t, int64(1), e.Metrics().GetStats().CallbackErrors)
}

func TestReentrantWrites(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": 0, "b": 0})
	var order []string
	e.Bind("a", func(newValue, _ any) {
		order = append(order, "a")
		e.Write("b", newValue)
		order = append(order, "a-done")
	})
	e.Bind("b", func(_, _ any) { order = append(order, "b") })

	e.Write("a", 1)
	assert.Equal(t, []string{"a", "b", "a-done"}, order)
	v, _ := e.Read("b")
	assert.Equal(t, 1, v)
}

func TestRecursionLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPropagationDepth = 5
	e, rec := newTestEngine(t, map[string]any{"x": int64(0)}, func(o *Options) { o.Limits = limits })

	e.Bind("x", func(newValue, _ any) {
		n, _ := toInt(newValue)
		e.Write("x", n+1)
	})
	e.Write("x", int64(1))

	v, _ := e.Read("x")
	assert.Equal(t, int64(6), v)
	assert.Equal(t, []ErrorKind{RecursionLimitError}, rec.kinds())
	assert.Equal(t, int64(5), e.Metrics().GetStats().MaxDepth)
}

func TestOnChangeRunsBeforeBindings(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": 1})
	var order []string
	var changes []Change
	e.Bind("a", func(_, _ any) { order = append(order, "binding") })
	e.OnChange(func(c Change) {
		order = append(order, "observer")
		changes = append(changes, c)
	})

	e.Write("a", 2)
	assert.Equal(t, []string{"observer", "binding"}, order)
	assert.Equal(t, []Change{{Key: "a", NewValue: 2, OldValue: 1, Depth: 1}}, changes)
}

func TestWatch(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": 1, "b": 2})
	var keys []string
	e.Watch(" a ,b,, later", func(newValue, _ any) { keys = append(keys, ToString(newValue)) })

	assert.Equal(t, 1, e.BindingCount("a"))
	assert.Equal(t, 1, e.BindingCount("b"))
	assert.Equal(t, 1, e.BindingCount("later"))

	e.Write("later", "x")
	e.Write("b", 3)
	assert.Equal(t, []string{"x", "3"}, keys)
}

func TestIntrospectionReturnsCopies(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"a": 1})
	e.Bind("a", func(_, _ any) {})

	state := e.GetState()
	state["a"] = 99
	state["b"] = 1
	v, _ := e.Read("a")
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"a"}, e.Keys())

	bindings := e.GetBindings()
	bindings["a"] = nil
	assert.Equal(t, 1, e.BindingCount("a"))
}

func TestRef(t *testing.T) {
	e, _ := newTestEngine(t, map[string]any{"count": int64(1)})
	var got any
	e.Watch("count", func(newValue, _ any) { got = newValue })

	ref := e.Ref("count")
	assert.Equal(t, "count", ref.Key())
	assert.Equal(t, int64(1), ref.Get())
	ref.Set(int64(2))
	assert.Equal(t, int64(2), got)
	assert.Equal(t, int64(2), ref.Get())
}
