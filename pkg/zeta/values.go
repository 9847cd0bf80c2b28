package zeta

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Helper is a function callable from expressions by name.
type Helper func(args ...any) (any, error)

// Namespace is the flat scope expressions are evaluated against: helpers
// first, then state, so a state key shadows a helper of the same name.
type Namespace map[string]any

// Get returns the value bound to name.
func (ns Namespace) Get(name string) (any, bool) {
	v, ok := ns[name]
	return v, ok
}

// SameValue is the strict equality used to decide whether a write changed a
// key. Numbers compare by value across Go numeric kinds, integers exactly;
// slices, maps and functions compare by identity. Values holding
// uncomparable dynamic contents are never the same.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := toInt(a); ok {
		if bi, ok := toInt(b); ok {
			return ai == bi
		}
	}
	if an, ok := toFloat(a); ok {
		bn, ok := toFloat(b)
		return ok && an == bn
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	case reflect.Map, reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	}
	if ra.Comparable() && rb.Comparable() {
		return ra.Equal(rb)
	}
	return false
}

// looseEqual backs == and !=.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if as, ok := a.(string); ok {
		if bn, ok := toFloat(b); ok {
			an, err := strconv.ParseFloat(strings.TrimSpace(as), 64)
			return err == nil && an == bn
		}
	}
	if bs, ok := b.(string); ok {
		if an, ok := toFloat(a); ok {
			bn, err := strconv.ParseFloat(strings.TrimSpace(bs), 64)
			return err == nil && an == bn
		}
	}
	return SameValue(a, b)
}

// Truthy follows the usual script rules: nil, false, 0, NaN and "" are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// ToString renders a value for text output. nil renders as "", integral
// floats without a decimal point and slices as comma-joined elements.
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case Helper:
		return "[helper]"
	}
	if i, ok := toInt(v); ok {
		return strconv.FormatInt(i, 10)
	}
	if items, ok := AsSlice(v); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = ToString(item)
		}
		return strings.Join(parts, ",")
	}
	if reflect.ValueOf(v).Kind() == reflect.Map {
		return "[object Object]"
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AsSlice returns the elements of any slice or array value.
func AsSlice(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []any:
		return val, true
	case string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// numeric is an arithmetic operand: an integer when isInt, else a float.
type numeric struct {
	i     int64
	f     float64
	isInt bool
}

func (n numeric) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func (n numeric) value() any {
	if n.isInt {
		return n.i
	}
	return n.f
}

// toNumeric coerces an operand for arithmetic. nil counts as 0 and booleans
// as 0 or 1; numeric strings are parsed.
func toNumeric(v any) (numeric, bool) {
	switch val := v.(type) {
	case nil:
		return numeric{isInt: true}, true
	case bool:
		if val {
			return numeric{i: 1, isInt: true}, true
		}
		return numeric{isInt: true}, true
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return numeric{i: i, isInt: true}, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return numeric{f: f}, true
		}
		return numeric{}, false
	case float64:
		return numeric{f: val}, true
	case float32:
		return numeric{f: float64(val)}, true
	}
	if i, ok := toInt(v); ok {
		return numeric{i: i, isInt: true}, true
	}
	if f, ok := toFloat(v); ok {
		return numeric{f: f}, true
	}
	return numeric{}, false
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return reflect.TypeOf(v).String()
}
