package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"golang.org/x/text/unicode/norm"

	"github.com/chosenoffset/zeta/pkg/zeta"
)

// encodeValue stores a state value as JSON. Strings are NFC-normalized so
// equal text compares equal after replay. Values JSON cannot carry, such as
// helpers, are stored as their text rendering.
func encodeValue(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalize(v)); err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case nil, bool:
		return val
	case string:
		return norm.NFC.String(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return zeta.ToString(val)
		}
		return val
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[norm.NFC.String(k)] = normalize(item)
		}
		return out
	}

	if items, ok := zeta.AsSlice(v); ok {
		return normalize(items)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32:
		return v
	case reflect.Map, reflect.Struct, reflect.Pointer:
		if _, err := json.Marshal(v); err == nil {
			return v
		}
	}
	return zeta.ToString(v)
}

// decodeValue reverses encodeValue. Integral numbers come back as int64,
// others as float64.
func decodeValue(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return fromJSON(v), nil
}

func fromJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i, item := range val {
			val[i] = fromJSON(item)
		}
		return val
	case map[string]any:
		for k, item := range val {
			val[k] = fromJSON(item)
		}
		return val
	}
	return v
}
