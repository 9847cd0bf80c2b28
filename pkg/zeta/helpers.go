package zeta

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultHelpers returns a small helper library. append and remove return
// new arrays, so writing the result back counts as a change. Nothing is registered
// unless the caller passes these to RegisterHelpers. A caser is not safe for
// concurrent use, so each call builds its own.
func DefaultHelpers() map[string]Helper {
	return map[string]Helper{
		"len": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("wrong number of arguments for len: got=%d, want=1", len(args))
			}
			if s, ok := args[0].(string); ok {
				return int64(len([]rune(s))), nil
			}
			if items, ok := AsSlice(args[0]); ok {
				return int64(len(items)), nil
			}
			return int64(0), nil
		},
		"upper": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("wrong number of arguments for upper: got=%d, want=1", len(args))
			}
			return cases.Upper(language.Und).String(ToString(args[0])), nil
		},
		"lower": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("wrong number of arguments for lower: got=%d, want=1", len(args))
			}
			return cases.Lower(language.Und).String(ToString(args[0])), nil
		},
		"title": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("wrong number of arguments for title: got=%d, want=1", len(args))
			}
			return cases.Title(language.Und).String(ToString(args[0])), nil
		},
		"join": func(args ...any) (any, error) {
			if len(args) < 1 || len(args) > 2 {
				return nil, fmt.Errorf("wrong number of arguments for join: got=%d, want=1 or 2", len(args))
			}
			items, ok := AsSlice(args[0])
			if !ok {
				return nil, fmt.Errorf("join: first argument must be an array, got %s", typeName(args[0]))
			}
			sep := ","
			if len(args) == 2 {
				sep = ToString(args[1])
			}
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = ToString(item)
			}
			return strings.Join(parts, sep), nil
		},
		"append": func(args ...any) (any, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("wrong number of arguments for append: got=%d, want at least 1", len(args))
			}
			items, ok := AsSlice(args[0])
			if !ok && args[0] != nil {
				return nil, fmt.Errorf("append: first argument must be an array, got %s", typeName(args[0]))
			}
			out := make([]any, 0, len(items)+len(args)-1)
			out = append(out, items...)
			return append(out, args[1:]...), nil
		},
		"remove": func(args ...any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("wrong number of arguments for remove: got=%d, want=2", len(args))
			}
			items, ok := AsSlice(args[0])
			if !ok {
				return nil, fmt.Errorf("remove: first argument must be an array, got %s", typeName(args[0]))
			}
			i, ok := toInt(args[1])
			if !ok {
				if f, isFloat := args[1].(float64); isFloat && f == float64(int64(f)) {
					i, ok = int64(f), true
				}
			}
			out := make([]any, 0, len(items))
			for j, item := range items {
				if !ok || int64(j) != i {
					out = append(out, item)
				}
			}
			return out, nil
		},
		"str": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("wrong number of arguments for str: got=%d, want=1", len(args))
			}
			return ToString(args[0]), nil
		},
	}
}
