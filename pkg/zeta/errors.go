package zeta

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures the engine catches and reports instead of
// returning to the caller.
type ErrorKind int

const (
	// CompileError: the expression or statement text does not parse.
	CompileError ErrorKind = iota
	// EvaluationError: the expression parses but fails at run time.
	EvaluationError
	// CallbackError: a registered binding callback panicked.
	CallbackError
	// MalformedDirectiveError: a directive argument has the wrong shape.
	MalformedDirectiveError
	// RecursionLimitError: re-entrant propagation went deeper than the limit.
	RecursionLimitError
)

func (k ErrorKind) String() string {
	switch k {
	case CompileError:
		return "compile"
	case EvaluationError:
		return "evaluation"
	case CallbackError:
		return "callback"
	case MalformedDirectiveError:
		return "malformed_directive"
	case RecursionLimitError:
		return "recursion_limit"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNotInitialized     = errors.New("engine not initialized")
)

// Error is a reported engine failure. Source is the expression, code, state
// key or directive argument the failure belongs to.
type Error struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error in %q: %v", e.Kind, e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, source string, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Source: source, Err: fmt.Errorf(format, a...)}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var zerr *Error
	return errors.As(err, &zerr) && zerr.Kind == kind
}
