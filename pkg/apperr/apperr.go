// Package apperr provides the error type shared by the pipeline stages.
//
// An *Error carries a Kind, the location where it was created or wrapped
// (file, line, function), an optional note, the underlying cause and a
// formatted call stack. Kinds survive wrapping:
//
//	err := apperr.Wrap(loadErr, "load training split")
//	errors.Is(err, apperr.ArtifactNotFound) // true when loadErr was ArtifactNotFound
package apperr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Kind classifies an error. A Kind is itself an error so that it can be used
// as an errors.Is target.
type Kind string

const (
	Parse            Kind = "ParseError"
	UnknownCategory  Kind = "UnknownCategoryError"
	ArtifactNotFound Kind = "ArtifactNotFoundError"
	ArtifactInvalid  Kind = "ArtifactInvalidError"
	ShapeMismatch    Kind = "ShapeMismatchError"
	InsufficientData Kind = "InsufficientDataError"
	Convergence      Kind = "ConvergenceWarning"
	InvalidInput     Kind = "InvalidInputError"
	Internal         Kind = "InternalError"
)

func (k Kind) Error() string {
	return string(k)
}

// Error is an error annotated with where it was raised.
type Error struct {
	Kind  Kind
	File  string
	Line  int
	Func  string
	Note  string
	Cause error
	Stack string
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("%s:%d", filepath.Base(e.File), e.Line)
	switch {
	case e.Note != "" && e.Cause != nil:
		return fmt.Sprintf("%s @ %s (%s): %s", e.Kind, loc, e.Note, e.Cause.Error())
	case e.Cause != nil:
		return fmt.Sprintf("%s @ %s: %s", e.Kind, loc, e.Cause.Error())
	default:
		return fmt.Sprintf("%s @ %s: %s", e.Kind, loc, e.Note)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New creates an error of the given kind at the caller's location.
func New(kind Kind, format string, args ...any) error {
	return build(kind, fmt.Sprintf(format, args...), nil, 1)
}

// Wrap annotates err with the caller's location. It keeps KindOf(err), the
// kind of the outermost *Error in the chain; a plain error becomes Internal.
// Wrap(nil, ...) is nil.
func Wrap(err error, note string) error {
	if err == nil {
		return nil
	}
	return build(KindOf(err), note, err, 1)
}

// WrapAs is like Wrap but forces the kind.
func WrapAs(kind Kind, err error, note string) error {
	if err == nil {
		return nil
	}
	return build(kind, note, err, 1)
}

// KindOf returns the kind of the outermost *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Internal
}

// Message returns the innermost human readable message: the note of the
// deepest *Error, or the plain cause text.
func Message(err error) string {
	var deepest *Error
	for cur := err; cur != nil; {
		var e *Error
		if !errors.As(cur, &e) {
			break
		}
		deepest = e
		cur = e.Cause
	}
	if deepest == nil {
		return err.Error()
	}
	if deepest.Cause != nil {
		return deepest.Cause.Error()
	}
	return deepest.Note
}

// StackOf returns the stack recorded by the innermost *Error in err's chain.
func StackOf(err error) string {
	stack := ""
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		stack = e.Stack
		err = e.Cause
	}
	return stack
}

func build(kind Kind, note string, cause error, depth int) *Error {
	e := &Error{Kind: kind, Note: note, Cause: cause, File: "?", Line: -1, Func: "(unknown func)"}

	pc, file, line, ok := runtime.Caller(depth + 1)
	if ok {
		e.File = file
		e.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.Func = fn.Name()
		}
	}
	e.Stack = stack(depth + 2)
	return e
}

func stack(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}
