// Package etlerr classifies pipeline failures.
//
// Every failure that aborts a run carries exactly one Kind so the trigger
// layer can tell a bad request apart from a missing file, a malformed file or
// an unreachable destination without string matching.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of a run.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindConfig       Kind = "config"
	KindMissingInput Kind = "missing_input"
	KindParse        Kind = "parse"
	KindSink         Kind = "sink"
)

// Sentinels usable with errors.Is.
var (
	ErrConfig       = &Error{Kind: KindConfig}
	ErrMissingInput = &Error{Kind: KindMissingInput}
	ErrParse        = &Error{Kind: KindParse}
	ErrSink         = &Error{Kind: KindSink}
)

// Error wraps an underlying error with its Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the package sentinels work with
// errors.Is regardless of Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an *Error of the given kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Config, MissingInput, Parse and Sink are shorthands for New.
func Config(op string, err error) error       { return New(KindConfig, op, err) }
func MissingInput(op string, err error) error { return New(KindMissingInput, op, err) }
func Parse(op string, err error) error        { return New(KindParse, op, err) }
func Sink(op string, err error) error         { return New(KindSink, op, err) }

// Parsef builds a parse error from a format string.
func Parsef(op, format string, a ...any) error {
	return Parse(op, fmt.Errorf(format, a...))
}

// KindOf reports the Kind of the outermost *Error in err's chain.
// Errors that were never classified report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
