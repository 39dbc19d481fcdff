package engine

import "fmt"

// ErrKind closes the error taxonomy so the orchestrator and CLI can
// pattern-match on failure class instead of inspecting message strings.
type ErrKind string

const (
	ErrKindConfig      ErrKind = "config"
	ErrKindTimeout     ErrKind = "timeout"
	ErrKindRateLimit   ErrKind = "rate_limit"
	ErrKindFetch       ErrKind = "fetch"
	ErrKindMapping     ErrKind = "mapping"
	ErrKindExtraction  ErrKind = "extraction"
	ErrKindPersistence ErrKind = "persistence"
)

// Error wraps an underlying error with its taxonomy kind. Config errors are
// fatal; every other kind is recorded into the Report and never panics the
// process.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds a taxonomy error from an underlying cause.
func Wrap(kind ErrKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the taxonomy kind from an error produced by Wrap, or ""
// if the error wasn't built by this package.
func KindOf(err error) ErrKind {
	var e *Error
	if err == nil {
		return ""
	}
	if asErr, ok := err.(*Error); ok {
		e = asErr
		return e.Kind
	}
	return ""
}

// IsFatal reports whether an error kind must abort the process rather than
// just being recorded in the Report.
func IsFatal(kind ErrKind) bool {
	return kind == ErrKindConfig
}
