package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a write collides with existing state.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition is returned when a task state change is not on the lifecycle graph.
	ErrInvalidTransition = errors.New("invalid task transition")
)

type Kind string

const (
	KindUnknown         Kind = ""
	KindLoad            Kind = "load"
	KindAnalysis        Kind = "analysis"
	KindGeneration      Kind = "generation"
	KindValidation      Kind = "validation"
	KindTimeout         Kind = "timeout"
	KindSchemaViolation Kind = "schema_violation"
	KindProvider        Kind = "provider"
	KindInterrupted     Kind = "interrupted"
	KindUnavailable     Kind = "unavailable"
)

// Error is a classified failure. Op names the operation that failed
// ("lesson structuring", "analyze content 3f2a...").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Load(op string, err error) error       { return E(KindLoad, op, err) }
func Analysis(op string, err error) error   { return E(KindAnalysis, op, err) }
func Generation(op string, err error) error { return E(KindGeneration, op, err) }
func Timeout(op string, err error) error    { return E(KindTimeout, op, err) }
func Provider(op string, err error) error   { return E(KindProvider, op, err) }

func Interrupted(op string, err error) error { return E(KindInterrupted, op, err) }
func Unavailable(op string, err error) error { return E(KindUnavailable, op, err) }

func SchemaViolation(op string, err error) error { return E(KindSchemaViolation, op, err) }

// Validation reports a contract violation by the caller.
func Validation(op string, format string, args ...any) error {
	return E(KindValidation, op, fmt.Errorf(format, args...))
}

// KindOf returns the outermost classification found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient reports whether a single retry of the failed call may succeed.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindSchemaViolation, KindProvider:
		return true
	default:
		return false
	}
}

func Is(err, target error) bool     { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
func New(text string) error         { return errors.New(text) }

var kindPhrases = map[Kind]string{
	KindTimeout:         "the language model timed out",
	KindSchemaViolation: "the language model returned an invalid response",
	KindProvider:        "the language model provider returned an error",
	KindLoad:            "content could not be loaded",
	KindValidation:      "invalid input",
	KindAnalysis:        "content analysis failed",
	KindInterrupted:     "the server stopped before the task finished",
	KindUnavailable:     "the server is busy, try again later",
}

// Message renders err for end users as "<op> failed: <reason>". The op comes
// from the outermost classified error, the reason from the innermost one with a
// known phrase. Unclassified errors produce "internal error".
func Message(err error) string {
	if err == nil {
		return ""
	}
	var outer *Error
	if !errors.As(err, &outer) {
		return "internal error"
	}
	reason := ""
	for cur := error(outer); cur != nil; cur = errors.Unwrap(cur) {
		if e, ok := cur.(*Error); ok {
			if p, ok := kindPhrases[e.Kind]; ok {
				reason = p
			}
		}
	}
	if reason == "" {
		reason = "internal error"
	}
	if outer.Op == "" {
		return reason
	}
	return outer.Op + " failed: " + reason
}
