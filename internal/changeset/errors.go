package changeset

import "fmt"

// InputErrorKind classifies rejected input descriptors.
type InputErrorKind string

const (
	InputBad       InputErrorKind = "bad_input"
	InputNotFound  InputErrorKind = "not_found"
	InputForbidden InputErrorKind = "forbidden"
)

// InputError is a bad or unusable input descriptor. Never retried.
type InputError struct {
	Kind InputErrorKind
	Msg  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error (%s): %s", e.Kind, e.Msg)
}

// NewInputError constructs an InputError.
func NewInputError(kind InputErrorKind, format string, args ...any) *InputError {
	return &InputError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// UpstreamError is a hosting-API fetch failure (5xx or network).
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error during %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
