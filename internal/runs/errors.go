package runs

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrTerminal signals an attempted transition out of a completed or
	// failed run. Terminal states are immutable.
	ErrTerminal = errors.New("run already terminal")
)

const (
	ErrorCodeInput    = "INPUT_ERROR"
	ErrorCodeUpstream = "UPSTREAM_ERROR"
	ErrorCodeInternal = "INTERNAL_ERROR"
)
