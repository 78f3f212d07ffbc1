package domain

import "errors"

// Standard errors surfaced by the orchestration core.
var (
	// ErrNotReady is returned while the orchestrator has not finished its
	// deferred initialization. Callers may retry.
	ErrNotReady = errors.New("orchestrator is still initializing")

	// ErrUnknownOperation is returned when the model names an operation
	// absent from the registry. Terminal for the request.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnsupportedMethod is returned when a registry entry carries an
	// HTTP method outside the supported verb set.
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")

	// ErrUpstreamFailure is returned when the REST backend fails at the
	// transport level or answers outside the 2xx range. Terminal for the
	// request.
	ErrUpstreamFailure = errors.New("upstream call failed")
)
