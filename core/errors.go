package core

import "errors"

// Sentinel errors for comparison with errors.Is.
var (
	// ErrUserNotFound is returned by an engine asked to act on an unknown user ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRequest marks a request rejected before reaching the engine.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMissingConfiguration marks a required setting that is absent at startup.
	ErrMissingConfiguration = errors.New("missing required configuration")

	// ErrEngineUnavailable marks a memory engine that cannot be reached.
	ErrEngineUnavailable = errors.New("memory engine unavailable")
)
