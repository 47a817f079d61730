package chat

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	// ErrInvalidArgument is returned when required fields are missing or blank.
	// The operation has no side effects in that case.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthenticated is returned when the caller identity cannot be established.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound is returned on lookup misses that degrade gracefully (e.g. profiles).
	ErrNotFound = errors.New("not found")

	// ErrTransient is returned for store or transport I/O failures.
	// The whole operation is safe to retry from the caller.
	ErrTransient = errors.New("transient failure")

	// ErrInconsistent marks a summary upsert that failed after the message itself
	// was durably persisted. It is logged, never surfaced to the sender, and
	// self-heals on the next message between the same pair.
	ErrInconsistent = errors.New("summary inconsistent")
)
