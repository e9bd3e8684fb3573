package apperrors

import "errors"

// Sentinel errors shared across the store, service, and api packages to
// avoid circular imports. Match with errors.Is.
var (
	// ErrInvalidInput marks malformed caller input (missing UID/PID, bad
	// month format). Rejected before any store call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict marks a failed write precondition: duplicate friend
	// request, partial pair on delete, create-if-absent collision. Not
	// retryable.
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks an expected record that is absent, e.g. accepting
	// a friend request that no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks a missing or invalid identity token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable marks an unreachable or timed-out store. Reads may be
	// retried by the caller; conditional writes must not be.
	ErrUnavailable = errors.New("store unavailable")
)
