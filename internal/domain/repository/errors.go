package repository

import "errors"

// Sentinel errors returned by repository and service implementations.
// Callers should compare with errors.Is, never string matching.
var (
	// ErrNotFound is returned when a lookup by id finds no row.
	ErrNotFound = errors.New("repository: not found")

	// ErrDuplicateRecord is returned when a unique constraint (e.g. the
	// (context, token) pair on notification) is violated.
	ErrDuplicateRecord = errors.New("repository: duplicate record")

	// ErrInvalidNotification is returned by the ingress handler when the
	// submitted notification fails validation. No rows are written.
	ErrInvalidNotification = errors.New("notification: invalid request")

	// ErrUnavailable is returned by the ingress handler for any
	// unexpected failure (database, etc). The transaction is rolled
	// back and no partial state is left behind.
	ErrUnavailable = errors.New("notification: service unavailable")

	// ErrNotCancellable is returned when CancelNotification is asked to
	// cancel a notification that is no longer in a cancellable state.
	ErrNotCancellable = errors.New("notification: not cancellable")
)
