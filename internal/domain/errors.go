package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError
// function; the scheduler uses Retryable to classify run failures.
var (
	// ErrAuth covers token-endpoint and mailbox authentication failures.
	// Fatal to the current import run and never retried within it; the
	// next scheduled tick starts from scratch.
	ErrAuth = errors.New("authentication failed")

	// ErrProtocol covers transport and session failures (dial, select,
	// search). Fatal to the run but eligible for the scheduler's bounded
	// retry.
	ErrProtocol = errors.New("mailbox protocol error")

	// ErrConfig marks operator errors such as a missing mailbox record.
	// Not retried; requires operator action.
	ErrConfig = errors.New("configuration error")

	// ErrLockHeld signals that another run holds the import lock.
	// Logged as a skip, never as a failure.
	ErrLockHeld = errors.New("import lock held by another run")

	ErrNotFound        = errors.New("not found")
	ErrInvalidTitle    = errors.New("title must be between 1 and 255 characters")
	ErrInvalidCreator  = errors.New("created_by must not be empty")
	ErrInvalidPriority = errors.New("invalid priority: must be low, normal, or high")
	ErrAlreadyAssigned = errors.New("user is already a co-assignee")
)

// Retryable reports whether the scheduler may retry a failed run.
// Only protocol-class failures qualify; auth and configuration errors
// need operator intervention and lock contention is not a failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrProtocol)
}
