// Package lock provides the named mutual-exclusion marker that keeps the
// import job single-flight across every server process.
package lock

import "context"

// Locker acquires named, time-bounded locks. Acquire returns ok=false
// when another holder owns the lock; that is contention, not an error.
// The returned release func must be called on every exit path; a holder
// that dies without releasing is covered by the lock's TTL.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), ok bool, err error)
}
