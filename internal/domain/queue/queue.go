// Package queue defines the contract for the database-backed job
// queue described in the job dispatch loop: a logical work queue over
// the notification_job table, safe to share across a fleet of service
// instances.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/durablenotify/notifysvc/internal/domain/model"
)

// Sentinel errors surfaced by Take. They are control-flow outcomes,
// not bugs, and callers should branch on errors.Is rather than treat
// them as failures to log at error level.
var (
	// ErrQueueEmpty means no eligible job was found; Take may be called
	// again immediately or after the configured poll interval.
	ErrQueueEmpty = errors.New("queue: empty")

	// ErrQueueStopped means Stop was called; the caller should stop
	// looping.
	ErrQueueStopped = errors.New("queue: stopped")

	// ErrJobAlreadyOwned means a Handle's Release found the job no
	// longer owned by this caller (for example, its claim was reset by
	// an orphan sweep); Release then writes nothing.
	ErrJobAlreadyOwned = errors.New("queue: job already owned")
)

// Handle bundles one claimed job row with the finalization callback
// that must run on every exit path. Use of a Handle inside a deferred
// Release guarantees the job never leaks in "claimed" state inside
// this process (a crash of the process itself is the one case §9
// explicitly accepts as an orphaned claim).
type Handle struct {
	Job *model.NotificationJob

	// release is supplied by the queue implementation and performs the
	// terminal UPDATE. It must be idempotent: calling it twice is safe
	// and the second call is a no-op.
	release func(ctx context.Context, successful bool) error

	released bool
}

// NewHandle constructs a Handle wrapping job, with release invoked
// exactly once by the first call to Release.
func NewHandle(job *model.NotificationJob, release func(ctx context.Context, successful bool) error) *Handle {
	return &Handle{Job: job, release: release}
}

// Release finalizes the job: end_at = now, successful = successful.
// Safe to call more than once; only the first call has effect.
func (h *Handle) Release(ctx context.Context, successful bool) error {
	if h.released {
		return nil
	}
	h.released = true
	return h.release(ctx, successful)
}

// JobQueue is a logical view over the notification_job table,
// parameterized by owner (the fleet-instance identifier) at
// construction time.
type JobQueue interface {
	// Start begins whatever background bookkeeping the implementation
	// needs (e.g. a ticker for the poll interval). Idempotent.
	Start(ctx context.Context)

	// Stop signals shutdown; any blocked Take unblocks and returns
	// ErrQueueStopped. Idempotent.
	Stop()

	// Take atomically claims and returns exactly one eligible job. It
	// blocks until a job becomes available, the poll interval elapses
	// (returning ErrQueueEmpty), or Stop is called (returning
	// ErrQueueStopped).
	Take(ctx context.Context) (*Handle, error)
}

// RetryScheduler inserts the successor job row a failed delivery
// spawns. It is a separate, narrower interface from JobQueue because
// the retry insert runs on its own fresh transaction, deliberately not
// tied to the failed job's finalization (see DESIGN.md).
type RetryScheduler interface {
	InsertRetry(ctx context.Context, failed *model.NotificationJob, retryDelay time.Duration) (*model.NotificationJob, error)
}

// Reclaimer resets orphaned claims — jobs left claimed (owner and
// start_at set, end_at still null) by a worker process that crashed
// between claim and finalize. This is an explicit, opt-in remedy for
// the one failure mode the claim protocol does not self-heal from.
type Reclaimer interface {
	// ReclaimOrphans resets every claimed, non-terminal job whose
	// start_at predates olderThan, and returns how many were reset.
	ReclaimOrphans(ctx context.Context, olderThan time.Time) (int, error)
}
