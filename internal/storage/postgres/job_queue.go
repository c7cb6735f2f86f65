package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/config"
	"github.com/durablenotify/notifysvc/internal/domain/model"
	"github.com/durablenotify/notifysvc/internal/domain/queue"
)

// Ensure DatabaseJobQueue implements the domain interface.
var _ queue.JobQueue = (*DatabaseJobQueue)(nil)

// DatabaseJobQueue is the claim protocol over notification_job described
// in the job dispatch loop: a logical work queue safe to share across
// every instance in the fleet, because the claim step is a single
// atomic "lock row, write owner/start_at, commit".
//
// The claim query uses `FOR UPDATE SKIP LOCKED`: rather than the
// prose's "select, then retry a bounded number of times on lost
// races", a concurrent claimant's row is simply invisible to this
// query, so there is nothing to retry — SKIP LOCKED is the idiomatic
// Postgres realization of that retry loop.
type DatabaseJobQueue struct {
	pool        *pgxpool.Pool
	owner       string
	pollInterval time.Duration
	logger      zerolog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewDatabaseJobQueue creates a DatabaseJobQueue claiming jobs under
// the given owner identifier. If owner is empty, a random one is
// generated so two processes never collide on the same identity.
func NewDatabaseJobQueue(pool *pgxpool.Pool, cfg *config.Config, logger *zerolog.Logger) *DatabaseJobQueue {
	owner := cfg.Notifier.Owner
	if owner == "" {
		owner = "notifysvc-" + uuid.NewString()
	}

	pollSeconds := cfg.Notifier.PollSeconds
	if pollSeconds <= 0 {
		pollSeconds = 60
	}

	return &DatabaseJobQueue{
		pool:         pool,
		owner:        owner,
		pollInterval: time.Duration(pollSeconds) * time.Second,
		logger:       logger.With().Str("component", "database_job_queue").Str("owner", owner).Logger(),
		stopCh:       make(chan struct{}),
	}
}

// Start is a no-op: the queue has no background state of its own,
// beyond the stop channel that already exists at construction.
// Idempotent by construction.
func (q *DatabaseJobQueue) Start(ctx context.Context) {
	q.logger.Info().Dur("poll_interval", q.pollInterval).Msg("job queue started")
}

// Stop signals shutdown; any blocked Take unblocks with
// queue.ErrQueueStopped. Idempotent.
func (q *DatabaseJobQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
}

// Take attempts a single claim. If no eligible row exists, it waits
// for either the poll interval to elapse (returning
// queue.ErrQueueEmpty so the caller can loop) or Stop/ctx cancellation.
func (q *DatabaseJobQueue) Take(ctx context.Context) (*queue.Handle, error) {
	job, err := q.claimOne(ctx)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return queue.NewHandle(job, func(releaseCtx context.Context, successful bool) error {
			finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(releaseCtx), 10*time.Second)
			defer cancel()
			return q.finalize(finalizeCtx, job.ID, successful)
		}), nil
	}

	select {
	case <-q.stopCh:
		return nil, queue.ErrQueueStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(q.pollInterval):
		return nil, queue.ErrQueueEmpty
	}
}

// claimOne performs the select-for-update-skip-locked-then-claim
// transaction. It returns (nil, nil) when there is nothing eligible.
func (q *DatabaseJobQueue) claimOne(ctx context.Context) (*model.NotificationJob, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: queue: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once Commit succeeds

	row := tx.QueryRow(ctx, `
		SELECT id, notification_id, recipient_id, priority, created_at, not_before,
		       retries_remaining, owner, start_at, end_at, successful
		FROM notification_job
		WHERE owner IS NULL AND start_at IS NULL AND end_at IS NULL AND not_before <= now()
		ORDER BY priority ASC, created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: queue: select eligible job: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE notification_job SET owner = $1, start_at = $2 WHERE id = $3`,
		q.owner, now, pgUUID(job.ID),
	); err != nil {
		return nil, fmt.Errorf("postgres: queue: claim job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres: queue: commit claim: %w", err)
	}

	job.Owner = &q.owner
	job.StartAt = &now

	q.logger.Debug().Stringer("job_id", job.ID).Msg("claimed job")
	return job, nil
}

// finalize marks a claimed job terminal. It is always called with a
// fresh, short-lived context by the Handle's Release so that a
// cancelled parent context (e.g. shutdown) does not prevent a job
// already in flight from being finalized.
func (q *DatabaseJobQueue) finalize(ctx context.Context, jobID uuid.UUID, successful bool) error {
	now := time.Now().UTC()
	tag, err := q.pool.Exec(ctx,
		`UPDATE notification_job SET end_at = $1, successful = $2 WHERE id = $3 AND owner = $4`,
		now, successful, pgUUID(jobID), q.owner,
	)
	if err != nil {
		return fmt.Errorf("postgres: queue: finalize job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The row is no longer owned by this instance: its claim was
		// reset (see OrphanReclaimer) and may since have been taken by
		// another instance. Nothing is written.
		return queue.ErrJobAlreadyOwned
	}
	return nil
}

// Ensure RetryScheduler implements the domain interface.
var _ queue.RetryScheduler = (*RetryScheduler)(nil)

// RetryScheduler implements queue.RetryScheduler on the shared pool.
type RetryScheduler struct {
	pool *pgxpool.Pool
}

// NewRetryScheduler creates a RetryScheduler over pool.
func NewRetryScheduler(pool *pgxpool.Pool) *RetryScheduler {
	return &RetryScheduler{pool: pool}
}

// InsertRetry inserts a successor job row for a failed delivery: same
// notification/recipient/priority, retries_remaining decremented,
// not_before pushed out by retryDelay. Runs in its own transaction on
// the shared pool, deliberately not tied to the failed job's
// finalization — see DESIGN.md's discussion of this accepted weakness.
func (s *RetryScheduler) InsertRetry(ctx context.Context, failed *model.NotificationJob, retryDelay time.Duration) (*model.NotificationJob, error) {
	successor := &model.NotificationJob{
		ID:               uuid.New(),
		NotificationID:   failed.NotificationID,
		RecipientID:      failed.RecipientID,
		Priority:         failed.Priority,
		CreatedAt:        time.Now().UTC(),
		NotBefore:        time.Now().UTC().Add(retryDelay),
		RetriesRemaining: failed.RetriesRemaining - 1,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_job
			(id, notification_id, recipient_id, priority, created_at, not_before, retries_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pgUUID(successor.ID), pgUUID(successor.NotificationID), successor.RecipientID,
		successor.Priority, successor.CreatedAt, successor.NotBefore, successor.RetriesRemaining,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: queue: insert retry successor: %w", err)
	}

	return successor, nil
}

// OrphanReclaimer implements queue.Reclaimer on the shared pool.
// It is the Postgres realization of the operational note that a
// process crash between claim and finalize leaves a job permanently
// claimed: an orphan sweep is an explicit, opt-in remedy, never part
// of the core claim/retry correctness path.
type OrphanReclaimer struct {
	pool *pgxpool.Pool
}

// NewOrphanReclaimer creates an OrphanReclaimer over pool.
func NewOrphanReclaimer(pool *pgxpool.Pool) *OrphanReclaimer {
	return &OrphanReclaimer{pool: pool}
}

// ReclaimOrphans resets owner and start_at to null on every claimed,
// non-terminal job whose start_at is older than olderThan, making it
// eligible for claim again. It returns the number of jobs reclaimed.
func (r *OrphanReclaimer) ReclaimOrphans(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_job
		SET owner = NULL, start_at = NULL
		WHERE owner IS NOT NULL AND end_at IS NULL AND start_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: queue: reclaim orphans: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
