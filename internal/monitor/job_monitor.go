// Package monitor implements the job monitor: it owns the database job
// queue and the worker pool, and glues Take() to Submit() in a single
// loop.
package monitor

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/queue"
)

// Pool is the subset of workerpool.Pool the monitor needs. Defined
// here, not imported, so the monitor only depends on the shape it
// actually uses.
type Pool interface {
	Start(ctx context.Context)
	Submit(handle *queue.Handle)
	Stop()
	Join(ctx context.Context) error
}

// JobMonitor owns a JobQueue and a Pool and runs the loop:
//
//	handle, err := queue.Take()
//	switch {
//	case err == nil: pool.Submit(handle)
//	case errors.Is(err, ErrQueueEmpty): continue
//	case errors.Is(err, ErrQueueStopped): return
//	default: log; continue
//	}
type JobMonitor struct {
	queue  queue.JobQueue
	pool   Pool
	logger zerolog.Logger

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates a JobMonitor over q and p.
func New(q queue.JobQueue, p Pool, logger *zerolog.Logger) *JobMonitor {
	return &JobMonitor{
		queue:  q,
		pool:   p,
		logger: logger.With().Str("component", "job_monitor").Logger(),
		done:   make(chan struct{}),
	}
}

// Start brings up the queue, then the pool, then the monitor loop
// goroutine, in that order.
func (m *JobMonitor) Start(ctx context.Context) {
	m.queue.Start(ctx)
	m.pool.Start(ctx)

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info().Msg("job monitor started")
}

// Stop clears running, stops the queue (which unblocks any in-flight
// Take), then stops the pool.
func (m *JobMonitor) Stop() {
	close(m.done)
	m.queue.Stop()
	m.pool.Stop()
}

// Join waits on the monitor loop and the pool with a shared deadline.
func (m *JobMonitor) Join(ctx context.Context) error {
	loopDone := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(loopDone)
	}()

	select {
	case <-loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	return m.pool.Join(ctx)
}

func (m *JobMonitor) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		default:
		}

		handle, err := m.queue.Take(ctx)
		switch {
		case err == nil:
			m.pool.Submit(handle)
		case errors.Is(err, queue.ErrQueueEmpty):
			continue
		case errors.Is(err, queue.ErrQueueStopped):
			m.logger.Info().Msg("queue stopped, monitor loop exiting")
			return
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			m.logger.Info().Msg("context cancelled, monitor loop exiting")
			return
		default:
			m.logger.Error().Err(err).Msg("unexpected error from queue.Take")
			continue
		}
	}
}
