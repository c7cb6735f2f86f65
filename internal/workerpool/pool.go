// Package workerpool implements the fixed-size worker pool that
// consumes claimed job handles and hands each to the notifier: N
// goroutines ranging over an internal unbuffered channel fed by
// Submit, so that Submit naturally blocks (backpressure) exactly when
// every worker is busy.
package workerpool

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/queue"
)

// Processor is the worker body: given a claimed job handle, render
// and deliver it. Processor must never panic across goroutine
// boundaries uncontrolled — Pool recovers panics itself as a last
// resort, but Processor implementations are expected to handle their
// own errors per the outcome-classification contract.
type Processor interface {
	Process(ctx context.Context, handle *queue.Handle)
}

// Pool is a fixed-size set of workers consuming claimed job handles.
// Submit blocks once every worker is busy, which is how the Job
// Monitor's polling naturally stalls under load instead of piling up
// claimed-but-unprocessed jobs in memory.
type Pool struct {
	size      int
	processor Processor
	logger    zerolog.Logger

	submitCh chan *queue.Handle
	wg       sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a Pool of size workers delegating to processor.
func New(size int, processor Processor, logger *zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:      size,
		processor: processor,
		logger:    logger.With().Str("component", "worker_pool").Logger(),
		submitCh:  make(chan *queue.Handle),
		done:      make(chan struct{}),
	}
}

// Start launches the worker goroutines. Idempotent.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.runWorker(ctx, i+1)
		}
		p.logger.Info().Int("size", p.size).Msg("worker pool started")
	})
}

// Submit hands a claimed job handle to the pool. It blocks until a
// worker is free to accept it, or the pool has been stopped.
func (p *Pool) Submit(handle *queue.Handle) {
	select {
	case p.submitCh <- handle:
	case <-p.done:
	}
}

// Stop signals every worker to finish its current job and exit; it
// does not preempt a job mid-flight. Idempotent.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
}

// Join blocks until every worker has exited or timeout elapses.
func (p *Pool) Join(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	log := p.logger.With().Int("worker_id", workerID).Logger()
	log.Info().Msg("worker started")

	for {
		select {
		case <-p.done:
			log.Info().Msg("worker stopping")
			return
		case <-ctx.Done():
			log.Info().Msg("worker stopping due to context cancellation")
			return
		case handle := <-p.submitCh:
			p.processSafely(ctx, handle, log)
		}
	}
}

// processSafely invokes the processor and recovers any panic so one
// misbehaving job can never take down a worker goroutine.
func (p *Pool) processSafely(ctx context.Context, handle *queue.Handle, log zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic while processing job")
		}
	}()
	p.processor.Process(ctx, handle)
}
