// Package reclaimer implements the optional orphaned-claim sweeper: a
// ticker-driven background task that resets jobs a crashed worker left
// permanently claimed. It is off by default and never participates in
// the claim or retry correctness path — see DESIGN.md.
package reclaimer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/queue"
)

// Reclaimer runs queue.Reclaimer.ReclaimOrphans on a fixed interval
// until stopped.
type Reclaimer struct {
	reclaimer   queue.Reclaimer
	interval    time.Duration
	orphanAfter time.Duration
	logger      zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Reclaimer. Nothing runs until Start is called.
func New(r queue.Reclaimer, interval, orphanAfter time.Duration, logger *zerolog.Logger) *Reclaimer {
	return &Reclaimer{
		reclaimer:   r,
		interval:    interval,
		orphanAfter: orphanAfter,
		logger:      logger.With().Str("component", "reclaimer").Logger(),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the sweep loop in a background goroutine.
func (r *Reclaimer) Start(ctx context.Context) {
	go r.run(ctx)
	r.logger.Info().
		Dur("interval", r.interval).
		Dur("orphan_after", r.orphanAfter).
		Msg("orphan reclaimer started")
}

// Stop signals the sweep loop to exit and waits for it to do so.
func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reclaimer) run(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reclaimer) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.orphanAfter)
	n, err := r.reclaimer.ReclaimOrphans(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("orphan sweep failed")
		return
	}
	if n > 0 {
		r.logger.Warn().Int("reclaimed", n).Msg("reclaimed orphaned job claims")
	}
}
