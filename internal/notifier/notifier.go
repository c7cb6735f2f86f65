// Package notifier implements the worker body: given a claimed job
// handle, render the notification's templates for the recipient,
// invoke the Provider, classify the outcome, and on failure enqueue a
// retry successor. This is the code the worker pool calls for every
// job it dequeues.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/events"
	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
	"github.com/durablenotify/notifysvc/internal/domain/queue"
	"github.com/durablenotify/notifysvc/internal/provider"
	"github.com/durablenotify/notifysvc/internal/template"
)

// Notifier implements workerpool.Processor.
type Notifier struct {
	notifications repo.NotificationRepository
	users         repo.UserRepository
	provider      provider.Provider
	publisher     events.Publisher
	retries       queue.RetryScheduler
	retryDelay    time.Duration
	logger        zerolog.Logger
}

// New creates a Notifier. retries is used only to insert a successor
// job on a fresh transaction independent of the claim/finalize path
// (see DESIGN.md: the retry insert is deliberately not tied to the
// failed job's finalization).
func New(
	notifications repo.NotificationRepository,
	users repo.UserRepository,
	p provider.Provider,
	publisher events.Publisher,
	retries queue.RetryScheduler,
	retryDelay time.Duration,
	logger *zerolog.Logger,
) *Notifier {
	return &Notifier{
		notifications: notifications,
		users:         users,
		provider:      p,
		publisher:     publisher,
		retries:       retries,
		retryDelay:    retryDelay,
		logger:        logger.With().Str("component", "notifier").Logger(),
	}
}

// Process implements workerpool.Processor. It is the entry point the
// worker pool calls for every claimed job handle.
func (n *Notifier) Process(ctx context.Context, handle *queue.Handle) {
	n.Send(ctx, handle)
}

// Send renders and delivers the job bound to handle. Finalization
// (handle.Release) always runs, via defer, on every exit path:
// success sets successful=true; any failure sets successful=false and
// — budget permitting — enqueues a retry successor.
func (n *Notifier) Send(ctx context.Context, handle *queue.Handle) {
	job := handle.Job
	// Release is idempotent: this only has effect when a panic skipped
	// the explicit Release calls below.
	defer handle.Release(ctx, false) //nolint:errcheck
	log := n.logger.With().
		Stringer("job_id", job.ID).
		Stringer("notification_id", job.NotificationID).
		Int64("recipient_id", job.RecipientID).
		Logger()

	err := n.deliver(ctx, job, log)
	if err == nil {
		if relErr := handle.Release(ctx, true); relErr != nil {
			n.logAlreadyOwned(relErr, log)
		}
		n.publish(ctx, events.KindJobDelivered, job, log)
		log.Info().Msg("notification delivered")
		return
	}

	log.Warn().Err(err).Msg("delivery failed")
	if relErr := handle.Release(ctx, false); relErr != nil {
		// JobAlreadyOwned: this instance no longer owns the row (its
		// claim was reset and another worker may hold it now), so
		// finalize wrote nothing and we must not enqueue a retry — that
		// would duplicate work.
		n.logAlreadyOwned(relErr, log)
		return
	}

	n.publish(ctx, events.KindJobFailed, job, log)
	n.scheduleRetry(ctx, job, log)
}

// deliver builds the template map, renders subject/plain/html, and
// invokes the provider. Any failure here — render or provider — is
// treated identically by the caller: a failed delivery.
func (n *Notifier) deliver(ctx context.Context, job *model.NotificationJob, log zerolog.Logger) error {
	notification, err := n.notifications.GetByID(ctx, job.NotificationID)
	if err != nil {
		return fmt.Errorf("notifier: load notification: %w", err)
	}

	user, err := n.users.GetByID(ctx, job.RecipientID)
	if err != nil {
		return fmt.Errorf("notifier: load recipient: %w", err)
	}

	values := map[string]string{
		"first_name": user.FirstName,
		"last_name":  user.LastName,
	}

	subject, err := template.Render(notification.Subject, values)
	if err != nil {
		return fmt.Errorf("notifier: render subject: %w", err)
	}
	plainText, err := template.Render(notification.PlainText, values)
	if err != nil {
		return fmt.Errorf("notifier: render plain text: %w", err)
	}
	htmlText, err := template.Render(notification.HTMLText, values)
	if err != nil {
		return fmt.Errorf("notifier: render html text: %w", err)
	}

	if err := n.provider.Send(ctx, user.Email, subject, plainText, htmlText); err != nil {
		return fmt.Errorf("notifier: provider send: %w", err)
	}

	return nil
}

// scheduleRetry inserts a successor job on a fresh transaction if the
// failed job still has attempt budget left. Failure of the insert is
// logged at error level; the notification is effectively dropped for
// that recipient — an accepted weakness (see DESIGN.md).
func (n *Notifier) scheduleRetry(ctx context.Context, job *model.NotificationJob, log zerolog.Logger) {
	if job.RetriesRemaining <= 0 {
		log.Error().Msg("max retries reached, dropping notification for recipient")
		return
	}

	successor, err := n.retries.InsertRetry(ctx, job, n.retryDelay)
	if err != nil {
		log.Error().Err(err).Msg("CRITICAL: failed to insert retry successor, notification dropped for recipient")
		return
	}

	log.Warn().
		Stringer("successor_job_id", successor.ID).
		Int("retries_remaining", successor.RetriesRemaining).
		Time("not_before", successor.NotBefore).
		Msg("retry successor scheduled")
}

func (n *Notifier) publish(ctx context.Context, kind events.Kind, job *model.NotificationJob, log zerolog.Logger) {
	if n.publisher == nil {
		return
	}
	err := n.publisher.Publish(ctx, events.Event{
		Kind:           kind,
		NotificationID: job.NotificationID,
		JobID:          job.ID,
		RecipientID:    job.RecipientID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to publish integration event")
	}
}

func (n *Notifier) logAlreadyOwned(err error, log zerolog.Logger) {
	if errors.Is(err, queue.ErrJobAlreadyOwned) {
		log.Warn().Msg("job already owned by another worker, skipping finalize and retry")
		return
	}
	log.Error().Err(err).Msg("failed to finalize job")
}
