// Package service implements the ingress handler: validation,
// recipient resolution, token/not_before defaulting, and atomic
// persistence of a Notification together with its per-recipient Jobs.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
)

// NewNotificationInput is the caller-facing request shape for Notify.
type NewNotificationInput struct {
	Context          string
	Token            string
	Priority         model.Priority
	Subject          string
	PlainText        string
	HTMLText         string
	RecipientUserIDs []int64
	NotBefore        *time.Time
}

// NotificationService implements the ingress handler and the
// supplementary read/cancel operations built on top of it.
type NotificationService struct {
	notifications repo.NotificationRepository
	users         repo.UserRepository
	maxAttempts   int
	logger        zerolog.Logger
}

// New creates a NotificationService. maxAttempts seeds retries_remaining
// on every freshly created job.
func New(
	notifications repo.NotificationRepository,
	users repo.UserRepository,
	maxAttempts int,
	logger *zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		maxAttempts:   maxAttempts,
		logger:        logger.With().Str("layer", "notification_service").Logger(),
	}
}

// Notify validates in, resolves its recipients, and atomically persists
// one Notification row plus one NotificationJob row per recipient. If
// in carries a caller-supplied token that already exists within its
// context, Notify is idempotent: it returns the existing notification
// unchanged instead of writing anything. Validation failures return
// repository.ErrInvalidNotification and write nothing; unexpected
// failures return repository.ErrUnavailable.
func (s *NotificationService) Notify(ctx context.Context, in NewNotificationInput) (*model.Notification, error) {
	if err := validate(in); err != nil {
		s.logger.Warn().Err(err).Str("context", in.Context).Msg("rejected invalid notification")
		return nil, err
	}

	users, err := s.users.GetByIDs(ctx, in.RecipientUserIDs)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to resolve recipients")
		return nil, repo.ErrUnavailable
	}
	for _, id := range in.RecipientUserIDs {
		if _, ok := users[id]; !ok {
			s.logger.Warn().Int64("recipient_id", id).Msg("unknown recipient id")
			return nil, fmt.Errorf("%w: unknown recipient id %d", repo.ErrInvalidNotification, id)
		}
	}

	token := in.Token
	if token != "" {
		existing, err := s.notifications.FindByToken(ctx, in.Context, token)
		if err == nil {
			s.logger.Info().
				Stringer("notification_id", existing.ID).
				Msg("idempotent resubmission, returning existing notification")
			return existing, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			s.logger.Error().Err(err).Msg("failed to check token idempotency")
			return nil, repo.ErrUnavailable
		}
	} else {
		token, err = generateToken()
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to generate token")
			return nil, repo.ErrUnavailable
		}
	}

	notBefore := time.Now().UTC()
	if in.NotBefore != nil {
		notBefore = *in.NotBefore
	}

	notification := &model.Notification{
		ID:           uuid.New(),
		Token:        token,
		Context:      in.Context,
		Priority:     in.Priority.Value(),
		Subject:      in.Subject,
		PlainText:    in.PlainText,
		HTMLText:     in.HTMLText,
		CreatedAt:    time.Now().UTC(),
		RecipientIDs: in.RecipientUserIDs,
	}

	jobs := make([]*model.NotificationJob, 0, len(in.RecipientUserIDs))
	for _, id := range in.RecipientUserIDs {
		jobs = append(jobs, &model.NotificationJob{
			ID:               uuid.New(),
			NotificationID:   notification.ID,
			RecipientID:      id,
			Priority:         notification.Priority,
			CreatedAt:        notification.CreatedAt,
			NotBefore:        notBefore,
			RetriesRemaining: s.maxAttempts,
		})
	}

	if err := s.notifications.CreateWithJobs(ctx, notification, jobs); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist notification")
		return nil, fmt.Errorf("%w: %v", repo.ErrUnavailable, err)
	}

	s.logger.Info().
		Stringer("notification_id", notification.ID).
		Int("job_count", len(jobs)).
		Msg("notification accepted")

	return notification, nil
}

// GetNotification is a cache-aside read of a single notification. The
// injected repository is expected to be the Redis-backed decorator in
// production; the service itself has no cache awareness.
func (s *NotificationService) GetNotification(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.notifications.GetByID(ctx, id)
}

// ListJobs returns every job row belonging to a notification.
func (s *NotificationService) ListJobs(ctx context.Context, id uuid.UUID) ([]*model.NotificationJob, error) {
	return s.notifications.ListJobs(ctx, id)
}

// CancelNotification deletes every unclaimed job of a notification. It
// does not delete the Notification row itself: a notification with
// some jobs already delivered or in flight retains its history.
func (s *NotificationService) CancelNotification(ctx context.Context, id uuid.UUID) (int, error) {
	if _, err := s.notifications.GetByID(ctx, id); err != nil {
		return 0, err
	}
	cancelled, err := s.notifications.CancelPendingJobs(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Stringer("notification_id", id).Msg("failed to cancel pending jobs")
		return 0, repo.ErrUnavailable
	}
	if cancelled == 0 {
		return 0, repo.ErrNotCancellable
	}
	return cancelled, nil
}

func validate(in NewNotificationInput) error {
	if in.Context == "" {
		return fmt.Errorf("%w: context must not be empty", repo.ErrInvalidNotification)
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %q", repo.ErrInvalidNotification, in.Priority)
	}
	if in.Subject == "" {
		return fmt.Errorf("%w: subject must not be empty", repo.ErrInvalidNotification)
	}
	if in.PlainText == "" && in.HTMLText == "" {
		return fmt.Errorf("%w: at least one of plain_text or html_text must be non-empty", repo.ErrInvalidNotification)
	}
	if len(in.RecipientUserIDs) == 0 {
		return fmt.Errorf("%w: recipient_user_ids must not be empty", repo.ErrInvalidNotification)
	}
	return nil
}

// generateToken returns a random 128-bit value as a 32-character hex
// string.
func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
