package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
)

// Ensure CachedNotificationRepository implements the domain interface.
var _ repo.NotificationRepository = (*CachedNotificationRepository)(nil)

// CachedNotificationRepository decorates a NotificationRepository with
// a Redis read-through cache for GetByID; CreateWithJobs writes through
// to the primary repository and then warms the cache. Every other
// method passes straight through to the primary repository: job rows
// mutate far too often for cache-aside to pay off, and
// CancelPendingJobs is already a single round trip to Postgres.
type CachedNotificationRepository struct {
	primary repo.NotificationRepository
	cache   repo.NotificationCache
	logger  zerolog.Logger
	ttl     time.Duration
}

// NewCachedNotificationRepository creates the decorator.
func NewCachedNotificationRepository(
	primary repo.NotificationRepository,
	cache repo.NotificationCache,
	ttl time.Duration,
	logger *zerolog.Logger,
) *CachedNotificationRepository {
	return &CachedNotificationRepository{
		primary: primary,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With().Str("layer", "cached_notification_repository").Logger(),
	}
}

// CreateWithJobs persists via the primary repository, then warms the
// cache with the newly created notification.
func (r *CachedNotificationRepository) CreateWithJobs(ctx context.Context, n *model.Notification, jobs []*model.NotificationJob) error {
	if err := r.primary.CreateWithJobs(ctx, n, jobs); err != nil {
		return err
	}
	if err := r.cache.Set(ctx, n, r.ttl); err != nil {
		r.logger.Warn().Err(err).Stringer("id", n.ID).Msg("failed to warm cache after create")
	}
	return nil
}

// GetByID implements cache-aside: try the cache first, fall back to
// Postgres on a miss, and repopulate the cache with what Postgres
// returned.
func (r *CachedNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	cached, err := r.cache.Get(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		r.logger.Warn().Err(err).Stringer("id", id).Msg("cache get error, falling back to primary repository")
	}

	n, err := r.primary.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, n, r.ttl); err != nil {
		r.logger.Warn().Err(err).Stringer("id", id).Msg("failed to set cache after db fetch")
	}
	return n, nil
}

// FindByToken passes straight through; idempotency lookups are rare
// enough that caching them isn't worth the staleness risk.
func (r *CachedNotificationRepository) FindByToken(ctx context.Context, context_, token string) (*model.Notification, error) {
	return r.primary.FindByToken(ctx, context_, token)
}

// ListJobs passes straight through — job state mutates continuously.
func (r *CachedNotificationRepository) ListJobs(ctx context.Context, notificationID uuid.UUID) ([]*model.NotificationJob, error) {
	return r.primary.ListJobs(ctx, notificationID)
}

// CancelPendingJobs passes straight through and does not need to
// invalidate the notification cache entry, since the notification row
// itself is never mutated by a cancel.
func (r *CachedNotificationRepository) CancelPendingJobs(ctx context.Context, notificationID uuid.UUID) (int, error) {
	return r.primary.CancelPendingJobs(ctx, notificationID)
}
