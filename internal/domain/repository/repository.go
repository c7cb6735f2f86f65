package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/durablenotify/notifysvc/internal/domain/model"
)

// NotificationRepository persists Notification parents and their Job
// children. CreateWithJobs is the only write path the ingress handler
// uses; CancelPendingJobs deletes unclaimed jobs, and everything else
// is read-only (job claim state is owned by the queue package) since
// notification rows and terminal jobs are never mutated.
type NotificationRepository interface {
	// CreateWithJobs inserts one notification row, its recipient links,
	// and one job row per recipient, all in a single transaction.
	CreateWithJobs(ctx context.Context, n *model.Notification, jobs []*model.NotificationJob) error

	// GetByID retrieves a notification by its unique id.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)

	// FindByToken retrieves a notification by its (context, token) pair,
	// used to detect idempotent resubmission.
	FindByToken(ctx context.Context, context, token string) (*model.Notification, error)

	// ListJobs returns every job row for a notification, ordered by
	// recipient id then creation time.
	ListJobs(ctx context.Context, notificationID uuid.UUID) ([]*model.NotificationJob, error)

	// CancelPendingJobs deletes every unclaimed job belonging to a
	// notification and returns how many were removed.
	CancelPendingJobs(ctx context.Context, notificationID uuid.UUID) (int, error)
}

// UserRepository resolves recipient users. The notification service
// never writes to it.
type UserRepository interface {
	// GetByID returns the user with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.User, error)

	// GetByIDs resolves a batch of ids in one round trip. Any id with no
	// matching row is simply absent from the result map; it is the
	// caller's job to detect the gap.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)
}

// NotificationCache is a read-through cache in front of
// NotificationRepository.GetByID. It is an optional performance layer;
// no correctness property depends on it.
type NotificationCache interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	Set(ctx context.Context, n *model.Notification, expiration time.Duration) error
	Delete(ctx context.Context, id uuid.UUID) error
}
