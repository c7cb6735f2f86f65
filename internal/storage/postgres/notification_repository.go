package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
)

// Ensure NotificationRepository implements the domain interface.
var _ repo.NotificationRepository = (*NotificationRepository)(nil)

// NotificationRepository implements repository.NotificationRepository
// on top of a pgxpool.Pool. CreateWithJobs is the one write path the
// ingress handler uses; it is the atomic enqueue transaction described
// in the ingress handler contract.
type NotificationRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool, logger *zerolog.Logger) *NotificationRepository {
	return &NotificationRepository{
		pool:   pool,
		logger: logger.With().Str("layer", "postgres_notification_repository").Logger(),
	}
}

// CreateWithJobs inserts the notification row, its recipient links,
// and one job row per recipient, all inside one transaction. Any
// failure rolls back the whole transaction — no partial state is ever
// visible.
func (r *NotificationRepository) CreateWithJobs(ctx context.Context, n *model.Notification, jobs []*model.NotificationJob) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once Commit succeeds

	_, err = tx.Exec(ctx, `
		INSERT INTO notification (id, token, context, priority, subject, html_text, plain_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pgUUID(n.ID), n.Token, n.Context, n.Priority, n.Subject,
		nullable(n.HTMLText), nullable(n.PlainText), n.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return repo.ErrDuplicateRecord
		}
		return fmt.Errorf("postgres: insert notification: %w", err)
	}

	for _, recipientID := range n.RecipientIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO notification_user (notification_id, user_id) VALUES ($1, $2)`,
			pgUUID(n.ID), recipientID,
		); err != nil {
			return fmt.Errorf("postgres: insert notification_user: %w", err)
		}
	}

	for _, job := range jobs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO notification_job
				(id, notification_id, recipient_id, priority, created_at, not_before, retries_remaining)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			pgUUID(job.ID), pgUUID(job.NotificationID), job.RecipientID, job.Priority,
			job.CreatedAt, job.NotBefore, job.RetriesRemaining,
		); err != nil {
			return fmt.Errorf("postgres: insert notification_job: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}

	return nil
}

// GetByID retrieves a notification by its unique id.
func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, token, context, priority, subject, html_text, plain_text, created_at
		FROM notification WHERE id = $1`, pgUUID(id))

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get notification by id: %w", err)
	}

	n.RecipientIDs, err = r.recipientIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	return n, nil
}

// FindByToken retrieves a notification by its (context, token) pair.
func (r *NotificationRepository) FindByToken(ctx context.Context, context_, token string) (*model.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, token, context, priority, subject, html_text, plain_text, created_at
		FROM notification WHERE context = $1 AND token = $2`, context_, token)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: find notification by token: %w", err)
	}
	return n, nil
}

// ListJobs returns every job row for a notification, ordered by
// recipient id then creation time.
func (r *NotificationRepository) ListJobs(ctx context.Context, notificationID uuid.UUID) ([]*model.NotificationJob, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, notification_id, recipient_id, priority, created_at, not_before,
		       retries_remaining, owner, start_at, end_at, successful
		FROM notification_job
		WHERE notification_id = $1
		ORDER BY recipient_id ASC, created_at ASC`, pgUUID(notificationID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CancelPendingJobs deletes every unclaimed job for a notification.
func (r *NotificationRepository) CancelPendingJobs(ctx context.Context, notificationID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notification_job
		WHERE notification_id = $1 AND owner IS NULL AND start_at IS NULL AND end_at IS NULL`,
		pgUUID(notificationID))
	if err != nil {
		return 0, fmt.Errorf("postgres: cancel pending jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *NotificationRepository) recipientIDs(ctx context.Context, notificationID uuid.UUID) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM notification_user WHERE notification_id = $1 ORDER BY user_id ASC`,
		pgUUID(notificationID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list recipients: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan recipient: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*model.Notification, error) {
	var (
		id        pgtype.UUID
		htmlText  pgtype.Text
		plainText pgtype.Text
		n         model.Notification
	)
	if err := row.Scan(&id, &n.Token, &n.Context, &n.Priority, &n.Subject, &htmlText, &plainText, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ID = id.Bytes
	n.HTMLText = htmlText.String
	n.PlainText = plainText.String
	return &n, nil
}

func scanJob(row scanner) (*model.NotificationJob, error) {
	var (
		id, notificationID          pgtype.UUID
		owner                       pgtype.Text
		startAt, endAt              pgtype.Timestamptz
		successful                  pgtype.Bool
		job                         model.NotificationJob
	)
	if err := row.Scan(&id, &notificationID, &job.RecipientID, &job.Priority, &job.CreatedAt,
		&job.NotBefore, &job.RetriesRemaining, &owner, &startAt, &endAt, &successful); err != nil {
		return nil, err
	}
	job.ID = id.Bytes
	job.NotificationID = notificationID.Bytes
	if owner.Valid {
		job.Owner = &owner.String
	}
	if startAt.Valid {
		t := startAt.Time
		job.StartAt = &t
	}
	if endAt.Valid {
		t := endAt.Time
		job.EndAt = &t
	}
	if successful.Valid {
		b := successful.Bool
		job.Successful = &b
	}
	return &job, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func nullable(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
