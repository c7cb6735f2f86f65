package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
)

// Ensure UserRepository implements the domain interface.
var _ repo.UserRepository = (*UserRepository)(nil)

// UserRepository reads the externally-owned users table. This service
// never writes to it.
type UserRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool, logger *zerolog.Logger) *UserRepository {
	return &UserRepository{
		pool:   pool,
		logger: logger.With().Str("layer", "postgres_user_repository").Logger(),
	}
}

// GetByID returns the user with the given id, or repo.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, first_name, last_name FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get user by id: %w", err)
	}
	return &u, nil
}

// GetByIDs resolves a batch of ids in one round trip.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	result := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, email, first_name, last_name FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		result[u.ID] = &u
	}
	return result, rows.Err()
}
