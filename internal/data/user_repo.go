package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobshield/jobshield/internal/domain/model"
	apperrors "github.com/jobshield/jobshield/internal/errors"
)

// UserRepo provides database operations for users.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewUserRepo creates a new UserRepo instance.
func NewUserRepo(db *sql.DB, cfg RepoConfig) *UserRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &UserRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// Create inserts a new user.
func (r *UserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if user == nil || user.ID == "" {
		return nil, errors.New("user id is required")
	}

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now()
	}

	var created model.User
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, email, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, email, created_at`,
		user.ID, user.Email, createdAt,
	).Scan(&created.ID, &created.Email, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", apperrors.MapDBError(err))
	}
	return &created, nil
}

// GetByID returns a user by id, or nil when absent.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &user, nil
}

// Exists reports whether the user is present.
func (r *UserRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", apperrors.MapDBError(err))
	}
	return exists, nil
}
