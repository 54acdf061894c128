package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rail-service/ledger_service/internal/domain/entities"
)

// UserRepository is a read-only view over the platform users table
type UserRepository struct {
	db sqlx.QueryerContext
}

// NewUserRepository creates a new user repository
func NewUserRepository(db sqlx.QueryerContext) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error) {
	var user entities.User
	err := sqlx.GetContext(ctx, r.db, &user, `
		SELECT id, email, first_name, status, created_at
		FROM users
		WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "USER")
	}
	return &user, nil
}
