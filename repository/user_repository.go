package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"grievance/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db dbtx
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetContact retrieves the fields needed to address a user.
// Returns (nil, nil) when the user doesn't exist.
func (r *UserRepository) GetContact(ctx context.Context, userID int64) (*models.UserContact, error) {
	query := `
		SELECT user_id, username, full_name, email
		FROM users
		WHERE user_id = ?
		LIMIT 1
	`

	u := &models.UserContact{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&u.UserID,
		&u.Username,
		&u.FullName,
		&u.Email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return u, nil
}
