package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/storage"
)

// CreateUser inserts a new user, generating ID and CreatedAt if unset.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = time.Now().Unix()
	}
	user.Active = true

	var email interface{}
	if user.Email != "" {
		email = user.Email
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, active, created_at) VALUES (?, ?, ?, 1, ?)",
		user.ID, user.Name, email, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	var email sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, active, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Name, &email, &user.Active, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Email = email.String
	return user, nil
}
