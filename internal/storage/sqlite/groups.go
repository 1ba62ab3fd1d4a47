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

// CreateGroup inserts a new group and enrolls the creator as an active member
// in the same transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	group.Active = true

	var description interface{}
	if group.Description != "" {
		description = group.Description
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, description, created_by, active, created_at) VALUES (?, ?, ?, ?, 1, ?)",
		group.ID, group.Name, description, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	// The creator is always an active member.
	_, err = tx.ExecContext(ctx,
		"INSERT INTO memberships (group_id, user_id, active, created_at) VALUES (?, ?, 1, ?)",
		group.ID, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enroll group creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var description sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_by, active, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &description, &group.CreatedBy, &group.Active, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.Description = description.String
	return group, nil
}

// EnsureMember inserts or reactivates the (group, user) membership.
// Returns true when the call inserted or reactivated a row.
func (s *SQLiteStore) EnsureMember(ctx context.Context, groupID, userID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx,
		"SELECT active FROM memberships WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&active)

	changed := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO memberships (group_id, user_id, active, created_at) VALUES (?, ?, 1, ?)",
			groupID, userID, time.Now().Unix(),
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert membership: %w", err)
		}
		changed = true
	case err != nil:
		return false, fmt.Errorf("failed to check membership: %w", err)
	case !active:
		_, err = tx.ExecContext(ctx,
			"UPDATE memberships SET active = 1 WHERE group_id = ? AND user_id = ?",
			groupID, userID,
		)
		if err != nil {
			return false, fmt.Errorf("failed to reactivate membership: %w", err)
		}
		changed = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return changed, nil
}

// GroupMembers returns the group's active member set.
func (s *SQLiteStore) GroupMembers(ctx context.Context, groupID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM memberships WHERE group_id = ? AND active = 1",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	members := make(map[string]bool)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members[userID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}
