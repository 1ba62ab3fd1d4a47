package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liauzhanyi/splitwiser/internal/calculator"
	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
	"github.com/liauzhanyi/splitwiser/internal/storage"
)

// CreateSettlement persists a settlement and applies its balance deltas in
// one transaction.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement, deltas calculator.Deltas) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	var groupID, note interface{}
	if settlement.GroupID != "" {
		groupID = settlement.GroupID
	}
	if settlement.Note != "" {
		note = settlement.Note
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, from_user_id, to_user_id, amount_cents, note, confirmed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		settlement.ID, groupID, settlement.FromUserID, settlement.ToUserID,
		settlement.Amount.Cents(), note, settlement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}

	if err := applyDeltas(ctx, tx, settlement.GroupID, deltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	settlement, err := scanSettlement(s.db.QueryRowContext(ctx,
		`SELECT id, group_id, from_user_id, to_user_id, amount_cents, note, confirmed, created_at
		 FROM settlements WHERE id = ?`,
		settlementID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// ConfirmSettlement flips the confirmation flag. Balances are untouched:
// they were adjusted when the settlement was created.
func (s *SQLiteStore) ConfirmSettlement(ctx context.Context, settlementID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE settlements SET confirmed = 1 WHERE id = ?",
		settlementID,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm settlement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return nil
}

// ListGroupSettlements returns the group's settlements, newest first.
func (s *SQLiteStore) ListGroupSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	return listGroupSettlements(ctx, s.db, groupID)
}

func listGroupSettlements(ctx context.Context, q queryRower, groupID string) ([]*models.Settlement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, group_id, from_user_id, to_user_id, amount_cents, note, confirmed, created_at
		 FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

func scanSettlement(row rowScanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var amountCents int64
	var groupID, note sql.NullString
	if err := row.Scan(&settlement.ID, &groupID, &settlement.FromUserID, &settlement.ToUserID,
		&amountCents, &note, &settlement.Confirmed, &settlement.CreatedAt); err != nil {
		return nil, err
	}
	settlement.Amount = money.FromCents(amountCents)
	settlement.GroupID = groupID.String
	settlement.Note = note.String
	return settlement, nil
}
