package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/liauzhanyi/splitwiser/internal/money"
	"github.com/liauzhanyi/splitwiser/internal/storage"
)

// Balance returns the net balance for one (user, group) pair, zero when the
// user has no history in the group.
func (s *SQLiteStore) Balance(ctx context.Context, userID, groupID string) (money.Money, error) {
	var cents int64
	err := s.db.QueryRowContext(ctx,
		"SELECT balance_cents FROM balances WHERE group_id = ? AND user_id = ?",
		groupID, userID,
	).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero, nil
	}
	if err != nil {
		return money.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return money.FromCents(cents), nil
}

// GroupBalances returns every non-zero balance in the group.
func (s *SQLiteStore) GroupBalances(ctx context.Context, groupID string) (map[string]money.Money, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, balance_cents FROM balances WHERE group_id = ? AND balance_cents != 0",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]money.Money)
	for rows.Next() {
		var userID string
		var cents int64
		if err := rows.Scan(&userID, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances[userID] = money.FromCents(cents)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return balances, nil
}

// RecomputeGroup re-derives the group's balances from history and replaces
// the stored rows, all inside one transaction so the snapshot is consistent
// with concurrent writers.
func (s *SQLiteStore) RecomputeGroup(ctx context.Context, groupID string, derive storage.RecomputeFunc) (map[string]money.Money, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	expenses, splitsByExpense, err := listGroupExpenses(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := listGroupSettlements(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	balances := derive(expenses, splitsByExpense, settlements)

	if _, err := tx.ExecContext(ctx, "DELETE FROM balances WHERE group_id = ?", groupID); err != nil {
		return nil, fmt.Errorf("failed to clear balances: %w", err)
	}
	result := make(map[string]money.Money, len(balances))
	for userID, balance := range balances {
		result[userID] = balance
		if balance.IsZero() {
			continue
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO balances (group_id, user_id, balance_cents) VALUES (?, ?, ?)",
			groupID, userID, balance.Cents(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert balance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
