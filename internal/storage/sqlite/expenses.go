package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/liauzhanyi/splitwiser/internal/calculator"
	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
	"github.com/liauzhanyi/splitwiser/internal/storage"
)

// CreateExpense persists an expense with its finalized splits and applies the
// balance deltas in one transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense, splits []models.Split, deltas calculator.Deltas) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Category == "" {
		expense.Category = models.DefaultCategory
	}
	expense.Version = 1

	var groupID interface{}
	if expense.GroupID != "" {
		groupID = expense.GroupID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount_cents, paid_by, group_id, split_type, category, deleted, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, ?)`,
		expense.ID, expense.Description, expense.Amount.Cents(), expense.PaidBy,
		groupID, string(expense.SplitType), expense.Category, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertSplits(ctx, tx, expense.ID, splits); err != nil {
		return err
	}
	if err := applyDeltas(ctx, tx, expense.GroupID, deltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense and its current splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.Split, error) {
	expense, err := scanExpense(s.db.QueryRowContext(ctx,
		`SELECT id, description, amount_cents, paid_by, group_id, split_type, category, deleted, version, created_at
		 FROM expenses WHERE id = ?`,
		expenseID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get expense: %w", err)
	}

	splits, err := s.expenseSplits(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	return expense, splits, nil
}

// ReplaceExpenseSplits swaps the split set and applies the combined deltas.
// The version check and every write share one transaction; a stale version
// leaves the database untouched and returns ErrConcurrentEdit.
func (s *SQLiteStore) ReplaceExpenseSplits(ctx context.Context, expenseID string, expectedVersion int64, splits []models.Split, deltas calculator.Deltas) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	groupID, err := bumpExpenseVersion(ctx, tx, expenseID, expectedVersion)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE expense_id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to delete old splits: %w", err)
	}
	if err := insertSplits(ctx, tx, expenseID, splits); err != nil {
		return err
	}
	if err := applyDeltas(ctx, tx, groupID, deltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SoftDeleteExpense marks the expense deleted and applies the reversal
// deltas, guarded by the same version check as split replacement.
func (s *SQLiteStore) SoftDeleteExpense(ctx context.Context, expenseID string, expectedVersion int64, deltas calculator.Deltas) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	groupID, err := bumpExpenseVersion(ctx, tx, expenseID, expectedVersion)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE expenses SET deleted = 1 WHERE id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to mark expense deleted: %w", err)
	}
	if err := applyDeltas(ctx, tx, groupID, deltas); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListGroupExpenses returns the group's full expense history with splits.
func (s *SQLiteStore) ListGroupExpenses(ctx context.Context, groupID string) ([]*models.Expense, map[string][]models.Split, error) {
	return listGroupExpenses(ctx, s.db, groupID)
}

// bumpExpenseVersion increments the expense version if expectedVersion still
// matches and the expense is not deleted. Returns the expense's group ID.
func bumpExpenseVersion(ctx context.Context, tx *sql.Tx, expenseID string, expectedVersion int64) (string, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE expenses SET version = version + 1 WHERE id = ? AND version = ? AND deleted = 0",
		expenseID, expectedVersion,
	)
	if err != nil {
		return "", fmt.Errorf("failed to bump expense version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing or deleted expense.
		var deleted bool
		err := tx.QueryRowContext(ctx, "SELECT deleted FROM expenses WHERE id = ?", expenseID).Scan(&deleted)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && deleted) {
			return "", fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("failed to check expense: %w", err)
		}
		return "", fmt.Errorf("expense %s: %w", expenseID, storage.ErrConcurrentEdit)
	}

	var groupID sql.NullString
	if err := tx.QueryRowContext(ctx, "SELECT group_id FROM expenses WHERE id = ?", expenseID).Scan(&groupID); err != nil {
		return "", fmt.Errorf("failed to read expense group: %w", err)
	}
	return groupID.String, nil
}

// queryRower is implemented by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listGroupExpenses(ctx context.Context, q queryRower, groupID string) ([]*models.Expense, map[string][]models.Split, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, description, amount_cents, paid_by, group_id, split_type, category, deleted, version, created_at
		 FROM expenses WHERE group_id = ? ORDER BY created_at, id`,
		groupID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	splitsByExpense := make(map[string][]models.Split, len(expenses))
	splitRows, err := q.QueryContext(ctx,
		`SELECT s.expense_id, s.user_id, s.owed_cents, s.percentage
		 FROM splits s JOIN expenses e ON e.id = s.expense_id
		 WHERE e.group_id = ? ORDER BY s.rowid`,
		groupID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		split, err := scanSplit(splitRows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splitsByExpense[split.ExpenseID] = append(splitsByExpense[split.ExpenseID], split)
	}
	if err := splitRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	return expenses, splitsByExpense, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var amountCents int64
	var groupID sql.NullString
	var splitType string
	if err := row.Scan(&expense.ID, &expense.Description, &amountCents, &expense.PaidBy,
		&groupID, &splitType, &expense.Category, &expense.Deleted, &expense.Version, &expense.CreatedAt); err != nil {
		return nil, err
	}
	expense.Amount = money.FromCents(amountCents)
	expense.GroupID = groupID.String
	expense.SplitType = models.SplitType(splitType)
	return expense, nil
}

func scanSplit(row rowScanner) (models.Split, error) {
	var split models.Split
	var owedCents int64
	var percentage sql.NullString
	if err := row.Scan(&split.ExpenseID, &split.UserID, &owedCents, &percentage); err != nil {
		return models.Split{}, err
	}
	split.OwedAmount = money.FromCents(owedCents)
	if percentage.Valid {
		p, err := decimal.NewFromString(percentage.String)
		if err != nil {
			return models.Split{}, fmt.Errorf("bad stored percentage %q: %w", percentage.String, err)
		}
		split.Percentage = p
	}
	return split, nil
}

func (s *SQLiteStore) expenseSplits(ctx context.Context, expenseID string) ([]models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT expense_id, user_id, owed_cents, percentage FROM splits WHERE expense_id = ? ORDER BY rowid",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

func insertSplits(ctx context.Context, tx *sql.Tx, expenseID string, splits []models.Split) error {
	for _, split := range splits {
		var percentage interface{}
		if !split.Percentage.IsZero() {
			percentage = split.Percentage.String()
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO splits (expense_id, user_id, owed_cents, percentage) VALUES (?, ?, ?, ?)",
			expenseID, split.UserID, split.OwedAmount.Cents(), percentage,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}
