// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/liauzhanyi/splitwiser/internal/calculator"
	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
)

// ErrNotFound indicates a referenced user, group, expense, or settlement
// does not exist. Not retried.
var ErrNotFound = errors.New("not found")

// ErrConcurrentEdit indicates two transactions raced on the same expense.
// Recoverable: the caller re-reads and re-validates against fresh state.
var ErrConcurrentEdit = errors.New("concurrent edit")

// RecomputeFunc derives a group's balances from its full history. The store
// invokes it inside a transaction so the history snapshot is consistent.
type RecomputeFunc func(expenses []*models.Expense, splitsByExpense map[string][]models.Split, settlements []*models.Settlement) calculator.Deltas

// Store defines persistence for the ledger engine.
//
// Every mutating method that carries balance deltas applies rows and deltas
// in a single transaction: no other operation ever observes validated splits
// without updated balances or vice versa.
type Store interface {
	// CreateUser persists a new user, assigning ID and CreatedAt if unset.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUser retrieves a user by ID. Returns ErrNotFound if missing.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// CreateGroup persists a new group and enrolls its creator as an active
	// member in the same transaction.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by ID. Returns ErrNotFound if missing.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// EnsureMember inserts or reactivates the (group, user) membership.
	// Idempotent. Reports whether the call changed anything.
	EnsureMember(ctx context.Context, groupID, userID string) (bool, error)

	// GroupMembers returns the group's active member set.
	GroupMembers(ctx context.Context, groupID string) (map[string]bool, error)

	// CreateExpense persists an expense with its finalized splits and applies
	// the balance deltas atomically.
	CreateExpense(ctx context.Context, expense *models.Expense, splits []models.Split, deltas calculator.Deltas) error

	// GetExpense retrieves an expense and its current splits.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.Split, error)

	// ReplaceExpenseSplits swaps an expense's split set wholesale and applies
	// the combined reverse-then-apply deltas. expectedVersion guards against
	// concurrent edits: on a stale version it returns ErrConcurrentEdit and
	// changes nothing.
	ReplaceExpenseSplits(ctx context.Context, expenseID string, expectedVersion int64, splits []models.Split, deltas calculator.Deltas) error

	// SoftDeleteExpense marks an expense deleted and applies the reversal
	// deltas. Same version guard as ReplaceExpenseSplits.
	SoftDeleteExpense(ctx context.Context, expenseID string, expectedVersion int64, deltas calculator.Deltas) error

	// ListGroupExpenses returns the group's full expense history, including
	// soft-deleted expenses, with splits keyed by expense ID.
	ListGroupExpenses(ctx context.Context, groupID string) ([]*models.Expense, map[string][]models.Split, error)

	// CreateSettlement persists a settlement and applies its balance deltas
	// atomically.
	CreateSettlement(ctx context.Context, settlement *models.Settlement, deltas calculator.Deltas) error

	// GetSettlement retrieves a settlement by ID.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// ConfirmSettlement flips the confirmation flag. It never touches
	// balances.
	ConfirmSettlement(ctx context.Context, settlementID string) error

	// ListGroupSettlements returns the group's settlements, newest first.
	ListGroupSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// Balance returns the net balance for one (user, group) pair; zero when
	// the user has no history in the group.
	Balance(ctx context.Context, userID, groupID string) (money.Money, error)

	// GroupBalances returns every non-zero balance in the group.
	GroupBalances(ctx context.Context, groupID string) (map[string]money.Money, error)

	// RecomputeGroup re-derives the group's balances via derive under a
	// consistent snapshot and replaces the stored balances with the result,
	// all in one transaction. Returns the recomputed balances.
	RecomputeGroup(ctx context.Context, groupID string, derive RecomputeFunc) (map[string]money.Money, error)

	// Close releases any resources held by the store.
	Close() error
}
