package models

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/liauzhanyi/splitwiser/internal/money"
)

// SplitType is the policy by which an expense is divided among participants.
type SplitType string

const (
	// SplitEqual divides the amount evenly; leftover cents go to the first
	// participants in the supplied order.
	SplitEqual SplitType = "equal"

	// SplitExact uses caller-supplied per-user amounts as given.
	SplitExact SplitType = "exact"

	// SplitPercentage derives per-user amounts from percentages summing to 100.
	SplitPercentage SplitType = "percentage"
)

// ParseSplitType validates a split type string.
func ParseSplitType(s string) (SplitType, error) {
	switch SplitType(s) {
	case SplitEqual, SplitExact, SplitPercentage:
		return SplitType(s), nil
	}
	return "", fmt.Errorf("unknown split type: %q", s)
}

// Expense represents one payment by one user, divided among participants
// according to its split type.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is a human-readable label. Non-empty.
	Description string

	// Amount is the total paid. Strictly positive.
	Amount money.Money

	// PaidBy is the user ID of the payer.
	PaidBy string

	// GroupID is the group the expense belongs to, or empty for an
	// ungrouped expense between individuals.
	GroupID string

	// SplitType is the division policy for this expense.
	SplitType SplitType

	// Category is a free-form label ("Food", "Rent", ...). Defaults to General.
	Category string

	// Deleted marks the expense as logically removed. A deleted expense is
	// excluded from balance computation but kept in history.
	Deleted bool

	// Version increments on every split replacement or deletion. Used for
	// optimistic concurrency: an edit against a stale version is rejected.
	Version int64

	// CreatedAt is the Unix timestamp when the expense was created.
	CreatedAt int64
}

// Split is one user's share of an expense. Unique per (expense, user).
type Split struct {
	ExpenseID string
	UserID    string

	// OwedAmount is this user's share. Non-negative; the full set sums
	// exactly to the expense amount once finalized.
	OwedAmount money.Money

	// Percentage is this user's share in [0,100] for percentage expenses;
	// zero otherwise.
	Percentage decimal.Decimal
}

// DefaultCategory is assigned when an expense is created without one.
const DefaultCategory = "General"
