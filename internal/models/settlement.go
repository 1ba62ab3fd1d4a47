package models

import "github.com/liauzhanyi/splitwiser/internal/money"

// Settlement represents a payment between two users to clear debt.
//
// A settlement adjusts balances when it is created; confirmation is a status
// flag only. Settlements are never amount-edited after creation — correcting
// one means recording a reversing settlement.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to, or empty.
	GroupID string

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string

	// ToUserID is the user who received payment. Must differ from FromUserID.
	ToUserID string

	// Amount is the payment amount. Strictly positive.
	Amount money.Money

	// Note is an optional description for the settlement.
	Note string

	// Confirmed records that the receiving side acknowledged the payment.
	Confirmed bool

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64
}
