// Package calculator implements split validation and balance math for the
// expense ledger. Everything here is pure: validation never touches stored
// balances, and balance updates are expressed as deltas for the store to
// apply atomically.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
)

var hundred = decimal.New(100, 0)

// FinalizeSplits validates a candidate split set against an expense amount and
// split type and returns the finalized per-user amounts.
//
// The candidate set always replaces any prior set wholesale; validation runs
// against the full set, never an incremental delta. members is the group's
// active member set, or nil for an ungrouped expense (no membership check).
//
// Finalized splits sum exactly to amount, to the cent:
//   - equal: each participant owes amount/N floored to the cent; the first
//     K participants in the supplied order absorb one extra cent each, where
//     K = amount_cents mod N.
//   - exact: amounts are used as given when they sum exactly; a residue
//     within the 0.01 tolerance is folded into the first split that can
//     absorb it, larger residues are rejected.
//   - percentage: percentages must sum to 100.00 within 0.01; each share is
//     the participant's fraction of the actual percentage sum, floored to the
//     cent, leftover cents distributed like the equal policy.
func FinalizeSplits(amount money.Money, splitType models.SplitType, splits []models.Split, members map[string]bool) ([]models.Split, error) {
	if !amount.IsPositive() {
		return nil, NewNonPositiveAmount(amount)
	}
	if len(splits) == 0 {
		return nil, newEmptySplitSet()
	}

	seen := make(map[string]bool, len(splits))
	for _, s := range splits {
		if seen[s.UserID] {
			return nil, newDuplicateParticipant(s.UserID)
		}
		seen[s.UserID] = true

		if members != nil && !members[s.UserID] {
			return nil, newNonMemberParticipant(s.UserID)
		}
		if s.OwedAmount.IsNegative() {
			return nil, newNegativeSplit(s.UserID, "owed amount is negative")
		}
		if s.Percentage.IsNegative() || s.Percentage.GreaterThan(hundred) {
			return nil, newNegativeSplit(s.UserID, "percentage outside [0,100]")
		}
	}

	out := make([]models.Split, len(splits))
	copy(out, splits)

	switch splitType {
	case models.SplitEqual:
		finalizeEqual(amount, out)
	case models.SplitExact:
		if err := finalizeExact(amount, out); err != nil {
			return nil, err
		}
	case models.SplitPercentage:
		if err := finalizePercentage(amount, out); err != nil {
			return nil, err
		}
	default:
		return nil, newUnknownSplitType(splitType)
	}

	return out, nil
}

// finalizeEqual derives amount/N per participant, first K absorbing the
// leftover cents so the sum is exact.
func finalizeEqual(amount money.Money, splits []models.Split) {
	n := int64(len(splits))
	cents := amount.Cents()
	base := cents / n
	extra := cents % n

	for i := range splits {
		owed := base
		if int64(i) < extra {
			owed++
		}
		splits[i].OwedAmount = money.FromCents(owed)
		splits[i].Percentage = decimal.Zero
	}
}

// finalizeExact accepts supplied amounts within the 0.01 tolerance and
// normalizes any sub-cent residue so the finalized set sums exactly.
func finalizeExact(amount money.Money, splits []models.Split) error {
	sum := money.Zero
	for _, s := range splits {
		sum = sum.Add(s.OwedAmount)
	}
	if !sum.WithinCent(amount) {
		return newAmountMismatch(amount, sum)
	}

	diff := amount.Sub(sum)
	if diff.IsZero() {
		return nil
	}
	for i := range splits {
		adjusted := splits[i].OwedAmount.Add(diff)
		if !adjusted.IsNegative() {
			splits[i].OwedAmount = adjusted
			return nil
		}
	}
	// Every split is smaller than the shortfall; cannot normalize.
	return newAmountMismatch(amount, sum)
}

// finalizePercentage checks percentages sum to 100 and derives amounts,
// flooring each share and distributing leftover cents in supplied order.
// Shares are taken against the actual percentage sum, so a tolerated sum of
// 99.99 or 100.01 still yields splits that sum exactly to the amount: the
// leftover after flooring is then always fewer cents than there are
// participants.
func finalizePercentage(amount money.Money, splits []models.Split) error {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Percentage)
	}
	if sum.Sub(hundred).Abs().GreaterThan(decimal.New(1, -2)) {
		return newPercentageMismatch(sum)
	}

	cents := decimal.New(amount.Cents(), 0)
	assigned := int64(0)
	for i := range splits {
		share := cents.Mul(splits[i].Percentage).Div(sum).Floor().IntPart()
		splits[i].OwedAmount = money.FromCents(share)
		assigned += share
	}

	// Leftover cents from flooring go to the first participants in order.
	residual := amount.Cents() - assigned
	for i := 0; residual > 0 && i < len(splits); i++ {
		splits[i].OwedAmount = splits[i].OwedAmount.Add(money.FromCents(1))
		residual--
	}
	return nil
}
