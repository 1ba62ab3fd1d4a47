package calculator

import (
	"sort"

	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
)

// Deltas maps user IDs to signed balance changes. Positive means others owe
// the user net; negative means the user owes net.
type Deltas map[string]money.Money

// add accumulates an amount into the delta map, dropping entries that cancel
// to zero.
func (d Deltas) add(userID string, amount money.Money) {
	next := d[userID].Add(amount)
	if next.IsZero() {
		delete(d, userID)
		return
	}
	d[userID] = next
}

// Merge folds other into d and returns d.
func (d Deltas) Merge(other Deltas) Deltas {
	for userID, amount := range other {
		d.add(userID, amount)
	}
	return d
}

// ExpenseDeltas returns the balance changes from applying one accepted
// expense: the payer is credited the full amount less their own share, every
// other participant is debited their share. Must only be called with a split
// set finalized by FinalizeSplits.
func ExpenseDeltas(expense *models.Expense, splits []models.Split) Deltas {
	deltas := make(Deltas, len(splits)+1)
	deltas.add(expense.PaidBy, expense.Amount)
	for _, s := range splits {
		deltas.add(s.UserID, s.OwedAmount.Neg())
	}
	return deltas
}

// ReverseExpenseDeltas is the exact inverse of ExpenseDeltas, used when an
// expense is soft-deleted or its splits are replaced. An edit is modeled as
// reverse-then-apply, never as an incremental patch.
func ReverseExpenseDeltas(expense *models.Expense, splits []models.Split) Deltas {
	deltas := ExpenseDeltas(expense, splits)
	for userID, amount := range deltas {
		deltas[userID] = amount.Neg()
	}
	return deltas
}

// SettlementDeltas returns the balance changes from one accepted settlement:
// the payer reduces what they owe, the receiver reduces what they are owed.
func SettlementDeltas(settlement *models.Settlement) Deltas {
	deltas := make(Deltas, 2)
	deltas.add(settlement.FromUserID, settlement.Amount)
	deltas.add(settlement.ToUserID, settlement.Amount.Neg())
	return deltas
}

// Recompute re-derives all balances for a group from the complete non-deleted
// expense history and settlement list. The result must equal the
// incrementally maintained balances; it exists for repair and audit.
func Recompute(expenses []*models.Expense, splitsByExpense map[string][]models.Split, settlements []*models.Settlement) Deltas {
	balances := make(Deltas)
	for _, e := range expenses {
		if e.Deleted {
			continue
		}
		balances.Merge(ExpenseDeltas(e, splitsByExpense[e.ID]))
	}
	for _, s := range settlements {
		balances.Merge(SettlementDeltas(s))
	}
	return balances
}

// DebtEdge represents a suggested payment from one user to another.
type DebtEdge struct {
	FromUserID string
	ToUserID   string
	Amount     money.Money
}

// SuggestSettlements matches debtors with creditors greedily, largest
// outstanding amounts first, producing a small list of payments that would
// settle the group. Ties break on user ID so the output is deterministic.
func SuggestSettlements(balances map[string]money.Money) []DebtEdge {
	type entry struct {
		userID string
		amount money.Money
	}

	var debtors, creditors []entry
	for userID, balance := range balances {
		switch {
		case balance.IsNegative():
			debtors = append(debtors, entry{userID, balance.Neg()})
		case balance.IsPositive():
			creditors = append(creditors, entry{userID, balance})
		}
	}

	byAmountDesc := func(entries []entry) func(i, j int) bool {
		return func(i, j int) bool {
			if c := entries[i].amount.Cmp(entries[j].amount); c != 0 {
				return c > 0
			}
			return entries[i].userID < entries[j].userID
		}
	}
	sort.Slice(debtors, byAmountDesc(debtors))
	sort.Slice(creditors, byAmountDesc(creditors))

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].amount
		if creditors[j].amount.LessThan(amount) {
			amount = creditors[j].amount
		}

		if amount.IsPositive() {
			edges = append(edges, DebtEdge{
				FromUserID: debtors[i].userID,
				ToUserID:   creditors[j].userID,
				Amount:     amount,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)
		if debtors[i].amount.IsZero() {
			i++
		}
		if creditors[j].amount.IsZero() {
			j++
		}
	}

	return edges
}
