package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/liauzhanyi/splitwiser/internal/calculator"
	"github.com/liauzhanyi/splitwiser/internal/events"
	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
	"github.com/liauzhanyi/splitwiser/internal/storage"
	"github.com/liauzhanyi/splitwiser/internal/storage/sqlite"
)

type fixture struct {
	store    storage.Store
	expenses *ExpenseService
	groups   *GroupService
	alice    *models.User
	bob      *models.User
	carol    *models.User
	group    *models.Group
}

// newFixture builds both services over a fresh sqlite store with three users
// enrolled in one group.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sink := events.NopSink{}
	f := &fixture{
		store:    store,
		expenses: NewExpenseService(store, sink),
		groups:   NewGroupService(store, sink),
	}

	f.alice, err = f.groups.CreateUser(ctx, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	f.bob, err = f.groups.CreateUser(ctx, "Bob", "bob@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	f.carol, err = f.groups.CreateUser(ctx, "Carol", "carol@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	f.group, err = f.groups.CreateGroup(ctx, "Apartment", "shared flat costs", f.alice.ID)
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	for _, u := range []*models.User{f.bob, f.carol} {
		if err := f.groups.EnsureMembership(ctx, f.group.ID, u.ID); err != nil {
			t.Fatalf("EnsureMembership failed: %v", err)
		}
	}
	return f
}

func (f *fixture) balance(t *testing.T, userID string) money.Money {
	t.Helper()
	balance, err := f.groups.GetBalance(context.Background(), userID, f.group.ID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	return balance
}

func (f *fixture) assertBalances(t *testing.T, want map[string]string) {
	t.Helper()
	for userID, amount := range want {
		if got := f.balance(t, userID); got.String() != amount {
			t.Errorf("balance[%s] = %s, want %s", userID, got, amount)
		}
	}
}

func TestCreateExpenseEqualSplit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expense, splits, err := f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Groceries",
		Amount:      money.MustParse("100.00"),
		PaidBy:      f.alice.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitEqual,
		Splits: []models.Split{
			{UserID: f.alice.ID},
			{UserID: f.bob.ID},
			{UserID: f.carol.ID},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if expense.ID == "" {
		t.Error("expected expense ID to be assigned")
	}

	// 100.00 over three people: the first participant absorbs the extra cent.
	want := []string{"33.34", "33.33", "33.33"}
	for i, split := range splits {
		if split.OwedAmount.String() != want[i] {
			t.Errorf("split[%d] = %s, want %s", i, split.OwedAmount, want[i])
		}
		if split.ExpenseID != expense.ID {
			t.Errorf("split[%d] not linked to expense", i)
		}
	}

	f.assertBalances(t, map[string]string{
		f.alice.ID: "66.66",
		f.bob.ID:   "-33.33",
		f.carol.ID: "-33.33",
	})
}

func TestCreateExpenseRejectsNonMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outsider, err := f.groups.CreateUser(ctx, "Dave", "dave@example.com")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, _, err = f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Bar tab",
		Amount:      money.MustParse("40.00"),
		PaidBy:      f.alice.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitEqual,
		Splits: []models.Split{
			{UserID: f.alice.ID},
			{UserID: outsider.ID},
		},
	})
	if !calculator.IsRejection(err) {
		t.Fatalf("expected a rejection, got %v", err)
	}
	if reason := calculator.ReasonOf(err); reason != calculator.ReasonNonMemberParticipant {
		t.Errorf("reason = %s, want %s", reason, calculator.ReasonNonMemberParticipant)
	}

	// Nothing was applied.
	f.assertBalances(t, map[string]string{
		f.alice.ID:  "0.00",
		outsider.ID: "0.00",
	})
}

func TestCreateExpenseRejectsExactMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Utilities",
		Amount:      money.MustParse("50.00"),
		PaidBy:      f.alice.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitExact,
		Splits: []models.Split{
			{UserID: f.alice.ID, OwedAmount: money.MustParse("20.00")},
			{UserID: f.bob.ID, OwedAmount: money.MustParse("20.00")},
		},
	})
	if reason := calculator.ReasonOf(err); reason != calculator.ReasonAmountMismatch {
		t.Fatalf("reason = %s, want %s (err %v)", reason, calculator.ReasonAmountMismatch, err)
	}
}

func TestEditExpenseSplitsReversesThenApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expense, _, err := f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Internet",
		Amount:      money.MustParse("60.00"),
		PaidBy:      f.alice.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitExact,
		Splits: []models.Split{
			{UserID: f.alice.ID, OwedAmount: money.MustParse("30.00")},
			{UserID: f.bob.ID, OwedAmount: money.MustParse("30.00")},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	// Shift the expense from alice+bob to bob+carol entirely.
	_, err = f.expenses.EditExpenseSplits(ctx, expense.ID, []models.Split{
		{UserID: f.bob.ID, OwedAmount: money.MustParse("40.00")},
		{UserID: f.carol.ID, OwedAmount: money.MustParse("20.00")},
	})
	if err != nil {
		t.Fatalf("EditExpenseSplits failed: %v", err)
	}

	f.assertBalances(t, map[string]string{
		f.alice.ID: "60.00",
		f.bob.ID:   "-40.00",
		f.carol.ID: "-20.00",
	})
}

func TestEditDeletedExpenseFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expense, _, err := f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Pizza",
		Amount:      money.MustParse("24.00"),
		PaidBy:      f.bob.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitEqual,
		Splits: []models.Split{
			{UserID: f.alice.ID},
			{UserID: f.bob.ID},
			{UserID: f.carol.ID},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	if err := f.expenses.DeleteExpense(ctx, expense.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	// Deletion restored everyone to zero.
	f.assertBalances(t, map[string]string{
		f.alice.ID: "0.00",
		f.bob.ID:   "0.00",
		f.carol.ID: "0.00",
	})

	_, err = f.expenses.EditExpenseSplits(ctx, expense.ID, []models.Split{
		{UserID: f.bob.ID},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("editing a deleted expense: err = %v, want ErrNotFound", err)
	}
	if err := f.expenses.DeleteExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}
}

func TestSettlementZeroesDebt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Concert tickets",
		Amount:      money.MustParse("50.00"),
		PaidBy:      f.alice.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitEqual,
		Splits: []models.Split{
			{UserID: f.alice.ID},
			{UserID: f.bob.ID},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	f.assertBalances(t, map[string]string{
		f.alice.ID: "25.00",
		f.bob.ID:   "-25.00",
	})

	settlement, err := f.expenses.CreateSettlement(ctx, CreateSettlementInput{
		FromUserID: f.bob.ID,
		ToUserID:   f.alice.ID,
		Amount:     money.MustParse("25.00"),
		GroupID:    f.group.ID,
	})
	if err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	f.assertBalances(t, map[string]string{
		f.alice.ID: "0.00",
		f.bob.ID:   "0.00",
	})

	if err := f.expenses.ConfirmSettlement(ctx, settlement.ID); err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}
	// Confirmation only flips the flag.
	f.assertBalances(t, map[string]string{
		f.alice.ID: "0.00",
		f.bob.ID:   "0.00",
	})
}

type recordingSink struct {
	events []events.Event
}

func (s *recordingSink) Emit(_ context.Context, e events.Event) {
	s.events = append(s.events, e)
}

func TestConfirmSettlementIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sink := &recordingSink{}
	expenses := NewExpenseService(f.store, sink)

	settlement, err := expenses.CreateSettlement(ctx, CreateSettlementInput{
		FromUserID: f.bob.ID,
		ToUserID:   f.alice.ID,
		Amount:     money.MustParse("12.00"),
		GroupID:    f.group.ID,
	})
	if err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	if err := expenses.ConfirmSettlement(ctx, settlement.ID); err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}
	// Re-confirming succeeds but must not emit a second event.
	if err := expenses.ConfirmSettlement(ctx, settlement.ID); err != nil {
		t.Fatalf("repeated ConfirmSettlement failed: %v", err)
	}

	confirmed := 0
	for _, e := range sink.events {
		if e.Type == events.TypeSettlementConfirmed {
			confirmed++
		}
	}
	if confirmed != 1 {
		t.Errorf("settlement_confirmed emitted %d times, want 1", confirmed)
	}

	got, err := f.store.GetSettlement(ctx, settlement.ID)
	if err != nil {
		t.Fatalf("GetSettlement failed: %v", err)
	}
	if !got.Confirmed {
		t.Error("settlement not confirmed")
	}
}

func TestCreateSettlementRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		input  CreateSettlementInput
		reason calculator.RejectReason
	}{
		{
			name: "self settlement",
			input: CreateSettlementInput{
				FromUserID: f.alice.ID,
				ToUserID:   f.alice.ID,
				Amount:     money.MustParse("10.00"),
			},
			reason: calculator.ReasonSelfSettlement,
		},
		{
			name: "zero amount",
			input: CreateSettlementInput{
				FromUserID: f.alice.ID,
				ToUserID:   f.bob.ID,
				Amount:     money.Zero,
			},
			reason: calculator.ReasonNonPositiveAmount,
		},
		{
			name: "negative amount",
			input: CreateSettlementInput{
				FromUserID: f.alice.ID,
				ToUserID:   f.bob.ID,
				Amount:     money.MustParse("5.00").Neg(),
			},
			reason: calculator.ReasonNonPositiveAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.CreateSettlement(ctx, tt.input)
			if reason := calculator.ReasonOf(err); reason != tt.reason {
				t.Errorf("reason = %s, want %s (err %v)", reason, tt.reason, err)
			}
		})
	}

	t.Run("unknown payer", func(t *testing.T) {
		_, err := f.expenses.CreateSettlement(ctx, CreateSettlementInput{
			FromUserID: "nonexistent",
			ToUserID:   f.bob.ID,
			Amount:     money.MustParse("10.00"),
		})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestConservationAcrossMixedHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expense1, _, err := f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Rent",
		Amount:      money.MustParse("1000.01"),
		PaidBy:      f.alice.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitEqual,
		Splits: []models.Split{
			{UserID: f.alice.ID},
			{UserID: f.bob.ID},
			{UserID: f.carol.ID},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	_, _, err = f.expenses.CreateExpense(ctx, CreateExpenseInput{
		Description: "Cleaning",
		Amount:      money.MustParse("50.01"),
		PaidBy:      f.bob.ID,
		GroupID:     f.group.ID,
		SplitType:   models.SplitPercentage,
		Splits: []models.Split{
			{UserID: f.bob.ID, Percentage: mustDecimal(t, "60")},
			{UserID: f.carol.ID, Percentage: mustDecimal(t, "40")},
		},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	if _, err := f.expenses.CreateSettlement(ctx, CreateSettlementInput{
		FromUserID: f.carol.ID,
		ToUserID:   f.alice.ID,
		Amount:     money.MustParse("100.00"),
		GroupID:    f.group.ID,
	}); err != nil {
		t.Fatalf("CreateSettlement failed: %v", err)
	}

	if _, err := f.expenses.EditExpenseSplits(ctx, expense1.ID, []models.Split{
		{UserID: f.bob.ID},
		{UserID: f.carol.ID},
	}); err != nil {
		t.Fatalf("EditExpenseSplits failed: %v", err)
	}

	balances, err := f.groups.GetGroupBalances(ctx, f.group.ID)
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	sum := money.Zero
	for _, balance := range balances {
		sum = sum.Add(balance)
	}
	if !sum.IsZero() {
		t.Errorf("balances sum to %s after mixed history, want 0.00", sum)
	}
}
