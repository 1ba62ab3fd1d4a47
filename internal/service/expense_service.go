// Package service exposes the ledger engine's operations: expense creation
// and editing, settlements, membership, and balance queries. Each mutation
// validates fully before the store commits anything, so callers see either a
// typed rejection or a completed state change, never partial application.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liauzhanyi/splitwiser/internal/calculator"
	"github.com/liauzhanyi/splitwiser/internal/events"
	"github.com/liauzhanyi/splitwiser/internal/metrics"
	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
	"github.com/liauzhanyi/splitwiser/internal/storage"
)

// ExpenseService handles expense and settlement mutations.
type ExpenseService struct {
	store storage.Store
	sink  events.Sink
}

// NewExpenseService creates an ExpenseService with the given storage backend
// and event sink.
func NewExpenseService(store storage.Store, sink events.Sink) *ExpenseService {
	return &ExpenseService{store: store, sink: sink}
}

// CreateExpenseInput is the proposal for a new expense with its full split
// set.
type CreateExpenseInput struct {
	Description string
	Amount      money.Money
	PaidBy      string
	GroupID     string // empty for an ungrouped expense
	SplitType   models.SplitType
	Category    string
	Splits      []models.Split
}

// CreateExpense validates the proposed expense and splits, persists them and
// updates balances atomically, and emits an expense_created event.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (*models.Expense, []models.Split, error) {
	if in.Description == "" {
		return nil, nil, fmt.Errorf("description is required")
	}
	if !in.Amount.IsPositive() {
		s.reject("create_expense", calculator.ReasonNonPositiveAmount)
		return nil, nil, calculator.NewNonPositiveAmount(in.Amount)
	}
	if _, err := s.store.GetUser(ctx, in.PaidBy); err != nil {
		return nil, nil, fmt.Errorf("payer: %w", err)
	}

	members, err := s.groupMembers(ctx, in.GroupID)
	if err != nil {
		return nil, nil, err
	}

	finalized, err := calculator.FinalizeSplits(in.Amount, in.SplitType, in.Splits, members)
	if err != nil {
		s.reject("create_expense", calculator.ReasonOf(err))
		slog.Warn("expense rejected", "group_id", in.GroupID, "error", err)
		return nil, nil, err
	}

	expense := &models.Expense{
		Description: in.Description,
		Amount:      in.Amount,
		PaidBy:      in.PaidBy,
		GroupID:     in.GroupID,
		SplitType:   in.SplitType,
		Category:    in.Category,
	}
	deltas := calculator.ExpenseDeltas(expense, finalized)
	if err := s.store.CreateExpense(ctx, expense, finalized, deltas); err != nil {
		return nil, nil, fmt.Errorf("create expense: %w", err)
	}
	for i := range finalized {
		finalized[i].ExpenseID = expense.ID
	}

	metrics.OperationsAccepted.WithLabelValues("create_expense").Inc()
	s.sink.Emit(ctx, events.Event{
		Type:      events.TypeExpenseCreated,
		GroupID:   expense.GroupID,
		UserID:    expense.PaidBy,
		ExpenseID: expense.ID,
		Amount:    expense.Amount,
	})
	slog.Info("expense created",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"amount", expense.Amount.String(),
		"split_type", string(expense.SplitType),
		"participants", len(finalized),
	)
	return expense, finalized, nil
}

// EditExpenseSplits replaces an expense's split set wholesale. The new set is
// validated against the current expense amount and split type; balances are
// updated as reverse-old-then-apply-new in one transaction. A concurrent edit
// of the same expense surfaces as storage.ErrConcurrentEdit for retry.
func (s *ExpenseService) EditExpenseSplits(ctx context.Context, expenseID string, splits []models.Split) ([]models.Split, error) {
	expense, oldSplits, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.Deleted {
		return nil, fmt.Errorf("expense %s is deleted: %w", expenseID, storage.ErrNotFound)
	}

	members, err := s.groupMembers(ctx, expense.GroupID)
	if err != nil {
		return nil, err
	}

	finalized, err := calculator.FinalizeSplits(expense.Amount, expense.SplitType, splits, members)
	if err != nil {
		s.reject("edit_expense", calculator.ReasonOf(err))
		slog.Warn("expense edit rejected", "expense_id", expenseID, "error", err)
		return nil, err
	}
	for i := range finalized {
		finalized[i].ExpenseID = expense.ID
	}

	deltas := calculator.ReverseExpenseDeltas(expense, oldSplits).
		Merge(calculator.ExpenseDeltas(expense, finalized))
	if err := s.store.ReplaceExpenseSplits(ctx, expenseID, expense.Version, finalized, deltas); err != nil {
		return nil, err
	}

	metrics.OperationsAccepted.WithLabelValues("edit_expense").Inc()
	s.sink.Emit(ctx, events.Event{
		Type:      events.TypeExpenseEdited,
		GroupID:   expense.GroupID,
		ExpenseID: expense.ID,
		Amount:    expense.Amount,
	})
	slog.Info("expense splits replaced", "expense_id", expense.ID, "participants", len(finalized))
	return finalized, nil
}

// DeleteExpense soft-deletes an expense: its balance contribution is
// reversed, the row stays in history.
func (s *ExpenseService) DeleteExpense(ctx context.Context, expenseID string) error {
	expense, splits, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	if expense.Deleted {
		return fmt.Errorf("expense %s is deleted: %w", expenseID, storage.ErrNotFound)
	}

	deltas := calculator.ReverseExpenseDeltas(expense, splits)
	if err := s.store.SoftDeleteExpense(ctx, expenseID, expense.Version, deltas); err != nil {
		return err
	}

	metrics.OperationsAccepted.WithLabelValues("delete_expense").Inc()
	s.sink.Emit(ctx, events.Event{
		Type:      events.TypeExpenseDeleted,
		GroupID:   expense.GroupID,
		ExpenseID: expense.ID,
		Amount:    expense.Amount,
	})
	slog.Info("expense deleted", "expense_id", expense.ID)
	return nil
}

// CreateSettlementInput is the proposal for a settlement payment.
type CreateSettlementInput struct {
	FromUserID string
	ToUserID   string
	Amount     money.Money
	GroupID    string
	Note       string
}

// CreateSettlement validates and applies a settlement as a balance
// adjustment between two users. Balances move at creation time; confirmation
// later is a status flag only.
func (s *ExpenseService) CreateSettlement(ctx context.Context, in CreateSettlementInput) (*models.Settlement, error) {
	if in.FromUserID == in.ToUserID {
		s.reject("create_settlement", calculator.ReasonSelfSettlement)
		return nil, calculator.NewSelfSettlement(in.FromUserID)
	}
	if !in.Amount.IsPositive() {
		s.reject("create_settlement", calculator.ReasonNonPositiveAmount)
		return nil, calculator.NewNonPositiveAmount(in.Amount)
	}
	if _, err := s.store.GetUser(ctx, in.FromUserID); err != nil {
		return nil, fmt.Errorf("from user: %w", err)
	}
	if _, err := s.store.GetUser(ctx, in.ToUserID); err != nil {
		return nil, fmt.Errorf("to user: %w", err)
	}
	if in.GroupID != "" {
		if _, err := s.store.GetGroup(ctx, in.GroupID); err != nil {
			return nil, err
		}
	}

	settlement := &models.Settlement{
		GroupID:    in.GroupID,
		FromUserID: in.FromUserID,
		ToUserID:   in.ToUserID,
		Amount:     in.Amount,
		Note:       in.Note,
	}
	deltas := calculator.SettlementDeltas(settlement)
	if err := s.store.CreateSettlement(ctx, settlement, deltas); err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}

	metrics.OperationsAccepted.WithLabelValues("create_settlement").Inc()
	s.sink.Emit(ctx, events.Event{
		Type:         events.TypeSettlementCreated,
		GroupID:      settlement.GroupID,
		UserID:       settlement.FromUserID,
		SettlementID: settlement.ID,
		Amount:       settlement.Amount,
	})
	slog.Info("settlement created",
		"settlement_id", settlement.ID,
		"from", settlement.FromUserID,
		"to", settlement.ToUserID,
		"amount", settlement.Amount.String(),
	)
	return settlement, nil
}

// ConfirmSettlement flips the settlement's confirmation flag. Balances were
// adjusted at creation and are not re-touched; a disputed settlement is
// corrected with an explicit reversing settlement.
func (s *ExpenseService) ConfirmSettlement(ctx context.Context, settlementID string) error {
	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return err
	}
	if settlement.Confirmed {
		// Re-confirming is a no-op; the event fired on the first confirm.
		return nil
	}
	if err := s.store.ConfirmSettlement(ctx, settlementID); err != nil {
		return err
	}

	metrics.OperationsAccepted.WithLabelValues("confirm_settlement").Inc()
	s.sink.Emit(ctx, events.Event{
		Type:         events.TypeSettlementConfirmed,
		GroupID:      settlement.GroupID,
		SettlementID: settlement.ID,
	})
	slog.Info("settlement confirmed", "settlement_id", settlementID)
	return nil
}

// groupMembers loads the active member set for membership validation, or nil
// for ungrouped expenses.
func (s *ExpenseService) groupMembers(ctx context.Context, groupID string) (map[string]bool, error) {
	if groupID == "" {
		return nil, nil
	}
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.GroupMembers(ctx, groupID)
}

func (s *ExpenseService) reject(op string, reason calculator.RejectReason) {
	if reason == "" {
		reason = "OTHER"
	}
	metrics.OperationsRejected.WithLabelValues(op, string(reason)).Inc()
}
