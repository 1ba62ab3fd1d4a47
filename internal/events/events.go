// Package events defines the activity-log boundary. The engine emits one
// event per accepted mutation; recording and presenting the log is the
// enclosing service's concern.
package events

import (
	"context"
	"log/slog"

	"github.com/liauzhanyi/splitwiser/internal/money"
)

// Type identifies an accepted mutation.
type Type string

const (
	TypeGroupCreated        Type = "group_created"
	TypeMemberAdded         Type = "member_added"
	TypeExpenseCreated      Type = "expense_created"
	TypeExpenseEdited       Type = "expense_edited"
	TypeExpenseDeleted      Type = "expense_deleted"
	TypeSettlementCreated   Type = "settlement_created"
	TypeSettlementConfirmed Type = "settlement_confirmed"
)

// Event describes one accepted mutation. Only the fields relevant to the
// mutation are set.
type Event struct {
	Type         Type
	GroupID      string
	UserID       string
	ExpenseID    string
	SettlementID string
	Amount       money.Money
}

// Sink receives events after the mutation's transaction has committed.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SlogSink logs each event with the default slog logger.
type SlogSink struct{}

// Emit implements Sink.
func (SlogSink) Emit(_ context.Context, event Event) {
	attrs := []any{"type", string(event.Type)}
	if event.GroupID != "" {
		attrs = append(attrs, "group_id", event.GroupID)
	}
	if event.UserID != "" {
		attrs = append(attrs, "user_id", event.UserID)
	}
	if event.ExpenseID != "" {
		attrs = append(attrs, "expense_id", event.ExpenseID)
	}
	if event.SettlementID != "" {
		attrs = append(attrs, "settlement_id", event.SettlementID)
	}
	if !event.Amount.IsZero() {
		attrs = append(attrs, "amount", event.Amount.String())
	}
	slog.Info("ledger event", attrs...)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) {}
