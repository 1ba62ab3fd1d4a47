package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liauzhanyi/splitwiser/internal/calculator"
	"github.com/liauzhanyi/splitwiser/internal/events"
	"github.com/liauzhanyi/splitwiser/internal/metrics"
	"github.com/liauzhanyi/splitwiser/internal/models"
	"github.com/liauzhanyi/splitwiser/internal/money"
	"github.com/liauzhanyi/splitwiser/internal/storage"
)

// GroupService handles groups, membership, and balance queries.
type GroupService struct {
	store storage.Store
	sink  events.Sink
}

// NewGroupService creates a GroupService with the given storage backend and
// event sink.
func NewGroupService(store storage.Store, sink events.Sink) *GroupService {
	return &GroupService{store: store, sink: sink}
}

// CreateGroup creates a group and enrolls the creator as its first active
// member.
func (s *GroupService) CreateGroup(ctx context.Context, name, description, createdBy string) (*models.Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	if _, err := s.store.GetUser(ctx, createdBy); err != nil {
		return nil, fmt.Errorf("creator: %w", err)
	}

	group := &models.Group{
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	metrics.OperationsAccepted.WithLabelValues("create_group").Inc()
	s.sink.Emit(ctx, events.Event{Type: events.TypeGroupCreated, GroupID: group.ID, UserID: createdBy})
	slog.Info("group created", "group_id", group.ID, "name", group.Name)
	return group, nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// EnsureMembership activates or inserts the (group, user) membership.
// Idempotent: re-adding an inactive membership reactivates it, re-adding an
// active one is a no-op.
func (s *GroupService) EnsureMembership(ctx context.Context, groupID, userID string) error {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}

	changed, err := s.store.EnsureMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("ensure member: %w", err)
	}
	if changed {
		metrics.OperationsAccepted.WithLabelValues("ensure_membership").Inc()
		s.sink.Emit(ctx, events.Event{Type: events.TypeMemberAdded, GroupID: groupID, UserID: userID})
		slog.Info("member added", "group_id", groupID, "user_id", userID)
	}
	return nil
}

// GetBalance returns the net balance for one (user, group) pair. Positive
// means others owe the user net; negative means the user owes net.
func (s *GroupService) GetBalance(ctx context.Context, userID, groupID string) (money.Money, error) {
	return s.store.Balance(ctx, userID, groupID)
}

// GetGroupBalances returns every non-zero balance in the group. The values
// always sum to zero: expenses and settlements only move money between users.
func (s *GroupService) GetGroupBalances(ctx context.Context, groupID string) (map[string]money.Money, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.GroupBalances(ctx, groupID)
}

// Recompute re-derives the group's balances from the full non-deleted
// expense and settlement history and replaces the stored balances. The
// result must equal the incrementally maintained values; it exists for
// repair and audit.
func (s *GroupService) Recompute(ctx context.Context, groupID string) (map[string]money.Money, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	timer := prometheus.NewTimer(metrics.RecomputeDuration)
	defer timer.ObserveDuration()

	balances, err := s.store.RecomputeGroup(ctx, groupID, calculator.Recompute)
	if err != nil {
		return nil, fmt.Errorf("recompute group %s: %w", groupID, err)
	}
	slog.Info("group balances recomputed", "group_id", groupID, "users", len(balances))
	return balances, nil
}

// SuggestSettlements returns a small set of payments that would settle the
// group, matching the largest debtors with the largest creditors.
func (s *GroupService) SuggestSettlements(ctx context.Context, groupID string) ([]calculator.DebtEdge, error) {
	balances, err := s.GetGroupBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.SuggestSettlements(balances), nil
}

// CreateUser registers a user so expenses and settlements can reference it.
func (s *GroupService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	if name == "" {
		return nil, fmt.Errorf("user name is required")
	}
	user := &models.User{Name: name, Email: email}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user created", "user_id", user.ID, "name", user.Name)
	return user, nil
}
