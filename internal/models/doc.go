// Package models defines the core domain models for the shared-expense ledger.
//
// The engine tracks who owes whom across groups as expenses are recorded and
// settlements are made:
//   - User, Group, Membership: identity and the active member set per group
//   - Expense, Split: one payment by one user, divided among participants
//   - Settlement: a direct payment between two users that clears debt
//
// Relationships use ID strings rather than pointers to avoid circular
// references. Amounts are money.Money values; timestamps are Unix seconds.
//
// An Expense is never physically removed: deletion flips the Deleted flag and
// the expense drops out of balance computation while staying in history.
package models
