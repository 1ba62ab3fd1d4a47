package models

// User represents a person participating in expenses and settlements.
type User struct {
	// ID is the unique identifier for the user (UUID format). Immutable.
	ID string

	// Name is the display name of the user. Must be non-empty.
	Name string

	// Email is optional contact info.
	Email string

	// Active indicates whether the user can be referenced by new mutations.
	Active bool

	// CreatedAt is the Unix timestamp when the user was created.
	CreatedAt int64
}
