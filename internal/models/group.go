package models

// Group represents a set of users who share expenses.
// The creator is always an active member of the group.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates"). Non-empty.
	Name string

	// Description is optional free text about the group.
	Description string

	// CreatedBy is the user ID of the group's creator.
	CreatedBy string

	// Active indicates whether the group accepts new expenses.
	Active bool

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// Membership links a user to a group. Unique per (group, user): re-adding an
// inactive membership reactivates it rather than duplicating.
type Membership struct {
	GroupID string
	UserID  string

	// Active indicates whether the user currently belongs to the group.
	Active bool

	// CreatedAt is the Unix timestamp of the first enrollment.
	CreatedAt int64
}
