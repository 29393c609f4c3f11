package domain

import "time"

// RoleTransition is an append-only audit record of a single role change.
// It is never mutated or deleted except as part of deleting its owning
// item.
type RoleTransition struct {
	ID              string
	ItemID          string
	FromRole        Role
	ToRole          Role
	FromStatusLabel *string
	ToStatusLabel   *string
	Trigger         string
	Summary         *string
	TransitionedAt  time.Time
}
