// Package idgen mints identifiers for work items, dependencies, notes, and
// role-transition audit records.
//
// The teacher (beads) derives content-hash IDs with progressive collision
// extension (internal/types/id_generator.go: GenerateHashID,
// GenerateChildID). This engine has no content-addressing requirement — work
// items are mutable entities, not immutable content — so identifiers are
// plain random UUIDs; the hierarchical depth relationship is tracked via
// WorkItem.ParentID/Depth rather than encoded into the ID string itself.
package idgen

import "github.com/google/uuid"

// New returns a new random identifier.
func New() string {
	return uuid.NewString()
}
