// Package engineerr defines the sentinel error taxonomy shared by the
// transition engine, cascade/unblock detectors, gate-check facility, and
// the batch orchestrators. Callers use errors.Is/errors.As against these
// sentinels; the orchestrators never let them escape a per-item boundary
// (see internal/orchestrate).
package engineerr

import "errors"

// Input/validation errors.
var (
	ErrValidation = errors.New("validation error")
)

// State-machine errors.
var (
	ErrAlreadyTerminal      = errors.New("item is already terminal")
	ErrAlreadyBlocked       = errors.New("item is already blocked")
	ErrNotBlocked           = errors.New("item is not blocked")
	ErrMissingPreviousRole  = errors.New("blocked item has no previous role")
	ErrIsBlocked            = errors.New("item is blocked; resume before advancing")
	ErrCannotBlockTerminal  = errors.New("cannot block a terminal item")
	ErrInvalidRoleForTrigger = errors.New("role is not valid for this trigger")
)

// Gating errors.
var (
	ErrBlockedByDependency = errors.New("blocked by unsatisfied dependency")
	ErrGateCheckFailed     = errors.New("gate check failed")
)

// Graph integrity errors.
var (
	ErrCyclicDependency  = errors.New("dependency would create a cycle")
	ErrDuplicateDependency = errors.New("dependency already exists")
	ErrSelfDependency    = errors.New("an item cannot depend on itself")
)

// Persistence errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrDatabaseError = errors.New("database error")
	ErrConflict     = errors.New("conflict")
)

// Cascade/cycle guard.
var (
	ErrMaxDepthExceeded = errors.New("maximum depth exceeded")
)

// Blocker describes one unsatisfied incoming blocker, carried on
// BlockedByDependencyError.
type Blocker struct {
	BlockerID    string
	BlockerTitle string
	BlockerRole  string
	RequiredRole string
}

// BlockedByDependencyError wraps ErrBlockedByDependency with the full list
// of unsatisfied blockers so callers can report them structurally
// (spec.md §4.3 "carrying the full blocker list").
type BlockedByDependencyError struct {
	Blockers []Blocker
}

func (e *BlockedByDependencyError) Error() string {
	return "blocked by unsatisfied dependency"
}

func (e *BlockedByDependencyError) Unwrap() error {
	return ErrBlockedByDependency
}

// GateCheckFailedError wraps ErrGateCheckFailed with the missing
// requirement keys (spec.md §4.6).
type GateCheckFailedError struct {
	Missing []string
}

func (e *GateCheckFailedError) Error() string {
	return "gate check failed: missing " + joinComma(e.Missing)
}

func (e *GateCheckFailedError) Unwrap() error {
	return ErrGateCheckFailed
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// ValidationError wraps ErrValidation with a field-precise message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError wraps ErrNotFound with the missing id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found: " + e.ID
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
