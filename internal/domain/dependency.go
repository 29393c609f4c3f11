package domain

import (
	"fmt"
	"strings"
	"time"
)

// DependencyType is one of the three edge kinds in the dependency graph.
type DependencyType string

const (
	DepBlocks       DependencyType = "BLOCKS"
	DepIsBlockedBy  DependencyType = "IS_BLOCKED_BY"
	DepRelatesTo    DependencyType = "RELATES_TO"
)

// ParseDependencyType parses a dependency type case-insensitively into its
// wire-exact, upper-case form.
func ParseDependencyType(s string) (DependencyType, error) {
	switch DependencyType(strings.ToUpper(strings.TrimSpace(s))) {
	case DepBlocks:
		return DepBlocks, nil
	case DepIsBlockedBy:
		return DepIsBlockedBy, nil
	case DepRelatesTo:
		return DepRelatesTo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDependencyType, s)
	}
}

// IsBlocking reports whether t participates in blocker gating.
func IsBlocking(t DependencyType) bool {
	return t == DepBlocks || t == DepIsBlockedBy
}

// Dependency is a typed, directed edge between two work items.
type Dependency struct {
	ID         string
	FromItemID string
	ToItemID   string
	Type       DependencyType
	// UnblockAt is the lower-case role name gating this edge; nil means the
	// type's default applies (see EffectiveUnblockRole).
	UnblockAt *Role
	CreatedAt time.Time
}

// EffectiveUnblockRole returns the role the blocker side must reach for this
// edge to be considered satisfied. BLOCKS/IS_BLOCKED_BY default to TERMINAL
// when UnblockAt is unset. RELATES_TO is never blocking and has no
// effective unblock role.
func (d *Dependency) EffectiveUnblockRole() (Role, bool) {
	if !IsBlocking(d.Type) {
		return "", false
	}
	if d.UnblockAt != nil {
		return *d.UnblockAt, true
	}
	return RoleTerminal, true
}
