package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxDepth is the deepest a work item's parent chain may run (depth 0..3).
const MaxDepth = 3

// MaxSummaryLen is the maximum length of WorkItem.Summary.
const MaxSummaryLen = 500

// WorkItem is a node in the hierarchical work graph. Role, PreviousRole, and
// StatusLabel are mutated only by the transition engine; every other field
// is mutated through explicit update operations (internal/mcptool's
// manage_items).
type WorkItem struct {
	ID                   string
	ParentID             *string
	Title                string
	Description          string
	Summary              string
	Role                 Role
	PreviousRole         *Role
	StatusLabel          *string
	Priority             Priority
	Complexity           int
	RequiresVerification bool
	Depth                int
	Metadata             map[string]any
	Tags                 []string
	CreatedAt            time.Time
	ModifiedAt           time.Time
}

// TagSet returns the item's tags as a deduplicated, trimmed, lower-cased set.
func (w *WorkItem) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(w.Tags))
	for _, t := range w.Tags {
		set[NormalizeTag(t)] = struct{}{}
	}
	return set
}

// tagPattern matches the comma-joined lowercase kebab identifier format
// tags are stored in: lowercase letters, digits, and single internal
// hyphens, no leading/trailing/doubled hyphens.
var tagPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// NormalizeTag trims and lower-cases a tag the same way TagSet and gate-check
// schema lookups do, so callers validate and store the same normal form.
func NormalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// ValidateTags normalizes and validates each tag against tagPattern,
// returning the normalized slice or ErrInvalidTagFormat for the first
// malformed entry.
func ValidateTags(tags []string) ([]string, error) {
	out := make([]string, len(tags))
	for i, t := range tags {
		n := NormalizeTag(t)
		if !tagPattern.MatchString(n) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTagFormat, t)
		}
		out[i] = n
	}
	return out, nil
}

// Clone returns a deep-enough copy of w suitable for the engine to mutate
// without aliasing the caller's snapshot. Metadata and Tags are copied by
// reference since the engine never mutates their contents, only replaces
// them wholesale.
func (w *WorkItem) Clone() *WorkItem {
	c := *w
	if w.ParentID != nil {
		p := *w.ParentID
		c.ParentID = &p
	}
	if w.PreviousRole != nil {
		r := *w.PreviousRole
		c.PreviousRole = &r
	}
	if w.StatusLabel != nil {
		s := *w.StatusLabel
		c.StatusLabel = &s
	}
	return &c
}
