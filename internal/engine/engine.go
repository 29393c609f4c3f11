// Package engine implements the transition engine: the pure function
// (item, trigger, context) -> TransitionOutcome that is the heart of the
// orchestration system. It has no suspension points of its own; every
// repository read it needs is supplied by the caller through Context.
package engine

import (
	"fmt"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engineerr"
	"github.com/workgraph/workctl/internal/gatecheck"
)

// BlockerInfo describes one incoming blocker as loaded by the caller for
// gating purposes.
type BlockerInfo struct {
	BlockerID    string
	BlockerTitle string
	BlockerRole  domain.Role
	RequiredRole domain.Role
	Satisfied    bool
}

// Context carries everything the engine needs beyond the item snapshot
// itself: the incoming blockers already resolved against the store, the
// item's persisted notes for gate-checking, and the note-schema service.
// Callers (internal/orchestrate) are responsible for loading these from
// the store before invoking Run — the engine itself never touches a
// repository.
type Context struct {
	IncomingBlockers []BlockerInfo
	Notes            []*domain.Note
	SchemaService    gatecheck.NoteSchemaService
	Now              time.Time
}

// Request is one transition request against a single item.
type Request struct {
	Trigger     domain.Trigger
	Summary     *string
	StatusLabel *string
}

// CascadeCandidate signals that, since dest is TERMINAL, the cascade
// detector should be consulted for item's parent.
type CascadeCandidate struct {
	ItemID string
}

// UnblockProbe signals that item t should be re-evaluated by the unblock
// detector because the just-advanced item's rank increased.
type UnblockProbe struct {
	Eligible bool
}

// TransitionOutcome is the engine's full output for a successful transition.
type TransitionOutcome struct {
	Item              *domain.WorkItem
	Audit             *domain.RoleTransition
	CascadeCandidate  *CascadeCandidate
	RunUnblockProbe   bool
}

// Run evaluates trigger against item under ctx and returns the resulting
// outcome, or a structured error from internal/engineerr. item is never
// mutated in place; Run returns a fresh snapshot via item.Clone().
func Run(item *domain.WorkItem, req Request, ctx Context) (*TransitionOutcome, error) {
	switch req.Trigger {
	case domain.TriggerStart:
		return runLadderAdvance(item, req, ctx, false)
	case domain.TriggerComplete:
		return runLadderAdvance(item, req, ctx, true)
	case domain.TriggerCancel:
		return runCancel(item, req, ctx)
	case domain.TriggerBlock, domain.TriggerHold:
		return runBlock(item, req, ctx)
	case domain.TriggerResume:
		return runResume(item, req, ctx)
	default:
		return nil, fmt.Errorf("%w: %q", engineerr.ErrInvalidRoleForTrigger, req.Trigger)
	}
}

// nextLadderRole returns the role one rung past current, or false if
// current is already at (or beyond) TERMINAL.
func nextLadderRole(current domain.Role) (domain.Role, bool) {
	switch current {
	case domain.RoleQueue:
		return domain.RoleWork, true
	case domain.RoleWork:
		return domain.RoleReview, true
	case domain.RoleReview:
		return domain.RoleTerminal, true
	default:
		return "", false
	}
}

func runLadderAdvance(item *domain.WorkItem, req Request, ctx Context, jumpToTerminal bool) (*TransitionOutcome, error) {
	if item.Role == domain.RoleTerminal {
		return nil, engineerr.ErrAlreadyTerminal
	}
	if item.Role == domain.RoleBlocked {
		return nil, engineerr.ErrIsBlocked
	}

	var dest domain.Role
	if jumpToTerminal {
		dest = domain.RoleTerminal
	} else {
		d, ok := nextLadderRole(item.Role)
		if !ok {
			return nil, engineerr.ErrAlreadyTerminal
		}
		dest = d
	}

	if err := checkBlockers(ctx); err != nil {
		return nil, err
	}

	effectiveSummary := item.Summary
	if req.Summary != nil && *req.Summary != "" {
		effectiveSummary = *req.Summary
	}
	gateStatus := gatecheck.CheckGate(ctx.SchemaService, item, dest, effectiveSummary, ctx.Notes)
	if !gateStatus.CanAdvance {
		return nil, &engineerr.GateCheckFailedError{Missing: gateStatus.Missing}
	}

	next := item.Clone()
	fromRole := item.Role
	next.Role = dest
	next.StatusLabel = nil
	if req.Summary != nil && *req.Summary != "" {
		next.Summary = *req.Summary
	}
	next.ModifiedAt = monotonicNow(ctx, item.ModifiedAt)

	outcome := &TransitionOutcome{
		Item: next,
		Audit: &domain.RoleTransition{
			ItemID:          item.ID,
			FromRole:        fromRole,
			ToRole:          dest,
			FromStatusLabel: item.StatusLabel,
			ToStatusLabel:   nil,
			Trigger:         string(req.Trigger),
			Summary:         req.Summary,
			TransitionedAt:  next.ModifiedAt,
		},
		RunUnblockProbe: domain.Compare(dest, fromRole) > 0,
	}
	if dest == domain.RoleTerminal {
		outcome.CascadeCandidate = &CascadeCandidate{ItemID: item.ID}
	}
	return outcome, nil
}

func runCancel(item *domain.WorkItem, req Request, ctx Context) (*TransitionOutcome, error) {
	if item.Role == domain.RoleTerminal {
		return nil, engineerr.ErrAlreadyTerminal
	}

	// Open Question 1 (spec.md §9): cancel on a BLOCKED item audits the
	// literal current role (BLOCKED), not previousRole. See DESIGN.md.
	fromRole := item.Role

	next := item.Clone()
	next.Role = domain.RoleTerminal
	label := domain.StatusLabelCancelled
	next.StatusLabel = &label
	next.PreviousRole = nil
	if req.Summary != nil && *req.Summary != "" {
		next.Summary = *req.Summary
	}
	next.ModifiedAt = monotonicNow(ctx, item.ModifiedAt)

	return &TransitionOutcome{
		Item: next,
		Audit: &domain.RoleTransition{
			ItemID:          item.ID,
			FromRole:        fromRole,
			ToRole:          domain.RoleTerminal,
			FromStatusLabel: item.StatusLabel,
			ToStatusLabel:   &label,
			Trigger:         string(req.Trigger),
			Summary:         req.Summary,
			TransitionedAt:  next.ModifiedAt,
		},
		CascadeCandidate: &CascadeCandidate{ItemID: item.ID},
		RunUnblockProbe:  true,
	}, nil
}

func runBlock(item *domain.WorkItem, req Request, ctx Context) (*TransitionOutcome, error) {
	if item.Role == domain.RoleBlocked {
		return nil, engineerr.ErrAlreadyBlocked
	}
	if item.Role == domain.RoleTerminal {
		return nil, engineerr.ErrCannotBlockTerminal
	}

	prev := item.Role
	next := item.Clone()
	next.PreviousRole = &prev
	next.Role = domain.RoleBlocked
	next.ModifiedAt = monotonicNow(ctx, item.ModifiedAt)

	return &TransitionOutcome{
		Item: next,
		Audit: &domain.RoleTransition{
			ItemID:          item.ID,
			FromRole:        prev,
			ToRole:          domain.RoleBlocked,
			FromStatusLabel: item.StatusLabel,
			ToStatusLabel:   item.StatusLabel,
			Trigger:         string(req.Trigger),
			Summary:         req.Summary,
			TransitionedAt:  next.ModifiedAt,
		},
	}, nil
}

func runResume(item *domain.WorkItem, req Request, ctx Context) (*TransitionOutcome, error) {
	if item.Role != domain.RoleBlocked {
		return nil, engineerr.ErrNotBlocked
	}
	if item.PreviousRole == nil {
		return nil, engineerr.ErrMissingPreviousRole
	}

	restored := *item.PreviousRole
	next := item.Clone()
	next.Role = restored
	next.PreviousRole = nil
	next.ModifiedAt = monotonicNow(ctx, item.ModifiedAt)

	return &TransitionOutcome{
		Item: next,
		Audit: &domain.RoleTransition{
			ItemID:          item.ID,
			FromRole:        domain.RoleBlocked,
			ToRole:          restored,
			FromStatusLabel: item.StatusLabel,
			ToStatusLabel:   item.StatusLabel,
			Trigger:         string(req.Trigger),
			Summary:         req.Summary,
			TransitionedAt:  next.ModifiedAt,
		},
		RunUnblockProbe: true,
	}, nil
}

// checkBlockers fails with BlockedByDependency if any incoming blocker in
// ctx is unsatisfied. Missing blockers are already represented by the
// caller as an unsatisfied BlockerInfo entry (spec.md §4.3: "If the
// blocker item is missing from the store, treat as unsatisfied").
func checkBlockers(ctx Context) error {
	var unsatisfied []engineerr.Blocker
	for _, b := range ctx.IncomingBlockers {
		if !b.Satisfied {
			unsatisfied = append(unsatisfied, engineerr.Blocker{
				BlockerID:    b.BlockerID,
				BlockerTitle: b.BlockerTitle,
				BlockerRole:  string(b.BlockerRole),
				RequiredRole: string(b.RequiredRole),
			})
		}
	}
	if len(unsatisfied) > 0 {
		return &engineerr.BlockedByDependencyError{Blockers: unsatisfied}
	}
	return nil
}

// monotonicNow returns a timestamp strictly greater than prev, honoring
// the strict-monotone modifiedAt invariant (spec.md §3) even when the
// clock hasn't ticked forward (back-to-back transitions within the same
// nanosecond, or a caller-supplied Now for deterministic tests).
func monotonicNow(ctx Context, prev time.Time) time.Time {
	now := ctx.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}
