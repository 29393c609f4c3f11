package advisory

import (
	"context"
	"database/sql"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/gatecheck"
	"github.com/workgraph/workctl/internal/store"
)

// ContextMode is one of the three modes get_context can run in, selected
// by which parameters the caller supplied.
type ContextMode string

const (
	ContextModeItem          ContextMode = "item"
	ContextModeSessionResume ContextMode = "session_resume"
	ContextModeHealthCheck   ContextMode = "health_check"
)

// ContextResult is the union result shape for all three get_context modes.
type ContextResult struct {
	Mode ContextMode

	// Item mode.
	Item          *domain.WorkItem
	GateStatus    *gatecheck.GateStatus
	ChildProgress *ChildProgress

	// Session-resume / health-check modes.
	ActiveItems       []*domain.WorkItem
	BlockedItems      []BlockedItem
	StalledItems      []*domain.WorkItem
	RecentTransitions []*domain.RoleTransition
}

// GetContext implements get_context's three modes (spec.md §4.9):
// item mode when itemID is non-nil, session-resume when since is non-nil,
// health-check otherwise.
func (s *Service) GetContext(ctx context.Context, itemID *string, since *time.Time) (*ContextResult, error) {
	if itemID != nil {
		return s.contextForItem(ctx, *itemID)
	}
	if since != nil {
		return s.contextSinceResume(ctx, *since)
	}
	return s.contextHealthCheck(ctx)
}

func (s *Service) contextForItem(ctx context.Context, itemID string) (*ContextResult, error) {
	result := &ContextResult{Mode: ContextModeItem}
	err := withTx(ctx, s.Store, func(tx *sql.Tx) error {
		item, err := s.Store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		result.Item = item

		notes, err := s.Store.ListNotesForItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		dest := nextRoleFor(item.Role)
		if item.Role == domain.RoleBlocked || item.Role == domain.RoleTerminal {
			dest = item.Role
		}
		gs := gatecheck.CheckGate(s.SchemaService, item, dest, item.Summary, notes)
		result.GateStatus = &gs

		children, err := s.Store.ListChildren(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			cp := &ChildProgress{Total: len(children)}
			for _, c := range children {
				if c.Role == domain.RoleTerminal {
					cp.Terminal++
				}
			}
			result.ChildProgress = cp
		}
		return nil
	})
	return result, err
}

func (s *Service) contextSinceResume(ctx context.Context, since time.Time) (*ContextResult, error) {
	result := &ContextResult{Mode: ContextModeSessionResume}
	err := withTx(ctx, s.Store, func(tx *sql.Tx) error {
		transitions, err := s.Store.ListRoleTransitionsSince(ctx, tx, since)
		if err != nil {
			return err
		}
		result.RecentTransitions = transitions
		return s.populateActiveBlockedStalled(ctx, tx, result)
	})
	return result, err
}

func (s *Service) contextHealthCheck(ctx context.Context) (*ContextResult, error) {
	result := &ContextResult{Mode: ContextModeHealthCheck}
	err := withTx(ctx, s.Store, func(tx *sql.Tx) error {
		return s.populateActiveBlockedStalled(ctx, tx, result)
	})
	return result, err
}

func (s *Service) populateActiveBlockedStalled(ctx context.Context, tx *sql.Tx, result *ContextResult) error {
	items, err := s.Store.ListItems(ctx, tx, store.ItemFilter{})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, item := range items {
		if item.Role == domain.RoleTerminal {
			continue
		}
		if item.Role != domain.RoleBlocked {
			result.ActiveItems = append(result.ActiveItems, item)
		}
		if item.Role == domain.RoleWork || item.Role == domain.RoleReview {
			lastActivity, err := s.lastTransitionTime(ctx, tx, item)
			if err != nil {
				return err
			}
			if now.Sub(lastActivity) > s.StaleAfter {
				result.StalledItems = append(result.StalledItems, item)
			}
		}

		chain, err := blockerChain(ctx, s.Store, tx, item)
		if err != nil {
			return err
		}
		if item.Role == domain.RoleBlocked || anyUnsatisfied(chain) {
			result.BlockedItems = append(result.BlockedItems, BlockedItem{Item: item, BlockerChain: chain})
		}
	}
	return nil
}

// lastTransitionTime returns the most recent role_transitions.transitioned_at
// for item, or item.CreatedAt if it has never transitioned
// (SPEC_FULL.md §10's stale-item definition).
func (s *Service) lastTransitionTime(ctx context.Context, tx *sql.Tx, item *domain.WorkItem) (time.Time, error) {
	transitions, err := s.Store.ListRoleTransitionsForItem(ctx, tx, item.ID)
	if err != nil {
		return time.Time{}, err
	}
	if len(transitions) == 0 {
		return item.CreatedAt, nil
	}
	latest := transitions[0].TransitionedAt
	for _, t := range transitions[1:] {
		if t.TransitionedAt.After(latest) {
			latest = t.TransitionedAt
		}
	}
	return latest, nil
}
