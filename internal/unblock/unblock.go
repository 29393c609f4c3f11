// Package unblock implements the downstream-unblock detector (spec.md
// §4.5): advisory-only, it never mutates the items it examines.
package unblock

import (
	"context"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

// Querier is satisfied by *sql.DB/*sql.Tx.
type Querier = storetypes.Querier

// Store is the narrow slice of persistence the detector needs.
type Store interface {
	GetItem(ctx context.Context, q Querier, id string) (*domain.WorkItem, error)
	GetOutgoingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error)
	GetIncomingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error)
}

// UnblockedItem is one downstream item whose incoming blockers are all
// now satisfied.
type UnblockedItem struct {
	ItemID string
	Title  string
}

// Detect examines every outgoing blocking-relation target of itemID — a
// downstream item t such that itemID is one of t's incoming blockers —
// and reports those whose incoming blockers are now entirely satisfied.
func Detect(ctx context.Context, store Store, q Querier, itemID string) ([]UnblockedItem, error) {
	targets, err := downstreamTargets(ctx, store, q, itemID)
	if err != nil {
		return nil, err
	}

	var out []UnblockedItem
	for _, targetID := range targets {
		target, err := store.GetItem(ctx, q, targetID)
		if err != nil {
			continue // missing target: nothing to report, not an error
		}
		satisfied, err := allIncomingBlockersSatisfied(ctx, store, q, target)
		if err != nil {
			return nil, err
		}
		if satisfied {
			out = append(out, UnblockedItem{ItemID: target.ID, Title: target.Title})
		}
	}
	return out, nil
}

// downstreamTargets collects items that itemID blocks: the other side of
// any outgoing BLOCKS edge, plus the other side of any incoming
// IS_BLOCKED_BY edge (since an IS_BLOCKED_BY edge from t to itemID means
// itemID blocks t, per the §4.2 normalization inverted).
func downstreamTargets(ctx context.Context, store Store, q Querier, itemID string) ([]string, error) {
	var targets []string

	outgoing, err := store.GetOutgoingDependencies(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	for _, d := range outgoing {
		if d.Type == domain.DepBlocks {
			targets = append(targets, d.ToItemID)
		}
	}

	incoming, err := store.GetIncomingDependencies(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	for _, d := range incoming {
		if d.Type == domain.DepIsBlockedBy {
			targets = append(targets, d.FromItemID)
		}
	}

	return dedupe(targets), nil
}

// allIncomingBlockersSatisfied applies the same incoming_blockers(x)
// normalization as the engine's blocker gating (spec.md §4.2) to target,
// checking each blocker's current role against its effective unblock role.
func allIncomingBlockersSatisfied(ctx context.Context, store Store, q Querier, target *domain.WorkItem) (bool, error) {
	incoming, err := store.GetIncomingDependencies(ctx, q, target.ID)
	if err != nil {
		return false, err
	}
	outgoing, err := store.GetOutgoingDependencies(ctx, q, target.ID)
	if err != nil {
		return false, err
	}

	type blockerRef struct {
		id  string
		dep *domain.Dependency
	}
	var blockers []blockerRef
	for _, d := range incoming {
		if d.Type == domain.DepBlocks {
			blockers = append(blockers, blockerRef{id: d.FromItemID, dep: d})
		}
	}
	for _, d := range outgoing {
		if d.Type == domain.DepIsBlockedBy {
			blockers = append(blockers, blockerRef{id: d.ToItemID, dep: d})
		}
	}

	for _, b := range blockers {
		required, ok := b.dep.EffectiveUnblockRole()
		if !ok {
			continue
		}
		blockerItem, err := store.GetItem(ctx, q, b.id)
		if err != nil {
			return false, nil // missing blocker treated as unsatisfied, not an error
		}
		if !domain.IsAtOrBeyond(blockerItem.Role, required) {
			return false, nil
		}
	}
	return true, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
