// Package advisory implements the four read-only tools that recommend
// and report on work-item state: get_blocked_items, get_next_item,
// get_next_status, and get_context. None of these mutate the store.
package advisory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/gatecheck"
	"github.com/workgraph/workctl/internal/store"
)

// DefaultStaleAfter is the duration of no role transition after which a
// WORK/REVIEW item is reported as stalled (SPEC_FULL.md §10).
const DefaultStaleAfter = 72 * time.Hour

// Service bundles the store and note-schema service the advisory tools
// consult.
type Service struct {
	Store         store.Store
	SchemaService gatecheck.NoteSchemaService
	StaleAfter    time.Duration
}

// New builds a Service. A zero staleAfter defaults to DefaultStaleAfter.
func New(st store.Store, schemaService gatecheck.NoteSchemaService, staleAfter time.Duration) *Service {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if schemaService == nil {
		schemaService = gatecheck.NoOpNoteSchemaService{}
	}
	return &Service{Store: st, SchemaService: schemaService, StaleAfter: staleAfter}
}

// BlockerChainEntry describes one blocker in a blocked item's chain.
type BlockerChainEntry struct {
	ItemID    string
	Title     string
	Role      domain.Role
	Threshold domain.Role
	Satisfied bool
}

// BlockedItem is one entry of get_blocked_items's result.
type BlockedItem struct {
	Item         *domain.WorkItem
	BlockerChain []BlockerChainEntry
}

// GetBlockedItems enumerates items explicitly BLOCKED, plus items in
// {QUEUE, WORK, REVIEW} with at least one unsatisfied incoming blocker
// (spec.md §4.9).
func (s *Service) GetBlockedItems(ctx context.Context, parentID *string) ([]BlockedItem, error) {
	var out []BlockedItem
	err := withTx(ctx, s.Store, func(tx *sql.Tx) error {
		items, err := s.Store.ListItems(ctx, tx, store.ItemFilter{ParentID: parentID})
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Role == domain.RoleTerminal {
				continue
			}
			chain, err := blockerChain(ctx, s.Store, tx, item)
			if err != nil {
				return err
			}
			if item.Role == domain.RoleBlocked || anyUnsatisfied(chain) {
				out = append(out, BlockedItem{Item: item, BlockerChain: chain})
			}
		}
		return nil
	})
	return out, err
}

func anyUnsatisfied(chain []BlockerChainEntry) bool {
	for _, c := range chain {
		if !c.Satisfied {
			return true
		}
	}
	return false
}

func blockerChain(ctx context.Context, st store.Store, tx *sql.Tx, item *domain.WorkItem) ([]BlockerChainEntry, error) {
	incoming, err := st.GetIncomingDependencies(ctx, tx, item.ID)
	if err != nil {
		return nil, err
	}
	outgoing, err := st.GetOutgoingDependencies(ctx, tx, item.ID)
	if err != nil {
		return nil, err
	}

	type ref struct {
		id  string
		dep *domain.Dependency
	}
	var refs []ref
	for _, d := range incoming {
		if d.Type == domain.DepBlocks {
			refs = append(refs, ref{id: d.FromItemID, dep: d})
		}
	}
	for _, d := range outgoing {
		if d.Type == domain.DepIsBlockedBy {
			refs = append(refs, ref{id: d.ToItemID, dep: d})
		}
	}

	var chain []BlockerChainEntry
	for _, r := range refs {
		threshold, ok := r.dep.EffectiveUnblockRole()
		if !ok {
			continue
		}
		blocker, err := st.GetItem(ctx, tx, r.id)
		if err != nil {
			chain = append(chain, BlockerChainEntry{ItemID: r.id, Threshold: threshold, Satisfied: false})
			continue
		}
		chain = append(chain, BlockerChainEntry{
			ItemID:    blocker.ID,
			Title:     blocker.Title,
			Role:      blocker.Role,
			Threshold: threshold,
			Satisfied: domain.IsAtOrBeyond(blocker.Role, threshold),
		})
	}
	return chain, nil
}

// Recommendation is one entry of get_next_item's result.
type Recommendation struct {
	Item *domain.WorkItem
}

// GetNextItem recommends unblocked, non-terminal items filtered by parent
// and priority, sorted priority-desc, complexity-asc, createdAt-asc,
// capped at limit (spec.md §4.9).
func (s *Service) GetNextItem(ctx context.Context, parentID *string, priority *domain.Priority, limit int) ([]Recommendation, error) {
	var out []Recommendation
	err := withTx(ctx, s.Store, func(tx *sql.Tx) error {
		items, err := s.Store.ListItems(ctx, tx, store.ItemFilter{ParentID: parentID, Priority: priority})
		if err != nil {
			return err
		}
		var candidates []*domain.WorkItem
		for _, item := range items {
			if item.Role == domain.RoleTerminal || item.Role == domain.RoleBlocked {
				continue
			}
			chain, err := blockerChain(ctx, s.Store, tx, item)
			if err != nil {
				return err
			}
			if anyUnsatisfied(chain) {
				continue
			}
			candidates = append(candidates, item)
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			if a.Complexity != b.Complexity {
				return a.Complexity < b.Complexity
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
		if limit > 0 && len(candidates) > limit {
			candidates = candidates[:limit]
		}
		for _, c := range candidates {
			out = append(out, Recommendation{Item: c})
		}
		return nil
	})
	return out, err
}

// NextStatusRecommendation is get_next_status's result shape.
type NextStatusRecommendation string

const (
	RecommendationReady    NextStatusRecommendation = "Ready"
	RecommendationBlocked  NextStatusRecommendation = "Blocked"
	RecommendationTerminal NextStatusRecommendation = "Terminal"
)

// ChildProgress is the epic-style total/terminal child count supplement
// (SPEC_FULL.md §10), grounded on the teacher's epic progress queries.
type ChildProgress struct {
	Total    int
	Terminal int
}

// NextStatus is get_next_status's full result.
type NextStatus struct {
	Recommendation NextStatusRecommendation
	CurrentRole    domain.Role
	NextRole       *domain.Role
	Trigger        *domain.Trigger
	Blockers       []BlockerChainEntry
	ChildProgress  *ChildProgress
}

// GetNextStatus computes the single-item status/recommendation tool.
func (s *Service) GetNextStatus(ctx context.Context, itemID string) (*NextStatus, error) {
	var result *NextStatus
	err := withTx(ctx, s.Store, func(tx *sql.Tx) error {
		item, err := s.Store.GetItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		result = &NextStatus{CurrentRole: item.Role}

		if item.Role == domain.RoleTerminal {
			result.Recommendation = RecommendationTerminal
		} else {
			chain, err := blockerChain(ctx, s.Store, tx, item)
			if err != nil {
				return err
			}
			if item.Role == domain.RoleBlocked {
				result.Recommendation = RecommendationBlocked
				result.Blockers = chain
				resume := domain.TriggerResume
				result.Trigger = &resume
				if item.PreviousRole != nil {
					result.NextRole = item.PreviousRole
				}
			} else if anyUnsatisfied(chain) {
				result.Recommendation = RecommendationBlocked
				result.Blockers = chain
			} else {
				result.Recommendation = RecommendationReady
				next := nextRoleFor(item.Role)
				result.NextRole = &next
				start := domain.TriggerStart
				result.Trigger = &start
			}
		}

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

func nextRoleFor(r domain.Role) domain.Role {
	switch r {
	case domain.RoleQueue:
		return domain.RoleWork
	case domain.RoleWork:
		return domain.RoleReview
	case domain.RoleReview:
		return domain.RoleTerminal
	default:
		return domain.RoleTerminal
	}
}

func withTx(ctx context.Context, st store.Store, fn func(tx *sql.Tx) error) error {
	tx, err := st.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
