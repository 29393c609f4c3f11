// Package cascade implements the parent-cascade detector (spec.md §4.4):
// after an item reaches TERMINAL, walk ancestors while every sibling at
// each level has also reached TERMINAL, applying an auto-TERMINAL
// transition to each such parent in its own transaction.
package cascade

import (
	"context"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/idgen"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

// Querier is satisfied by *sql.DB/*sql.Tx.
type Querier = storetypes.Querier

// Store is the narrow slice of persistence the detector needs, satisfied
// by internal/store.Store.
type Store interface {
	GetItem(ctx context.Context, q Querier, id string) (*domain.WorkItem, error)
	UpdateItem(ctx context.Context, q Querier, item *domain.WorkItem) error
	ListChildren(ctx context.Context, q Querier, parentID string) ([]*domain.WorkItem, error)
	InsertRoleTransition(ctx context.Context, q Querier, rt *domain.RoleTransition) error
}

// Event is one emitted cascade: a parent that auto-advanced to TERMINAL
// because all of its children already had.
type Event struct {
	ItemID       string
	PreviousRole domain.Role
	TargetRole   domain.Role
	Trigger      string
}

const cascadeTrigger = "cascade"

// Detect walks ancestors of startItemID, one level at a time, applying an
// auto-TERMINAL transition at each level where every child is already
// TERMINAL. It stops at domain.MaxDepth iterations, on an item without a
// parent, on a parent already TERMINAL (idempotent: a concurrent cascade
// attempt may have already written it), or as soon as a level's children
// are not all TERMINAL.
//
// q must be a transaction-scoped Querier distinct per level: each level's
// read-then-write is its own transaction per spec.md §4.4 step 8, so
// callers pass a txFactory that opens and commits one transaction per
// level rather than a single long-lived one.
func Detect(ctx context.Context, store Store, txFactory func() (Querier, func() error, error), startItemID string, now time.Time) ([]Event, error) {
	var events []Event
	currentID := startItemID

	for depth := 0; depth < domain.MaxDepth; depth++ {
		current, err := loadWithDB(ctx, store, txFactory, currentID)
		if err != nil {
			return events, err
		}
		if current == nil || current.ParentID == nil {
			return events, nil
		}

		q, commit, err := txFactory()
		if err != nil {
			return events, err
		}

		// Nothing is written before the update below, so the early exits
		// commit to end this level's transaction.
		children, err := store.ListChildren(ctx, q, *current.ParentID)
		if err != nil {
			_ = commit()
			return events, err
		}
		if len(children) == 0 || !allTerminal(children) {
			_ = commit()
			return events, nil
		}

		parent, err := store.GetItem(ctx, q, *current.ParentID)
		if err != nil {
			_ = commit()
			return events, err
		}
		if parent.Role == domain.RoleTerminal {
			// Idempotent: another concurrent cascade already wrote this.
			_ = commit()
			return events, nil
		}

		updated := parent.Clone()
		updated.Role = domain.RoleTerminal
		updated.ModifiedAt = monotonic(now, parent.ModifiedAt)

		if err := store.UpdateItem(ctx, q, updated); err != nil {
			return events, err
		}
		if err := store.InsertRoleTransition(ctx, q, &domain.RoleTransition{
			ID:              idgen.New(),
			ItemID:          parent.ID,
			FromRole:        parent.Role,
			ToRole:          domain.RoleTerminal,
			FromStatusLabel: parent.StatusLabel,
			ToStatusLabel:   parent.StatusLabel,
			Trigger:         cascadeTrigger,
			TransitionedAt:  updated.ModifiedAt,
		}); err != nil {
			return events, err
		}
		if err := commit(); err != nil {
			return events, err
		}

		events = append(events, Event{
			ItemID:       parent.ID,
			PreviousRole: parent.Role,
			TargetRole:   domain.RoleTerminal,
			Trigger:      cascadeTrigger,
		})
		currentID = parent.ID
	}
	return events, nil
}

func loadWithDB(ctx context.Context, store Store, txFactory func() (Querier, func() error, error), id string) (*domain.WorkItem, error) {
	q, commit, err := txFactory()
	if err != nil {
		return nil, err
	}
	defer func() { _ = commit() }()
	return store.GetItem(ctx, q, id)
}

func allTerminal(items []*domain.WorkItem) bool {
	for _, it := range items {
		if it.Role != domain.RoleTerminal {
			return false
		}
	}
	return true
}

func monotonic(now, prev time.Time) time.Time {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}
