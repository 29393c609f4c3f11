// Package orchestrate implements the two batch orchestrators that sit on
// top of the transition engine: advance_item (per-item atomic transitions
// with cascade and unblock detection) and complete_tree (bulk subtree/set
// advance with dependency-aware skip propagation).
package orchestrate

import (
	"context"
	"database/sql"
	"time"

	"github.com/workgraph/workctl/internal/cascade"
	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engine"
	"github.com/workgraph/workctl/internal/gatecheck"
	"github.com/workgraph/workctl/internal/store"
	"github.com/workgraph/workctl/internal/unblock"
)

// Store is the full persistence contract the orchestrators need; satisfied
// by internal/store.Store, kept as its own interface alias so this package
// documents exactly which Store methods it calls.
type Store = store.Store

// Orchestrator bundles a store and a note-schema service; both batch
// entry points hang off it.
type Orchestrator struct {
	Store         Store
	SchemaService gatecheck.NoteSchemaService
}

// New builds an Orchestrator. A nil schemaService defaults to
// gatecheck.NoOpNoteSchemaService (gate-free mode).
func New(st Store, schemaService gatecheck.NoteSchemaService) *Orchestrator {
	if schemaService == nil {
		schemaService = gatecheck.NoOpNoteSchemaService{}
	}
	return &Orchestrator{Store: st, SchemaService: schemaService}
}

// loadBlockers resolves incoming_blockers(x) (spec.md §4.2) against the
// store, as engine.Context expects: one BlockerInfo per incoming blocking
// edge, each already carrying its satisfied/unsatisfied verdict.
func loadBlockers(ctx context.Context, q store.Querier, st Store, item *domain.WorkItem) ([]engine.BlockerInfo, error) {
	incoming, err := st.GetIncomingDependencies(ctx, q, item.ID)
	if err != nil {
		return nil, err
	}
	outgoing, err := st.GetOutgoingDependencies(ctx, q, item.ID)
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

	var out []engine.BlockerInfo
	for _, r := range refs {
		required, ok := r.dep.EffectiveUnblockRole()
		if !ok {
			continue
		}
		blocker, err := st.GetItem(ctx, q, r.id)
		if err != nil {
			out = append(out, engine.BlockerInfo{BlockerID: r.id, RequiredRole: required, Satisfied: false})
			continue
		}
		out = append(out, engine.BlockerInfo{
			BlockerID:    blocker.ID,
			BlockerTitle: blocker.Title,
			BlockerRole:  blocker.Role,
			RequiredRole: required,
			Satisfied:    domain.IsAtOrBeyond(blocker.Role, required),
		})
	}
	return out, nil
}

// runCascade wraps cascade.Detect with a per-level transaction factory
// over o.Store, matching §4.4's "each level is its own transaction".
func (o *Orchestrator) runCascade(ctx context.Context, itemID string) ([]cascade.Event, error) {
	txFactory := func() (cascade.Querier, func() error, error) {
		tx, err := o.Store.BeginTx(ctx)
		if err != nil {
			return nil, nil, err
		}
		return tx, func() error { return tx.Commit() }, nil
	}
	return cascade.Detect(ctx, cascadeAdapter{o.Store}, txFactory, itemID, time.Now().UTC())
}

// cascadeAdapter narrows Store to cascade.Store's method set with
// cascade's own Querier type (a type alias of storetypes.Querier, so no
// actual conversion happens at the call sites — this exists purely to
// make the dependency explicit and documented).
type cascadeAdapter struct{ Store }

func (c cascadeAdapter) GetItem(ctx context.Context, q cascade.Querier, id string) (*domain.WorkItem, error) {
	return c.Store.GetItem(ctx, q, id)
}
func (c cascadeAdapter) UpdateItem(ctx context.Context, q cascade.Querier, item *domain.WorkItem) error {
	return c.Store.UpdateItem(ctx, q, item)
}
func (c cascadeAdapter) ListChildren(ctx context.Context, q cascade.Querier, parentID string) ([]*domain.WorkItem, error) {
	return c.Store.ListChildren(ctx, q, parentID)
}
func (c cascadeAdapter) InsertRoleTransition(ctx context.Context, q cascade.Querier, rt *domain.RoleTransition) error {
	return c.Store.InsertRoleTransition(ctx, q, rt)
}

// unblockAdapter does the same for unblock.Store.
type unblockAdapter struct{ Store }

func (u unblockAdapter) GetItem(ctx context.Context, q unblock.Querier, id string) (*domain.WorkItem, error) {
	return u.Store.GetItem(ctx, q, id)
}
func (u unblockAdapter) GetOutgoingDependencies(ctx context.Context, q unblock.Querier, itemID string) ([]*domain.Dependency, error) {
	return u.Store.GetOutgoingDependencies(ctx, q, itemID)
}
func (u unblockAdapter) GetIncomingDependencies(ctx context.Context, q unblock.Querier, itemID string) ([]*domain.Dependency, error) {
	return u.Store.GetIncomingDependencies(ctx, q, itemID)
}

func (o *Orchestrator) runUnblock(ctx context.Context, q store.Querier, itemID string) ([]unblock.UnblockedItem, error) {
	return unblock.Detect(ctx, unblockAdapter{o.Store}, q, itemID)
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error, mirroring the "one transaction per per-item advance"
// persistence discipline (spec.md §4.3).
func withTx(ctx context.Context, st Store, fn func(tx *sql.Tx) error) error {
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
