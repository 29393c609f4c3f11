// Package store defines the persistence contracts for work items,
// dependencies, notes, and role-transition audit records (spec.md §3
// "Persistence Contracts"). The transition engine and orchestrators consume
// these contracts without embedding storage details; internal/store/sqlite
// and internal/store/dolt provide concrete relational implementations.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, letting repository
// methods run either standalone or inside the caller's transaction.
type Querier = storetypes.Querier

// ItemFilter narrows ListItems / ready-work style queries.
type ItemFilter = storetypes.ItemFilter

// BlockingEdge is a normalized (blocker -> blocked) pair derived from either
// a BLOCKS or IS_BLOCKED_BY row (spec.md §4.2's normalization).
type BlockingEdge = storetypes.BlockingEdge

// Store is the full persistence contract. All methods are transactional at
// the call boundary: pass the *sql.DB itself for a standalone call, or a
// *sql.Tx obtained from BeginTx to compose several calls atomically.
type Store interface {
	Querier

	BeginTx(ctx context.Context) (*sql.Tx, error)
	Close() error

	// Items
	CreateItem(ctx context.Context, q Querier, item *domain.WorkItem) error
	GetItem(ctx context.Context, q Querier, id string) (*domain.WorkItem, error)
	UpdateItem(ctx context.Context, q Querier, item *domain.WorkItem) error
	DeleteItems(ctx context.Context, q Querier, ids []string) error
	ListChildren(ctx context.Context, q Querier, parentID string) ([]*domain.WorkItem, error)
	ListDescendants(ctx context.Context, q Querier, rootID string) ([]*domain.WorkItem, error)
	ListItems(ctx context.Context, q Querier, filter ItemFilter) ([]*domain.WorkItem, error)

	// Dependencies
	CreateDependency(ctx context.Context, q Querier, dep *domain.Dependency) error
	DeleteDependency(ctx context.Context, q Querier, id string) error
	DependencyExists(ctx context.Context, q Querier, fromID, toID string, typ domain.DependencyType) (bool, error)
	GetOutgoingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error)
	GetIncomingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error)
	// BlockingReachable reports whether toID can reach fromID by following
	// blocking edges forward, i.e. whether creating a blocking edge
	// fromID->toID would close a cycle (spec.md §4.2).
	BlockingReachable(ctx context.Context, q Querier, fromID, toID string) (bool, error)
	// ListBlockingEdgesAmong returns every BLOCKS/IS_BLOCKED_BY edge whose
	// endpoints are both in ids, normalized to (blockerID, blockedID) pairs,
	// for complete_tree's topological sort (spec.md §4.8).
	ListBlockingEdgesAmong(ctx context.Context, q Querier, ids []string) ([]BlockingEdge, error)

	// Notes
	UpsertNote(ctx context.Context, q Querier, note *domain.Note) error
	DeleteNote(ctx context.Context, q Querier, itemID, key string) error
	GetNote(ctx context.Context, q Querier, itemID, key string) (*domain.Note, error)
	ListNotesForItem(ctx context.Context, q Querier, itemID string) ([]*domain.Note, error)

	// Role transitions (audit, append-only)
	InsertRoleTransition(ctx context.Context, q Querier, rt *domain.RoleTransition) error
	ListRoleTransitionsForItem(ctx context.Context, q Querier, itemID string) ([]*domain.RoleTransition, error)
	ListRoleTransitionsSince(ctx context.Context, q Querier, since time.Time) ([]*domain.RoleTransition, error)
}
