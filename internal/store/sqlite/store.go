// Package sqlite implements the persistence contracts in internal/store
// using modernc.org/sqlite, a CGO-free driver. This is the default backend
// for a single-operator deployment; internal/store/dolt provides the
// version-controlled alternative for teams wanting branch/merge semantics
// on work-item state, mirroring the teacher's own sqlite/dolt split.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/store/schema"
	"github.com/workgraph/workctl/internal/store/sqlcommon"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

// Store implements store.Store over a single SQLite file.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open creates (if needed) and opens the SQLite database at path, applying
// the core schema and indexes. path may be ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows only one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent stdio/TCP tool calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema.CoreTables); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply core schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema.CoreIndexes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply core indexes: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.db.Close()
	}
	return nil
}

// Querier passthrough so Store itself satisfies store.Querier for callers
// that don't need an explicit transaction.
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) CreateItem(ctx context.Context, q storetypes.Querier, item *domain.WorkItem) error {
	return sqlcommon.CreateItem(ctx, q, item)
}

func (s *Store) GetItem(ctx context.Context, q storetypes.Querier, id string) (*domain.WorkItem, error) {
	return sqlcommon.GetItem(ctx, q, id)
}

func (s *Store) UpdateItem(ctx context.Context, q storetypes.Querier, item *domain.WorkItem) error {
	return sqlcommon.UpdateItem(ctx, q, item)
}

func (s *Store) DeleteItems(ctx context.Context, q storetypes.Querier, ids []string) error {
	return sqlcommon.DeleteItems(ctx, q, ids)
}

func (s *Store) ListChildren(ctx context.Context, q storetypes.Querier, parentID string) ([]*domain.WorkItem, error) {
	return sqlcommon.ListChildren(ctx, q, parentID)
}

func (s *Store) ListDescendants(ctx context.Context, q storetypes.Querier, rootID string) ([]*domain.WorkItem, error) {
	return sqlcommon.ListDescendants(ctx, q, rootID)
}

func (s *Store) ListItems(ctx context.Context, q storetypes.Querier, filter storetypes.ItemFilter) ([]*domain.WorkItem, error) {
	return sqlcommon.ListItems(ctx, q, filter)
}

func (s *Store) CreateDependency(ctx context.Context, q storetypes.Querier, dep *domain.Dependency) error {
	return sqlcommon.CreateDependency(ctx, q, dep)
}

func (s *Store) DeleteDependency(ctx context.Context, q storetypes.Querier, id string) error {
	return sqlcommon.DeleteDependency(ctx, q, id)
}

func (s *Store) DependencyExists(ctx context.Context, q storetypes.Querier, fromID, toID string, typ domain.DependencyType) (bool, error) {
	return sqlcommon.DependencyExists(ctx, q, fromID, toID, typ)
}

func (s *Store) GetOutgoingDependencies(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.Dependency, error) {
	return sqlcommon.GetOutgoingDependencies(ctx, q, itemID)
}

func (s *Store) GetIncomingDependencies(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.Dependency, error) {
	return sqlcommon.GetIncomingDependencies(ctx, q, itemID)
}

func (s *Store) BlockingReachable(ctx context.Context, q storetypes.Querier, fromID, toID string) (bool, error) {
	return sqlcommon.BlockingReachable(ctx, q, fromID, toID)
}

func (s *Store) ListBlockingEdgesAmong(ctx context.Context, q storetypes.Querier, ids []string) ([]storetypes.BlockingEdge, error) {
	return sqlcommon.ListBlockingEdgesAmong(ctx, q, ids)
}

func (s *Store) UpsertNote(ctx context.Context, q storetypes.Querier, note *domain.Note) error {
	return sqlcommon.UpsertNote(ctx, q, note)
}

func (s *Store) DeleteNote(ctx context.Context, q storetypes.Querier, itemID, key string) error {
	return sqlcommon.DeleteNote(ctx, q, itemID, key)
}

func (s *Store) GetNote(ctx context.Context, q storetypes.Querier, itemID, key string) (*domain.Note, error) {
	return sqlcommon.GetNote(ctx, q, itemID, key)
}

func (s *Store) ListNotesForItem(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.Note, error) {
	return sqlcommon.ListNotesForItem(ctx, q, itemID)
}

func (s *Store) InsertRoleTransition(ctx context.Context, q storetypes.Querier, rt *domain.RoleTransition) error {
	return sqlcommon.InsertRoleTransition(ctx, q, rt)
}

func (s *Store) ListRoleTransitionsForItem(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.RoleTransition, error) {
	return sqlcommon.ListRoleTransitionsForItem(ctx, q, itemID)
}

func (s *Store) ListRoleTransitionsSince(ctx context.Context, q storetypes.Querier, since time.Time) ([]*domain.RoleTransition, error) {
	return sqlcommon.ListRoleTransitionsSince(ctx, q, since)
}
