// Package storetypes holds small value types shared between internal/store
// (the persistence contracts) and internal/store/sqlcommon (the shared SQL
// implementation), broken out on their own to avoid an import cycle between
// the two.
package storetypes

import (
	"context"
	"database/sql"

	"github.com/workgraph/workctl/internal/domain"
)

// Querier is the minimal *sql.DB/*sql.Tx surface the store contracts and
// shared SQL implementation need, letting repository methods run either
// standalone or inside a caller-supplied transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ItemFilter narrows ListItems-style queries.
type ItemFilter struct {
	ParentID *string
	Role     *domain.Role
	Priority *domain.Priority
	Tag      string
	Limit    int
	Offset   int
}

// BlockingEdge is a normalized (blocker -> blocked) pair derived from either
// a BLOCKS or IS_BLOCKED_BY row (spec.md §4.2's normalization).
type BlockingEdge struct {
	BlockerID string
	BlockedID string
}
