package sqlcommon

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

const dependencyColumns = `id, from_item_id, to_item_id, type, unblock_at, created_at`

func CreateDependency(ctx context.Context, q Querier, dep *domain.Dependency) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO dependencies (`+dependencyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		dep.ID, dep.FromItemID, dep.ToItemID, string(dep.Type), nullableRole(dep.UnblockAt), dep.CreatedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create dependency: %w", fmt.Errorf("edge already exists"))
		}
		return WrapExecError("create dependency", err)
	}
	return nil
}

func DeleteDependency(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM dependencies WHERE id = ?`, id)
	if err != nil {
		return WrapExecError("delete dependency", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return WrapDBError("delete dependency", "dependency", id, sql.ErrNoRows)
	}
	return nil
}

func DependencyExists(ctx context.Context, q Querier, fromID, toID string, typ domain.DependencyType) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM dependencies WHERE from_item_id = ? AND to_item_id = ? AND type = ?
	`, fromID, toID, string(typ)).Scan(&n)
	if err != nil {
		return false, WrapExecError("check dependency exists", err)
	}
	return n > 0, nil
}

func GetOutgoingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+dependencyColumns+` FROM dependencies WHERE from_item_id = ?`, itemID)
	if err != nil {
		return nil, WrapExecError("list outgoing dependencies", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDependencies(rows)
}

func GetIncomingDependencies(ctx context.Context, q Querier, itemID string) ([]*domain.Dependency, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+dependencyColumns+` FROM dependencies WHERE to_item_id = ?`, itemID)
	if err != nil {
		return nil, WrapExecError("list incoming dependencies", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDependencies(rows)
}

// BlockingReachable reports whether toID can reach fromID by following
// BLOCKS/IS_BLOCKED_BY edges forward from toID, in blocker->blocked
// direction: a BLOCKS row is followed from from_item_id to to_item_id, an
// IS_BLOCKED_BY row from to_item_id to from_item_id. Creating a new blocking edge
// fromID->toID when this is true would close a cycle in the blocking
// subgraph, so callers reject the edge (mirrors the teacher's
// internal/types/dependencies.go cycle check, generalized to this domain's
// two blocking dependency types).
func BlockingReachable(ctx context.Context, q Querier, fromID, toID string) (bool, error) {
	visited := map[string]bool{toID: true}
	frontier := []string{toID}
	for len(frontier) > 0 {
		placeholders, args := inClause(frontier)
		rows, err := q.QueryContext(ctx, `
			SELECT to_item_id FROM dependencies
			WHERE from_item_id IN (`+placeholders+`) AND type = 'BLOCKS'
			UNION
			SELECT from_item_id FROM dependencies
			WHERE to_item_id IN (`+placeholders+`) AND type = 'IS_BLOCKED_BY'
		`, append(append([]any{}, args...), args...)...)
		if err != nil {
			return false, WrapExecError("blocking reachable", err)
		}
		var next []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return false, WrapExecError("blocking reachable scan", err)
			}
			if id == fromID {
				_ = rows.Close()
				return true, nil
			}
			if !visited[id] {
				visited[id] = true
				next = append(next, id)
			}
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return false, WrapExecError("blocking reachable rows", err)
		}
		frontier = next
	}
	return false, nil
}

// ListBlockingEdgesAmong returns every BLOCKS/IS_BLOCKED_BY edge whose
// endpoints are both in ids, normalized to (blockerID, blockedID) pairs:
// a BLOCKS edge from A to B means A blocks B, so the pair is (A, B);
// an IS_BLOCKED_BY edge from A to B means A is blocked by B, so the
// normalized pair is (B, A).
func ListBlockingEdgesAmong(ctx context.Context, q Querier, ids []string) ([]storetypes.BlockingEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	rows, err := q.QueryContext(ctx, `
		SELECT from_item_id, to_item_id, type FROM dependencies
		WHERE from_item_id IN (`+placeholders+`) AND to_item_id IN (`+placeholders+`)
		AND type IN ('BLOCKS', 'IS_BLOCKED_BY')
	`, append(append([]any{}, args...), args...)...)
	if err != nil {
		return nil, WrapExecError("list blocking edges among", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storetypes.BlockingEdge
	for rows.Next() {
		var from, to, typ string
		if err := rows.Scan(&from, &to, &typ); err != nil {
			return nil, WrapExecError("scan blocking edge", err)
		}
		if typ == string(domain.DepBlocks) {
			out = append(out, storetypes.BlockingEdge{BlockerID: from, BlockedID: to})
		} else {
			out = append(out, storetypes.BlockingEdge{BlockerID: to, BlockedID: from})
		}
	}
	return out, WrapExecError("list blocking edges among rows", rows.Err())
}

func scanDependencies(rows *sql.Rows) ([]*domain.Dependency, error) {
	var out []*domain.Dependency
	for rows.Next() {
		var (
			dep       domain.Dependency
			typ       string
			unblockAt sql.NullString
			createdAt sql.NullTime
		)
		if err := rows.Scan(&dep.ID, &dep.FromItemID, &dep.ToItemID, &typ, &unblockAt, &createdAt); err != nil {
			return nil, err
		}
		dep.Type = domain.DependencyType(typ)
		if createdAt.Valid {
			dep.CreatedAt = createdAt.Time
		}
		if unblockAt.Valid && unblockAt.String != "" {
			r := domain.Role(unblockAt.String)
			dep.UnblockAt = &r
		}
		out = append(out, &dep)
	}
	return out, rows.Err()
}
