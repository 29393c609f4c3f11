package sqlcommon

import (
	"context"
	"database/sql"
	"time"

	"github.com/workgraph/workctl/internal/domain"
)

const roleTransitionColumns = `id, item_id, from_role, to_role, from_status_label, to_status_label, trigger, summary, transitioned_at`

// InsertRoleTransition appends one audit record. Role transitions are
// never updated or deleted except via the owning item's cascade delete.
func InsertRoleTransition(ctx context.Context, q Querier, rt *domain.RoleTransition) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO role_transitions (`+roleTransitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rt.ID, rt.ItemID, string(rt.FromRole), string(rt.ToRole),
		nullableStr(rt.FromStatusLabel), nullableStr(rt.ToStatusLabel),
		rt.Trigger, nullableStr(rt.Summary), rt.TransitionedAt.UTC(),
	)
	return WrapExecError("insert role transition", err)
}

func ListRoleTransitionsForItem(ctx context.Context, q Querier, itemID string) ([]*domain.RoleTransition, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+roleTransitionColumns+` FROM role_transitions WHERE item_id = ? ORDER BY transitioned_at ASC
	`, itemID)
	if err != nil {
		return nil, WrapExecError("list role transitions for item", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRoleTransitions(rows)
}

func ListRoleTransitionsSince(ctx context.Context, q Querier, since time.Time) ([]*domain.RoleTransition, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+roleTransitionColumns+` FROM role_transitions WHERE transitioned_at >= ? ORDER BY transitioned_at ASC
	`, since.UTC())
	if err != nil {
		return nil, WrapExecError("list role transitions since", err)
	}
	defer func() { _ = rows.Close() }()
	return scanRoleTransitions(rows)
}

func scanRoleTransitions(rows *sql.Rows) ([]*domain.RoleTransition, error) {
	var out []*domain.RoleTransition
	for rows.Next() {
		var (
			rt                               domain.RoleTransition
			fromRole, toRole, trig           string
			fromLabel, toLabel, summary      sql.NullString
			transitionedAt                   time.Time
		)
		if err := rows.Scan(&rt.ID, &rt.ItemID, &fromRole, &toRole, &fromLabel, &toLabel, &trig, &summary, &transitionedAt); err != nil {
			return nil, err
		}
		rt.FromRole = domain.Role(fromRole)
		rt.ToRole = domain.Role(toRole)
		rt.Trigger = trig
		rt.TransitionedAt = transitionedAt
		if fromLabel.Valid {
			v := fromLabel.String
			rt.FromStatusLabel = &v
		}
		if toLabel.Valid {
			v := toLabel.String
			rt.ToStatusLabel = &v
		}
		if summary.Valid {
			v := summary.String
			rt.Summary = &v
		}
		out = append(out, &rt)
	}
	return out, rows.Err()
}
