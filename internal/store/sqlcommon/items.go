package sqlcommon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

// Querier is the minimal *sql.DB/*sql.Tx surface the shared query functions
// need.
type Querier = storetypes.Querier

const itemColumns = `id, parent_id, title, description, summary, role, previous_role,
	status_label, priority, complexity, requires_verification, depth, metadata, tags,
	created_at, modified_at`

func CreateItem(ctx context.Context, q Querier, item *domain.WorkItem) error {
	meta, err := marshalMetadata(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO work_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID, nullableStr(item.ParentID), item.Title, item.Description, item.Summary,
		string(item.Role), nullableRole(item.PreviousRole), nullableStr(item.StatusLabel),
		string(item.Priority), item.Complexity, item.RequiresVerification, item.Depth,
		meta, joinTags(item.Tags), item.CreatedAt.UTC(), item.ModifiedAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("create item: %w", fmt.Errorf("%s already exists", item.ID))
		}
		return WrapExecError("create item", err)
	}
	return nil
}

func GetItem(ctx context.Context, q Querier, id string) (*domain.WorkItem, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		return nil, WrapDBError("get item", "item", id, err)
	}
	return item, nil
}

func UpdateItem(ctx context.Context, q Querier, item *domain.WorkItem) error {
	meta, err := marshalMetadata(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE work_items SET
			parent_id = ?, title = ?, description = ?, summary = ?, role = ?,
			previous_role = ?, status_label = ?, priority = ?, complexity = ?,
			requires_verification = ?, depth = ?, metadata = ?, tags = ?, modified_at = ?
		WHERE id = ?
	`,
		nullableStr(item.ParentID), item.Title, item.Description, item.Summary,
		string(item.Role), nullableRole(item.PreviousRole), nullableStr(item.StatusLabel),
		string(item.Priority), item.Complexity, item.RequiresVerification, item.Depth,
		meta, joinTags(item.Tags), item.ModifiedAt.UTC(), item.ID,
	)
	if err != nil {
		return WrapExecError("update item", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return WrapDBError("update item", "item", item.ID, sql.ErrNoRows)
	}
	return nil
}

func DeleteItems(ctx context.Context, q Querier, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inClause(ids)
	// Cascades: dependencies, notes, and role_transitions carry FK
	// ON DELETE CASCADE in the schema (spec.md §6), so a single delete
	// here is sufficient for both backends.
	_, err := q.ExecContext(ctx, `DELETE FROM work_items WHERE id IN (`+placeholders+`)`, args...)
	return WrapExecError("delete items", err)
}

func ListChildren(ctx context.Context, q Querier, parentID string) ([]*domain.WorkItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE parent_id = ? ORDER BY created_at ASC`, parentID)
	if err != nil {
		return nil, WrapExecError("list children", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

// ListDescendants returns every transitive descendant of rootID (not
// including rootID itself), walking level by level. Depth is bounded by
// domain.MaxDepth, so this queries at most domain.MaxDepth+1 levels.
func ListDescendants(ctx context.Context, q Querier, rootID string) ([]*domain.WorkItem, error) {
	var all []*domain.WorkItem
	frontier := []string{rootID}
	for depth := 0; depth < domain.MaxDepth+1 && len(frontier) > 0; depth++ {
		placeholders, args := inClause(frontier)
		rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE parent_id IN (`+placeholders+`) ORDER BY created_at ASC`, args...)
		if err != nil {
			return nil, WrapExecError("list descendants", err)
		}
		children, err := scanItems(rows)
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			break
		}
		frontier = frontier[:0]
		for _, c := range children {
			all = append(all, c)
			frontier = append(frontier, c.ID)
		}
	}
	return all, nil
}

func ListItems(ctx context.Context, q Querier, filter storetypes.ItemFilter) ([]*domain.WorkItem, error) {
	where := []string{"1=1"}
	var args []any
	if filter.ParentID != nil {
		where = append(where, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.Role != nil {
		where = append(where, "role = ?")
		args = append(args, string(*filter.Role))
	}
	if filter.Priority != nil {
		where = append(where, "priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.Tag != "" {
		where = append(where, "(',' || tags || ',') LIKE ?")
		args = append(args, "%,"+filter.Tag+",%")
	}
	query := `SELECT ` + itemColumns + ` FROM work_items WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at ASC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, WrapExecError("list items", err)
	}
	defer func() { _ = rows.Close() }()
	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]*domain.WorkItem, error) {
	var out []*domain.WorkItem
	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, WrapExecError("scan items", rows.Err())
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.WorkItem, error) {
	return scanItemRow(row)
}

func scanItemRow(row rowScanner) (*domain.WorkItem, error) {
	var (
		item                             domain.WorkItem
		parentID, previousRole, statusLabel sql.NullString
		role, priority, tags, metadata   sql.NullString
		createdAt, modifiedAt            time.Time
	)
	err := row.Scan(
		&item.ID, &parentID, &item.Title, &item.Description, &item.Summary,
		&role, &previousRole, &statusLabel, &priority, &item.Complexity,
		&item.RequiresVerification, &item.Depth, &metadata, &tags,
		&createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Role = domain.Role(role.String)
	item.Priority = domain.Priority(priority.String)
	item.CreatedAt = createdAt
	item.ModifiedAt = modifiedAt
	if parentID.Valid {
		v := parentID.String
		item.ParentID = &v
	}
	if previousRole.Valid && previousRole.String != "" {
		v := domain.Role(previousRole.String)
		item.PreviousRole = &v
	}
	if statusLabel.Valid && statusLabel.String != "" {
		v := statusLabel.String
		item.StatusLabel = &v
	}
	if tags.Valid && tags.String != "" {
		item.Tags = strings.Split(tags.String, ",")
	}
	if metadata.Valid && metadata.String != "" {
		m := make(map[string]any)
		if err := json.Unmarshal([]byte(metadata.String), &m); err == nil {
			item.Metadata = m
		}
	}
	return &item, nil
}

func marshalMetadata(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func joinTags(tags []string) *string {
	if len(tags) == 0 {
		return nil
	}
	s := strings.Join(tags, ",")
	return &s
}

func nullableStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableRole(r *domain.Role) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

func inClause(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}
