package sqlcommon

import (
	"context"
	"database/sql"
	"errors"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/engineerr"
)

const noteColumns = `id, item_id, key, role, body, created_at, modified_at`

// UpsertNote inserts a note or replaces its role/body/modified_at if a note
// with the same (item_id, key) already exists, matching the gate-check
// facility's "last write wins" note semantics (spec.md §4.6).
func UpsertNote(ctx context.Context, q Querier, note *domain.Note) error {
	existing, err := GetNote(ctx, q, note.ItemID, note.Key)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, note.ID, note.ItemID, note.Key, string(note.Role), note.Body, note.CreatedAt.UTC(), note.ModifiedAt.UTC())
		return WrapExecError("insert note", err)
	}
	_, err = q.ExecContext(ctx, `
		UPDATE notes SET role = ?, body = ?, modified_at = ? WHERE item_id = ? AND key = ?
	`, string(note.Role), note.Body, note.ModifiedAt.UTC(), note.ItemID, note.Key)
	note.ID = existing.ID
	note.CreatedAt = existing.CreatedAt
	return WrapExecError("update note", err)
}

func DeleteNote(ctx context.Context, q Querier, itemID, key string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM notes WHERE item_id = ? AND key = ?`, itemID, key)
	if err != nil {
		return WrapExecError("delete note", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return WrapDBError("delete note", "note", itemID+"/"+key, sql.ErrNoRows)
	}
	return nil
}

func GetNote(ctx context.Context, q Querier, itemID, key string) (*domain.Note, error) {
	row := q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE item_id = ? AND key = ?`, itemID, key)
	n, err := scanNote(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, WrapDBError("get note", "note", itemID+"/"+key, err)
		}
		return nil, WrapExecError("get note", err)
	}
	return n, nil
}

func ListNotesForItem(ctx context.Context, q Querier, itemID string) ([]*domain.Note, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE item_id = ? ORDER BY created_at ASC`, itemID)
	if err != nil {
		return nil, WrapExecError("list notes for item", err)
	}
	defer func() { _ = rows.Close() }()
	var out []*domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, WrapExecError("list notes rows", rows.Err())
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var (
		n                    domain.Note
		role                 string
		createdAt, modified  sql.NullTime
	)
	err := row.Scan(&n.ID, &n.ItemID, &n.Key, &role, &n.Body, &createdAt, &modified)
	if err != nil {
		return nil, err
	}
	n.Role = domain.Role(role)
	if createdAt.Valid {
		n.CreatedAt = createdAt.Time
	}
	if modified.Valid {
		n.ModifiedAt = modified.Time
	}
	return &n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, engineerr.ErrNotFound)
}
