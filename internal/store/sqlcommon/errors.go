// Package sqlcommon holds the SQL-dialect-agnostic repository logic shared
// by internal/store/sqlite and internal/store/dolt. Both backends use "?"
// placeholders and the same table layout (spec.md §6); only connection
// setup and a handful of DDL types differ between them, so the query and
// scan logic is written once here and wrapped by each backend's package,
// mirroring the teacher's two parallel (sqlite/dolt) Storage backends
// without duplicating the query bodies themselves.
package sqlcommon

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/workgraph/workctl/internal/engineerr"
)

// WrapDBError converts sql.ErrNoRows into a typed NotFoundError and wraps
// anything else with operation context, mirroring
// internal/storage/sqlite/errors.go's wrapDBError in the teacher.
func WrapDBError(op, kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &engineerr.NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("%s: %w: %v", op, engineerr.ErrDatabaseError, err)
}

// WrapExecError wraps a write-path error that has no NotFound meaning.
func WrapExecError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, engineerr.ErrDatabaseError, err)
}

// IsUniqueViolation is a best-effort detector for unique-constraint errors
// across the sqlite and MySQL/dolt drivers, which report constraint
// violations with different message shapes.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sub := range []string{
		"UNIQUE constraint failed", // sqlite
		"Duplicate entry",          // mysql/dolt
		"constraint failed",
	} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
