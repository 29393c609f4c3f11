// Package schema holds the DDL shared by both relational backends
// (internal/store/sqlite and internal/store/dolt). Both backends execute the
// same CREATE TABLE statements unchanged, so the table layout itself lives here
// once, mirroring how the teacher's two backends share identical column
// sets while differing only in connection and migration plumbing.
package schema

// CoreTables is the initial schema applied by both backends on first open.
// Columns mirror domain.WorkItem, domain.Dependency, domain.Note, and
// domain.RoleTransition field-for-field.
const CoreTables = `
CREATE TABLE IF NOT EXISTS work_items (
	id                     TEXT PRIMARY KEY,
	parent_id              TEXT REFERENCES work_items(id) ON DELETE CASCADE,
	title                  TEXT NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	summary                TEXT NOT NULL DEFAULT '',
	role                   TEXT NOT NULL,
	previous_role          TEXT,
	status_label           TEXT,
	priority               TEXT NOT NULL,
	complexity             INTEGER NOT NULL DEFAULT 0,
	requires_verification  BOOLEAN NOT NULL DEFAULT 0,
	depth                  INTEGER NOT NULL DEFAULT 0,
	metadata               TEXT,
	tags                   TEXT,
	created_at             DATETIME NOT NULL,
	modified_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dependencies (
	id            TEXT PRIMARY KEY,
	from_item_id  TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
	to_item_id    TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
	type          TEXT NOT NULL,
	unblock_at    TEXT,
	created_at    DATETIME NOT NULL,
	UNIQUE(from_item_id, to_item_id, type)
);

CREATE TABLE IF NOT EXISTS notes (
	id           TEXT PRIMARY KEY,
	item_id      TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
	key          TEXT NOT NULL,
	role         TEXT NOT NULL,
	body         TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	modified_at  DATETIME NOT NULL,
	UNIQUE(item_id, key)
);

CREATE TABLE IF NOT EXISTS role_transitions (
	id                  TEXT PRIMARY KEY,
	item_id             TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
	from_role           TEXT NOT NULL,
	to_role             TEXT NOT NULL,
	from_status_label   TEXT,
	to_status_label     TEXT,
	trigger             TEXT NOT NULL,
	summary             TEXT,
	transitioned_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS work_item_config (
	key          TEXT PRIMARY KEY,
	value        TEXT NOT NULL,
	modified_at  DATETIME NOT NULL
);
`

// CoreIndexes mirrors the teacher's migrations/026_additional_indexes.go:
// composite indexes for the query patterns the advisory and engine packages
// actually run, added after the base tables so they read cleanly as
// "performance" rather than "structure".
const CoreIndexes = `
CREATE INDEX IF NOT EXISTS idx_work_items_parent_id ON work_items(parent_id);
CREATE INDEX IF NOT EXISTS idx_work_items_role_priority ON work_items(role, priority);
CREATE INDEX IF NOT EXISTS idx_work_items_modified_at ON work_items(modified_at);
CREATE INDEX IF NOT EXISTS idx_dependencies_from_type ON dependencies(from_item_id, type);
CREATE INDEX IF NOT EXISTS idx_dependencies_to_type ON dependencies(to_item_id, type);
CREATE INDEX IF NOT EXISTS idx_notes_item_id ON notes(item_id);
CREATE INDEX IF NOT EXISTS idx_role_transitions_item_id ON role_transitions(item_id);
CREATE INDEX IF NOT EXISTS idx_role_transitions_transitioned_at ON role_transitions(transitioned_at);
`
