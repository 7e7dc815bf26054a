// Package sqlite implements the SQLite secondary index described in
// spec §4.E: schema and migrations, corruption detection and rebuild,
// and the CRUD surface the filesystem-backed store and the in-memory
// graph builder use to keep the database in sync with notes on disk.
package sqlite

// currentSchemaVersion is the schema version this binary knows how to
// read and write. A database opened at a lower version is migrated
// in-place when an incremental path exists, or rebuilt from scratch
// otherwise.
const currentSchemaVersion = 9

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	type          TEXT NOT NULL,
	path          TEXT NOT NULL UNIQUE,
	created       TEXT,
	updated       TEXT,
	body          TEXT NOT NULL DEFAULT '',
	mtime         INTEGER NOT NULL,
	value         INTEGER,
	compacts      TEXT NOT NULL DEFAULT '',
	author        TEXT NOT NULL DEFAULT '',
	verified      INTEGER,
	source        TEXT NOT NULL DEFAULT '',
	sources       TEXT NOT NULL DEFAULT '',
	generated_by  TEXT NOT NULL DEFAULT '',
	prompt_hash   TEXT NOT NULL DEFAULT '',
	custom_json   TEXT NOT NULL DEFAULT '{}',
	index_level   INTEGER NOT NULL DEFAULT 2
);

CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
	title, body, tags,
	tokenize='porter unicode61'
);

CREATE TABLE IF NOT EXISTS tags (
	note_id TEXT NOT NULL,
	tag     TEXT NOT NULL,
	PRIMARY KEY (note_id, tag)
);

CREATE TABLE IF NOT EXISTS edges (
	source_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	link_type TEXT NOT NULL,
	inline    INTEGER NOT NULL,
	position  INTEGER NOT NULL,
	PRIMARY KEY (source_id, target_id, link_type)
);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

CREATE TABLE IF NOT EXISTS unresolved (
	source_id  TEXT NOT NULL,
	target_ref TEXT NOT NULL,
	PRIMARY KEY (source_id, target_ref)
);

CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS indexing_checkpoints (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_number  INTEGER NOT NULL,
	last_note_id  TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	completed_at  TEXT
);
`

// fullSchemaStatements is schemaSQL split into its individual statements,
// since database/sql's Exec does not reliably run multi-statement
// scripts against every SQLite driver configuration.
func fullSchemaStatements() []string {
	return splitStatements(schemaSQL)
}

func splitStatements(script string) []string {
	var stmts []string
	var cur []byte
	for i := 0; i < len(script); i++ {
		c := script[i]
		cur = append(cur, c)
		if c == ';' {
			stmt := trimStatement(string(cur))
			if stmt != "" {
				stmts = append(stmts, stmt)
			}
			cur = cur[:0]
		}
	}
	if stmt := trimStatement(string(cur)); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}

func trimStatement(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceOrNewline(s[start]) {
		start++
	}
	for end > start && isSpaceOrNewline(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceOrNewline(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';'
}
