package sqlite

import (
	"database/sql"
	"fmt"
)

// migration applies the schema change from one version to the next. Each
// step must be idempotent-safe under IF NOT EXISTS guards where possible.
type migration struct {
	fromVersion int
	statements  []string
}

// migrations are keyed by the version they migrate FROM. A database at
// v1 runs the v1 migration and becomes v2, then v2's migration runs
// next, and so on, until currentSchemaVersion is reached.
var migrations = []migration{
	{fromVersion: 1, statements: []string{`ALTER TABLE notes ADD COLUMN value INTEGER`}},
	{fromVersion: 6, statements: []string{`ALTER TABLE notes ADD COLUMN index_level INTEGER NOT NULL DEFAULT 2`}},
	{fromVersion: 7, statements: []string{`CREATE INDEX IF NOT EXISTS idx_notes_custom_json ON notes(custom_json)`}},
	{fromVersion: 8, statements: []string{
		`CREATE TABLE IF NOT EXISTS indexing_checkpoints (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_number  INTEGER NOT NULL,
			last_note_id  TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			completed_at  TEXT
		)`,
	}},
}

func migrationFor(version int) (migration, bool) {
	for _, m := range migrations {
		if m.fromVersion == version {
			return m, true
		}
	}
	return migration{}, false
}

// migrate brings db from its current schema_version up to
// currentSchemaVersion by applying each incremental step in order. It
// returns false if any intervening version has no migration path, in
// which case the caller must rebuild from scratch instead.
func migrate(db *sql.DB, from int) (bool, error) {
	version := from
	for version < currentSchemaVersion {
		step, ok := migrationFor(version)
		if !ok {
			return false, nil
		}
		for _, stmt := range step.statements {
			if _, err := db.Exec(stmt); err != nil {
				return false, fmt.Errorf("migrate from v%d: %w", version, err)
			}
		}
		version++
	}
	_, err := db.Exec(`INSERT INTO index_meta(key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, itoa(currentSchemaVersion))
	return true, err
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
