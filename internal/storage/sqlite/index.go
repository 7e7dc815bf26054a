package sqlite

import (
	"database/sql"
	"os"
	"sort"
	"strconv"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

// Index is the SQLite-backed secondary index: notes metadata, the
// resolved edge list, tags, unresolved references, and schema/checkpoint
// bookkeeping. It owns its *sql.DB connection for its lifetime.
type Index struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the SQLite database at path, applying
// schema creation or migration as needed, then passively checkpointing
// the WAL so commits from other processes become visible.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, qipuerrors.Wrap(qipuerrors.Io, err, "open sqlite index")
	}
	idx := &Index{db: db, path: path}

	if err := idx.init(); err != nil {
		db.Close()
		if qipuerrors.IsCorruption(err) {
			if rebuildErr := Rebuild(path); rebuildErr != nil {
				return nil, rebuildErr
			}
			return Open(path)
		}
		return nil, err
	}
	return idx, nil
}

func (idx *Index) init() error {
	if _, err := idx.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return qipuerrors.Wrap(qipuerrors.Io, err, "set WAL journal mode")
	}

	version, err := idx.schemaVersion()
	if err != nil {
		return err
	}

	switch {
	case version == 0:
		for _, stmt := range fullSchemaStatements() {
			if _, err := idx.db.Exec(stmt); err != nil {
				return qipuerrors.Wrap(qipuerrors.Index, err, "create schema")
			}
		}
		if err := idx.setMeta("schema_version", strconv.Itoa(currentSchemaVersion)); err != nil {
			return err
		}
	case version < currentSchemaVersion:
		ok, err := migrate(idx.db, version)
		if err != nil {
			return qipuerrors.Wrap(qipuerrors.Index, err, "apply migration")
		}
		if !ok {
			if err := idx.rebuildSchema(); err != nil {
				return err
			}
		}
	}

	if _, err := idx.db.Exec(`PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
		return qipuerrors.Wrap(qipuerrors.Io, err, "checkpoint WAL")
	}
	return nil
}

func (idx *Index) rebuildSchema() error {
	for _, table := range []string{"notes", "notes_fts", "tags", "edges", "unresolved", "index_meta", "indexing_checkpoints"} {
		if _, err := idx.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return qipuerrors.Wrap(qipuerrors.Index, err, "drop table during rebuild")
		}
	}
	for _, stmt := range fullSchemaStatements() {
		if _, err := idx.db.Exec(stmt); err != nil {
			return qipuerrors.Wrap(qipuerrors.Index, err, "recreate schema")
		}
	}
	return idx.setMeta("schema_version", strconv.Itoa(currentSchemaVersion))
}

// Rebuild deletes the database file and its WAL/SHM companions; the next
// Open call creates a fresh schema from scratch (spec §4.E corruption
// recovery).
func Rebuild(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return qipuerrors.Wrap(qipuerrors.Io, err, "remove corrupt database file")
		}
	}
	return nil
}

func (idx *Index) schemaVersion() (int, error) {
	var exists int
	err := idx.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='index_meta'`).Scan(&exists)
	if err != nil {
		if qipuerrors.IsCorruption(err) {
			return 0, err
		}
		return 0, qipuerrors.Wrap(qipuerrors.Index, err, "check index_meta existence")
	}
	if exists == 0 {
		return 0, nil
	}
	raw, err := idx.meta("schema_version")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, qipuerrors.Wrap(qipuerrors.Index, err, "parse schema_version")
	}
	return v, nil
}

func (idx *Index) meta(key string) (string, error) {
	var value string
	err := idx.db.QueryRow(`SELECT value FROM index_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", qipuerrors.Wrap(qipuerrors.Index, err, "read index_meta")
	}
	return value, nil
}

func (idx *Index) setMeta(key, value string) error {
	_, err := idx.db.Exec(`INSERT INTO index_meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "write index_meta")
	}
	return nil
}

// Close issues a truncating WAL checkpoint, so readers in other
// processes see a clean database, then closes the connection.
func (idx *Index) Close() error {
	_, _ = idx.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return idx.db.Close()
}

// Path returns the database file path this Index was opened with.
func (idx *Index) Path() string { return idx.path }

// NoteRow is one row of the notes table, the unit of upsert/read.
type NoteRow struct {
	ID          string
	Title       string
	Type        string
	Path        string
	Created     string
	Updated     string
	Body        string
	MtimeNanos  int64
	Value       *int
	Compacts    []string
	Author      string
	Verified    *bool
	Source      string
	Sources     string // pre-serialized JSON
	GeneratedBy string
	PromptHash  string
	CustomJSON  string
	IndexLevel  int
	Tags        []string
}

// UpsertNote writes one note's metadata row, tag rows, and FTS content,
// replacing any prior row for the same id.
func (idx *Index) UpsertNote(n NoteRow) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "begin upsert transaction")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO notes
		(id, title, type, path, created, updated, body, mtime, value, compacts, author,
		 verified, source, sources, generated_by, prompt_hash, custom_json, index_level)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, type=excluded.type, path=excluded.path,
			created=excluded.created, updated=excluded.updated, body=excluded.body,
			mtime=excluded.mtime, value=excluded.value, compacts=excluded.compacts,
			author=excluded.author, verified=excluded.verified, source=excluded.source,
			sources=excluded.sources, generated_by=excluded.generated_by,
			prompt_hash=excluded.prompt_hash, custom_json=excluded.custom_json,
			index_level=excluded.index_level`,
		n.ID, n.Title, n.Type, n.Path, n.Created, n.Updated, n.Body, n.MtimeNanos,
		nullableInt(n.Value), strings.Join(n.Compacts, ","), n.Author,
		nullableBool(n.Verified), n.Source, n.Sources, n.GeneratedBy, n.PromptHash,
		n.CustomJSON, n.IndexLevel)
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "upsert note row").WithToken(n.ID)
	}

	if _, err := tx.Exec(`DELETE FROM tags WHERE note_id = ?`, n.ID); err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "clear tags").WithToken(n.ID)
	}
	for _, tag := range n.Tags {
		if _, err := tx.Exec(`INSERT INTO tags(note_id, tag) VALUES (?, ?)`, n.ID, tag); err != nil {
			return qipuerrors.Wrap(qipuerrors.Index, err, "insert tag").WithToken(n.ID)
		}
	}

	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE rowid = (SELECT rowid FROM notes WHERE id = ?)`, n.ID); err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "clear fts row").WithToken(n.ID)
	}
	if _, err := tx.Exec(`INSERT INTO notes_fts(rowid, title, body, tags)
		SELECT rowid, ?, ?, ? FROM notes WHERE id = ?`,
		n.Title, n.Body, strings.Join(n.Tags, " "), n.ID); err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "index fts row").WithToken(n.ID)
	}

	return tx.Commit()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBool(v *bool) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// DeleteNote removes a note's row, tags, fts entry, outbound edges, and
// unresolved references.
func (idx *Index) DeleteNote(id string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "begin delete transaction")
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM notes_fts WHERE rowid = (SELECT rowid FROM notes WHERE id = ?)`,
		`DELETE FROM notes WHERE id = ?`,
		`DELETE FROM tags WHERE note_id = ?`,
		`DELETE FROM edges WHERE source_id = ?`,
		`DELETE FROM unresolved WHERE source_id = ?`,
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return qipuerrors.Wrap(qipuerrors.Index, err, "delete note").WithToken(id)
		}
	}
	return tx.Commit()
}

// EdgeRow is one row of the edges table.
type EdgeRow struct {
	SourceID string
	TargetID string
	LinkType string
	Inline   bool
	Position int
}

// ReplaceEdges deletes all edges for sourceID then inserts the given
// rows, keeping position indices dense as the spec requires.
func (idx *Index) ReplaceEdges(sourceID string, edges []EdgeRow, unresolved []string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "begin edge rewrite")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM edges WHERE source_id = ?`, sourceID); err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "clear edges").WithToken(sourceID)
	}
	if _, err := tx.Exec(`DELETE FROM unresolved WHERE source_id = ?`, sourceID); err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "clear unresolved").WithToken(sourceID)
	}
	for _, e := range edges {
		if _, err := tx.Exec(`INSERT INTO edges(source_id, target_id, link_type, inline, position)
			VALUES (?,?,?,?,?)`, e.SourceID, e.TargetID, e.LinkType, e.Inline, e.Position); err != nil {
			return qipuerrors.Wrap(qipuerrors.Index, err, "insert edge").WithToken(sourceID)
		}
	}
	for _, ref := range unresolved {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO unresolved(source_id, target_ref) VALUES (?, ?)`, sourceID, ref); err != nil {
			return qipuerrors.Wrap(qipuerrors.Index, err, "insert unresolved").WithToken(sourceID)
		}
	}
	return tx.Commit()
}

// NoteMtimes returns every indexed note's id, path, and mtime (for
// incremental repair's staleness comparison).
func (idx *Index) NoteMtimes() (map[string]struct {
	Path  string
	Mtime int64
}, error) {
	rows, err := idx.db.Query(`SELECT id, path, mtime FROM notes`)
	if err != nil {
		return nil, qipuerrors.Wrap(qipuerrors.Index, err, "list note mtimes")
	}
	defer rows.Close()

	out := make(map[string]struct {
		Path  string
		Mtime int64
	})
	for rows.Next() {
		var id, path string
		var mtime int64
		if err := rows.Scan(&id, &path, &mtime); err != nil {
			return nil, qipuerrors.Wrap(qipuerrors.Index, err, "scan note mtime row")
		}
		out[id] = struct {
			Path  string
			Mtime int64
		}{Path: path, Mtime: mtime}
	}
	return out, rows.Err()
}

// NoteCount returns the number of indexed notes, used by the consistency
// check that triggers incremental repair.
func (idx *Index) NoteCount() (int, error) {
	var n int
	err := idx.db.QueryRow(`SELECT count(*) FROM notes`).Scan(&n)
	if err != nil {
		return 0, qipuerrors.Wrap(qipuerrors.Index, err, "count notes")
	}
	return n, nil
}

// RecordCheckpoint appends a resume-point row for a large incremental
// rebuild.
func (idx *Index) RecordCheckpoint(batchNumber int, lastNoteID, createdAt string) error {
	_, err := idx.db.Exec(`INSERT INTO indexing_checkpoints(batch_number, last_note_id, created_at)
		VALUES (?, ?, ?)`, batchNumber, lastNoteID, createdAt)
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "record checkpoint")
	}
	return nil
}

// LatestCheckpoint returns the highest-numbered checkpoint recorded by
// RecordCheckpoint, if any. ok is false when indexing_checkpoints is
// empty, meaning a repair should start from the beginning.
func (idx *Index) LatestCheckpoint() (batchNumber int, lastNoteID string, ok bool, err error) {
	row := idx.db.QueryRow(`SELECT batch_number, last_note_id FROM indexing_checkpoints
		ORDER BY batch_number DESC LIMIT 1`)
	if scanErr := row.Scan(&batchNumber, &lastNoteID); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, "", false, nil
		}
		return 0, "", false, qipuerrors.Wrap(qipuerrors.Index, scanErr, "read latest checkpoint")
	}
	return batchNumber, lastNoteID, true, nil
}

// ClearCheckpoints removes all recorded checkpoints, called once a
// rebuild completes without interruption so a future repair doesn't skip
// work based on stale progress.
func (idx *Index) ClearCheckpoints() error {
	if _, err := idx.db.Exec(`DELETE FROM indexing_checkpoints`); err != nil {
		return qipuerrors.Wrap(qipuerrors.Index, err, "clear checkpoints")
	}
	return nil
}

// FTSMatch runs a raw FTS5 MATCH query over notes_fts and returns
// matching note ids sorted ascending by id. Ranking itself happens in
// internal/search against the in-memory graph.Index, not here; this is
// strictly the candidate-set lookup the spec's FTS table provides.
func (idx *Index) FTSMatch(query string) ([]string, error) {
	rows, err := idx.db.Query(`SELECT notes.id FROM notes_fts
		JOIN notes ON notes.rowid = notes_fts.rowid
		WHERE notes_fts MATCH ? ORDER BY notes_fts.rowid`, query)
	if err != nil {
		return nil, qipuerrors.Wrap(qipuerrors.Index, err, "fts match")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, qipuerrors.Wrap(qipuerrors.Index, err, "scan fts match row")
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rows.Err()
}
