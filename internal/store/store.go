// Package store implements the store root: discovery of the control
// directory, note CRUD against the filesystem, and the doctor diagnostic
// that compares disk state against the SQLite index. File writes go
// through github.com/natefinch/atomic so a crash between write and
// rename never leaves a torn note file.
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mwaldstein/qipu/internal/config"
	"github.com/mwaldstein/qipu/internal/extractor"
	"github.com/mwaldstein/qipu/internal/logging"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qipuerrors"
	"github.com/mwaldstein/qipu/internal/storage/sqlite"
	"github.com/mwaldstein/qipu/internal/textutil"
)

// stealthDir and visibleDir are the two accepted control-directory names.
// Discover() and open() recognize either form; Init() creates the stealth
// form unless Options.Visible is set.
const (
	stealthDir = ".qipu"
	visibleDir = "qipu"

	configFileName = "config.toml"
	dbFileName     = "qipu.db"
	notesDirName   = "notes"
)

// Store is an open store root: its control directory, parsed
// configuration, and a handle on the SQLite secondary index.
type Store struct {
	RootPath    string // directory containing the control subdirectory
	ControlPath string // <RootPath>/.qipu or <RootPath>/qipu
	NotesPath   string
	Config      config.Config
	Index       *sqlite.Index
	Logger      *slog.Logger
}

// Options configures Init.
type Options struct {
	Visible         bool // use the "qipu" control dir instead of ".qipu"
	DefaultNoteType string
}

// Init creates a new store rooted at path: the control directory, an
// empty notes/ subdirectory, a config.toml seeded with documented
// defaults, and a fresh SQLite index.
func Init(path string, opts Options) (*Store, error) {
	controlName := stealthDir
	if opts.Visible {
		controlName = visibleDir
	}
	controlPath := filepath.Join(path, controlName)
	if _, err := os.Stat(controlPath); err == nil {
		return nil, qipuerrors.Newf(qipuerrors.Invalid, "store already initialized at %s", controlPath).WithToken(controlPath)
	}

	notesPath := filepath.Join(controlPath, notesDirName)
	if err := os.MkdirAll(notesPath, 0o755); err != nil {
		return nil, qipuerrors.Wrap(qipuerrors.Io, err, "create control directory").WithToken(controlPath)
	}

	cfg := config.Default()
	if opts.DefaultNoteType != "" {
		cfg.DefaultNoteType = opts.DefaultNoteType
	}
	if err := writeDefaultConfig(filepath.Join(controlPath, configFileName), cfg); err != nil {
		return nil, err
	}

	idx, err := sqlite.Open(filepath.Join(controlPath, dbFileName))
	if err != nil {
		return nil, err
	}

	logger := logging.New(controlPath)
	logger.Info("store initialized", "root", path, "control_dir", controlName)
	return &Store{RootPath: path, ControlPath: controlPath, NotesPath: notesPath, Config: cfg, Index: idx, Logger: logger}, nil
}

// writeDefaultConfig renders a header comment plus only the version and
// default_note_type keys: Default() already supplies every other value, so
// a fresh store's config.toml stays legible instead of dumping every
// default key.
func writeDefaultConfig(path string, cfg config.Config) error {
	body := "# qipu store configuration. Unset keys fall back to documented defaults.\n" +
		"version = " + itoa(cfg.Version) + "\n" +
		"default_note_type = \"" + cfg.DefaultNoteType + "\"\n"
	return os.WriteFile(path, []byte(body), 0o644)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// Discover walks upward from startDir looking for a control subdirectory
// (either accepted form), stopping at the filesystem root. It returns the
// directory that contains the control subdirectory, not the control
// subdirectory itself.
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", qipuerrors.Wrap(qipuerrors.Io, err, "resolve absolute path").WithToken(startDir)
	}
	for {
		for _, name := range []string{stealthDir, visibleDir} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", qipuerrors.New(qipuerrors.NotFound, "no qipu store found above "+startDir)
}

// Open discovers and opens the store rooted above startDir, resolving
// config with internal/config.Resolve (global config merged under the
// store-local one) and opening the SQLite index.
func Open(startDir string) (*Store, error) {
	root, err := Discover(startDir)
	if err != nil {
		return nil, err
	}
	return open(root)
}

func open(root string) (*Store, error) {
	controlPath := ""
	for _, name := range []string{stealthDir, visibleDir} {
		candidate := filepath.Join(root, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			controlPath = candidate
			break
		}
	}
	if controlPath == "" {
		return nil, qipuerrors.New(qipuerrors.NotFound, "no control directory under "+root)
	}

	cfg, err := config.Resolve(filepath.Join(controlPath, configFileName))
	if err != nil {
		return nil, err
	}

	idx, err := sqlite.Open(filepath.Join(controlPath, dbFileName))
	if err != nil {
		return nil, err
	}

	logger := logging.New(controlPath)
	return &Store{
		RootPath:    root,
		ControlPath: controlPath,
		NotesPath:   filepath.Join(controlPath, notesDirName),
		Config:      cfg,
		Index:       idx,
		Logger:      logger,
	}, nil
}

// Close releases the store's SQLite handle.
func (s *Store) Close() error {
	if s.Index == nil {
		return nil
	}
	return s.Index.Close()
}

// ListNotes returns every note path under the store's notes directory, in
// stable (lexical) order.
func (s *Store) ListNotes() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.NotesPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, qipuerrors.Wrap(qipuerrors.Io, err, "walk notes directory").WithToken(s.NotesPath)
	}
	sort.Strings(paths)
	return paths, nil
}

// AllNotes satisfies graph.NoteSource: it parses every note file under
// the store's notes directory in stable order.
func (s *Store) AllNotes() ([]*note.Note, error) {
	paths, err := s.ListNotes()
	if err != nil {
		return nil, err
	}
	notes := make([]*note.Note, 0, len(paths))
	for _, path := range paths {
		n, err := s.readNote(path)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func (s *Store) readNote(path string) (*note.Note, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, qipuerrors.Wrap(qipuerrors.Io, err, "read note file").WithToken(path)
	}
	n, err := note.Parse(string(raw))
	if err != nil {
		return nil, err
	}
	n.Path = path
	return n, nil
}

// GetNote resolves idOrPath to a parsed note: a direct filesystem path is
// read as-is, otherwise the first note file (in ListNotes order) whose
// name is `<id>.md` or starts with `<id>-` is read.
func (s *Store) GetNote(idOrPath string) (*note.Note, error) {
	if _, err := os.Stat(idOrPath); err == nil {
		return s.readNote(idOrPath)
	}
	paths, err := s.ListNotes()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if strings.HasPrefix(filepath.Base(path), idOrPath+"-") || filepath.Base(path) == idOrPath+".md" {
			return s.readNote(path)
		}
	}
	return nil, qipuerrors.Newf(qipuerrors.NotFound, "no note with id %q", idOrPath).WithToken(idOrPath)
}

// idExists reports whether id already appears in the SQLite index.
func (s *Store) idExists(id string) (bool, error) {
	mtimes, err := s.Index.NoteMtimes()
	if err != nil {
		return false, err
	}
	_, ok := mtimes[id]
	return ok, nil
}

// CreateNote assigns a new id, stamps created/updated to now, writes the
// file, and indexes it.
func (s *Store) CreateNote(title, noteType string, tags []string, value *int) (*note.Note, error) {
	id, err := textutil.GenerateID(s.idExists)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	n := &note.Note{
		ID:      id,
		Title:   title,
		Type:    noteType,
		Tags:    tags,
		Value:   value,
		Created: now,
		Updated: now,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	n.Path = filepath.Join(s.NotesPath, note.Filename(id, textutil.Slug(title)))
	if err := s.writeAndIndex(n); err != nil {
		return nil, err
	}
	return n, nil
}

// SaveNote stamps updated=now, rewrites the file atomically (renaming if
// the title-derived slug changed), and re-indexes it.
func (s *Store) SaveNote(n *note.Note) error {
	if err := n.Validate(); err != nil {
		return err
	}
	n.Updated = time.Now().UTC()

	wantPath := filepath.Join(filepath.Dir(n.Path), note.Filename(n.ID, textutil.Slug(n.Title)))
	if n.Path == "" {
		wantPath = filepath.Join(s.NotesPath, note.Filename(n.ID, textutil.Slug(n.Title)))
	}
	oldPath := n.Path
	n.Path = wantPath

	if err := s.writeAndIndex(n); err != nil {
		return err
	}
	if oldPath != "" && oldPath != wantPath {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return qipuerrors.Wrap(qipuerrors.Io, err, "remove renamed note file").WithToken(oldPath)
		}
	}
	return nil
}

// writeAndIndex serializes n, writes it atomically (write-to-temp,
// rename), and upserts the resulting row plus edges into the SQLite
// index.
func (s *Store) writeAndIndex(n *note.Note) error {
	text, err := n.Serialize()
	if err != nil {
		return err
	}
	if err := atomicWrite(n.Path, text); err != nil {
		return err
	}

	info, err := os.Stat(n.Path)
	if err != nil {
		return qipuerrors.Wrap(qipuerrors.Io, err, "stat written note").WithToken(n.Path)
	}

	return s.indexNote(n, info.ModTime().UnixNano())
}

func (s *Store) indexNote(n *note.Note, mtime int64) error {
	row := sqlite.NoteRow{
		ID: n.ID, Title: n.Title, Type: n.ResolvedType(), Path: n.Path,
		Body: n.Body, MtimeNanos: mtime, Compacts: n.Compacts, Author: n.Author,
		Source: n.Source, GeneratedBy: n.GeneratedBy, PromptHash: n.PromptHash,
		Tags: n.Tags, IndexLevel: 2, CustomJSON: customJSON(n.Custom),
	}
	if !n.Created.IsZero() {
		row.Created = n.Created.UTC().Format(note.TimeFormat)
	}
	if !n.Updated.IsZero() {
		row.Updated = n.Updated.UTC().Format(note.TimeFormat)
	}
	row.Value = n.Value
	row.Verified = n.Verified
	if len(n.Sources) > 0 {
		urls := make([]string, len(n.Sources))
		for i, src := range n.Sources {
			urls[i] = src.URL
		}
		row.Sources = strings.Join(urls, ",")
	}
	if err := s.Index.UpsertNote(row); err != nil {
		return err
	}

	validIDs, err := s.validIDs()
	if err != nil {
		return err
	}
	pathToID := map[string]string{n.Path: n.ID}
	edges, unresolved := extractor.Extract(n, validIDs, pathToID, filepath.Dir(n.Path))
	rows := make([]sqlite.EdgeRow, len(edges))
	for i, e := range edges {
		rows[i] = sqlite.EdgeRow{SourceID: e.From, TargetID: e.To, LinkType: e.LinkType, Inline: e.Source == extractor.SourceInline, Position: e.Position}
	}
	return s.Index.ReplaceEdges(n.ID, rows, unresolved)
}

// customJSON marshals a note's arbitrary custom map, defaulting to the
// empty object so the column is never blank.
func customJSON(custom map[string]interface{}) string {
	if len(custom) == 0 {
		return "{}"
	}
	b, err := json.Marshal(custom)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (s *Store) validIDs() (map[string]struct{}, error) {
	mtimes, err := s.Index.NoteMtimes()
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(mtimes))
	for id := range mtimes {
		ids[id] = struct{}{}
	}
	return ids, nil
}

// DeleteNote removes a note's file and its index rows.
func (s *Store) DeleteNote(id string) error {
	n, err := s.GetNote(id)
	if err != nil {
		return err
	}
	if err := os.Remove(n.Path); err != nil && !os.IsNotExist(err) {
		return qipuerrors.Wrap(qipuerrors.Io, err, "remove note file").WithToken(n.Path)
	}
	return s.Index.DeleteNote(n.ID)
}
