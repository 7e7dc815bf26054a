// Package config loads and resolves store configuration from
// config.toml, merging store-local settings over a global config file
// and applying the defaults documented in SPEC_FULL.md's AMBIENT STACK
// section.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

const (
	envConfigDir = "QIPU_CONFIG_DIR"
	envStore     = "QIPU_STORE"
)

// LinkTypeConfig mirrors a `graph.types.NAME` or `ontology.link_types.NAME`
// table.
type LinkTypeConfig struct {
	Inverse     string  `toml:"inverse"`
	Description string  `toml:"description"`
	Cost        float32 `toml:"cost"`
	Usage       string  `toml:"usage"`
}

// NoteTypeConfig mirrors an `ontology.note_types.NAME` table.
type NoteTypeConfig struct {
	Description string `toml:"description"`
	Usage       string `toml:"usage"`
}

// AutoIndexConfig mirrors the `auto_index` section.
type AutoIndexConfig struct {
	Enabled           bool   `toml:"enabled"`
	Strategy          string `toml:"strategy"`
	AdaptiveThreshold int    `toml:"adaptive_threshold"`
	QuickNotes        int    `toml:"quick_notes"`
}

// SearchConfig mirrors the `search` section.
type SearchConfig struct {
	RecencyBoostNumerator float64 `toml:"recency_boost_numerator"`
	RecencyDecayDays      float64 `toml:"recency_decay_days"`
}

// OntologyConfig mirrors the `ontology` section.
type OntologyConfig struct {
	Mode      string                    `toml:"mode"`
	NoteTypes map[string]NoteTypeConfig `toml:"note_types"`
	LinkTypes map[string]LinkTypeConfig `toml:"link_types"`
}

// Config is the fully-parsed, default-filled contents of config.toml.
type Config struct {
	Version          int                       `toml:"version"`
	DefaultNoteType  string                    `toml:"default_note_type"`
	IDScheme         string                    `toml:"id_scheme"`
	Editor           string                    `toml:"editor"`
	Branch           string                    `toml:"branch"`
	StorePath        string                    `toml:"store_path"`
	RewriteWikiLinks bool                      `toml:"rewrite_wiki_links"`
	Stemming         bool                      `toml:"stemming"`
	TagAliases       map[string]string         `toml:"tag_aliases"`
	GraphTypes       map[string]LinkTypeConfig `toml:"-"` // populated from [graph.types.NAME]
	AutoIndex        AutoIndexConfig           `toml:"auto_index"`
	Search           SearchConfig              `toml:"search"`
	Ontology         OntologyConfig            `toml:"ontology"`
}

// rawGraph captures the `[graph.types.NAME]` table shape, which TOML
// nests one level deeper than the rest of the flat sections above.
type rawGraph struct {
	Types map[string]LinkTypeConfig `toml:"types"`
}

type rawConfig struct {
	Config
	Graph rawGraph `toml:"graph"`
}

// Default returns a Config with every option at its documented default.
func Default() Config {
	return Config{
		Version:          1,
		DefaultNoteType:  "fleeting",
		IDScheme:         "random",
		RewriteWikiLinks: false,
		Stemming:         true,
		TagAliases:       map[string]string{},
		GraphTypes:       map[string]LinkTypeConfig{},
		AutoIndex: AutoIndexConfig{
			Enabled:           true,
			Strategy:          "adaptive",
			AdaptiveThreshold: 10000,
			QuickNotes:        100,
		},
		Search: SearchConfig{
			RecencyBoostNumerator: 0.1,
			RecencyDecayDays:      7.0,
		},
		Ontology: OntologyConfig{
			Mode:      "default",
			NoteTypes: map[string]NoteTypeConfig{},
			LinkTypes: map[string]LinkTypeConfig{},
		},
	}
}

// Load reads and parses a config.toml at path, decoding its contents on
// top of base. Only keys actually present in the file change anything;
// everything else is left exactly as base had it. A missing file is not
// an error; Load returns base unchanged.
//
// Decoding on top of a base rather than always starting from Default()
// is what lets Resolve layer a store-local file over a global one
// without either layer's own defaults masking the other's real values.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, qipuerrors.Wrap(qipuerrors.Io, err, "read config file").WithToken(path)
	}

	raw := rawConfig{Config: base}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return base, qipuerrors.Wrap(qipuerrors.Invalid, err, "parse config.toml").WithToken(path)
	}
	if len(raw.Graph.Types) > 0 {
		raw.Config.GraphTypes = raw.Graph.Types
	}
	return raw.Config, nil
}

// GlobalConfigPath returns the path to the global config.toml, honoring
// QIPU_CONFIG_DIR, falling back to os.UserConfigDir()/qipu/config.toml.
func GlobalConfigPath() (string, error) {
	if dir := os.Getenv(envConfigDir); dir != "" {
		return filepath.Join(dir, "config.toml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", qipuerrors.Wrap(qipuerrors.Io, err, "resolve user config dir")
	}
	return filepath.Join(dir, "qipu", "config.toml"), nil
}

// Resolve loads the global config.toml (if present) then the store-local
// one at localPath on top of it, so a key set only globally survives and
// a key set locally overrides it.
func Resolve(localPath string) (Config, error) {
	cfg := Default()
	if globalPath, err := GlobalConfigPath(); err == nil {
		if loaded, err := Load(globalPath, cfg); err == nil {
			cfg = loaded
		}
	}
	return Load(localPath, cfg)
}

// StoreEnvOverride returns the store root path from QIPU_STORE, or "" if
// unset.
func StoreEnvOverride() string {
	return os.Getenv(envStore)
}
