package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	if cfg.DefaultNoteType != "fleeting" {
		t.Fatalf("expected default_note_type=fleeting, got %q", cfg.DefaultNoteType)
	}
	if cfg.Stemming != true {
		t.Fatalf("expected stemming=true by default")
	}
	if cfg.Search.RecencyBoostNumerator != 0.1 {
		t.Fatalf("expected recency_boost_numerator=0.1, got %v", cfg.Search.RecencyBoostNumerator)
	}
	if cfg.Search.RecencyDecayDays != 7.0 {
		t.Fatalf("expected recency_decay_days=7.0, got %v", cfg.Search.RecencyDecayDays)
	}
	if cfg.AutoIndex.AdaptiveThreshold != 10000 {
		t.Fatalf("expected adaptive_threshold=10000, got %v", cfg.AutoIndex.AdaptiveThreshold)
	}
	if cfg.AutoIndex.QuickNotes != 100 {
		t.Fatalf("expected quick_notes=100, got %v", cfg.AutoIndex.QuickNotes)
	}
	if cfg.Ontology.Mode != "default" {
		t.Fatalf("expected ontology mode=default, got %q", cfg.Ontology.Mode)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultNoteType != Default().DefaultNoteType {
		t.Fatalf("expected defaults for a missing file, got %+v", cfg)
	}
}

func TestLoadParsesGraphTypesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
default_note_type = "permanent"
stemming = false

[graph.types.cites]
inverse = "cited-by"
cost = 0.75
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path, Default())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultNoteType != "permanent" {
		t.Fatalf("expected permanent, got %q", cfg.DefaultNoteType)
	}
	if cfg.Stemming {
		t.Fatalf("expected stemming=false to override default")
	}
	def, ok := cfg.GraphTypes["cites"]
	if !ok {
		t.Fatal("expected graph.types.cites to be parsed")
	}
	if def.Inverse != "cited-by" || def.Cost != 0.75 {
		t.Fatalf("unexpected graph type def: %+v", def)
	}
}

func TestResolveStoreLocalTakesPrecedence(t *testing.T) {
	globalDir := t.TempDir()
	t.Setenv("QIPU_CONFIG_DIR", globalDir)
	if err := os.WriteFile(filepath.Join(globalDir, "config.toml"), []byte(`default_note_type = "literature"`), 0o644); err != nil {
		t.Fatalf("WriteFile global: %v", err)
	}

	localPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(localPath, []byte(`default_note_type = "permanent"`), 0o644); err != nil {
		t.Fatalf("WriteFile local: %v", err)
	}

	cfg, err := Resolve(localPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DefaultNoteType != "permanent" {
		t.Fatalf("expected store-local to win, got %q", cfg.DefaultNoteType)
	}
}

func TestResolveGlobalSectionSurvivesUnrelatedLocalFile(t *testing.T) {
	globalDir := t.TempDir()
	t.Setenv("QIPU_CONFIG_DIR", globalDir)
	globalContents := `
[search]
recency_boost_numerator = 0.5

[ontology]
mode = "extended"
`
	if err := os.WriteFile(filepath.Join(globalDir, "config.toml"), []byte(globalContents), 0o644); err != nil {
		t.Fatalf("WriteFile global: %v", err)
	}

	localPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(localPath, []byte(`default_note_type = "permanent"`), 0o644); err != nil {
		t.Fatalf("WriteFile local: %v", err)
	}

	cfg, err := Resolve(localPath)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DefaultNoteType != "permanent" {
		t.Fatalf("expected store-local default_note_type to win, got %q", cfg.DefaultNoteType)
	}
	if cfg.Search.RecencyBoostNumerator != 0.5 {
		t.Fatalf("expected global search.recency_boost_numerator=0.5 to survive, got %v", cfg.Search.RecencyBoostNumerator)
	}
	if cfg.Ontology.Mode != "extended" {
		t.Fatalf("expected global ontology.mode=extended to survive, got %q", cfg.Ontology.Mode)
	}
}

func TestStoreEnvOverride(t *testing.T) {
	t.Setenv("QIPU_STORE", "/tmp/somewhere")
	if got := StoreEnvOverride(); got != "/tmp/somewhere" {
		t.Fatalf("expected env override, got %q", got)
	}
}
