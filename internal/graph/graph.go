// Package graph builds the in-memory Index: note metadata, the edge
// list, per-tag id lists, and the term-frequency tables BM25F search and
// TF-IDF similarity both read from. The Index is a pure function of the
// notes a NoteSource returns; building never mutates the store.
package graph

import (
	"path/filepath"
	"sort"

	"github.com/mwaldstein/qipu/internal/extractor"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/textutil"
)

// Field weights for BM25F scoring. Invariant (spec §8.6): title > tags >
// body.
const (
	WeightTitle = 2.0
	WeightTags  = 1.5
	WeightBody  = 1.0
)

// Metadata is the subset of a note's fields the index keeps for ranking,
// filtering, and traversal without re-reading the file.
type Metadata struct {
	ID       string
	Title    string
	Type     string
	Tags     []string
	Value    int
	Created  string
	Updated  string
	Compacts []string
	Path     string
}

// NoteSource supplies every note currently in a store, in a stable order.
type NoteSource interface {
	AllNotes() ([]*note.Note, error)
}

// Index is the read-only, rebuildable snapshot described in spec §3.
type Index struct {
	Metadata   map[string]*Metadata
	Edges      []extractor.Edge
	Tags       map[string][]string // tag -> sorted ids
	NoteTerms  map[string]map[string]float64
	TermDF     map[string]int
	DocLengths map[string]float64
	TotalDocs  int
	TotalLen   float64
	Unresolved map[string][]string // source id -> raw unresolved targets
}

// Build loads every note from src once, extracts edges, and accumulates
// field-weighted term statistics for BM25F/TF-IDF.
func Build(src NoteSource, tok *textutil.Tokenizer) (*Index, error) {
	notes, err := src.AllNotes()
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Metadata:   make(map[string]*Metadata, len(notes)),
		Tags:       make(map[string][]string),
		NoteTerms:  make(map[string]map[string]float64),
		TermDF:     make(map[string]int),
		DocLengths: make(map[string]float64),
		Unresolved: make(map[string][]string),
	}

	validIDs := make(map[string]struct{}, len(notes))
	pathToID := make(map[string]string, len(notes))
	for _, n := range notes {
		validIDs[n.ID] = struct{}{}
		if n.Path != "" {
			pathToID[filepath.Clean(n.Path)] = n.ID
		}
	}

	for _, n := range notes {
		idx.Metadata[n.ID] = &Metadata{
			ID:       n.ID,
			Title:    n.Title,
			Type:     n.ResolvedType(),
			Tags:     append([]string(nil), n.Tags...),
			Value:    n.ResolvedValue(),
			Created:  n.Created.Format(note.TimeFormat),
			Updated:  n.Updated.Format(note.TimeFormat),
			Compacts: append([]string(nil), n.Compacts...),
			Path:     n.Path,
		}
		for _, tag := range n.Tags {
			idx.Tags[tag] = append(idx.Tags[tag], n.ID)
		}

		noteDir := ""
		if n.Path != "" {
			noteDir = filepath.Dir(n.Path)
		}
		edges, unresolved := extractor.Extract(n, validIDs, pathToID, noteDir)
		idx.Edges = append(idx.Edges, edges...)
		if len(unresolved) > 0 {
			idx.Unresolved[n.ID] = unresolved
		}

		weighted := weightedTermFrequencies(tok, n)
		idx.NoteTerms[n.ID] = weighted
		docLen := 0.0
		seenTerms := make(map[string]struct{}, len(weighted))
		for term, freq := range weighted {
			docLen += freq
			if _, ok := seenTerms[term]; !ok {
				idx.TermDF[term]++
				seenTerms[term] = struct{}{}
			}
		}
		idx.DocLengths[n.ID] = docLen
		idx.TotalLen += docLen
	}

	idx.TotalDocs = len(notes)

	sort.Slice(idx.Edges, func(i, j int) bool {
		a, b := idx.Edges[i], idx.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.LinkType != b.LinkType {
			return a.LinkType < b.LinkType
		}
		return a.To < b.To
	})
	for tag := range idx.Tags {
		sort.Strings(idx.Tags[tag])
	}

	return idx, nil
}

// weightedTermFrequencies tokenizes title, tags, and body separately and
// accumulates field-weighted raw counts into one per-note term vector.
func weightedTermFrequencies(tok *textutil.Tokenizer, n *note.Note) map[string]float64 {
	weighted := make(map[string]float64)
	for term, count := range tok.TermFrequencies(n.Title) {
		weighted[term] += float64(count) * WeightTitle
	}
	for term, count := range tok.TermFrequencies(joinTags(n.Tags)) {
		weighted[term] += float64(count) * WeightTags
	}
	for term, count := range tok.TermFrequencies(n.Body) {
		weighted[term] += float64(count) * WeightBody
	}
	return weighted
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}
