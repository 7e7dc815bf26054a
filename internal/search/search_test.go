package search

import (
	"testing"
	"time"

	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/textutil"
)

func buildIndex(t *testing.T, notes []*note.Note) *graph.Index {
	t.Helper()
	src := &fakeSource{notes: notes}
	idx, err := graph.Build(src, textutil.NewTokenizer(false))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

type fakeSource struct{ notes []*note.Note }

func (f *fakeSource) AllNotes() ([]*note.Note, error) { return f.notes, nil }

func TestEmptyQueryReturnsEmpty(t *testing.T) {
	idx := buildIndex(t, []*note.Note{{ID: "qp-a", Title: "Alpha", Body: "some text"}})
	res := Search(idx, textutil.NewTokenizer(false), "", Filters{}, nil, time.Now())
	if len(res) != 0 {
		t.Fatalf("expected empty result for empty query, got %v", res)
	}
}

func TestSearchRanksTitleMatchAboveBodyOnly(t *testing.T) {
	a := &note.Note{ID: "qp-a", Title: "zephyr notes", Body: "unrelated content here", Updated: fixedTime()}
	b := &note.Note{ID: "qp-b", Title: "other", Body: "mentions zephyr once in passing", Updated: fixedTime()}
	idx := buildIndex(t, []*note.Note{a, b})
	res := Search(idx, textutil.NewTokenizer(false), "zephyr", Filters{}, nil, fixedTime())
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %+v", res)
	}
	if res[0].ID != "qp-a" {
		t.Fatalf("expected title match to rank first, got %+v", res)
	}
}

func TestSearchTypeFilter(t *testing.T) {
	a := &note.Note{ID: "qp-a", Title: "widget design", Type: "permanent", Updated: fixedTime()}
	b := &note.Note{ID: "qp-b", Title: "widget sketch", Type: "fleeting", Updated: fixedTime()}
	idx := buildIndex(t, []*note.Note{a, b})
	res := Search(idx, textutil.NewTokenizer(false), "widget", Filters{Type: "fleeting"}, nil, fixedTime())
	if len(res) != 1 || res[0].ID != "qp-b" {
		t.Fatalf("expected only qp-b, got %+v", res)
	}
}

func TestSearchTagAliasExpansion(t *testing.T) {
	a := &note.Note{ID: "qp-a", Title: "project plan", Tags: []string{"project-management"}, Updated: fixedTime()}
	idx := buildIndex(t, []*note.Note{a})
	aliases := map[string]string{"pm": "project-management"}
	res := Search(idx, textutil.NewTokenizer(false), "project", Filters{Tags: []string{"pm"}}, aliases, fixedTime())
	if len(res) != 1 {
		t.Fatalf("expected alias-expanded tag filter to match, got %+v", res)
	}
}

func TestSearchExcludeMocs(t *testing.T) {
	a := &note.Note{ID: "qp-a", Title: "index of topics", Type: "moc", Updated: fixedTime()}
	idx := buildIndex(t, []*note.Note{a})
	res := Search(idx, textutil.NewTokenizer(false), "topics", Filters{ExcludeMocs: true}, nil, fixedTime())
	if len(res) != 0 {
		t.Fatalf("expected moc excluded, got %+v", res)
	}
}

func TestSearchMOCScope(t *testing.T) {
	moc := &note.Note{ID: "qp-moc", Title: "topic index", Type: "moc",
		Links: []note.Link{{To: "qp-in", LinkType: "related"}}, Updated: fixedTime()}
	in := &note.Note{ID: "qp-in", Title: "widget detail", Updated: fixedTime()}
	out := &note.Note{ID: "qp-out", Title: "widget unrelated", Updated: fixedTime()}
	idx := buildIndex(t, []*note.Note{moc, in, out})
	res := Search(idx, textutil.NewTokenizer(false), "widget", Filters{MOC: "qp-moc"}, nil, fixedTime())
	if len(res) != 1 || res[0].ID != "qp-in" {
		t.Fatalf("expected only qp-in within moc scope, got %+v", res)
	}
}

func fixedTime() time.Time {
	return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
}
