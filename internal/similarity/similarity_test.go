package similarity

import (
	"math"
	"testing"

	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/textutil"
)

type fakeSource struct{ notes []*note.Note }

func (f *fakeSource) AllNotes() ([]*note.Note, error) { return f.notes, nil }

func buildIndex(t *testing.T, notes []*note.Note) *graph.Index {
	t.Helper()
	idx, err := graph.Build(&fakeSource{notes: notes}, textutil.NewTokenizer(false))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

func TestCosineIdenticalVectors(t *testing.T) {
	v := Vector{"alpha": 2.0, "beta": 1.0}
	if got := Cosine(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("expected cosine(v,v)=1, got %v", got)
	}
}

func TestCosineOrthogonalVectors(t *testing.T) {
	a := Vector{"alpha": 1.0}
	b := Vector{"beta": 1.0}
	if got := Cosine(a, b); got != 0 {
		t.Fatalf("expected 0 for disjoint terms, got %v", got)
	}
}

func TestCosineEmptyVector(t *testing.T) {
	if got := Cosine(Vector{}, Vector{"a": 1}); got != 0 {
		t.Fatalf("expected 0 for empty vector, got %v", got)
	}
}

func TestNearDuplicatesFindsHighOverlap(t *testing.T) {
	a := &note.Note{ID: "qp-a", Title: "distributed systems consensus", Body: "raft paxos consensus algorithm details"}
	b := &note.Note{ID: "qp-b", Title: "distributed systems consensus", Body: "raft paxos consensus algorithm details here"}
	c := &note.Note{ID: "qp-c", Title: "baking bread", Body: "flour water yeast salt"}
	idx := buildIndex(t, []*note.Note{a, b, c})

	pairs := NearDuplicates(idx, DefaultThreshold)
	found := false
	for _, p := range pairs {
		if (p.A == "qp-a" && p.B == "qp-b") || (p.A == "qp-b" && p.B == "qp-a") {
			found = true
		}
		if p.A == "qp-c" || p.B == "qp-c" {
			t.Fatalf("qp-c should not appear as a near-duplicate, got %+v", p)
		}
	}
	if !found {
		t.Fatalf("expected qp-a/qp-b to be flagged as near-duplicates, got %+v", pairs)
	}
}

func TestNearDuplicatesDescendingScoreOrder(t *testing.T) {
	a := &note.Note{ID: "qp-a", Body: "alpha beta gamma delta"}
	b := &note.Note{ID: "qp-b", Body: "alpha beta gamma delta"}
	c := &note.Note{ID: "qp-c", Body: "alpha beta gamma epsilon"}
	idx := buildIndex(t, []*note.Note{a, b, c})
	pairs := NearDuplicates(idx, 0.5)
	for i := 1; i < len(pairs); i++ {
		if pairs[i].Score > pairs[i-1].Score {
			t.Fatalf("pairs not in descending score order: %+v", pairs)
		}
	}
}
