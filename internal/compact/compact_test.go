package compact

import (
	"testing"

	"github.com/mwaldstein/qipu/internal/extractor"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
)

func TestCanonIdempotent(t *testing.T) {
	compactedBy := map[string]string{"qp-a": "qp-digest", "qp-b": "qp-digest"}
	for _, id := range []string{"qp-a", "qp-b", "qp-digest", "qp-unrelated"} {
		c1 := Canon(id, compactedBy)
		c2 := Canon(c1, compactedBy)
		if c1 != c2 {
			t.Fatalf("canon not idempotent for %q: canon=%q canon(canon)=%q", id, c1, c2)
		}
	}
}

func TestCanonNoCompactorIsSelf(t *testing.T) {
	if got := Canon("qp-standalone", map[string]string{}); got != "qp-standalone" {
		t.Fatalf("expected self for uncompacted id, got %q", got)
	}
}

func TestCanonFollowsChainTransitively(t *testing.T) {
	compactedBy := map[string]string{"qp-a": "qp-b", "qp-b": "qp-c"}
	if got := Canon("qp-a", compactedBy); got != "qp-c" {
		t.Fatalf("expected transitive canon qp-c, got %q", got)
	}
}

func TestApplyMergesAndDedups(t *testing.T) {
	digest := &note.Note{ID: "qp-digest", Compacts: []string{"qp-a"}}
	known := map[string]struct{}{"qp-a": {}, "qp-b": {}}
	if err := Apply(digest, []string{"qp-a", "qp-b"}, known, map[string]string{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(digest.Compacts) != 2 || digest.Compacts[0] != "qp-a" || digest.Compacts[1] != "qp-b" {
		t.Fatalf("expected deduplicated sorted union, got %v", digest.Compacts)
	}
}

func TestApplyRejectsSelfCompaction(t *testing.T) {
	digest := &note.Note{ID: "qp-digest"}
	known := map[string]struct{}{"qp-digest": {}}
	if err := Apply(digest, []string{"qp-digest"}, known, map[string]string{}); err == nil {
		t.Fatal("expected error compacting self")
	}
}

func TestApplyRejectsUnknownID(t *testing.T) {
	digest := &note.Note{ID: "qp-digest"}
	if err := Apply(digest, []string{"qp-missing"}, map[string]struct{}{}, map[string]string{}); err == nil {
		t.Fatal("expected error for unknown compacted id")
	}
}

func TestApplyRejectsCycle(t *testing.T) {
	digest := &note.Note{ID: "qp-a"}
	known := map[string]struct{}{"qp-a": {}, "qp-b": {}}
	compactedBy := map[string]string{"qp-a": "qp-b"}
	if err := Apply(digest, []string{"qp-b"}, known, compactedBy); err == nil {
		t.Fatal("expected error for cyclic compaction")
	}
}

// TestSuggestTwoTrianglesAndIsolatedNote covers scenario E: a graph made
// of two triangles plus one isolated note yields exactly two candidates,
// with the lower-average-value cluster ranked first.
func TestSuggestTwoTrianglesAndIsolatedNote(t *testing.T) {
	idx := &graph.Index{Metadata: map[string]*graph.Metadata{}}
	lowValue := []string{"qp-l1", "qp-l2", "qp-l3"}
	highValue := []string{"qp-h1", "qp-h2", "qp-h3"}
	for _, id := range lowValue {
		idx.Metadata[id] = &graph.Metadata{ID: id, Value: 10}
	}
	for _, id := range highValue {
		idx.Metadata[id] = &graph.Metadata{ID: id, Value: 70}
	}
	idx.Metadata["qp-isolated"] = &graph.Metadata{ID: "qp-isolated", Value: 50}

	triangle := func(ids []string) {
		idx.Edges = append(idx.Edges,
			edge(ids[0], ids[1]), edge(ids[1], ids[2]), edge(ids[2], ids[0]))
	}
	triangle(lowValue)
	triangle(highValue)

	candidates := Suggest(idx, func(id string) int { return 200 })
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", candidates)
	}
	if candidates[0].AvgValue >= candidates[1].AvgValue {
		t.Fatalf("expected lower-average-value cluster ranked first, got %+v", candidates)
	}
	for _, c := range candidates {
		for _, id := range c.IDs {
			if id == "qp-isolated" {
				t.Fatalf("isolated note must not appear in any candidate: %+v", c)
			}
		}
	}
}

func edge(from, to string) extractor.Edge {
	return extractor.Edge{From: from, To: to, LinkType: "related", Source: extractor.SourceTyped}
}

func TestSuggestDiscardsLowCohesion(t *testing.T) {
	idx := &graph.Index{Metadata: map[string]*graph.Metadata{}}
	cluster := []string{"qp-a", "qp-b", "qp-c"}
	for _, id := range cluster {
		idx.Metadata[id] = &graph.Metadata{ID: id, Value: 50}
	}
	// A path connects the cluster into one component, but each member
	// also carries several boundary edges to outside notes, dragging
	// cohesion below the 0.3 cutoff.
	idx.Edges = append(idx.Edges, edge("qp-a", "qp-b"), edge("qp-b", "qp-c"))
	for i := 0; i < 10; i++ {
		outside := "qp-outside-" + string(rune('a'+i))
		idx.Metadata[outside] = &graph.Metadata{ID: outside, Value: 50}
		idx.Edges = append(idx.Edges, edge("qp-a", outside))
	}

	candidates := Suggest(idx, func(id string) int { return 100 })
	for _, c := range candidates {
		for _, id := range c.IDs {
			if id == "qp-a" {
				t.Fatalf("low-cohesion cluster containing qp-a should have been discarded, got %+v", c)
			}
		}
	}
}
