package traversal

import (
	"testing"

	"github.com/mwaldstein/qipu/internal/extractor"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/ontology"
)

func testOntology() *ontology.Ontology {
	return ontology.FromConfig(ontology.Config{Mode: ontology.ModeDefault})
}

func idxWithValues(values map[string]int, edges []extractor.Edge) *graph.Index {
	idx := &graph.Index{Metadata: make(map[string]*graph.Metadata), Edges: edges}
	for id, v := range values {
		idx.Metadata[id] = &graph.Metadata{ID: id, Value: v}
	}
	return idx
}

func TestValuePenaltyMonotonic(t *testing.T) {
	low := valuePenalty(10)
	mid := valuePenalty(50)
	high := valuePenalty(90)
	if !(low > mid && mid > high) {
		t.Fatalf("expected strictly decreasing penalty as value rises: low=%v mid=%v high=%v", low, mid, high)
	}
	if valuePenalty(-5) != valuePenalty(0) {
		t.Fatalf("expected clamp below zero")
	}
	if valuePenalty(150) != valuePenalty(100) {
		t.Fatalf("expected clamp above 100")
	}
}

// TestWeightedPrefersHighValuePath covers scenario C: a weighted
// traversal should settle on the lower-total-cost path, which is the one
// through the higher-value intermediate node.
func TestWeightedPrefersHighValuePath(t *testing.T) {
	idx := idxWithValues(
		map[string]int{"qp-root": 80, "qp-lowval": 5, "qp-highval": 90, "qp-dest": 80},
		[]extractor.Edge{
			{From: "qp-root", To: "qp-lowval", LinkType: "related"},
			{From: "qp-lowval", To: "qp-dest", LinkType: "related"},
			{From: "qp-root", To: "qp-highval", LinkType: "related"},
			{From: "qp-highval", To: "qp-dest", LinkType: "related"},
		},
	)
	ont := testOntology()
	path := FindPath(idx, ont, "qp-root", "qp-dest", Options{Direction: DirOut})
	if !path.Found {
		t.Fatal("expected path to be found")
	}
	if len(path.Path) != 3 || path.Path[1] != "qp-highval" {
		t.Fatalf("expected path via qp-highval, got %v", path.Path)
	}
}

// TestMaxHopsTruncatesWeighted covers scenario D: a hop-cost budget
// smaller than the path's accumulated cost truncates traversal before
// reaching the target node.
func TestMaxHopsTruncatesWeighted(t *testing.T) {
	idx := idxWithValues(
		map[string]int{"qp-root": 50, "qp-mid": 50, "qp-far": 50},
		[]extractor.Edge{
			{From: "qp-root", To: "qp-mid", LinkType: "related"},
			{From: "qp-mid", To: "qp-far", LinkType: "related"},
		},
	)
	ont := testOntology()
	res := Traverse(idx, ont, "qp-root", Options{Direction: DirOut, MaxHops: 1.0})
	if !res.Truncated || res.TruncationReason != ReasonMaxHops {
		t.Fatalf("expected max_hops truncation, got truncated=%v reason=%v", res.Truncated, res.TruncationReason)
	}
	for _, id := range res.Visited {
		if id == "qp-far" {
			t.Fatalf("qp-far should not be reachable within hop budget, visited=%v", res.Visited)
		}
	}
}

func TestTraverseDeterministicOrdering(t *testing.T) {
	idx := idxWithValues(
		map[string]int{"qp-root": 50, "qp-b": 50, "qp-a": 50},
		[]extractor.Edge{
			{From: "qp-root", To: "qp-b", LinkType: "related"},
			{From: "qp-root", To: "qp-a", LinkType: "related"},
		},
	)
	ont := testOntology()
	res := Traverse(idx, ont, "qp-root", Options{Direction: DirOut})
	if len(res.Visited) != 3 || res.Visited[0] != "qp-a" || res.Visited[1] != "qp-b" || res.Visited[2] != "qp-root" {
		t.Fatalf("expected ascending id order, got %v", res.Visited)
	}
}

func TestMaxNodesTruncation(t *testing.T) {
	idx := idxWithValues(
		map[string]int{"qp-root": 50, "qp-a": 50, "qp-b": 50},
		[]extractor.Edge{
			{From: "qp-root", To: "qp-a", LinkType: "related"},
			{From: "qp-root", To: "qp-b", LinkType: "related"},
		},
	)
	ont := testOntology()
	res := Traverse(idx, ont, "qp-root", Options{Direction: DirOut, MaxNodes: 2})
	if !res.Truncated || res.TruncationReason != ReasonMaxNodes {
		t.Fatalf("expected max_nodes truncation, got %+v", res)
	}
	if len(res.Visited) != 2 {
		t.Fatalf("expected exactly 2 visited nodes, got %v", res.Visited)
	}
}

func TestLinksSemanticInversion(t *testing.T) {
	idx := idxWithValues(
		map[string]int{"qp-a": 50, "qp-b": 50},
		[]extractor.Edge{
			{From: "qp-a", To: "qp-b", LinkType: "supports", Source: extractor.SourceTyped},
		},
	)
	ont := testOntology()
	views := Links(idx, ont, "qp-b", false)
	if len(views) != 1 {
		t.Fatalf("expected one inverted view, got %+v", views)
	}
	if views[0].OtherID != "qp-a" || views[0].LinkType != "supported-by" || views[0].Source != extractor.SourceVirtual {
		t.Fatalf("unexpected inverted view: %+v", views[0])
	}
}

func TestLinksNoInversionSuppressesVirtual(t *testing.T) {
	idx := idxWithValues(
		map[string]int{"qp-a": 50, "qp-b": 50},
		[]extractor.Edge{
			{From: "qp-a", To: "qp-b", LinkType: "supports", Source: extractor.SourceTyped},
		},
	)
	ont := testOntology()
	views := Links(idx, ont, "qp-b", true)
	if len(views) != 0 {
		t.Fatalf("expected no views without inversion, got %+v", views)
	}
}

func TestCanonRewritesVisitedIDs(t *testing.T) {
	idx := idxWithValues(
		map[string]int{"qp-root": 50, "qp-old": 50},
		[]extractor.Edge{
			{From: "qp-root", To: "qp-old", LinkType: "related"},
		},
	)
	ont := testOntology()
	canon := func(id string) string {
		if id == "qp-old" {
			return "qp-new"
		}
		return id
	}
	res := Traverse(idx, ont, "qp-root", Options{Direction: DirOut, Canon: canon})
	found := false
	for _, id := range res.Visited {
		if id == "qp-new" {
			found = true
		}
		if id == "qp-old" {
			t.Fatalf("expected canonical id to replace qp-old in visited set, got %v", res.Visited)
		}
	}
	if !found {
		t.Fatalf("expected qp-new in visited set, got %v", res.Visited)
	}
}
