// Package compact implements the compaction engine: applying a digest's
// compacts list, resolving an id to its canonical digest, and suggesting
// compaction candidates by connected-component clustering (spec §4.K).
package compact

import (
	"math"
	"sort"

	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

// Apply sets digest's Compacts to the deduplicated union of its current
// value and ids, validating that every id resolves to a known note, that
// the digest is not compacting itself, and that the result would not
// create a cycle in the compacted-by chain.
func Apply(digest *note.Note, ids []string, knownIDs map[string]struct{}, compactedBy map[string]string) error {
	merged := make(map[string]struct{}, len(digest.Compacts)+len(ids))
	for _, id := range digest.Compacts {
		merged[id] = struct{}{}
	}
	for _, id := range ids {
		if id == digest.ID {
			return qipuerrors.New(qipuerrors.Invalid, "a digest cannot compact itself").WithToken(digest.ID)
		}
		if _, ok := knownIDs[id]; !ok {
			return qipuerrors.Newf(qipuerrors.NotFound, "compacted note %q does not exist", id).WithToken(id)
		}
		merged[id] = struct{}{}
	}

	trial := make(map[string]string, len(compactedBy)+len(merged))
	for k, v := range compactedBy {
		trial[k] = v
	}
	for id := range merged {
		trial[id] = digest.ID
	}
	for id := range merged {
		if hasCycle(id, trial) {
			return qipuerrors.Newf(qipuerrors.Invalid, "compacting %q into %q would create a compaction cycle", id, digest.ID).WithToken(id)
		}
	}

	out := make([]string, 0, len(merged))
	for id := range merged {
		out = append(out, id)
	}
	sort.Strings(out)
	digest.Compacts = out
	return nil
}

// hasCycle walks the compacted-by chain starting at id and reports
// whether it revisits a node.
func hasCycle(id string, compactedBy map[string]string) bool {
	seen := map[string]struct{}{id: {}}
	cur := id
	for {
		next, ok := compactedBy[cur]
		if !ok {
			return false
		}
		if _, revisited := seen[next]; revisited {
			return true
		}
		seen[next] = struct{}{}
		cur = next
	}
}

// Canon returns the canonical id for id: the result of following the
// compacted-by relation transitively until a note with no compactor
// remains. A chain whose next hop has already been visited is broken by
// returning the last well-formed id in the chain, matching the
// apply-time cycle rejection (canon never loops).
func Canon(id string, compactedBy map[string]string) string {
	seen := map[string]struct{}{id: {}}
	cur := id
	for {
		next, ok := compactedBy[cur]
		if !ok {
			return cur
		}
		if _, revisited := seen[next]; revisited {
			return cur
		}
		seen[next] = struct{}{}
		cur = next
	}
}

// CompactedByMap builds the id -> digest-that-compacts-it map from the
// compacts field every digest in metadata carries.
func CompactedByMap(metadata map[string]*graph.Metadata) map[string]string {
	out := make(map[string]string)
	for digestID, meta := range metadata {
		for _, compactedID := range meta.Compacts {
			out[compactedID] = digestID
		}
	}
	return out
}

// Candidate is one compaction-cluster suggestion.
type Candidate struct {
	IDs            []string
	NodeCount      int
	InternalEdges  int
	BoundaryEdges  int
	BoundaryRatio  float64
	Cohesion       float64
	EstimatedBytes int
	AvgValue       float64
	Score          float64
}

// SizeEstimator returns an estimated on-disk byte size for a note,
// used to weight larger clusters higher in the score.
type SizeEstimator func(id string) int

// Suggest performs connected-component clustering on the undirected
// projection of idx.Edges, keeps components of at least 3 nodes, scores
// each one, discards clusters with cohesion below 0.3, and returns the
// top ten by descending score.
func Suggest(idx *graph.Index, sizeOf SizeEstimator) []Candidate {
	adjacency := buildUndirectedAdjacency(idx)
	components := connectedComponents(adjacency)

	var candidates []Candidate
	for _, component := range components {
		if len(component) < 3 {
			continue
		}
		c := scoreCandidate(idx, component, sizeOf)
		if c.Cohesion < 0.3 {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	return candidates
}

func buildUndirectedAdjacency(idx *graph.Index) map[string]map[string]struct{} {
	adjacency := make(map[string]map[string]struct{}, len(idx.Metadata))
	for id := range idx.Metadata {
		adjacency[id] = make(map[string]struct{})
	}
	for _, e := range idx.Edges {
		if adjacency[e.From] == nil {
			adjacency[e.From] = make(map[string]struct{})
		}
		if adjacency[e.To] == nil {
			adjacency[e.To] = make(map[string]struct{})
		}
		adjacency[e.From][e.To] = struct{}{}
		adjacency[e.To][e.From] = struct{}{}
	}
	return adjacency
}

// connectedComponents finds connected components via iterative DFS,
// returning each component's ids sorted ascending, and components sorted
// by their first (smallest) id for deterministic iteration order.
func connectedComponents(adjacency map[string]map[string]struct{}) [][]string {
	nodes := make([]string, 0, len(adjacency))
	for id := range adjacency {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	visited := make(map[string]struct{})
	var components [][]string

	for _, start := range nodes {
		if _, ok := visited[start]; ok {
			continue
		}
		var component []string
		stack := []string{start}
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := visited[node]; ok {
				continue
			}
			visited[node] = struct{}{}
			component = append(component, node)
			for neighbor := range adjacency[node] {
				if _, ok := visited[neighbor]; !ok {
					stack = append(stack, neighbor)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}
	return components
}

func scoreCandidate(idx *graph.Index, component []string, sizeOf SizeEstimator) Candidate {
	inCluster := make(map[string]struct{}, len(component))
	for _, id := range component {
		inCluster[id] = struct{}{}
	}

	internal, boundary := 0, 0
	for _, id := range component {
		for _, e := range idx.Edges {
			if e.From != id {
				continue
			}
			if _, ok := inCluster[e.To]; ok {
				internal++
			} else {
				boundary++
			}
		}
	}

	total := internal + boundary
	cohesion, boundaryRatio := 0.0, 0.0
	if total > 0 {
		cohesion = float64(internal) / float64(total)
		boundaryRatio = float64(boundary) / float64(total)
	}

	estimatedBytes := 0
	totalValue, valueCount := 0, 0
	for _, id := range component {
		if sizeOf != nil {
			estimatedBytes += sizeOf(id)
		}
		if meta := idx.Metadata[id]; meta != nil {
			totalValue += meta.Value
			valueCount++
		}
	}
	avgValue := 50.0
	if valueCount > 0 {
		avgValue = float64(totalValue) / float64(valueCount)
	}

	sizeScore := math.Max(math.Log(float64(maxInt(estimatedBytes, 1))), 0)
	score := sizeScore + 10*cohesion - 5*boundaryRatio + math.Sqrt(float64(len(component))) + valueBoost(avgValue)

	return Candidate{
		IDs:            component,
		NodeCount:      len(component),
		InternalEdges:  internal,
		BoundaryEdges:  boundary,
		BoundaryRatio:  boundaryRatio,
		Cohesion:       cohesion,
		EstimatedBytes: estimatedBytes,
		AvgValue:       avgValue,
		Score:          score,
	}
}

// valueBoost rewards low-average-value clusters: they are the strongest
// candidates for compaction into a digest.
func valueBoost(avgValue float64) float64 {
	switch {
	case avgValue < 20:
		return 15
	case avgValue < 40:
		return 7.5
	case avgValue < 60:
		return 0
	case avgValue < 80:
		return -5
	default:
		return -10
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
