// Package traversal implements BFS, weighted Dijkstra, shortest-path
// finding, semantic inversion of edges, and compaction-aware id
// rewriting over a graph.Index.
package traversal

import (
	"container/heap"
	"sort"

	"github.com/mwaldstein/qipu/internal/extractor"
	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/ontology"
)

// Direction selects which edges a traversal follows relative to the
// current node.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

// TruncationReason explains why a traversal stopped early.
type TruncationReason string

const (
	ReasonNone      TruncationReason = "none"
	ReasonMaxNodes  TruncationReason = "max_nodes"
	ReasonMaxEdges  TruncationReason = "max_edges"
	ReasonMaxFanout TruncationReason = "max_fanout"
	ReasonMaxHops   TruncationReason = "max_hops"
)

// Options configures a traversal. The zero value means "no limit" for
// every numeric cap.
type Options struct {
	Direction           Direction
	MaxHops             float32 // fixed-point hop-cost budget; 0 means unlimited
	IncludeTypes        []string
	ExcludeTypes        []string
	TypedOnly           bool
	InlineOnly          bool
	MaxNodes            int
	MaxEdges            int
	MaxFanout           int
	MinValue            int
	IgnoreValue         bool
	NoSemanticInversion bool
	// Canon rewrites a visited id to its canonical (compaction-aware)
	// id. nil means no rewriting.
	Canon func(id string) string
}

// SpanningEdge is one discovery edge in the result spanning tree.
type SpanningEdge struct {
	From     string
	To       string
	LinkType string
	Cost     float64
	Via      string // original id before canonicalization, "" if unchanged
}

// Result is the outcome of a BFS or Dijkstra traversal.
type Result struct {
	Root             string
	Visited          []string // ascending by id
	SpanningEdges    []SpanningEdge
	Truncated        bool
	TruncationReason TruncationReason
}

// valuePenalty is the monotonic non-negative cost term added for
// traversing to a node of the given value: p(v) = (100 - clamp(v,0,100)) / 100.
func valuePenalty(value int) float64 {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return float64(100-value) / 100.0
}

func edgeAllowed(e extractor.Edge, opts Options) bool {
	if opts.TypedOnly && e.Source != extractor.SourceTyped {
		return false
	}
	if opts.InlineOnly && e.Source != extractor.SourceInline {
		return false
	}
	if len(opts.IncludeTypes) > 0 && !containsStr(opts.IncludeTypes, e.LinkType) {
		return false
	}
	if len(opts.ExcludeTypes) > 0 && containsStr(opts.ExcludeTypes, e.LinkType) {
		return false
	}
	return true
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// adjacency builds, for each node, the list of (neighbor, edge) reachable
// under opts.Direction.
func adjacency(idx *graph.Index, opts Options) map[string][]extractor.Edge {
	adj := make(map[string][]extractor.Edge)
	for _, e := range idx.Edges {
		if !edgeAllowed(e, opts) {
			continue
		}
		switch opts.Direction {
		case DirIn:
			adj[e.To] = append(adj[e.To], extractor.Edge{From: e.To, To: e.From, LinkType: e.LinkType, Source: e.Source})
		case DirBoth:
			adj[e.From] = append(adj[e.From], e)
			adj[e.To] = append(adj[e.To], extractor.Edge{From: e.To, To: e.From, LinkType: e.LinkType, Source: e.Source})
		default: // DirOut
			adj[e.From] = append(adj[e.From], e)
		}
	}
	for k := range adj {
		sort.Slice(adj[k], func(i, j int) bool { return adj[k][i].To < adj[k][j].To })
	}
	return adj
}

// heapEntry is one candidate in the Dijkstra priority queue.
type heapEntry struct {
	nodeID          string
	accumulatedCost float64
	viaEdge         *extractor.Edge
}

type priorityQueue []heapEntry

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].accumulatedCost != pq[j].accumulatedCost {
		return pq[i].accumulatedCost < pq[j].accumulatedCost
	}
	return pq[i].nodeID < pq[j].nodeID // deterministic tie-break, ascending id
}
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(heapEntry)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// Traverse runs Dijkstra (ignore_value=false) or BFS (ignore_value=true,
// equivalent to Dijkstra with zero value penalty) from root, subject to
// opts. Both modes take each edge's cost from the ontology.
func Traverse(idx *graph.Index, ont *ontology.Ontology, root string, opts Options) *Result {
	adj := adjacency(idx, opts)

	visited := make(map[string]float64)
	discoveredBy := make(map[string]SpanningEdge)
	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, heapEntry{nodeID: root, accumulatedCost: 0})

	truncated := false
	reason := ReasonNone
	edgeCount := 0

outer:
	for pq.Len() > 0 {
		entry := heap.Pop(pq).(heapEntry)
		if _, already := visited[entry.nodeID]; already {
			continue
		}
		if opts.MaxNodes > 0 && len(visited) >= opts.MaxNodes {
			truncated = true
			reason = ReasonMaxNodes
			break
		}
		visited[entry.nodeID] = entry.accumulatedCost
		if entry.viaEdge != nil {
			discoveredBy[entry.nodeID] = SpanningEdge{
				From: entry.viaEdge.From, To: entry.viaEdge.To,
				LinkType: entry.viaEdge.LinkType, Cost: entry.accumulatedCost,
			}
		}

		neighbors := adj[entry.nodeID]
		if opts.MaxFanout > 0 && len(neighbors) > opts.MaxFanout {
			neighbors = neighbors[:opts.MaxFanout]
			truncated = true
			reason = ReasonMaxFanout
		}
		for _, e := range neighbors {
			if opts.MaxEdges > 0 && edgeCount >= opts.MaxEdges {
				truncated = true
				reason = ReasonMaxEdges
				break outer
			}
			edgeCount++

			target := idx.Metadata[e.To]
			if target != nil && opts.MinValue > 0 && target.Value < opts.MinValue {
				continue
			}

			cost := resolvedEdgeCost(ont, e.LinkType)
			if !opts.IgnoreValue && target != nil {
				cost += valuePenalty(target.Value)
			}

			newCost := entry.accumulatedCost + cost
			if opts.MaxHops > 0 && newCost > float64(opts.MaxHops) {
				truncated = true
				reason = ReasonMaxHops
				continue
			}
			if prev, ok := visited[e.To]; ok && prev <= newCost {
				continue
			}
			ec := e
			heap.Push(pq, heapEntry{nodeID: e.To, accumulatedCost: newCost, viaEdge: &ec})
		}
	}

	res := &Result{Root: root, Truncated: truncated, TruncationReason: reason}
	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if opts.Canon != nil {
			canon := opts.Canon(id)
			if canon != id {
				res.Visited = append(res.Visited, canon)
				continue
			}
		}
		res.Visited = append(res.Visited, id)
	}
	for _, id := range ids {
		if se, ok := discoveredBy[id]; ok {
			if opts.Canon != nil {
				if canon := opts.Canon(se.To); canon != se.To {
					se.Via = se.To
					se.To = canon
				}
			}
			res.SpanningEdges = append(res.SpanningEdges, se)
		}
	}
	return res
}

// resolvedEdgeCost is the edge cost used in both weighted and
// ignore-value mode: the ontology's configured cost for the link type.
func resolvedEdgeCost(ont *ontology.Ontology, linkType string) float64 {
	return float64(ont.Cost(linkType))
}

// PathResult is the outcome of FindPath.
type PathResult struct {
	Found bool
	Path  []string // ordered from -> to, inclusive
	Hops  int       // hop count, not accumulated cost
}

// FindPath finds a shortest path from `from` to `to` under the same cost
// model as Traverse. Unreachable-by-filter and unreachable-by-topology
// are indistinguishable; both report Found=false.
func FindPath(idx *graph.Index, ont *ontology.Ontology, from, to string, opts Options) *PathResult {
	adj := adjacency(idx, opts)
	dist := map[string]float64{from: 0}
	prev := map[string]string{}
	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, heapEntry{nodeID: from, accumulatedCost: 0})
	visited := map[string]bool{}

	for pq.Len() > 0 {
		entry := heap.Pop(pq).(heapEntry)
		if visited[entry.nodeID] {
			continue
		}
		visited[entry.nodeID] = true
		if entry.nodeID == to {
			break
		}
		for _, e := range adj[entry.nodeID] {
			target := idx.Metadata[e.To]
			cost := resolvedEdgeCost(ont, e.LinkType)
			if !opts.IgnoreValue && target != nil {
				cost += valuePenalty(target.Value)
			}
			newCost := entry.accumulatedCost + cost
			if opts.MaxHops > 0 && newCost > float64(opts.MaxHops) {
				continue
			}
			if d, ok := dist[e.To]; ok && d <= newCost {
				continue
			}
			dist[e.To] = newCost
			prev[e.To] = entry.nodeID
			heap.Push(pq, heapEntry{nodeID: e.To, accumulatedCost: newCost})
		}
	}

	if _, ok := dist[to]; !ok || !visited[to] {
		return &PathResult{Found: false}
	}
	var path []string
	for cur := to; ; {
		path = append([]string{cur}, path...)
		if cur == from {
			break
		}
		p, ok := prev[cur]
		if !ok {
			return &PathResult{Found: false}
		}
		cur = p
	}
	return &PathResult{Found: true, Path: path, Hops: len(path) - 1}
}

// LinkView is one entry in the semantically-inverted listing of a note's
// links (spec §4.H.4).
type LinkView struct {
	OtherID  string
	LinkType string
	Source   extractor.Source
}

// Links returns the outbound-view listing of id's links: real outgoing
// edges as-is, plus (unless noInversion) a virtual inverse edge for every
// real incoming edge.
func Links(idx *graph.Index, ont *ontology.Ontology, id string, noInversion bool) []LinkView {
	var views []LinkView
	for _, e := range idx.Edges {
		if e.From == id {
			views = append(views, LinkView{OtherID: e.To, LinkType: e.LinkType, Source: e.Source})
		}
	}
	if !noInversion {
		for _, e := range idx.Edges {
			if e.To == id {
				views = append(views, LinkView{OtherID: e.From, LinkType: ont.Inverse(e.LinkType), Source: extractor.SourceVirtual})
			}
		}
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].OtherID != views[j].OtherID {
			return views[i].OtherID < views[j].OtherID
		}
		return views[i].LinkType < views[j].LinkType
	})
	return views
}
