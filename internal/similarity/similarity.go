// Package similarity computes TF-IDF vectors over a graph.Index and the
// cosine similarity and near-duplicate pairs derived from them (spec
// §4.J).
package similarity

import (
	"math"
	"sort"

	"github.com/mwaldstein/qipu/internal/graph"
)

// DefaultThreshold is the cosine-similarity cutoff near-duplicate
// detection uses unless the caller overrides it.
const DefaultThreshold = 0.85

// Vector is a sparse term -> weight map.
type Vector map[string]float64

// Vectors computes the TF-IDF vector for every note in idx:
// weight(t) = tf(t,A) * ln((N+1)/(df(t)+1)), where tf is the
// field-weighted term frequency already accumulated by graph.Build.
func Vectors(idx *graph.Index) map[string]Vector {
	n := float64(idx.TotalDocs)
	out := make(map[string]Vector, len(idx.NoteTerms))
	for id, terms := range idx.NoteTerms {
		vec := make(Vector, len(terms))
		for term, tf := range terms {
			df := float64(idx.TermDF[term])
			idf := math.Log((n + 1) / (df + 1))
			vec[term] = tf * idf
		}
		out[id] = vec
	}
	return out
}

// Cosine returns the cosine similarity between two TF-IDF vectors, or 0
// if either is empty.
func Cosine(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, wa := range a {
		normA += wa * wa
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Pair is one candidate near-duplicate, sorted so A < B lexically.
type Pair struct {
	A, B  string
	Score float64
}

// NearDuplicates enumerates unordered id pairs with cosine similarity at
// or above threshold, sorted by descending score (ties broken by A then
// B ascending).
func NearDuplicates(idx *graph.Index, threshold float64) []Pair {
	vectors := Vectors(idx)
	ids := make([]string, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pairs []Pair
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			score := Cosine(vectors[ids[i]], vectors[ids[j]])
			if score >= threshold {
				pairs = append(pairs, Pair{A: ids[i], B: ids[j], Score: score})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}
