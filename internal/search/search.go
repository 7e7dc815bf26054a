// Package search implements BM25F-style full-text ranking over a
// graph.Index, with recency boost, value tiebreaking, and the type/tag/
// value/MOC filters described in spec §4.I.
package search

import (
	"math"
	"sort"
	"time"

	"github.com/mwaldstein/qipu/internal/graph"
	"github.com/mwaldstein/qipu/internal/note"
	"github.com/mwaldstein/qipu/internal/textutil"
)

// BM25 constants. The spec calls the ranking "BM25F-style" without
// pinning k1/b; these are the conventional defaults used throughout the
// information-retrieval literature.
const (
	k1 = 1.2
	b  = 0.75
)

// valueTiebreakEpsilon is the score-difference threshold below which
// results are reordered by descending value (spec §4.I).
const valueTiebreakEpsilon = 1e-6

// Filters narrows the candidate set before ranking.
type Filters struct {
	Type        string
	Tags        []string // pre-alias-expansion; Search expands via aliases
	MinValue    int
	MOC         string // restrict to notes reachable from this MOC's outbound links
	ExcludeMocs bool
	Limit       int
}

// Result is one ranked hit.
type Result struct {
	ID    string
	Score float64
}

// Search runs a BM25F query against idx using the default recency-boost
// parameters (numerator 0.1, decay 7 days). An empty query returns an
// empty result set, never the full corpus. now is injected so ranking is
// reproducible in tests.
func Search(idx *graph.Index, tok *textutil.Tokenizer, query string, filters Filters, aliases map[string]string, now time.Time) []Result {
	return SearchWithBoost(idx, tok, query, filters, aliases, now, 0.1, 7.0)
}

// SearchWithBoost is Search but with explicit recency-boost parameters,
// for callers that have loaded a non-default config.
func SearchWithBoost(idx *graph.Index, tok *textutil.Tokenizer, query string, filters Filters, aliases map[string]string, now time.Time, numerator, decayDays float64) []Result {
	terms := tok.Tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	candidates := filterCandidates(idx, filters, aliases)
	avgDocLen := 0.0
	if idx.TotalDocs > 0 {
		avgDocLen = idx.TotalLen / float64(idx.TotalDocs)
	}
	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		score := bm25Score(idx, terms, id, avgDocLen)
		if score <= 0 {
			continue
		}
		score += recencyBoost(idx.Metadata[id], now, numerator, decayDays)
		results = append(results, Result{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if math.Abs(results[i].Score-results[j].Score) < valueTiebreakEpsilon {
			return idx.Metadata[results[i].ID].Value > idx.Metadata[results[j].ID].Value
		}
		return results[i].Score > results[j].Score
	})
	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}
	return results
}

func bm25Score(idx *graph.Index, terms []string, id string, avgDocLen float64) float64 {
	docTerms := idx.NoteTerms[id]
	docLen := idx.DocLengths[id]
	var score float64
	for _, term := range terms {
		tf := docTerms[term]
		if tf == 0 {
			continue
		}
		df := idx.TermDF[term]
		idf := math.Log(1 + (float64(idx.TotalDocs)-float64(df)+0.5)/(float64(df)+0.5))
		norm := 1 - b + b*docLen/maxFloat(avgDocLen, 1)
		score += idf * (tf * (k1 + 1)) / (tf + k1*norm)
	}
	return score
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func recencyBoost(meta *graph.Metadata, now time.Time, numerator, decayDays float64) float64 {
	if meta == nil || meta.Updated == "" {
		return 0
	}
	updated, err := time.Parse(note.TimeFormat, meta.Updated)
	if err != nil {
		return 0
	}
	days := now.Sub(updated).Hours() / 24
	if days < 0 {
		days = 0
	}
	return numerator / (1 + days/decayDays)
}

func filterCandidates(idx *graph.Index, filters Filters, aliases map[string]string) []string {
	expandedTags := make([]string, 0, len(filters.Tags))
	for _, tag := range filters.Tags {
		if canon, ok := aliases[tag]; ok {
			expandedTags = append(expandedTags, canon)
		} else {
			expandedTags = append(expandedTags, tag)
		}
	}

	var mocScope map[string]struct{}
	if filters.MOC != "" {
		mocScope = make(map[string]struct{})
		for _, e := range idx.Edges {
			if e.From == filters.MOC {
				mocScope[e.To] = struct{}{}
			}
		}
	}

	ids := make([]string, 0, len(idx.Metadata))
	for id, meta := range idx.Metadata {
		if filters.Type != "" && meta.Type != filters.Type {
			continue
		}
		if filters.MinValue > 0 && meta.Value < filters.MinValue {
			continue
		}
		if filters.ExcludeMocs && meta.Type == "moc" {
			continue
		}
		if mocScope != nil {
			if _, ok := mocScope[id]; !ok {
				continue
			}
		}
		if len(expandedTags) > 0 && !hasAllTags(meta.Tags, expandedTags) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func hasAllTags(noteTags, want []string) bool {
	set := make(map[string]struct{}, len(noteTags))
	for _, t := range noteTags {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
