package textutil

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"github.com/orsinium-labs/stopwords"
)

// englishStopwords is the upstream dictionary fixedStopWords is checked
// against, so the spec's fixed ~40-word list can never silently include a
// word the library itself wouldn't consider a stop word.
var englishStopwords = stopwords.MustGet("en")

// fixedStopWords trims the general-purpose English stop-word set down to
// the ~40 words the spec fixes as the default, so tokenization stays
// reproducible across versions of the upstream dictionary.
var fixedStopWords = buildFixedStopWords()

func buildFixedStopWords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "of",
		"to", "in", "on", "for", "with", "at", "by", "from", "up", "about",
		"into", "over", "after", "is", "are", "was", "were", "be", "been",
		"being", "have", "has", "had", "do", "does", "did", "this", "that",
		"these", "those", "it", "as", "not",
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if englishStopwords.Contains(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

// Tokenizer splits text into a deterministic stream of terms: lowercase,
// alphanumeric-boundary split, stop words discarded, optionally stemmed.
// The stemming flag comes from store-level configuration (internal/config's
// `stemming`). NewTokenizer always uses the fixed default stop-word set;
// internal/config has no stop-word option.
type Tokenizer struct {
	StopWords map[string]struct{}
	Stem      bool
}

// NewTokenizer returns a Tokenizer using the default fixed stop-word set.
// stem controls whether Porter-family stemming runs after stop-word
// removal, per the `stemming` config option (default true).
func NewTokenizer(stem bool) *Tokenizer {
	return &Tokenizer{StopWords: fixedStopWords, Stem: stem}
}

// Tokenize returns the ordered list of terms extracted from text.
func (t *Tokenizer) Tokenize(text string) []string {
	var terms []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		term := cur.String()
		cur.Reset()
		if _, stop := t.StopWords[term]; stop {
			return
		}
		if t.Stem {
			term = english.Stem(term, false)
		}
		terms = append(terms, term)
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return terms
}

// TermFrequencies returns a term -> count map for a single document, the
// building block for the TF-IDF vectors in internal/similarity and the
// BM25F term statistics in internal/graph.
func (t *Tokenizer) TermFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, term := range t.Tokenize(text) {
		freqs[term]++
	}
	return freqs
}
