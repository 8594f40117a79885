// Package bm25 implements the retrieval core's lexical scorer: an in-memory
// inverted index over passage texts, BM25 ranking, and hybrid vector+BM25
// rerank. It is a near-verbatim port of the Rust reference scorer in
// decisiongraph/leann-rs's src/index/bm25.rs, kept deliberately independent
// of any general-purpose search library so its formula and tie-break order
// match the property tests in the specification exactly.
package bm25

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	k1 = 1.2
	b  = 0.75
)

// tokenRegex matches runs of ASCII letters/digits; compiled once per process.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// tokenize lowercases text and splits it into tokens of length > 1.
func tokenize(text string) []string {
	matches := tokenRegex.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			tokens = append(tokens, m)
		}
	}
	return tokens
}

// Scorer is an in-memory BM25 inverted index built from an ordered sequence
// of document texts; document index i is the AnnBackend label i.
type Scorer struct {
	docFreq    map[string]int
	termFreqs  []map[string]int
	docLengths []int
	avgDocLen  float64
	numDocs    int
}

// Build constructs a Scorer from the full ordered passage-text sequence.
func Build(texts []string) *Scorer {
	s := &Scorer{
		docFreq:    make(map[string]int),
		termFreqs:  make([]map[string]int, len(texts)),
		docLengths: make([]int, len(texts)),
		numDocs:    len(texts),
	}

	var totalLen int
	for i, text := range texts {
		tokens := tokenize(text)
		s.docLengths[i] = len(tokens)
		totalLen += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		s.termFreqs[i] = tf

		for term := range tf {
			s.docFreq[term]++
		}
	}

	if s.numDocs > 0 {
		s.avgDocLen = float64(totalLen) / float64(s.numDocs)
	} else {
		s.avgDocLen = 1.0
	}

	return s
}

// NumDocs returns the number of documents the scorer was built from.
func (s *Scorer) NumDocs() int { return s.numDocs }

// ScoreQuery returns a BM25 score for every document, in document order.
// Scores are always >= 0; tokens with no matching document contribute 0.
func (s *Scorer) ScoreQuery(query string) []float32 {
	scores := make([]float32, s.numDocs)
	if s.numDocs == 0 {
		return scores
	}

	for _, term := range tokenize(query) {
		df := s.docFreq[term]
		if df == 0 {
			continue
		}

		idf := math.Log((float64(s.numDocs)-float64(df)+0.5)/(float64(df)+0.5) + 1)

		for i, tf := range s.termFreqs {
			count, ok := tf[term]
			if !ok {
				continue
			}
			norm := 1 - b + b*float64(s.docLengths[i])/s.avgDocLen
			contribution := idf * float64(count) * (k1 + 1) / (float64(count) + k1*norm)
			scores[i] += float32(contribution)
		}
	}

	return scores
}

// ScoredDoc is a (document index, score) pair.
type ScoredDoc struct {
	Index int
	Score float32
}

// Search scores the query, filters out zero scores, and returns the top k
// documents sorted by descending score with ties broken by ascending index.
func (s *Scorer) Search(query string, k int) []ScoredDoc {
	scores := s.ScoreQuery(query)

	results := make([]ScoredDoc, 0, len(scores))
	for i, sc := range scores {
		if sc > 0 {
			results = append(results, ScoredDoc{Index: i, Score: sc})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
