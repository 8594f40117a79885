package bm25

import "sort"

// VectorCandidate is a (label, vector_score) pair produced by the AnnBackend,
// re-used here as the input/output shape of HybridRerank.
type VectorCandidate struct {
	Label uint64
	Score float32
}

// minRangeFloor is the threshold below which a score range is treated as
// degenerate (all-equal), to avoid dividing by ~0 during normalization.
const minRangeFloor = 1e-6

// HybridRerank combines normalized vector scores and normalized BM25 scores
// with weight alpha: combined = alpha*norm(vector) + (1-alpha)*norm(bm25).
// bm25Scores is indexed by the same label space vectorCandidates refers to
// (document index == AnnBackend label). Results are sorted descending by
// combined score.
func HybridRerank(vectorCandidates []VectorCandidate, bm25Scores []float32, alpha float32) []VectorCandidate {
	if len(vectorCandidates) == 0 {
		return nil
	}

	vMin, vMax := vectorCandidates[0].Score, vectorCandidates[0].Score
	for _, c := range vectorCandidates {
		if c.Score < vMin {
			vMin = c.Score
		}
		if c.Score > vMax {
			vMax = c.Score
		}
	}
	vRange := vMax - vMin

	bMin, bMax := float32(0), float32(0)
	if len(bm25Scores) > 0 {
		bMin, bMax = bm25Scores[0], bm25Scores[0]
		for _, sc := range bm25Scores {
			if sc < bMin {
				bMin = sc
			}
			if sc > bMax {
				bMax = sc
			}
		}
	}
	bRange := bMax - bMin

	out := make([]VectorCandidate, len(vectorCandidates))
	for i, c := range vectorCandidates {
		normVector := float32(0)
		if vRange >= minRangeFloor {
			normVector = (c.Score - vMin) / vRange
		}

		normBM25 := float32(0)
		if int(c.Label) < len(bm25Scores) && bRange >= minRangeFloor {
			normBM25 = (bm25Scores[c.Label] - bMin) / bRange
		}

		out[i] = VectorCandidate{
			Label: c.Label,
			Score: alpha*normVector + (1-alpha)*normBM25,
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})

	return out
}
