package index

import (
	"context"
	"log/slog"
	"sort"
	"time"

	amerrors "github.com/leanngo/leanngo/internal/errors"
	"github.com/leanngo/leanngo/internal/filter"
	"github.com/leanngo/leanngo/internal/store"
)

// recomputeBatchSize bounds how many passage texts are sent to the embedder
// in a single Embed call, matching the original implementation's batching
// in recompute.rs.
const recomputeBatchSize = 100

// RecomputeSearcher answers queries against a pruned index (one whose
// embeddings file has been deleted) by re-embedding surviving passage texts
// at query time and ranking by inner product. It never touches an
// EmbeddingsStore or AnnBackend.
//
// A RecomputeSearcher is typically opened once and reused across many
// searches, each issuing several embedder.Embed batches, so a sustained
// embedder outage shows up as repeated failures against the same breaker
// rather than a single one-off error.
type RecomputeSearcher struct {
	passages *store.PassageStore
	idMap    []string
	meta     *store.IndexMeta
	embedCB  *amerrors.CircuitBreaker
}

// LoadRecomputeSearcher opens an index's PassageStore and IdMap only.
func LoadRecomputeSearcher(base string) (*RecomputeSearcher, error) {
	meta, err := store.LoadIndexMeta(base)
	if err != nil {
		return nil, err
	}

	passages, err := store.OpenPassageStore(base)
	if err != nil {
		return nil, err
	}

	idMap, err := store.ReadIdMap(base)
	if err != nil {
		passages.Close()
		return nil, err
	}

	embedCB := amerrors.NewCircuitBreaker(
		"recompute-embedder",
		amerrors.WithMaxFailures(5),
		amerrors.WithResetTimeout(30*time.Second),
	)

	return &RecomputeSearcher{passages: passages, idMap: idMap, meta: meta, embedCB: embedCB}, nil
}

type scoredCandidate struct {
	id    string
	text  string
	meta  []byte
	score float32
}

// Search applies the filter before embedding (so filtered-out passages
// never cost an embedding call), batches the survivors through embedder in
// groups of recomputeBatchSize, scores each by inner product against
// queryEmbedding, and returns the top topK.
func (s *RecomputeSearcher) Search(ctx context.Context, queryEmbedding []float32, embedder Embedder, topK int, f *filter.Filter) ([]SearchResult, error) {
	if embedder.Dimensions() != len(queryEmbedding) {
		return nil, amerrors.DimensionMismatchError(embedder.Dimensions(), len(queryEmbedding))
	}

	var survivors []store.Passage
	for _, id := range s.idMap {
		p, err := s.passages.Get(id)
		if err != nil {
			slog.Warn("failed to load passage during recompute, skipping", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		if f != nil && !filter.Matches(*f, p.Metadata) {
			continue
		}
		survivors = append(survivors, p)
	}

	candidates := make([]scoredCandidate, 0, len(survivors))
	for start := 0; start < len(survivors); start += recomputeBatchSize {
		end := start + recomputeBatchSize
		if end > len(survivors) {
			end = len(survivors)
		}
		batch := survivors[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}

		embeddings, err := amerrors.CircuitExecuteWithResult(s.embedCB,
			func() ([][]float32, error) {
				return amerrors.RetryWithResult(ctx, amerrors.DefaultRetryConfig(), func() ([][]float32, error) {
					return embedder.Embed(ctx, texts)
				})
			},
			func() ([][]float32, error) {
				return nil, amerrors.ErrCircuitOpen
			},
		)
		if err != nil {
			return nil, amerrors.UpstreamError("embedding passages for recompute", err)
		}
		if len(embeddings) != len(batch) {
			return nil, amerrors.UpstreamError("embedder returned a different number of vectors than inputs", nil)
		}

		for i, p := range batch {
			score := dotProduct(queryEmbedding, embeddings[i])
			candidates = append(candidates, scoredCandidate{id: p.ID, text: p.Text, meta: p.Metadata, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}

	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = SearchResult{ID: c.id, Score: c.score, Text: c.text, Metadata: c.meta}
	}
	return results, nil
}

// Len returns the number of passages in the index, regardless of filter.
func (s *RecomputeSearcher) Len() int { return len(s.idMap) }

// Close releases the underlying passage store file handle.
func (s *RecomputeSearcher) Close() error {
	return s.passages.Close()
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
