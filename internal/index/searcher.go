package index

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/leanngo/leanngo/internal/bm25"
	amerrors "github.com/leanngo/leanngo/internal/errors"
	"github.com/leanngo/leanngo/internal/filter"
	"github.com/leanngo/leanngo/internal/store"
)

// scorerCacheSize bounds the number of lazily-built Bm25Scorers a process
// retains across all open IndexSearchers, so a long-lived process (e.g. the
// CLI's stats command iterating many indexes) doesn't unboundedly grow.
const scorerCacheSize = 16

var scorerCache, _ = lru.New[string, *bm25.Scorer](scorerCacheSize)

// SearchResult is one hydrated hit: a passage plus its ranking score.
type SearchResult struct {
	ID       string
	Score    float32
	Text     string
	Metadata []byte
}

// SearchOptions configures a single call to IndexSearcher.SearchWithOptions.
type SearchOptions struct {
	TopK        int
	Complexity  int
	Filter      *filter.Filter
	Hybrid      bool
	HybridAlpha float32
	QueryText   string
}

// IndexSearcher orchestrates vector, hybrid, and filtered search over a
// built index. Loading checks meta.IsPruned before trusting the
// EmbeddingsStore/AnnBackend vector path, per the "pruned is jointly
// authoritative, meta flag wins" design decision.
type IndexSearcher struct {
	base     string
	passages *store.PassageStore
	backend  store.AnnBackend
	idMap    []string
	meta     *store.IndexMeta

	mu     sync.Mutex
	scorer *bm25.Scorer // lazily built on first hybrid query, cached for this instance's lifetime
}

// LoadIndexSearcher opens an index directory for vector/hybrid searching.
// Returns Incompatible if the index is pruned (use RecomputeSearcher
// instead) or if the AnnBackend file is a foreign format.
func LoadIndexSearcher(base string) (*IndexSearcher, error) {
	meta, err := store.LoadIndexMeta(base)
	if err != nil {
		return nil, err
	}
	if meta.IsPruned {
		return nil, amerrors.IncompatibleError(
			"index has been pruned; use a RecomputeSearcher with a matching embedder", nil)
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

	var backend store.AnnBackend
	switch meta.BackendName {
	case "hnsw":
		backend, err = store.LoadHNSWBackend(base)
	default:
		err = amerrors.UpstreamError("unsupported backend: "+meta.BackendName, nil)
	}
	if err != nil {
		passages.Close()
		return nil, err
	}

	return &IndexSearcher{base: base, passages: passages, backend: backend, idMap: idMap, meta: meta}, nil
}

// Search runs a plain vector nearest-neighbor query.
func (s *IndexSearcher) Search(queryEmbedding []float32, topK, complexity int) ([]SearchResult, error) {
	return s.SearchWithOptions(queryEmbedding, SearchOptions{TopK: topK, Complexity: complexity})
}

// SearchWithOptions runs vector search, optionally combined with a metadata
// filter and/or hybrid BM25 reranking. When hybrid, the AnnBackend search
// and the Bm25Scorer warm-up race in parallel via errgroup, mirroring the
// teacher's fusion searcher: the vector leg is load-bearing (its failure
// aborts the call), the BM25 leg degrades gracefully to vector-only on
// failure rather than failing the whole query.
func (s *IndexSearcher) SearchWithOptions(queryEmbedding []float32, opts SearchOptions) ([]SearchResult, error) {
	fetchK := opts.TopK
	if opts.Filter != nil || opts.Hybrid {
		fetchK = opts.TopK * 5
	}

	var (
		labels    []uint64
		scores    []float32
		scorer    *bm25.Scorer
		scorerErr error
	)

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		var err error
		labels, scores, err = s.backend.Search(queryEmbedding, fetchK, opts.Complexity)
		if err != nil {
			return amerrors.UpstreamError("ann backend search failed", err)
		}
		return nil
	})
	if opts.Hybrid && opts.QueryText != "" {
		g.Go(func() error {
			scorer, scorerErr = s.warmScorer()
			return nil // BM25 warm failure degrades to vector-only, doesn't abort the call
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]bm25.VectorCandidate, len(labels))
	for i := range labels {
		candidates[i] = bm25.VectorCandidate{Label: labels[i], Score: scores[i]}
	}

	if opts.Hybrid && opts.QueryText != "" && scorerErr == nil && scorer != nil {
		candidates = s.applyHybrid(scorer, candidates, opts.QueryText, opts.HybridAlpha, fetchK)
	} else if opts.Hybrid && scorerErr != nil {
		slog.Warn("bm25 scorer unavailable, falling back to vector-only ranking", slog.String("error", scorerErr.Error()))
	}

	results := make([]SearchResult, 0, opts.TopK)
	for _, c := range candidates {
		if len(results) >= opts.TopK {
			break
		}

		id := s.labelToID(c.Label)

		passage, err := s.passages.Get(id)
		if err != nil {
			slog.Warn("failed to hydrate passage, skipping", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}

		if opts.Filter != nil && !filter.Matches(*opts.Filter, passage.Metadata) {
			continue
		}

		results = append(results, SearchResult{ID: id, Score: c.Score, Text: passage.Text, Metadata: passage.Metadata})
	}

	return results, nil
}

func (s *IndexSearcher) applyHybrid(scorer *bm25.Scorer, candidates []bm25.VectorCandidate, queryText string, alpha float32, fetchK int) []bm25.VectorCandidate {
	bm25Scores := scorer.ScoreQuery(queryText)
	bm25Top := scorer.Search(queryText, fetchK)

	present := make(map[uint64]struct{}, len(candidates))
	for _, c := range candidates {
		present[c.Label] = struct{}{}
	}
	for _, top := range bm25Top {
		label := uint64(top.Index)
		if _, ok := present[label]; !ok {
			candidates = append(candidates, bm25.VectorCandidate{Label: label, Score: 0})
		}
	}

	return bm25.HybridRerank(candidates, bm25Scores, alpha)
}

// warmScorer builds the Bm25Scorer on first use and retains it for this
// searcher's lifetime; it is also registered in a package-level LRU cache
// so a process with many open searchers bounds total scorer memory.
func (s *IndexSearcher) warmScorer() (*bm25.Scorer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scorer != nil {
		return s.scorer, nil
	}

	if cached, ok := scorerCache.Get(s.base); ok {
		s.scorer = cached
		return s.scorer, nil
	}

	texts, err := s.allTexts()
	if err != nil {
		return nil, err
	}

	scorer := bm25.Build(texts)
	s.scorer = scorer
	scorerCache.Add(s.base, scorer)
	return scorer, nil
}

func (s *IndexSearcher) allTexts() ([]string, error) {
	texts := make([]string, len(s.idMap))
	for i, id := range s.idMap {
		p, err := s.passages.Get(id)
		if err != nil {
			texts[i] = ""
			continue
		}
		texts[i] = p.Text
	}
	return texts, nil
}

// BM25Search is a convenience for the query expander: pure BM25, no vector
// traversal, returning the matched passages' texts.
func (s *IndexSearcher) BM25Search(queryText string, topK int) ([]string, error) {
	scorer, err := s.warmScorer()
	if err != nil {
		return nil, err
	}

	results := scorer.Search(queryText, topK)
	texts := make([]string, 0, len(results))
	for _, r := range results {
		id := s.labelToID(uint64(r.Index))
		p, err := s.passages.Get(id)
		if err != nil {
			continue
		}
		texts = append(texts, p.Text)
	}
	return texts, nil
}

// Len returns the number of vectors in the AnnBackend.
func (s *IndexSearcher) Len() int { return s.backend.Len() }

func (s *IndexSearcher) labelToID(label uint64) string {
	idx := int(label)
	if idx >= 0 && idx < len(s.idMap) {
		return s.idMap[idx]
	}
	return ""
}

// Close releases the underlying passage store file handle.
func (s *IndexSearcher) Close() error {
	return s.passages.Close()
}
