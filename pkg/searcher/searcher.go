package searcher

import (
	"context"
	"errors"

	"github.com/leanngo/leanngo/internal/index"
	"github.com/leanngo/leanngo/internal/store"
)

// ErrPrunedWithoutEmbedder is returned by Search when the opened index is
// pruned but no embedder was configured via WithEmbedder.
var ErrPrunedWithoutEmbedder = errors.New("index is pruned; an embedder is required to search it")

// Option configures a Searcher at Open time.
type Option func(*Searcher)

// WithEmbedder supplies the embedder RecomputeSearcher needs for a pruned
// index. Required only if the index might be pruned.
func WithEmbedder(e index.Embedder) Option {
	return func(s *Searcher) { s.embedder = e }
}

// Result mirrors internal/index.SearchResult; re-exported so callers don't
// need to import internal/index directly.
type Result = index.SearchResult

// Options mirrors internal/index.SearchOptions.
type Options = index.SearchOptions

// Searcher transparently dispatches to an IndexSearcher or a
// RecomputeSearcher depending on whether the opened index has been pruned.
type Searcher struct {
	vector    *index.IndexSearcher
	recompute *index.RecomputeSearcher
	embedder  index.Embedder
}

// Open loads an index's meta to decide which searcher implementation to
// use, then opens that implementation.
func Open(base string, opts ...Option) (*Searcher, error) {
	s := &Searcher{}
	for _, opt := range opts {
		opt(s)
	}

	vs, err := index.LoadIndexSearcher(base)
	if err == nil {
		s.vector = vs
		return s, nil
	}

	// Only a pruned index (per its meta) is recoverable via
	// RecomputeSearcher; any other error (NotFound, corrupt meta, foreign
	// ann file, ...) is returned as is.
	meta, mErr := store.LoadIndexMeta(base)
	if mErr != nil || !meta.IsPruned {
		return nil, err
	}

	rs, rErr := index.LoadRecomputeSearcher(base)
	if rErr != nil {
		return nil, rErr
	}
	s.recompute = rs
	return s, nil
}

// Search runs a query against whichever searcher backs this index.
func (s *Searcher) Search(ctx context.Context, queryEmbedding []float32, opts Options) ([]Result, error) {
	if s.vector != nil {
		return s.vector.SearchWithOptions(queryEmbedding, opts)
	}

	if s.embedder == nil {
		return nil, ErrPrunedWithoutEmbedder
	}
	return s.recompute.Search(ctx, queryEmbedding, s.embedder, opts.TopK, opts.Filter)
}

// BM25Search runs a pure lexical query; unavailable against a pruned index
// (RecomputeSearcher holds no Bm25Scorer, since it never loads full text
// into one ahead of time the way IndexSearcher does).
func (s *Searcher) BM25Search(queryText string, topK int) ([]string, error) {
	if s.vector == nil {
		return nil, errors.New("bm25 search is unavailable on a pruned index")
	}
	return s.vector.BM25Search(queryText, topK)
}

// Len returns the number of passages in the index.
func (s *Searcher) Len() int {
	if s.vector != nil {
		return s.vector.Len()
	}
	return s.recompute.Len()
}

// Close releases the underlying searcher's resources.
func (s *Searcher) Close() error {
	if s.vector != nil {
		return s.vector.Close()
	}
	return s.recompute.Close()
}
