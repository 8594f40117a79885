package indexer

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/leanngo/leanngo/internal/index"
)

// ErrClosed is returned by any method called after Close.
var ErrClosed = errors.New("indexer is closed")

// Option configures an Indexer at construction time.
type Option func(*options)

type options struct {
	builderOpts []index.BuilderOption
}

// WithGraphDegree sets the HNSW connectivity parameter M.
func WithGraphDegree(m int) Option {
	return func(o *options) { o.builderOpts = append(o.builderOpts, index.WithGraphDegree(m)) }
}

// WithBuildComplexity sets the HNSW build-time expansion factor ef_construction.
func WithBuildComplexity(ef int) Option {
	return func(o *options) { o.builderOpts = append(o.builderOpts, index.WithBuildComplexity(ef)) }
}

// WithRecompute enables recompute mode, additionally persisting embeddings
// to a separate file that a prune later deletes; a pruned index is searched
// by re-embedding passage texts (see pkg/searcher).
func WithRecompute(enabled bool) Option {
	return func(o *options) { o.builderOpts = append(o.builderOpts, index.WithRecompute(enabled)) }
}

// Indexer wraps a StreamingIndexBuilder behind the construction-time
// options pattern used throughout this module's packages.
type Indexer struct {
	builder *index.StreamingIndexBuilder

	mu     sync.Mutex
	closed bool
}

// New creates an Indexer for a new index at base, with the given embedding
// dimensionality. It takes an exclusive lock on the index for its lifetime.
func New(base string, dimensions int, opts ...Option) (*Indexer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	b, err := index.NewStreamingIndexBuilder(base, dimensions, o.builderOpts...)
	if err != nil {
		return nil, err
	}

	return &Indexer{builder: b}, nil
}

// AddPassage adds one (id, text, embedding, metadata) record.
func (idx *Indexer) AddPassage(id, text string, embedding []float32, metadata json.RawMessage) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	return idx.builder.AddPassage(id, text, embedding, metadata)
}

// Build finalizes the index: closes the writers, builds the AnnBackend, and
// writes IndexMeta. The Indexer must not be used again afterward.
func (idx *Indexer) Build(embeddingModel, embeddingMode string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	idx.closed = true
	return idx.builder.Build(embeddingModel, embeddingMode)
}

// Count returns the number of passages added so far.
func (idx *Indexer) Count() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.builder.Count()
}
