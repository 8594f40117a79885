package index

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/gofrs/flock"

	amerrors "github.com/leanngo/leanngo/internal/errors"
	"github.com/leanngo/leanngo/internal/store"
)

// BuilderOption configures a StreamingIndexBuilder.
type BuilderOption func(*builderConfig)

type builderConfig struct {
	graphDegree     int
	buildComplexity int
	recompute       bool
}

// WithGraphDegree sets the HNSW connectivity parameter M (default 16).
func WithGraphDegree(m int) BuilderOption {
	return func(c *builderConfig) { c.graphDegree = m }
}

// WithBuildComplexity sets the HNSW build-time expansion factor ef_construction (default 64).
func WithBuildComplexity(ef int) BuilderOption {
	return func(c *builderConfig) { c.buildComplexity = ef }
}

// WithRecompute enables recompute mode: embeddings are additionally
// persisted to a separate <base>.embeddings file and IndexMeta records
// is_recompute. RecomputeSearcher does not read that file; it re-embeds
// passage texts at query time.
func WithRecompute(enabled bool) BuilderOption {
	return func(c *builderConfig) { c.recompute = enabled }
}

// StreamingIndexBuilder ingests (id, text, embedding, metadata) tuples and
// writes PassageStore, IdMap, and (optionally) EmbeddingsStore incrementally
// as each record arrives. Only the embeddings matrix is additionally
// retained in memory, solely for the final AnnBackend build call.
//
// The i-th call to AddPassage assigns AnnBackend label i, IdMap line i, and
// (if recompute) EmbeddingsStore row i.
type StreamingIndexBuilder struct {
	base       string
	dimensions int
	cfg        builderConfig

	lock *flock.Flock

	passages   *store.PassageStoreWriter
	ids        *store.IdMapWriter
	embWriter  *store.EmbeddingsWriter
	embeddings [][]float32

	count int
	done  bool
}

// NewStreamingIndexBuilder creates a builder for a new index at base,
// truncating any pre-existing files there. It takes an exclusive advisory
// lock on the file <base>.lock until Build returns, enforcing the
// single-writer-per-index policy.
func NewStreamingIndexBuilder(base string, dimensions int, opts ...BuilderOption) (*StreamingIndexBuilder, error) {
	cfg := builderConfig{graphDegree: 16, buildComplexity: 64}
	for _, opt := range opts {
		opt(&cfg)
	}

	lock := flock.New(base + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, amerrors.UpstreamError("acquiring index lock", err)
	}
	if !locked {
		return nil, amerrors.ValidationError("index is locked by another writer", nil)
	}

	passages, err := store.CreatePassageStore(base)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	ids, err := store.CreateIdMapWriter(base)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	b := &StreamingIndexBuilder{
		base:       base,
		dimensions: dimensions,
		cfg:        cfg,
		lock:       lock,
		passages:   passages,
		ids:        ids,
	}

	if cfg.recompute {
		w, err := store.CreateEmbeddingsWriter(base, dimensions)
		if err != nil {
			b.abort()
			return nil, err
		}
		b.embWriter = w
	}

	return b, nil
}

// AddPassage validates the embedding dimension and writes through to every
// open store, while also buffering the embedding in memory for the final
// graph build.
func (b *StreamingIndexBuilder) AddPassage(id, text string, embedding []float32, metadata json.RawMessage) error {
	if b.done {
		return amerrors.InternalError("builder already finished", nil)
	}
	if len(embedding) != b.dimensions {
		return amerrors.DimensionMismatchError(b.dimensions, len(embedding))
	}

	if err := b.passages.Add(store.Passage{ID: id, Text: text, Metadata: metadata}); err != nil {
		return err
	}
	if err := b.ids.Add(id); err != nil {
		return err
	}
	if b.embWriter != nil {
		if err := b.embWriter.Add(embedding); err != nil {
			return err
		}
	}

	buffered := make([]float32, len(embedding))
	copy(buffered, embedding)
	b.embeddings = append(b.embeddings, buffered)
	b.count++

	return nil
}

// Build flushes and closes the passage/id/embedding writers, builds the
// AnnBackend from the in-memory embeddings matrix, writes IndexMeta, and
// releases the write lock. The in-memory matrix is dropped once this
// returns.
func (b *StreamingIndexBuilder) Build(embeddingModel, embeddingMode string) error {
	defer b.lock.Unlock()
	b.done = true

	if err := b.passages.Finish(); err != nil {
		return err
	}
	if _, err := b.ids.Finish(); err != nil {
		return err
	}
	if b.embWriter != nil {
		if _, err := b.embWriter.Finish(); err != nil {
			return err
		}
	}

	if err := store.BuildHNSWBackend(b.embeddings, b.base, b.cfg.graphDegree, b.cfg.buildComplexity); err != nil {
		return err
	}

	meta := &store.IndexMeta{
		Version:        store.MetaVersion,
		BackendName:    "hnsw",
		EmbeddingModel: embeddingModel,
		EmbeddingMode:  embeddingMode,
		Dimensions:     b.dimensions,
		PassageCount:   b.count,
		IsRecompute:    b.cfg.recompute,
		IsPruned:       false,
	}
	if err := meta.Save(b.base); err != nil {
		return err
	}

	b.embeddings = nil
	slog.Info("index built", slog.String("base", b.base), slog.Int("passages", b.count))
	return nil
}

// abort releases the lock and best-effort removes partially-written files
// on a setup failure, before Build was ever reached.
func (b *StreamingIndexBuilder) abort() {
	b.lock.Unlock()
	os.Remove(b.base + ".passages.jsonl")
	os.Remove(b.base + ".ids.txt")
	os.Remove(b.base + ".embeddings")
}

// Count returns the number of passages added so far.
func (b *StreamingIndexBuilder) Count() int { return b.count }
