package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/leanngo/leanngo/internal/errors"
	"github.com/leanngo/leanngo/internal/filter"
	"github.com/leanngo/leanngo/internal/store"
)

// fakeEmbedder deterministically maps known texts to the same vectors used
// to build the sample index, so recompute search is expected to reproduce
// the same ranking as the AnnBackend would.
type fakeEmbedder struct {
	dims   int
	lookup map[string][]float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		dims: 3,
		lookup: map[string][]float32{
			"graph database storage engine":      {1, 0, 0},
			"vector search and retrieval":        {0, 1, 0},
			"hybrid lexical and semantic ranking": {0, 0, 1},
			"graph traversal algorithms":          {0.9, 0.1, 0},
		},
	}
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.lookup[t]; ok {
			out[i] = v
		} else {
			out[i] = make([]float32, f.dims)
		}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedWithTemplate(ctx context.Context, texts []string, prefix string) ([][]float32, error) {
	return f.Embed(ctx, texts)
}

func pruneIndex(t *testing.T, base string) {
	t.Helper()
	meta, err := store.LoadIndexMeta(base)
	require.NoError(t, err)
	meta.IsPruned = true
	require.NoError(t, meta.Save(base))
	require.NoError(t, store.PruneEmbeddings(base))
}

func TestRecomputeSearchReproducesVectorRanking(t *testing.T) {
	base := tempBase(t)
	buildSampleIndex(t, base, WithRecompute(true))
	pruneIndex(t, base)

	s, err := LoadRecomputeSearcher(base)
	require.NoError(t, err)
	defer s.Close()

	embedder := newFakeEmbedder()
	results, err := s.Search(context.Background(), []float32{1, 0, 0}, embedder, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

// TestRecomputeSearchTripsCircuitBreakerAfterRepeatedEmbedFailures exercises
// the CircuitBreaker wired around embedder.Embed: once enough consecutive
// failures accumulate, further Search calls fail fast with ErrCircuitOpen
// instead of paying the full retry cost against a down embedder.
func TestRecomputeSearchTripsCircuitBreakerAfterRepeatedEmbedFailures(t *testing.T) {
	base := tempBase(t)
	buildSampleIndex(t, base, WithRecompute(true))
	pruneIndex(t, base)

	s, err := LoadRecomputeSearcher(base)
	require.NoError(t, err)
	defer s.Close()

	// Swap in a fast-tripping breaker so the test doesn't wait out the
	// default 5-failure threshold.
	s.embedCB = amerrors.NewCircuitBreaker("test-recompute-embedder", amerrors.WithMaxFailures(2), amerrors.WithResetTimeout(time.Minute))

	// A pre-cancelled context makes the retry loop return ctx.Err() before
	// embedder.Embed is ever called, so each Search fails without backoff delays.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	embedder := newFakeEmbedder()

	for i := 0; i < 2; i++ {
		_, err := s.Search(ctx, []float32{1, 0, 0}, embedder, 1, nil)
		require.Error(t, err)
	}
	assert.Equal(t, amerrors.StateOpen, s.embedCB.State())

	_, err = s.Search(context.Background(), []float32{1, 0, 0}, embedder, 1, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, amerrors.ErrCircuitOpen))
}

func TestRecomputeSearchAppliesFilterBeforeEmbedding(t *testing.T) {
	base := tempBase(t)
	buildSampleIndex(t, base, WithRecompute(true))
	pruneIndex(t, base)

	s, err := LoadRecomputeSearcher(base)
	require.NoError(t, err)
	defer s.Close()

	f, err := filter.Parse("id=b")
	require.NoError(t, err)

	embedder := newFakeEmbedder()
	results, err := s.Search(context.Background(), []float32{0, 1, 0}, embedder, 5, &f)
	require.NoError(t, err)
	require.Len(t, results, 0) // "id" is not a metadata field on these passages, so none match
}
