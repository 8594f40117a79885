package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeForeignHeader(path string) error {
	return os.WriteFile(path, []byte("HNSW-but-not-ours-and-unreadable"), 0o644)
}

func tempBase(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "idx")
}

func buildSampleIndex(t *testing.T, base string, opts ...BuilderOption) {
	t.Helper()
	b, err := NewStreamingIndexBuilder(base, 3, opts...)
	require.NoError(t, err)

	docs := []struct {
		id   string
		text string
		vec  []float32
	}{
		{"a", "graph database storage engine", []float32{1, 0, 0}},
		{"b", "vector search and retrieval", []float32{0, 1, 0}},
		{"c", "hybrid lexical and semantic ranking", []float32{0, 0, 1}},
		{"d", "graph traversal algorithms", []float32{0.9, 0.1, 0}},
	}
	for _, d := range docs {
		require.NoError(t, b.AddPassage(d.id, d.text, d.vec, nil))
	}

	require.NoError(t, b.Build("fake-model", "sentence"))
}

func TestBuildThenSearchSelfRetrieval(t *testing.T) {
	base := tempBase(t)
	buildSampleIndex(t, base)

	s, err := LoadIndexSearcher(base)
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Search([]float32{1, 0, 0}, 1, 32)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestBuilderRejectsDimensionMismatch(t *testing.T) {
	base := tempBase(t)
	b, err := NewStreamingIndexBuilder(base, 3)
	require.NoError(t, err)

	err = b.AddPassage("x", "text", []float32{1, 2}, nil)
	assert.Error(t, err)
}

func TestBuilderRejectsConcurrentWriter(t *testing.T) {
	base := tempBase(t)
	b, err := NewStreamingIndexBuilder(base, 3)
	require.NoError(t, err)
	defer b.abort()

	_, err = NewStreamingIndexBuilder(base, 3)
	assert.Error(t, err)
}

func TestForeignIndexFormatRejected(t *testing.T) {
	base := tempBase(t)
	buildSampleIndex(t, base)

	// Corrupt the ann index file with a foreign magic prefix.
	require.NoError(t, writeForeignHeader(base+".index"))

	_, err := LoadIndexSearcher(base)
	assert.Error(t, err)
}
