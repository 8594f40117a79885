package store

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"

	"github.com/blevesearch/mmap-go"

	amerrors "github.com/leanngo/leanngo/internal/errors"
)

const float32Size = 4

func embeddingsPath(base string) string { return base + ".embeddings" }

// EmbeddingsStore is a memory-mapped, headerless raw f32 matrix: row i is D
// little-endian f32s, aligned with IdMap position i. It is optional after an
// index is pruned; the AnnBackend holds its own copy of the vectors.
type EmbeddingsStore struct {
	file       *os.File
	mapping    mmap.MMap
	dimensions int
	count      int
}

// EmbeddingsExist reports whether an embeddings file exists for this index.
func EmbeddingsExist(base string) bool {
	_, err := os.Stat(embeddingsPath(base))
	return err == nil
}

// OpenEmbeddingsStore memory-maps an existing embeddings file.
func OpenEmbeddingsStore(base string, dimensions int) (*EmbeddingsStore, error) {
	path := embeddingsPath(base)
	f, err := os.Open(path)
	if err != nil {
		return nil, amerrors.NotFoundError("embeddings file not found: "+path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, amerrors.UpstreamError("stat embeddings file", err)
	}

	var m mmap.MMap
	if info.Size() > 0 {
		m, err = mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, amerrors.UpstreamError("memory-mapping embeddings file", err)
		}
	}

	bytesPerEmbedding := dimensions * float32Size
	count := 0
	if bytesPerEmbedding > 0 {
		count = len(m) / bytesPerEmbedding
	}

	return &EmbeddingsStore{file: f, mapping: m, dimensions: dimensions, count: count}, nil
}

// Get returns the embedding at row i, or (nil, false) if out of range.
// The returned slice is a fresh copy decoded from the mmap, so callers may
// keep or modify it.
func (s *EmbeddingsStore) Get(i int) ([]float32, bool) {
	if i < 0 || i >= s.count {
		return nil, false
	}

	bytesPerEmbedding := s.dimensions * float32Size
	start := i * bytesPerEmbedding
	end := start + bytesPerEmbedding
	if end > len(s.mapping) {
		return nil, false
	}

	out := make([]float32, s.dimensions)
	buf := s.mapping[start:end]
	for j := 0; j < s.dimensions; j++ {
		bits := binary.LittleEndian.Uint32(buf[j*4 : j*4+4])
		out[j] = math.Float32frombits(bits)
	}
	return out, true
}

// Len returns the number of embedding rows.
func (s *EmbeddingsStore) Len() int { return s.count }

// Close unmaps and closes the underlying file.
func (s *EmbeddingsStore) Close() error {
	if s.mapping != nil {
		if err := s.mapping.Unmap(); err != nil {
			return err
		}
	}
	return s.file.Close()
}

// PruneEmbeddings deletes the embeddings file to enable recompute mode.
// Idempotent: deleting an already-absent file is not an error.
func PruneEmbeddings(base string) error {
	err := os.Remove(embeddingsPath(base))
	if err != nil && !os.IsNotExist(err) {
		return amerrors.UpstreamError("deleting embeddings file", err)
	}
	return nil
}

// EmbeddingsWriter appends raw f32 rows to a new embeddings file.
type EmbeddingsWriter struct {
	file       *os.File
	writer     *bufio.Writer
	dimensions int
	count      int
}

// CreateEmbeddingsWriter creates a new embeddings file, truncating any existing one.
func CreateEmbeddingsWriter(base string, dimensions int) (*EmbeddingsWriter, error) {
	f, err := os.Create(embeddingsPath(base))
	if err != nil {
		return nil, amerrors.UpstreamError("creating embeddings file", err)
	}
	return &EmbeddingsWriter{file: f, writer: bufio.NewWriter(f), dimensions: dimensions}, nil
}

// Add appends one embedding row. Fails on dimension mismatch.
func (w *EmbeddingsWriter) Add(embedding []float32) error {
	if len(embedding) != w.dimensions {
		return amerrors.DimensionMismatchError(w.dimensions, len(embedding))
	}

	buf := make([]byte, len(embedding)*float32Size)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}

	if _, err := w.writer.Write(buf); err != nil {
		return amerrors.UpstreamError("writing embedding", err)
	}
	w.count++
	return nil
}

// Finish flushes and closes the writer, returning the number of rows written.
func (w *EmbeddingsWriter) Finish() (int, error) {
	if err := w.writer.Flush(); err != nil {
		return 0, amerrors.UpstreamError("flushing embeddings file", err)
	}
	if err := w.file.Close(); err != nil {
		return 0, amerrors.UpstreamError("closing embeddings file", err)
	}
	return w.count, nil
}
