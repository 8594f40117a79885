package store

import (
	"bufio"
	"os"

	"github.com/coder/hnsw"

	amerrors "github.com/leanngo/leanngo/internal/errors"
)

// AnnBackend is the uniform contract for a pluggable approximate-nearest-
// neighbor graph. HNSW is the implemented variant; DiskANN is named by
// BackendName but has no implementation in this package.
type AnnBackend interface {
	// Search returns up to topK (label, score) pairs, higher score first.
	Search(query []float32, topK, searchComplexity int) (labels []uint64, scores []float32, err error)
	Len() int
}

// IncrementalBackend is an optional capability: backends that support
// appending vectors to an already-built graph implement it. HNSW does;
// DiskANN does not (updates require a full rebuild).
type IncrementalBackend interface {
	AnnBackend
	AddVectors(embeddings [][]float32, startLabel uint64) error
}

func annIndexPath(base, backendName string) string {
	switch backendName {
	case "diskann":
		return base + ".diskann"
	default:
		return base + ".index"
	}
}

// foreignMagicPrefixes are first-bytes signatures of index formats this
// module does not produce: a FAISS index (Python LEANN, "Ix.." variants),
// a generic CSR dump, or a differently-shaped "HNSW" container. Detecting
// these at load time lets the caller fail fast with a clear rebuild message
// instead of a confusing decode error.
var foreignMagicPrefixes = [][]byte{
	[]byte("Ix"),
	[]byte("CSR\x00"),
	[]byte("HNSW"),
}

// isForeignFormat reports whether the first bytes of path match a known
// foreign index format.
func isForeignFormat(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 8)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return false, nil
	}
	head = head[:n]

	for _, magic := range foreignMagicPrefixes {
		if len(head) >= len(magic) && string(head[:len(magic)]) == string(magic) {
			return true, nil
		}
	}
	return false, nil
}

// HNSWBackend is the AnnBackend implementation over github.com/coder/hnsw,
// a pure-Go HNSW graph (no CGO), using inner product (MIPS) distance per
// the retrieval core's ranking metric. Labels are dense integer positions
// assigned in add order, shared with IdMap and EmbeddingsStore.
type HNSWBackend struct {
	graph *hnsw.Graph[uint64]
}

// BuildHNSWBackend constructs a graph from the full in-memory embeddings
// matrix (label i = embeddings[i]) and writes it to <base>.index.
func BuildHNSWBackend(embeddings [][]float32, base string, graphDegree, buildComplexity int) error {
	graph := newHNSWGraph(graphDegree, buildComplexity)

	for i, emb := range embeddings {
		graph.Add(hnsw.MakeNode(uint64(i), emb))
	}

	return saveHNSWGraph(graph, annIndexPath(base, "hnsw"))
}

// LoadHNSWBackend loads a previously-built graph for searching.
func LoadHNSWBackend(base string) (*HNSWBackend, error) {
	path := annIndexPath(base, "hnsw")

	foreign, err := isForeignFormat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, amerrors.NotFoundError("ann index file not found: "+path, err)
		}
		return nil, amerrors.UpstreamError("reading ann index file", err)
	}
	if foreign {
		return nil, amerrors.IncompatibleError(
			"index file has a foreign header and was not built by this module", nil).
			WithSuggestion("rebuild the index with 'leann build ... --force'")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, amerrors.NotFoundError("ann index file not found: "+path, err)
	}
	defer f.Close()

	graph := newHNSWGraph(16, 64)
	reader := bufio.NewReader(f)
	if err := graph.Import(reader); err != nil {
		return nil, amerrors.IncompatibleError("failed to decode ann index: "+err.Error(), err).
			WithSuggestion("rebuild the index with 'leann build ... --force'")
	}

	return &HNSWBackend{graph: graph}, nil
}

// Search returns up to topK nearest labels by inner product, highest score first.
func (b *HNSWBackend) Search(query []float32, topK, searchComplexity int) ([]uint64, []float32, error) {
	if b.graph.Len() == 0 {
		return nil, nil, nil
	}

	prevEf := b.graph.EfSearch
	if searchComplexity > 0 {
		b.graph.EfSearch = searchComplexity
	}
	nodes := b.graph.Search(query, topK)
	b.graph.EfSearch = prevEf

	labels := make([]uint64, len(nodes))
	scores := make([]float32, len(nodes))
	for i, n := range nodes {
		labels[i] = n.Key
		scores[i] = dotProduct(query, n.Value)
	}
	return labels, scores, nil
}

// Len returns the number of vectors in the graph.
func (b *HNSWBackend) Len() int { return b.graph.Len() }

// AddVectors appends vectors to an already-built graph, assigning labels
// sequentially starting at startLabel. HNSW supports incremental updates;
// DiskANN does not.
func (b *HNSWBackend) AddVectors(embeddings [][]float32, startLabel uint64) error {
	for i, emb := range embeddings {
		b.graph.Add(hnsw.MakeNode(startLabel+uint64(i), emb))
	}
	return nil
}

// Save persists the graph to <base>.index, atomically (temp file + rename).
func (b *HNSWBackend) Save(base string) error {
	return saveHNSWGraph(b.graph, annIndexPath(base, "hnsw"))
}

var _ IncrementalBackend = (*HNSWBackend)(nil)

func newHNSWGraph(graphDegree, complexity int) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	// Inner product (MIPS): higher raw dot product is better, so the graph's
	// internal "smaller distance is closer" convention needs the negated
	// dot product as its distance function.
	graph.Distance = func(a, b []float32) float32 { return -dotProduct(a, b) }
	if graphDegree > 0 {
		graph.M = graphDegree
	}
	if complexity > 0 {
		graph.EfSearch = complexity
	}
	graph.Ml = 0.25
	return graph
}

func saveHNSWGraph(graph *hnsw.Graph[uint64], path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return amerrors.UpstreamError("creating ann index file", err)
	}

	if err := graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return amerrors.UpstreamError("exporting ann graph", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return amerrors.UpstreamError("closing ann index file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return amerrors.UpstreamError("committing ann index file", err)
	}
	return nil
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
