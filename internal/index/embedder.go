// Package index implements the retrieval core's build and search
// orchestration: StreamingIndexBuilder, IndexSearcher, RecomputeSearcher,
// and the index-name registry. Embedding-service clients are an external
// collaborator (out of scope); this package depends only on the Embedder
// contract below.
package index

import "context"

// Embedder is the external embedding-provider contract. The core assumes
// the provider preserves input order and returns exactly one vector per
// input text.
type Embedder interface {
	Dimensions() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedWithTemplate(ctx context.Context, texts []string, prefix string) ([][]float32, error)
}
