// Package searcher provides a thin façade over [internal/index.IndexSearcher]
// and [internal/index.RecomputeSearcher], selected automatically from an
// index's [internal/store.IndexMeta] at Open time.
//
// # Architecture
//
//	┌────────────────┐   meta.is_pruned?   ┌───────────────────────┐
//	│   searcher.Open │ ───── false ───────▶│ internal/index.IndexSearcher │
//	│                 │                      └───────────────────────┘
//	│                 │ ───── true ────────▶┌───────────────────────────┐
//	└────────────────┘                      │ internal/index.RecomputeSearcher │
//	                                         └───────────────────────────┘
//
// # Usage
//
//	s, err := searcher.Open("documents.leann")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	results, err := s.Search(ctx, queryEmbedding, searcher.Options{
//	    TopK: 10, Hybrid: true, HybridAlpha: 0.5, QueryText: "rust programming",
//	})
//
// If the index is pruned, Search transparently re-embeds passages via the
// embedder supplied to [WithEmbedder]; callers that never query a pruned
// index may omit it.
//
// # Thread Safety
//
// Search is safe for concurrent use; the underlying BM25 scorer is built at
// most once and guarded internally.
package searcher
