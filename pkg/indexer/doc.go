// Package indexer provides a thin, functional-options façade over
// [internal/index.StreamingIndexBuilder] for callers assembling an index
// from already-chunked, already-embedded records.
//
// # Architecture
//
// The package deliberately does not chunk documents or call an embedding
// service — those are external collaborators (see the root spec's scope
// notes). Callers hand the Indexer pre-computed (id, text, embedding,
// metadata) tuples; the Indexer drives the streaming builder underneath.
//
//	┌──────────────┐      AddPassage       ┌────────────────────────┐
//	│ chunk+embed  │ ─────────────────────▶│        Indexer          │
//	│  pipeline    │                       │  (this package)         │
//	│ (external)   │                       └───────────┬────────────┘
//	└──────────────┘                                    │
//	                                                     ▼
//	                                    internal/index.StreamingIndexBuilder
//
// # Usage
//
//	idx, err := indexer.New("documents.leann", 1536,
//	    indexer.WithGraphDegree(32),
//	    indexer.WithRecompute(true),
//	)
//	if err != nil {
//	    return err
//	}
//	for _, p := range passages {
//	    if err := idx.AddPassage(p.ID, p.Text, p.Embedding, p.Metadata); err != nil {
//	        return err
//	    }
//	}
//	err = idx.Build("text-embedding-3-small", "openai")
//
// # Thread Safety
//
// Concurrent AddPassage calls are serialized by the Indexer's mutex; the
// streaming builder assigns dense labels in the order the calls acquire it,
// so concurrent callers get no particular label order.
package indexer
