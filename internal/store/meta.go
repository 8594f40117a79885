package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	amerrors "github.com/leanngo/leanngo/internal/errors"
)

// MetaVersion is the only IndexMeta.Version this reader accepts.
// Readers reject unknown versions per the external-interface contract.
const MetaVersion = "1.0"

// IndexMeta is the sidecar JSON file describing an index: its embedding
// space, backend, and lifecycle flags. It is the authority for whether an
// index's embeddings have been pruned (see IsPruned).
type IndexMeta struct {
	Version          string          `json:"version"`
	BackendName      string          `json:"backend_name"`
	EmbeddingModel   string          `json:"embedding_model"`
	EmbeddingMode    string          `json:"embedding_mode"`
	Dimensions       int             `json:"dimensions"`
	PassageCount     int             `json:"passage_count"`
	BackendKwargs    json.RawMessage `json:"backend_kwargs,omitempty"`
	EmbeddingOptions json.RawMessage `json:"embedding_options,omitempty"`
	IsRecompute      bool            `json:"is_recompute"`
	IsPruned         bool            `json:"is_pruned"`
}

// metaPath returns the sidecar meta path for an index base path.
func metaPath(base string) string {
	return base + ".meta.json"
}

// LoadIndexMeta reads and validates a meta file for the given index base path.
func LoadIndexMeta(base string) (*IndexMeta, error) {
	path := metaPath(base)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, amerrors.NotFoundError(fmt.Sprintf("index meta not found: %s", path), err)
		}
		return nil, amerrors.UpstreamError("reading index meta", err)
	}

	var meta IndexMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, amerrors.CorruptPassageError("index meta is not valid JSON", err)
	}

	if meta.Version != MetaVersion {
		return nil, amerrors.IncompatibleError(
			fmt.Sprintf("unsupported index meta version %q (expected %q)", meta.Version, MetaVersion), nil).
			WithSuggestion("rebuild the index with this version of leann")
	}

	return &meta, nil
}

// Save writes the meta file atomically (temp file + rename), matching the
// offset-map-as-commit-barrier pattern used by PassageStore.
func (m *IndexMeta) Save(base string) error {
	if m.Version == "" {
		m.Version = MetaVersion
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return amerrors.InternalError("marshal index meta", err)
	}

	path := metaPath(base)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return amerrors.UpstreamError("creating index directory", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return amerrors.UpstreamError("writing index meta", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return amerrors.UpstreamError("committing index meta", err)
	}
	return nil
}
