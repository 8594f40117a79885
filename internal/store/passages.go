package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	amerrors "github.com/leanngo/leanngo/internal/errors"
)

// Passage is the atomic unit of retrieval: a text fragment plus free-form metadata.
type Passage struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func passagesJSONLPath(base string) string { return base + ".passages.jsonl" }
func passagesIdxPath(base string) string   { return base + ".passages.idx.json" }

// PassageStoreWriter writes passages to a JSONL file while recording each
// passage's byte offset, for O(1) random access once finished.
//
// The offset-map file is the commit barrier: it is written only by Finish,
// atomically, so a reader opening the index before Finish completes sees
// "not found" rather than a partial index. See IndexMeta and OpenPassageStore.
type PassageStoreWriter struct {
	base          string
	file          *os.File
	writer        *bufio.Writer
	offsets       map[string]int64
	currentOffset int64
}

// CreatePassageStore creates a new passage store writer, truncating any
// existing JSONL file at this base path.
func CreatePassageStore(base string) (*PassageStoreWriter, error) {
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return nil, amerrors.UpstreamError("creating index directory", err)
	}

	f, err := os.Create(passagesJSONLPath(base))
	if err != nil {
		return nil, amerrors.UpstreamError("creating passages file", err)
	}

	return &PassageStoreWriter{
		base:    base,
		file:    f,
		writer:  bufio.NewWriter(f),
		offsets: make(map[string]int64),
	}, nil
}

// OpenPassageStoreForAppend loads an existing offset map and reopens the
// JSONL file for append, so Add continues to assign consistent offsets.
func OpenPassageStoreForAppend(base string) (*PassageStoreWriter, error) {
	offsets, err := readOffsets(base)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(passagesJSONLPath(base), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, amerrors.UpstreamError("opening passages file for append", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, amerrors.UpstreamError("stat passages file", err)
	}

	return &PassageStoreWriter{
		base:          base,
		file:          f,
		writer:        bufio.NewWriter(f),
		offsets:       offsets,
		currentOffset: info.Size(),
	}, nil
}

// Add appends a passage, recording its byte offset before writing. Fails if
// the id is already present.
func (w *PassageStoreWriter) Add(p Passage) error {
	if p.ID == "" {
		return amerrors.ValidationError("passage id must not be empty", nil)
	}
	if _, exists := w.offsets[p.ID]; exists {
		return amerrors.ValidationError(fmt.Sprintf("passage id %q already present", p.ID), nil)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return amerrors.InternalError("marshal passage", err)
	}

	w.offsets[p.ID] = w.currentOffset

	n, err := w.writer.Write(data)
	if err != nil {
		return amerrors.UpstreamError("writing passage", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return amerrors.UpstreamError("writing passage", err)
	}
	w.currentOffset += int64(n) + 1

	return nil
}

// Finish flushes the JSONL file and atomically writes the offset-map file.
// Until Finish returns successfully, the index is not valid for opening.
func (w *PassageStoreWriter) Finish() error {
	if err := w.writer.Flush(); err != nil {
		return amerrors.UpstreamError("flushing passages file", err)
	}
	if err := w.file.Sync(); err != nil {
		return amerrors.UpstreamError("syncing passages file", err)
	}
	if err := w.file.Close(); err != nil {
		return amerrors.UpstreamError("closing passages file", err)
	}

	data, err := json.Marshal(w.offsets)
	if err != nil {
		return amerrors.InternalError("marshal offset map", err)
	}

	idxPath := passagesIdxPath(w.base)
	tmp := idxPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return amerrors.UpstreamError("writing offset map", err)
	}
	if err := os.Rename(tmp, idxPath); err != nil {
		os.Remove(tmp)
		return amerrors.UpstreamError("committing offset map", err)
	}

	return nil
}

// Len returns the number of passages written so far.
func (w *PassageStoreWriter) Len() int { return len(w.offsets) }

func readOffsets(base string) (map[string]int64, error) {
	idxPath := passagesIdxPath(base)
	data, err := os.ReadFile(idxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, amerrors.NotFoundError(fmt.Sprintf("index offset map not found (incomplete build?): %s", idxPath), err)
		}
		return nil, amerrors.UpstreamError("reading offset map", err)
	}

	var offsets map[string]int64
	if err := json.Unmarshal(data, &offsets); err != nil {
		return nil, amerrors.CorruptPassageError("offset map is not valid JSON", err)
	}
	return offsets, nil
}

// PassageStore provides O(1) random access to passages by id, backed by a
// JSONL file and an in-memory offset map loaded at Open time.
type PassageStore struct {
	base    string
	file    *os.File
	offsets map[string]int64
	mu      sync.Mutex // guards seek+read, since Get shares one file handle
}

// OpenPassageStore opens an existing, fully-written passage store. It fails
// if the offset-map commit barrier is missing, meaning the index was never
// finished (or the build crashed mid-way).
func OpenPassageStore(base string) (*PassageStore, error) {
	offsets, err := readOffsets(base)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(passagesJSONLPath(base))
	if err != nil {
		return nil, amerrors.NotFoundError(fmt.Sprintf("passages file not found: %s", passagesJSONLPath(base)), err)
	}

	return &PassageStore{base: base, file: f, offsets: offsets}, nil
}

// Get looks up a passage by id, seeking the JSONL file to its recorded
// offset and parsing a single line.
func (s *PassageStore) Get(id string) (Passage, error) {
	offset, ok := s.offsets[id]
	if !ok {
		return Passage{}, amerrors.NotFoundError(fmt.Sprintf("passage %q not found", id), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(offset, 0); err != nil {
		return Passage{}, amerrors.UpstreamError("seeking passages file", err)
	}

	reader := bufio.NewReader(s.file)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Passage{}, amerrors.CorruptPassageError(fmt.Sprintf("offset for %q is out of range", id), err)
	}

	var p Passage
	if err := json.Unmarshal(line, &p); err != nil {
		return Passage{}, amerrors.CorruptPassageError(fmt.Sprintf("passage %q is not valid JSON", id), err)
	}

	return p, nil
}

// IDs returns all passage ids known to the offset map, in unspecified order.
// Callers needing a stable, build-time order should use the IdMap instead.
func (s *PassageStore) IDs() []string {
	ids := make([]string, 0, len(s.offsets))
	for id := range s.offsets {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of passages in the store.
func (s *PassageStore) Len() int { return len(s.offsets) }

// Close releases the underlying file handle.
func (s *PassageStore) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
