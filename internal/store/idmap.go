package store

import (
	"bufio"
	"os"
	"strings"

	amerrors "github.com/leanngo/leanngo/internal/errors"
)

func idMapPath(base string) string { return base + ".ids.txt" }

// IdMapWriter appends newline-delimited string ids in label order: the
// i-th call to Add assigns AnnBackend label i.
type IdMapWriter struct {
	file  *os.File
	count int
}

// CreateIdMapWriter creates a new ids file, truncating any existing one.
func CreateIdMapWriter(base string) (*IdMapWriter, error) {
	f, err := os.Create(idMapPath(base))
	if err != nil {
		return nil, amerrors.UpstreamError("creating id map file", err)
	}
	return &IdMapWriter{file: f}, nil
}

// OpenIdMapWriterForAppend opens an existing ids file for append,
// continuing label assignment from its current line count.
func OpenIdMapWriterForAppend(base string) (*IdMapWriter, error) {
	existing, err := ReadIdMap(base)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(idMapPath(base), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, amerrors.UpstreamError("opening id map file for append", err)
	}

	return &IdMapWriter{file: f, count: len(existing)}, nil
}

// Add appends one id line.
func (w *IdMapWriter) Add(id string) error {
	if _, err := w.file.WriteString(id + "\n"); err != nil {
		return amerrors.UpstreamError("writing id map entry", err)
	}
	w.count++
	return nil
}

// Finish flushes and closes the writer, returning the number of ids written.
func (w *IdMapWriter) Finish() (int, error) {
	if err := w.file.Sync(); err != nil {
		return 0, amerrors.UpstreamError("syncing id map file", err)
	}
	if err := w.file.Close(); err != nil {
		return 0, amerrors.UpstreamError("closing id map file", err)
	}
	return w.count, nil
}

// ReadIdMap reads the full ordered id list for an index. Falls back to the
// passage store's id set (unordered) if the ids file is missing, matching
// the original implementation's degraded-but-usable behavior.
func ReadIdMap(base string) ([]string, error) {
	f, err := os.Open(idMapPath(base))
	if err != nil {
		if os.IsNotExist(err) {
			ps, openErr := OpenPassageStore(base)
			if openErr != nil {
				return nil, amerrors.NotFoundError("neither id map nor passage store found for "+base, err)
			}
			defer ps.Close()
			return ps.IDs(), nil
		}
		return nil, amerrors.UpstreamError("reading id map", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			ids = append(ids, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, amerrors.UpstreamError("scanning id map", err)
	}
	return ids, nil
}
