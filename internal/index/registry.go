package index

import (
	"fmt"
	"os"
	"path/filepath"

	amerrors "github.com/leanngo/leanngo/internal/errors"
)

// FindIndex resolves an index name to a directory-relative base path,
// checked in order: the local project registry (./.leann/indexes/<name>),
// an absolute path (if name is one), then the user's global registry
// (<home>/.leann/indexes/<name>). Grounded on the original implementation's
// find_index (src/index/locate.rs).
func FindIndex(name string) (string, error) {
	local := filepath.Join(".leann", "indexes", name)
	if pathExists(local) {
		return local, nil
	}

	if filepath.IsAbs(name) && pathExists(name) {
		return name, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".leann", "indexes", name)
		if pathExists(global) {
			return global, nil
		}
	}

	return "", amerrors.NotFoundError(
		fmt.Sprintf("index %q not found", name), nil).
		WithSuggestion("run 'leann list' to see available indexes")
}

// pathExists reports whether any file with this base name exists, checking
// for the meta sidecar since index "directories" in this layout are really
// a shared file-name prefix, not an actual directory.
func pathExists(base string) bool {
	_, err := os.Stat(base + ".meta.json")
	return err == nil
}
