package errors_test

import (
	"strings"
	"testing"

	"github.com/leanngo/leanngo/internal/index"
	"github.com/leanngo/leanngo/internal/store"
)

// TestErrorWrapping_PassageStore verifies PassageStore errors are wrapped with context.
func TestErrorWrapping_PassageStore(t *testing.T) {
	_, err := store.OpenPassageStore("/nonexistent/deeply/nested/path/that/cannot/exist")
	if err == nil {
		t.Skip("expected error opening passage store in nonexistent path")
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "offset map") {
		t.Errorf("error should mention the offset map lookup that failed, got: %s", errMsg)
	}
}

// TestErrorWrapping_FindIndex verifies registry lookups wrap not-found errors with context.
func TestErrorWrapping_FindIndex(t *testing.T) {
	_, err := index.FindIndex("no-such-index-anywhere")
	if err == nil {
		t.Fatal("expected an error for a nonexistent index name")
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "no-such-index-anywhere") {
		t.Errorf("error should mention the index name, got: %s", errMsg)
	}
}
