// Package testutil provides fixtures and assertions shared by docsync tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jbctechsolutions/docsync/internal/adapters/mapping/jsonfile"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

// WriteFile writes content to a file in the given directory, creating parent
// directories. Returns the full path to the created file.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}

// NewMappingStore opens a JSON mapping store in a fresh temporary directory.
// The store is closed when the test completes.
func NewMappingStore(t *testing.T) *jsonfile.Store {
	t.Helper()
	store, err := jsonfile.New(filepath.Join(t.TempDir(), "mappings.json"))
	if err != nil {
		t.Fatalf("failed to open mapping store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertErrorCode fails the test unless err is classified with code.
func AssertErrorCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error but got nil", code)
	}
	if got := errors.CodeOf(err); got != code {
		t.Fatalf("error code = %q, want %q (%v)", got, code, err)
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertContains checks if slice contains the given element.
func AssertContains[T comparable](t *testing.T, slice []T, elem T) {
	t.Helper()
	for _, v := range slice {
		if v == elem {
			return
		}
	}
	t.Fatalf("slice does not contain %v", elem)
}
