package testsupport

import (
	"context"
	"testing"

	"heifconv/internal/queue"
)

// MustOpenStore opens a session store for tests and registers cleanup.
func MustOpenStore(t testing.TB) *queue.Store {
	t.Helper()

	store, err := queue.Open()
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem creates a pending work item for tests using the provided store.
func NewItem(t testing.TB, store *queue.Store, sourcePath string) *queue.Item {
	t.Helper()

	item, err := store.NewItem(context.Background(), sourcePath, pathBase(sourcePath), 1024, "image/heic")
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	return item
}

func pathBase(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
