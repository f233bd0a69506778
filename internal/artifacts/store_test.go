package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"

	"heifconv/internal/artifacts"
)

func TestRecordAssignsNewIDAndHandle(t *testing.T) {
	store := artifacts.NewStore()
	artifact := store.Record("item-1", "x.png", []byte("png"))

	if artifact.ID == "" || artifact.ID == "item-1" {
		t.Fatalf("artifact needs its own ID, got %q", artifact.ID)
	}
	if artifact.OriginatingID != "item-1" {
		t.Fatalf("unexpected originating ID: %q", artifact.OriginatingID)
	}
	if artifact.ByteSize != 3 {
		t.Fatalf("unexpected byte size: %d", artifact.ByteSize)
	}
	if store.Outstanding() != 1 {
		t.Fatalf("expected one live handle, got %d", store.Outstanding())
	}
}

func TestRecordNeverDeduplicatesByOrigin(t *testing.T) {
	store := artifacts.NewStore()
	store.Record("item-1", "x.png", []byte("first"))
	store.Record("item-1", "x.png", []byte("second"))

	if store.Len() != 2 {
		t.Fatalf("expected 2 artifacts, got %d", store.Len())
	}
}

func TestExportDoesNotMutateState(t *testing.T) {
	store := artifacts.NewStore()
	artifact := store.Record("item-1", "x.png", []byte("payload"))
	dir := t.TempDir()

	path, err := store.ExportOne(artifact.ID, dir)
	if err != nil {
		t.Fatalf("ExportOne failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read exported file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("unexpected exported bytes: %q", data)
	}
	if filepath.Base(path) != "x.png" {
		t.Fatalf("unexpected export name: %q", path)
	}

	// Exporting again must still work: the store was not mutated.
	if _, err := store.ExportOne(artifact.ID, dir); err != nil {
		t.Fatalf("second export failed: %v", err)
	}
	if store.Len() != 1 || store.Outstanding() != 1 {
		t.Fatalf("export mutated store: len=%d outstanding=%d", store.Len(), store.Outstanding())
	}
}

func TestExportAllWritesInCompletionOrder(t *testing.T) {
	store := artifacts.NewStore()
	store.Record("a", "a.png", []byte("a"))
	store.Record("b", "b.png", []byte("b"))

	paths, err := store.ExportAll(t.TempDir())
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if filepath.Base(paths[0]) != "a.png" || filepath.Base(paths[1]) != "b.png" {
		t.Fatalf("unexpected order: %v", paths)
	}
}

func TestExportAllDisambiguatesDuplicateNames(t *testing.T) {
	store := artifacts.NewStore()
	store.Record("item-1", "x.png", []byte("first"))
	store.Record("item-1-retry", "x.png", []byte("second"))
	store.Record("other", "y.png", []byte("other"))

	paths, err := store.ExportAll(t.TempDir())
	if err != nil {
		t.Fatalf("ExportAll failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 paths, got %d", len(paths))
	}
	names := []string{filepath.Base(paths[0]), filepath.Base(paths[1]), filepath.Base(paths[2])}
	if names[0] != "x.png" || names[1] != "x-2.png" || names[2] != "y.png" {
		t.Fatalf("unexpected export names: %v", names)
	}

	first, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read %s: %v", paths[0], err)
	}
	second, err := os.ReadFile(paths[1])
	if err != nil {
		t.Fatalf("read %s: %v", paths[1], err)
	}
	if string(first) != "first" || string(second) != "second" {
		t.Fatalf("payloads collided: %q %q", first, second)
	}
}

func TestExportUnknownArtifact(t *testing.T) {
	store := artifacts.NewStore()
	if _, err := store.ExportOne("missing", t.TempDir()); err == nil {
		t.Fatal("expected error for unknown artifact")
	}
}

func TestResetRevokesEachHandleExactlyOnce(t *testing.T) {
	store := artifacts.NewStore()
	store.Record("a", "a.png", []byte("a"))
	store.Record("b", "b.png", []byte("b"))

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store after reset, got %d", store.Len())
	}
	if store.Outstanding() != 0 {
		t.Fatalf("expected all handles revoked, got %d", store.Outstanding())
	}

	// A second reset has nothing left to revoke and must not error.
	if err := store.Reset(); err != nil {
		t.Fatalf("second Reset failed: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store := artifacts.NewStore()
	store.Record("a", "a.png", []byte("a"))

	store.Close()
	if store.Outstanding() != 0 {
		t.Fatalf("expected handles revoked, got %d", store.Outstanding())
	}
	store.Close()
}
