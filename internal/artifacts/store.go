package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"heifconv/internal/handles"
)

// ErrNotFound indicates an artifact ID that is not in the store.
var ErrNotFound = errors.New("artifact not found")

// Artifact is the successful output of a work item: the PNG payload plus a
// revocable access reference.
type Artifact struct {
	ID            string
	OriginatingID string
	DerivedName   string
	ByteSize      int64
	AccessRef     string
	CreatedAt     time.Time

	payload []byte
}

// Payload returns the artifact's bytes.
func (a *Artifact) Payload() []byte {
	return a.payload
}

// Store accumulates converted artifacts in completion order and owns handle
// cleanup. Artifacts are never discarded implicitly mid-session; only Reset
// and Close revoke them.
type Store struct {
	mu       sync.Mutex
	ordered  []*Artifact
	registry *handles.Registry
}

// NewStore returns an empty result store.
func NewStore() *Store {
	return &Store{registry: handles.NewRegistry()}
}

// Record creates an artifact for a completed conversion, acquires its access
// handle, and appends it. Entries are never deduplicated by originating ID;
// a resubmitted source legitimately yields a second artifact.
func (s *Store) Record(originatingID, derivedName string, payload []byte) *Artifact {
	artifact := &Artifact{
		ID:            uuid.NewString(),
		OriginatingID: originatingID,
		DerivedName:   derivedName,
		ByteSize:      int64(len(payload)),
		AccessRef:     s.registry.Acquire(payload),
		CreatedAt:     time.Now().UTC(),
		payload:       payload,
	}
	s.mu.Lock()
	s.ordered = append(s.ordered, artifact)
	s.mu.Unlock()
	return artifact
}

// ByID fetches an artifact. Returns nil when absent.
func (s *Store) ByID(id string) *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, artifact := range s.ordered {
		if artifact.ID == id {
			return artifact
		}
	}
	return nil
}

// List returns artifacts in completion order.
func (s *Store) List() []*Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*Artifact, len(s.ordered))
	copy(cp, s.ordered)
	return cp
}

// Len reports the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ordered)
}

// ExportOne writes a single artifact's bytes into dir under its derived name,
// overwriting a previous file of that name. Store state is not mutated;
// exporting twice is allowed.
func (s *Store) ExportOne(id, dir string) (string, error) {
	artifact := s.ByID(id)
	if artifact == nil {
		return "", fmt.Errorf("export %s: %w", id, ErrNotFound)
	}
	return s.export(artifact, dir, artifact.DerivedName)
}

// ExportAll writes every stored artifact into dir, returning the written
// paths in completion order. Artifacts sharing a derived name (a resubmitted
// source yields a second artifact with the same name) get a numeric suffix so
// no export overwrites another from the same call.
func (s *Store) ExportAll(dir string) ([]string, error) {
	used := make(map[string]int)
	var paths []string
	for _, artifact := range s.List() {
		path, err := s.export(artifact, dir, uniqueName(artifact.DerivedName, used))
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Store) export(artifact *Artifact, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	payload, ok := s.registry.Resolve(artifact.AccessRef)
	if !ok {
		return "", fmt.Errorf("export %s: access handle revoked", name)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// uniqueName returns name on first use and name-N variants afterwards, never
// colliding with a name already handed out in the same export pass.
func uniqueName(name string, used map[string]int) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := used[name]; ; n++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if used[candidate] == 0 {
			used[candidate]++
			return candidate
		}
	}
}

// Reset revokes every artifact's access handle exactly once and clears the
// store. Used to start a fresh batch without tearing down the engine.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, artifact := range s.ordered {
		if err := s.registry.Release(artifact.AccessRef); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.ordered = nil
	return firstErr
}

// Close revokes all outstanding handles unconditionally. Safe to call after
// Reset and safe to call repeatedly.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.ReleaseAll()
	s.ordered = nil
}

// Outstanding reports live access handles, for leak assertions in tests.
func (s *Store) Outstanding() int {
	return s.registry.Outstanding()
}
