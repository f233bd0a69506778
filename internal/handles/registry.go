package handles

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownRef indicates a reference that was never issued or was already
// released. Double release is a correctness bug, so it surfaces as an error
// instead of a silent no-op.
var ErrUnknownRef = errors.New("unknown or already released handle")

// Scheme prefixes every issued reference.
const Scheme = "mem://"

// Registry issues revocable references to in-memory payloads. Each reference
// must be released exactly once before the owning payload is discarded.
type Registry struct {
	mu   sync.Mutex
	refs map[string][]byte
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{refs: make(map[string][]byte)}
}

// Acquire registers payload and returns its revocable reference.
func (r *Registry) Acquire(payload []byte) string {
	ref := Scheme + uuid.NewString()
	r.mu.Lock()
	r.refs[ref] = payload
	r.mu.Unlock()
	return ref
}

// Resolve returns the payload behind ref, if still live.
func (r *Registry) Resolve(ref string) ([]byte, bool) {
	r.mu.Lock()
	payload, ok := r.refs[ref]
	r.mu.Unlock()
	return payload, ok
}

// Release revokes ref. Releasing an unknown or already-released reference
// returns ErrUnknownRef.
func (r *Registry) Release(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[ref]; !ok {
		return fmt.Errorf("release %s: %w", ref, ErrUnknownRef)
	}
	delete(r.refs, ref)
	return nil
}

// ReleaseAll revokes every outstanding reference and reports how many were
// released. Used at teardown, where cleanup is mandatory.
func (r *Registry) ReleaseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := len(r.refs)
	r.refs = make(map[string][]byte)
	return count
}

// Outstanding reports the number of live references.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refs)
}
