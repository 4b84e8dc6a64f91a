// Package memstore is an in-memory blobstore.Store used only by this
// module's own test suite. It is not a supported backend: concrete
// blob-storage backends are explicitly out of scope for the indexing core
// (see spec.md §1) and are the embedding application's responsibility to
// provide.
package memstore

import (
	"context"
	"sync"

	"github.com/arjunvsood/ftindex/blobstore"
)

// Store is a minimal thread-safe in-memory implementation of
// blobstore.Store, sized for unit tests, not production use.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

var _ blobstore.Store = (*Store)(nil)

func (s *Store) Write(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[name] = cp
	return nil
}

func (s *Store) Append(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.blobs[name]
	merged := make([]byte, 0, len(existing)+len(data))
	merged = append(merged, existing...)
	merged = append(merged, data...)
	s.blobs[name] = merged
	return nil
}

func (s *Store) Read(_ context.Context, name string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (s *Store) ReadRange(_ context.Context, name string, start, end uint64) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[name]
	if !ok {
		return nil, false, nil
	}
	if start >= uint64(len(data)) {
		return []byte{}, true, nil
	}
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	if end < start {
		end = start
	}
	cp := make([]byte, end-start)
	copy(cp, data[start:end])
	return cp, true, nil
}

func (s *Store) Size(_ context.Context, name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(len(s.blobs[name])), nil
}

func (s *Store) Remove(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, name)
	return nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.blobs))
	for name := range s.blobs {
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = make(map[string][]byte)
	return nil
}
