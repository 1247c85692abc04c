// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tss.
//
// go-tss is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package versioning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryVersionStore is an in-memory implementation of VersionStore.
// Thread-safe using a read-write mutex. All records are deep-copied on the
// way in and out.
type MemoryVersionStore struct {
	mu     sync.RWMutex
	keys   map[string]map[uint64]*KeyVersion
	closed bool
}

// NewMemoryVersionStore creates a new in-memory version store.
func NewMemoryVersionStore() *MemoryVersionStore {
	return &MemoryVersionStore{
		keys: make(map[string]map[uint64]*KeyVersion),
	}
}

// CurrentVersion returns the key's active version record.
func (s *MemoryVersionStore) CurrentVersion(ctx context.Context, keyID string) (*KeyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	versions, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	for _, v := range versions {
		if v.Status == StatusActive {
			return v.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoActiveVersion, keyID)
}

// GetVersion returns a specific version record.
func (s *MemoryVersionStore) GetVersion(ctx context.Context, keyID string, version uint64) (*KeyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	versions, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	v, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s version %d", ErrVersionNotFound, keyID, version)
	}
	return v.Clone(), nil
}

// ListVersions returns all version records for a key, ordered by version.
func (s *MemoryVersionStore) ListVersions(ctx context.Context, keyID string) ([]*KeyVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	versions, ok := s.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	out := make([]*KeyVersion, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// AppendVersion registers a new version for a key.
func (s *MemoryVersionStore) AppendVersion(ctx context.Context, keyID string, record *KeyVersion) error {
	if record == nil {
		return fmt.Errorf("versioning: record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	versions, ok := s.keys[keyID]
	if !ok {
		versions = make(map[uint64]*KeyVersion)
		s.keys[keyID] = versions
	}

	if _, exists := versions[record.Version]; exists {
		return fmt.Errorf("%w: %s version %d", ErrVersionExists, keyID, record.Version)
	}

	if record.Status == StatusActive {
		for _, v := range versions {
			if v.Status == StatusActive {
				return fmt.Errorf("%w: %s version %d", ErrActiveVersionExists, keyID, v.Version)
			}
		}
	}

	versions[record.Version] = record.Clone()
	return nil
}

// UpdateStatus changes the lifecycle state of a specific version.
func (s *MemoryVersionStore) UpdateStatus(ctx context.Context, keyID string, version uint64, status Status, rotatedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	versions, ok := s.keys[keyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	v, ok := versions[version]
	if !ok {
		return fmt.Errorf("%w: %s version %d", ErrVersionNotFound, keyID, version)
	}

	v.Status = status
	if rotatedAt != nil {
		t := *rotatedAt
		v.RotatedAt = &t
	}
	return nil
}

// DeleteKey removes all version history for a key.
func (s *MemoryVersionStore) DeleteKey(ctx context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.keys[keyID]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	delete(s.keys, keyID)
	return nil
}

// ListKeys returns all key IDs in the store, sorted.
func (s *MemoryVersionStore) ListKeys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases the store. Subsequent operations fail with ErrStoreClosed.
func (s *MemoryVersionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.keys = nil
	return nil
}
