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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-tss/pkg/storage"
)

// BackendVersionStore implements VersionStore on top of a storage.Backend,
// serializing each version record as JSON under a per-key prefix. The store
// does not own the backend; closing the store leaves the backend open.
type BackendVersionStore struct {
	mu      sync.Mutex
	backend storage.Backend
	closed  bool
}

// NewBackendVersionStore creates a version store over the given backend.
func NewBackendVersionStore(backend storage.Backend) (*BackendVersionStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("versioning: backend cannot be nil")
	}
	return &BackendVersionStore{backend: backend}, nil
}

// CurrentVersion returns the key's active version record.
func (s *BackendVersionStore) CurrentVersion(ctx context.Context, keyID string) (*KeyVersion, error) {
	versions, err := s.ListVersions(ctx, keyID)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.Status == StatusActive {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoActiveVersion, keyID)
}

// GetVersion returns a specific version record.
func (s *BackendVersionStore) GetVersion(ctx context.Context, keyID string, version uint64) (*KeyVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.loadLocked(keyID, version)
}

// ListVersions returns all version records for a key, ordered by version.
func (s *BackendVersionStore) ListVersions(ctx context.Context, keyID string) ([]*KeyVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.listLocked(keyID)
}

func (s *BackendVersionStore) listLocked(keyID string) ([]*KeyVersion, error) {
	paths, err := s.backend.List(storage.VersionPrefix(keyID))
	if err != nil {
		return nil, fmt.Errorf("versioning: list %s: %w", keyID, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	out := make([]*KeyVersion, 0, len(paths))
	for _, path := range paths {
		id, version, err := storage.ParseVersionPath(path)
		if err != nil || id != keyID {
			continue
		}
		record, err := s.loadLocked(keyID, version)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s *BackendVersionStore) loadLocked(keyID string, version uint64) (*KeyVersion, error) {
	raw, err := s.backend.Get(storage.VersionPath(keyID, version))
	if errors.Is(err, storage.ErrNotFound) {
		if paths, listErr := s.backend.List(storage.VersionPrefix(keyID)); listErr == nil && len(paths) > 0 {
			return nil, fmt.Errorf("%w: %s version %d", ErrVersionNotFound, keyID, version)
		}
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	if err != nil {
		return nil, fmt.Errorf("versioning: load %s version %d: %w", keyID, version, err)
	}

	var record KeyVersion
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("versioning: decode %s version %d: %w", keyID, version, err)
	}
	return &record, nil
}

// AppendVersion registers a new version for a key.
func (s *BackendVersionStore) AppendVersion(ctx context.Context, keyID string, record *KeyVersion) error {
	if record == nil {
		return fmt.Errorf("versioning: record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	path := storage.VersionPath(keyID, record.Version)
	exists, err := s.backend.Exists(path)
	if err != nil {
		return fmt.Errorf("versioning: append %s: %w", keyID, err)
	}
	if exists {
		return fmt.Errorf("%w: %s version %d", ErrVersionExists, keyID, record.Version)
	}

	if record.Status == StatusActive {
		versions, err := s.listLocked(keyID)
		if err != nil && !errors.Is(err, ErrKeyNotFound) {
			return err
		}
		for _, v := range versions {
			if v.Status == StatusActive {
				return fmt.Errorf("%w: %s version %d", ErrActiveVersionExists, keyID, v.Version)
			}
		}
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("versioning: encode %s version %d: %w", keyID, record.Version, err)
	}
	if err := s.backend.Put(path, raw, nil); err != nil {
		return fmt.Errorf("versioning: store %s version %d: %w", keyID, record.Version, err)
	}
	return nil
}

// UpdateStatus changes the lifecycle state of a specific version.
func (s *BackendVersionStore) UpdateStatus(ctx context.Context, keyID string, version uint64, status Status, rotatedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	record, err := s.loadLocked(keyID, version)
	if err != nil {
		return err
	}

	record.Status = status
	if rotatedAt != nil {
		t := *rotatedAt
		record.RotatedAt = &t
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("versioning: encode %s version %d: %w", keyID, version, err)
	}
	if err := s.backend.Put(storage.VersionPath(keyID, version), raw, nil); err != nil {
		return fmt.Errorf("versioning: store %s version %d: %w", keyID, version, err)
	}
	return nil
}

// DeleteKey removes all version history for a key.
func (s *BackendVersionStore) DeleteKey(ctx context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	paths, err := s.backend.List(storage.VersionPrefix(keyID))
	if err != nil {
		return fmt.Errorf("versioning: delete %s: %w", keyID, err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}

	for _, path := range paths {
		if err := s.backend.Delete(path); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("versioning: delete %s: %w", keyID, err)
		}
	}
	return nil
}

// ListKeys returns all key IDs in the store, sorted.
func (s *BackendVersionStore) ListKeys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	return storage.ListVersionedKeys(s.backend)
}

// Close releases the store. The underlying backend stays open.
func (s *BackendVersionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
