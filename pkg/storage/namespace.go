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

package storage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const versionRoot = "versions/"

// VersionPath returns the storage path for a key version record.
// The path follows the convention: versions/{keyId}/{version}.json
func VersionPath(keyID string, version uint64) string {
	return fmt.Sprintf("%s%s/%d.json", versionRoot, keyID, version)
}

// VersionPrefix returns the storage prefix holding all version records for
// a key.
func VersionPrefix(keyID string) string {
	return versionRoot + keyID + "/"
}

// ParseVersionPath extracts the key id and version number from a storage
// path produced by VersionPath.
func ParseVersionPath(path string) (string, uint64, error) {
	if !strings.HasPrefix(path, versionRoot) || !strings.HasSuffix(path, ".json") {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidID, path)
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, versionRoot), ".json")

	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 || idx == len(trimmed)-1 {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidID, path)
	}

	keyID := trimmed[:idx]
	version, err := strconv.ParseUint(trimmed[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s", ErrInvalidID, path)
	}
	return keyID, version, nil
}

// ListVersionedKeys retrieves the distinct key ids that have version records
// in the backend. Returns a sorted slice, empty if none exist.
func ListVersionedKeys(backend Backend) ([]string, error) {
	paths, err := backend.List(versionRoot)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, p := range paths {
		keyID, _, err := ParseVersionPath(p)
		if err != nil {
			continue
		}
		seen[keyID] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
