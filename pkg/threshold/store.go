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

package threshold

import "sync"

type shareKey struct {
	keyID   string
	partyID string
}

// ShareStore is the only sanctioned holder of raw share scalars, keyed by
// (keyID, partyID). The one mutation discipline it permits is construct new
// value, erase old value, then replace: Set, Delete, DeleteKey and Clear all
// zeroize whatever they displace. ShareStore is safe for concurrent use.
type ShareStore struct {
	mu     sync.Mutex
	shares map[shareKey]*SecureScalar
}

// NewShareStore creates an empty share store.
func NewShareStore() *ShareStore {
	return &ShareStore{
		shares: make(map[shareKey]*SecureScalar),
	}
}

// Set stores the share for (keyID, partyID), erasing any previous value
// first.
func (st *ShareStore) Set(keyID, partyID string, share *SecureScalar) {
	st.mu.Lock()
	defer st.mu.Unlock()
	k := shareKey{keyID: keyID, partyID: partyID}
	if old, ok := st.shares[k]; ok && old != share {
		old.Zeroize()
	}
	st.shares[k] = share
}

// Get returns the stored share for (keyID, partyID). The scalar itself
// enforces the erased-read guarantee, so handing out the live reference is
// safe: a reader holding a revoked share only ever sees ErrScalarErased.
func (st *ShareStore) Get(keyID, partyID string) (*SecureScalar, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	share, ok := st.shares[shareKey{keyID: keyID, partyID: partyID}]
	return share, ok
}

// Delete erases and removes the share for (keyID, partyID), reporting
// whether an entry existed.
func (st *ShareStore) Delete(keyID, partyID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	k := shareKey{keyID: keyID, partyID: partyID}
	share, ok := st.shares[k]
	if !ok {
		return false
	}
	share.Zeroize()
	delete(st.shares, k)
	return true
}

// DeleteKey erases and removes every share belonging to keyID, returning
// the number of shares erased.
func (st *ShareStore) DeleteKey(keyID string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	erased := 0
	for k, share := range st.shares {
		if k.keyID != keyID {
			continue
		}
		share.Zeroize()
		delete(st.shares, k)
		erased++
	}
	return erased
}

// Clear erases and removes every share in the store.
func (st *ShareStore) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for k, share := range st.shares {
		share.Zeroize()
		delete(st.shares, k)
	}
}

// Count returns the number of shares stored for keyID.
func (st *ShareStore) Count(keyID string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for k := range st.shares {
		if k.keyID == keyID {
			n++
		}
	}
	return n
}
