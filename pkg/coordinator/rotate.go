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

package coordinator

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/jeremyhahn/go-tss/pkg/registry"
	"github.com/jeremyhahn/go-tss/pkg/threshold"
	"github.com/jeremyhahn/go-tss/pkg/versioning"
)

// RotateKeyRequest describes a proactive share rotation. Zero-valued fields
// keep the key's current threshold and party set.
type RotateKeyRequest struct {
	KeyID        string
	NewThreshold int
	NewParties   []string
}

// RotateKey re-randomizes every share of the key without moving the group
// secret. Each party in the new set contributes a polynomial with zero
// constant term; a party's new share is its old share (zero for a newly
// added party) plus the sum of the refresh polynomials evaluated at its
// index. Old shares are erased before replacement and departing parties'
// shares are erased outright.
//
// The group public key and address are untouched by construction. The prior
// key version is marked rotated and a new active version is appended.
func (c *Coordinator) RotateKey(ctx context.Context, req RotateKeyRequest) (*KeyRecord, error) {
	if req.KeyID == "" {
		return nil, ErrKeyIDRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[req.KeyID]
	if !ok {
		return nil, keyNotFound(req.KeyID)
	}

	newThreshold := req.NewThreshold
	if newThreshold == 0 {
		newThreshold = key.Threshold
	}
	newParties := req.NewParties
	if newParties == nil {
		newParties = key.participantOrder()
	}

	if newThreshold < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, newThreshold)
	}
	if newThreshold > len(newParties) {
		return nil, fmt.Errorf("%w: threshold %d, parties %d", ErrThresholdTooLarge, newThreshold, len(newParties))
	}
	seen := make(map[string]struct{}, len(newParties))
	for _, id := range newParties {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParty, id)
		}
		seen[id] = struct{}{}
	}

	parties := make([]*registry.Party, len(newParties))
	for i, id := range newParties {
		p, err := c.registry.Get(id)
		if err != nil {
			return nil, fmt.Errorf("coordinator: party %s: %w", id, err)
		}
		if !c.registry.IsActive(id) {
			return nil, fmt.Errorf("%w: %s", ErrPartyNotActive, id)
		}
		parties[i] = p
	}

	zpolys := make([]*threshold.Polynomial, len(parties))
	defer func() {
		for _, poly := range zpolys {
			if poly != nil {
				poly.Zeroize()
			}
		}
	}()
	for i := range zpolys {
		poly, err := threshold.NewZeroPolynomial(newThreshold - 1)
		if err != nil {
			return nil, fmt.Errorf("coordinator: refresh polynomial: %w", err)
		}
		zpolys[i] = poly
	}

	// Stage every new share before touching the store so a failure leaves
	// the key exactly as it was.
	newVersion := key.Version + 1
	newShares := make(map[string]*threshold.SecureScalar, len(parties))
	newMetadata := make(map[string]*ShareMetadata, len(parties))
	abort := func() {
		for _, share := range newShares {
			share.Zeroize()
		}
	}
	for _, party := range parties {
		delta, err := threshold.SumPolynomialsAt(zpolys, party.Index)
		if err != nil {
			abort()
			return nil, fmt.Errorf("coordinator: refresh share for party %s: %w", party.ID, err)
		}
		newShare := delta
		if _, continuing := key.PartyShares[party.ID]; continuing {
			old, ok := c.shares.Get(req.KeyID, party.ID)
			if !ok {
				delta.Zeroize()
				abort()
				return nil, fmt.Errorf("%w: missing share for continuing party %s", ErrShareIntegrity, party.ID)
			}
			newShare, err = old.Add(delta)
			delta.Zeroize()
			if err != nil {
				abort()
				return nil, fmt.Errorf("coordinator: refresh share for party %s: %w", party.ID, err)
			}
		}
		meta, err := shareMetadata(party.ID, party.Index, newShare, newVersion)
		if err != nil {
			newShare.Zeroize()
			abort()
			return nil, fmt.Errorf("coordinator: share metadata for party %s: %w", party.ID, err)
		}
		newShares[party.ID] = newShare
		newMetadata[party.ID] = meta
	}

	// Version history transitions before the irreversible share swap.
	now := c.nowFunc().UTC()
	if err := c.versions.UpdateStatus(ctx, req.KeyID, key.Version, versioning.StatusRotated, &now); err != nil {
		abort()
		return nil, fmt.Errorf("coordinator: mark version %d rotated: %w", key.Version, err)
	}
	newRecord := &versioning.KeyVersion{
		Version:      newVersion,
		PublicKey:    hex.EncodeToString(key.PublicKey),
		Address:      key.Address,
		Threshold:    uint32(newThreshold),
		TotalParties: uint32(len(parties)),
		PartyIDs:     partyIDsInIndexOrder(parties),
		CreatedAt:    now,
		Status:       versioning.StatusActive,
	}
	if err := c.versions.AppendVersion(ctx, req.KeyID, newRecord); err != nil {
		abort()
		// Best effort: put the prior version back to active so the history
		// keeps exactly one active record.
		if revertErr := c.versions.UpdateStatus(ctx, req.KeyID, key.Version, versioning.StatusActive, nil); revertErr != nil {
			c.logger.Error(revertErr, "key_id", req.KeyID, "version", key.Version)
		}
		return nil, fmt.Errorf("coordinator: record key version %d: %w", newVersion, err)
	}

	// Swap shares. Set erases the old scalar before replacing it; departing
	// parties' shares are erased and dropped.
	for id, share := range newShares {
		c.shares.Set(req.KeyID, id, share)
	}
	for id := range key.PartyShares {
		if _, kept := newShares[id]; !kept {
			c.shares.Delete(req.KeyID, id)
		}
	}

	key.Threshold = newThreshold
	key.TotalParties = len(parties)
	key.PartyShares = newMetadata
	key.Version = newVersion

	c.logger.Info("rotated key shares",
		"key_id", req.KeyID,
		"version", newVersion,
		"threshold", newThreshold,
		"parties", len(parties))

	return key.clone(), nil
}

// RevokeKey erases every share of the key, fails its in-flight sessions,
// marks the current version revoked, and drops the key record. The version
// history is retained for audit.
func (c *Coordinator) RevokeKey(ctx context.Context, keyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[keyID]
	if !ok {
		return keyNotFound(keyID)
	}

	for _, session := range c.sessions {
		if session.KeyID == keyID && !session.terminal() {
			c.finishLocked(session, StatusFailed)
		}
	}

	erased := c.shares.DeleteKey(keyID)
	delete(c.keys, keyID)

	now := c.nowFunc().UTC()
	if err := c.versions.UpdateStatus(ctx, keyID, key.Version, versioning.StatusRevoked, &now); err != nil {
		// Shares are already gone; the stale history entry is reported,
		// not fatal.
		c.logger.Error(err, "key_id", keyID, "version", key.Version)
	}

	c.logger.Info("revoked key",
		"key_id", keyID,
		"version", key.Version,
		"shares_erased", erased)

	return nil
}

func partyIDsInIndexOrder(parties []*registry.Party) []string {
	order := make([]*registry.Party, len(parties))
	copy(order, parties)
	sort.Slice(order, func(i, j int) bool { return order[i].Index < order[j].Index })
	ids := make([]string, len(order))
	for i, p := range order {
		ids[i] = p.ID
	}
	return ids
}
