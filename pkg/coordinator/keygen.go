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

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/jeremyhahn/go-tss/pkg/ethereum"
	"github.com/jeremyhahn/go-tss/pkg/registry"
	"github.com/jeremyhahn/go-tss/pkg/threshold"
	"github.com/jeremyhahn/go-tss/pkg/versioning"
)

// GenerateKeyRequest describes a distributed key generation run.
type GenerateKeyRequest struct {
	KeyID        string
	Threshold    int
	TotalParties int
	PartyIDs     []string
}

// GenerateKey runs the simplified distributed key generation protocol. Every
// listed party deals a random polynomial of degree Threshold-1; a party's
// share is the sum of all polynomials evaluated at its index, and the group
// public key is the sum of the constant-term points. The group secret exists
// only as a polynomial identity and is never assembled as a scalar.
//
// All shares are produced inside this one process. The trust model is that
// of a key-management core operating on behalf of its parties, not a
// multi-process DKG with verifiable dealing.
func (c *Coordinator) GenerateKey(ctx context.Context, req GenerateKeyRequest) (*KeyRecord, error) {
	if req.KeyID == "" {
		return nil, ErrKeyIDRequired
	}
	if req.Threshold < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, req.Threshold)
	}
	if req.Threshold > req.TotalParties {
		return nil, fmt.Errorf("%w: threshold %d, parties %d", ErrThresholdTooLarge, req.Threshold, req.TotalParties)
	}
	if len(req.PartyIDs) != req.TotalParties {
		return nil, fmt.Errorf("%w: got %d ids for %d parties", ErrPartyCountMismatch, len(req.PartyIDs), req.TotalParties)
	}
	seen := make(map[string]struct{}, len(req.PartyIDs))
	for _, id := range req.PartyIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParty, id)
		}
		seen[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.keys[req.KeyID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, req.KeyID)
	}

	parties := make([]*registry.Party, len(req.PartyIDs))
	for i, id := range req.PartyIDs {
		p, err := c.registry.Get(id)
		if err != nil {
			return nil, fmt.Errorf("coordinator: party %s: %w", id, err)
		}
		if !c.registry.IsActive(id) {
			return nil, fmt.Errorf("%w: %s", ErrPartyNotActive, id)
		}
		parties[i] = p
	}

	polys := make([]*threshold.Polynomial, req.TotalParties)
	defer func() {
		for _, poly := range polys {
			if poly != nil {
				poly.Zeroize()
			}
		}
	}()
	for i := range polys {
		poly, err := threshold.NewRandomPolynomial(req.Threshold - 1)
		if err != nil {
			return nil, fmt.Errorf("coordinator: deal polynomial: %w", err)
		}
		polys[i] = poly
	}

	var sum secp256k1.JacobianPoint
	for _, poly := range polys {
		var pt secp256k1.JacobianPoint
		if err := poly.ConstantPoint(&pt); err != nil {
			return nil, fmt.Errorf("coordinator: group public key: %w", err)
		}
		secp256k1.AddNonConst(&sum, &pt, &sum)
	}
	sum.ToAffine()
	groupPub := secp256k1.NewPublicKey(&sum.X, &sum.Y)
	pubBytes := groupPub.SerializeUncompressed()
	address := ethereum.PubkeyToAddress(groupPub)

	shares := make(map[string]*threshold.SecureScalar, req.TotalParties)
	metadata := make(map[string]*ShareMetadata, req.TotalParties)
	abort := func() {
		for _, share := range shares {
			share.Zeroize()
		}
	}
	for _, party := range parties {
		share, err := threshold.SumPolynomialsAt(polys, party.Index)
		if err != nil {
			abort()
			return nil, fmt.Errorf("coordinator: share for party %s: %w", party.ID, err)
		}
		meta, err := shareMetadata(party.ID, party.Index, share, 1)
		if err != nil {
			share.Zeroize()
			abort()
			return nil, fmt.Errorf("coordinator: share metadata for party %s: %w", party.ID, err)
		}
		shares[party.ID] = share
		metadata[party.ID] = meta
	}

	record := &KeyRecord{
		KeyID:        req.KeyID,
		PublicKey:    pubBytes,
		Address:      address,
		Threshold:    req.Threshold,
		TotalParties: req.TotalParties,
		PartyShares:  metadata,
		Version:      1,
		CreatedAt:    c.nowFunc().UTC(),
	}

	if err := c.versions.AppendVersion(ctx, req.KeyID, &versioning.KeyVersion{
		Version:      1,
		PublicKey:    hex.EncodeToString(pubBytes),
		Address:      address,
		Threshold:    uint32(req.Threshold),
		TotalParties: uint32(req.TotalParties),
		PartyIDs:     record.participantOrder(),
		CreatedAt:    record.CreatedAt,
		Status:       versioning.StatusActive,
	}); err != nil {
		abort()
		return nil, fmt.Errorf("coordinator: record key version: %w", err)
	}

	for id, share := range shares {
		c.shares.Set(req.KeyID, id, share)
	}
	c.keys[req.KeyID] = record

	c.logger.Info("generated threshold key",
		"key_id", req.KeyID,
		"threshold", req.Threshold,
		"parties", req.TotalParties,
		"address", address)

	return record.clone(), nil
}

// shareMetadata derives the public record for a share scalar.
func shareMetadata(partyID string, index uint32, share *threshold.SecureScalar, version uint64) (*ShareMetadata, error) {
	commitment, err := share.Commitment()
	if err != nil {
		return nil, err
	}
	pub, err := share.PublicPoint()
	if err != nil {
		return nil, err
	}
	return &ShareMetadata{
		PartyID:     partyID,
		PartyIndex:  index,
		Commitment:  commitment,
		PublicShare: hex.EncodeToString(pub.SerializeUncompressed()),
		Version:     version,
	}, nil
}
