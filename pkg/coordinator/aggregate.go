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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/jeremyhahn/go-tss/pkg/ethereum"
	"github.com/jeremyhahn/go-tss/pkg/threshold"
)

// aggregateLocked reconstructs the signing key from the revealed shares via
// Lagrange interpolation at zero and produces the final compact signature.
// Called with the coordinator mutex held and exactly Threshold reveals
// present.
//
// If the reconstructed key does not derive the registered key address, the
// session fails closed: no signature is ever returned for a key the quorum
// cannot actually reconstruct.
//
// Every intermediate scalar, including the reconstructed secret, is zeroized
// before return on both the success and failure paths.
func (c *Coordinator) aggregateLocked(key *KeyRecord, session *SigningSession) error {
	shares := make(map[uint32]*threshold.SecureScalar, len(session.Reveals))
	zeroizeShares := func() {
		for _, share := range shares {
			share.Zeroize()
		}
	}

	for partyID, reveal := range session.Reveals {
		meta := key.PartyShares[partyID]
		if meta == nil {
			// The key rotated away from this party mid-session.
			zeroizeShares()
			c.finishLocked(session, StatusFailed)
			return &CulpritError{SessionID: session.SessionID, PartyID: partyID, Err: ErrShareIntegrity}
		}
		raw, err := hex.DecodeString(reveal.PartialS)
		if err != nil {
			zeroizeShares()
			c.finishLocked(session, StatusFailed)
			return &CulpritError{SessionID: session.SessionID, PartyID: partyID, Err: ErrInvalidPartial}
		}
		share, err := threshold.NewSecureScalar(raw)
		if err != nil {
			zeroizeShares()
			c.finishLocked(session, StatusFailed)
			return &CulpritError{SessionID: session.SessionID, PartyID: partyID, Err: ErrInvalidPartial}
		}
		commitment, err := share.Commitment()
		if err != nil || commitment != meta.Commitment {
			share.Zeroize()
			zeroizeShares()
			c.finishLocked(session, StatusFailed)
			return &CulpritError{SessionID: session.SessionID, PartyID: partyID, Err: ErrShareIntegrity}
		}
		shares[meta.PartyIndex] = share
	}

	secret, err := threshold.CombineShares(shares)
	zeroizeShares()
	if err != nil {
		c.finishLocked(session, StatusFailed)
		return fmt.Errorf("coordinator: combine shares: %w", err)
	}

	priv, err := secret.PrivateKey()
	if err != nil {
		secret.Zeroize()
		c.finishLocked(session, StatusFailed)
		return fmt.Errorf("coordinator: reconstruct signing key: %w", err)
	}

	derived := ethereum.PubkeyToAddress(priv.PubKey())
	if !strings.EqualFold(derived, key.Address) {
		priv.Zero()
		secret.Zeroize()
		c.finishLocked(session, StatusFailed)
		c.logger.Error(ErrAddressMismatch,
			"session_id", session.SessionID,
			"key_id", key.KeyID,
			"derived", derived,
			"registered", key.Address)
		return fmt.Errorf("%w: derived %s, registered %s", ErrAddressMismatch, derived, key.Address)
	}

	compact := ecdsa.SignCompact(priv, session.MessageHash, false)
	priv.Zero()
	secret.Zeroize()

	// SignCompact puts the recovery byte first; Ethereum convention is
	// R || S || V with V in {27, 28}.
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]

	session.Result = &Signature{
		Bytes:    sig,
		R:        hex.EncodeToString(sig[:32]),
		S:        hex.EncodeToString(sig[32:64]),
		V:        sig[64],
		KeyID:    key.KeyID,
		SignedAt: c.nowFunc(),
	}
	c.finishLocked(session, StatusComplete)

	c.logger.Info("signing session complete",
		"session_id", session.SessionID,
		"key_id", key.KeyID,
		"r", session.Result.R,
		"v", session.Result.V)

	return nil
}

// BuildPartialSignature assembles a party's contribution from its stored
// share: the public share point as PartialR, the share scalar as PartialS,
// and the binding digest over both. In a deployment where parties hold
// their own shares this computation runs on the party; here the coordinator
// performs it on the party's behalf against the share store.
func (c *Coordinator) BuildPartialSignature(keyID, partyID string) (*PartialSignature, error) {
	share, ok := c.shares.Get(keyID, partyID)
	if !ok {
		return nil, fmt.Errorf("%w: key %s party %s", ErrShareNotFound, keyID, partyID)
	}
	partialS, err := share.Hex()
	if err != nil {
		return nil, fmt.Errorf("coordinator: read share for party %s: %w", partyID, err)
	}
	pub, err := share.PublicPoint()
	if err != nil {
		return nil, fmt.Errorf("coordinator: share point for party %s: %w", partyID, err)
	}
	partialR := hex.EncodeToString(pub.SerializeUncompressed())
	return &PartialSignature{
		PartyID:    partyID,
		Commitment: CommitmentDigest(partialR, partialS),
		PartialR:   partialR,
		PartialS:   partialS,
	}, nil
}
