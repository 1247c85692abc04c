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

package signer

import (
	"context"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-tss/pkg/coordinator"
	"github.com/jeremyhahn/go-tss/pkg/ethereum"
	"github.com/jeremyhahn/go-tss/pkg/metrics"
)

// SignRequest asks for a signature over a prehashed 32-byte message.
// Requester identifies the caller for rate limiting and audit.
type SignRequest struct {
	KeyID       string
	MessageHash []byte
	Requester   string
}

// TypedDataRequest asks for a signature over EIP-712 structured data.
type TypedDataRequest struct {
	KeyID     string
	TypedData *ethereum.TypedData
	Requester string
}

// Sign runs a full commit/reveal signing session over the key's quorum and
// returns the aggregated signature. The parties are in-process actors
// driven against the share store, so the session completes synchronously;
// ctx is consulted between protocol rounds.
func (s *Service) Sign(ctx context.Context, req SignRequest) (*coordinator.Signature, error) {
	return s.sign(ctx, metrics.OpSign, req)
}

// SignTypedData digests EIP-712 structured data (0x19 0x01 prefix, domain
// separator, struct hash) and signs the digest.
func (s *Service) SignTypedData(ctx context.Context, req TypedDataRequest) (*coordinator.Signature, error) {
	digest, err := ethereum.HashTypedData(req.TypedData)
	if err != nil {
		metrics.RecordError(metrics.OpSignTypedData, errorKind(ErrTypedData))
		metrics.RecordOperation(metrics.OpSignTypedData, metrics.StatusError, 0)
		return nil, fmt.Errorf("%w: %v", ErrTypedData, err)
	}
	return s.sign(ctx, metrics.OpSignTypedData, SignRequest{
		KeyID:       req.KeyID,
		MessageHash: digest,
		Requester:   req.Requester,
	})
}

func (s *Service) sign(ctx context.Context, op string, req SignRequest) (*coordinator.Signature, error) {
	start := time.Now()
	sig, err := s.runSession(ctx, req)
	if err != nil {
		metrics.RecordError(op, errorKind(err))
		metrics.RecordOperation(op, metrics.StatusError, time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordOperation(op, metrics.StatusSuccess, time.Since(start).Seconds())
	return sig, nil
}

func (s *Service) runSession(ctx context.Context, req SignRequest) (*coordinator.Signature, error) {
	if !s.limiter.Allow(req.Requester) {
		metrics.RecordRateLimited()
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, req.Requester)
	}

	coord, err := s.coordinatorFor(req.KeyID)
	if err != nil {
		return nil, err
	}

	session, err := coord.RequestSignature(coordinator.SignatureRequest{
		KeyID:       req.KeyID,
		MessageHash: req.MessageHash,
		Requester:   req.Requester,
	})
	if err != nil {
		return nil, err
	}

	partials := make(map[string]*coordinator.PartialSignature, len(session.Participants))
	for _, partyID := range session.Participants {
		partial, err := coord.BuildPartialSignature(req.KeyID, partyID)
		if err != nil {
			return nil, err
		}
		partials[partyID] = partial
	}

	for _, partyID := range session.Participants {
		if _, err := coord.SubmitPartialSignature(session.SessionID, partyID, &coordinator.PartialSignature{
			Commitment: partials[partyID].Commitment,
		}); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		// Abandon the session; it expires on its own.
		return nil, err
	}

	state := session
	for _, partyID := range session.Participants {
		state, err = coord.SubmitPartialSignature(session.SessionID, partyID, partials[partyID])
		if err != nil {
			return nil, err
		}
	}

	if state.Status != coordinator.StatusComplete || state.Result == nil {
		return nil, fmt.Errorf("%w: %s", coordinator.ErrSessionFailed, session.SessionID)
	}

	s.logger.Debug("signed message",
		"key_id", req.KeyID,
		"session_id", session.SessionID,
		"requester", req.Requester)

	return state.Result, nil
}
