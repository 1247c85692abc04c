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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-tss/pkg/metrics"
)

// SessionRound identifies the phase of the commit/reveal protocol.
type SessionRound string

const (
	// RoundCommitment is the first round: parties submit binding digests.
	RoundCommitment SessionRound = "commitment"

	// RoundReveal is the second round: parties open their commitments.
	RoundReveal SessionRound = "reveal"
)

// SessionStatus is the lifecycle state of a signing session. Complete,
// failed, and expired are terminal and never reopen.
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusSigning  SessionStatus = "signing"
	StatusComplete SessionStatus = "complete"
	StatusFailed   SessionStatus = "failed"
	StatusExpired  SessionStatus = "expired"
)

// PartialSignature is one party's contribution to a signing session. In the
// commitment round only Commitment is read; in the reveal round PartialR and
// PartialS must hash back to the committed value.
type PartialSignature struct {
	PartyID    string
	Commitment string // hex SHA-256 over PartialR + ":" + PartialS
	PartialR   string // hex uncompressed public share point
	PartialS   string // hex share scalar
}

// Signature is an aggregated Ethereum-style signature.
type Signature struct {
	Bytes    []byte // 65 bytes, R || S || V
	R        string // hex
	S        string // hex
	V        byte   // 27 or 28
	KeyID    string
	SignedAt time.Time
}

// SigningSession tracks one commit/reveal signing run over a fixed
// threshold-sized participant set.
type SigningSession struct {
	SessionID    string
	KeyID        string
	MessageHash  []byte
	Requester    string
	Participants []string
	Round        SessionRound
	Status       SessionStatus
	Commitments  map[string]string
	Reveals      map[string]*PartialSignature
	Result       *Signature
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

func (s *SigningSession) terminal() bool {
	switch s.Status {
	case StatusComplete, StatusFailed, StatusExpired:
		return true
	}
	return false
}

func (s *SigningSession) participant(partyID string) bool {
	for _, id := range s.Participants {
		if id == partyID {
			return true
		}
	}
	return false
}

func (s *SigningSession) clone() *SigningSession {
	cp := *s
	cp.MessageHash = append([]byte(nil), s.MessageHash...)
	cp.Participants = append([]string(nil), s.Participants...)
	cp.Commitments = make(map[string]string, len(s.Commitments))
	for id, commitment := range s.Commitments {
		cp.Commitments[id] = commitment
	}
	cp.Reveals = make(map[string]*PartialSignature, len(s.Reveals))
	for id, reveal := range s.Reveals {
		rc := *reveal
		cp.Reveals[id] = &rc
	}
	if s.Result != nil {
		rc := *s.Result
		rc.Bytes = append([]byte(nil), s.Result.Bytes...)
		cp.Result = &rc
	}
	return &cp
}

// CommitmentDigest computes the binding digest a party commits to in the
// first round: the hex SHA-256 over PartialR + ":" + PartialS.
func CommitmentDigest(partialR, partialS string) string {
	sum := sha256.Sum256([]byte(partialR + ":" + partialS))
	return hex.EncodeToString(sum[:])
}

// SignatureRequest asks for a signature over a prehashed 32-byte message.
type SignatureRequest struct {
	KeyID       string
	MessageHash []byte
	Requester   string
}

// RequestSignature opens a signing session for the key. The participant set
// is the first Threshold parties of the key's share map in party index
// order; the session starts in the commitment round and expires after the
// configured timeout.
func (c *Coordinator) RequestSignature(req SignatureRequest) (*SigningSession, error) {
	if len(req.MessageHash) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrMessageHash, len(req.MessageHash))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.keys[req.KeyID]
	if !ok {
		return nil, keyNotFound(req.KeyID)
	}

	now := c.nowFunc()
	if len(c.sessions) >= c.cfg.MaxSessions {
		if swept := c.sweepLocked(now); swept > 0 {
			c.logger.Debug("swept expired sessions", "count", swept)
		}
		if len(c.sessions) >= c.cfg.MaxSessions {
			return nil, fmt.Errorf("%w: %d sessions", ErrSessionTableFull, len(c.sessions))
		}
	}
	if inFlight := c.inFlightLocked(now); inFlight >= c.cfg.MaxConcurrentSessions {
		return nil, fmt.Errorf("%w: %d in flight", ErrTooManySessions, inFlight)
	}

	participants := key.participantOrder()[:key.Threshold]

	session := &SigningSession{
		SessionID:    uuid.New().String(),
		KeyID:        req.KeyID,
		MessageHash:  append([]byte(nil), req.MessageHash...),
		Requester:    req.Requester,
		Participants: participants,
		Round:        RoundCommitment,
		Status:       StatusPending,
		Commitments:  make(map[string]string, key.Threshold),
		Reveals:      make(map[string]*PartialSignature, key.Threshold),
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.cfg.SessionTimeout),
	}
	c.sessions[session.SessionID] = session
	metrics.IncSessionsActive()

	c.logger.Debug("opened signing session",
		"session_id", session.SessionID,
		"key_id", req.KeyID,
		"participants", participants,
		"requester", req.Requester)

	return session.clone(), nil
}

// SubmitPartialSignature feeds one party's contribution into the session
// state machine and returns the updated session. Reaching the threshold in
// the commitment round advances to the reveal round; the reveal that reaches
// the threshold triggers aggregation synchronously, exactly once.
func (c *Coordinator) SubmitPartialSignature(sessionID, partyID string, partial *PartialSignature) (*SigningSession, error) {
	if partial == nil {
		return nil, fmt.Errorf("%w: nil submission", ErrInvalidPartial)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	switch session.Status {
	case StatusComplete:
		return nil, fmt.Errorf("%w: %s", ErrSessionComplete, sessionID)
	case StatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrSessionFailed, sessionID)
	case StatusExpired:
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, sessionID)
	}
	if c.nowFunc().After(session.ExpiresAt) {
		c.finishLocked(session, StatusExpired)
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, sessionID)
	}
	if !session.participant(partyID) {
		return nil, fmt.Errorf("%w: %s", ErrNotParticipant, partyID)
	}

	key, ok := c.keys[session.KeyID]
	if !ok {
		// The key was revoked between session creation and submission.
		c.finishLocked(session, StatusFailed)
		return nil, keyNotFound(session.KeyID)
	}

	switch session.Round {
	case RoundCommitment:
		if partial.Commitment == "" {
			return nil, fmt.Errorf("%w: empty commitment", ErrInvalidPartial)
		}
		if _, dup := session.Commitments[partyID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyCommitted, partyID)
		}
		session.Commitments[partyID] = partial.Commitment
		if len(session.Commitments) >= key.Threshold {
			session.Round = RoundReveal
			session.Status = StatusSigning
			c.logger.Debug("session advanced to reveal round",
				"session_id", session.SessionID,
				"commitments", len(session.Commitments))
		}

	case RoundReveal:
		committed, ok := session.Commitments[partyID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoCommitment, partyID)
		}
		if partial.PartialR == "" || partial.PartialS == "" {
			return nil, fmt.Errorf("%w: empty reveal", ErrInvalidPartial)
		}
		if _, dup := session.Reveals[partyID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyRevealed, partyID)
		}
		if CommitmentDigest(partial.PartialR, partial.PartialS) != committed {
			return nil, &CulpritError{
				SessionID: sessionID,
				PartyID:   partyID,
				Err:       ErrCommitmentMismatch,
			}
		}
		reveal := *partial
		reveal.PartyID = partyID
		session.Reveals[partyID] = &reveal
		if len(session.Reveals) == key.Threshold {
			if err := c.aggregateLocked(key, session); err != nil {
				return nil, err
			}
		}
	}

	return session.clone(), nil
}

// GetSession returns a copy of the session, flipping it to expired first if
// its deadline has passed.
func (c *Coordinator) GetSession(sessionID string) (*SigningSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if !session.terminal() && c.nowFunc().After(session.ExpiresAt) {
		c.finishLocked(session, StatusExpired)
	}
	return session.clone(), nil
}

// SweepExpiredSessions removes every session past its expiry, flipping
// non-terminal ones to expired first, and returns the number removed.
// Terminal sessions are retained until their expiry passes so results stay
// retrievable for the session's full lifetime.
func (c *Coordinator) SweepExpiredSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.nowFunc())
}

func (c *Coordinator) sweepLocked(now time.Time) int {
	removed := 0
	for id, session := range c.sessions {
		if !now.After(session.ExpiresAt) {
			continue
		}
		if !session.terminal() {
			c.finishLocked(session, StatusExpired)
		}
		delete(c.sessions, id)
		removed++
	}
	return removed
}

// inFlightLocked counts sessions in the pending or signing state, flipping
// any that have silently passed their deadline.
func (c *Coordinator) inFlightLocked(now time.Time) int {
	inFlight := 0
	for _, session := range c.sessions {
		if session.terminal() {
			continue
		}
		if now.After(session.ExpiresAt) {
			c.finishLocked(session, StatusExpired)
			continue
		}
		inFlight++
	}
	return inFlight
}

// finishLocked moves a session into a terminal state. Callers must have
// checked that the session is not already terminal; the transition records
// the outcome exactly once.
func (c *Coordinator) finishLocked(session *SigningSession, status SessionStatus) {
	session.Status = status
	metrics.DecSessionsActive()
	switch status {
	case StatusComplete:
		metrics.RecordSessionOutcome(metrics.OutcomeComplete)
	case StatusFailed:
		metrics.RecordSessionOutcome(metrics.OutcomeFailed)
	case StatusExpired:
		metrics.RecordSessionOutcome(metrics.OutcomeExpired)
		c.logger.Debug("session expired", "session_id", session.SessionID, "key_id", session.KeyID)
	}
}
