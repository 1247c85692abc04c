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
	"errors"
	"fmt"
)

// Validation errors. Raised at the call boundary before any state mutation.
var (
	// ErrKeyIDRequired indicates an empty key identifier.
	ErrKeyIDRequired = errors.New("coordinator: key id is required")

	// ErrInvalidThreshold indicates a threshold below the protocol minimum
	// of 2.
	ErrInvalidThreshold = errors.New("coordinator: threshold must be at least 2")

	// ErrThresholdTooLarge indicates a threshold above the party count.
	ErrThresholdTooLarge = errors.New("coordinator: threshold exceeds party count")

	// ErrPartyCountMismatch indicates a party list whose length disagrees
	// with the requested total.
	ErrPartyCountMismatch = errors.New("coordinator: party list length does not match total parties")

	// ErrDuplicateParty indicates the same party id listed twice.
	ErrDuplicateParty = errors.New("coordinator: duplicate party id")

	// ErrMessageHash indicates a message hash that is not exactly 32 bytes.
	ErrMessageHash = errors.New("coordinator: message hash must be 32 bytes")

	// ErrInvalidPartial indicates a partial signature with missing or
	// malformed fields for the current round.
	ErrInvalidPartial = errors.New("coordinator: invalid partial signature")

	// ErrNotParticipant indicates a submission from a party outside the
	// session's participant set.
	ErrNotParticipant = errors.New("coordinator: party is not a session participant")

	// ErrRegistryRequired indicates construction without a party registry.
	ErrRegistryRequired = errors.New("coordinator: party registry is required")
)

// Lookup errors.
var (
	// ErrKeyExists indicates a key id that is already managed.
	ErrKeyExists = errors.New("coordinator: key already exists")

	// ErrKeyNotFound indicates an unknown key id.
	ErrKeyNotFound = errors.New("coordinator: key not found")

	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("coordinator: session not found")

	// ErrShareNotFound indicates a party holding no share for the key.
	ErrShareNotFound = errors.New("coordinator: share not found")

	// ErrPartyNotActive indicates a listed party that is not currently
	// active in the registry.
	ErrPartyNotActive = errors.New("coordinator: party is not active")
)

// Session state errors. The session is left exactly as it was found,
// except that discovering a past-expiry session flips it to expired.
var (
	// ErrSessionComplete indicates a submission to a completed session.
	ErrSessionComplete = errors.New("coordinator: session already complete")

	// ErrSessionFailed indicates a submission to a failed session.
	ErrSessionFailed = errors.New("coordinator: session has failed")

	// ErrSessionExpired indicates a submission past the session expiry.
	ErrSessionExpired = errors.New("coordinator: session expired")

	// ErrAlreadyCommitted indicates a second commitment from the same party.
	ErrAlreadyCommitted = errors.New("coordinator: party already committed")

	// ErrAlreadyRevealed indicates a second reveal from the same party.
	ErrAlreadyRevealed = errors.New("coordinator: party already revealed")

	// ErrNoCommitment indicates a reveal from a party that never committed.
	ErrNoCommitment = errors.New("coordinator: no commitment on record for party")
)

// Security policy errors.
var (
	// ErrCommitmentMismatch indicates a reveal whose recomputed binding
	// digest does not match the party's committed value.
	ErrCommitmentMismatch = errors.New("coordinator: reveal does not match commitment")

	// ErrShareIntegrity indicates a revealed share that fails the integrity
	// check against the share metadata recorded at key generation.
	ErrShareIntegrity = errors.New("coordinator: share integrity check failed")

	// ErrAddressMismatch indicates a reconstructed signing key whose derived
	// address does not match the registered key address. The session fails
	// closed and no signature is returned.
	ErrAddressMismatch = errors.New("coordinator: reconstructed address does not match key address")
)

// Capacity errors.
var (
	// ErrSessionTableFull indicates the session table is at its ceiling and
	// an expiry sweep freed no room.
	ErrSessionTableFull = errors.New("coordinator: session table full")

	// ErrTooManySessions indicates the concurrent in-flight session ceiling
	// has been reached.
	ErrTooManySessions = errors.New("coordinator: too many concurrent sessions")
)

// CulpritError attributes a rejected reveal or a failed aggregation to the
// offending party, so callers can feed evidence back into the registry
// (slashing, deactivation) if they choose.
type CulpritError struct {
	SessionID string
	PartyID   string
	Err       error
}

// Error implements the error interface.
func (e *CulpritError) Error() string {
	return fmt.Sprintf("coordinator: session %s: party %s: %v", e.SessionID, e.PartyID, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *CulpritError) Unwrap() error {
	return e.Err
}

func keyNotFound(keyID string) error {
	return fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
}
