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

package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParty is returned when a party record is malformed.
	ErrInvalidParty = errors.New("registry: invalid party")

	// ErrPartyExists is returned when registering a party id that is
	// already registered.
	ErrPartyExists = errors.New("registry: party already registered")

	// ErrPartyNotFound is returned when a party id is not registered.
	ErrPartyNotFound = errors.New("registry: party not found")

	// ErrIndexInUse is returned when registering a party with an explicit
	// index already held by another party.
	ErrIndexInUse = errors.New("registry: party index already in use")

	// ErrAttestationRequired is returned when registration demands an
	// attestation statement and none is supplied.
	ErrAttestationRequired = errors.New("registry: attestation required")

	// ErrAttestationInvalid is returned when a supplied attestation
	// statement fails verification.
	ErrAttestationInvalid = errors.New("registry: attestation invalid")

	// ErrInsufficientStake is returned when a party's stake is below the
	// registry minimum.
	ErrInsufficientStake = errors.New("registry: insufficient stake")

	// ErrPartySlashed is returned when attempting a status transition on
	// a slashed party.
	ErrPartySlashed = errors.New("registry: party is slashed")
)

// StakeError reports a stake below the registry minimum.
type StakeError struct {
	PartyID string
	Stake   uint64
	Minimum uint64
}

// Error implements the error interface.
func (e *StakeError) Error() string {
	return fmt.Sprintf("registry: party %s stake %d below minimum %d",
		e.PartyID, e.Stake, e.Minimum)
}

// Unwrap returns the underlying sentinel error.
func (e *StakeError) Unwrap() error {
	return ErrInsufficientStake
}
