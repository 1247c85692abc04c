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

// Package registry tracks the signer parties eligible to hold key shares.
// Registration enforces the admission policy (attestation, minimum stake),
// and a heartbeat-based staleness window provides the liveness signal used
// when selecting parties for key generation and rotation.
package registry

import (
	"time"

	"github.com/jeremyhahn/go-tss/pkg/attestation"
)

// PartyStatus is the lifecycle state of a registered party.
type PartyStatus string

const (
	// StatusActive marks a party eligible for share custody and signing.
	StatusActive PartyStatus = "active"

	// StatusInactive marks a party administratively withdrawn from duty.
	// Inactive parties can be reactivated.
	StatusInactive PartyStatus = "inactive"

	// StatusSlashed marks a party ejected for misbehavior. Slashed is
	// terminal; a slashed party can never return to duty.
	StatusSlashed PartyStatus = "slashed"
)

// Party is a registered signer identity.
type Party struct {
	// ID uniquely identifies the party
	ID string

	// Index is the party's 1-based share index, used as the x-coordinate
	// when evaluating share polynomials. Zero means assign the next free
	// index at registration.
	Index uint32

	// Endpoint is the party's network address (informational)
	Endpoint string

	// PublicKey is the party's uncompressed secp256k1 public key (65 bytes)
	PublicKey []byte

	// Address is the party's Ethereum address. Derived from PublicKey at
	// registration when empty.
	Address string

	// Attestation is the evidence presented at registration
	Attestation *attestation.Statement

	// Stake is the party's bonded stake in the smallest unit
	Stake uint64

	// Status is the party's lifecycle state
	Status PartyStatus

	// LastSeen is the time of the party's most recent heartbeat
	LastSeen time.Time
}

// Config controls the registry admission policy.
type Config struct {
	// RequireAttestation demands a verified attestation statement at
	// registration time
	RequireAttestation bool

	// TrustedMeasurements restricts attestation to the listed build
	// digests. Empty accepts any verified measurement.
	TrustedMeasurements []string

	// AttestationMaxAge rejects attestation statements older than this.
	// Zero disables the age check.
	AttestationMaxAge time.Duration

	// MinPartyStake is the minimum stake required to register.
	// Zero disables the stake check.
	MinPartyStake uint64

	// StaleThreshold is how long after its last heartbeat a party still
	// counts as live. Default: 5 minutes.
	StaleThreshold time.Duration
}

// DefaultStaleThreshold is the liveness window applied when the config
// leaves StaleThreshold unset.
const DefaultStaleThreshold = 5 * time.Minute

func (p *Party) clone() *Party {
	out := *p
	if p.PublicKey != nil {
		out.PublicKey = make([]byte, len(p.PublicKey))
		copy(out.PublicKey, p.PublicKey)
	}
	if p.Attestation != nil {
		stmt := *p.Attestation
		if p.Attestation.Quote != nil {
			stmt.Quote = make([]byte, len(p.Attestation.Quote))
			copy(stmt.Quote, p.Attestation.Quote)
		}
		if p.Attestation.Nonce != nil {
			stmt.Nonce = make([]byte, len(p.Attestation.Nonce))
			copy(stmt.Nonce, p.Attestation.Nonce)
		}
		out.Attestation = &stmt
	}
	return &out
}
