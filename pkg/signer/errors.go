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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-tss/pkg/coordinator"
	"github.com/jeremyhahn/go-tss/pkg/registry"
)

// Service-level errors. Key and session semantics are reported with the
// coordinator package's sentinels so errors.Is works the same whether the
// condition was detected here or one layer down.
var (
	// ErrServiceClosed is returned by every operation after Shutdown.
	ErrServiceClosed = errors.New("signer: service is closed")

	// ErrPolicyFloor is returned when a key request falls below the
	// network tier's minimum threshold or party count and the floor is
	// enforced. See PolicyFloorError for the specifics.
	ErrPolicyFloor = errors.New("signer: request below policy floor")

	// ErrRateLimited is returned when a requester exceeds the signing
	// rate limit.
	ErrRateLimited = errors.New("signer: requester rate limited")

	// ErrUnknownTier is returned when the configured network tier is not
	// one of devnet, testnet, or mainnet.
	ErrUnknownTier = errors.New("signer: unknown network tier")

	// ErrTypedData is returned when a typed-data payload cannot be
	// digested.
	ErrTypedData = errors.New("signer: invalid typed data")
)

// PolicyFloorError reports a key request below the tier's policy floor.
type PolicyFloorError struct {
	Tier         string
	MinThreshold int
	MinParties   int
	Threshold    int
	TotalParties int
}

// Error implements the error interface.
func (e *PolicyFloorError) Error() string {
	return fmt.Sprintf("signer: %d of %d is below the %s floor of %d of %d",
		e.Threshold, e.TotalParties, e.Tier, e.MinThreshold, e.MinParties)
}

// Unwrap returns ErrPolicyFloor so errors.Is matches.
func (e *PolicyFloorError) Unwrap() error {
	return ErrPolicyFloor
}

// errorKind buckets an error into the taxonomy used as the error_type label
// on the errors metric.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, coordinator.ErrSessionTableFull),
		errors.Is(err, coordinator.ErrTooManySessions):
		return "capacity"
	case errors.Is(err, ErrPolicyFloor),
		errors.Is(err, coordinator.ErrCommitmentMismatch),
		errors.Is(err, coordinator.ErrShareIntegrity),
		errors.Is(err, coordinator.ErrAddressMismatch),
		errors.Is(err, registry.ErrInsufficientStake),
		errors.Is(err, registry.ErrAttestationRequired),
		errors.Is(err, registry.ErrAttestationInvalid):
		return "security_policy"
	case errors.Is(err, coordinator.ErrKeyNotFound),
		errors.Is(err, coordinator.ErrSessionNotFound),
		errors.Is(err, coordinator.ErrShareNotFound),
		errors.Is(err, registry.ErrPartyNotFound):
		return "not_found"
	case errors.Is(err, ErrServiceClosed),
		errors.Is(err, coordinator.ErrKeyExists),
		errors.Is(err, coordinator.ErrSessionComplete),
		errors.Is(err, coordinator.ErrSessionFailed),
		errors.Is(err, coordinator.ErrSessionExpired),
		errors.Is(err, coordinator.ErrPartyNotActive):
		return "state"
	case errors.Is(err, ErrUnknownTier),
		errors.Is(err, ErrTypedData),
		errors.Is(err, coordinator.ErrKeyIDRequired),
		errors.Is(err, coordinator.ErrInvalidThreshold),
		errors.Is(err, coordinator.ErrThresholdTooLarge),
		errors.Is(err, coordinator.ErrPartyCountMismatch),
		errors.Is(err, coordinator.ErrDuplicateParty),
		errors.Is(err, coordinator.ErrMessageHash),
		errors.Is(err, coordinator.ErrInvalidPartial),
		errors.Is(err, registry.ErrInvalidParty):
		return "validation"
	default:
		return "internal"
	}
}
