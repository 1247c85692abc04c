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
	"fmt"
	"strings"
)

// Network tiers, ordered by how much is at stake on them.
const (
	TierDevnet  = "devnet"
	TierTestnet = "testnet"
	TierMainnet = "mainnet"
)

// PolicyFloor is the minimum quorum shape a tier accepts for new keys and
// rotations. With Enforce set, sub-floor requests are rejected with a
// PolicyFloorError; without it they are logged and allowed through.
type PolicyFloor struct {
	MinThreshold int
	MinParties   int
	Enforce      bool
}

// FloorForTier returns the enforced default floor for a network tier. The
// devnet floor is the algebraic minimum, so on devnet every valid quorum
// passes.
func FloorForTier(tier string) (PolicyFloor, error) {
	switch strings.ToLower(tier) {
	case TierDevnet, "":
		return PolicyFloor{MinThreshold: 2, MinParties: 2, Enforce: true}, nil
	case TierTestnet:
		return PolicyFloor{MinThreshold: 2, MinParties: 3, Enforce: true}, nil
	case TierMainnet:
		return PolicyFloor{MinThreshold: 3, MinParties: 5, Enforce: true}, nil
	default:
		return PolicyFloor{}, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
}

// violates reports whether the quorum shape is below the floor, independent
// of enforcement.
func (f PolicyFloor) violates(threshold, totalParties int) bool {
	return threshold < f.MinThreshold || totalParties < f.MinParties
}
