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

package threshold

import (
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// LagrangeCoefficient computes the Lagrange basis coefficient at x=0 for the
// participant with the target index over the given index set:
//
//	λ_target = Π_{j≠target} (-x_j) / (x_target - x_j)  mod N
//
// Coefficients are public values; only the shares they weight are secret.
// The participant scans are linear on purpose, quorums stay small.
func LagrangeCoefficient(indices []uint32, target uint32) (*secp256k1.ModNScalar, error) {
	if len(indices) == 0 {
		return nil, ErrNoShares
	}
	for i, idx := range indices {
		if idx == 0 {
			return nil, ErrInvalidIndex
		}
		for _, other := range indices[i+1:] {
			if idx == other {
				return nil, ErrDuplicateIndex
			}
		}
	}

	var num, den, xt secp256k1.ModNScalar
	num.SetInt(1)
	den.SetInt(1)
	xt.SetInt(target)

	found := false
	for _, idx := range indices {
		if idx == target {
			found = true
			continue
		}
		var negXj, diff secp256k1.ModNScalar
		negXj.SetInt(idx)
		negXj.Negate()
		num.Mul(&negXj)
		diff.Add2(&xt, &negXj)
		den.Mul(&diff)
	}
	if !found {
		return nil, ErrIndexNotInSet
	}

	den.InverseNonConst()
	num.Mul(&den)
	return &num, nil
}

// CombineShares reconstructs the shared secret from a set of shares keyed by
// participant index, via Lagrange interpolation at zero:
//
//	secret = Σ share_i · λ_i  mod N
//
// Any threshold-sized subset of a key's shares yields the same result. The
// returned scalar is the reconstructed secret; callers must Zeroize it as
// soon as it has served its purpose.
func CombineShares(shares map[uint32]*SecureScalar) (*SecureScalar, error) {
	if len(shares) == 0 {
		return nil, ErrNoShares
	}

	indices := make([]uint32, 0, len(shares))
	for idx := range shares {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	var acc secp256k1.ModNScalar
	for _, idx := range indices {
		lambda, err := LagrangeCoefficient(indices, idx)
		if err != nil {
			acc.Zero()
			return nil, err
		}
		var sv, term secp256k1.ModNScalar
		if err := shares[idx].modN(&sv); err != nil {
			acc.Zero()
			return nil, err
		}
		term.Mul2(lambda, &sv)
		acc.Add(&term)
		sv.Zero()
		term.Zero()
		lambda.Zero()
	}

	out := fromModN(&acc)
	acc.Zero()
	return out, nil
}
