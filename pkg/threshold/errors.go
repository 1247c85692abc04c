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

import "errors"

// Sentinel errors for the share algebra.
// These errors can be checked with errors.Is().
var (
	// ErrScalarErased indicates a read or arithmetic access to a scalar
	// whose memory has already been zeroized.
	ErrScalarErased = errors.New("threshold: scalar has been erased")

	// ErrInvalidScalarLen indicates a scalar buffer outside 1..32 bytes.
	ErrInvalidScalarLen = errors.New("threshold: scalar must be between 1 and 32 bytes")

	// ErrInvalidDegree indicates a polynomial degree below 1.
	ErrInvalidDegree = errors.New("threshold: polynomial degree must be at least 1")

	// ErrPolynomialErased indicates use of a polynomial after Zeroize.
	ErrPolynomialErased = errors.New("threshold: polynomial has been erased")

	// ErrNoPolynomials indicates an empty contribution set.
	ErrNoPolynomials = errors.New("threshold: no polynomials to evaluate")

	// ErrInvalidIndex indicates a zero participant index. Index zero is the
	// secret itself and is never a valid evaluation point.
	ErrInvalidIndex = errors.New("threshold: participant index must be nonzero")

	// ErrDuplicateIndex indicates the same participant index appears twice.
	ErrDuplicateIndex = errors.New("threshold: duplicate participant index")

	// ErrIndexNotInSet indicates the target index is missing from the
	// participant index set.
	ErrIndexNotInSet = errors.New("threshold: target index not in participant set")

	// ErrNoShares indicates an empty or nil share set.
	ErrNoShares = errors.New("threshold: no shares to combine")
)
