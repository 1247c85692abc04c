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

// Package attestation provides party attestation for threshold signing
// quorums. A statement carries evidence that a party's signer runs an
// approved build, and a Verifier decides whether that evidence admits
// the party into a key's share set.
//
// Typical workflow:
//  1. The party produces a statement describing its signer build
//  2. An out-of-band process verifies the evidence and sets Verified
//  3. The registry checks the statement at registration time
package attestation

import (
	"fmt"
	"time"
)

// Statement carries the evidence a party presents at registration.
type Statement struct {
	// Format identifies the evidence format (e.g. "measurement", "tee-quote")
	Format string

	// Measurement is the hex digest of the signer build the party runs
	Measurement string

	// Quote is raw format-specific evidence backing the measurement
	Quote []byte

	// Nonce is an optional challenge value binding the statement to a
	// single registration attempt
	Nonce []byte

	// IssuedAt is when the evidence was produced
	IssuedAt time.Time

	// Verified records the outcome of out-of-band evidence verification.
	// A statement with Verified false never admits a party when the
	// registry requires attestation.
	Verified bool
}

// VerifyOptions contains configuration for statement verification.
type VerifyOptions struct {
	// CheckFreshness enables age verification of the statement
	CheckFreshness bool

	// FreshnessWindow is the maximum age of a statement.
	// Only checked if CheckFreshness is enabled.
	// Default: 5 minutes.
	FreshnessWindow time.Duration

	// ExpectedNonce is the nonce value expected in the statement.
	// Only checked when non-empty.
	ExpectedNonce []byte

	// CurrentTime is the time used for freshness checks.
	// The zero value means the current wall clock.
	CurrentTime time.Time
}

// String returns a human-readable representation of the statement.
func (stmt *Statement) String() string {
	return fmt.Sprintf("Statement{Format: %s, Measurement: %s, Verified: %v}",
		stmt.Format, stmt.Measurement, stmt.Verified)
}

// Validate checks if the statement is well-formed.
func (stmt *Statement) Validate() error {
	if stmt.Format == "" {
		return fmt.Errorf("attestation format is required")
	}

	if stmt.Measurement == "" {
		return fmt.Errorf("attestation measurement is required")
	}

	if stmt.IssuedAt.IsZero() {
		return fmt.Errorf("attestation issue time is required")
	}

	return nil
}

// Validate normalizes the options, applying defaults where needed.
func (opts *VerifyOptions) Validate() error {
	if opts == nil {
		return fmt.Errorf("verify options cannot be nil")
	}

	if opts.FreshnessWindow < 0 {
		return fmt.Errorf("freshness window cannot be negative")
	}

	if opts.FreshnessWindow == 0 && opts.CheckFreshness {
		opts.FreshnessWindow = 5 * time.Minute
	}

	return nil
}

// DefaultVerifyOptions returns secure default verification options.
func DefaultVerifyOptions() *VerifyOptions {
	return &VerifyOptions{
		CheckFreshness:  true,
		FreshnessWindow: 5 * time.Minute,
	}
}

// InsecureVerifyOptions returns minimal verification (not for production).
func InsecureVerifyOptions() *VerifyOptions {
	return &VerifyOptions{
		CheckFreshness: false,
	}
}
