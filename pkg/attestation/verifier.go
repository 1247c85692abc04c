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

package attestation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotVerified is returned when a statement has not passed
	// out-of-band evidence verification.
	ErrNotVerified = errors.New("attestation: statement not verified")

	// ErrUntrustedMeasurement is returned when a statement's measurement
	// is not in the trusted set.
	ErrUntrustedMeasurement = errors.New("attestation: measurement not trusted")

	// ErrStale is returned when a statement is older than the freshness window.
	ErrStale = errors.New("attestation: statement too old")

	// ErrNotYetValid is returned when a statement is issued in the future.
	ErrNotYetValid = errors.New("attestation: statement not yet valid")

	// ErrNonceMismatch is returned when a statement's nonce does not match
	// the expected challenge.
	ErrNonceMismatch = errors.New("attestation: nonce mismatch")
)

// Verifier validates party attestation statements against a trusted
// measurement set.
type Verifier struct {
	trustedMeasurements []string
}

// NewVerifier creates a new statement verifier.
//
// Parameters:
//   - trustedMeasurements: Build digests to trust (can be empty to accept any)
func NewVerifier(trustedMeasurements []string) *Verifier {
	trusted := make([]string, len(trustedMeasurements))
	copy(trusted, trustedMeasurements)
	return &Verifier{
		trustedMeasurements: trusted,
	}
}

// Verify validates the entire statement.
//
// Performs three main checks:
//  1. Statement well-formedness and the verified flag
//  2. Measurement membership in the trusted set
//  3. Optional freshness and nonce validation
func (v *Verifier) Verify(stmt *Statement, opts *VerifyOptions) error {
	if stmt == nil {
		return errors.New("attestation: statement is nil")
	}

	if err := stmt.Validate(); err != nil {
		return fmt.Errorf("attestation: invalid statement: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return fmt.Errorf("attestation: invalid options: %w", err)
	}

	if !stmt.Verified {
		return ErrNotVerified
	}

	if err := v.VerifyMeasurement(stmt); err != nil {
		return err
	}

	if opts.CheckFreshness {
		if err := verifyFreshness(stmt, opts); err != nil {
			return err
		}
	}

	if len(opts.ExpectedNonce) > 0 {
		if !bytes.Equal(stmt.Nonce, opts.ExpectedNonce) {
			return ErrNonceMismatch
		}
	}

	return nil
}

// VerifyMeasurement checks that the statement's measurement is in the
// trusted set. An empty trusted set accepts any measurement.
func (v *Verifier) VerifyMeasurement(stmt *Statement) error {
	if len(v.trustedMeasurements) == 0 {
		return nil
	}

	for _, trusted := range v.trustedMeasurements {
		if strings.EqualFold(trusted, stmt.Measurement) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUntrustedMeasurement, stmt.Measurement)
}

func verifyFreshness(stmt *Statement, opts *VerifyOptions) error {
	now := opts.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}

	if stmt.IssuedAt.After(now) {
		return fmt.Errorf("%w: issued at %s", ErrNotYetValid, stmt.IssuedAt.Format(time.RFC3339))
	}

	if now.Sub(stmt.IssuedAt) > opts.FreshnessWindow {
		return fmt.Errorf("%w: issued at %s", ErrStale, stmt.IssuedAt.Format(time.RFC3339))
	}

	return nil
}
