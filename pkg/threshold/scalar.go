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

// Package threshold implements the share algebra for threshold signing:
// fixed-size scalar containers with explicit best-effort erasure, polynomial
// generation and evaluation over the secp256k1 group order, Lagrange
// reconstruction at zero, and the keyed store that is the only sanctioned
// holder of raw share scalars.
//
// All arithmetic is performed modulo the secp256k1 group order. Modular
// operations happen inside SecureScalar (or on short-lived ModNScalar
// temporaries that are zeroed before return) so a secret value never escapes
// into an arbitrary-precision integer that cannot be erased.
package threshold

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// SecureScalar holds a value modulo the secp256k1 group order in a fixed
// 32-byte big-endian buffer. Construction always copies its input so the
// container owns independent memory, and every read accessor fails with
// ErrScalarErased once Zeroize has been called.
//
// The zero value is not usable; construct with NewSecureScalar or
// NewRandomSecureScalar.
type SecureScalar struct {
	buf    [32]byte
	erased bool
}

// NewSecureScalar copies b into an independent buffer, reducing the value
// modulo the group order. The input is interpreted as a big-endian unsigned
// integer and must be between 1 and 32 bytes.
func NewSecureScalar(b []byte) (*SecureScalar, error) {
	if len(b) == 0 || len(b) > 32 {
		return nil, ErrInvalidScalarLen
	}
	var k secp256k1.ModNScalar
	k.SetByteSlice(b)
	s := fromModN(&k)
	k.Zero()
	return s, nil
}

// NewRandomSecureScalar draws a uniformly random nonzero scalar from
// crypto/rand.
func NewRandomSecureScalar() (*SecureScalar, error) {
	var k secp256k1.ModNScalar
	if err := randomModN(&k); err != nil {
		return nil, err
	}
	s := fromModN(&k)
	k.Zero()
	return s, nil
}

// fromModN copies the scalar value into a fresh container. The caller keeps
// ownership of k and is responsible for zeroing it.
func fromModN(k *secp256k1.ModNScalar) *SecureScalar {
	s := &SecureScalar{}
	k.PutBytes(&s.buf)
	return s
}

// randomModN fills out with a uniformly random nonzero scalar, rejection
// sampling values at or above the group order.
func randomModN(out *secp256k1.ModNScalar) error {
	var buf [32]byte
	defer secureZero(buf[:])
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return err
		}
		if overflow := out.SetBytes(&buf); overflow != 0 {
			continue
		}
		if !out.IsZero() {
			return nil
		}
	}
}

// modN loads the scalar value into out, failing if the container has been
// erased. The caller is responsible for zeroing out after use.
func (s *SecureScalar) modN(out *secp256k1.ModNScalar) error {
	if s == nil || s.erased {
		return ErrScalarErased
	}
	out.SetBytes(&s.buf)
	return nil
}

// Bytes returns a copy of the 32-byte big-endian value.
func (s *SecureScalar) Bytes() ([32]byte, error) {
	if s.erased {
		return [32]byte{}, ErrScalarErased
	}
	return s.buf, nil
}

// Hex returns the value as a 64-character lowercase hex string.
func (s *SecureScalar) Hex() (string, error) {
	if s.erased {
		return "", ErrScalarErased
	}
	return hex.EncodeToString(s.buf[:]), nil
}

// Commitment returns the hex-encoded SHA-256 digest of the scalar bytes,
// recorded at key generation for later integrity spot-checks.
func (s *SecureScalar) Commitment() (string, error) {
	if s.erased {
		return "", ErrScalarErased
	}
	sum := sha256.Sum256(s.buf[:])
	return hex.EncodeToString(sum[:]), nil
}

// IsErased reports whether Zeroize has been called.
func (s *SecureScalar) IsErased() bool {
	return s.erased
}

// Add returns a new scalar holding s + other mod the group order. Both
// operands must still be readable.
func (s *SecureScalar) Add(other *SecureScalar) (*SecureScalar, error) {
	var a, b secp256k1.ModNScalar
	if err := s.modN(&a); err != nil {
		return nil, err
	}
	if err := other.modN(&b); err != nil {
		a.Zero()
		return nil, err
	}
	a.Add(&b)
	out := fromModN(&a)
	a.Zero()
	b.Zero()
	return out, nil
}

// PublicPoint returns the public image of the scalar, its product with the
// curve base point.
func (s *SecureScalar) PublicPoint() (*secp256k1.PublicKey, error) {
	var k secp256k1.ModNScalar
	if err := s.modN(&k); err != nil {
		return nil, err
	}
	var pt secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &pt)
	k.Zero()
	pt.ToAffine()
	return secp256k1.NewPublicKey(&pt.X, &pt.Y), nil
}

// PrivateKey returns the scalar wrapped as a secp256k1 private key for
// signing. The returned key holds an independent copy; the caller must Zero
// it after use.
func (s *SecureScalar) PrivateKey() (*secp256k1.PrivateKey, error) {
	var k secp256k1.ModNScalar
	if err := s.modN(&k); err != nil {
		return nil, err
	}
	priv := secp256k1.NewPrivateKey(&k)
	k.Zero()
	return priv, nil
}

// Zeroize erases the scalar with a zero-fill, random-fill, zero-fill pass
// and marks the container unreadable. Calling it again is a no-op.
//
// Best-effort only: the runtime may already have copied the buffer during
// stack growth or GC before erasure runs.
func (s *SecureScalar) Zeroize() {
	if s == nil || s.erased {
		return
	}
	secureZero(s.buf[:])
	s.erased = true
}

// secureZero overwrites b with zeros, then random bytes, then zeros again.
// The random pass guards against dead-store elimination of the fills.
func secureZero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = 0
	}
}
