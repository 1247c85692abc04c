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
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Polynomial is a polynomial over the secp256k1 group order, stored with the
// constant term first. A polynomial of degree t-1 realizes a t-of-n sharing:
// any t evaluations reconstruct the constant term, fewer reveal nothing.
type Polynomial struct {
	coeffs []secp256k1.ModNScalar
}

// NewRandomPolynomial returns a polynomial of the given degree with every
// coefficient, including the constant term, drawn from crypto/rand.
// Coefficients are resampled until nonzero, so the polynomial always has
// full degree and a nonzero secret.
func NewRandomPolynomial(degree int) (*Polynomial, error) {
	if degree < 1 {
		return nil, ErrInvalidDegree
	}
	coeffs := make([]secp256k1.ModNScalar, degree+1)
	for i := range coeffs {
		if err := randomModN(&coeffs[i]); err != nil {
			return nil, err
		}
	}
	return &Polynomial{coeffs: coeffs}, nil
}

// NewZeroPolynomial returns a polynomial of the given degree whose constant
// term is forced to zero and whose remaining coefficients are random. Adding
// evaluations of zero-constant polynomials to existing shares re-randomizes
// them without moving the shared secret.
func NewZeroPolynomial(degree int) (*Polynomial, error) {
	if degree < 1 {
		return nil, ErrInvalidDegree
	}
	coeffs := make([]secp256k1.ModNScalar, degree+1)
	coeffs[0].Zero()
	for i := 1; i < len(coeffs); i++ {
		if err := randomModN(&coeffs[i]); err != nil {
			return nil, err
		}
	}
	return &Polynomial{coeffs: coeffs}, nil
}

// Degree returns the polynomial degree, or -1 after Zeroize.
func (p *Polynomial) Degree() int {
	return len(p.coeffs) - 1
}

// evaluate computes the polynomial at x=index into out using Horner's
// method. The caller must hold a live polynomial and zero out after use.
func (p *Polynomial) evaluate(index uint32, out *secp256k1.ModNScalar) {
	var x secp256k1.ModNScalar
	x.SetInt(index)
	out.Set(&p.coeffs[len(p.coeffs)-1])
	for i := len(p.coeffs) - 2; i >= 0; i-- {
		out.Mul(&x)
		out.Add(&p.coeffs[i])
	}
}

// EvaluateAt returns the polynomial evaluated at the 1-based participant
// index. Index zero is rejected: that evaluation is the constant term.
func (p *Polynomial) EvaluateAt(index uint32) (*SecureScalar, error) {
	if p.coeffs == nil {
		return nil, ErrPolynomialErased
	}
	if index == 0 {
		return nil, ErrInvalidIndex
	}
	var out secp256k1.ModNScalar
	p.evaluate(index, &out)
	s := fromModN(&out)
	out.Zero()
	return s, nil
}

// ConstantTerm returns a copy of the constant term, the secret the
// polynomial shares.
func (p *Polynomial) ConstantTerm() (*SecureScalar, error) {
	if p.coeffs == nil {
		return nil, ErrPolynomialErased
	}
	return fromModN(&p.coeffs[0]), nil
}

// ConstantPoint stores the public image of the constant term (its product
// with the base point) into result.
func (p *Polynomial) ConstantPoint(result *secp256k1.JacobianPoint) error {
	if p.coeffs == nil {
		return ErrPolynomialErased
	}
	secp256k1.ScalarBaseMultNonConst(&p.coeffs[0], result)
	return nil
}

// Zeroize erases every coefficient and renders the polynomial unusable.
func (p *Polynomial) Zeroize() {
	for i := range p.coeffs {
		p.coeffs[i].Zero()
	}
	p.coeffs = nil
}

// SumPolynomialsAt evaluates every polynomial at the same 1-based index and
// returns the sum of the evaluations. This is the share a party ends up
// holding when each contributor deals it one point.
func SumPolynomialsAt(polys []*Polynomial, index uint32) (*SecureScalar, error) {
	if len(polys) == 0 {
		return nil, ErrNoPolynomials
	}
	if index == 0 {
		return nil, ErrInvalidIndex
	}
	var acc, term secp256k1.ModNScalar
	for _, poly := range polys {
		if poly == nil || poly.coeffs == nil {
			acc.Zero()
			return nil, ErrPolynomialErased
		}
		poly.evaluate(index, &term)
		acc.Add(&term)
	}
	term.Zero()
	s := fromModN(&acc)
	acc.Zero()
	return s, nil
}
