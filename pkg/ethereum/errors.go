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

package ethereum

import "errors"

// Sentinel errors for address derivation and typed-data hashing.
// These errors can be checked with errors.Is().
var (
	// ErrInvalidPubKey indicates a public key that is not 65 uncompressed
	// bytes with the 0x04 prefix.
	ErrInvalidPubKey = errors.New("ethereum: public key must be 65 uncompressed bytes")

	// ErrInvalidAddress indicates a malformed 20-byte hex address.
	ErrInvalidAddress = errors.New("ethereum: address must be 20 hex-encoded bytes")

	// ErrNoPrimaryType indicates typed data without a primary type.
	ErrNoPrimaryType = errors.New("ethereum: typed data missing primary type")

	// ErrUnknownType indicates a struct type not declared in the schema.
	ErrUnknownType = errors.New("ethereum: type not declared in schema")

	// ErrUnsupportedType indicates a field type the encoder does not handle.
	ErrUnsupportedType = errors.New("ethereum: unsupported field type")

	// ErrMissingField indicates a declared field absent from the message.
	ErrMissingField = errors.New("ethereum: message missing declared field")

	// ErrInvalidValue indicates a message value that does not match its
	// declared field type.
	ErrInvalidValue = errors.New("ethereum: field value does not match declared type")
)
