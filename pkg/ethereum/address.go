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

// Package ethereum provides the Ethereum conventions the signing core speaks:
// Keccak-256 digests, address derivation from secp256k1 public keys, and
// EIP-712 style typed-data hashing.
package ethereum

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/sha3"
)

// AddressLen is the length of a raw Ethereum address in bytes.
const AddressLen = 20

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// PubkeyToAddress derives the 0x-prefixed, lowercase hex address for a
// secp256k1 public key: the last 20 bytes of the Keccak-256 digest of the
// uncompressed point with its 0x04 prefix stripped.
func PubkeyToAddress(pub *secp256k1.PublicKey) string {
	digest := Keccak256(pub.SerializeUncompressed()[1:])
	return "0x" + hex.EncodeToString(digest[32-AddressLen:])
}

// AddressFromUncompressed derives the address from a 65-byte uncompressed
// public key serialization, validating the point along the way.
func AddressFromUncompressed(pub []byte) (string, error) {
	if len(pub) != 65 || pub[0] != 0x04 {
		return "", ErrInvalidPubKey
	}
	parsed, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return "", err
	}
	return PubkeyToAddress(parsed), nil
}

// parseAddress decodes a 0x-prefixed or bare 40-character hex address into
// its raw 20 bytes.
func parseAddress(s string) ([]byte, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != AddressLen {
		return nil, ErrInvalidAddress
	}
	return raw, nil
}
