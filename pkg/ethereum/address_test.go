// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tss.

package ethereum

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}

func TestKeccak256_EmptyInput(t *testing.T) {
	// Well-known Keccak-256 digest of the empty string.
	digest := Keccak256()
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hexString(digest))
}

func TestKeccak256_ConcatenatesInputs(t *testing.T) {
	joined := Keccak256([]byte("hello "), []byte("world"))
	single := Keccak256([]byte("hello world"))
	assert.Equal(t, single, joined)
}

func TestPubkeyToAddress_KnownKey(t *testing.T) {
	// Private key 1 maps to the generator point; its address is a
	// well-known fixture.
	var one [32]byte
	one[31] = 1
	pub := secp256k1.PrivKeyFromBytes(one[:]).PubKey()

	addr := PubkeyToAddress(pub)
	assert.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", addr)
}

func TestAddressFromUncompressed(t *testing.T) {
	var one [32]byte
	one[31] = 1
	pub := secp256k1.PrivKeyFromBytes(one[:]).PubKey()

	addr, err := AddressFromUncompressed(pub.SerializeUncompressed())
	require.NoError(t, err)
	assert.Equal(t, PubkeyToAddress(pub), addr)
}

func TestAddressFromUncompressed_Validation(t *testing.T) {
	_, err := AddressFromUncompressed(nil)
	assert.ErrorIs(t, err, ErrInvalidPubKey)

	var one [32]byte
	one[31] = 1
	compressed := secp256k1.PrivKeyFromBytes(one[:]).PubKey().SerializeCompressed()
	_, err = AddressFromUncompressed(compressed)
	assert.ErrorIs(t, err, ErrInvalidPubKey)

	// Right length, wrong prefix.
	bogus := make([]byte, 65)
	bogus[0] = 0x02
	_, err = AddressFromUncompressed(bogus)
	assert.ErrorIs(t, err, ErrInvalidPubKey)
}

func TestParseAddress(t *testing.T) {
	raw, err := parseAddress("0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826")
	require.NoError(t, err)
	assert.Len(t, raw, AddressLen)

	bare, err := parseAddress("cd2a3d9f938e13cd947ec05abc7fe734df8dd826")
	require.NoError(t, err)
	assert.Equal(t, raw, bare)

	_, err = parseAddress("0x1234")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = parseAddress("not hex at all")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
