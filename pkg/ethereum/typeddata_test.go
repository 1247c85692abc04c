// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tss.

package ethereum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mailTypedData is the reference payload from the EIP-712 specification.
func mailTypedData() *TypedData {
	return &TypedData{
		Types: map[string][]TypedDataField{
			"Person": {
				{Name: "name", Type: "string"},
				{Name: "wallet", Type: "address"},
			},
			"Mail": {
				{Name: "from", Type: "Person"},
				{Name: "to", Type: "Person"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: TypedDataDomain{
			Name:              "Ether Mail",
			Version:           "1",
			ChainID:           1,
			VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
		},
		Message: map[string]any{
			"from": map[string]any{
				"name":   "Cow",
				"wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			},
			"to": map[string]any{
				"name":   "Bob",
				"wallet": "0xbBbBBBBbbBBBbbbBBbBbbbbBBbBbbbbBbBbbBBbB",
			},
			"contents": "Hello, Bob!",
		},
	}
}

func TestEncodeType_CanonicalOrdering(t *testing.T) {
	td := mailTypedData()
	encoded := td.encodeType("Mail", td.Types["Mail"])
	assert.Equal(t,
		"Mail(Person from,Person to,string contents)Person(string name,address wallet)",
		encoded)
}

func TestHashTypedData_ReferenceVector(t *testing.T) {
	td := mailTypedData()

	domainSep, err := td.domainSeparator()
	require.NoError(t, err)
	assert.Equal(t,
		"f2cee375fa42b42143804025fc449deafd50cc031ca257e0b194a650a912090f",
		hexString(domainSep))

	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	require.NoError(t, err)
	assert.Equal(t,
		"c52c0ee5d84264471806290a3f2c4cecfc5490626bf912d01f240d7a274b371e",
		hexString(structHash))

	digest, err := HashTypedData(td)
	require.NoError(t, err)
	assert.Equal(t,
		"be609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2",
		hexString(digest))
}

func TestHashTypedData_Deterministic(t *testing.T) {
	a, err := HashTypedData(mailTypedData())
	require.NoError(t, err)
	b, err := HashTypedData(mailTypedData())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestHashTypedData_SensitiveToMessage(t *testing.T) {
	base, err := HashTypedData(mailTypedData())
	require.NoError(t, err)

	changed := mailTypedData()
	changed.Message["contents"] = "Hello, Alice!"
	digest, err := HashTypedData(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, digest)
}

func TestHashTypedData_SensitiveToDomain(t *testing.T) {
	base, err := HashTypedData(mailTypedData())
	require.NoError(t, err)

	changed := mailTypedData()
	changed.Domain.ChainID = 5
	digest, err := HashTypedData(changed)
	require.NoError(t, err)
	assert.NotEqual(t, base, digest)
}

func TestHashTypedData_Validations(t *testing.T) {
	_, err := HashTypedData(nil)
	assert.ErrorIs(t, err, ErrNoPrimaryType)

	td := mailTypedData()
	td.PrimaryType = ""
	_, err = HashTypedData(td)
	assert.ErrorIs(t, err, ErrNoPrimaryType)

	td = mailTypedData()
	td.PrimaryType = "Postcard"
	_, err = HashTypedData(td)
	assert.ErrorIs(t, err, ErrUnknownType)

	td = mailTypedData()
	delete(td.Message, "contents")
	_, err = HashTypedData(td)
	assert.ErrorIs(t, err, ErrMissingField)

	td = mailTypedData()
	td.Message["contents"] = 42
	_, err = HashTypedData(td)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestHashTypedData_ArrayTypesRejected(t *testing.T) {
	td := &TypedData{
		Types: map[string][]TypedDataField{
			"Batch": {{Name: "ids", Type: "uint256[]"}},
		},
		PrimaryType: "Batch",
		Domain:      TypedDataDomain{Name: "Test"},
		Message:     map[string]any{"ids": []any{1, 2}},
	}
	_, err := HashTypedData(td)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeInteger_Ranges(t *testing.T) {
	tests := []struct {
		name      string
		fieldType string
		value     any
		wantErr   error
	}{
		{name: "uint8 in range", fieldType: "uint8", value: 255},
		{name: "uint8 overflow", fieldType: "uint8", value: 256, wantErr: ErrInvalidValue},
		{name: "uint negative", fieldType: "uint256", value: -1, wantErr: ErrInvalidValue},
		{name: "int8 min", fieldType: "int8", value: -128},
		{name: "int8 underflow", fieldType: "int8", value: -129, wantErr: ErrInvalidValue},
		{name: "decimal string", fieldType: "uint256", value: "1000000000000000000"},
		{name: "hex string", fieldType: "uint256", value: "0xde0b6b3a7640000"},
		{name: "bad width", fieldType: "uint7", value: 1, wantErr: ErrUnsupportedType},
		{name: "fractional float", fieldType: "uint256", value: 1.5, wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			word, err := encodeInteger(tt.fieldType, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, word, 32)
		})
	}
}

func TestEncodeInteger_TwosComplement(t *testing.T) {
	word, err := encodeInteger("int256", -1)
	require.NoError(t, err)
	// -1 is all ones.
	assert.Equal(t,
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		hexString(word))
}

func TestEncodeValue_FixedBytes(t *testing.T) {
	td := &TypedData{Types: map[string][]TypedDataField{}}

	word, err := td.encodeValue("bytes4", []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)
	assert.Equal(t, byte(0xde), word[0])
	assert.Equal(t, byte(0xef), word[3])
	assert.Equal(t, byte(0x00), word[4])

	_, err = td.encodeValue("bytes4", []byte{0xde})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = td.encodeValue("bytes33", []byte{0x01})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeValue_Bool(t *testing.T) {
	td := &TypedData{Types: map[string][]TypedDataField{}}

	word, err := td.encodeValue("bool", true)
	require.NoError(t, err)
	assert.Equal(t, byte(1), word[31])

	word, err = td.encodeValue("bool", false)
	require.NoError(t, err)
	assert.Equal(t, byte(0), word[31])
}
