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

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// TypedDataField is one declared field of a struct type.
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedDataDomain carries the EIP-712 domain values. Zero-valued fields are
// omitted from the synthesized EIP712Domain type; declare EIP712Domain in
// Types explicitly to control the domain shape field by field.
type TypedDataDomain struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainID           uint64 `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

// TypedData is a structured-data signing request: a type schema, the primary
// type to hash, the signing domain, and the message values.
type TypedData struct {
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Domain      TypedDataDomain             `json:"domain"`
	Message     map[string]any              `json:"message"`
}

// HashTypedData computes the 32-byte signing digest:
//
//	keccak256(0x19 || 0x01 || domainSeparator || hashStruct(primaryType, message))
func HashTypedData(td *TypedData) ([]byte, error) {
	if td == nil || td.PrimaryType == "" {
		return nil, ErrNoPrimaryType
	}
	domainSep, err := td.domainSeparator()
	if err != nil {
		return nil, err
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, err
	}
	return Keccak256([]byte{0x19, 0x01}, domainSep, structHash), nil
}

// HashStruct hashes a message against a struct type declared in the schema:
// keccak256(typeHash || enc(field_1) || ... || enc(field_n)).
func (td *TypedData) HashStruct(typeName string, data map[string]any) ([]byte, error) {
	fields, ok := td.Types[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	return td.hashFields(typeName, fields, data)
}

func (td *TypedData) hashFields(typeName string, fields []TypedDataField, data map[string]any) ([]byte, error) {
	enc := make([]byte, 0, 32*(len(fields)+1))
	enc = append(enc, Keccak256([]byte(td.encodeType(typeName, fields)))...)
	for _, field := range fields {
		value, ok := data[field.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, typeName, field.Name)
		}
		word, err := td.encodeValue(field.Type, value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typeName, field.Name, err)
		}
		enc = append(enc, word...)
	}
	return Keccak256(enc), nil
}

// encodeType renders the canonical type string: the primary type first, then
// every referenced struct type sorted by name.
func (td *TypedData) encodeType(typeName string, fields []TypedDataField) string {
	var b strings.Builder
	writeType := func(name string, fs []TypedDataField) {
		b.WriteString(name)
		b.WriteByte('(')
		for i, f := range fs {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Type)
			b.WriteByte(' ')
			b.WriteString(f.Name)
		}
		b.WriteByte(')')
	}

	writeType(typeName, fields)
	for _, dep := range td.dependencies(typeName, fields) {
		writeType(dep, td.Types[dep])
	}
	return b.String()
}

// dependencies collects the struct types referenced transitively from the
// given fields, sorted by name and excluding the root type itself.
func (td *TypedData) dependencies(root string, fields []TypedDataField) []string {
	seen := map[string]bool{root: true}
	var collected []string
	var walk func(fs []TypedDataField)
	walk = func(fs []TypedDataField) {
		for _, f := range fs {
			depFields, ok := td.Types[f.Type]
			if !ok || seen[f.Type] {
				continue
			}
			seen[f.Type] = true
			collected = append(collected, f.Type)
			walk(depFields)
		}
	}
	walk(fields)
	sort.Strings(collected)
	return collected
}

// encodeValue encodes one field value into its 32-byte word.
func (td *TypedData) encodeValue(fieldType string, value any) ([]byte, error) {
	switch {
	case fieldType == "string":
		s, ok := value.(string)
		if !ok {
			return nil, ErrInvalidValue
		}
		return Keccak256([]byte(s)), nil

	case fieldType == "bytes":
		raw, err := toBytes(value)
		if err != nil {
			return nil, err
		}
		return Keccak256(raw), nil

	case fieldType == "address":
		s, ok := value.(string)
		if !ok {
			return nil, ErrInvalidValue
		}
		raw, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		return leftPad32(raw), nil

	case fieldType == "bool":
		v, ok := value.(bool)
		if !ok {
			return nil, ErrInvalidValue
		}
		word := make([]byte, 32)
		if v {
			word[31] = 1
		}
		return word, nil

	case strings.HasPrefix(fieldType, "bytes"):
		size, err := strconv.Atoi(fieldType[len("bytes"):])
		if err != nil || size < 1 || size > 32 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fieldType)
		}
		raw, err := toBytes(value)
		if err != nil {
			return nil, err
		}
		if len(raw) != size {
			return nil, ErrInvalidValue
		}
		word := make([]byte, 32)
		copy(word, raw)
		return word, nil

	case strings.HasPrefix(fieldType, "uint"), strings.HasPrefix(fieldType, "int"):
		return encodeInteger(fieldType, value)

	case strings.Contains(fieldType, "["):
		return nil, fmt.Errorf("%w: array type %s", ErrUnsupportedType, fieldType)

	default:
		if _, ok := td.Types[fieldType]; ok {
			nested, ok := value.(map[string]any)
			if !ok {
				return nil, ErrInvalidValue
			}
			return td.HashStruct(fieldType, nested)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fieldType)
	}
}

// encodeInteger encodes uintN/intN values as a 32-byte big-endian word,
// using two's complement for negative values.
func encodeInteger(fieldType string, value any) ([]byte, error) {
	signed := strings.HasPrefix(fieldType, "int")
	suffix := strings.TrimPrefix(fieldType, "uint")
	if signed {
		suffix = strings.TrimPrefix(fieldType, "int")
	}
	bits := 256
	if suffix != "" {
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fieldType)
		}
		bits = n
	}

	v, err := toBigInt(value)
	if err != nil {
		return nil, err
	}

	if !signed {
		if v.Sign() < 0 || v.BitLen() > bits {
			return nil, ErrInvalidValue
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
		if v.Cmp(limit) >= 0 || v.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, ErrInvalidValue
		}
		if v.Sign() < 0 {
			wrap := new(big.Int).Lsh(big.NewInt(1), 256)
			v = new(big.Int).Add(v, wrap)
		}
	}

	word := make([]byte, 32)
	v.FillBytes(word)
	return word, nil
}

// toBytes accepts raw bytes or a hex string, with or without a 0x prefix.
func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	case string:
		s := v
		if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
			s = s[2:]
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return nil, ErrInvalidValue
		}
		return raw, nil
	default:
		return nil, ErrInvalidValue
	}
}

// toBigInt accepts the integer representations that survive JSON decoding
// and Go callers alike.
func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, ErrInvalidValue
		}
		f, _ := big.NewFloat(v).Int(nil)
		return f, nil
	case string:
		parsed, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return nil, ErrInvalidValue
		}
		return parsed, nil
	default:
		return nil, ErrInvalidValue
	}
}

// domainSeparator hashes the EIP712Domain struct. When the schema does not
// declare EIP712Domain, a type is synthesized from the non-zero domain
// fields in canonical order.
func (td *TypedData) domainSeparator() ([]byte, error) {
	fields, declared := td.Types["EIP712Domain"]
	if !declared {
		if td.Domain.Name != "" {
			fields = append(fields, TypedDataField{Name: "name", Type: "string"})
		}
		if td.Domain.Version != "" {
			fields = append(fields, TypedDataField{Name: "version", Type: "string"})
		}
		if td.Domain.ChainID != 0 {
			fields = append(fields, TypedDataField{Name: "chainId", Type: "uint256"})
		}
		if td.Domain.VerifyingContract != "" {
			fields = append(fields, TypedDataField{Name: "verifyingContract", Type: "address"})
		}
	}

	data := make(map[string]any, len(fields))
	for _, field := range fields {
		switch field.Name {
		case "name":
			data["name"] = td.Domain.Name
		case "version":
			data["version"] = td.Domain.Version
		case "chainId":
			data["chainId"] = td.Domain.ChainID
		case "verifyingContract":
			data["verifyingContract"] = td.Domain.VerifyingContract
		default:
			return nil, fmt.Errorf("%w: domain field %s", ErrUnsupportedType, field.Name)
		}
	}
	return td.hashFields("EIP712Domain", fields, data)
}

// leftPad32 left-pads b into a 32-byte word.
func leftPad32(b []byte) []byte {
	word := make([]byte, 32)
	copy(word[32-len(b):], b)
	return word
}
