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

// Package versioning tracks version history for threshold keys. Every
// generation and rotation appends a version record; exactly one version per
// key is active at any time. The store holds public metadata only, never
// share scalars.
package versioning

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by VersionStore implementations.
var (
	// ErrKeyNotFound is returned when the requested key doesn't exist.
	ErrKeyNotFound = errors.New("versioning: key not found")

	// ErrVersionNotFound is returned when the requested version doesn't exist.
	ErrVersionNotFound = errors.New("versioning: version not found")

	// ErrVersionExists is returned when appending a version number that
	// already exists.
	ErrVersionExists = errors.New("versioning: version already exists")

	// ErrActiveVersionExists is returned when appending an active version
	// while the key already has one.
	ErrActiveVersionExists = errors.New("versioning: key already has an active version")

	// ErrNoActiveVersion is returned when a key has version history but no
	// active version.
	ErrNoActiveVersion = errors.New("versioning: key has no active version")

	// ErrStoreClosed is returned when operations are attempted on a closed store.
	ErrStoreClosed = errors.New("versioning: store is closed")
)

// Status represents the lifecycle state of a key version.
type Status string

const (
	// StatusActive indicates the version currently holding live shares.
	StatusActive Status = "active"

	// StatusRotated indicates a version superseded by a share rotation.
	StatusRotated Status = "rotated"

	// StatusRevoked indicates a version whose shares have been erased.
	StatusRevoked Status = "revoked"
)

// KeyVersion is the historical record for one version of a threshold key.
type KeyVersion struct {
	// Version is the version number (1-indexed).
	Version uint64 `json:"version"`

	// PublicKey is the hex-encoded uncompressed group public key.
	PublicKey string `json:"public_key"`

	// Address is the Ethereum address derived from PublicKey.
	Address string `json:"address"`

	// Threshold is the number of shares required to sign.
	Threshold uint32 `json:"threshold"`

	// TotalParties is the number of parties holding shares.
	TotalParties uint32 `json:"total_parties"`

	// PartyIDs lists the parties holding shares for this version.
	PartyIDs []string `json:"party_ids"`

	// CreatedAt is when this version was created.
	CreatedAt time.Time `json:"created_at"`

	// RotatedAt is when this version was superseded or revoked, if ever.
	RotatedAt *time.Time `json:"rotated_at,omitempty"`

	// Status is the lifecycle state of this version.
	Status Status `json:"status"`
}

// Clone returns a deep copy of the version record.
func (v *KeyVersion) Clone() *KeyVersion {
	out := *v
	if v.PartyIDs != nil {
		out.PartyIDs = make([]string, len(v.PartyIDs))
		copy(out.PartyIDs, v.PartyIDs)
	}
	if v.RotatedAt != nil {
		t := *v.RotatedAt
		out.RotatedAt = &t
	}
	return &out
}

// VersionStore defines the interface for storing and retrieving key version
// history. Implementations must be thread-safe.
//
// The store enforces the single-active invariant: appending an active
// version while the key already has one fails, so rotation must mark the
// prior version rotated before appending its successor.
type VersionStore interface {
	// CurrentVersion returns the key's active version record.
	// Returns ErrKeyNotFound if the key doesn't exist and ErrNoActiveVersion
	// if history exists but every version is rotated or revoked.
	CurrentVersion(ctx context.Context, keyID string) (*KeyVersion, error)

	// GetVersion returns a specific version record.
	// Returns ErrKeyNotFound if the key doesn't exist.
	// Returns ErrVersionNotFound if the version doesn't exist.
	GetVersion(ctx context.Context, keyID string, version uint64) (*KeyVersion, error)

	// ListVersions returns all version records for a key, ordered by
	// version number. Returns ErrKeyNotFound if the key doesn't exist.
	ListVersions(ctx context.Context, keyID string) ([]*KeyVersion, error)

	// AppendVersion registers a new version for a key. If this is the first
	// version, the key is also created.
	// Returns ErrVersionExists if the version number already exists.
	// Returns ErrActiveVersionExists if the record is active and the key
	// already has an active version.
	AppendVersion(ctx context.Context, keyID string, record *KeyVersion) error

	// UpdateStatus changes the lifecycle state of a specific version.
	// rotatedAt, when non-nil, records the supersession time.
	// Returns ErrKeyNotFound if the key doesn't exist.
	// Returns ErrVersionNotFound if the version doesn't exist.
	UpdateStatus(ctx context.Context, keyID string, version uint64, status Status, rotatedAt *time.Time) error

	// DeleteKey removes all version history for a key.
	// Returns ErrKeyNotFound if the key doesn't exist.
	DeleteKey(ctx context.Context, keyID string) error

	// ListKeys returns all key IDs in the store.
	ListKeys(ctx context.Context) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}
