// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tss.

package versioning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tss/pkg/storage"
)

func testVersion(version uint64, status Status) *KeyVersion {
	return &KeyVersion{
		Version:      version,
		PublicKey:    "04deadbeef",
		Address:      "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     []string{"p1", "p2", "p3"},
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Status:       status,
	}
}

// runStoreTests exercises the VersionStore contract against an implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) VersionStore) {
	ctx := context.Background()

	t.Run("AppendAndCurrent", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))

		current, err := store.CurrentVersion(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), current.Version)
		assert.Equal(t, StatusActive, current.Status)
		assert.Equal(t, []string{"p1", "p2", "p3"}, current.PartyIDs)
	})

	t.Run("SingleActiveInvariant", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))

		err := store.AppendVersion(ctx, "k1", testVersion(2, StatusActive))
		assert.ErrorIs(t, err, ErrActiveVersionExists)

		// Rotating the prior version clears the way.
		now := time.Now()
		require.NoError(t, store.UpdateStatus(ctx, "k1", 1, StatusRotated, &now))
		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(2, StatusActive)))

		current, err := store.CurrentVersion(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), current.Version)

		prior, err := store.GetVersion(ctx, "k1", 1)
		require.NoError(t, err)
		assert.Equal(t, StatusRotated, prior.Status)
		require.NotNil(t, prior.RotatedAt)
	})

	t.Run("DuplicateVersionRejected", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))
		err := store.AppendVersion(ctx, "k1", testVersion(1, StatusRotated))
		assert.ErrorIs(t, err, ErrVersionExists)
	})

	t.Run("NoActiveVersion", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusRevoked)))
		_, err := store.CurrentVersion(ctx, "k1")
		assert.ErrorIs(t, err, ErrNoActiveVersion)
	})

	t.Run("NotFoundErrors", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		_, err := store.CurrentVersion(ctx, "ghost")
		assert.ErrorIs(t, err, ErrKeyNotFound)

		_, err = store.GetVersion(ctx, "ghost", 1)
		assert.ErrorIs(t, err, ErrKeyNotFound)

		_, err = store.ListVersions(ctx, "ghost")
		assert.ErrorIs(t, err, ErrKeyNotFound)

		assert.ErrorIs(t, store.DeleteKey(ctx, "ghost"), ErrKeyNotFound)
		assert.ErrorIs(t, store.UpdateStatus(ctx, "ghost", 1, StatusRotated, nil), ErrKeyNotFound)

		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))
		_, err = store.GetVersion(ctx, "k1", 9)
		assert.ErrorIs(t, err, ErrVersionNotFound)
		assert.ErrorIs(t, store.UpdateStatus(ctx, "k1", 9, StatusRotated, nil), ErrVersionNotFound)
	})

	t.Run("ListVersionsOrdered", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(3, StatusActive)))
		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusRotated)))
		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(2, StatusRotated)))

		versions, err := store.ListVersions(ctx, "k1")
		require.NoError(t, err)
		require.Len(t, versions, 3)
		assert.Equal(t, uint64(1), versions[0].Version)
		assert.Equal(t, uint64(2), versions[1].Version)
		assert.Equal(t, uint64(3), versions[2].Version)
	})

	t.Run("DeleteKeyRemovesHistory", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))
		require.NoError(t, store.AppendVersion(ctx, "k2", testVersion(1, StatusActive)))

		require.NoError(t, store.DeleteKey(ctx, "k1"))
		_, err := store.ListVersions(ctx, "k1")
		assert.ErrorIs(t, err, ErrKeyNotFound)

		ids, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"k2"}, ids)
	})

	t.Run("ListKeysSorted", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		require.NoError(t, store.AppendVersion(ctx, "zeta", testVersion(1, StatusActive)))
		require.NoError(t, store.AppendVersion(ctx, "alpha", testVersion(1, StatusActive)))

		ids, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "zeta"}, ids)
	})

	t.Run("ClosedStore", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))
		require.NoError(t, store.Close())

		_, err := store.CurrentVersion(ctx, "k1")
		assert.ErrorIs(t, err, ErrStoreClosed)
		assert.ErrorIs(t, store.AppendVersion(ctx, "k1", testVersion(2, StatusActive)), ErrStoreClosed)
	})
}

func TestMemoryVersionStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) VersionStore {
		return NewMemoryVersionStore()
	})
}

func TestBackendVersionStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) VersionStore {
		store, err := NewBackendVersionStore(storage.New())
		require.NoError(t, err)
		return store
	})
}

func TestMemoryVersionStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryVersionStore()
	defer store.Close()

	require.NoError(t, store.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))

	first, err := store.CurrentVersion(ctx, "k1")
	require.NoError(t, err)
	first.PartyIDs[0] = "tampered"
	first.Status = StatusRevoked

	second, err := store.CurrentVersion(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "p1", second.PartyIDs[0])
	assert.Equal(t, StatusActive, second.Status)
}

func TestBackendVersionStore_SharedBackend(t *testing.T) {
	ctx := context.Background()
	backend := storage.New()
	defer backend.Close()

	first, err := NewBackendVersionStore(backend)
	require.NoError(t, err)
	require.NoError(t, first.AppendVersion(ctx, "k1", testVersion(1, StatusActive)))
	require.NoError(t, first.Close())

	// A new store over the same backend sees existing history.
	second, err := NewBackendVersionStore(backend)
	require.NoError(t, err)
	defer second.Close()

	current, err := second.CurrentVersion(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), current.Version)
	assert.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", current.Address)
}

func TestBackendVersionStore_NilBackend(t *testing.T) {
	_, err := NewBackendVersionStore(nil)
	assert.Error(t, err)
}
