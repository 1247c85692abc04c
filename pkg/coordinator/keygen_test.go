// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tss.

package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tss/pkg/ethereum"
	"github.com/jeremyhahn/go-tss/pkg/registry"
	"github.com/jeremyhahn/go-tss/pkg/versioning"
)

func TestGenerateKey_Success(t *testing.T) {
	ts := newTestSetup(t, 3, Config{})
	ctx := context.Background()

	key, err := ts.coord.GenerateKey(ctx, GenerateKeyRequest{
		KeyID:        "k1",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     []string{"p1", "p2", "p3"},
	})
	require.NoError(t, err)

	assert.Equal(t, "k1", key.KeyID)
	assert.Equal(t, 2, key.Threshold)
	assert.Equal(t, 3, key.TotalParties)
	assert.Equal(t, uint64(1), key.Version)
	assert.Len(t, key.PartyShares, 3)

	require.Len(t, key.PublicKey, 65)
	assert.Equal(t, byte(0x04), key.PublicKey[0])

	derived, err := ethereum.AddressFromUncompressed(key.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, derived, key.Address)

	// One share per party, metadata consistent with the stored scalar.
	assert.Equal(t, 3, ts.shares.Count("k1"))
	for id, meta := range key.PartyShares {
		assert.Equal(t, id, meta.PartyID)
		assert.Equal(t, uint64(1), meta.Version)
		share, ok := ts.shares.Get("k1", id)
		require.True(t, ok)
		commitment, err := share.Commitment()
		require.NoError(t, err)
		assert.Equal(t, commitment, meta.Commitment)
	}

	// Version history opens with a single active record.
	current, err := ts.versions.CurrentVersion(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), current.Version)
	assert.Equal(t, versioning.StatusActive, current.Status)
	assert.Equal(t, key.Address, current.Address)
	assert.Equal(t, []string{"p1", "p2", "p3"}, current.PartyIDs)
}

func TestGenerateKey_AnySubsetReconstructsAddress(t *testing.T) {
	ts := newTestSetup(t, 5, Config{})

	key, err := ts.coord.GenerateKey(context.Background(), GenerateKeyRequest{
		KeyID:        "k1",
		Threshold:    3,
		TotalParties: 5,
		PartyIDs:     []string{"p1", "p2", "p3", "p4", "p5"},
	})
	require.NoError(t, err)

	all := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, subset := range subsets(all, 3) {
		addr := ts.reconstructAddress(t, key, subset)
		assert.Equal(t, key.Address, addr, "subset %v", subset)
	}
}

func TestGenerateKey_ThresholdBounds(t *testing.T) {
	ctx := context.Background()

	t.Run("2 of 2", func(t *testing.T) {
		ts := newTestSetup(t, 2, Config{})
		key, err := ts.coord.GenerateKey(ctx, GenerateKeyRequest{
			KeyID:        "k1",
			Threshold:    2,
			TotalParties: 2,
			PartyIDs:     []string{"p1", "p2"},
		})
		require.NoError(t, err)
		assert.Equal(t, key.Address, ts.reconstructAddress(t, key, []string{"p1", "p2"}))
	})

	t.Run("threshold equals total", func(t *testing.T) {
		ts := newTestSetup(t, 4, Config{})
		key, err := ts.coord.GenerateKey(ctx, GenerateKeyRequest{
			KeyID:        "k1",
			Threshold:    4,
			TotalParties: 4,
			PartyIDs:     []string{"p1", "p2", "p3", "p4"},
		})
		require.NoError(t, err)
		assert.Equal(t, key.Address, ts.reconstructAddress(t, key, []string{"p1", "p2", "p3", "p4"}))
	})

	t.Run("rejections", func(t *testing.T) {
		ts := newTestSetup(t, 3, Config{})
		tests := []struct {
			name string
			req  GenerateKeyRequest
			want error
		}{
			{
				"empty key id",
				GenerateKeyRequest{Threshold: 2, TotalParties: 3, PartyIDs: []string{"p1", "p2", "p3"}},
				ErrKeyIDRequired,
			},
			{
				"threshold below 2",
				GenerateKeyRequest{KeyID: "k1", Threshold: 1, TotalParties: 3, PartyIDs: []string{"p1", "p2", "p3"}},
				ErrInvalidThreshold,
			},
			{
				"threshold above total",
				GenerateKeyRequest{KeyID: "k1", Threshold: 4, TotalParties: 3, PartyIDs: []string{"p1", "p2", "p3"}},
				ErrThresholdTooLarge,
			},
			{
				"party list too short",
				GenerateKeyRequest{KeyID: "k1", Threshold: 2, TotalParties: 3, PartyIDs: []string{"p1", "p2"}},
				ErrPartyCountMismatch,
			},
			{
				"duplicate party",
				GenerateKeyRequest{KeyID: "k1", Threshold: 2, TotalParties: 3, PartyIDs: []string{"p1", "p2", "p2"}},
				ErrDuplicateParty,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ts.coord.GenerateKey(ctx, tt.req)
				require.ErrorIs(t, err, tt.want)
			})
		}
		// Nothing was committed by the rejected requests.
		assert.Equal(t, 0, ts.coord.KeyCount())
		assert.Equal(t, 0, ts.shares.Count("k1"))
	})
}

func TestGenerateKey_DuplicateKeyID(t *testing.T) {
	ts := newTestSetup(t, 3, Config{})
	ctx := context.Background()

	req := GenerateKeyRequest{
		KeyID:        "k1",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     []string{"p1", "p2", "p3"},
	}
	_, err := ts.coord.GenerateKey(ctx, req)
	require.NoError(t, err)

	_, err = ts.coord.GenerateKey(ctx, req)
	require.ErrorIs(t, err, ErrKeyExists)
}

func TestGenerateKey_UnknownParty(t *testing.T) {
	ts := newTestSetup(t, 2, Config{})

	_, err := ts.coord.GenerateKey(context.Background(), GenerateKeyRequest{
		KeyID:        "k1",
		Threshold:    2,
		TotalParties: 2,
		PartyIDs:     []string{"p1", "ghost"},
	})
	require.ErrorIs(t, err, registry.ErrPartyNotFound)
}

func TestGenerateKey_InactiveParty(t *testing.T) {
	ts := newTestSetup(t, 3, Config{})
	require.NoError(t, ts.registry.Deactivate("p2"))

	_, err := ts.coord.GenerateKey(context.Background(), GenerateKeyRequest{
		KeyID:        "k1",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     []string{"p1", "p2", "p3"},
	})
	require.ErrorIs(t, err, ErrPartyNotActive)
	assert.Equal(t, 0, ts.coord.KeyCount())
}

func TestGenerateKey_ReturnsIsolatedRecord(t *testing.T) {
	ts := newTestSetup(t, 3, Config{})
	ctx := context.Background()

	key, err := ts.coord.GenerateKey(ctx, GenerateKeyRequest{
		KeyID:        "k1",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     []string{"p1", "p2", "p3"},
	})
	require.NoError(t, err)

	key.PublicKey[0] = 0xff
	key.PartyShares["p1"].Commitment = "tampered"
	delete(key.PartyShares, "p2")

	fresh, err := ts.coord.GetKey("k1")
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), fresh.PublicKey[0])
	assert.Len(t, fresh.PartyShares, 3)
	assert.NotEqual(t, "tampered", fresh.PartyShares["p1"].Commitment)
}
