// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tss.

package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tss/pkg/ethereum"
	"github.com/jeremyhahn/go-tss/pkg/registry"
	"github.com/jeremyhahn/go-tss/pkg/threshold"
	"github.com/jeremyhahn/go-tss/pkg/versioning"
)

// testSetup bundles a coordinator with the collaborators tests inspect.
type testSetup struct {
	coord    *Coordinator
	registry *registry.Registry
	shares   *threshold.ShareStore
	versions versioning.VersionStore
}

// newTestSetup registers n active parties p1..pn and returns a coordinator
// over them. Party indices are assigned sequentially from 1.
func newTestSetup(t *testing.T, n int, cfg Config) *testSetup {
	t.Helper()
	reg := registry.New(registry.Config{})
	for i := 1; i <= n; i++ {
		priv := secp256k1.PrivKeyFromBytes([]byte{byte(i)})
		party := &registry.Party{
			ID:        fmt.Sprintf("p%d", i),
			Endpoint:  fmt.Sprintf("https://party-%d.example.com:8443", i),
			PublicKey: priv.PubKey().SerializeUncompressed(),
			Stake:     1000,
		}
		require.NoError(t, reg.Register(party))
	}

	shares := threshold.NewShareStore()
	versions := versioning.NewMemoryVersionStore()
	coord, err := New(cfg, reg, WithShareStore(shares), WithVersionStore(versions))
	require.NoError(t, err)

	return &testSetup{
		coord:    coord,
		registry: reg,
		shares:   shares,
		versions: versions,
	}
}

// reconstructAddress interpolates the stored shares of the given parties at
// zero and returns the address of the resulting secret.
func (ts *testSetup) reconstructAddress(t *testing.T, key *KeyRecord, partyIDs []string) string {
	t.Helper()
	shares := make(map[uint32]*threshold.SecureScalar, len(partyIDs))
	for _, id := range partyIDs {
		share, ok := ts.shares.Get(key.KeyID, id)
		require.True(t, ok, "missing share for %s", id)
		shares[key.PartyShares[id].PartyIndex] = share
	}
	secret, err := threshold.CombineShares(shares)
	require.NoError(t, err)
	defer secret.Zeroize()
	pub, err := secret.PublicPoint()
	require.NoError(t, err)
	return ethereum.PubkeyToAddress(pub)
}

// subsets returns every size-k combination of ids.
func subsets(ids []string, k int) [][]string {
	var out [][]string
	var walk func(start int, cur []string)
	walk = func(start int, cur []string) {
		if len(cur) == k {
			out = append(out, append([]string(nil), cur...))
			return
		}
		for i := start; i < len(ids); i++ {
			walk(i+1, append(cur, ids[i]))
		}
	}
	walk(0, nil)
	return out
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Config{}, nil)
	require.ErrorIs(t, err, ErrRegistryRequired)
}

func TestNew_AppliesDefaults(t *testing.T) {
	ts := newTestSetup(t, 2, Config{})
	require.Equal(t, DefaultSessionTimeout, ts.coord.cfg.SessionTimeout)
	require.Equal(t, DefaultMaxSessions, ts.coord.cfg.MaxSessions)
	require.Equal(t, DefaultMaxConcurrentSessions, ts.coord.cfg.MaxConcurrentSessions)
}

func TestGetKey_Unknown(t *testing.T) {
	ts := newTestSetup(t, 2, Config{})
	_, err := ts.coord.GetKey("ghost")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestListKeys_Sorted(t *testing.T) {
	ts := newTestSetup(t, 3, Config{})
	ctx := context.Background()

	for _, keyID := range []string{"zeta", "alpha", "mid"} {
		_, err := ts.coord.GenerateKey(ctx, GenerateKeyRequest{
			KeyID:        keyID,
			Threshold:    2,
			TotalParties: 3,
			PartyIDs:     []string{"p1", "p2", "p3"},
		})
		require.NoError(t, err)
	}

	require.Equal(t, []string{"alpha", "mid", "zeta"}, ts.coord.ListKeys())
	require.Equal(t, 3, ts.coord.KeyCount())
}
