//go:build integration

// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tss.

package signing_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-tss/internal/config"
	"github.com/jeremyhahn/go-tss/pkg/coordinator"
	"github.com/jeremyhahn/go-tss/pkg/ethereum"
	"github.com/jeremyhahn/go-tss/pkg/registry"
	"github.com/jeremyhahn/go-tss/pkg/signer"
	"github.com/jeremyhahn/go-tss/pkg/versioning"
)

// newIntegrationService builds a devnet service and cleans it up with the test.
func newIntegrationService(t *testing.T, cfg signer.Config) *signer.Service {
	t.Helper()
	svc, err := signer.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, svc.Shutdown(context.Background()))
	})
	return svc
}

// registerParties registers n parties with freshly generated secp256k1 keys
// and returns their ids in registration order.
func registerParties(t *testing.T, svc *signer.Service, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		priv, err := secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		ids[i] = fmt.Sprintf("party-%d", i+1)
		require.NoError(t, svc.RegisterParty(&registry.Party{
			ID:        ids[i],
			Endpoint:  fmt.Sprintf("https://party-%d.example.com:8443", i+1),
			PublicKey: priv.PubKey().SerializeUncompressed(),
			Stake:     1_000_000,
		}))
	}
	return ids
}

// recoveredAddress runs public-key recovery over the signature and returns
// the Ethereum address of the signer.
func recoveredAddress(t *testing.T, sig *coordinator.Signature, hash []byte) string {
	t.Helper()
	compact := make([]byte, 65)
	compact[0] = sig.V
	copy(compact[1:], sig.Bytes[:64])
	pub, compressed, err := ecdsa.RecoverCompact(compact, hash)
	require.NoError(t, err)
	require.False(t, compressed)
	return ethereum.PubkeyToAddress(pub)
}

// TestLifecycle drives one key through its whole life against the public
// service API: generation, message and typed-data signing, share rotation,
// revocation, and shutdown.
func TestLifecycle(t *testing.T) {
	svc, err := signer.New(signer.Config{Tier: signer.TierDevnet})
	require.NoError(t, err)
	ctx := context.Background()
	parties := registerParties(t, svc, 3)

	key, err := svc.GenerateKey(ctx, signer.GenerateKeyRequest{
		KeyID:        "treasury",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     parties,
	})
	require.NoError(t, err)
	require.Len(t, key.Address, 42)

	hash := ethereum.Keccak256([]byte("integration transfer 1"))
	sig, err := svc.Sign(ctx, signer.SignRequest{
		KeyID:       "treasury",
		MessageHash: hash,
		Requester:   "integration",
	})
	require.NoError(t, err)
	assert.Equal(t, key.Address, recoveredAddress(t, sig, hash))

	typed := &ethereum.TypedData{
		Types: map[string][]ethereum.TypedDataField{
			"Transfer": {
				{Name: "to", Type: "address"},
				{Name: "amount", Type: "uint256"},
			},
		},
		PrimaryType: "Transfer",
		Domain:      ethereum.TypedDataDomain{Name: "Treasury", Version: "1", ChainID: 1},
		Message: map[string]any{
			"to":     "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
			"amount": uint64(42),
		},
	}
	typedSig, err := svc.SignTypedData(ctx, signer.TypedDataRequest{
		KeyID:     "treasury",
		TypedData: typed,
		Requester: "integration",
	})
	require.NoError(t, err)
	digest, err := ethereum.HashTypedData(typed)
	require.NoError(t, err)
	assert.Equal(t, key.Address, recoveredAddress(t, typedSig, digest))

	rotated, err := svc.RotateKey(ctx, signer.RotateKeyRequest{KeyID: "treasury"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rotated.Version)
	assert.Equal(t, key.Address, rotated.Address)

	hash = ethereum.Keccak256([]byte("integration transfer 2"))
	sig, err = svc.Sign(ctx, signer.SignRequest{
		KeyID:       "treasury",
		MessageHash: hash,
		Requester:   "integration",
	})
	require.NoError(t, err)
	assert.Equal(t, key.Address, recoveredAddress(t, sig, hash))

	versions, err := svc.KeyVersions(ctx, "treasury")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, versioning.StatusRotated, versions[0].Status)
	assert.Equal(t, versioning.StatusActive, versions[1].Status)

	require.NoError(t, svc.RevokeKey(ctx, "treasury"))
	_, err = svc.GetKey("treasury")
	require.ErrorIs(t, err, coordinator.ErrKeyNotFound)
	versions, err = svc.KeyVersions(ctx, "treasury")
	require.NoError(t, err)
	assert.Equal(t, versioning.StatusRevoked, versions[1].Status)

	require.NoError(t, svc.Shutdown(ctx))
	require.NoError(t, svc.Shutdown(ctx))
	_, err = svc.Sign(ctx, signer.SignRequest{KeyID: "treasury", MessageHash: hash})
	require.ErrorIs(t, err, signer.ErrServiceClosed)
}

// TestFileConfigDrivesPolicy loads service settings from a YAML file, checks
// the tier floor it selects, then checks the environment override path.
func TestFileConfigDrivesPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tss.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  tier: mainnet
registry:
  min_party_stake: 1000
sessions:
  timeout_secs: 60
  max_sessions: 100
  max_concurrent: 10
`), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "mainnet", cfg.Service.Tier)

	svc := newIntegrationService(t, serviceConfig(cfg))
	parties := registerParties(t, svc, 5)
	ctx := context.Background()

	// The mainnet floor is 3-of-5.
	_, err = svc.GenerateKey(ctx, signer.GenerateKeyRequest{
		KeyID:        "below-floor",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     parties[:3],
	})
	require.ErrorIs(t, err, signer.ErrPolicyFloor)

	key, err := svc.GenerateKey(ctx, signer.GenerateKeyRequest{
		KeyID:        "at-floor",
		Threshold:    3,
		TotalParties: 5,
		PartyIDs:     parties,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, key.Threshold)

	// Environment override relaxes the tier for the next load.
	t.Setenv("GOTSS_TIER", "devnet")
	cfg, err = config.Load(path)
	require.NoError(t, err)
	devnetSvc := newIntegrationService(t, serviceConfig(cfg))
	devnetParties := registerParties(t, devnetSvc, 3)

	_, err = devnetSvc.GenerateKey(ctx, signer.GenerateKeyRequest{
		KeyID:        "below-floor",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     devnetParties,
	})
	require.NoError(t, err)
}

// serviceConfig maps the file config onto the service configuration.
func serviceConfig(cfg *config.Config) signer.Config {
	return signer.Config{
		Tier: cfg.Service.Tier,
		Registry: registry.Config{
			RequireAttestation:  cfg.Registry.RequireAttestation,
			TrustedMeasurements: cfg.Registry.TrustedMeasurements,
			AttestationMaxAge:   cfg.Registry.AttestationMaxAge(),
			MinPartyStake:       cfg.Registry.MinPartyStake,
			StaleThreshold:      cfg.Registry.StaleThreshold(),
		},
		SessionTimeout:        cfg.Sessions.Timeout(),
		MaxSessions:           cfg.Sessions.MaxSessions,
		MaxConcurrentSessions: cfg.Sessions.MaxConcurrent,
		RotationInterval:      cfg.Rotation.Interval(),
	}
}

// TestConcurrentSigning signs distinct messages from concurrent requesters
// against one key and verifies every signature recovers the group address.
func TestConcurrentSigning(t *testing.T) {
	svc := newIntegrationService(t, signer.Config{
		Tier:                  signer.TierDevnet,
		MaxConcurrentSessions: 16,
	})
	ctx := context.Background()
	parties := registerParties(t, svc, 3)

	key, err := svc.GenerateKey(ctx, signer.GenerateKeyRequest{
		KeyID:        "shared",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     parties,
	})
	require.NoError(t, err)

	const signers = 8
	var wg sync.WaitGroup
	errs := make([]error, signers)
	addrs := make([]string, signers)
	for i := 0; i < signers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hash := ethereum.Keccak256([]byte(fmt.Sprintf("concurrent message %d", i)))
			sig, err := svc.Sign(ctx, signer.SignRequest{
				KeyID:       "shared",
				MessageHash: hash,
				Requester:   fmt.Sprintf("requester-%d", i),
			})
			if err != nil {
				errs[i] = err
				return
			}
			compact := make([]byte, 65)
			compact[0] = sig.V
			copy(compact[1:], sig.Bytes[:64])
			pub, _, err := ecdsa.RecoverCompact(compact, hash)
			if err != nil {
				errs[i] = err
				return
			}
			addrs[i] = ethereum.PubkeyToAddress(pub)
		}(i)
	}
	wg.Wait()

	for i := 0; i < signers; i++ {
		require.NoError(t, errs[i], "signer %d", i)
		assert.Equal(t, key.Address, addrs[i], "signer %d", i)
	}
}

// TestMultiKeyIsolation manages two keys over overlapping party sets and
// checks that revoking one leaves the other signing.
func TestMultiKeyIsolation(t *testing.T) {
	svc := newIntegrationService(t, signer.Config{Tier: signer.TierDevnet})
	ctx := context.Background()
	parties := registerParties(t, svc, 4)

	keyA, err := svc.GenerateKey(ctx, signer.GenerateKeyRequest{
		KeyID:        "key-a",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     parties[:3],
	})
	require.NoError(t, err)
	keyB, err := svc.GenerateKey(ctx, signer.GenerateKeyRequest{
		KeyID:        "key-b",
		Threshold:    2,
		TotalParties: 3,
		PartyIDs:     parties[1:],
	})
	require.NoError(t, err)
	require.NotEqual(t, keyA.Address, keyB.Address)
	assert.Equal(t, []string{"key-a", "key-b"}, svc.ListKeys())

	require.NoError(t, svc.RevokeKey(ctx, "key-a"))
	assert.Equal(t, []string{"key-b"}, svc.ListKeys())

	hash := ethereum.Keccak256([]byte("post-revocation"))
	sig, err := svc.Sign(ctx, signer.SignRequest{
		KeyID:       "key-b",
		MessageHash: hash,
		Requester:   "integration",
	})
	require.NoError(t, err)
	assert.Equal(t, keyB.Address, recoveredAddress(t, sig, hash))

	_, err = svc.Sign(ctx, signer.SignRequest{
		KeyID:       "key-a",
		MessageHash: hash,
		Requester:   "integration",
	})
	require.ErrorIs(t, err, coordinator.ErrKeyNotFound)
}
