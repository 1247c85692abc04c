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

package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-tss/pkg/attestation"
	"github.com/jeremyhahn/go-tss/pkg/ethereum"
)

// Registry is an in-memory party registry guarded by a single lock.
type Registry struct {
	mu        sync.RWMutex
	cfg       Config
	parties   map[string]*Party
	indices   map[uint32]string
	nextIndex uint32
	verifier  *attestation.Verifier

	// nowFunc is the clock used for liveness checks
	nowFunc func() time.Time
}

// New creates a registry with the given admission policy.
func New(cfg Config) *Registry {
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}
	return &Registry{
		cfg:       cfg,
		parties:   make(map[string]*Party),
		indices:   make(map[uint32]string),
		nextIndex: 1,
		verifier:  attestation.NewVerifier(cfg.TrustedMeasurements),
		nowFunc:   time.Now,
	}
}

// Register admits a party under the registry's policy. On success the party
// is stored with status active and a fresh heartbeat, and the caller's
// struct is updated with the assigned index and derived address.
func (r *Registry) Register(p *Party) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: party id is required", ErrInvalidParty)
	}

	if err := r.checkAttestation(p); err != nil {
		return err
	}

	if r.cfg.MinPartyStake > 0 && p.Stake < r.cfg.MinPartyStake {
		return &StakeError{PartyID: p.ID, Stake: p.Stake, Minimum: r.cfg.MinPartyStake}
	}

	address := p.Address
	if len(p.PublicKey) > 0 {
		derived, err := ethereum.AddressFromUncompressed(p.PublicKey)
		if err != nil {
			return fmt.Errorf("%w: public key: %v", ErrInvalidParty, err)
		}
		if address == "" {
			address = derived
		} else if !strings.EqualFold(address, derived) {
			return fmt.Errorf("%w: address does not match public key", ErrInvalidParty)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.parties[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPartyExists, p.ID)
	}

	index := p.Index
	if index == 0 {
		index = r.nextIndex
	} else if holder, ok := r.indices[index]; ok {
		return fmt.Errorf("%w: index %d held by %s", ErrIndexInUse, index, holder)
	}

	stored := p.clone()
	stored.Index = index
	stored.Address = address
	stored.Status = StatusActive
	stored.LastSeen = r.nowFunc()

	r.parties[p.ID] = stored
	r.indices[index] = p.ID
	if index >= r.nextIndex {
		r.nextIndex = index + 1
	}

	p.Index = stored.Index
	p.Address = stored.Address
	p.Status = stored.Status
	p.LastSeen = stored.LastSeen
	return nil
}

func (r *Registry) checkAttestation(p *Party) error {
	if !r.cfg.RequireAttestation {
		return nil
	}
	if p.Attestation == nil {
		return fmt.Errorf("%w: party %s", ErrAttestationRequired, p.ID)
	}

	opts := attestation.InsecureVerifyOptions()
	if r.cfg.AttestationMaxAge > 0 {
		opts.CheckFreshness = true
		opts.FreshnessWindow = r.cfg.AttestationMaxAge
	}
	if err := r.verifier.Verify(p.Attestation, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrAttestationInvalid, err)
	}
	return nil
}

// Get returns a copy of the party record.
func (r *Registry) Get(partyID string) (*Party, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parties[partyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPartyNotFound, partyID)
	}
	return p.clone(), nil
}

// List returns copies of all registered parties ordered by index.
func (r *Registry) List() []*Party {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Party, 0, len(r.parties))
	for _, p := range r.parties {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ActiveParties returns copies of the parties that are active and whose last
// heartbeat is within the staleness window, ordered by index. This is the
// sole liveness signal; there is no push-based health check.
func (r *Registry) ActiveParties() []*Party {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.nowFunc()
	out := make([]*Party, 0, len(r.parties))
	for _, p := range r.parties {
		if r.isLiveLocked(p, now) {
			out = append(out, p.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// IsActive reports whether the party is active and live.
func (r *Registry) IsActive(partyID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parties[partyID]
	if !ok {
		return false
	}
	return r.isLiveLocked(p, r.nowFunc())
}

func (r *Registry) isLiveLocked(p *Party, now time.Time) bool {
	return p.Status == StatusActive && now.Sub(p.LastSeen) < r.cfg.StaleThreshold
}

// Heartbeat refreshes the party's liveness timestamp.
func (r *Registry) Heartbeat(partyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parties[partyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartyNotFound, partyID)
	}
	p.LastSeen = r.nowFunc()
	return nil
}

// Deactivate withdraws a party from duty. The party keeps its index and can
// be reactivated later.
func (r *Registry) Deactivate(partyID string) error {
	return r.setStatus(partyID, StatusInactive, false)
}

// Reactivate returns an inactive party to duty with a fresh heartbeat.
func (r *Registry) Reactivate(partyID string) error {
	return r.setStatus(partyID, StatusActive, true)
}

// Slash permanently ejects a party for misbehavior.
func (r *Registry) Slash(partyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parties[partyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartyNotFound, partyID)
	}
	p.Status = StatusSlashed
	return nil
}

func (r *Registry) setStatus(partyID string, status PartyStatus, touch bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parties[partyID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPartyNotFound, partyID)
	}
	if p.Status == StatusSlashed {
		return fmt.Errorf("%w: %s", ErrPartySlashed, partyID)
	}
	p.Status = status
	if touch {
		p.LastSeen = r.nowFunc()
	}
	return nil
}

// Count returns the number of registered parties.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parties)
}
