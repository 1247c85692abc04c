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

// Package coordinator implements the key lifecycle and signing session state
// machine for threshold signing: distributed key generation, commit/reveal
// signing sessions with Lagrange aggregation, proactive share rotation, and
// key revocation.
//
// A Coordinator is the unit of concurrency. All key records, sessions, and
// share handles it owns are guarded by a single mutex, so every round
// transition and share replacement executes as one critical section.
package coordinator

import (
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-tss/pkg/logging"
	"github.com/jeremyhahn/go-tss/pkg/registry"
	"github.com/jeremyhahn/go-tss/pkg/threshold"
	"github.com/jeremyhahn/go-tss/pkg/versioning"
)

const (
	// DefaultSessionTimeout is the default signing session expiry window.
	DefaultSessionTimeout = 5 * time.Minute

	// DefaultMaxSessions is the default session table ceiling.
	DefaultMaxSessions = 1000

	// DefaultMaxConcurrentSessions is the default ceiling on sessions in a
	// non-terminal state.
	DefaultMaxConcurrentSessions = 10
)

// Config holds coordinator tunables. Zero values select the defaults.
type Config struct {
	// SessionTimeout is the absolute expiry window for signing sessions.
	SessionTimeout time.Duration

	// MaxSessions caps the session table, counting terminal sessions that
	// have not yet been swept.
	MaxSessions int

	// MaxConcurrentSessions caps sessions in the pending or signing state.
	MaxConcurrentSessions int
}

func (c *Config) applyDefaults() {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = DefaultSessionTimeout
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
	if c.MaxConcurrentSessions <= 0 {
		c.MaxConcurrentSessions = DefaultMaxConcurrentSessions
	}
}

// KeyRecord is the public record of a managed threshold key. The raw share
// scalars live only in the coordinator's share store.
type KeyRecord struct {
	KeyID        string
	PublicKey    []byte // 65-byte uncompressed group public key
	Address      string
	Threshold    int
	TotalParties int
	PartyShares  map[string]*ShareMetadata
	Version      uint64
	CreatedAt    time.Time
}

// ShareMetadata records the public facts about one party's share.
type ShareMetadata struct {
	PartyID     string
	PartyIndex  uint32
	Commitment  string // hex SHA-256 of the share scalar bytes
	PublicShare string // hex uncompressed share*G
	Version     uint64
}

func (k *KeyRecord) clone() *KeyRecord {
	cp := *k
	cp.PublicKey = append([]byte(nil), k.PublicKey...)
	cp.PartyShares = make(map[string]*ShareMetadata, len(k.PartyShares))
	for id, meta := range k.PartyShares {
		mc := *meta
		cp.PartyShares[id] = &mc
	}
	return &cp
}

// participantOrder returns the key's party ids sorted by party index.
func (k *KeyRecord) participantOrder() []string {
	ids := make([]string, 0, len(k.PartyShares))
	for id := range k.PartyShares {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return k.PartyShares[ids[i]].PartyIndex < k.PartyShares[ids[j]].PartyIndex
	})
	return ids
}

// Coordinator owns the key records, share store, and signing sessions for
// the keys it manages.
type Coordinator struct {
	mu       sync.Mutex
	cfg      Config
	registry *registry.Registry
	shares   *threshold.ShareStore
	versions versioning.VersionStore
	keys     map[string]*KeyRecord
	sessions map[string]*SigningSession
	logger   *logging.Logger
	nowFunc  func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithShareStore sets the share store. Useful when several coordinators
// share one store, or when a test needs to inspect erasure.
func WithShareStore(store *threshold.ShareStore) Option {
	return func(c *Coordinator) {
		c.shares = store
	}
}

// WithVersionStore sets the key version history store.
func WithVersionStore(store versioning.VersionStore) Option {
	return func(c *Coordinator) {
		c.versions = store
	}
}

// New creates a Coordinator backed by the given party registry.
func New(cfg Config, reg *registry.Registry, opts ...Option) (*Coordinator, error) {
	if reg == nil {
		return nil, ErrRegistryRequired
	}
	cfg.applyDefaults()
	c := &Coordinator{
		cfg:      cfg,
		registry: reg,
		keys:     make(map[string]*KeyRecord),
		sessions: make(map[string]*SigningSession),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shares == nil {
		c.shares = threshold.NewShareStore()
	}
	if c.versions == nil {
		c.versions = versioning.NewMemoryVersionStore()
	}
	if c.logger == nil {
		c.logger = logging.DefaultLogger().WithComponent("coordinator")
	}
	return c, nil
}

// GetKey returns a copy of the record for keyID.
func (c *Coordinator) GetKey(keyID string) (*KeyRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.keys[keyID]
	if !ok {
		return nil, keyNotFound(keyID)
	}
	return key.clone(), nil
}

// ListKeys returns the managed key ids in sorted order.
func (c *Coordinator) ListKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.keys))
	for id := range c.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// KeyCount returns the number of managed keys.
func (c *Coordinator) KeyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
