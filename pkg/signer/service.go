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

// Package signer is the orchestration layer over the threshold signing
// core. A Service owns one coordinator per key, applies the network tier's
// policy floor to quorum shapes, schedules proactive share rotations, rate
// limits signing requests per requester, and tears everything down with
// best-effort share erasure on shutdown.
package signer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-tss/pkg/coordinator"
	"github.com/jeremyhahn/go-tss/pkg/logging"
	"github.com/jeremyhahn/go-tss/pkg/metrics"
	"github.com/jeremyhahn/go-tss/pkg/ratelimit"
	"github.com/jeremyhahn/go-tss/pkg/registry"
	"github.com/jeremyhahn/go-tss/pkg/versioning"
)

// DefaultRotationInterval is the auto-rotation period when a key opts in
// without naming one.
const DefaultRotationInterval = 24 * time.Hour

// Config holds service-level settings. Zero values fall back to devnet
// policy, coordinator defaults, and a disabled rate limiter.
type Config struct {
	// Tier selects the policy floor: devnet, testnet, or mainnet.
	// Empty means devnet.
	Tier string

	// Floor overrides the tier's default floor when non-nil.
	Floor *PolicyFloor

	// Registry is the admission policy for the party registry the service
	// creates. Ignored when WithRegistry supplies one.
	Registry registry.Config

	// SessionTimeout, MaxSessions, and MaxConcurrentSessions are handed to
	// every per-key coordinator.
	SessionTimeout        time.Duration
	MaxSessions           int
	MaxConcurrentSessions int

	// RotationInterval is the default auto-rotation period.
	RotationInterval time.Duration

	// RateLimit configures per-requester signing limits. Nil disables
	// limiting.
	RateLimit *ratelimit.Config
}

// Service orchestrates threshold keys. All methods are safe for concurrent
// use.
type Service struct {
	cfg      Config
	tier     string
	floor    PolicyFloor
	registry *registry.Registry
	versions versioning.VersionStore
	limiter  *ratelimit.Limiter
	logger   *logging.Logger

	mu           sync.Mutex
	coordinators map[string]*coordinator.Coordinator
	timers       map[string]*time.Timer
	closed       bool

	// ownVersions marks a store the service created and must close.
	ownVersions bool
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRegistry shares an existing party registry instead of creating one
// from Config.Registry.
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Service) { s.registry = reg }
}

// WithVersionStore sets the version history store shared by every key.
func WithVersionStore(store versioning.VersionStore) Option {
	return func(s *Service) { s.versions = store }
}

// New constructs a Service. No package-level state is touched; two services
// in one process are fully independent.
func New(cfg Config, opts ...Option) (*Service, error) {
	floor, err := FloorForTier(cfg.Tier)
	if err != nil {
		return nil, err
	}
	tier := cfg.Tier
	if tier == "" {
		tier = TierDevnet
	}
	if cfg.Floor != nil {
		floor = *cfg.Floor
	}
	if cfg.RotationInterval <= 0 {
		cfg.RotationInterval = DefaultRotationInterval
	}

	s := &Service{
		cfg:          cfg,
		tier:         tier,
		floor:        floor,
		coordinators: make(map[string]*coordinator.Coordinator),
		timers:       make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.DefaultLogger().WithComponent("signer")
	}
	if s.registry == nil {
		s.registry = registry.New(cfg.Registry)
	}
	if s.versions == nil {
		s.versions = versioning.NewMemoryVersionStore()
		s.ownVersions = true
	}
	s.limiter = ratelimit.New(cfg.RateLimit)

	s.logger.Info("signing service ready",
		"tier", tier,
		"min_threshold", floor.MinThreshold,
		"min_parties", floor.MinParties,
		"enforce_floor", floor.Enforce,
		"rate_limited", s.limiter.IsEnabled())

	return s, nil
}

// Registry exposes the party registry for registration, heartbeats, and
// status changes.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// RegisterParty admits a party through the service's registry and refreshes
// the party gauge.
func (s *Service) RegisterParty(p *registry.Party) error {
	start := time.Now()
	if err := s.registry.Register(p); err != nil {
		metrics.RecordError(metrics.OpRegisterParty, errorKind(err))
		metrics.RecordOperation(metrics.OpRegisterParty, metrics.StatusError, time.Since(start).Seconds())
		return err
	}
	metrics.SetPartiesTotal(string(registry.StatusActive), float64(len(s.registry.ActiveParties())))
	metrics.RecordOperation(metrics.OpRegisterParty, metrics.StatusSuccess, time.Since(start).Seconds())
	return nil
}

// GenerateKeyRequest describes a new threshold key. AutoRotate schedules a
// periodic share rotation; RotationInterval of zero uses the service
// default.
type GenerateKeyRequest struct {
	KeyID            string
	Threshold        int
	TotalParties     int
	PartyIDs         []string
	AutoRotate       bool
	RotationInterval time.Duration
}

// GenerateKey checks the policy floor, creates the key's coordinator, and
// runs key generation on it.
func (s *Service) GenerateKey(ctx context.Context, req GenerateKeyRequest) (*coordinator.KeyRecord, error) {
	start := time.Now()
	key, err := s.generateKey(ctx, req)
	if err != nil {
		metrics.RecordError(metrics.OpGenerateKey, errorKind(err))
		metrics.RecordOperation(metrics.OpGenerateKey, metrics.StatusError, time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordOperation(metrics.OpGenerateKey, metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

func (s *Service) generateKey(ctx context.Context, req GenerateKeyRequest) (*coordinator.KeyRecord, error) {
	if err := s.checkFloor(req.Threshold, req.TotalParties); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	if _, exists := s.coordinators[req.KeyID]; exists {
		return nil, fmt.Errorf("%w: %s", coordinator.ErrKeyExists, req.KeyID)
	}

	coord, err := coordinator.New(coordinator.Config{
		SessionTimeout:        s.cfg.SessionTimeout,
		MaxSessions:           s.cfg.MaxSessions,
		MaxConcurrentSessions: s.cfg.MaxConcurrentSessions,
	}, s.registry,
		coordinator.WithLogger(s.logger.WithComponent("coordinator").With("key_id", req.KeyID)),
		coordinator.WithVersionStore(s.versions))
	if err != nil {
		return nil, err
	}

	key, err := coord.GenerateKey(ctx, coordinator.GenerateKeyRequest{
		KeyID:        req.KeyID,
		Threshold:    req.Threshold,
		TotalParties: req.TotalParties,
		PartyIDs:     req.PartyIDs,
	})
	if err != nil {
		return nil, err
	}
	s.coordinators[req.KeyID] = coord
	metrics.SetKeysTotal(float64(len(s.coordinators)))

	if req.AutoRotate {
		interval := req.RotationInterval
		if interval <= 0 {
			interval = s.cfg.RotationInterval
		}
		s.scheduleRotationLocked(req.KeyID, interval)
		s.logger.Info("scheduled auto rotation", "key_id", req.KeyID, "interval", interval)
	}

	return key, nil
}

// checkFloor applies the tier policy to a requested quorum shape. In warn
// mode the violation is logged and the request proceeds.
func (s *Service) checkFloor(threshold, totalParties int) error {
	if !s.floor.violates(threshold, totalParties) {
		return nil
	}
	if !s.floor.Enforce {
		s.logger.Warn("quorum below policy floor",
			"tier", s.tier,
			"threshold", threshold,
			"parties", totalParties,
			"min_threshold", s.floor.MinThreshold,
			"min_parties", s.floor.MinParties)
		return nil
	}
	return &PolicyFloorError{
		Tier:         s.tier,
		MinThreshold: s.floor.MinThreshold,
		MinParties:   s.floor.MinParties,
		Threshold:    threshold,
		TotalParties: totalParties,
	}
}

// RotateKeyRequest re-shapes or refreshes a key's shares. Zero values keep
// the current threshold and party set.
type RotateKeyRequest struct {
	KeyID        string
	NewThreshold int
	NewParties   []string
}

// RotateKey rotates the key's shares, re-checking the policy floor against
// the effective post-rotation quorum shape.
func (s *Service) RotateKey(ctx context.Context, req RotateKeyRequest) (*coordinator.KeyRecord, error) {
	start := time.Now()
	key, err := s.rotateKey(ctx, req)
	if err != nil {
		metrics.RecordRotation(metrics.StatusError)
		metrics.RecordError(metrics.OpRotate, errorKind(err))
		metrics.RecordOperation(metrics.OpRotate, metrics.StatusError, time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordRotation(metrics.StatusSuccess)
	metrics.RecordOperation(metrics.OpRotate, metrics.StatusSuccess, time.Since(start).Seconds())
	return key, nil
}

func (s *Service) rotateKey(ctx context.Context, req RotateKeyRequest) (*coordinator.KeyRecord, error) {
	coord, err := s.coordinatorFor(req.KeyID)
	if err != nil {
		return nil, err
	}

	current, err := coord.GetKey(req.KeyID)
	if err != nil {
		return nil, err
	}
	threshold := req.NewThreshold
	if threshold == 0 {
		threshold = current.Threshold
	}
	totalParties := len(req.NewParties)
	if req.NewParties == nil {
		totalParties = current.TotalParties
	}
	if err := s.checkFloor(threshold, totalParties); err != nil {
		return nil, err
	}

	return coord.RotateKey(ctx, coordinator.RotateKeyRequest{
		KeyID:        req.KeyID,
		NewThreshold: req.NewThreshold,
		NewParties:   req.NewParties,
	})
}

// RevokeKey cancels the key's rotation timer, erases every share through
// the coordinator, and drops the key from the service. The timer is stopped
// strictly before erasure so a scheduled rotation can never run against
// erased shares.
func (s *Service) RevokeKey(ctx context.Context, keyID string) error {
	start := time.Now()
	if err := s.revokeKey(ctx, keyID); err != nil {
		metrics.RecordError(metrics.OpRevoke, errorKind(err))
		metrics.RecordOperation(metrics.OpRevoke, metrics.StatusError, time.Since(start).Seconds())
		return err
	}
	metrics.RecordOperation(metrics.OpRevoke, metrics.StatusSuccess, time.Since(start).Seconds())
	return nil
}

func (s *Service) revokeKey(ctx context.Context, keyID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServiceClosed
	}
	coord, ok := s.coordinators[keyID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", coordinator.ErrKeyNotFound, keyID)
	}
	if timer, armed := s.timers[keyID]; armed {
		timer.Stop()
		delete(s.timers, keyID)
	}
	delete(s.coordinators, keyID)
	metrics.SetKeysTotal(float64(len(s.coordinators)))
	s.mu.Unlock()

	return coord.RevokeKey(ctx, keyID)
}

// Shutdown cancels every rotation timer, revokes every key so its shares
// are erased, and releases the rate limiter and version store. It is
// idempotent, and the service accepts no work afterwards. Call it before
// process exit; skipping it leaves share material to the garbage collector.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	coords := s.coordinators
	timers := s.timers
	s.coordinators = make(map[string]*coordinator.Coordinator)
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	for keyID, coord := range coords {
		if err := coord.RevokeKey(ctx, keyID); err != nil {
			s.logger.Error(err, "key_id", keyID)
		}
	}
	s.limiter.Stop()
	metrics.SetKeysTotal(0)

	var err error
	if s.ownVersions {
		err = s.versions.Close()
	}
	s.logger.Info("signing service shut down", "keys_revoked", len(coords))
	return err
}

// GetKey returns the key's current record.
func (s *Service) GetKey(keyID string) (*coordinator.KeyRecord, error) {
	coord, err := s.coordinatorFor(keyID)
	if err != nil {
		return nil, err
	}
	return coord.GetKey(keyID)
}

// ListKeys returns the managed key IDs in sorted order.
func (s *Service) ListKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.coordinators))
	for id := range s.coordinators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// KeyVersions returns the key's full version history, including rotated and
// revoked versions. History survives revocation.
func (s *Service) KeyVersions(ctx context.Context, keyID string) ([]*versioning.KeyVersion, error) {
	return s.versions.ListVersions(ctx, keyID)
}

func (s *Service) coordinatorFor(keyID string) (*coordinator.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	coord, ok := s.coordinators[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", coordinator.ErrKeyNotFound, keyID)
	}
	return coord, nil
}

// scheduleRotationLocked arms the key's rotation timer. Callers hold s.mu.
func (s *Service) scheduleRotationLocked(keyID string, interval time.Duration) {
	s.timers[keyID] = time.AfterFunc(interval, func() {
		s.autoRotate(keyID, interval)
	})
}

// autoRotate runs one scheduled rotation and re-arms the timer. It backs
// off silently if the key was revoked or the service shut down after the
// timer fired.
func (s *Service) autoRotate(keyID string, interval time.Duration) {
	s.mu.Lock()
	coord, ok := s.coordinators[keyID]
	if s.closed || !ok {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if _, err := coord.RotateKey(context.Background(), coordinator.RotateKeyRequest{KeyID: keyID}); err != nil {
		metrics.RecordRotation(metrics.StatusError)
		s.logger.Error(err, "key_id", keyID, "rotation", "auto")
	} else {
		metrics.RecordRotation(metrics.StatusSuccess)
		s.logger.Info("auto-rotated key shares", "key_id", keyID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, tracked := s.timers[keyID]; !tracked {
		// Revoked while the rotation ran.
		return
	}
	s.scheduleRotationLocked(keyID, interval)
}
