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

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Network tiers. The tier selects the default policy floor applied to
// key generation requests.
const (
	TierDevnet  = "devnet"
	TierTestnet = "testnet"
	TierMainnet = "mainnet"
)

// Config represents the complete service configuration
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Policy    PolicyConfig    `yaml:"policy"`
	Registry  RegistryConfig  `yaml:"registry"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Rotation  RotationConfig  `yaml:"rotation"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServiceConfig contains service-level settings
type ServiceConfig struct {
	Tier string `yaml:"tier"` // devnet, testnet, mainnet
}

// PolicyConfig overrides the tier's default policy floor. Zero values
// mean "use the tier default".
type PolicyConfig struct {
	MinThreshold int `yaml:"min_threshold"`
	MinParties   int `yaml:"min_parties"`

	// Enforce controls whether sub-floor requests are rejected (true)
	// or logged and allowed through (false). Unset means true.
	Enforce *bool `yaml:"enforce,omitempty"`
}

// RegistryConfig controls party admission and liveness
type RegistryConfig struct {
	RequireAttestation    bool     `yaml:"require_attestation"`
	TrustedMeasurements   []string `yaml:"trusted_measurements,omitempty"`
	AttestationMaxAgeSecs int      `yaml:"attestation_max_age_secs"` // 0 disables the freshness check
	MinPartyStake         uint64   `yaml:"min_party_stake"`
	StaleThresholdSecs    int      `yaml:"stale_threshold_secs"`
}

// SessionsConfig controls signing session limits and expiry
type SessionsConfig struct {
	TimeoutSecs   int `yaml:"timeout_secs"`
	MaxSessions   int `yaml:"max_sessions"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

// RotationConfig controls the auto-rotation interval for keys that
// request it at generation time
type RotationConfig struct {
	IntervalSecs int `yaml:"interval_secs"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RateLimitConfig controls per-requester rate limiting of signing requests
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	Burst          int  `yaml:"burst"`
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	Enabled              bool `yaml:"enabled"`
	ResourceIntervalSecs int  `yaml:"resource_interval_secs"`
}

// AttestationMaxAge returns the attestation freshness window.
func (c RegistryConfig) AttestationMaxAge() time.Duration {
	return time.Duration(c.AttestationMaxAgeSecs) * time.Second
}

// StaleThreshold returns the liveness window for active parties.
func (c RegistryConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdSecs) * time.Second
}

// Timeout returns the session expiry window.
func (c SessionsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Interval returns the auto-rotation period.
func (c RotationConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// ResourceInterval returns the resource metrics collection period.
func (c MetricsConfig) ResourceInterval() time.Duration {
	return time.Duration(c.ResourceIntervalSecs) * time.Second
}

// EnforceFloor reports whether sub-floor requests are rejected.
func (c PolicyConfig) EnforceFloor() bool {
	return c.Enforce == nil || *c.Enforce
}

// Default returns a fully defaulted devnet configuration.
func Default() *Config {
	enforce := true
	return &Config{
		Service: ServiceConfig{Tier: TierDevnet},
		Policy:  PolicyConfig{Enforce: &enforce},
		Registry: RegistryConfig{
			StaleThresholdSecs: 300,
		},
		Sessions: SessionsConfig{
			TimeoutSecs:   300,
			MaxSessions:   1000,
			MaxConcurrent: 10,
		},
		Rotation: RotationConfig{IntervalSecs: 86400},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		RateLimit: RateLimitConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Enabled:              true,
			ResourceIntervalSecs: 15,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if tier := os.Getenv("GOTSS_TIER"); tier != "" {
		cfg.Service.Tier = tier
	}
	if level := os.Getenv("GOTSS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("GOTSS_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	envInt("GOTSS_MIN_THRESHOLD", &cfg.Policy.MinThreshold)
	envInt("GOTSS_MIN_PARTIES", &cfg.Policy.MinParties)
	if raw := os.Getenv("GOTSS_ENFORCE_FLOOR"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			log.Printf("Warning: invalid GOTSS_ENFORCE_FLOOR value %q, keeping current setting: %v", raw, err)
		} else {
			cfg.Policy.Enforce = &v
		}
	}

	envBool("GOTSS_REQUIRE_ATTESTATION", &cfg.Registry.RequireAttestation)
	envUint64("GOTSS_MIN_PARTY_STAKE", &cfg.Registry.MinPartyStake)
	envInt("GOTSS_ATTESTATION_MAX_AGE_SECS", &cfg.Registry.AttestationMaxAgeSecs)
	envInt("GOTSS_STALE_THRESHOLD_SECS", &cfg.Registry.StaleThresholdSecs)

	envInt("GOTSS_SESSION_TIMEOUT_SECS", &cfg.Sessions.TimeoutSecs)
	envInt("GOTSS_MAX_SESSIONS", &cfg.Sessions.MaxSessions)
	envInt("GOTSS_MAX_CONCURRENT_SESSIONS", &cfg.Sessions.MaxConcurrent)

	envInt("GOTSS_ROTATION_INTERVAL_SECS", &cfg.Rotation.IntervalSecs)

	envBool("GOTSS_RATELIMIT_ENABLED", &cfg.RateLimit.Enabled)
	envInt("GOTSS_REQUESTS_PER_MIN", &cfg.RateLimit.RequestsPerMin)

	envBool("GOTSS_METRICS_ENABLED", &cfg.Metrics.Enabled)
}

func envInt(name string, target *int) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using default %d: %v", name, raw, *target, err)
		return
	}
	*target = v
}

func envBool(name string, target *bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using default %t: %v", name, raw, *target, err)
		return
	}
	*target = v
}

func envUint64(name string, target *uint64) {
	raw := os.Getenv(name)
	if raw == "" {
		return
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using default %d: %v", name, raw, *target, err)
		return
	}
	*target = v
}

// Validate checks the configuration and fills defaults for unset fields
func (c *Config) Validate() error {
	// Tier
	if c.Service.Tier == "" {
		c.Service.Tier = TierDevnet
	}
	c.Service.Tier = strings.ToLower(c.Service.Tier)
	switch c.Service.Tier {
	case TierDevnet, TierTestnet, TierMainnet:
	default:
		return fmt.Errorf("invalid tier: %s (must be devnet, testnet, or mainnet)", c.Service.Tier)
	}

	// Logging
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, error, or fatal)", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	validFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	// Policy floor overrides. Zero means the tier default applies.
	if c.Policy.MinThreshold < 0 {
		return fmt.Errorf("policy min_threshold must not be negative")
	}
	if c.Policy.MinThreshold > 0 && c.Policy.MinThreshold < 2 {
		return fmt.Errorf("policy min_threshold must be at least 2, got %d", c.Policy.MinThreshold)
	}
	if c.Policy.MinParties < 0 {
		return fmt.Errorf("policy min_parties must not be negative")
	}
	if c.Policy.MinThreshold > 0 && c.Policy.MinParties > 0 && c.Policy.MinParties < c.Policy.MinThreshold {
		return fmt.Errorf("policy min_parties (%d) must not be below min_threshold (%d)",
			c.Policy.MinParties, c.Policy.MinThreshold)
	}
	if c.Policy.Enforce == nil {
		enforce := true
		c.Policy.Enforce = &enforce
	}

	// Registry
	if c.Registry.AttestationMaxAgeSecs < 0 {
		return fmt.Errorf("registry attestation_max_age_secs must not be negative")
	}
	if c.Registry.StaleThresholdSecs < 0 {
		return fmt.Errorf("registry stale_threshold_secs must not be negative")
	}
	if c.Registry.StaleThresholdSecs == 0 {
		c.Registry.StaleThresholdSecs = 300
	}

	// Sessions
	if c.Sessions.TimeoutSecs < 0 {
		return fmt.Errorf("sessions timeout_secs must not be negative")
	}
	if c.Sessions.TimeoutSecs == 0 {
		c.Sessions.TimeoutSecs = 300
	}
	if c.Sessions.MaxSessions < 0 {
		return fmt.Errorf("sessions max_sessions must not be negative")
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = 1000
	}
	if c.Sessions.MaxConcurrent < 0 {
		return fmt.Errorf("sessions max_concurrent must not be negative")
	}
	if c.Sessions.MaxConcurrent == 0 {
		c.Sessions.MaxConcurrent = 10
	}

	// Rotation
	if c.Rotation.IntervalSecs < 0 {
		return fmt.Errorf("rotation interval_secs must not be negative")
	}
	if c.Rotation.IntervalSecs == 0 {
		c.Rotation.IntervalSecs = 86400
	}

	// Rate limiting
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("ratelimit requests_per_min must be positive when rate limiting is enabled")
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit burst must not be negative")
	}
	if c.RateLimit.Enabled && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.RequestsPerMin
	}

	// Metrics
	if c.Metrics.ResourceIntervalSecs < 0 {
		return fmt.Errorf("metrics resource_interval_secs must not be negative")
	}
	if c.Metrics.ResourceIntervalSecs == 0 {
		c.Metrics.ResourceIntervalSecs = 15
	}

	return nil
}
