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

// Package metrics provides Prometheus instrumentation for go-tss operations.
// It exposes operation counters, latency histograms, session and party
// gauges, and resource metrics for monitoring threshold signing health.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all go-tss metrics
	Namespace = "tss"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelOutcome   = "outcome"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Session outcomes
	OutcomeComplete = "complete"
	OutcomeFailed   = "failed"
	OutcomeExpired  = "expired"

	// Operation names
	OpGenerateKey   = "generate_key"
	OpSign          = "sign"
	OpSignTypedData = "sign_typed_data"
	OpRotate        = "rotate"
	OpRevoke        = "revoke"
	OpRegisterParty = "register_party"
)

var (
	// OperationsTotal tracks the total number of signing service operations
	// by type and status. Use RecordOperation to increment this counter.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of signing service operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks the duration of signing service operations
	// in seconds. Buckets are optimized for typical cryptographic operation
	// latencies.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of signing service operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation},
	)

	// ErrorsTotal tracks the total number of errors by operation and error
	// type. Error types should be specific (e.g., "policy_floor",
	// "session_expired", "commitment_mismatch").
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// SessionsTotal tracks finished signing sessions by outcome
	// (complete, failed, expired).
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished signing sessions by outcome",
		},
		[]string{LabelOutcome},
	)

	// SessionsActive tracks the number of signing sessions currently in a
	// non-terminal state.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Number of signing sessions in a non-terminal state",
		},
	)

	// KeysTotal tracks the number of keys currently managed by the service.
	KeysTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "keys_total",
			Help:      "Number of keys currently managed by the service",
		},
	)

	// PartiesTotal tracks the number of registered parties by status.
	PartiesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "parties_total",
			Help:      "Number of registered parties by status",
		},
		[]string{LabelStatus},
	)

	// RotationsTotal tracks completed share rotations by status.
	RotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rotations_total",
			Help:      "Total number of share rotations by status",
		},
		[]string{LabelStatus},
	)

	// RateLimitedTotal tracks requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)

	// Goroutines tracks the current number of goroutines.
	// Updated periodically by the resource collector.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	// MemoryAllocBytes tracks the current bytes of allocated heap objects.
	// Updated periodically by the resource collector.
	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	// MemorySysBytes tracks the total bytes of memory obtained from the OS.
	// Updated periodically by the resource collector.
	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// GCPauseTotalSeconds tracks the cumulative time spent in GC
	// stop-the-world pauses. Updated periodically by the resource collector.
	GCPauseTotalSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "gc_pause_total_seconds",
			Help:      "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	// ServiceUptime tracks the service uptime in seconds since startup.
	ServiceUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "service_uptime_seconds",
			Help:      "Service uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a signing service operation with its duration and
// status. This is the primary function for tracking operational metrics.
//
// Parameters:
//   - operation: The operation name (use Op* constants)
//   - status: The operation status (use Status* constants)
//   - duration: The operation duration in seconds
//
// Example:
//
//	start := time.Now()
//	sig, err := service.Sign(ctx, req)
//	duration := time.Since(start).Seconds()
//	if err != nil {
//	    RecordOperation(OpSign, StatusError, duration)
//	} else {
//	    RecordOperation(OpSign, StatusSuccess, duration)
//	}
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordError records an error event with context about where it occurred.
//
// Parameters:
//   - operation: The operation during which the error occurred (use Op* constants)
//   - errorType: A specific error type identifier (e.g., "policy_floor")
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordSessionOutcome records a signing session reaching a terminal state.
// Outcome should be one of "complete", "failed", or "expired".
func RecordSessionOutcome(outcome string) {
	if !enabled.Load() {
		return
	}
	SessionsTotal.WithLabelValues(outcome).Inc()
}

// SetSessionsActive sets the number of sessions in a non-terminal state.
func SetSessionsActive(count float64) {
	if !enabled.Load() {
		return
	}
	SessionsActive.Set(count)
}

// IncSessionsActive increments the active session gauge. Coordinators call
// this on session creation and DecSessionsActive on the single transition
// into a terminal state.
func IncSessionsActive() {
	if !enabled.Load() {
		return
	}
	SessionsActive.Inc()
}

// DecSessionsActive decrements the active session gauge.
func DecSessionsActive() {
	if !enabled.Load() {
		return
	}
	SessionsActive.Dec()
}

// SetKeysTotal sets the number of keys currently managed.
func SetKeysTotal(count float64) {
	if !enabled.Load() {
		return
	}
	KeysTotal.Set(count)
}

// SetPartiesTotal sets the number of registered parties for a status.
func SetPartiesTotal(status string, count float64) {
	if !enabled.Load() {
		return
	}
	PartiesTotal.WithLabelValues(status).Set(count)
}

// RecordRotation records a completed share rotation.
func RecordRotation(status string) {
	if !enabled.Load() {
		return
	}
	RotationsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited() {
	if !enabled.Load() {
		return
	}
	RateLimitedTotal.Inc()
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
