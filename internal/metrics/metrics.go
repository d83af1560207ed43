// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Restore outcomes used as the "outcome" label.
const (
	RestoreRestored   = "restored"
	RestoreNoSnapshot = "no_snapshot"
	RestoreFailed     = "failed"
)

// Acquire results used as the "result" label.
const (
	AcquireHot   = "hot"
	AcquireCold  = "cold"
	AcquireError = "error"
)

var (
	// Replica lifecycle metrics
	ReplicasActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "replica_active",
			Help: "Current number of materialized tenant databases with a running replication process",
		},
	)

	ReplicaAcquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_acquires_total",
			Help: "Total number of tenant acquires by result",
		},
		[]string{"result"}, // "hot", "cold", "error"
	)

	ReplicaRestores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_restores_total",
			Help: "Total number of one-shot restores by outcome",
		},
		[]string{"outcome"}, // "restored", "no_snapshot", "failed"
	)

	ReplicaRestoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replica_restore_duration_seconds",
			Help:    "Duration of one-shot restores in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ReplicaSpawns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_spawns_total",
			Help: "Total number of replication process spawn attempts",
		},
		[]string{"status"}, // "success", "failure"
	)

	ReplicaEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_evictions_total",
			Help: "Total number of replica evictions by reason",
		},
		[]string{"reason"}, // "idle", "manual", "shutdown"
	)

	ReplicaEvictionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_eviction_errors_total",
			Help: "Total number of per-tenant eviction failures",
		},
		[]string{"op"}, // "signal", "kill", "delete"
	)

	ReplicaProcessExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replica_process_exits_total",
			Help: "Total number of replication process exits",
		},
		[]string{"expected"}, // "true", "false"
	)

	ReplicaEvictionScans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replica_eviction_scans_total",
			Help: "Total number of idle eviction scan ticks",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, // Optimized for API latency
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// SetReplicasActive records the current size of the active replica set.
func SetReplicasActive(n int) {
	ReplicasActive.Set(float64(n))
}

// RecordReplicaAcquire records an Acquire call by result.
func RecordReplicaAcquire(result string) {
	ReplicaAcquires.WithLabelValues(result).Inc()
}

// RecordReplicaRestore records a restore outcome and its duration.
func RecordReplicaRestore(outcome string, duration time.Duration) {
	ReplicaRestores.WithLabelValues(outcome).Inc()
	ReplicaRestoreDuration.Observe(duration.Seconds())
}

// RecordReplicaSpawn records a replication process spawn attempt.
func RecordReplicaSpawn(err error) {
	if err != nil {
		ReplicaSpawns.WithLabelValues("failure").Inc()
		return
	}
	ReplicaSpawns.WithLabelValues("success").Inc()
}

// RecordReplicaEviction records an eviction by reason.
func RecordReplicaEviction(reason string) {
	ReplicaEvictions.WithLabelValues(reason).Inc()
}

// RecordReplicaEvictionError records a failed eviction step.
func RecordReplicaEvictionError(op string) {
	ReplicaEvictionErrors.WithLabelValues(op).Inc()
}

// RecordReplicaProcessExit records a replication process exit. Exits of
// evicted or shut down replicas are expected; anything else is a crash.
func RecordReplicaProcessExit(expected bool) {
	if expected {
		ReplicaProcessExits.WithLabelValues("true").Inc()
		return
	}
	ReplicaProcessExits.WithLabelValues("false").Inc()
}

// RecordEvictionScan records one idle eviction scan tick.
func RecordEvictionScan() {
	ReplicaEvictionScans.Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
