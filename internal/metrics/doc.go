// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered with the default registry through promauto and
exposed at /metrics by the API router:

	curl http://localhost:8080/metrics

# Available Metrics

Replica lifecycle:
  - replica_active: materialized tenants with a running replication process (gauge)
  - replica_acquires_total: acquires by result (hot, cold, error)
  - replica_restores_total: one-shot restores by outcome (restored, no_snapshot, failed)
  - replica_restore_duration_seconds: restore latency (histogram)
  - replica_spawns_total: replication process starts by status
  - replica_evictions_total: evictions by reason (idle, manual, shutdown)
  - replica_eviction_errors_total: failed eviction steps by op (signal, kill, delete)
  - replica_process_exits_total: process exits, labelled expected=true|false
  - replica_eviction_scans_total: idle scan ticks

HTTP:
  - api_requests_total, api_request_duration_seconds, api_active_requests

Object storage circuit breaker:
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_transitions_total
*/
package metrics
