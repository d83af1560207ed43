// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
)

// HealthStatus is the readiness report.
type HealthStatus struct {
	Status         string            `json:"status"`
	Uptime         string            `json:"uptime"`
	ActiveReplicas int               `json:"active_replicas"`
	Checks         map[string]string `json:"checks"`
}

// Liveness reports that the process is serving HTTP.
//
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse
// @Router /health/live [get]
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// Readiness reports whether new tenant requests can be served: the
// manager must be accepting acquisitions and the object store, when one is
// configured, must answer.
//
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse{data=HealthStatus}
// @Failure 503 {object} APIResponse{data=HealthStatus}
// @Router /health/ready [get]
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:         "ready",
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		ActiveReplicas: h.manager.Len(),
		Checks:         map[string]string{},
	}

	if h.manager.IsRunning() {
		status.Checks["replica_manager"] = "ok"
	} else {
		status.Checks["replica_manager"] = "stopped"
		status.Status = "not_ready"
	}

	if h.store == nil {
		status.Checks["object_store"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), h.readyTimeout)
		err := h.store.Ping(ctx)
		cancel()
		if err != nil {
			logging.CtxErr(r.Context(), err).Str("breaker", h.store.BreakerState()).Msg("Object store readiness check failed")
			status.Checks["object_store"] = "unreachable"
			status.Status = "not_ready"
		} else {
			status.Checks["object_store"] = "ok"
		}
	}

	rw := NewResponseWriter(w, r)
	if status.Status != "ready" {
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: status, Meta: rw.meta(nil)})
		return
	}
	rw.Success(status)
}
