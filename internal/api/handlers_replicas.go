// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"net/http"
	"sort"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
	"github.com/pyrex41/medicare-portal-sub009/internal/objectstore"
	"github.com/pyrex41/medicare-portal-sub009/internal/replica"
)

// ReplicaList is the response body of the replica listing.
type ReplicaList struct {
	Count    int                   `json:"count"`
	Replicas []replica.ReplicaInfo `json:"replicas"`
}

// SnapshotList is the response body of the snapshot listing.
type SnapshotList struct {
	TenantID string               `json:"tenant_id"`
	Count    int                  `json:"count"`
	Objects  []objectstore.Object `json:"objects"`
}

// ListReplicas returns every active replica, most recently used first.
//
// @Summary List active replicas
// @Tags Replicas
// @Produce json
// @Success 200 {object} APIResponse{data=ReplicaList}
// @Router /replicas [get]
func (h *Handler) ListReplicas(w http.ResponseWriter, r *http.Request) {
	active := h.manager.Active()
	if active == nil {
		active = []replica.ReplicaInfo{}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastAccessed.After(active[j].LastAccessed)
	})
	NewResponseWriter(w, r).Success(ReplicaList{Count: len(active), Replicas: active})
}

// GetReplica returns one active replica without refreshing its access time.
//
// @Summary Get an active replica
// @Tags Replicas
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} APIResponse{data=replica.ReplicaInfo}
// @Failure 404 {object} APIResponse
// @Router /replicas/{tenantID} [get]
func (h *Handler) GetReplica(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID, verr := tenantParam(r)
	if verr != nil {
		writeTenantError(rw, verr)
		return
	}

	info, ok := h.manager.Lookup(tenantID)
	if !ok {
		rw.NotFound("Tenant has no active replica")
		return
	}
	rw.Success(info)
}

// WarmReplica acquires a tenant's replica ahead of real traffic.
//
// @Summary Warm a tenant replica
// @Tags Replicas
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} APIResponse{data=replica.ReplicaInfo}
// @Failure 400 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /replicas/{tenantID}/warm [post]
func (h *Handler) WarmReplica(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID, verr := tenantParam(r)
	if verr != nil {
		writeTenantError(rw, verr)
		return
	}
	ctx := logging.ContextWithTenantID(r.Context(), tenantID)
	r = r.WithContext(ctx)

	path, err := h.manager.Acquire(ctx, tenantID)
	if err != nil {
		writeAcquireError(rw, r, err)
		return
	}

	info, ok := h.manager.Lookup(tenantID)
	if !ok {
		// Evicted between Acquire and Lookup; report what we were given.
		info = replica.ReplicaInfo{TenantID: tenantID, LocalPath: path}
	}
	logging.Ctx(ctx).Info().Str("path", path).Msg("Tenant replica warmed")
	rw.Success(info)
}

// EvictReplica stops a tenant's replication and deletes its local files.
//
// @Summary Evict a tenant replica
// @Tags Replicas
// @Param tenantID path string true "Tenant ID"
// @Success 204
// @Failure 404 {object} APIResponse
// @Router /replicas/{tenantID} [delete]
func (h *Handler) EvictReplica(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID, verr := tenantParam(r)
	if verr != nil {
		writeTenantError(rw, verr)
		return
	}

	if !h.manager.Evict(tenantID) {
		rw.NotFound("Tenant has no active replica")
		return
	}
	logging.Ctx(logging.ContextWithTenantID(r.Context(), tenantID)).Info().Msg("Tenant replica evicted on request")
	w.WriteHeader(http.StatusNoContent)
}

// ListSnapshots lists the replica objects stored for a tenant.
//
// @Summary List a tenant's stored replica objects
// @Tags Replicas
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} APIResponse{data=SnapshotList}
// @Failure 404 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /replicas/{tenantID}/snapshots [get]
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tenantID, verr := tenantParam(r)
	if verr != nil {
		writeTenantError(rw, verr)
		return
	}
	if h.store == nil {
		writeObjectStoreError(rw, r, ErrObjectStoreDisabled)
		return
	}

	objects, err := h.store.List(r.Context(), tenantID)
	if err != nil {
		writeObjectStoreError(rw, r.WithContext(logging.ContextWithTenantID(r.Context(), tenantID)), err)
		return
	}
	if objects == nil {
		objects = []objectstore.Object{}
	}
	rw.Success(SnapshotList{TenantID: tenantID, Count: len(objects), Objects: objects})
}
