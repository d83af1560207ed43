// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"context"
	"time"

	"github.com/pyrex41/medicare-portal-sub009/internal/objectstore"
	"github.com/pyrex41/medicare-portal-sub009/internal/replica"
)

// ReplicaManager is the part of *replica.Manager the handlers use.
type ReplicaManager interface {
	Acquire(ctx context.Context, tenantID string) (string, error)
	Evict(tenantID string) bool
	Active() []replica.ReplicaInfo
	Lookup(tenantID string) (replica.ReplicaInfo, bool)
	Len() int
	IsRunning() bool
}

// SnapshotStore is the part of *objectstore.Client the handlers use.
type SnapshotStore interface {
	List(ctx context.Context, tenantID string) ([]objectstore.Object, error)
	Ping(ctx context.Context) error
	BreakerState() string
}

// Handler serves the HTTP API.
type Handler struct {
	manager   ReplicaManager
	store     SnapshotStore
	startTime time.Time

	// readyTimeout bounds the object store check in the readiness check.
	readyTimeout time.Duration
}

// NewHandler creates a Handler. store may be nil when no object store is
// configured.
func NewHandler(manager ReplicaManager, store SnapshotStore) *Handler {
	return &Handler{
		manager:      manager,
		store:        store,
		startTime:    time.Now(),
		readyTimeout: 2 * time.Second,
	}
}
