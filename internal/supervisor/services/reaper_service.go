// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package services

import (
	"context"
	"fmt"
)

// EvictionLoop is the background loop of *replica.Manager.
type EvictionLoop interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// ReplicaReaperService runs the replica manager's idle eviction loop under
// suture. It owns only the loop: stopping it leaves active replicas alone.
type ReplicaReaperService struct {
	loop EvictionLoop
	name string
}

// NewReplicaReaperService wraps the manager's eviction loop.
func NewReplicaReaperService(loop EvictionLoop) *ReplicaReaperService {
	return &ReplicaReaperService{loop: loop, name: "replica-reaper"}
}

// Serve starts the loop, blocks until ctx is cancelled, then stops it.
//
// A failed Start (the manager was shut down) is returned so suture backs off
// instead of spinning.
func (s *ReplicaReaperService) Serve(ctx context.Context) error {
	if err := s.loop.Start(ctx); err != nil {
		return fmt.Errorf("replica reaper start failed: %w", err)
	}
	<-ctx.Done()
	s.loop.Stop()
	return ctx.Err()
}

// Healthy reports whether the loop is running.
func (s *ReplicaReaperService) Healthy() bool {
	return s.loop.IsRunning()
}

func (s *ReplicaReaperService) String() string {
	return s.name
}
