// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package replica

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
	"github.com/pyrex41/medicare-portal-sub009/internal/metrics"
)

// Eviction reasons, used in logs and the replica_evictions_total metric.
const (
	ReasonIdle     = "idle"
	ReasonManual   = "manual"
	ReasonShutdown = "shutdown"
)

// killWait bounds how long a drain waits for a killed process to go away
// before deleting its files anyway.
const killWait = 5 * time.Second

// Config holds replica manager configuration.
type Config struct {
	Layout Layout

	// IdleTimeout is how long a tenant may go without an Acquire before
	// its replica is evicted.
	// Default: 10m
	IdleTimeout time.Duration

	// ScanInterval is the period of the background eviction loop.
	// Default: 1m
	ScanInterval time.Duration

	// RestoreTimeout bounds a single one-shot restore.
	// Default: 5m
	RestoreTimeout time.Duration

	// TerminateGrace is how long an evicted process may take to flush and
	// exit after the interrupt before it is killed.
	// Default: 10s
	TerminateGrace time.Duration

	// MaxConcurrentRestores, when positive, bounds restores running at the
	// same time across all tenants. Zero leaves every tenant's cold start
	// independent of the others.
	// Default: 0 (no limit)
	MaxConcurrentRestores int
}

// DefaultConfig returns production defaults with the given layout.
func DefaultConfig(layout Layout) Config {
	return Config{
		Layout:                layout,
		IdleTimeout:           10 * time.Minute,
		ScanInterval:          time.Minute,
		RestoreTimeout:        5 * time.Minute,
		TerminateGrace:        10 * time.Second,
		MaxConcurrentRestores: 0,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig(c.Layout)
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = d.ScanInterval
	}
	if c.RestoreTimeout <= 0 {
		c.RestoreTimeout = d.RestoreTimeout
	}
	if c.TerminateGrace <= 0 {
		c.TerminateGrace = d.TerminateGrace
	}
	if c.MaxConcurrentRestores < 0 {
		c.MaxConcurrentRestores = d.MaxConcurrentRestores
	}
	if c.Layout.FileExtension == "" {
		c.Layout.FileExtension = ".db"
	}
}

// ActiveReplica is one materialized tenant database and the replication
// process bound to it.
type ActiveReplica struct {
	target    Target
	process   Handle
	startedAt time.Time

	// Guarded by Manager.mu.
	lastAccessed time.Time

	// Closed when the evicted process is gone and its files are removed.
	drained chan struct{}
}

// ReplicaInfo is a point-in-time view of an active replica.
type ReplicaInfo struct {
	TenantID     string    `json:"tenant_id"`
	LocalPath    string    `json:"local_path"`
	ReplicaURL   string    `json:"replica_url"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the time source used for access recency and grace periods.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clock = clk }
}

// WithLogger sets the manager's logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager owns the tenant -> ActiveReplica table. It restores cold tenants on
// demand, runs one replication process per hot tenant, and evicts tenants
// that have been idle longer than the configured threshold.
type Manager struct {
	cfg      Config
	restorer Restorer
	spawner  Spawner
	clock    clock.Clock
	logger   zerolog.Logger

	mu       sync.Mutex
	replicas map[string]*ActiveReplica
	draining map[string]chan struct{}
	closed   bool

	flights singleflight.Group

	// nil unless MaxConcurrentRestores is set.
	restores *semaphore.Weighted

	// Cancelled by Shutdown to abort in-flight cold starts.
	ctx    context.Context
	cancel context.CancelFunc

	// Closed when Shutdown gives up waiting; processes still running are
	// killed.
	killAll chan struct{}

	watchers sync.WaitGroup
	drains   sync.WaitGroup

	// Eviction loop
	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopWg     sync.WaitGroup
	running    bool
}

// NewManager creates a replica manager and ensures the data directory exists.
func NewManager(cfg Config, restorer Restorer, spawner Spawner, opts ...Option) (*Manager, error) {
	if restorer == nil {
		return nil, fmt.Errorf("replica manager: restorer is required")
	}
	if spawner == nil {
		return nil, fmt.Errorf("replica manager: spawner is required")
	}
	if cfg.Layout.DataDir == "" {
		return nil, fmt.Errorf("replica manager: data directory is required")
	}
	cfg.applyDefaults()

	if err := os.MkdirAll(cfg.Layout.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("replica manager: create data directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		restorer: restorer,
		spawner:  spawner,
		clock:    clock.WallClock,
		logger:   logging.With().Str("component", "replica").Logger(),
		replicas: make(map[string]*ActiveReplica),
		draining: make(map[string]chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		killAll:  make(chan struct{}),
	}
	if cfg.MaxConcurrentRestores > 0 {
		m.restores = semaphore.NewWeighted(int64(cfg.MaxConcurrentRestores))
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Acquire returns the local path of tenantID's database, materializing it
// first if the tenant is cold. Callers must re-acquire on every request so
// the tenant's recency stays fresh, and must not cache the path.
//
// Concurrent cold acquires for one tenant share a single restore and spawn.
// If ctx ends first the caller stops waiting; the shared cold start carries on
// for the other callers.
func (m *Manager) Acquire(ctx context.Context, tenantID string) (string, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return "", err
	}

	path, hot, err := m.lookup(tenantID)
	if err != nil {
		metrics.RecordReplicaAcquire(metrics.AcquireError)
		return "", err
	}
	if hot {
		metrics.RecordReplicaAcquire(metrics.AcquireHot)
		return path, nil
	}

	ch := m.flights.DoChan(tenantID, func() (interface{}, error) {
		return m.hydrate(tenantID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			metrics.RecordReplicaAcquire(metrics.AcquireError)
			return "", res.Err
		}
		metrics.RecordReplicaAcquire(metrics.AcquireCold)
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// lookup is the hot path: a map read and a timestamp write under the lock.
func (m *Manager) lookup(tenantID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", false, ErrManagerClosed
	}
	r, ok := m.replicas[tenantID]
	if !ok {
		return "", false, nil
	}
	m.touchLocked(r)
	return r.target.LocalPath, true, nil
}

func (m *Manager) touchLocked(r *ActiveReplica) {
	if now := m.clock.Now(); now.After(r.lastAccessed) {
		r.lastAccessed = now
	}
}

// hydrate performs the cold start for one tenant. It runs inside the
// tenant's single-flight, so at most one hydrate per tenant is in progress.
func (m *Manager) hydrate(tenantID string) (string, error) {
	// The previous flight for this tenant may have completed between our
	// lookup and joining the group.
	if path, hot, err := m.lookup(tenantID); err != nil || hot {
		return path, err
	}
	if err := m.awaitDrain(tenantID); err != nil {
		return "", err
	}

	target := m.cfg.Layout.Target(tenantID)
	logger := m.logger.With().Str("tenant_id", tenantID).Logger()

	// Leftovers from a previous run are not claimed by anyone; the replica
	// in object storage is authoritative.
	if err := removeLocalFiles(target.LocalPath); err != nil {
		return "", &RestoreError{TenantID: tenantID, Err: fmt.Errorf("clear stale local files: %w", err)}
	}

	if err := m.restore(target, logger); err != nil {
		return "", err
	}

	// Reserve a watcher slot before spawning so Shutdown waits for (and if
	// need be kills) a process that starts while it is collecting victims.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}
	m.watchers.Add(1)
	m.mu.Unlock()

	proc, err := m.spawner.Spawn(target)
	metrics.RecordReplicaSpawn(err)
	if err != nil {
		m.watchers.Done()
		spawnErr := &SpawnError{TenantID: tenantID, Err: err}
		logger.Error().Err(err).Msg("Failed to start replication process")
		return "", spawnErr
	}

	now := m.clock.Now()
	r := &ActiveReplica{
		target:       target,
		process:      proc,
		startedAt:    now,
		lastAccessed: now,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		go m.reapLate(proc, logger)
		return "", ErrManagerClosed
	}
	m.replicas[tenantID] = r
	metrics.SetReplicasActive(len(m.replicas))
	m.mu.Unlock()

	go m.watch(r)

	logger.Info().
		Str("path", target.LocalPath).
		Str("replica_url", target.ReplicaURL).
		Int("pid", proc.Pid()).
		Msg("Tenant replica activated")

	return target.LocalPath, nil
}

// reapLate stops a process that was spawned after Shutdown began. It holds
// the watcher slot reserved by hydrate.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (m *Manager) reapLate(proc Handle, logger zerolog.Logger) {
	defer m.watchers.Done()

	if err := proc.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logger.Warn().Err(err).Msg("Failed to signal replication process started during shutdown")
	}
	select {
	case <-proc.Done():
	case <-m.killAll:
		logger.Warn().Int("pid", proc.Pid()).Msg("Killing replication process after shutdown timeout")
		if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Error().Err(err).Msg("Failed to kill replication process")
		}
	}
}

// restore runs the one-shot restore under the optional concurrency bound.
// The timeout starts once a slot is held, so queueing never eats into it.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (m *Manager) restore(target Target, logger zerolog.Logger) error {
	if m.restores != nil {
		if err := m.restores.Acquire(m.ctx, 1); err != nil {
			return ErrManagerClosed
		}
		defer m.restores.Release(1)
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.RestoreTimeout)
	defer cancel()

	start := time.Now()
	err := m.restorer.Restore(ctx, target)
	duration := time.Since(start)

	if err != nil && m.ctx.Err() != nil {
		logger.Info().Err(err).Msg("Restore aborted by shutdown")
		return ErrManagerClosed
	}

	// A timed-out restore is a failure even if the tool's last words looked
	// like a missing snapshot.
	if err != nil && ctx.Err() != nil {
		var restoreErr *RestoreError
		if !errors.As(err, &restoreErr) {
			err = &RestoreError{TenantID: target.TenantID, Err: fmt.Errorf("%v: %w", err, ctx.Err())}
		}
	}

	switch {
	case err == nil:
		metrics.RecordReplicaRestore(metrics.RestoreRestored, duration)
		logger.Info().Dur("duration", duration).Msg("Restored tenant database from replica")
		return nil

	case errors.Is(err, ErrNoSnapshot):
		metrics.RecordReplicaRestore(metrics.RestoreNoSnapshot, duration)
		logger.Info().Dur("duration", duration).Msg("No snapshot found, starting with an empty database")
		return nil

	default:
		metrics.RecordReplicaRestore(metrics.RestoreFailed, duration)
		var restoreErr *RestoreError
		if !errors.As(err, &restoreErr) {
			err = &RestoreError{TenantID: target.TenantID, Err: err}
		}
		logger.Error().Err(err).Dur("duration", duration).Msg("Restore failed")
		return err
	}
}

// awaitDrain blocks while a previously evicted process for the tenant is
// still releasing the local file.
func (m *Manager) awaitDrain(tenantID string) error {
	m.mu.Lock()
	done, ok := m.draining[tenantID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	m.logger.Debug().Str("tenant_id", tenantID).Msg("Waiting for evicted replica to drain")
	select {
	case <-done:
		return nil
	case <-m.ctx.Done():
		return ErrManagerClosed
	}
}

// watch removes the replica's entry when its process exits for any reason.
func (m *Manager) watch(r *ActiveReplica) {
	defer m.watchers.Done()

	waitErr := r.process.Wait()

	m.mu.Lock()
	current, ok := m.replicas[r.target.TenantID]
	removed := ok && current == r
	if removed {
		delete(m.replicas, r.target.TenantID)
		metrics.SetReplicasActive(len(m.replicas))
	}
	m.mu.Unlock()

	metrics.RecordReplicaProcessExit(!removed)

	event := m.logger.Debug()
	if removed {
		event = m.logger.Warn()
	}
	event.Err(waitErr).
		Str("tenant_id", r.target.TenantID).
		Int("pid", r.process.Pid()).
		Bool("deactivated", removed).
		Msg("Replication process exited")
}

// EvictIdle evicts every replica not accessed within threshold and returns
// how many were evicted. Entries leave the map immediately; signalling the
// processes and deleting files happen outside the lock, and a failure on one
// tenant never stops the others.
func (m *Manager) EvictIdle(threshold time.Duration) int {
	now := m.clock.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}
	var victims []*ActiveReplica
	for id, r := range m.replicas {
		if now.Sub(r.lastAccessed) > threshold {
			victims = append(victims, m.detachLocked(id, r))
		}
	}
	if len(victims) > 0 {
		metrics.SetReplicasActive(len(m.replicas))
	}
	m.mu.Unlock()

	for _, r := range victims {
		m.retire(r, ReasonIdle, now)
	}
	return len(victims)
}

// Evict evicts one tenant regardless of recency. It reports whether the
// tenant was active.
func (m *Manager) Evict(tenantID string) bool {
	m.mu.Lock()
	r, ok := m.replicas[tenantID]
	if !ok || m.closed {
		m.mu.Unlock()
		return false
	}
	r = m.detachLocked(tenantID, r)
	metrics.SetReplicasActive(len(m.replicas))
	m.mu.Unlock()

	m.retire(r, ReasonManual, m.clock.Now())
	return true
}

// detachLocked removes r from the active set and registers it as draining.
func (m *Manager) detachLocked(id string, r *ActiveReplica) *ActiveReplica {
	delete(m.replicas, id)
	r.drained = make(chan struct{})
	m.draining[id] = r.drained
	m.drains.Add(1)
	return r
}

// retire interrupts an evicted replica's process and drains it in the
// background.
func (m *Manager) retire(r *ActiveReplica, reason string, now time.Time) {
	logger := m.logger.With().Str("tenant_id", r.target.TenantID).Logger()

	if err := r.process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		evErr := &EvictionError{TenantID: r.target.TenantID, Op: "signal", Err: err}
		metrics.RecordReplicaEvictionError("signal")
		logger.Warn().Err(evErr).Msg("Failed to interrupt replication process")
	}

	metrics.RecordReplicaEviction(reason)
	logger.Info().
		Str("reason", reason).
		Dur("idle", now.Sub(r.lastAccessed)).
		Msg("Tenant replica evicted")

	go m.drain(r)
}

// drain waits for the process to exit (killing it after the grace period)
// and then deletes the local database files.
func (m *Manager) drain(r *ActiveReplica) {
	defer m.drains.Done()

	id := r.target.TenantID
	logger := m.logger.With().Str("tenant_id", id).Logger()

	defer func() {
		m.mu.Lock()
		if m.draining[id] == r.drained {
			delete(m.draining, id)
		}
		m.mu.Unlock()
		close(r.drained)
	}()

	select {
	case <-r.process.Done():
	case <-m.clock.After(m.cfg.TerminateGrace):
		logger.Warn().Dur("grace", m.cfg.TerminateGrace).Msg("Replication process did not exit in time, killing")
		if err := r.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			metrics.RecordReplicaEvictionError("kill")
			logger.Warn().Err(&EvictionError{TenantID: id, Op: "kill", Err: err}).Msg("Failed to kill replication process")
		}
		select {
		case <-r.process.Done():
		case <-m.clock.After(killWait):
			logger.Error().Msg("Replication process still running after kill")
		}
	}

	if err := removeLocalFiles(r.target.LocalPath); err != nil {
		metrics.RecordReplicaEvictionError("delete")
		logger.Warn().Err(&EvictionError{TenantID: id, Op: "delete", Err: err}).Msg("Failed to delete evicted database")
		return
	}
	logger.Debug().Str("path", r.target.LocalPath).Msg("Evicted database removed")
}

// Shutdown stops the eviction loop, interrupts every replication process and
// clears the active set. Local files are kept; the next process start finds
// an empty table and cold-starts tenants from object storage.
//
// Shutdown waits for the processes to exit until ctx is done, then kills the
// remaining ones. Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Stop()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	victims := make([]*ActiveReplica, 0, len(m.replicas))
	for id, r := range m.replicas {
		victims = append(victims, r)
		delete(m.replicas, id)
	}
	metrics.SetReplicasActive(0)
	m.mu.Unlock()

	// Abort cold starts still restoring.
	m.cancel()

	for _, r := range victims {
		if err := r.process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			m.logger.Warn().Err(err).Str("tenant_id", r.target.TenantID).Msg("Failed to interrupt replication process")
		}
		metrics.RecordReplicaEviction(ReasonShutdown)
	}
	m.logger.Info().Int("replicas", len(victims)).Msg("Replica manager shutting down")

	done := make(chan struct{})
	go func() {
		m.watchers.Wait()
		m.drains.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("Replica manager stopped")
		return nil
	case <-ctx.Done():
	}

	close(m.killAll)
	for _, r := range victims {
		select {
		case <-r.process.Done():
		default:
			m.logger.Warn().Str("tenant_id", r.target.TenantID).Msg("Killing replication process after shutdown timeout")
			if err := r.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				m.logger.Error().Err(err).Str("tenant_id", r.target.TenantID).Msg("Failed to kill replication process")
			}
		}
	}
	return ctx.Err()
}

// Start begins the background idle eviction loop.
func (m *Manager) Start(ctx context.Context) error {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.running {
		return nil
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrManagerClosed
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.loopCancel = cancel
	m.running = true

	// The timer is armed here rather than in the goroutine so the first
	// scan is due exactly one interval after Start.
	timer := m.clock.NewTimer(m.cfg.ScanInterval)
	m.loopWg.Add(1)
	go m.run(loopCtx, timer)

	m.logger.Info().
		Dur("interval", m.cfg.ScanInterval).
		Dur("idle_timeout", m.cfg.IdleTimeout).
		Msg("Replica eviction loop started")
	return nil
}

// Stop stops the eviction loop and waits for it to exit.
func (m *Manager) Stop() {
	m.loopMu.Lock()
	if !m.running {
		m.loopMu.Unlock()
		return
	}
	m.loopCancel()
	m.running = false
	m.loopMu.Unlock()

	m.loopWg.Wait()
	m.logger.Info().Msg("Replica eviction loop stopped")
}

// IsRunning returns whether the eviction loop is active.
func (m *Manager) IsRunning() bool {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	return m.running
}

func (m *Manager) run(ctx context.Context, timer clock.Timer) {
	defer m.loopWg.Done()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			metrics.RecordEvictionScan()
			if n := m.EvictIdle(m.cfg.IdleTimeout); n > 0 {
				m.logger.Info().Int("evicted", n).Int("active", m.Len()).Msg("Idle eviction scan completed")
			}
			timer.Reset(m.cfg.ScanInterval)
		}
	}
}

// Len returns the number of active replicas.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// Active returns the active replicas sorted by tenant ID.
func (m *Manager) Active() []ReplicaInfo {
	m.mu.Lock()
	infos := make([]ReplicaInfo, 0, len(m.replicas))
	for _, r := range m.replicas {
		infos = append(infos, ReplicaInfo{
			TenantID:     r.target.TenantID,
			LocalPath:    r.target.LocalPath,
			ReplicaURL:   r.target.ReplicaURL,
			PID:          r.process.Pid(),
			StartedAt:    r.startedAt,
			LastAccessed: r.lastAccessed,
		})
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].TenantID < infos[j].TenantID })
	return infos
}

// Lookup returns the active replica for tenantID without refreshing its
// recency.
func (m *Manager) Lookup(tenantID string) (ReplicaInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replicas[tenantID]
	if !ok {
		return ReplicaInfo{}, false
	}
	return ReplicaInfo{
		TenantID:     r.target.TenantID,
		LocalPath:    r.target.LocalPath,
		ReplicaURL:   r.target.ReplicaURL,
		PID:          r.process.Pid(),
		StartedAt:    r.startedAt,
		LastAccessed: r.lastAccessed,
	}, true
}
