// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package replica

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"
)

func TestAcquire_ColdStartWithoutSnapshot(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	path, err := tm.Acquire(ctx, "acme")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	want := filepath.Join(tm.dir, "acme.db")
	if path != want {
		t.Errorf("Expected path %q, got %q", want, path)
	}
	if got := tm.restorer.count("acme"); got != 1 {
		t.Errorf("Expected 1 restore, got %d", got)
	}
	if got := tm.spawner.count("acme"); got != 1 {
		t.Errorf("Expected 1 spawn, got %d", got)
	}

	again, err := tm.Acquire(ctx, "acme")
	if err != nil {
		t.Fatalf("Second Acquire failed: %v", err)
	}
	if again != path {
		t.Errorf("Expected same path %q, got %q", path, again)
	}
	if got := tm.restorer.count("acme"); got != 1 {
		t.Errorf("Expected no new restore on hot path, got %d restores", got)
	}
	if got := tm.spawner.count("acme"); got != 1 {
		t.Errorf("Expected no new spawn on hot path, got %d spawns", got)
	}
	if tm.Len() != 1 {
		t.Errorf("Expected 1 active replica, got %d", tm.Len())
	}
}

func TestAcquire_HotPathRefreshesRecency(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	if _, err := tm.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first, _ := tm.Lookup("acme")

	tm.clock.Advance(3 * time.Minute)
	if _, err := tm.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	second, _ := tm.Lookup("acme")

	if got := second.LastAccessed.Sub(first.LastAccessed); got != 3*time.Minute {
		t.Errorf("Expected lastAccessed to advance by 3m, advanced by %v", got)
	}
	if !second.StartedAt.Equal(first.StartedAt) {
		t.Error("StartedAt should not change on the hot path")
	}
}

func TestAcquire_ConcurrentColdStartIsCoalesced(t *testing.T) {
	tm := newTestManager(t)
	tm.restorer.gate = make(chan struct{})

	const callers = 20
	var wg sync.WaitGroup
	paths := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = tm.Acquire(context.Background(), "gamma")
		}(i)
	}

	// Let every caller reach the flight before the restore completes.
	waitFor(t, "restore to start", func() bool { return tm.restorer.count("gamma") == 1 })
	time.Sleep(20 * time.Millisecond)
	close(tm.restorer.gate)
	wg.Wait()

	want := filepath.Join(tm.dir, "gamma.db")
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d: Acquire failed: %v", i, errs[i])
			continue
		}
		if paths[i] != want {
			t.Errorf("caller %d: expected %q, got %q", i, want, paths[i])
		}
	}
	if got := tm.restorer.count("gamma"); got != 1 {
		t.Errorf("Expected exactly 1 restore, got %d", got)
	}
	if got := tm.spawner.count("gamma"); got != 1 {
		t.Errorf("Expected exactly 1 spawn, got %d", got)
	}
	if tm.spawner.overlapCount() != 0 {
		t.Error("Two replication processes were alive for one tenant")
	}
}

func TestAcquire_RestoreFailure(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()
	tm.restorer.setErr("delta", errStorageOutage)

	_, err := tm.Acquire(ctx, "delta")
	var restoreErr *RestoreError
	if !errors.As(err, &restoreErr) {
		t.Fatalf("Expected RestoreError, got %v", err)
	}
	if restoreErr.TenantID != "delta" {
		t.Errorf("Expected tenant delta in error, got %q", restoreErr.TenantID)
	}
	if !errors.Is(err, errStorageOutage) {
		t.Errorf("Expected error to wrap the storage failure, got %v", err)
	}
	if _, ok := tm.Lookup("delta"); ok {
		t.Error("No entry should exist after a failed restore")
	}
	if got := tm.spawner.count("delta"); got != 0 {
		t.Errorf("Expected no spawn after failed restore, got %d", got)
	}

	// Outage clears
	tm.restorer.setErr("delta", nil)
	path, err := tm.Acquire(ctx, "delta")
	if err != nil {
		t.Fatalf("Retry Acquire failed: %v", err)
	}
	if path != filepath.Join(tm.dir, "delta.db") {
		t.Errorf("Unexpected path %q", path)
	}
	if got := tm.restorer.count("delta"); got != 2 {
		t.Errorf("Expected retry to restore again, got %d restores", got)
	}
}

func TestAcquire_RestoreTimeout(t *testing.T) {
	tm := newTestManager(t, func(c *Config) { c.RestoreTimeout = 50 * time.Millisecond })
	tm.restorer.gate = make(chan struct{})
	defer close(tm.restorer.gate)

	_, err := tm.Acquire(context.Background(), "slow")
	var restoreErr *RestoreError
	if !errors.As(err, &restoreErr) {
		t.Fatalf("Expected RestoreError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded in chain, got %v", err)
	}
	if tm.Len() != 0 {
		t.Errorf("Expected no active replicas, got %d", tm.Len())
	}
}

func TestAcquire_NoSnapshotAfterTimeoutIsFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.RestoreTimeout = 20 * time.Millisecond
	spawner := newFakeSpawner()

	m, err := NewManager(cfg, restorerFunc(func(ctx context.Context, _ Target) error {
		<-ctx.Done()
		return ErrNoSnapshot
	}), spawner, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown(context.Background())

	_, err = m.Acquire(context.Background(), "late")
	var restoreErr *RestoreError
	if !errors.As(err, &restoreErr) {
		t.Fatalf("Expected RestoreError, got %v", err)
	}
	if errors.Is(err, ErrNoSnapshot) {
		t.Error("A timed-out restore must not be treated as an empty tenant")
	}
}

type restorerFunc func(ctx context.Context, target Target) error

func (f restorerFunc) Restore(ctx context.Context, target Target) error { return f(ctx, target) }

func TestAcquire_CallerCancelDoesNotAbortColdStart(t *testing.T) {
	tm := newTestManager(t)
	tm.restorer.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := tm.Acquire(ctx, "acme")
		errCh <- err
	}()

	waitFor(t, "restore to start", func() bool { return tm.restorer.count("acme") == 1 })
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	close(tm.restorer.gate)
	waitFor(t, "replica to become active", func() bool { return tm.Len() == 1 })

	if _, err := tm.Acquire(context.Background(), "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if got := tm.restorer.count("acme"); got != 1 {
		t.Errorf("Expected the cancelled caller's cold start to be reused, got %d restores", got)
	}
}

func TestAcquire_SpawnFailure(t *testing.T) {
	tm := newTestManager(t)
	tm.spawner.err = errors.New("exec: \"litestream\": executable file not found in $PATH")

	_, err := tm.Acquire(context.Background(), "acme")
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("Expected SpawnError, got %v", err)
	}
	if spawnErr.TenantID != "acme" {
		t.Errorf("Expected tenant acme, got %q", spawnErr.TenantID)
	}
	if tm.Len() != 0 {
		t.Errorf("Expected no active replicas, got %d", tm.Len())
	}
}

func TestAcquire_InvalidTenant(t *testing.T) {
	tm := newTestManager(t)

	for _, id := range []string{"", "../etc", "a/b", ".hidden", "has space"} {
		if _, err := tm.Acquire(context.Background(), id); !errors.Is(err, ErrInvalidTenant) {
			t.Errorf("Acquire(%q): expected ErrInvalidTenant, got %v", id, err)
		}
	}
	if got := len(tm.restorer.calls); got != 0 {
		t.Errorf("Expected no restores for invalid tenants, got %d", got)
	}
}

func TestAcquire_RemovesStaleLocalFiles(t *testing.T) {
	tm := newTestManager(t)
	path := filepath.Join(tm.dir, "acme.db")

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.WriteFile(path+suffix, []byte("stale"), 0o600); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	if _, err := tm.Acquire(context.Background(), "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if _, err := os.Stat(path + suffix); !os.IsNotExist(err) {
			t.Errorf("Expected stale %s to be removed before restore", path+suffix)
		}
	}
}

func TestAcquire_UnexpectedExitMakesTenantCold(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	if _, err := tm.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	tm.spawner.lastHandle(t, "acme").exit()

	waitFor(t, "crashed replica to be removed", func() bool { return tm.Len() == 0 })

	if _, err := tm.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire after crash failed: %v", err)
	}
	if got := tm.spawner.count("acme"); got != 2 {
		t.Errorf("Expected a fresh spawn after crash, got %d spawns", got)
	}
}

func TestEvictIdle_EvictsStaleTenant(t *testing.T) {
	tm := newTestManager(t)
	tm.restorer.snapshot = true
	ctx := context.Background()

	path, err := tm.Acquire(ctx, "beta")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	handle := tm.spawner.lastHandle(t, "beta")

	tm.clock.Advance(10 * time.Minute)

	if n := tm.EvictIdle(5 * time.Minute); n != 1 {
		t.Fatalf("Expected 1 eviction, got %d", n)
	}
	if _, ok := tm.Lookup("beta"); ok {
		t.Error("beta should not be active after eviction")
	}
	if handle.signalCount() == 0 {
		t.Error("Expected the replication process to be signalled")
	}

	tm.waitDrained(t)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected evicted database to be deleted, stat err = %v", err)
	}

	if _, err := tm.Acquire(ctx, "beta"); err != nil {
		t.Fatalf("Acquire after eviction failed: %v", err)
	}
	if got := tm.restorer.count("beta"); got != 2 {
		t.Errorf("Expected cold path to restore again, got %d restores", got)
	}
	if got := tm.spawner.count("beta"); got != 2 {
		t.Errorf("Expected cold path to spawn again, got %d spawns", got)
	}
	if tm.spawner.overlapCount() != 0 {
		t.Error("Two replication processes were alive for one tenant")
	}
}

func TestEvictIdle_RecentTenantsSurvive(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	for _, id := range []string{"idle", "busy"} {
		if _, err := tm.Acquire(ctx, id); err != nil {
			t.Fatalf("Acquire(%s) failed: %v", id, err)
		}
	}

	tm.clock.Advance(4 * time.Minute)
	if _, err := tm.Acquire(ctx, "busy"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	tm.clock.Advance(2 * time.Minute)

	if n := tm.EvictIdle(5 * time.Minute); n != 1 {
		t.Fatalf("Expected 1 eviction, got %d", n)
	}
	if _, ok := tm.Lookup("busy"); !ok {
		t.Error("Recently accessed tenant should not be evicted")
	}
	if _, ok := tm.Lookup("idle"); ok {
		t.Error("Idle tenant should be evicted")
	}
	if got := tm.spawner.lastHandle(t, "busy").signalCount(); got != 0 {
		t.Errorf("Recently accessed tenant's process was signalled %d times", got)
	}
}

func TestEvictIdle_FailureIsIsolatedPerTenant(t *testing.T) {
	tm := newTestManager(t)
	tm.restorer.snapshot = true
	ctx := context.Background()

	pathA, err := tm.Acquire(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Acquire(a) failed: %v", err)
	}
	pathB, err := tm.Acquire(ctx, "tenant-b")
	if err != nil {
		t.Fatalf("Acquire(b) failed: %v", err)
	}

	// A non-empty directory where tenant A's WAL sidecar lives makes its
	// deletion fail.
	if err := os.Mkdir(pathA+"-wal", 0o750); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pathA+"-wal", "pin"), nil, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tm.clock.Advance(time.Hour)
	if n := tm.EvictIdle(time.Minute); n != 2 {
		t.Fatalf("Expected 2 evictions, got %d", n)
	}
	tm.waitDrained(t)

	if _, err := os.Stat(pathB); !os.IsNotExist(err) {
		t.Errorf("Tenant B should be fully evicted despite tenant A failing, stat err = %v", err)
	}
	if _, err := os.Stat(pathA + "-wal"); err != nil {
		t.Errorf("Expected tenant A's undeletable sidecar to remain, got %v", err)
	}
	if tm.Len() != 0 {
		t.Errorf("Expected no active replicas, got %d", tm.Len())
	}
}

func TestEvictIdle_SignalFailureStillEvicts(t *testing.T) {
	tm := newTestManager(t)
	tm.spawner.signalErr = errors.New("operation not permitted")
	ctx := context.Background()

	if _, err := tm.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	handle := tm.spawner.lastHandle(t, "acme")

	tm.clock.Advance(time.Hour)
	if n := tm.EvictIdle(time.Minute); n != 1 {
		t.Fatalf("Expected 1 eviction, got %d", n)
	}

	// The drain waits out the grace period, then kills.
	if err := tm.clock.WaitAdvance(time.Second, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance failed: %v", err)
	}
	tm.waitDrained(t)

	if !handle.wasKilled() {
		t.Error("Expected process to be killed after the grace period")
	}
}

func TestEvict_KillsAfterGrace(t *testing.T) {
	tm := newTestManager(t)
	tm.spawner.ignoreInterrupt = true
	ctx := context.Background()

	if _, err := tm.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	handle := tm.spawner.lastHandle(t, "acme")

	if !tm.Evict("acme") {
		t.Fatal("Expected Evict to report the tenant as active")
	}
	if tm.Evict("acme") {
		t.Error("Second Evict should report the tenant as inactive")
	}
	if handle.wasKilled() {
		t.Fatal("Process should not be killed before the grace period")
	}

	if err := tm.clock.WaitAdvance(time.Second, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance failed: %v", err)
	}
	tm.waitDrained(t)

	if !handle.wasKilled() {
		t.Error("Expected process to be killed after the grace period")
	}
}

func TestAcquire_WaitsForDrainingEviction(t *testing.T) {
	tm := newTestManager(t)
	tm.spawner.ignoreInterrupt = true
	ctx := context.Background()

	if _, err := tm.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	tm.Evict("acme")

	done := make(chan error, 1)
	go func() {
		_, err := tm.Acquire(ctx, "acme")
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Acquire returned before the old process drained: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if got := tm.restorer.count("acme"); got != 1 {
		t.Errorf("Restore started while the old process was alive (%d restores)", got)
	}

	if err := tm.clock.WaitAdvance(time.Second, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if tm.spawner.overlapCount() != 0 {
		t.Error("Two replication processes were alive for one tenant")
	}
	tm.spawner.lastHandle(t, "acme").exit()
}

func TestShutdown_SignalsWithoutDeleting(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	restorer := newFakeRestorer()
	restorer.snapshot = true
	spawner := newFakeSpawner()

	m, err := NewManager(testConfig(dir), restorer, spawner, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	ctx := context.Background()
	var paths []string
	for _, id := range []string{"acme", "beta"} {
		p, err := m.Acquire(ctx, id)
		if err != nil {
			t.Fatalf("Acquire(%s) failed: %v", id, err)
		}
		paths = append(paths, p)
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Expected empty active set after shutdown, got %d", m.Len())
	}
	for _, id := range []string{"acme", "beta"} {
		if spawner.lastHandle(t, id).signalCount() == 0 {
			t.Errorf("Expected %s process to be signalled", id)
		}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Shutdown must keep local files, stat %s: %v", p, err)
		}
	}

	if _, err := m.Acquire(ctx, "acme"); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Expected ErrManagerClosed after shutdown, got %v", err)
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Second Shutdown should be a no-op, got %v", err)
	}

	// A new process over the same directory cold-starts normally.
	restarted := newFakeRestorer()
	m2, err := NewManager(testConfig(dir), restarted, newFakeSpawner(), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := m2.Acquire(ctx, "acme"); err != nil {
		t.Fatalf("Acquire after restart failed: %v", err)
	}
	if got := restarted.count("acme"); got != 1 {
		t.Errorf("Expected a fresh restore after restart, got %d", got)
	}
	if err := m2.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestShutdown_KillsOnTimeout(t *testing.T) {
	tm := newTestManager(t)
	tm.spawner.ignoreInterrupt = true

	if _, err := tm.Acquire(context.Background(), "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	handle := tm.spawner.lastHandle(t, "acme")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tm.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}
	if !handle.wasKilled() {
		t.Error("Expected lingering process to be killed")
	}
}

func TestShutdown_AbortsInFlightRestore(t *testing.T) {
	tm := newTestManager(t)
	tm.restorer.gate = make(chan struct{})
	defer close(tm.restorer.gate)

	errCh := make(chan error, 1)
	go func() {
		_, err := tm.Acquire(context.Background(), "acme")
		errCh <- err
	}()
	waitFor(t, "restore to start", func() bool { return tm.restorer.count("acme") == 1 })

	if err := tm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrManagerClosed) {
			t.Errorf("Expected ErrManagerClosed for aborted restore, got %v", err)
		}
		var restoreErr *RestoreError
		if errors.As(err, &restoreErr) {
			t.Errorf("Shutdown abort should not surface as a restore failure: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight Acquire did not return after shutdown")
	}
	if got := tm.spawner.count("acme"); got != 0 {
		t.Errorf("Expected no spawn after shutdown, got %d", got)
	}
}

func TestShutdown_KillsProcessSpawnedDuringShutdown(t *testing.T) {
	tm := newTestManager(t)
	tm.spawner.gate = make(chan struct{})
	tm.spawner.ignoreInterrupt = true

	errCh := make(chan error, 1)
	go func() {
		_, err := tm.Acquire(context.Background(), "acme")
		errCh <- err
	}()
	waitFor(t, "spawn to start", func() bool { return tm.spawner.waitingCount() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- tm.Shutdown(ctx) }()

	waitFor(t, "shutdown to begin", tm.isClosed)
	close(tm.spawner.gate)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrManagerClosed) {
			t.Errorf("Expected ErrManagerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire did not return")
	}

	select {
	case err := <-shutdownErr:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected Shutdown to wait for the late process and time out, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	handle := tm.spawner.lastHandle(t, "acme")
	if handle.signalCount() == 0 {
		t.Error("Expected late process to be interrupted")
	}
	waitFor(t, "late process to be killed", handle.wasKilled)
	if tm.Len() != 0 {
		t.Errorf("Expected no active replicas, got %d", tm.Len())
	}
}

func TestAcquire_ColdStartsAreIndependentAcrossTenants(t *testing.T) {
	tm := newTestManager(t)

	// Release the gates before waiting for the slow callers.
	var wg sync.WaitGroup
	defer wg.Wait()
	var gates []chan struct{}
	for _, id := range []string{"slow1", "slow2", "slow3", "slow4", "slow5"} {
		gates = append(gates, tm.restorer.block(id))
	}
	defer func() {
		for _, g := range gates {
			close(g)
		}
	}()

	for _, id := range []string{"slow1", "slow2", "slow3", "slow4", "slow5"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = tm.Acquire(context.Background(), id)
		}(id)
	}
	waitFor(t, "slow restores to start", func() bool {
		for _, id := range []string{"slow1", "slow2", "slow3", "slow4", "slow5"} {
			if tm.restorer.count(id) != 1 {
				return false
			}
		}
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	path, err := tm.Acquire(ctx, "fast")
	if err != nil {
		t.Fatalf("Cold start for an unrelated tenant was held up: %v", err)
	}
	if path != filepath.Join(tm.dir, "fast.db") {
		t.Errorf("Unexpected path %q", path)
	}
	if _, ok := tm.Lookup("slow1"); ok {
		t.Error("slow1 should still be restoring")
	}
}

func TestAcquire_RestoreLimitQueuesWithoutConsumingTimeout(t *testing.T) {
	tm := newTestManager(t, func(c *Config) {
		c.MaxConcurrentRestores = 1
		c.RestoreTimeout = 200 * time.Millisecond
	})
	gate := tm.restorer.block("slow")
	defer close(gate)

	slowErr := make(chan error, 1)
	go func() {
		_, err := tm.Acquire(context.Background(), "slow")
		slowErr <- err
	}()
	waitFor(t, "slow restore to start", func() bool { return tm.restorer.count("slow") == 1 })

	// The queued tenant gives up waiting; its flight stays queued.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := tm.Acquire(ctx, "fast"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected caller deadline while queued, got %v", err)
	}
	if got := tm.restorer.count("fast"); got != 0 {
		t.Fatalf("Expected queued restore not to run yet, got %d", got)
	}

	// The slow restore times out and frees the slot. The queued restore
	// then gets its own full timeout.
	var restoreErr *RestoreError
	if err := <-slowErr; !errors.As(err, &restoreErr) {
		t.Fatalf("Expected slow tenant to time out, got %v", err)
	}
	path, err := tm.Acquire(context.Background(), "fast")
	if err != nil {
		t.Fatalf("Queued cold start failed: %v", err)
	}
	if path != filepath.Join(tm.dir, "fast.db") {
		t.Errorf("Unexpected path %q", path)
	}
	if got := tm.restorer.count("fast"); got != 1 {
		t.Errorf("Expected exactly 1 restore for fast, got %d", got)
	}
}

func TestManager_EvictionLoopUsesClock(t *testing.T) {
	tm := newTestManager(t, func(c *Config) {
		c.ScanInterval = time.Minute
		c.IdleTimeout = 5 * time.Minute
	})
	if _, err := tm.Acquire(context.Background(), "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := tm.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer tm.Stop()

	// First scan at +4m: idle for 4m, still under the threshold.
	if err := tm.clock.WaitAdvance(4*time.Minute, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance failed: %v", err)
	}
	// The loop re-arms its timer after the scan; the next one sees 6m idle.
	if err := tm.clock.WaitAdvance(2*time.Minute, time.Second, 1); err != nil {
		t.Fatalf("WaitAdvance failed: %v", err)
	}
	waitFor(t, "second scan to evict idle tenant", func() bool { return tm.Len() == 0 })
}

func TestManager_StartStop(t *testing.T) {
	tm := newTestManager(t, func(c *Config) {
		c.ScanInterval = 10 * time.Millisecond
		c.IdleTimeout = 5 * time.Minute
	})

	if tm.IsRunning() {
		t.Error("Manager loop should not be running before Start")
	}
	if err := tm.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !tm.IsRunning() {
		t.Error("Manager loop should be running after Start")
	}
	// Second start is a no-op
	if err := tm.Start(context.Background()); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	if _, err := tm.Acquire(context.Background(), "acme"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	tm.clock.Advance(10 * time.Minute)
	waitFor(t, "scan tick to evict idle tenant", func() bool { return tm.Len() == 0 })

	tm.Stop()
	if tm.IsRunning() {
		t.Error("Manager loop should not be running after Stop")
	}
	// Stop is idempotent
	tm.Stop()
}

func TestManager_StartAfterShutdown(t *testing.T) {
	tm := newTestManager(t)
	if err := tm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := tm.Start(context.Background()); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Expected ErrManagerClosed, got %v", err)
	}
	if n := tm.EvictIdle(0); n != 0 {
		t.Errorf("Expected no evictions after shutdown, got %d", n)
	}
}

func TestManager_Active(t *testing.T) {
	tm := newTestManager(t)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if _, err := tm.Acquire(ctx, id); err != nil {
			t.Fatalf("Acquire(%s) failed: %v", id, err)
		}
	}

	active := tm.Active()
	if len(active) != 3 {
		t.Fatalf("Expected 3 active replicas, got %d", len(active))
	}
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if active[i].TenantID != want {
			t.Errorf("Active()[%d] = %q, want %q", i, active[i].TenantID, want)
		}
		if active[i].ReplicaURL != "s3://tenants/"+want {
			t.Errorf("Unexpected replica URL %q", active[i].ReplicaURL)
		}
		if active[i].PID == 0 {
			t.Errorf("Expected PID for %s", want)
		}
	}
}

func TestNewManager_Validation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		cfg      Config
		restorer Restorer
		spawner  Spawner
	}{
		{"missing restorer", testConfig(dir), nil, newFakeSpawner()},
		{"missing spawner", testConfig(dir), newFakeRestorer(), nil},
		{"missing data dir", Config{}, newFakeRestorer(), newFakeSpawner()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg, tt.restorer, tt.spawner); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	m, err := NewManager(Config{Layout: Layout{DataDir: filepath.Join(t.TempDir(), "nested")}},
		newFakeRestorer(), newFakeSpawner(), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer m.Shutdown(context.Background())

	cfg := m.Config()
	if cfg.IdleTimeout != 10*time.Minute {
		t.Errorf("Expected default idle timeout 10m, got %v", cfg.IdleTimeout)
	}
	if cfg.MaxConcurrentRestores != 0 {
		t.Errorf("Expected no default restore limit, got %d", cfg.MaxConcurrentRestores)
	}
	if cfg.Layout.FileExtension != ".db" {
		t.Errorf("Expected default extension .db, got %q", cfg.Layout.FileExtension)
	}
	if _, err := os.Stat(cfg.Layout.DataDir); err != nil {
		t.Errorf("Expected data directory to be created: %v", err)
	}
}
