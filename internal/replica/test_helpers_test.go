// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package replica

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/rs/zerolog"
)

// fakeRestorer records restore calls and optionally writes a restored file.
type fakeRestorer struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]error

	// snapshot makes successful restores create the database file.
	snapshot bool

	// gate, when set, blocks every restore until it is closed or ctx ends.
	gate chan struct{}

	// gates block restores for single tenants and take precedence over gate.
	gates map[string]chan struct{}
}

func newFakeRestorer() *fakeRestorer {
	return &fakeRestorer{
		calls: make(map[string]int),
		errs:  make(map[string]error),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeRestorer) Restore(ctx context.Context, target Target) error {
	f.mu.Lock()
	f.calls[target.TenantID]++
	err := f.errs[target.TenantID]
	gate := f.gate
	if g, ok := f.gates[target.TenantID]; ok {
		gate = g
	}
	snapshot := f.snapshot
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return &RestoreError{TenantID: target.TenantID, Err: ctx.Err()}
		}
	}
	if err != nil {
		return err
	}
	if !snapshot {
		return ErrNoSnapshot
	}
	return os.WriteFile(target.LocalPath, []byte("restored"), 0o600)
}

func (f *fakeRestorer) setErr(tenantID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, tenantID)
		return
	}
	f.errs[tenantID] = err
}

// block holds tenantID's restores until the returned channel is closed.
func (f *fakeRestorer) block(tenantID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[tenantID] = gate
	return gate
}

func (f *fakeRestorer) count(tenantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tenantID]
}

// fakeHandle is a process that exits when signalled unless told otherwise.
type fakeHandle struct {
	pid     int
	spawner *fakeSpawner
	tenant  string

	ignoreInterrupt bool
	signalErr       error

	mu      sync.Mutex
	signals []os.Signal
	killed  bool

	once sync.Once
	done chan struct{}
}

func (h *fakeHandle) Pid() int { return h.pid }

func (h *fakeHandle) Signal(sig os.Signal) error {
	h.mu.Lock()
	h.signals = append(h.signals, sig)
	h.mu.Unlock()

	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}
	if h.signalErr != nil {
		return h.signalErr
	}
	if !h.ignoreInterrupt {
		h.exit()
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()
	h.exit()
	return nil
}

func (h *fakeHandle) Wait() error {
	<-h.done
	return nil
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

// exit simulates the process terminating on its own.
func (h *fakeHandle) exit() {
	h.once.Do(func() {
		h.spawner.exited(h.tenant)
		close(h.done)
	})
}

func (h *fakeHandle) signalCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.signals)
}

func (h *fakeHandle) wasKilled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}

// fakeSpawner hands out fakeHandles and tracks how many are alive per tenant.
type fakeSpawner struct {
	mu       sync.Mutex
	nextPid  int
	spawns   map[string]int
	live     map[string]int
	overlaps int
	handles  map[string][]*fakeHandle
	err      error

	ignoreInterrupt bool
	signalErr       error

	// gate, when set, holds every Spawn call until it is closed.
	gate    chan struct{}
	waiting int
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		nextPid: 1000,
		spawns:  make(map[string]int),
		live:    make(map[string]int),
		handles: make(map[string][]*fakeHandle),
	}
}

func (s *fakeSpawner) Spawn(target Target) (Handle, error) {
	s.mu.Lock()
	gate := s.gate
	if gate != nil {
		s.waiting++
	}
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	s.nextPid++
	s.spawns[target.TenantID]++
	if s.live[target.TenantID] > 0 {
		s.overlaps++
	}
	s.live[target.TenantID]++

	h := &fakeHandle{
		pid:             s.nextPid,
		spawner:         s,
		tenant:          target.TenantID,
		ignoreInterrupt: s.ignoreInterrupt,
		signalErr:       s.signalErr,
		done:            make(chan struct{}),
	}
	s.handles[target.TenantID] = append(s.handles[target.TenantID], h)
	return h, nil
}

func (s *fakeSpawner) exited(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[tenantID]--
}

func (s *fakeSpawner) count(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawns[tenantID]
}

func (s *fakeSpawner) waitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

func (s *fakeSpawner) overlapCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps
}

func (s *fakeSpawner) lastHandle(t *testing.T, tenantID string) *fakeHandle {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := s.handles[tenantID]
	if len(hs) == 0 {
		t.Fatalf("no process spawned for %q", tenantID)
	}
	return hs[len(hs)-1]
}

// testManager bundles a Manager with its fakes.
type testManager struct {
	*Manager
	restorer *fakeRestorer
	spawner  *fakeSpawner
	clock    *testclock.Clock
	dir      string
}

func testConfig(dir string) Config {
	cfg := DefaultConfig(Layout{
		DataDir:            dir,
		FileExtension:      ".db",
		ReplicaURLTemplate: "s3://tenants/{tenant}",
	})
	cfg.TerminateGrace = time.Second
	cfg.RestoreTimeout = 5 * time.Second
	return cfg
}

func newTestManager(t *testing.T, mutate ...func(*Config)) *testManager {
	t.Helper()

	dir := t.TempDir()
	cfg := testConfig(dir)
	for _, fn := range mutate {
		fn(&cfg)
	}

	tm := &testManager{
		restorer: newFakeRestorer(),
		spawner:  newFakeSpawner(),
		clock:    testclock.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)),
		dir:      dir,
	}

	m, err := NewManager(cfg, tm.restorer, tm.spawner, WithClock(tm.clock), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	tm.Manager = m

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Shutdown failed: %v", err)
		}
	})
	return tm
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// isClosed reports whether Shutdown has begun.
func (tm *testManager) isClosed() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.closed
}

// waitDrained blocks until every eviction in flight has finished.
func (tm *testManager) waitDrained(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		tm.drains.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for evictions to drain")
	}
}

var errStorageOutage = errors.New("dial tcp 10.0.0.5:443: connection refused")
