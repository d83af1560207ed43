// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package replica

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSnapshot is returned by a restore when the tenant has no replication
	// history yet. Acquire treats it as an empty database, not a failure.
	ErrNoSnapshot = errors.New("replica: no snapshot found")

	// ErrInvalidTenant is returned for tenant IDs that are empty or not path safe.
	ErrInvalidTenant = errors.New("replica: invalid tenant id")

	// ErrManagerClosed is returned by Acquire once Shutdown has started.
	ErrManagerClosed = errors.New("replica: manager is shut down")
)

// RestoreError reports a failed one-shot restore (storage outage, corrupt
// data, timeout). It is fatal to the Acquire call that triggered it.
type RestoreError struct {
	TenantID string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RestoreError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "replica: restore failed for tenant %q", e.TenantID)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(lastLine(stderr))
	}
	return b.String()
}

func (e *RestoreError) Unwrap() error { return e.Err }

// SpawnError reports that the replication subprocess could not be started.
// No entry is registered for the tenant when this is returned.
type SpawnError struct {
	TenantID string
	Err      error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("replica: spawn failed for tenant %q: %v", e.TenantID, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// EvictionError is a per-tenant failure during an eviction pass. These are
// logged and never returned to Acquire callers.
type EvictionError struct {
	TenantID string
	Op       string
	Err      error
}

func (e *EvictionError) Error() string {
	return fmt.Sprintf("replica: evict %q: %s: %v", e.TenantID, e.Op, e.Err)
}

func (e *EvictionError) Unwrap() error { return e.Err }

// lastLine returns the final non-empty line of multi-line tool output.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
