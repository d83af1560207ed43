// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package replica

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
)

// DefaultNoSnapshotMarkers are stderr fragments the replication tool prints
// when a replica has no history to restore from.
var DefaultNoSnapshotMarkers = []string{
	"no matching backups found",
	"no snapshots available",
	"no generation found",
}

// Output is the captured result of a one-shot command.
type Output struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// CommandRunner runs the replication tool for one-shot operations and
// classifies the outcome.
type CommandRunner struct {
	markers   []string
	waitDelay time.Duration
}

// NewCommandRunner creates a runner that treats any of markers in stderr of
// a failed command as ErrNoSnapshot. Nil markers select the defaults.
func NewCommandRunner(markers []string) *CommandRunner {
	if markers == nil {
		markers = DefaultNoSnapshotMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			lowered = append(lowered, strings.ToLower(m))
		}
	}
	return &CommandRunner{markers: lowered, waitDelay: 5 * time.Second}
}

// RunOneShot executes spec and waits for it to finish.
//
// Exit code 0 returns the captured output. A non-zero exit whose stderr
// contains a no-snapshot marker returns ErrNoSnapshot. Every other failure,
// including ctx expiring, returns a *RestoreError carrying stderr.
// Stderr is logged in every case.
func (r *CommandRunner) RunOneShot(ctx context.Context, tenantID string, spec CommandSpec) (Output, error) {
	logger := logging.With().
		Str("component", "replica").
		Str("tenant_id", tenantID).
		Str("command", spec.Name).
		Logger()

	var stdout, stderr bytes.Buffer
	stderrLog := logging.NewLineWriter(logger.With().Str("stream", "stderr").Logger(), zerolog.DebugLevel)

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Stdout = &stdout
	cmd.Stderr = io.MultiWriter(&stderr, stderrLog)
	cmd.WaitDelay = r.waitDelay

	start := time.Now()
	err := cmd.Run()
	stderrLog.Flush()

	out := Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		logger.Debug().Dur("duration", out.Duration).Msg("One-shot command finished")
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, &RestoreError{
			TenantID: tenantID,
			Stderr:   out.Stderr,
			Err:      fmt.Errorf("%s did not finish: %w", spec.Name, ctxErr),
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if r.isNoSnapshot(out.Stderr) {
			return out, ErrNoSnapshot
		}
		return out, &RestoreError{
			TenantID: tenantID,
			ExitCode: exitErr.ExitCode(),
			Stderr:   out.Stderr,
			Err:      err,
		}
	}

	// The command never ran, e.g. the executable is missing.
	return out, &RestoreError{TenantID: tenantID, Stderr: out.Stderr, Err: err}
}

func (r *CommandRunner) isNoSnapshot(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, m := range r.markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Restorer materializes a tenant's latest replicated state at its local path.
// Implementations return ErrNoSnapshot when there is nothing to restore.
type Restorer interface {
	Restore(ctx context.Context, target Target) error
}

// ToolRestorer restores by running the replication tool's restore command.
type ToolRestorer struct {
	runner   *CommandRunner
	template CommandTemplate
}

// NewToolRestorer creates a Restorer from a restore command template.
func NewToolRestorer(runner *CommandRunner, template CommandTemplate) *ToolRestorer {
	return &ToolRestorer{runner: runner, template: template}
}

// Restore implements Restorer.
func (t *ToolRestorer) Restore(ctx context.Context, target Target) error {
	_, err := t.runner.RunOneShot(ctx, target.TenantID, t.template.Expand(target))
	return err
}
