// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package replica

import (
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
)

// Handle is exclusive ownership of a running replication subprocess.
// Only the Manager that spawned it may signal or wait on it.
type Handle interface {
	Pid() int
	Signal(sig os.Signal) error
	Kill() error
	// Wait blocks until the process exits and returns its exit error.
	// It may be called any number of times.
	Wait() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Spawner starts the continuous replication process for a target.
type Spawner interface {
	Spawn(target Target) (Handle, error)
}

// Process is a Handle backed by os/exec.
type Process struct {
	cmd    *exec.Cmd
	stdout *logging.LineWriter
	stderr *logging.LineWriter
	done   chan struct{}
	err    error
}

// StartProcess starts spec detached from any request context and pipes its
// output into logger line by line.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func StartProcess(spec CommandSpec, logger zerolog.Logger) (*Process, error) {
	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	// Bound Wait if a grandchild keeps the output pipes open.
	cmd.WaitDelay = 5 * time.Second

	p := &Process{
		cmd:    cmd,
		stdout: logging.NewLineWriter(logger.With().Str("stream", "stdout").Logger(), zerolog.InfoLevel),
		stderr: logging.NewLineWriter(logger.With().Str("stream", "stderr").Logger(), zerolog.InfoLevel),
		done:   make(chan struct{}),
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	p.err = p.cmd.Wait()
	p.stdout.Flush()
	p.stderr.Flush()
	close(p.done)
}

// Pid returns the operating system process ID.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Signal sends sig to the process. It returns os.ErrProcessDone once the
// process has exited.
func (p *Process) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

// Kill terminates the process immediately.
func (p *Process) Kill() error { return p.cmd.Process.Kill() }

// Wait implements Handle.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Done implements Handle.
func (p *Process) Done() <-chan struct{} { return p.done }

// ExecSpawner spawns the replicate command template as a child process.
type ExecSpawner struct {
	template CommandTemplate
}

// NewExecSpawner creates a Spawner for the given replicate command template.
func NewExecSpawner(template CommandTemplate) *ExecSpawner {
	return &ExecSpawner{template: template}
}

// Spawn implements Spawner.
func (s *ExecSpawner) Spawn(target Target) (Handle, error) {
	logger := logging.With().
		Str("component", "replica").
		Str("tenant_id", target.TenantID).
		Logger()

	p, err := StartProcess(s.template.Expand(target), logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}
