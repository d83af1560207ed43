// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package replica

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Placeholders recognised in command and replica URL templates.
const (
	PlaceholderTenant     = "{tenant}"
	PlaceholderDB         = "{db}"
	PlaceholderReplicaURL = "{replica_url}"
)

// Environment variables set on every replication subprocess.
const (
	EnvTenantID   = "TENANT_ID"
	EnvDBPath     = "DB_PATH"
	EnvReplicaURL = "REPLICA_URL"
)

// tenantIDPattern keeps tenant IDs usable as a single file name component.
// Dots and separators are excluded so two tenants can never map to one file.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidateTenantID reports whether id can be materialized as a local database.
func ValidateTenantID(id string) error {
	if !tenantIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, id)
	}
	return nil
}

// Target identifies one tenant's local database and its remote replica.
type Target struct {
	TenantID   string
	LocalPath  string
	ReplicaURL string
}

// replacer substitutes template placeholders for this target.
func (t Target) replacer() *strings.Replacer {
	return strings.NewReplacer(
		PlaceholderTenant, t.TenantID,
		PlaceholderDB, t.LocalPath,
		PlaceholderReplicaURL, t.ReplicaURL,
	)
}

// Env returns the variables passed to subprocesses serving this target.
func (t Target) Env() []string {
	return []string{
		EnvTenantID + "=" + t.TenantID,
		EnvDBPath + "=" + t.LocalPath,
		EnvReplicaURL + "=" + t.ReplicaURL,
	}
}

// Layout maps tenant IDs to local files and replica URLs.
// The mapping is pure so eviction and restore cycles stay idempotent
// across restarts.
type Layout struct {
	DataDir            string
	FileExtension      string
	ReplicaURLTemplate string
}

// LocalPath returns the scratch path for the tenant's database file.
func (l Layout) LocalPath(tenantID string) string {
	return filepath.Join(l.DataDir, tenantID+l.FileExtension)
}

// ReplicaURL returns the object storage location of the tenant's replica.
func (l Layout) ReplicaURL(tenantID string) string {
	return strings.ReplaceAll(l.ReplicaURLTemplate, PlaceholderTenant, tenantID)
}

// Target builds the full target for a tenant.
func (l Layout) Target(tenantID string) Target {
	return Target{
		TenantID:   tenantID,
		LocalPath:  l.LocalPath(tenantID),
		ReplicaURL: l.ReplicaURL(tenantID),
	}
}

// sidecarSuffixes are the SQLite files that live next to a database.
var sidecarSuffixes = []string{"", "-wal", "-shm"}

// removeLocalFiles deletes the database and its WAL/SHM sidecars.
// Missing files are not an error.
func removeLocalFiles(path string) error {
	var firstErr error
	for _, suffix := range sidecarSuffixes {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CommandTemplate is a shell-quoted command line with placeholders,
// e.g. `litestream restore -o {db} {replica_url}`.
type CommandTemplate struct {
	name string
	args []string
}

// ParseCommandTemplate splits a command line using shell quoting rules.
func ParseCommandTemplate(line string) (CommandTemplate, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return CommandTemplate{}, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(words) == 0 {
		return CommandTemplate{}, fmt.Errorf("parse command %q: empty command", line)
	}
	return CommandTemplate{name: words[0], args: words[1:]}, nil
}

// MustParseCommandTemplate is ParseCommandTemplate for static templates.
func MustParseCommandTemplate(line string) CommandTemplate {
	tmpl, err := ParseCommandTemplate(line)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// Name returns the executable of the template.
func (c CommandTemplate) Name() string { return c.name }

// Expand renders the template for a target.
func (c CommandTemplate) Expand(t Target) CommandSpec {
	r := t.replacer()
	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = r.Replace(a)
	}
	return CommandSpec{
		Name: r.Replace(c.name),
		Args: args,
		Env:  t.Env(),
	}
}

// String renders the template back into a shell-quoted line.
func (c CommandTemplate) String() string {
	return shellquote.Join(append([]string{c.name}, c.args...)...)
}

// CommandSpec is a fully expanded command ready to execute.
type CommandSpec struct {
	Name string
	Args []string
	// Env is appended to the server's own environment.
	Env []string
}
