// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateReplica(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateSupervisor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got: %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got: %v", c.Server.Timeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got: %v", c.Server.ShutdownTimeout)
	}
	switch strings.ToLower(c.Server.Environment) {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got: %s", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateReplica() error {
	r := c.Replica
	if r.DataDir == "" {
		return fmt.Errorf("REPLICA_DATA_DIR is required")
	}
	if !filepath.IsAbs(r.DataDir) {
		return fmt.Errorf("REPLICA_DATA_DIR must be an absolute path, got: %s", r.DataDir)
	}
	if r.FileExtension != "" && (!strings.HasPrefix(r.FileExtension, ".") || strings.ContainsAny(r.FileExtension, `/\`)) {
		return fmt.Errorf("REPLICA_FILE_EXTENSION must start with '.' and contain no separators, got: %s", r.FileExtension)
	}

	if err := validateCommandLine(r.RestoreCommand, "REPLICA_RESTORE_COMMAND"); err != nil {
		return err
	}
	if err := validateCommandLine(r.ReplicateCommand, "REPLICA_REPLICATE_COMMAND"); err != nil {
		return err
	}

	replicaURL := c.EffectiveReplicaURL()
	if replicaURL == "" {
		return fmt.Errorf("REPLICA_URL is required unless OBJECT_STORE_ENABLED=true with a bucket")
	}
	if err := validateReplicaURL(replicaURL, "REPLICA_URL"); err != nil {
		return err
	}
	// The restore precheck lists the bucket; the tool must read the same place.
	if derived := c.bucketReplicaURL(); derived != "" && strings.TrimSuffix(replicaURL, "/") != derived {
		return fmt.Errorf("REPLICA_URL (%s) must match the object store location %s when OBJECT_STORE_ENABLED=true; unset it to derive it", replicaURL, derived)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"REPLICA_IDLE_TIMEOUT", r.IdleTimeout},
		{"REPLICA_SCAN_INTERVAL", r.ScanInterval},
		{"REPLICA_RESTORE_TIMEOUT", r.RestoreTimeout},
		{"REPLICA_TERMINATE_GRACE", r.TerminateGrace},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got: %v", d.name, d.value)
		}
	}
	if r.ScanInterval > r.IdleTimeout {
		return fmt.Errorf("REPLICA_SCAN_INTERVAL (%v) must not exceed REPLICA_IDLE_TIMEOUT (%v)", r.ScanInterval, r.IdleTimeout)
	}
	if r.MaxConcurrentRestores < 0 || r.MaxConcurrentRestores > 256 {
		return fmt.Errorf("REPLICA_MAX_CONCURRENT_RESTORES must be between 0 and 256, got: %d", r.MaxConcurrentRestores)
	}
	return nil
}

// validateCommandLine checks that line splits into at least a program name.
func validateCommandLine(line, fieldName string) error {
	words, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("%s is not a valid command line: %w", fieldName, err)
	}
	if len(words) == 0 {
		return fmt.Errorf("%s is required", fieldName)
	}
	if !strings.Contains(line, "{db}") {
		return fmt.Errorf("%s must reference the local database with {db}", fieldName)
	}
	return nil
}

func (c *Config) validateObjectStore() error {
	s := c.ObjectStore
	if !s.Enabled {
		return nil
	}
	if s.Bucket == "" {
		return fmt.Errorf("OBJECT_STORE_BUCKET is required when OBJECT_STORE_ENABLED=true")
	}
	if s.Endpoint != "" {
		if err := validateEndpointURL(s.Endpoint, "OBJECT_STORE_ENDPOINT"); err != nil {
			return err
		}
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("OBJECT_STORE_TIMEOUT must be positive, got: %v", s.Timeout)
	}
	if s.RequestsPerSecond < 0 {
		return fmt.Errorf("OBJECT_STORE_RPS must not be negative, got: %v", s.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	return c.validateCORS()
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 || c.Security.RateLimitReqs > 100000 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and 100000, got: %d", c.Security.RateLimitReqs)
	}
	if c.Security.RateLimitWindow < time.Second || c.Security.RateLimitWindow > time.Hour {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h, got: %v", c.Security.RateLimitWindow)
	}
	return nil
}

// validateCORS rejects wildcard origins in production.
func (c *Config) validateCORS() error {
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS must list explicit origins in production, wildcard '*' is not allowed")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports whether wildcard CORS is in use outside
// production, which is allowed but worth a startup warning.
func (c *Config) ShouldWarnAboutCORS() bool {
	return !c.IsProduction() && c.hasWildcardCORS()
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold < 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_THRESHOLD must not be negative, got: %v", c.Supervisor.FailureThreshold)
	}
	if c.Supervisor.FailureDecay < 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_DECAY must not be negative, got: %v", c.Supervisor.FailureDecay)
	}
	if c.Supervisor.FailureBackoff < 0 || c.Supervisor.ShutdownTimeout < 0 {
		return fmt.Errorf("supervisor durations must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}
	return nil
}
