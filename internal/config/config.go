// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package config

import (
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Replica     ReplicaConfig     `koanf:"replica"`
	ObjectStore ObjectStoreConfig `koanf:"object_store"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds the replica manager drain after a signal.
	// Default: 30s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Environment is "development", "staging" or "production".
	// Default: development
	Environment string `koanf:"environment"`
}

// ReplicaConfig controls where tenant databases live and how the
// replication tool is driven.
type ReplicaConfig struct {
	// DataDir is the scratch directory holding local tenant files.
	// Default: /data/tenants
	DataDir string `koanf:"data_dir"`

	// FileExtension is appended to the tenant ID to form the file name.
	// Default: .db
	FileExtension string `koanf:"file_extension"`

	// ReplicaURL is the remote location with a {tenant} placeholder.
	// When empty and the object store is enabled it is derived from the
	// bucket and prefix. With the store enabled an explicit value must
	// equal the derived one.
	ReplicaURL string `koanf:"replica_url"`

	// RestoreCommand is the one-shot restore command line. It may use
	// {tenant}, {db} and {replica_url}.
	// Default: litestream restore -if-replica-exists -o {db} {replica_url}
	RestoreCommand string `koanf:"restore_command"`

	// ReplicateCommand is the long-running replication command line.
	// Default: litestream replicate {db} {replica_url}
	ReplicateCommand string `koanf:"replicate_command"`

	// NoSnapshotMarkers are stderr fragments meaning "nothing to restore".
	// Empty keeps the built-in markers.
	NoSnapshotMarkers []string `koanf:"no_snapshot_markers"`

	IdleTimeout           time.Duration `koanf:"idle_timeout"`
	ScanInterval          time.Duration `koanf:"scan_interval"`
	RestoreTimeout        time.Duration `koanf:"restore_timeout"`
	TerminateGrace        time.Duration `koanf:"terminate_grace"`
	MaxConcurrentRestores int           `koanf:"max_concurrent_restores"`
}

// ObjectStoreConfig describes the S3-compatible bucket holding replicas.
// It is optional: without it restores go straight to the replication tool.
type ObjectStoreConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Bucket         string        `koanf:"bucket"`
	Prefix         string        `koanf:"prefix"`
	Region         string        `koanf:"region"`
	Endpoint       string        `koanf:"endpoint"`
	ForcePathStyle bool          `koanf:"force_path_style"`
	Timeout        time.Duration `koanf:"timeout"`

	// RequestsPerSecond caps listing calls. Zero is unlimited.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// SecurityConfig holds request limiting and CORS settings.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// SupervisorConfig holds suture restart policy settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Load reads configuration from defaults, an optional file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// EffectiveReplicaURL returns the replica URL template, deriving it from
// the object store settings when none is configured.
func (c *Config) EffectiveReplicaURL() string {
	if c.Replica.ReplicaURL != "" {
		return c.Replica.ReplicaURL
	}
	return c.bucketReplicaURL()
}

// bucketReplicaURL is the replica URL the object store client lists under,
// or "" when the store is off.
func (c *Config) bucketReplicaURL() string {
	if !c.ObjectStore.Enabled || c.ObjectStore.Bucket == "" {
		return ""
	}
	prefix := strings.Trim(c.ObjectStore.Prefix, "/")
	if prefix == "" {
		return "s3://" + c.ObjectStore.Bucket + "/{tenant}"
	}
	return "s3://" + c.ObjectStore.Bucket + "/" + prefix + "/{tenant}"
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
