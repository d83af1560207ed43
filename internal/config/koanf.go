// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/medicare-portal/config.yaml",
	"/etc/medicare-portal/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Environment:     "development",
		},
		Replica: ReplicaConfig{
			DataDir:               "/data/tenants",
			FileExtension:         ".db",
			RestoreCommand:        "litestream restore -if-replica-exists -o {db} {replica_url}",
			ReplicateCommand:      "litestream replicate {db} {replica_url}",
			IdleTimeout:           10 * time.Minute,
			ScanInterval:          time.Minute,
			RestoreTimeout:        5 * time.Minute,
			TerminateGrace:        10 * time.Second,
			MaxConcurrentRestores: 0,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:           false,
			Prefix:            "tenants",
			Region:            "us-east-1",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 20,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration in layers, later layers winning:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables listed in envMappings
func LoadWithKoanf() (*Config, error) {
	return loadFrom(findConfigFile())
}

func loadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a string.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"replica.no_snapshot_markers",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	"replica_data_dir":                "replica.data_dir",
	"replica_file_extension":          "replica.file_extension",
	"replica_url":                     "replica.replica_url",
	"replica_restore_command":         "replica.restore_command",
	"replica_replicate_command":       "replica.replicate_command",
	"replica_no_snapshot_markers":     "replica.no_snapshot_markers",
	"replica_idle_timeout":            "replica.idle_timeout",
	"replica_scan_interval":           "replica.scan_interval",
	"replica_restore_timeout":         "replica.restore_timeout",
	"replica_terminate_grace":         "replica.terminate_grace",
	"replica_max_concurrent_restores": "replica.max_concurrent_restores",

	"object_store_enabled":          "object_store.enabled",
	"object_store_bucket":           "object_store.bucket",
	"object_store_prefix":           "object_store.prefix",
	"object_store_region":           "object_store.region",
	"object_store_endpoint":         "object_store.endpoint",
	"object_store_force_path_style": "object_store.force_path_style",
	"object_store_timeout":          "object_store.timeout",
	"object_store_rps":              "object_store.requests_per_second",

	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable name to its koanf path,
// e.g. REPLICA_IDLE_TIMEOUT to replica.idle_timeout. Unknown names map to
// "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// FindFile returns the config file Load reads, or "" when there is none.
func FindFile() string {
	return findConfigFile()
}

// WatchLogLevel reloads the configuration whenever the file at path is
// written and hands the resulting log level to apply. Only the level is
// live; every other setting needs a restart. A file that fails to load or
// validate goes to onError and leaves the level unchanged. The returned
// function stops the watch.
func WatchLogLevel(path string, apply func(level string), onError func(error)) (func(), error) {
	provider := file.Provider(path)
	err := provider.Watch(func(_ any, err error) {
		if err != nil {
			onError(fmt.Errorf("watch %s: %w", path, err))
			return
		}
		cfg, err := loadFrom(path)
		if err != nil {
			onError(err)
			return
		}
		apply(cfg.Logging.Level)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch config file %s: %w", path, err)
	}
	return func() { _ = provider.Unwatch() }, nil
}
