// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

/*
Package config loads and validates server configuration.

Configuration is layered with koanf, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, else config.yaml / config.yml in the
    working directory, else /etc/medicare-portal/config.yaml
 3. Environment variables listed in envMappings

Only mapped environment variables are read, so unrelated variables never leak
into the configuration.

# Sections

  - server: HTTP listener and shutdown timeout
  - replica: scratch directory, replication tool commands and the idle,
    restore and terminate timings of the replica manager
  - object_store: optional S3-compatible bucket used to check for replicas
    before restoring and to list snapshots
  - security: rate limiting and CORS
  - logging: level, format, caller
  - supervisor: suture restart policy

# Environment Variables

Replica manager:
  - REPLICA_DATA_DIR: local scratch directory (default: /data/tenants)
  - REPLICA_URL: replica URL template with {tenant}, e.g. s3://bucket/tenants/{tenant}.
    Derived from the bucket when the object store is enabled; an explicit
    value must then match s3://<bucket>/<prefix>/{tenant}
  - REPLICA_RESTORE_COMMAND: restore command line (default: litestream restore ...)
  - REPLICA_REPLICATE_COMMAND: replicate command line (default: litestream replicate ...)
  - REPLICA_NO_SNAPSHOT_MARKERS: comma-separated stderr fragments meaning "no snapshot"
  - REPLICA_IDLE_TIMEOUT: evict after this long without access (default: 10m)
  - REPLICA_SCAN_INTERVAL: eviction scan period (default: 1m)
  - REPLICA_RESTORE_TIMEOUT: bound on one restore (default: 5m)
  - REPLICA_TERMINATE_GRACE: wait before killing an evicted process (default: 10s)
  - REPLICA_MAX_CONCURRENT_RESTORES: cap on restores in flight across tenants, 0 for none (default: 0)

Object store:
  - OBJECT_STORE_ENABLED, OBJECT_STORE_BUCKET, OBJECT_STORE_PREFIX
  - OBJECT_STORE_REGION, OBJECT_STORE_ENDPOINT, OBJECT_STORE_FORCE_PATH_STYLE
  - OBJECT_STORE_TIMEOUT, OBJECT_STORE_RPS

Credentials for the bucket come from the standard AWS chain
(AWS_ACCESS_KEY_ID, AWS_PROFILE, instance roles), not from this package.

Server, security and logging:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, SHUTDOWN_TIMEOUT, ENVIRONMENT
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT, CORS_ORIGINS
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Reloading

WatchLogLevel follows the config file and applies a changed logging.level
without a restart. Everything else is read once at startup.

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	layout := replica.Layout{
	    DataDir:            cfg.Replica.DataDir,
	    FileExtension:      cfg.Replica.FileExtension,
	    ReplicaURLTemplate: cfg.EffectiveReplicaURL(),
	}
*/
package config
