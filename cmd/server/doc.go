// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

/*
Package main is the entry point for the Medicare Portal tenant database server.

Each agency (tenant) of the portal has its own SQLite database. The databases
live in object storage and are continuously replicated there by an external
tool (Litestream by default). This server keeps no tenant database on local
disk until a request needs it: the first request for a tenant restores the
database from its replica and starts a replication process for it, later
requests reuse the local copy, and tenants that go quiet are evicted.

# Application Architecture

Services run under a Suture v4 supervisor tree:

	RootSupervisor ("medicare-portal")
	├── DataSupervisor ("data-layer")
	│   └── Replica reaper (idle eviction loop)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

Startup order:

 1. Configuration: Koanf v2 layering defaults, an optional YAML file and
    environment variables
 2. Logging: zerolog, JSON by default
 3. Object store client (optional): S3 listing used to skip restores for
    tenants with no replica and to report stored snapshots
 4. Replica manager: restore and replicate command templates, local layout
 5. Supervisor tree: reaper and HTTP server

# Configuration

The most common environment variables:

	HTTP_PORT              listen port (default 8080)
	REPLICA_DATA_DIR       local directory for tenant files (default /data/tenants)
	REPLICA_URL            replica URL template containing {tenant}
	REPLICA_IDLE_TIMEOUT   eviction threshold (default 10m)
	OBJECT_STORE_ENABLED   derive REPLICA_URL from OBJECT_STORE_BUCKET and list replicas
	OBJECT_STORE_BUCKET    bucket holding tenant replicas
	CORS_ORIGINS           comma separated allowed origins
	LOG_LEVEL, LOG_FORMAT  logging

A config file is read from CONFIG_PATH or /etc/medicare-portal/config.yaml.

# Signal Handling

On SIGINT or SIGTERM the HTTP server stops accepting requests and drains,
the eviction loop stops, and every replication process is interrupted so it
can flush its last changes. Local database files are left in place.

# Example Usage

	export REPLICA_URL='s3://medicare-replicas/tenants/{tenant}'
	export REPLICA_DATA_DIR=/var/lib/medicare-portal
	./server

	curl -X POST localhost:8080/api/v1/replicas/acme/warm
	curl localhost:8080/api/v1/tenants/acme/contacts?limit=20
*/
package main
