// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

// Package api provides the HTTP surface of the tenant database service.
//
// Every tenant-scoped request goes through the replica manager first: the
// handler calls Acquire with the tenant ID from the URL, which either returns
// the local path of an already active replica or restores the tenant's
// database from the object store and starts its replication process. Only
// then is the SQLite file opened.
//
// # Endpoints
//
//	GET    /api/v1/health/live                     process is up
//	GET    /api/v1/health/ready                    manager running, object store reachable
//	GET    /api/v1/replicas                        active replicas
//	GET    /api/v1/replicas/{tenantID}             one active replica
//	POST   /api/v1/replicas/{tenantID}/warm        acquire without touching data
//	DELETE /api/v1/replicas/{tenantID}             evict now
//	GET    /api/v1/replicas/{tenantID}/snapshots   replica objects in the bucket
//	GET    /api/v1/tenants/{tenantID}/contacts     list contacts
//	POST   /api/v1/tenants/{tenantID}/contacts     create a contact
//	GET    /api/v1/tenants/{tenantID}/contacts/{id}
//	GET    /metrics                                Prometheus exposition
//
// # Responses
//
// All JSON responses share the APIResponse envelope. Errors carry a machine
// readable code (INVALID_TENANT, RESTORE_FAILED, ...) and the request ID so
// that a failed call can be matched to its log lines.
package api
