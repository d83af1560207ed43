// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

// Package tenantdb reads and writes one tenant's SQLite database.
//
// The file behind a DB is owned by the replica manager: it is restored from
// object storage on first use, streamed back by the replication tool while
// active and deleted on eviction. Handles are therefore short-lived. Open one
// per request with the path returned by replica.Manager.Acquire and close it
// before returning.
//
// Open applies the base agents/contacts schema with CREATE ... IF NOT EXISTS,
// so a brand-new tenant (no snapshot yet) gets usable tables and a restored
// tenant is left untouched.
package tenantdb
