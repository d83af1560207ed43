// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

// Package replica keeps per-tenant SQLite databases on local disk only while
// they are in use, with object storage as the durable copy.
//
// Every tenant owns one database file. A tenant is "hot" when its file exists
// locally and a continuous replication process is streaming its changes to
// object storage, and "cold" otherwise. Cold tenants are materialized on the
// first request and dematerialized after a period of inactivity.
//
// # Lifecycle
//
//	cold ──Acquire──> restore ──> spawn ──> hot
//	 ^                                       │
//	 └──── drain + delete <── interrupt <── EvictIdle / Evict
//
// Shutdown interrupts every process and forgets every entry but leaves the
// files in place. The next process start cold-starts tenants again and
// discards those files before restoring.
//
// # Components
//
//   - Manager: the tenant table, cold-start coordination and eviction
//   - CommandRunner: runs one-shot tool invocations and classifies failures
//   - ToolRestorer: a Restorer built from a restore command template
//   - ExecSpawner: a Spawner built from a replicate command template
//   - Layout: pure mapping from tenant ID to local path and replica URL
//
// # Usage
//
//	restore, _ := replica.ParseCommandTemplate("litestream restore -if-replica-exists -o {db} {replica_url}")
//	replicate, _ := replica.ParseCommandTemplate("litestream replicate {db} {replica_url}")
//
//	mgr, err := replica.NewManager(
//	    replica.DefaultConfig(replica.Layout{
//	        DataDir:            "/scratch",
//	        FileExtension:      ".db",
//	        ReplicaURLTemplate: "s3://bucket/tenants/{tenant}",
//	    }),
//	    replica.NewToolRestorer(replica.NewCommandRunner(nil), restore),
//	    replica.NewExecSpawner(replicate),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Shutdown(context.Background())
//
//	path, err := mgr.Acquire(ctx, "acme")
//
// Handlers must call Acquire on every request. The returned path is only
// valid until the tenant is next evicted.
//
// # Concurrency
//
// The hot path is a map lookup under a short mutex. Cold starts for the same
// tenant are coalesced with singleflight so concurrent first requests share
// one restore and one spawned process. Restores across tenants are bounded
// by a weighted semaphore. A tenant being evicted cannot be restored until
// its old process has exited and its files are gone.
//
// # Errors
//
//   - ErrNoSnapshot: the tenant has no replica yet; Acquire continues with an
//     empty database
//   - *RestoreError: restore failed; Acquire fails and nothing is registered
//   - *SpawnError: the replication process could not start
//   - *EvictionError: logged per tenant during eviction, never returned
package replica
