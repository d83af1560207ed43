// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

// Package objectstore reads tenant replica listings from S3-compatible
// object storage.
//
// The replication tool owns the data in the bucket; this package only lists
// it. Listings back the snapshot endpoint, the readiness check, and
// PrecheckRestorer, which lets a cold start skip the restore tool for
// tenants that have never been replicated.
//
// Every call goes through a rate limiter and a gobreaker circuit breaker
// named "object-store". While the breaker is open calls fail immediately with
// ErrUnavailable.
//
// Each tenant lives under <prefix>/<tenant>/ in the bucket:
//
//	client, err := objectstore.New(ctx, objectstore.Config{
//	    Bucket:         "medicare-replicas",
//	    Prefix:         "tenants",
//	    Endpoint:       "http://minio:9000",
//	    ForcePathStyle: true,
//	})
//	objects, err := client.List(ctx, "acme")
package objectstore
