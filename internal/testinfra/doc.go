// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

// Package testinfra starts real backing services in Docker for integration
// tests, using testcontainers-go.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./internal/objectstore/...
//
// # MinIO
//
// StartMinIO runs an S3-compatible server so the object store client can be
// exercised against real ListObjectsV2 pagination and error responses:
//
//	func TestListAgainstMinIO(t *testing.T) {
//	    minio := testinfra.StartMinIO(t)
//	    minio.SetCredentialEnv(t)
//	    _ = minio.CreateBucket(ctx, "replicas")
//	    _ = minio.PutObject(ctx, "replicas", "tenants/acme/generations/0/snapshot", data)
//	    client, _ := objectstore.New(ctx, objectstore.Config{
//	        Bucket: "replicas", Prefix: "tenants",
//	        Endpoint: minio.Endpoint, ForcePathStyle: true,
//	    })
//	    ...
//	}
//
// Tests are skipped, not failed, when Docker is not reachable.
package testinfra
