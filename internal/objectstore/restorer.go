// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package objectstore

import (
	"context"

	"github.com/pyrex41/medicare-portal-sub009/internal/replica"
)

// PrecheckRestorer asks the bucket whether a tenant has any replica before
// running the wrapped restore. Brand-new tenants then skip the restore tool
// entirely, and a store outage fails fast instead of waiting on the tool.
type PrecheckRestorer struct {
	client *Client
	next   replica.Restorer
}

// NewPrecheckRestorer wraps next with an existence check against client.
func NewPrecheckRestorer(client *Client, next replica.Restorer) *PrecheckRestorer {
	return &PrecheckRestorer{client: client, next: next}
}

// Restore implements replica.Restorer.
func (r *PrecheckRestorer) Restore(ctx context.Context, target replica.Target) error {
	ok, err := r.client.HasReplica(ctx, target.TenantID)
	if err != nil {
		return &replica.RestoreError{TenantID: target.TenantID, Err: err}
	}
	if !ok {
		return replica.ErrNoSnapshot
	}
	return r.next.Restore(ctx, target)
}
