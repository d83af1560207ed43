// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
	"github.com/pyrex41/medicare-portal-sub009/internal/objectstore"
	"github.com/pyrex41/medicare-portal-sub009/internal/replica"
)

// ErrObjectStoreDisabled is returned by snapshot endpoints when no bucket
// is configured.
var ErrObjectStoreDisabled = errors.New("object store is not configured")

// writeAcquireError maps a replica manager error to a response.
//
// Restore and spawn failures are transient from the client's point of view
// (nothing was recorded, the next request retries), so they are 503.
func writeAcquireError(rw *ResponseWriter, r *http.Request, err error) {
	var (
		restoreErr *replica.RestoreError
		spawnErr   *replica.SpawnError
	)

	switch {
	case errors.Is(err, replica.ErrInvalidTenant):
		rw.Error(http.StatusBadRequest, ErrCodeInvalidTenant, err.Error())
	case errors.Is(err, replica.ErrManagerClosed):
		rw.ServiceUnavailable(ErrCodeShuttingDown, "Server is shutting down")
	case errors.As(err, &restoreErr):
		logging.CtxErr(r.Context(), err).Int("exit_code", restoreErr.ExitCode).Msg("Tenant restore failed")
		rw.ServiceUnavailable(ErrCodeRestoreFailed, "Tenant database could not be restored, try again")
	case errors.As(err, &spawnErr):
		logging.CtxErr(r.Context(), err).Msg("Replication process failed to start")
		rw.ServiceUnavailable(ErrCodeSpawnFailed, "Tenant database replication could not start, try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; the cold start continues for the next caller.
		rw.ServiceUnavailable(ErrCodeServiceUnavailable, "Request cancelled while the tenant database was loading")
	default:
		logging.CtxErr(r.Context(), err).Msg("Acquire failed")
		rw.InternalError("Failed to load tenant database")
	}
}

// writeObjectStoreError maps an object store error to a response.
func writeObjectStoreError(rw *ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrObjectStoreDisabled):
		rw.Error(http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, objectstore.ErrUnavailable):
		rw.ServiceUnavailable(ErrCodeObjectStoreError, "Object store is temporarily unavailable")
	default:
		logging.CtxErr(r.Context(), err).Msg("Object store request failed")
		rw.Error(http.StatusBadGateway, ErrCodeObjectStoreError, "Object store request failed")
	}
}
