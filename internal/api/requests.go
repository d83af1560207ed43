// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/pyrex41/medicare-portal-sub009/internal/validation"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500

	// maxBodyBytes caps JSON request bodies.
	maxBodyBytes = 1 << 20
)

// PageRequest holds list pagination parameters.
type PageRequest struct {
	Limit  int `json:"limit" validate:"min=1,max=500"`
	Offset int `json:"offset" validate:"min=0"`
}

// parsePageRequest reads limit and offset from the query string.
func parsePageRequest(r *http.Request) (PageRequest, *validation.RequestError) {
	req := PageRequest{Limit: defaultPageLimit}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, validation.Var("limit", v, "number")
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, validation.Var("offset", v, "number")
		}
		req.Offset = n
	}

	if verr := validation.Struct(req); verr != nil {
		return req, verr
	}
	return req, nil
}

// decodeBody reads a size-capped JSON body into dst, rejecting unknown
// fields, and validates it. On failure the response is written and false is
// returned.
func decodeBody(rw *ResponseWriter, w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		rw.BadRequest("Invalid JSON body: " + err.Error())
		return false
	}
	if verr := validation.Struct(dst); verr != nil {
		writeValidationError(rw, verr)
		return false
	}
	return true
}

// idParam returns the positive integer {id} URL parameter.
func idParam(rw *ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		rw.BadRequest("id must be a positive integer")
		return 0, false
	}
	return id, true
}

// tenantParam returns the validated {tenantID} URL parameter.
func tenantParam(r *http.Request) (string, *validation.RequestError) {
	id := chi.URLParam(r, "tenantID")
	if verr := validation.Var("tenant_id", id, "required,tenant_id"); verr != nil {
		return "", verr
	}
	return id, nil
}

// writeValidationError writes a 400 from a validation failure.
func writeValidationError(rw *ResponseWriter, verr *validation.RequestError) {
	apiErr := verr.ToAPIError()
	rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
}

// writeTenantError writes a 400 for a malformed tenant ID.
func writeTenantError(rw *ResponseWriter, verr *validation.RequestError) {
	apiErr := verr.ToAPIError()
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeInvalidTenant, apiErr.Message, apiErr.Details)
}
