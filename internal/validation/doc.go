// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

// Package validation checks request input with go-playground/validator.
//
// A single validator instance is built once and shared. Fields are reported
// by their JSON names, and failures convert to the API's VALIDATION_ERROR
// shape through RequestError.ToAPIError.
//
// Custom tags:
//
//	tenant_id  - same rule the replica manager applies to tenant IDs
//	us_state   - two-letter US state or DC
//
// Example:
//
//	var in tenantdb.ContactInput
//	if verr := validation.Struct(&in); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
//
// Path parameters go through Var:
//
//	if verr := validation.Var("tenant", chi.URLParam(r, "tenant"), "required,tenant_id"); verr != nil {
//	    ...
//	}
package validation
