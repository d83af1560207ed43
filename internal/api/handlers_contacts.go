// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
	"github.com/pyrex41/medicare-portal-sub009/internal/tenantdb"
	"github.com/pyrex41/medicare-portal-sub009/internal/validation"
)

// openTenant acquires the tenant's replica and opens its database. On
// failure the response has already been written and nil is returned.
func (h *Handler) openTenant(rw *ResponseWriter, r *http.Request) (*tenantdb.DB, *http.Request) {
	tenantID, verr := tenantParam(r)
	if verr != nil {
		writeTenantError(rw, verr)
		return nil, r
	}
	r = r.WithContext(logging.ContextWithTenantID(r.Context(), tenantID))
	rw.r = r

	path, err := h.manager.Acquire(r.Context(), tenantID)
	if err != nil {
		writeAcquireError(rw, r, err)
		return nil, r
	}

	db, err := tenantdb.Open(r.Context(), path)
	if err != nil {
		rw.DatabaseError(err)
		return nil, r
	}
	return db, r
}

// ListContacts returns a page of the tenant's contacts.
//
// @Summary List contacts
// @Tags Contacts
// @Param tenantID path string true "Tenant ID"
// @Param limit query int false "Page size (1-500)" default(50)
// @Param offset query int false "Rows to skip" default(0)
// @Success 200 {object} APIResponse{data=[]tenantdb.Contact}
// @Failure 400 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /tenants/{tenantID}/contacts [get]
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	page, verr := parsePageRequest(r)
	if verr != nil {
		writeValidationError(rw, verr)
		return
	}

	db, r := h.openTenant(rw, r)
	if db == nil {
		return
	}
	defer db.Close()

	total, err := db.CountContacts(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	contacts, err := db.ListContacts(r.Context(), page.Limit, page.Offset)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(contacts, &PaginationMeta{
		Total:   total,
		Count:   len(contacts),
		Offset:  page.Offset,
		Limit:   page.Limit,
		HasMore: page.Offset+len(contacts) < total,
	})
}

// GetContact returns one contact.
//
// @Summary Get a contact
// @Tags Contacts
// @Param tenantID path string true "Tenant ID"
// @Param id path int true "Contact ID"
// @Success 200 {object} APIResponse{data=tenantdb.Contact}
// @Failure 404 {object} APIResponse
// @Router /tenants/{tenantID}/contacts/{id} [get]
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := idParam(rw, r)
	if !ok {
		return
	}

	db, r := h.openTenant(rw, r)
	if db == nil {
		return
	}
	defer db.Close()

	contact, err := db.GetContact(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		rw.NotFound("Contact not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(contact)
}

// CreateContact validates and stores a new contact.
//
// @Summary Create a contact
// @Tags Contacts
// @Accept json
// @Param tenantID path string true "Tenant ID"
// @Param body body tenantdb.ContactInput true "Contact"
// @Success 201 {object} APIResponse{data=tenantdb.Contact}
// @Failure 400 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /tenants/{tenantID}/contacts [post]
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var in tenantdb.ContactInput
	if !decodeBody(rw, w, r, &in) {
		return
	}

	db, r := h.openTenant(rw, r)
	if db == nil {
		return
	}
	defer db.Close()

	contact, err := db.CreateContact(r.Context(), in)
	if errors.Is(err, tenantdb.ErrAgentNotFound) {
		writeUnknownAgent(rw)
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("contact_id", contact.ID).Msg("Contact created")
	rw.Created(contact)
}

// UpdateContact replaces a contact's fields. Omitting agent_id keeps the
// current assignment.
//
// @Summary Update a contact
// @Tags Contacts
// @Accept json
// @Param tenantID path string true "Tenant ID"
// @Param id path int true "Contact ID"
// @Param body body tenantdb.ContactInput true "Contact"
// @Success 200 {object} APIResponse{data=tenantdb.Contact}
// @Failure 404 {object} APIResponse
// @Failure 422 {object} APIResponse
// @Router /tenants/{tenantID}/contacts/{id} [put]
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := idParam(rw, r)
	if !ok {
		return
	}
	var in tenantdb.ContactInput
	if !decodeBody(rw, w, r, &in) {
		return
	}

	db, r := h.openTenant(rw, r)
	if db == nil {
		return
	}
	defer db.Close()

	contact, err := db.UpdateContact(r.Context(), id, in)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rw.NotFound("Contact not found")
		return
	case errors.Is(err, tenantdb.ErrAgentNotFound):
		writeUnknownAgent(rw)
		return
	case err != nil:
		rw.DatabaseError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("contact_id", contact.ID).Msg("Contact updated")
	rw.Success(contact)
}

func writeUnknownAgent(rw *ResponseWriter) {
	rw.ErrorWithDetails(http.StatusUnprocessableEntity, validation.CodeValidation, "agent_id does not reference an existing agent",
		map[string]any{"field": "agent_id"})
}
