// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"errors"
	"net/http"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
	"github.com/pyrex41/medicare-portal-sub009/internal/tenantdb"
)

// ListAgents returns the tenant's agents, newest first.
//
// @Summary List agents
// @Tags Agents
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} APIResponse{data=[]tenantdb.Agent}
// @Failure 400 {object} APIResponse
// @Failure 503 {object} APIResponse
// @Router /tenants/{tenantID}/agents [get]
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	db, r := h.openTenant(rw, r)
	if db == nil {
		return
	}
	defer db.Close()

	agents, err := db.ListAgents(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(agents)
}

// CreateAgent registers an agent contacts can be assigned to.
//
// @Summary Create an agent
// @Tags Agents
// @Accept json
// @Param tenantID path string true "Tenant ID"
// @Param body body tenantdb.AgentInput true "Agent"
// @Success 201 {object} APIResponse{data=tenantdb.Agent}
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse
// @Router /tenants/{tenantID}/agents [post]
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var in tenantdb.AgentInput
	if !decodeBody(rw, w, r, &in) {
		return
	}

	db, r := h.openTenant(rw, r)
	if db == nil {
		return
	}
	defer db.Close()

	agent, err := db.CreateAgent(r.Context(), in)
	if errors.Is(err, tenantdb.ErrAgentExists) {
		rw.ErrorWithDetails(http.StatusConflict, ErrCodeConflict, "An agent with this email already exists",
			map[string]any{"field": "email"})
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	logging.Ctx(r.Context()).Info().Int64("agent_id", agent.ID).Msg("Agent created")
	rw.Created(agent)
}
