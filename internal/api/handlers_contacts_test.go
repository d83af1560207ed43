// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pyrex41/medicare-portal-sub009/internal/tenantdb"
	"github.com/pyrex41/medicare-portal-sub009/internal/validation"
)

func validContact(email string) tenantdb.ContactInput {
	return tenantdb.ContactInput{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		Email:         email,
		PlanType:      "Supplement",
		EffectiveDate: "2026-01-01",
		BirthDate:     "1958-12-10",
		Gender:        "F",
		State:         "TX",
		ZipCode:       "78701",
	}
}

func TestCreateAndListContacts(t *testing.T) {
	m := newFakeManager(t)
	router := newTestRouter(m, nil)

	for i := range 3 {
		rec, resp := do(t, router, http.MethodPost, "/api/v1/tenants/acme/contacts", validContact(fmt.Sprintf("ada%d@example.com", i)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
		data, _ := resp.Data.(map[string]any)
		if data["email"] != fmt.Sprintf("ada%d@example.com", i) {
			t.Errorf("Unexpected contact %v", resp.Data)
		}
	}

	rec, resp := do(t, router, http.MethodGet, "/api/v1/tenants/acme/contacts?limit=2&offset=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	items, _ := resp.Data.([]any)
	if len(items) != 2 {
		t.Fatalf("Expected 2 contacts, got %d", len(items))
	}
	p := resp.Meta.Pagination
	if p == nil || p.Total != 3 || p.Offset != 1 || p.Limit != 2 || p.HasMore {
		t.Errorf("Unexpected pagination %+v", p)
	}

	rec, _ = do(t, router, http.MethodGet, "/api/v1/tenants/acme/contacts/1", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", rec.Code)
	}
	rec, _ = do(t, router, http.MethodGet, "/api/v1/tenants/acme/contacts/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing: expected 404, got %d", rec.Code)
	}
	rec, _ = do(t, router, http.MethodGet, "/api/v1/tenants/acme/contacts/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("get bad id: expected 400, got %d", rec.Code)
	}

	// Every call went through the manager.
	if len(m.acquired) != 6 {
		t.Errorf("Expected 6 acquisitions, got %d", len(m.acquired))
	}
}

func TestListContacts_EmptyTenant(t *testing.T) {
	rec, resp := do(t, newTestRouter(newFakeManager(t), nil), http.MethodGet, "/api/v1/tenants/fresh/contacts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if items, ok := resp.Data.([]any); !ok || len(items) != 0 {
		t.Errorf("Expected an empty list, got %#v", resp.Data)
	}
}

func TestListContacts_BadPagination(t *testing.T) {
	m := newFakeManager(t)
	router := newTestRouter(m, nil)

	for _, q := range []string{"limit=0", "limit=501", "offset=-1", "limit=ten"} {
		rec, resp := do(t, router, http.MethodGet, "/api/v1/tenants/acme/contacts?"+q, nil)
		if rec.Code != http.StatusBadRequest || errorCode(resp) != validation.CodeValidation {
			t.Errorf("%s: expected 400 VALIDATION_ERROR, got %d %s", q, rec.Code, rec.Body.String())
		}
	}
	if len(m.acquired) != 0 {
		t.Error("Pagination errors must not trigger an acquisition")
	}
}

func TestCreateContact_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*tenantdb.ContactInput)
		field  string
	}{
		{"missing first name", func(in *tenantdb.ContactInput) { in.FirstName = "" }, "first_name"},
		{"bad email", func(in *tenantdb.ContactInput) { in.Email = "nope" }, "email"},
		{"bad plan", func(in *tenantdb.ContactInput) { in.PlanType = "Gold" }, "plan_type"},
		{"bad date", func(in *tenantdb.ContactInput) { in.BirthDate = "12/10/1958" }, "birth_date"},
		{"bad state", func(in *tenantdb.ContactInput) { in.State = "ZZ" }, "state"},
		{"bad zip", func(in *tenantdb.ContactInput) { in.ZipCode = "7870" }, "zip_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeManager(t)
			in := validContact("ada@example.com")
			tt.mutate(&in)

			rec, resp := do(t, newTestRouter(m, nil), http.MethodPost, "/api/v1/tenants/acme/contacts", in)
			if rec.Code != http.StatusBadRequest || errorCode(resp) != validation.CodeValidation {
				t.Fatalf("Expected 400 VALIDATION_ERROR, got %d %s", rec.Code, rec.Body.String())
			}
			details, _ := resp.Error.Details.(map[string]any)
			if details["field"] != tt.field {
				t.Errorf("Expected field %s, got %v", tt.field, resp.Error.Details)
			}
			if len(m.acquired) != 0 {
				t.Error("Invalid bodies must not trigger an acquisition")
			}
		})
	}
}

func TestCreateContact_UnknownAgent(t *testing.T) {
	in := validContact("ada@example.com")
	agent := int64(7)
	in.AgentID = &agent

	rec, resp := do(t, newTestRouter(newFakeManager(t), nil), http.MethodPost, "/api/v1/tenants/acme/contacts", in)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(resp) != validation.CodeValidation {
		t.Errorf("Expected 422, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateContact_MalformedBody(t *testing.T) {
	rec, resp := do(t, newTestRouter(newFakeManager(t), nil), http.MethodPost, "/api/v1/tenants/acme/contacts",
		map[string]any{"first_name": "Ada", "unexpected": true})
	if rec.Code != http.StatusBadRequest || errorCode(resp) != ErrCodeBadRequest {
		t.Errorf("Expected 400 BAD_REQUEST for unknown fields, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateContact(t *testing.T) {
	m := newFakeManager(t)
	router := newTestRouter(m, nil)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/tenants/acme/agents", validAgent("grace@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create agent: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	agentData, _ := resp.Data.(map[string]any)
	agentID := int64(agentData["id"].(float64))

	if rec, _ := do(t, router, http.MethodPost, "/api/v1/tenants/acme/contacts", validContact("ada@example.com")); rec.Code != http.StatusCreated {
		t.Fatalf("create contact: expected 201, got %d", rec.Code)
	}

	in := validContact("ada.king@example.com")
	in.LastName = "King"
	in.AgentID = &agentID
	rec, resp = do(t, router, http.MethodPut, "/api/v1/tenants/acme/contacts/1", in)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	data, _ := resp.Data.(map[string]any)
	if data["last_name"] != "King" || data["email"] != "ada.king@example.com" {
		t.Errorf("Unexpected contact %v", resp.Data)
	}
	if data["agent_id"] != float64(agentID) {
		t.Errorf("Expected agent_id %d, got %v", agentID, data["agent_id"])
	}

	// Omitting agent_id keeps the assignment.
	in.AgentID = nil
	in.FirstName = "Augusta"
	_, resp = do(t, router, http.MethodPut, "/api/v1/tenants/acme/contacts/1", in)
	data, _ = resp.Data.(map[string]any)
	if data["first_name"] != "Augusta" || data["agent_id"] != float64(agentID) {
		t.Errorf("Unexpected contact after second update %v", resp.Data)
	}
}

func TestUpdateContact_Errors(t *testing.T) {
	m := newFakeManager(t)
	router := newTestRouter(m, nil)

	if rec, _ := do(t, router, http.MethodPost, "/api/v1/tenants/acme/contacts", validContact("ada@example.com")); rec.Code != http.StatusCreated {
		t.Fatalf("create contact: expected 201, got %d", rec.Code)
	}

	rec, _ := do(t, router, http.MethodPut, "/api/v1/tenants/acme/contacts/99", validContact("ada@example.com"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing contact: expected 404, got %d", rec.Code)
	}

	in := validContact("ada@example.com")
	missing := int64(7)
	in.AgentID = &missing
	rec, resp := do(t, router, http.MethodPut, "/api/v1/tenants/acme/contacts/1", in)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(resp) != validation.CodeValidation {
		t.Errorf("unknown agent: expected 422, got %d %s", rec.Code, rec.Body.String())
	}

	before := len(m.acquired)
	rec, _ = do(t, router, http.MethodPut, "/api/v1/tenants/acme/contacts/abc", validContact("ada@example.com"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
	bad := validContact("ada@example.com")
	bad.Email = "nope"
	rec, _ = do(t, router, http.MethodPut, "/api/v1/tenants/acme/contacts/1", bad)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body: expected 400, got %d", rec.Code)
	}
	if len(m.acquired) != before {
		t.Error("Rejected updates must not trigger an acquisition")
	}
}
