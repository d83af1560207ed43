// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pyrex41/medicare-portal-sub009/internal/middleware"
)

// NewRouter builds the HTTP routes.
func NewRouter(h *Handler, mw *Middleware) http.Handler {
	if mw == nil {
		mw = NewMiddleware(nil)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS()) // global so OPTIONS preflight reaches it

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(APISecurityHeaders)
		r.Get("/live", h.Liveness)
		r.Get("/ready", h.Readiness)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders)
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)

		r.Route("/replicas", func(r chi.Router) {
			r.Get("/", h.ListReplicas)
			r.Get("/{tenantID}", h.GetReplica)
			r.Delete("/{tenantID}", h.EvictReplica)
			r.Get("/{tenantID}/snapshots", h.ListSnapshots)
			r.With(mw.RateLimitWarm()).Post("/{tenantID}/warm", h.WarmReplica)
		})

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", h.ListContacts)
				r.Post("/", h.CreateContact)
				r.Get("/{id}", h.GetContact)
				r.Put("/{id}", h.UpdateContact)
			})
			r.Route("/agents", func(r chi.Router) {
				r.Get("/", h.ListAgents)
				r.Post("/", h.CreateAgent)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
