// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

/*
Package middleware provides chi-compatible HTTP middleware.

  - RequestID: accepts or generates X-Request-ID and puts it in the logging
    context so every log line for the request carries request_id
  - AccessLog: one structured zerolog line per request
  - PrometheusMetrics: request counters, latency histogram, in-flight gauge,
    labelled by chi route pattern so tenant IDs never become label values
  - Compression: gzip for clients that accept it

Typical stack, outermost first:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(middleware.PrometheusMetrics)
	    r.Use(middleware.Compression)
	    ...
	})
*/
package middleware
