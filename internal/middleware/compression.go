// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// compressJSON negotiates gzip or deflate for JSON and plain text bodies.
var compressJSON = chimiddleware.Compress(5, "application/json", "text/plain")

// Compression compresses API responses for clients that accept it. Contact
// lists for a large agency run to megabytes of repetitive JSON. HEAD
// responses are left alone.
func Compression(next http.Handler) http.Handler {
	compressed := compressJSON(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}
