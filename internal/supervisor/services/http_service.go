// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the API server under suture.
//
// On cancellation the server drains in-flight requests, including cold
// starts still restoring, for up to the drain timeout. The drain uses a
// fresh context because the service context is already done.
type HTTPServerService struct {
	server HTTPServer
	drain  time.Duration
}

// NewHTTPServerService wraps server. A non-positive drain timeout means 10s.
func NewHTTPServerService(server HTTPServer, drain time.Duration) *HTTPServerService {
	if drain <= 0 {
		drain = 10 * time.Second
	}
	return &HTTPServerService{server: server, drain: drain}
}

// Serve implements suture.Service.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			// suture restarts the service with backoff.
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info().Dur("drain_timeout", s.drain).Msg("Draining HTTP server")
	drainCtx, cancel := context.WithTimeout(context.Background(), s.drain)
	defer cancel()

	if err := s.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("http server drain: %w", err)
	}
	<-done
	return ctx.Err()
}

func (s *HTTPServerService) String() string {
	return "http-server"
}
