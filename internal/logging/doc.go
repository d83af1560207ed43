// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

// Package logging provides the zerolog-based structured logger used across
// the server.
//
// The package provides:
//   - A global logger configured once from main via Init
//   - JSON output for production, console output for development
//   - Request and tenant fields carried through context.Context
//   - An slog adapter so suture's event hook logs through zerolog
//   - LineWriter, which turns child process output into log events
//
// # Quick Start
//
//	import "github.com/pyrex41/medicare-portal-sub009/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:   "info",
//	    Format:  "json",
//	    Service: "medicare-portal",
//	})
//
//	logging.Info().Str("tenant_id", "acme").Msg("Tenant replica activated")
//	logging.Error().Err(err).Msg("Restore failed")
//
//	// Inside a request
//	logging.Ctx(ctx).Info().Msg("Contact created")
//
// # Configuration
//
// The logging section of the server config (or LOG_LEVEL, LOG_FORMAT,
// LOG_CALLER in the environment) feeds Init:
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//
// # Component Loggers
//
// Long-lived components derive a child logger once and keep it:
//
//	logger := logging.With().Str("component", "replica").Logger()
//
// # Subprocess Output
//
// The replication tool writes its own log lines to stdout and stderr.
// LineWriter re-emits each line as an event on a logger that already carries
// tenant_id and stream fields:
//
//	w := logging.NewLineWriter(logger.With().Str("stream", "stderr").Logger(), zerolog.InfoLevel)
//	cmd.Stderr = w
//	defer w.Flush()
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	logging.Info().Str("tenant_id", id).Int("pid", pid).Msg("spawned")  // Correct
//	logging.Info().Msgf("spawned %d for %s", pid, id)                   // Avoid
package logging
