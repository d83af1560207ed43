// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pyrex41/medicare-portal-sub009/internal/api"
	"github.com/pyrex41/medicare-portal-sub009/internal/config"
	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
	"github.com/pyrex41/medicare-portal-sub009/internal/objectstore"
	"github.com/pyrex41/medicare-portal-sub009/internal/replica"
	"github.com/pyrex41/medicare-portal-sub009/internal/supervisor"
	"github.com/pyrex41/medicare-portal-sub009/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Default logger; config not yet available.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "medicare-portal",
	})

	logging.Info().
		Str("data_dir", cfg.Replica.DataDir).
		Str("replica_url", cfg.EffectiveReplicaURL()).
		Bool("object_store", cfg.ObjectStore.Enabled).
		Dur("idle_timeout", cfg.Replica.IdleTimeout).
		Msg("Configuration loaded")

	if path := config.FindFile(); path != "" {
		stopWatch, err := config.WatchLogLevel(path, func(level string) {
			if level != logging.GetLevel().String() {
				logging.SetLevelString(level)
				logging.Info().Str("level", level).Msg("Log level changed")
			}
		}, func(err error) {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring config file change")
		})
		if err != nil {
			logging.Warn().Err(err).Msg("Config file changes will not be picked up")
		} else {
			defer stopWatch()
		}
	}

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin; set CORS_ORIGINS before exposing this server")
	}

	if err := os.MkdirAll(cfg.Replica.DataDir, 0o750); err != nil {
		logging.Fatal().Err(err).Str("data_dir", cfg.Replica.DataDir).Msg("Failed to create data directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := initObjectStore(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize object store client")
	}

	manager, err := initReplicaManager(cfg, store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize replica manager")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// A nil *objectstore.Client must not become a non-nil interface.
	var snapshots api.SnapshotStore
	if store != nil {
		snapshots = store
	}

	router := api.NewRouter(api.NewHandler(manager, snapshots), api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Cold starts restore a whole database before the first byte is
		// written, so the write timeout covers the restore as well.
		WriteTimeout: cfg.Server.Timeout + cfg.Replica.RestoreTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree.AddDataService(services.NewReplicaReaperService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	// HTTP is down; now stop every replication process. Local files are
	// kept for the next start.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Replica manager shutdown incomplete")
	}

	logging.Info().Msg("Server stopped")
}

// initObjectStore returns nil when no bucket is configured.
func initObjectStore(ctx context.Context, cfg *config.Config) (*objectstore.Client, error) {
	if !cfg.ObjectStore.Enabled {
		logging.Info().Msg("Object store client disabled, restores go straight to the replication tool")
		return nil, nil
	}

	client, err := objectstore.New(ctx, objectstore.Config{
		Bucket:            cfg.ObjectStore.Bucket,
		Prefix:            cfg.ObjectStore.Prefix,
		Region:            cfg.ObjectStore.Region,
		Endpoint:          cfg.ObjectStore.Endpoint,
		ForcePathStyle:    cfg.ObjectStore.ForcePathStyle,
		Timeout:           cfg.ObjectStore.Timeout,
		RequestsPerSecond: cfg.ObjectStore.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}
	logging.Info().Str("bucket", cfg.ObjectStore.Bucket).Str("prefix", cfg.ObjectStore.Prefix).Msg("Object store client initialized")
	return client, nil
}

func initReplicaManager(cfg *config.Config, store *objectstore.Client) (*replica.Manager, error) {
	restoreTmpl, err := replica.ParseCommandTemplate(cfg.Replica.RestoreCommand)
	if err != nil {
		return nil, fmt.Errorf("restore command: %w", err)
	}
	replicateTmpl, err := replica.ParseCommandTemplate(cfg.Replica.ReplicateCommand)
	if err != nil {
		return nil, fmt.Errorf("replicate command: %w", err)
	}

	var restorer replica.Restorer = replica.NewToolRestorer(replica.NewCommandRunner(cfg.Replica.NoSnapshotMarkers), restoreTmpl)
	if store != nil {
		// Skip the tool entirely for tenants with nothing in the bucket.
		restorer = objectstore.NewPrecheckRestorer(store, restorer)
	}

	managerCfg := replica.DefaultConfig(replica.Layout{
		DataDir:            cfg.Replica.DataDir,
		FileExtension:      cfg.Replica.FileExtension,
		ReplicaURLTemplate: cfg.EffectiveReplicaURL(),
	})
	managerCfg.IdleTimeout = cfg.Replica.IdleTimeout
	managerCfg.ScanInterval = cfg.Replica.ScanInterval
	managerCfg.RestoreTimeout = cfg.Replica.RestoreTimeout
	managerCfg.TerminateGrace = cfg.Replica.TerminateGrace
	managerCfg.MaxConcurrentRestores = cfg.Replica.MaxConcurrentRestores

	return replica.NewManager(managerCfg, restorer, replica.NewExecSpawner(replicateTmpl),
		replica.WithLogger(logging.WithComponent("replica")))
}
