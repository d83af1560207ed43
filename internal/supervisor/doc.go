// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

/*
Package supervisor runs the server's long-lived services under suture v4.

	RootSupervisor ("medicare-portal")
	├── DataSupervisor ("data-layer")
	│   └── ReplicaReaperService (idle eviction loop)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash or restart of one layer does not touch the other. Restarting the
reaper only restarts the eviction ticker: active replicas, their processes and
in-flight cold starts belong to the replica manager and are unaffected.

Supervisor events (service failures, backoff, restarts) are logged through
sutureslog. main passes an slog logger backed by zerolog, so they land in the
same structured stream as everything else:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	})
	tree.AddDataService(services.NewReplicaReaperService(manager))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh
	_ = manager.Shutdown(shutdownCtx)

The replica manager is drained after the tree has stopped so the HTTP server
is no longer handing out paths while replicas shut down.
*/
package supervisor
