// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

/*
Package services adapts server components to suture.Service.

  - HTTPServerService: ListenAndServe/Shutdown to Serve, with a separate
    shutdown timeout for draining connections.
  - ReplicaReaperService: the replica manager's Start/Stop eviction loop to
    Serve. Restarting it never touches active replicas.

Both implement fmt.Stringer so suture's event log names them.
*/
package services
