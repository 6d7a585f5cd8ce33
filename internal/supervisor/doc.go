// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package supervisor provides the suture-based supervision tree that keeps
// long-running Cinescout components alive.
//
// The tree isolates failures by layer: the index layer (periodic snapshot
// persistence) and the API layer (HTTP server) restart independently, so a
// crash while writing a snapshot never interrupts request serving.
//
// Supervisor events are logged through sutureslog, bridged to the global
// zerolog logger via logging.NewSlogLogger.
package supervisor
