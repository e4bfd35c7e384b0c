// Jellytrack - Jellyfin Playback Tracker
// Copyright 2026 The Jellytrack Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prwdo/jellytrack

/*
Package supervisor runs jellytrack's long-lived services under a suture v4
tree.

	root ("jellytrack")
	├── data-layer
	│   ├── retention-aggregator  (services.AggregatorService)
	│   └── session-reaper        (sync.Reaper)
	├── messaging-layer
	│   ├── jellyfin-tracker      (sync.Tracker)
	│   └── event-dispatcher      (events.Dispatcher)
	└── api-layer
	    └── http-server           (services.HTTPServerService)

Each layer restarts its children independently with suture's backoff, so a
crashing WebSocket session does not interrupt the HTTP server or a running
compaction. Supervisor events are logged through sutureslog into the
zerolog-backed slog handler.

Shutdown is driven by context cancellation: ShutdownTimeout bounds how long
suture waits for each service. The database is closed by the caller after
Serve returns.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewAggregatorService(aggregator))
	tree.AddDataService(reaper)
	tree.AddMessagingService(tracker)
	tree.AddMessagingService(dispatcher)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
