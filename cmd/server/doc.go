// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package main is the entry point for the AddonRail ranking server.

AddonRail ranks the add-on rail shown beside a food-delivery cart. Every cart
change produces a fresh request, and the server returns an ordered rail of
8 to 10 complementary items within a tight latency budget.

# Application Architecture

	RootSupervisor ("addonrail")
	├── StateSupervisor ("state-layer")
	│   ├── session janitor
	│   └── trajectory cache cleanup
	├── FeedbackSupervisor ("feedback-layer")
	│   └── feedback consumer (watermill, GoChannel or NATS JetStream)
	└── ServingSupervisor ("serving-layer")
	    ├── HTTP server (chi)
	    └── catalog and artifact reloader

Component initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Catalog store: JSON file or CSV directory read through DuckDB
 3. Session store: in-memory or BadgerDB
 4. Artifact store and optional Redis feature overlay
 5. Ranking pipeline, first reload, weights file watcher
 6. Feedback transport: publisher breaker plus consumer
 7. HTTP router and supervisor tree

# Build Tags

	go build ./cmd/server                 # GoChannel feedback transport only
	go build -tags nats ./cmd/server      # adds NATS JetStream and the embedded broker

# Admin Tokens

Admin routes require an HS256 token signed with JWT_SECRET:

	JWT_SECRET=... ./addonrail -mint-token ops-oncall

prints a token with the admin role and exits.

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
HTTP_SHUTDOWN_TIMEOUT, the consumer stops, and stores are closed.
*/
package main
