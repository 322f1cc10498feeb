// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package supervisor runs the long-lived parts of AddonRail under suture v4.

	RootSupervisor ("addonrail")
	├── StateSupervisor ("state-layer")
	│   ├── SessionJanitorService
	│   └── TrajectoryCleanupService
	├── FeedbackSupervisor ("feedback-layer")
	│   └── FeedbackConsumerService (when FEEDBACK_TRANSPORT uses a broker)
	└── ServingSupervisor ("serving-layer")
	    ├── HTTPServerService
	    └── ReloadService

Crashed services restart with suture's backoff. Events are logged through
sutureslog onto the zerolog pipeline via logging.NewSlogLogger.

The service wrappers live in the services subpackage.
*/
package supervisor
