// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

/*
Package feedback carries acceptance-feedback events from the cart client to
the ranking engine's session state.

When a user adds (or ignores) items after a rail is shown, the client posts
an Event. The API publishes it to the cart.feedback topic; a Consumer reads
the topic and applies each event through rank.Engine.ApplyFeedback, which
updates the session's category ignore counters and rejection streak.

Transports:

  - In process: a Watermill gochannel pub/sub (NewGoChannel). Used by tests
    and single-instance deployments.
  - NATS JetStream: NewNATSPublisher and NewNATSSubscriber, plus an
    EmbeddedBroker for development. Built with -tags=nats; without the tag
    the constructors return ErrNATSNotEnabled.

The Consumer runs a Watermill router with panic recovery, exponential retry
and an optional poison topic. Events that cannot be decoded or fail
validation are acknowledged and dropped: retrying cannot fix them.
*/
package feedback
