// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

//go:build !nats

package feedback

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// NewNATSPublisher returns ErrNATSNotEnabled. Build with -tags=nats.
//
//nolint:gocritic // hugeParam: signature matches the nats build
func NewNATSPublisher(NATSConfig, zerolog.Logger) (message.Publisher, error) {
	return nil, ErrNATSNotEnabled
}

// NewNATSSubscriber returns ErrNATSNotEnabled. Build with -tags=nats.
//
//nolint:gocritic // hugeParam: signature matches the nats build
func NewNATSSubscriber(NATSConfig, zerolog.Logger) (message.Subscriber, error) {
	return nil, ErrNATSNotEnabled
}

// EmbeddedBroker is a stub without the nats build tag.
type EmbeddedBroker struct{}

// StartEmbeddedBroker returns ErrNATSNotEnabled. Build with -tags=nats.
//
//nolint:gocritic // hugeParam: signature matches the nats build
func StartEmbeddedBroker(BrokerConfig) (*EmbeddedBroker, error) {
	return nil, ErrNATSNotEnabled
}

// ClientURL returns an empty string.
func (b *EmbeddedBroker) ClientURL() string { return "" }

// Running always returns false.
func (b *EmbeddedBroker) Running() bool { return false }

// Shutdown is a no-op.
func (b *EmbeddedBroker) Shutdown(context.Context) error { return nil }
