// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package feedback

import (
	"errors"
	"time"
)

// ErrNATSNotEnabled is returned by the NATS constructors in builds without
// the nats tag.
var ErrNATSNotEnabled = errors.New("nats transport not available: build with -tags=nats")

// NATSConfig configures the JetStream publisher and subscriber.
type NATSConfig struct {
	URL              string
	Durable          string
	QueueGroup       string
	SubscribersCount int
	AckWait          time.Duration
	MaxDeliver       int
	ReconnectWait    time.Duration
}

// DefaultNATSConfig returns defaults for url.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:              url,
		Durable:          "addonrail-feedback",
		QueueGroup:       "addonrail",
		SubscribersCount: 2,
		AckWait:          30 * time.Second,
		MaxDeliver:       5,
		ReconnectWait:    2 * time.Second,
	}
}

// BrokerConfig configures the embedded NATS server.
type BrokerConfig struct {
	Host     string
	Port     int
	StoreDir string
}
