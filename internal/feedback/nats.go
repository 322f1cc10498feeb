// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

//go:build nats

package feedback

import (
	"context"
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NewNATSPublisher creates a JetStream publisher with reconnect handling.
// The stream is provisioned on first publish.
//
//nolint:gocritic // hugeParam: cfg and logger passed by value
func NewNATSPublisher(cfg NATSConfig, logger zerolog.Logger) (message.Publisher, error) {
	wmLogger := NewLogger(logger)
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: connOptions(cfg, logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	return pub, nil
}

// NewNATSSubscriber creates a durable queue-group subscriber so several
// instances share the feedback stream.
//
//nolint:gocritic // hugeParam: cfg and logger passed by value
func NewNATSSubscriber(cfg NATSConfig, logger zerolog.Logger) (message.Subscriber, error) {
	wmLogger := NewLogger(logger)
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      connOptions(cfg, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.MaxDeliver(cfg.MaxDeliver),
				natsgo.AckWait(cfg.AckWait),
				natsgo.DeliverNew(),
			},
			DurablePrefix: cfg.Durable,
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	return sub, nil
}

//nolint:gocritic // hugeParam: cfg and logger passed by value
func connOptions(cfg NATSConfig, logger zerolog.Logger) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
}

// EmbeddedBroker is an in-process NATS server with JetStream, for
// development and single-node deployments.
type EmbeddedBroker struct {
	server *server.Server
}

// StartEmbeddedBroker starts the server and waits until it accepts
// connections.
//
//nolint:gocritic // hugeParam: cfg passed by value
func StartEmbeddedBroker(cfg BrokerConfig) (*EmbeddedBroker, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "addonrail-feedback",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		MaxPayload: 1 << 20,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready within timeout")
	}
	return &EmbeddedBroker{server: ns}, nil
}

// ClientURL returns the URL clients connect to.
func (b *EmbeddedBroker) ClientURL() string {
	return b.server.ClientURL()
}

// Running reports whether the server is up.
func (b *EmbeddedBroker) Running() bool {
	return b.server.Running()
}

// Shutdown stops the server.
func (b *EmbeddedBroker) Shutdown(ctx context.Context) error {
	b.server.Shutdown()
	done := make(chan struct{})
	go func() {
		b.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
