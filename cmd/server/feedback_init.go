// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/config"
	"github.com/tomtom215/addonrail/internal/feedback"
	"github.com/tomtom215/addonrail/internal/logging"
	"github.com/tomtom215/addonrail/internal/supervisor/services"
)

const defaultNATSPort = 4222

// feedbackComponents is the wired feedback path.
type feedbackComponents struct {
	Publisher *feedback.Publisher
	Consumer  *services.FeedbackConsumerService

	broker *feedback.EmbeddedBroker
}

// initFeedback builds the publisher and the consumer service for the
// configured transport. The nats transport needs a binary built with
// -tags nats; without it initFeedback fails with feedback.ErrNATSNotEnabled.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initFeedback(cfg *config.Config, applier feedback.Applier, logger zerolog.Logger) (*feedbackComponents, error) {
	fc := cfg.Feedback
	consumerCfg := feedback.DefaultConsumerConfig()
	consumerCfg.RetryMaxRetries = fc.RetryMaxRetries
	consumerCfg.RetryInitialInterval = fc.RetryInitialInterval
	consumerCfg.ThrottlePerSecond = fc.ThrottlePerSecond
	consumerCfg.PoisonTopic = fc.PoisonTopic
	consumerCfg.CloseTimeout = fc.CloseTimeout

	out := &feedbackComponents{}

	var (
		pub       message.Publisher
		subscribe func() (message.Subscriber, error)
	)

	switch fc.Transport {
	case config.TransportNATS:
		natsURL := fc.NATSURL
		if fc.EmbeddedServer {
			broker, err := feedback.StartEmbeddedBroker(feedback.BrokerConfig{
				Host:     "127.0.0.1",
				Port:     natsPort(fc.NATSURL),
				StoreDir: fc.StoreDir,
			})
			if err != nil {
				return nil, fmt.Errorf("start embedded broker: %w", err)
			}
			out.broker = broker
			natsURL = broker.ClientURL()
			logging.Info().Str("url", natsURL).Msg("Embedded NATS broker started")
		}

		natsCfg := feedback.DefaultNATSConfig(natsURL)
		natsCfg.Durable = fc.DurableName
		natsCfg.QueueGroup = fc.QueueGroup

		p, err := feedback.NewNATSPublisher(natsCfg, logger)
		if err != nil {
			out.Close()
			return nil, err
		}
		pub = p
		subscribe = func() (message.Subscriber, error) {
			return feedback.NewNATSSubscriber(natsCfg, logger)
		}

	default:
		gc := feedback.NewGoChannel(logger)
		pub = gc
		subscribe = func() (message.Subscriber, error) { return gc, nil }
	}

	out.Publisher = feedback.NewPublisher(pub, logger)
	out.Consumer = services.NewFeedbackConsumerService(func() (services.ConsumerRunner, error) {
		sub, err := subscribe()
		if err != nil {
			return nil, err
		}
		return feedback.NewConsumer(consumerCfg, sub, pub, applier, logger)
	}, logger)

	return out, nil
}

// Close closes the publisher, which owns the transport, then the broker.
func (f *feedbackComponents) Close() {
	if f.Publisher != nil {
		if err := f.Publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing feedback publisher")
		}
	}
	if f.broker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := f.broker.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Error stopping embedded broker")
		}
	}
}

// natsPort extracts the port of a nats:// URL.
func natsPort(raw string) int {
	u, err := url.Parse(raw)
	if err != nil {
		return defaultNATSPort
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port <= 0 {
		return defaultNATSPort
	}
	return port
}
