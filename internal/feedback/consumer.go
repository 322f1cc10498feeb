// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// Applier applies feedback to session state. rank.Engine implements it.
type Applier interface {
	ApplyFeedback(ctx context.Context, fb rank.Feedback) error
}

// ConsumerConfig configures the consumer's router.
type ConsumerConfig struct {
	// CloseTimeout bounds how long Close waits for in-flight handlers.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// ThrottlePerSecond limits handled messages per second; 0 disables.
	ThrottlePerSecond int64

	// PoisonTopic receives messages that failed every retry. Empty disables
	// the poison queue; failed messages are then nacked and redelivered.
	PoisonTopic string
}

// DefaultConsumerConfig returns production defaults.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		CloseTimeout:         10 * time.Second,
		RetryMaxRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		RetryMaxInterval:     2 * time.Second,
		PoisonTopic:          "dlq." + TopicFeedback,
	}
}

// ConsumerStats are cumulative counters.
type ConsumerStats struct {
	Applied int64 `json:"applied"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Consumer applies feedback events from a subscriber.
type Consumer struct {
	router  *message.Router
	applier Applier
	logger  zerolog.Logger

	applied atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewConsumer builds the router: recoverer, retry, optional throttle and
// optional poison queue (poison must be non-nil for the latter).
//
//nolint:gocritic // hugeParam: cfg and logger passed by value
func NewConsumer(cfg ConsumerConfig, sub message.Subscriber, poison message.Publisher, applier Applier, logger zerolog.Logger) (*Consumer, error) {
	if sub == nil || applier == nil {
		return nil, errors.New("feedback consumer needs a subscriber and an applier")
	}
	wmLogger := NewLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	c := &Consumer{
		router:  router,
		applier: applier,
		logger:  logger.With().Str("component", "feedback_consumer").Logger(),
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)
	if cfg.ThrottlePerSecond > 0 {
		router.AddMiddleware(middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second).Middleware)
	}
	if poison != nil && cfg.PoisonTopic != "" {
		pq, err := middleware.PoisonQueue(poison, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		router.AddMiddleware(pq)
	}

	router.AddConsumerHandler("apply_feedback", TopicFeedback, sub, c.handle)
	return c, nil
}

// handle applies one message. Malformed events and validation failures are
// acknowledged; anything else is returned for retry.
func (c *Consumer) handle(msg *message.Message) error {
	e, err := Unmarshal(msg.Payload)
	if err != nil {
		c.dropped.Add(1)
		c.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed feedback event")
		return nil
	}

	err = c.applier.ApplyFeedback(msg.Context(), e.Feedback())
	switch {
	case err == nil:
		c.applied.Add(1)
		return nil
	case rank.IsValidation(err):
		c.dropped.Add(1)
		c.logger.Warn().Err(err).Str("event_id", e.EventID).Msg("dropping rejected feedback event")
		return nil
	default:
		c.failed.Add(1)
		return fmt.Errorf("apply feedback %s: %w", e.EventID, err)
	}
}

// Run processes messages until ctx is canceled or Close is called.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running is closed once the router has started all handlers.
func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

// Close stops the router.
func (c *Consumer) Close() error {
	return c.router.Close()
}

// Stats returns the cumulative counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Applied: c.applied.Load(),
		Dropped: c.dropped.Load(),
		Failed:  c.failed.Load(),
	}
}
