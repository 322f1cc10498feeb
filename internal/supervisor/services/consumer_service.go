// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/feedback"
)

// ConsumerRunner is a started-once message consumer. *feedback.Consumer
// satisfies it.
type ConsumerRunner interface {
	Run(ctx context.Context) error
	Close() error
	Stats() feedback.ConsumerStats
}

// ConsumerFactory builds a fresh consumer. A watermill router cannot be run
// twice, so every restart needs a new one.
type ConsumerFactory func() (ConsumerRunner, error)

// FeedbackConsumerService runs the feedback consumer under supervision.
type FeedbackConsumerService struct {
	factory ConsumerFactory
	logger  zerolog.Logger

	mu      sync.Mutex
	current ConsumerRunner
	total   feedback.ConsumerStats
}

// NewFeedbackConsumerService creates the wrapper.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewFeedbackConsumerService(factory ConsumerFactory, logger zerolog.Logger) *FeedbackConsumerService {
	return &FeedbackConsumerService{
		factory: factory,
		logger:  logger.With().Str("service", "feedback-consumer").Logger(),
	}
}

// Serve implements suture.Service.
func (s *FeedbackConsumerService) Serve(ctx context.Context) error {
	c, err := s.factory()
	if err != nil {
		return fmt.Errorf("build feedback consumer: %w", err)
	}
	s.mu.Lock()
	s.current = c
	s.mu.Unlock()

	defer func() {
		if err := c.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("feedback consumer close failed")
		}
		s.mu.Lock()
		st := c.Stats()
		s.total.Applied += st.Applied
		s.total.Dropped += st.Dropped
		s.total.Failed += st.Failed
		s.current = nil
		s.mu.Unlock()
	}()

	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("feedback consumer stopped: %w", err)
	}
	return ctx.Err()
}

// Stats returns counters summed over every consumer this service has run.
func (s *FeedbackConsumerService) Stats() feedback.ConsumerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.total
	if s.current != nil {
		st := s.current.Stats()
		out.Applied += st.Applied
		out.Dropped += st.Dropped
		out.Failed += st.Failed
	}
	return out
}

// String implements fmt.Stringer for suture logs.
func (s *FeedbackConsumerService) String() string {
	return "feedback-consumer"
}
