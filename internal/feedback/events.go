// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package feedback

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/addonrail/internal/rank"
)

// TopicFeedback is the topic acceptance-feedback events are published on.
const TopicFeedback = "cart.feedback"

// maxAccepted bounds the accepted ids of one event.
const maxAccepted = 100

// Event is an acceptance-feedback event on the wire.
type Event struct {
	// EventID is generated when empty and doubles as the message id.
	EventID string `json:"event_id"`

	SessionID       string    `json:"session_id"`
	AcceptedItemIDs []string  `json:"accepted_item_ids"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// ErrInvalidEvent is returned for events that can never be applied.
var ErrInvalidEvent = errors.New("invalid feedback event")

// NewEvent creates an event with a fresh id.
func NewEvent(sessionID string, accepted []string, at time.Time) *Event {
	return &Event{
		EventID:         uuid.NewString(),
		SessionID:       sessionID,
		AcceptedItemIDs: accepted,
		OccurredAt:      at,
	}
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidEvent)
	}
	if len(e.AcceptedItemIDs) > maxAccepted {
		return fmt.Errorf("%w: at most %d accepted items", ErrInvalidEvent, maxAccepted)
	}
	for i, id := range e.AcceptedItemIDs {
		if id == "" {
			return fmt.Errorf("%w: accepted_item_ids[%d] is empty", ErrInvalidEvent, i)
		}
	}
	return nil
}

// Feedback converts the event for the engine.
func (e *Event) Feedback() rank.Feedback {
	return rank.Feedback{
		SessionID:       e.SessionID,
		AcceptedItemIDs: e.AcceptedItemIDs,
		OccurredAt:      e.OccurredAt,
	}
}

// Marshal validates and encodes the event.
func Marshal(e *Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates an event.
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
