// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/addonrail/internal/rank"
)

// fakeApplier records applied feedback and fails the first failFirst calls.
type fakeApplier struct {
	mu        sync.Mutex
	got       []rank.Feedback
	failFirst int
	failWith  error
	calls     int
	notify    chan struct{}
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{notify: make(chan struct{}, 16)}
}

func (f *fakeApplier) ApplyFeedback(_ context.Context, fb rank.Feedback) error {
	f.mu.Lock()
	defer func() {
		f.mu.Unlock()
		f.notify <- struct{}{}
	}()
	f.calls++
	if f.calls <= f.failFirst {
		return f.failWith
	}
	f.got = append(f.got, fb)
	return nil
}

func (f *fakeApplier) applied() []rank.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rank.Feedback(nil), f.got...)
}

func (f *fakeApplier) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.notify:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for apply call %d", i+1)
		}
	}
}

func startConsumer(t *testing.T, applier Applier) (*Publisher, *Consumer, message.Publisher) {
	t.Helper()

	bus := NewGoChannel(zerolog.Nop())
	cfg := DefaultConsumerConfig()
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.PoisonTopic = ""

	consumer, err := NewConsumer(cfg, bus, nil, applier, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = consumer.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = consumer.Close()
		<-done
		_ = bus.Close()
	})

	select {
	case <-consumer.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not start")
	}
	return NewPublisher(bus, zerolog.Nop()), consumer, bus
}

func TestEvent_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{"valid", Event{SessionID: "s1", AcceptedItemIDs: []string{"I001"}}, false},
		{"no accepts", Event{SessionID: "s1"}, false},
		{"missing session", Event{AcceptedItemIDs: []string{"I001"}}, true},
		{"empty id", Event{SessionID: "s1", AcceptedItemIDs: []string{"I001", ""}}, true},
		{"too many", Event{SessionID: "s1", AcceptedItemIDs: make([]string, maxAccepted+1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Validate() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 4, 20, 5, 0, 0, time.UTC)
	data, err := Marshal(NewEvent("s1", []string{"I040"}, at))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	e, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	fb := e.Feedback()
	if fb.SessionID != "s1" || len(fb.AcceptedItemIDs) != 1 || !fb.OccurredAt.Equal(at) {
		t.Errorf("Feedback() = %+v", fb)
	}
	if e.EventID == "" {
		t.Error("event id lost")
	}

	for _, raw := range []string{`{`, `{"accepted_item_ids":["I1"]}`} {
		if _, err := Unmarshal([]byte(raw)); !errors.Is(err, ErrInvalidEvent) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidEvent", raw, err)
		}
	}
}

func TestConsumer_AppliesPublishedEvents(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier()
	pub, consumer, _ := startConsumer(t, applier)

	ctx := context.Background()
	if err := pub.Publish(ctx, NewEvent("s1", []string{"I040"}, time.Now())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish(ctx, &Event{SessionID: "s2"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	applier.wait(t, 2)

	got := applier.applied()
	if len(got) != 2 {
		t.Fatalf("applied %d events, want 2", len(got))
	}
	sessions := map[string]bool{got[0].SessionID: true, got[1].SessionID: true}
	if !sessions["s1"] || !sessions["s2"] {
		t.Errorf("applied sessions = %v", sessions)
	}
	if s := consumer.Stats(); s.Applied != 2 {
		t.Errorf("Stats().Applied = %d, want 2", s.Applied)
	}
}

func TestConsumer_DropsMalformed(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier()
	_, consumer, bus := startConsumer(t, applier)

	if err := bus.Publish(TopicFeedback, message.NewMessage("m1", []byte("not json"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for consumer.Stats().Dropped == 0 {
		if time.Now().After(deadline) {
			t.Fatal("malformed event was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(applier.applied()) != 0 {
		t.Error("malformed event reached the applier")
	}
}

func TestConsumer_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier()
	applier.failFirst = 2
	applier.failWith = errors.New("session store busy")
	pub, consumer, _ := startConsumer(t, applier)

	if err := pub.Publish(context.Background(), NewEvent("s1", nil, time.Now())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	applier.wait(t, 3)

	if len(applier.applied()) != 1 {
		t.Errorf("applied = %d, want 1 after retries", len(applier.applied()))
	}
	if s := consumer.Stats(); s.Failed != 2 || s.Applied != 1 {
		t.Errorf("Stats() = %+v, want 2 failed and 1 applied", s)
	}
}

func TestConsumer_DropsValidationFailures(t *testing.T) {
	t.Parallel()

	applier := newFakeApplier()
	applier.failFirst = 1
	applier.failWith = rank.NewValidationError("session_id", "too long")
	pub, consumer, _ := startConsumer(t, applier)

	if err := pub.Publish(context.Background(), NewEvent("s1", nil, time.Now())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	applier.wait(t, 1)

	deadline := time.Now().Add(5 * time.Second)
	for consumer.Stats().Dropped == 0 {
		if time.Now().After(deadline) {
			t.Fatal("rejected event was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if consumer.Stats().Failed != 0 {
		t.Error("validation failure was retried")
	}
}

func TestPublisher_RejectsInvalidAndClosed(t *testing.T) {
	t.Parallel()

	bus := NewGoChannel(zerolog.Nop())
	pub := NewPublisher(bus, zerolog.Nop())

	if err := pub.Publish(context.Background(), &Event{}); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Publish(invalid) error = %v, want ErrInvalidEvent", err)
	}
	if pub.BreakerState() != "closed" {
		t.Errorf("BreakerState() = %s, want closed", pub.BreakerState())
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := pub.Publish(context.Background(), NewEvent("s1", nil, time.Now())); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrPublisherClosed", err)
	}
}

func TestNewConsumer_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := NewConsumer(DefaultConsumerConfig(), nil, nil, newFakeApplier(), zerolog.Nop()); err == nil {
		t.Error("NewConsumer() without subscriber returned nil error")
	}
}
