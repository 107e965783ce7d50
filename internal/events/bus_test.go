package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// TestBus_BasicPublishSubscribe tests basic publish and subscribe functionality.
func TestBus_BasicPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()

	ch, cleanup := bus.Subscribe(ctx, Filter{}, 10)
	defer cleanup()

	event := Event{
		Type:      EventGoalSubmitted,
		Timestamp: time.Now(),
		GoalID:    types.NewID(),
		AgentID:   "agent_1a2b3c4d",
	}

	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case received := <-ch:
		if received.Type != event.Type {
			t.Errorf("Expected event type %v, got %v", event.Type, received.Type)
		}
		if received.GoalID != event.GoalID {
			t.Errorf("Expected goal ID %v, got %v", event.GoalID, received.GoalID)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for event")
	}
}

// TestBus_FilterByEventType tests filtering by event type.
func TestBus_FilterByEventType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()

	ch, cleanup := bus.Subscribe(ctx, Filter{
		Types: []EventType{EventStepStarted},
	}, 10)
	defer cleanup()

	bus.Publish(ctx, Event{Type: EventStepStarted, Timestamp: time.Now(), GoalID: types.NewID()})
	bus.Publish(ctx, Event{Type: EventGoalAchieved, Timestamp: time.Now(), GoalID: types.NewID()})

	select {
	case received := <-ch:
		if received.Type != EventStepStarted {
			t.Errorf("Expected goal.step_started, got %v", received.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for goal.step_started event")
	}

	select {
	case received := <-ch:
		t.Errorf("Received unexpected event: %v", received.Type)
	case <-time.After(100 * time.Millisecond):
		// Expected timeout, the achieved event was filtered out.
	}
}

// TestBus_FilterByGoalID tests filtering by goal ID.
func TestBus_FilterByGoalID(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	goalID := types.NewID()

	ch, cleanup := bus.Subscribe(ctx, Filter{GoalID: goalID}, 10)
	defer cleanup()

	bus.Publish(ctx, Event{Type: EventGoalProgress, Timestamp: time.Now(), GoalID: goalID})
	bus.Publish(ctx, Event{Type: EventGoalProgress, Timestamp: time.Now(), GoalID: types.NewID()})

	select {
	case received := <-ch:
		if received.GoalID != goalID {
			t.Errorf("Expected goal %v, got %v", goalID, received.GoalID)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for filtered event")
	}

	select {
	case received := <-ch:
		t.Errorf("Received event for wrong goal: %v", received.GoalID)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestBus_SlowSubscriberDropsEvents verifies that a full subscriber
// buffer drops events instead of blocking the publisher.
func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	var dropCount atomic.Int64
	bus := NewBus(WithErrorHandler(func(err error, ctx map[string]any) {
		dropCount.Add(1)
	}))
	defer bus.Close()

	ctx := context.Background()

	// Tiny buffer, never drained.
	_, cleanup := bus.Subscribe(ctx, Filter{}, 1)
	defer cleanup()

	for i := 0; i < 5; i++ {
		if err := bus.Publish(ctx, Event{Type: EventGoalProgress, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if got := dropCount.Load(); got != 4 {
		t.Errorf("Expected 4 dropped events, got %d", got)
	}
}

// TestBus_PublishAfterClose verifies Publish fails once the bus is closed.
func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Second close is a no-op.
	if err := bus.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	err := bus.Publish(context.Background(), Event{Type: EventGoalSubmitted})
	if err == nil {
		t.Fatal("Expected error publishing to closed bus")
	}
}

// TestBus_UnsubscribeStopsDelivery verifies cleanup closes the channel.
func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	ch, cleanup := bus.Subscribe(ctx, Filter{}, 10)

	if got := bus.SubscriberCount(); got != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", got)
	}

	cleanup()

	if got := bus.SubscriberCount(); got != 0 {
		t.Fatalf("SubscriberCount after cleanup = %d, want 0", got)
	}

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after cleanup")
	}
}

// TestBus_ConcurrentPublishers exercises the bus under concurrent load.
func TestBus_ConcurrentPublishers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx := context.Background()
	const publishers = 8
	const perPublisher = 50

	ch, cleanup := bus.Subscribe(ctx, Filter{}, publishers*perPublisher)
	defer cleanup()

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				bus.Publish(ctx, Event{Type: EventStepCompleted, Timestamp: time.Now()})
			}
		}()
	}
	wg.Wait()

	received := 0
	timeout := time.After(2 * time.Second)
	for received < publishers*perPublisher {
		select {
		case <-ch:
			received++
		case <-timeout:
			t.Fatalf("Received %d events, want %d", received, publishers*perPublisher)
		}
	}
}
