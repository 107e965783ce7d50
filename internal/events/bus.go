package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher is the narrow producer-side contract. The engine and the
// orchestrator emit through it without knowing about subscriptions.
// Publish returns an error only when the bus is closed; producers treat
// emission as best effort and never propagate delivery failures.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus distributes events to subscribers with optional filtering.
//
// Thread safety: all methods are safe for concurrent use. Publish is
// non-blocking; if a subscriber's buffer is full the event is dropped
// for that subscriber only, and the error handler is notified.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	options     *busOptions
	closed      bool
}

// subscription is a single subscriber with its own buffered channel.
type subscription struct {
	id       string
	ch       chan Event
	filter   Filter
	ctx      context.Context
	cancel   context.CancelFunc
	created  time.Time
	received atomic.Int64
	dropped  atomic.Int64
}

type busOptions struct {
	defaultBufferSize int
	errorHandler      ErrorHandler
}

// ErrorHandler is called when the bus drops an event or hits an
// operational problem. Typical use is logging dropped events.
type ErrorHandler func(err error, context map[string]any)

// Option is a functional option for configuring a Bus.
type Option func(*busOptions)

// WithDefaultBufferSize sets the buffer size used when Subscribe is
// called with bufferSize=0. Default: 100 events.
func WithDefaultBufferSize(size int) Option {
	return func(opts *busOptions) {
		if size > 0 {
			opts.defaultBufferSize = size
		}
	}
}

// WithErrorHandler sets the handler invoked on dropped events.
// Default: no-op.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(opts *busOptions) {
		if handler != nil {
			opts.errorHandler = handler
		}
	}
}

// NewBus creates an event bus with the given options.
func NewBus(opts ...Option) *Bus {
	options := &busOptions{
		defaultBufferSize: 100,
		errorHandler:      func(error, map[string]any) {},
	}
	for _, opt := range opts {
		opt(options)
	}
	return &Bus{
		subscribers: make(map[string]*subscription),
		options:     options,
	}
}

// Publish sends an event to all subscribers whose filters match. Full
// subscriber buffers cause the event to be dropped for that subscriber
// so one slow consumer cannot stall producers or its peers.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	for _, sub := range b.subscribers {
		select {
		case <-sub.ctx.Done():
			// Subscriber gone, cleanup happens in unsubscribe.
			continue
		default:
		}

		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
			sub.received.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		default:
			sub.dropped.Add(1)
			b.options.errorHandler(
				fmt.Errorf("dropped event for slow subscriber"),
				map[string]any{
					"subscriber_id": sub.id,
					"event_type":    event.Type,
					"goal_id":       event.GoalID,
					"agent_id":      event.AgentID,
				},
			)
		}
	}

	return nil
}

// Subscribe creates a subscription with optional filtering. Pass
// Filter{} to receive all events and bufferSize 0 for the default
// buffer. The returned cleanup function must be called to unsubscribe;
// it closes the channel.
func (b *Bus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = b.options.defaultBufferSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:      nextSubscriberID(),
		ch:      make(chan Event, bufferSize),
		filter:  filter,
		ctx:     subCtx,
		cancel:  cancel,
		created: time.Now(),
	}
	b.subscribers[sub.id] = sub

	cleanup := func() {
		b.unsubscribe(sub.id)
	}
	return sub.ch, cleanup
}

func (b *Bus) unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[subscriberID]
	if !exists {
		return
	}

	sub.cancel()
	close(sub.ch)
	delete(b.subscribers, subscriberID)
}

// Close shuts down the bus and closes every subscriber channel.
// Idempotent; Publish fails after the first Close.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}

// SubscriberCount returns the number of active subscribers. Useful for
// monitoring and tests.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var subscriberSeq atomic.Uint64

func nextSubscriberID() string {
	return fmt.Sprintf("sub-%d-%d", time.Now().UnixNano(), subscriberSeq.Add(1))
}

var _ Publisher = (*Bus)(nil)
