// Package events provides the observability event bus for the workforce
// core.
//
// The bus is the single hub for goal and agent lifecycle events. The
// execution engine and the orchestrator publish through the Publisher
// interface; consumers subscribe with optional filtering by event type,
// goal ID, or agent ID.
//
// # Delivery semantics
//
// Publish never blocks. Each subscriber owns a buffered channel; when a
// buffer is full the event is dropped for that subscriber only and the
// configured error handler is invoked. Producers treat emission as best
// effort and do not react to delivery failures.
//
// # Usage
//
//	bus := events.NewBus(
//		events.WithDefaultBufferSize(256),
//		events.WithErrorHandler(func(err error, ctx map[string]any) {
//			logger.Warn("event bus", "error", err)
//		}),
//	)
//	defer bus.Close()
//
//	ch, cleanup := bus.Subscribe(ctx, events.Filter{
//		Types:  []events.EventType{events.EventStepCompleted},
//		GoalID: goalID,
//	}, 0)
//	defer cleanup()
//
//	for event := range ch {
//		// handle event
//	}
//
// All filter fields use AND logic; empty fields act as wildcards.
package events
