// Package events carries render job lifecycle events between components.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous: handlers run on the dispatcher's goroutines.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. A nil bus drops the event.
// Usage: bus.Publish(JobLaunchedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case JobLaunchedEvent:
		event.Publish(b.dispatcher, e)
	case JobStalledEvent:
		event.Publish(b.dispatcher, e)
	case JobExitedEvent:
		event.Publish(b.dispatcher, e)
	case FileOffloadedEvent:
		event.Publish(b.dispatcher, e)
	case StitchAttemptEvent:
		event.Publish(b.dispatcher, e)
	case RunFinishedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e JobExitedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(JobLaunchedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JobStalledEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JobExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FileOffloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StitchAttemptEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// SubscribeToChannel forwards events of type T into ch, dropping them when
// ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- T) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
