package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(DeviceAttachedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case DeviceAttachedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceDetachedEvent:
		event.Publish(b.dispatcher, e)
	case PermissionResultEvent:
		event.Publish(b.dispatcher, e)
	case SessionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStatusEvent:
		event.Publish(b.dispatcher, e)
	case EncoderMetricsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type named by its parameter.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e SessionStateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(DeviceAttachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceDetachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PermissionResultEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStatusEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
