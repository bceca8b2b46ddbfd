// sim/bus.go
package sim

import "github.com/google/uuid"

// Event types published by device processes.
const (
	EventDeviceStart  = "device_start"
	EventDeviceFinish = "device_finish"
)

// Subscription identifies one subscriber for later removal.
type Subscription string

// subscriber pairs a callback with its token.
type subscriber struct {
	id Subscription
	fn func(payload map[string]any)
}

// EventBus fans lifecycle notifications out to external observers. Delivery
// is synchronous and in-process, in subscription order, best-effort: no
// persistence, no retry. The core only publishes; nothing in the engine
// depends on a subscriber being present.
type EventBus struct {
	subscribers map[string][]subscriber
}

// NewEventBus creates a bus with no subscribers.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]subscriber)}
}

// Subscribe registers fn for the event type and returns a token for
// Unsubscribe.
func (b *EventBus) Subscribe(eventType string, fn func(payload map[string]any)) Subscription {
	id := Subscription(uuid.NewString())
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber{id: id, fn: fn})
	return id
}

// Unsubscribe removes the subscriber registered under the token.
func (b *EventBus) Unsubscribe(token Subscription) {
	for eventType, subs := range b.subscribers {
		for i, s := range subs {
			if s.id == token {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers payload to every subscriber of the event type.
func (b *EventBus) Publish(eventType string, payload map[string]any) {
	for _, s := range b.subscribers[eventType] {
		s.fn(payload)
	}
}
