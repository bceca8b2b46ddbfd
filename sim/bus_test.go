package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus_PublishDeliversInSubscriptionOrder(t *testing.T) {
	b := NewEventBus()
	var order []string
	b.Subscribe(EventDeviceStart, func(p map[string]any) { order = append(order, "first") })
	b.Subscribe(EventDeviceStart, func(p map[string]any) { order = append(order, "second") })

	b.Publish(EventDeviceStart, map[string]any{"job_id": 1})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEventBus_PublishFiltersByEventType(t *testing.T) {
	b := NewEventBus()
	got := 0
	b.Subscribe(EventDeviceFinish, func(p map[string]any) { got++ })

	b.Publish(EventDeviceStart, nil)
	b.Publish(EventDeviceFinish, nil)

	assert.Equal(t, 1, got)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	b := NewEventBus()
	got := 0
	token := b.Subscribe(EventDeviceStart, func(p map[string]any) { got++ })
	keep := 0
	b.Subscribe(EventDeviceStart, func(p map[string]any) { keep++ })

	b.Unsubscribe(token)
	b.Publish(EventDeviceStart, nil)

	assert.Equal(t, 0, got)
	assert.Equal(t, 1, keep)
}

func TestEventBus_PublishWithNoSubscribersIsNoop(t *testing.T) {
	b := NewEventBus()
	assert.NotPanics(t, func() { b.Publish(EventDeviceStart, map[string]any{"job_id": 1}) })
}
