package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingConfirmed, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventBookingConfirmed, BookingEventPayload{BookingID: 7, Status: "confirmed"})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventBookingConfirmed, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.Equal(t, "confirmed", decoded.Status)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	seen := map[string]int{}

	bus.SubscribeAll(AllBookingEvents, func(e *Event) error {
		seen[e.Type]++
		return nil
	})

	for _, name := range AllBookingEvents {
		require.NoError(t, bus.PublishJSON(name, BookingEventPayload{}))
	}
	assert.Len(t, seen, len(AllBookingEvents))
}

func TestEventBusErrorHook(t *testing.T) {
	bus := NewEventBus()
	var hooked error
	bus.OnError(func(_ *Event, err error) { hooked = err })

	failure := errors.New("sheets down")
	var second bool
	bus.Subscribe("event", func(_ *Event) error { return failure })
	bus.Subscribe("event", func(_ *Event) error { second = true; return nil })

	bus.Publish(&Event{Type: "event"})

	assert.ErrorIs(t, hooked, failure)
	assert.True(t, second, "a failing handler must not stop the rest")
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() { bus.Publish(&Event{Type: "unknown"}) })
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent("type", BookingEventPayload{BookingID: 123})
	require.NoError(t, err)

	assert.Equal(t, "type", event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, int64(123), decoded.BookingID)

	_, err = NewJSONEvent("type", make(chan int))
	assert.Error(t, err)
}
