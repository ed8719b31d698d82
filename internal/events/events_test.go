package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	calls := 0
	bus.Subscribe(EventBookingSubmitted, func(event *Event) error {
		received = event
		calls++
		return nil
	})

	err := bus.PublishJSON(EventBookingSubmitted, BookingEventPayload{BookingID: 7, Status: "PENDING"})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	assert.Equal(t, EventBookingSubmitted, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, int64(7), decoded.BookingID)
	assert.Equal(t, "PENDING", decoded.Status)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(&logger)

	var order []int
	bus.Subscribe(EventIssueUpdated, func(_ *Event) error { order = append(order, 1); return errors.New("boom") })
	bus.Subscribe(EventIssueUpdated, func(_ *Event) error { order = append(order, 2); return nil })

	bus.Publish(&Event{Type: EventIssueUpdated})

	assert.Equal(t, []int{1, 2}, order, "a failing handler does not stop the rest")
	assert.Contains(t, buf.String(), "event handler failed")
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NotPanics(t, func() { bus.Publish(&Event{Type: "unknown"}) })
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON(EventIssueDeleted, IssueEventPayload{IssueID: 1}))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent(EventIssueCreated, IssueEventPayload{IssueID: 123, Status: "OPEN"})
	require.NoError(t, err)
	assert.Equal(t, EventIssueCreated, event.Type)
	assert.False(t, event.CreatedAt.IsZero())

	var decoded IssueEventPayload
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, int64(123), decoded.IssueID)

	_, err = NewJSONEvent("bad", make(chan int))
	assert.Error(t, err)
}
