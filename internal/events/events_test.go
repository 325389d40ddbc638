package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Publish(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	bus := NewEventBus(&logger)

	var got []string
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, "first:"+e.Booking.ReservationID)
		return errors.New("broker down")
	})
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, "second:"+e.Booking.ReservationID)
		assert.False(t, e.CreatedAt.IsZero())
		return nil
	})
	bus.Subscribe(BookingCancelled, func(e Event) error {
		got = append(got, "cancelled")
		return nil
	})

	bus.Publish(Event{Type: BookingCreated, Booking: Booking{ReservationID: "r1"}})

	assert.Equal(t, []string{"first:r1", "second:r1"}, got)
	assert.Contains(t, logs.String(), "broker down")
	assert.Contains(t, logs.String(), `"reservation_id":"r1"`)
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(nil)

	seen := map[string]int{}
	bus.SubscribeAll(func(e Event) error {
		seen[e.Type]++
		return nil
	})

	for _, typ := range Types {
		bus.Publish(Event{Type: typ})
	}
	bus.Publish(Event{Type: "unrelated"})

	require.Len(t, seen, 3)
	for _, typ := range Types {
		assert.Equal(t, 1, seen[typ])
	}
}

func TestAsync(t *testing.T) {
	bus := NewEventBus(nil)
	done := make(chan string, 1)
	release := make(chan struct{})

	bus.Subscribe(BookingUpdated, Async(func(e Event) error {
		<-release
		done <- e.Booking.ReservationID
		return errors.New("slow handler failed")
	}, nil))

	bus.Publish(Event{Type: BookingUpdated, Booking: Booking{ReservationID: "r-7"}})
	close(release)
	assert.Equal(t, "r-7", <-done)
}
