package metrics

import (
	"testing"
	"time"

	"slotbook/internal/events"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(reservations.WithLabelValues("create", ResultConflict))
	IncReservation("create", ResultConflict)
	assert.Equal(t, before+1, testutil.ToFloat64(reservations.WithLabelValues("create", ResultConflict)))

	IncSelectionRejected("overlaps")
	assert.GreaterOrEqual(t, testutil.ToFloat64(selectionRejected.WithLabelValues("overlaps")), 1.0)

	ObserveHTTP("GET", "/v1/events", 200, 15*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/events", "200")), 1.0)
}

func TestHandleEvent(t *testing.T) {
	before := testutil.ToFloat64(bookedHours.WithLabelValues("gala"))

	assert.NoError(t, HandleEvent(events.Event{Type: events.BookingCreated, Booking: events.Booking{EventID: "gala", Hours: 3}}))
	assert.NoError(t, HandleEvent(events.Event{Type: events.BookingCancelled, Booking: events.Booking{EventID: "gala", Hours: 3}}))

	assert.Equal(t, before+3, testutil.ToFloat64(bookedHours.WithLabelValues("gala")))
}
