package metrics

import (
	"strconv"
	"sync"
	"time"

	"slotbook/internal/events"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotbook"

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Count of reservation writes by operation and result.",
		},
		[]string{"operation", "result"},
	)

	selectionRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selection_rejected_total",
			Help:      "Count of rejected range picks by reason.",
		},
		[]string{"reason"},
	)

	bookedHours = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booked_hours_total",
			Help:      "Hours booked per event.",
		},
		[]string{"event_id"},
	)

	statusReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_reconciled_total",
			Help:      "Count of stored statuses corrected by the reconciler.",
		},
		[]string{"status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, selectionRejected, bookedHours, statusReconciled, httpRequests, httpDuration)
	})
}

// Results of a reservation write.
const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultConflict  = "conflict"
	ResultForbidden = "forbidden"
	ResultError     = "error"
)

func IncReservation(operation, result string) {
	reservations.WithLabelValues(operation, result).Inc()
}

func IncSelectionRejected(reason string) {
	selectionRejected.WithLabelValues(reason).Inc()
}

func IncStatusReconciled(status string) {
	statusReconciled.WithLabelValues(status).Inc()
}

func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// HandleEvent counts booked hours from booking events.
func HandleEvent(e events.Event) error {
	if e.Type == events.BookingCreated {
		bookedHours.WithLabelValues(e.Booking.EventID).Add(float64(e.Booking.Hours))
	}
	return nil
}
