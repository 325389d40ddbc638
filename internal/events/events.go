package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	BookingCreated   = "booking.created"
	BookingUpdated   = "booking.updated"
	BookingCancelled = "booking.cancelled"
)

// Types lists every event type the booking service publishes.
var Types = []string{BookingCreated, BookingUpdated, BookingCancelled}

// Booking describes the reservation an event is about.
type Booking struct {
	ReservationID string   `json:"reservation_id"`
	EventID       string   `json:"event_id"`
	EventTitle    string   `json:"event_title"`
	UserID        string   `json:"user_id"`
	ContactName   string   `json:"contact_name"`
	Phone         string   `json:"phone"`
	Email         string   `json:"email,omitempty"`
	Date          string   `json:"date"`
	StartLabel    string   `json:"start"`
	EndLabel      string   `json:"end"`
	Hours         int      `json:"hours"`
	Package       string   `json:"package"`
	Theme         string   `json:"theme"`
	Guests        int      `json:"expected_guests,omitempty"`
	Vendors       []string `json:"vendors,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string    `json:"type"`
	Booking   Booking   `json:"booking"`
	CreatedAt time.Time `json:"created_at"`
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler failures are logged to logger
// when it is not nil.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every booking event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range Types {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// in subscription order; a failing handler does not stop the others.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).
				Str("type", event.Type).
				Str("reservation_id", event.Booking.ReservationID).
				Msg("event handler failed")
		}
	}
}

// Async wraps handler so it runs on its own goroutine. Failures are logged to
// logger when it is not nil.
func Async(handler EventHandler, logger *zerolog.Logger) EventHandler {
	return func(event Event) error {
		go func() {
			if err := handler(event); err != nil && logger != nil {
				logger.Warn().Err(err).
					Str("type", event.Type).
					Str("reservation_id", event.Booking.ReservationID).
					Msg("async event handler failed")
			}
		}()
		return nil
	}
}
