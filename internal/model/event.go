package model

import (
	"slices"
	"time"

	"slotbook/internal/ledger"
)

// Event is a bookable resource from the catalog.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Price       int64     `json:"price,omitempty"`
	OpenHour    int       `json:"open_hour"`
	CloseHour   int       `json:"close_hour"`
	Packages    []string  `json:"packages"`
	Themes      []string  `json:"themes"`
	IsActive    bool      `json:"is_active"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Calendar builds the hourly calendar of the event.
func (e *Event) Calendar() (ledger.Calendar, error) {
	return ledger.NewCalendar(e.OpenHour, e.CloseHour)
}

// OffersPackage reports whether pkg can be booked for the event. An event
// without a package list accepts any package.
func (e *Event) OffersPackage(pkg string) bool {
	return len(e.Packages) == 0 || slices.Contains(e.Packages, pkg)
}

// OffersTheme reports whether theme can be booked for the event.
func (e *Event) OffersTheme(theme string) bool {
	return len(e.Themes) == 0 || slices.Contains(e.Themes, theme)
}

// Holiday is a date on which no event can be booked.
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}
