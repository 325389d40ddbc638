// Package ledger keeps hourly reservations for a single resource and date
// free of overlaps. Every function here is pure: callers pass the committed
// ranges and the current date in, nothing is read from a clock or a store.
package ledger

import (
	"fmt"
	"time"
)

const (
	DefaultOpenHour  = 6
	DefaultCloseHour = 22

	labelLayout = "03:04 PM"
)

// HourSlot is one bookable hour of the operating calendar.
type HourSlot struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// Calendar is the ordered list of hourly marks a resource can be booked at.
// The last mark is itself a bookable hour.
type Calendar struct {
	open  int
	slots []HourSlot
}

// NewCalendar builds a calendar with one slot per hour from openHour to
// closeHour inclusive.
func NewCalendar(openHour, closeHour int) (Calendar, error) {
	if openHour < 0 || closeHour > 23 {
		return Calendar{}, fmt.Errorf("hours must be within 0-23, got %d-%d", openHour, closeHour)
	}
	if closeHour < openHour {
		return Calendar{}, fmt.Errorf("close hour %d is before open hour %d", closeHour, openHour)
	}

	slots := make([]HourSlot, 0, closeHour-openHour+1)
	for h := openHour; h <= closeHour; h++ {
		slots = append(slots, HourSlot{Index: h - openHour, Label: hourLabel(h)})
	}
	return Calendar{open: openHour, slots: slots}, nil
}

// DefaultCalendar returns the 06:00 AM .. 10:00 PM calendar.
func DefaultCalendar() Calendar {
	cal, _ := NewCalendar(DefaultOpenHour, DefaultCloseHour)
	return cal
}

// Len returns the number of slots.
func (c Calendar) Len() int {
	return len(c.slots)
}

// Slots returns a copy of all slots in order.
func (c Calendar) Slots() []HourSlot {
	out := make([]HourSlot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Has reports whether index addresses a slot.
func (c Calendar) Has(index int) bool {
	return index >= 0 && index < len(c.slots)
}

// Label returns the label of the slot at index, or "" when out of range.
func (c Calendar) Label(index int) string {
	if !c.Has(index) {
		return ""
	}
	return c.slots[index].Label
}

// BoundaryLabel returns the clock label of the hour mark at boundary i, where
// boundary Len() is the end of the last slot.
func (c Calendar) BoundaryLabel(i int) string {
	if i < 0 || i > len(c.slots) {
		return ""
	}
	return hourLabel(c.open + i)
}

func hourLabel(h int) string {
	return time.Date(2000, time.January, 1, h, 0, 0, 0, time.UTC).Format(labelLayout)
}

// Contains reports whether [start, end) is a non-empty range inside the calendar.
func (c Calendar) Contains(start, end int) bool {
	return start >= 0 && start < end && end <= len(c.slots)
}

// Day strips the time of day, keeping the calendar date of t.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
