package ledger

import "time"

// Status is the lifecycle state of a reservation as seen on a given day.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusPast      Status = "past"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts the three status names and reports whether s matched.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusUpcoming, StatusPast, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// Classify derives the status of r as of asOf. Cancellation wins; otherwise a
// reservation dated today or later is upcoming.
func Classify(r ReservedRange, asOf time.Time) Status {
	if r.Cancelled {
		return StatusCancelled
	}
	if !Day(r.Date).Before(Day(asOf)) {
		return StatusUpcoming
	}
	return StatusPast
}
