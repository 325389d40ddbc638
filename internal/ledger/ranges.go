package ledger

import "time"

// ReservedRange is a committed [Start, End) span of slot indices on one date.
type ReservedRange struct {
	ReservationID string    `json:"reservation_id"`
	ResourceID    string    `json:"resource_id"`
	Date          time.Time `json:"date"`
	Start         int       `json:"start"`
	End           int       `json:"end"`
	Cancelled     bool      `json:"cancelled"`
}

// Hours is the length of the range.
func (r ReservedRange) Hours() int {
	return r.End - r.Start
}

// Covers reports whether index lies inside the range.
func (r ReservedRange) Covers(index int) bool {
	return index >= r.Start && index < r.End
}

// Overlaps reports whether the range shares at least one slot with [start, end).
func (r ReservedRange) Overlaps(start, end int) bool {
	return r.Start < end && start < r.End
}

// CandidateRange is a range being picked by a requester.
type CandidateRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Hours is the length of the candidate.
func (c CandidateRange) Hours() int {
	return c.End - c.Start
}

// Empty reports whether the candidate selects no slot.
func (c CandidateRange) Empty() bool {
	return c.End <= c.Start
}

// Covers reports whether index lies inside the candidate.
func (c CandidateRange) Covers(index int) bool {
	return index >= c.Start && index < c.End
}

func bookedAt(reserved []ReservedRange, index int) bool {
	for _, r := range reserved {
		if !r.Cancelled && r.Covers(index) {
			return true
		}
	}
	return false
}
