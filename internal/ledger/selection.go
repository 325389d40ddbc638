package ledger

// SlotStatus is the derived state of one hour for presentation.
type SlotStatus struct {
	Index      int    `json:"index"`
	Label      string `json:"label"`
	IsBooked   bool   `json:"is_booked"`
	IsSelected bool   `json:"is_selected"`
}

// Availability marks each calendar slot as booked when any non-cancelled
// reserved range covers it, and as selected when the candidate covers it.
func Availability(cal Calendar, reserved []ReservedRange, candidate *CandidateRange) []SlotStatus {
	out := make([]SlotStatus, 0, cal.Len())
	for _, s := range cal.slots {
		st := SlotStatus{
			Index:    s.Index,
			Label:    s.Label,
			IsBooked: bookedAt(reserved, s.Index),
		}
		if candidate != nil {
			st.IsSelected = candidate.Covers(s.Index)
		}
		out = append(out, st)
	}
	return out
}

// BeginSelection starts a one-hour candidate at clicked.
func BeginSelection(cal Calendar, clicked int) (CandidateRange, error) {
	if !cal.Has(clicked) {
		return CandidateRange{}, &RangeSelectionError{Reason: OutOfRange, Clicked: clicked}
	}
	return CandidateRange{Start: clicked, End: clicked + 1}, nil
}

// ExtendSelection moves the end of candidate to include clicked. The start
// never moves. Rejections leave the candidate as it was. A candidate that is
// empty or not inside the calendar is rejected as out of range.
func ExtendSelection(candidate CandidateRange, cal Calendar, reserved []ReservedRange, clicked int) (CandidateRange, error) {
	if !cal.Contains(candidate.Start, candidate.End) {
		return candidate, &RangeSelectionError{Reason: OutOfRange, Clicked: clicked}
	}
	if clicked < candidate.Start {
		return candidate, &RangeSelectionError{Reason: BeforeStart, Clicked: clicked}
	}
	if !cal.Has(clicked) {
		return candidate, &RangeSelectionError{Reason: OutOfRange, Clicked: clicked}
	}
	for i := candidate.Start; i <= clicked; i++ {
		if bookedAt(reserved, i) {
			return candidate, &RangeSelectionError{Reason: Overlaps, Clicked: clicked}
		}
	}
	return CandidateRange{Start: candidate.Start, End: clicked + 1}, nil
}
