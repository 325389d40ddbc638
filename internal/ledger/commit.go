package ledger

// Commit re-checks n against the authoritative snapshot of committed ranges
// for its resource and date. Cancelled ranges and the reservation's own
// previous range are ignored. The first overlapping range is reported.
func Commit(n NormalizedReservation, existing []ReservedRange) (ReservedRange, error) {
	for _, r := range existing {
		if r.Cancelled {
			continue
		}
		if n.ReservationID != "" && r.ReservationID == n.ReservationID {
			continue
		}
		if r.ResourceID != "" && n.ResourceID != "" && r.ResourceID != n.ResourceID {
			continue
		}
		if !r.Date.IsZero() && !SameDay(r.Date, n.Date) {
			continue
		}
		if r.Overlaps(n.Range.Start, n.Range.End) {
			return ReservedRange{}, &ConflictError{Conflicting: r}
		}
	}

	return ReservedRange{
		ReservationID: n.ReservationID,
		ResourceID:    n.ResourceID,
		Date:          Day(n.Date),
		Start:         n.Range.Start,
		End:           n.Range.End,
	}, nil
}
