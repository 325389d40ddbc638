package model

import (
	"time"

	"slotbook/internal/ledger"
)

// DateLayout is the wire and storage format of reservation dates.
const DateLayout = "2006-01-02"

type Reservation struct {
	ID             string        `json:"id"`
	EventID        string        `json:"event_id"`
	EventTitle     string        `json:"event_title,omitempty"`
	UserID         string        `json:"user_id"`
	UserName       string        `json:"user_name,omitempty"`
	Email          string        `json:"email,omitempty"`
	ContactName    string        `json:"name"`
	Phone          string        `json:"phone"`
	Date           time.Time     `json:"-"`
	StartIndex     int           `json:"start_index"`
	EndIndex       int           `json:"end_index"`
	Package        string        `json:"package"`
	Theme          string        `json:"theme"`
	Guests         int           `json:"expected_guests"`
	Vendors        []string      `json:"vendors"`
	TechnicalSetup []string      `json:"technical_setup"`
	Cancelled      bool          `json:"cancelled"`
	Status         ledger.Status `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CancelledAt    *time.Time    `json:"cancelled_at,omitempty"`
}

// Range returns the reservation as a ledger range.
func (r *Reservation) Range() ledger.ReservedRange {
	return ledger.ReservedRange{
		ReservationID: r.ID,
		ResourceID:    r.EventID,
		Date:          r.Date,
		Start:         r.StartIndex,
		End:           r.EndIndex,
		Cancelled:     r.Cancelled,
	}
}

// Normalized returns the fields the ledger needs to commit the reservation.
func (r *Reservation) Normalized() ledger.NormalizedReservation {
	return ledger.NormalizedReservation{
		ResourceID:    r.EventID,
		ReservationID: r.ID,
		Name:          r.ContactName,
		Phone:         r.Phone,
		Date:          r.Date,
		Range:         ledger.CandidateRange{Start: r.StartIndex, End: r.EndIndex},
		Package:       r.Package,
		Theme:         r.Theme,
	}
}

// Hours is the booked duration in whole hours.
func (r *Reservation) Hours() int {
	return r.EndIndex - r.StartIndex
}

// DateString formats the reservation date as YYYY-MM-DD.
func (r *Reservation) DateString() string {
	return r.Date.Format(DateLayout)
}

// Classify stamps Status with the state derived for asOf and returns it.
func (r *Reservation) Classify(asOf time.Time) ledger.Status {
	r.Status = ledger.Classify(r.Range(), asOf)
	return r.Status
}
