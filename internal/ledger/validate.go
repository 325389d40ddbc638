package ledger

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const minNameLength = 3

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// Draft is a reservation as submitted, before any check.
type Draft struct {
	ResourceID    string
	ReservationID string // set when editing an existing reservation
	Name          string
	Phone         string
	Date          time.Time
	Range         *CandidateRange
	Package       string
	Theme         string
}

// NormalizedReservation is a draft that passed Validate: name trimmed, phone
// reduced to digits, date stripped of time of day.
type NormalizedReservation struct {
	ResourceID    string
	ReservationID string
	Name          string
	Phone         string
	Date          time.Time
	Range         CandidateRange
	Package       string
	Theme         string
}

// Validate checks every field of the draft and reports all failures at once.
// today is the caller's current date; dates before it are rejected.
func Validate(d Draft, cal Calendar, today time.Time) (NormalizedReservation, error) {
	errs := NewFieldValidationError()

	name := strings.TrimSpace(d.Name)
	switch {
	case name == "":
		errs.Add(FieldName, "Name is required")
	case utf8.RuneCountInString(name) < minNameLength:
		errs.Add(FieldName, "Name must be at least 3 characters")
	}

	phone := stripSpaces(d.Phone)
	switch {
	case phone == "":
		errs.Add(FieldPhone, "Phone number is required")
	case !phonePattern.MatchString(phone):
		errs.Add(FieldPhone, "Phone number must be 10 digits")
	}

	date := Day(d.Date)
	switch {
	case d.Date.IsZero():
		errs.Add(FieldDate, "Please select a date")
	case date.Before(Day(today)):
		errs.Add(FieldDate, "Date cannot be in the past")
	}

	switch {
	case d.Range == nil || d.Range.Empty():
		errs.Add(FieldSlot, "Please select a time slot")
	case !cal.Contains(d.Range.Start, d.Range.End):
		errs.Add(FieldSlot, "Time slot is outside operating hours")
	}

	if strings.TrimSpace(d.Package) == "" {
		errs.Add(FieldPackage, "Please select food/decoration package")
	}
	if strings.TrimSpace(d.Theme) == "" {
		errs.Add(FieldTheme, "Please select a decoration theme")
	}

	if !errs.Empty() {
		return NormalizedReservation{}, errs
	}

	return NormalizedReservation{
		ResourceID:    d.ResourceID,
		ReservationID: d.ReservationID,
		Name:          name,
		Phone:         phone,
		Date:          date,
		Range:         *d.Range,
		Package:       strings.TrimSpace(d.Package),
		Theme:         strings.TrimSpace(d.Theme),
	}, nil
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
