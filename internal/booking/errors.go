package booking

import "errors"

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrForbidden           = errors.New("reservation belongs to another user")
	ErrNotEditable         = errors.New("only upcoming reservations can be changed")
	ErrAlreadyCancelled    = errors.New("reservation already cancelled")
)
