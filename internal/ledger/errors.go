package ledger

import (
	"fmt"
	"sort"
	"strings"
)

// Field keys used in FieldValidationError.
const (
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldDate    = "date"
	FieldSlot    = "slot"
	FieldPackage = "package"
	FieldTheme   = "theme"
)

// FieldValidationError carries every failed field of a draft with its message.
type FieldValidationError struct {
	Fields map[string]string
}

// NewFieldValidationError returns an empty error ready for Add.
func NewFieldValidationError() *FieldValidationError {
	return &FieldValidationError{Fields: make(map[string]string)}
}

// Add records msg for field unless the field already failed.
func (e *FieldValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = msg
}

// Empty reports whether no field failed.
func (e *FieldValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *FieldValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SelectionReason explains why a range pick was rejected.
type SelectionReason string

const (
	BeforeStart SelectionReason = "before_start"
	Overlaps    SelectionReason = "overlaps"
	OutOfRange  SelectionReason = "out_of_range"
)

// RangeSelectionError is returned when a click cannot start or extend a candidate.
type RangeSelectionError struct {
	Reason  SelectionReason
	Clicked int
}

func (e *RangeSelectionError) Error() string {
	switch e.Reason {
	case BeforeStart:
		return "End time must be after start time"
	case Overlaps:
		return "Selected range includes already booked slots"
	case OutOfRange:
		return fmt.Sprintf("slot %d is outside operating hours", e.Clicked)
	default:
		return fmt.Sprintf("invalid selection: %s", e.Reason)
	}
}

// ConflictError is returned by Commit when the candidate overlaps a range
// committed since availability was read.
type ConflictError struct {
	Conflicting ReservedRange
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflict with reservation %s [%d,%d) on %s",
		e.Conflicting.ReservationID, e.Conflicting.Start, e.Conflicting.End,
		e.Conflicting.Date.Format("2006-01-02"))
}

// StoreError wraps a failure of the persistent store. It is always retryable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Retryable is always true: the request can be repeated as is.
func (e *StoreError) Retryable() bool {
	return true
}
