package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() Draft {
	return Draft{
		ResourceID: "wedding",
		Name:       "Asha Rao",
		Phone:      "9876543210",
		Date:       testDate,
		Range:      &CandidateRange{Start: 2, End: 5},
		Package:    "Veg Food + Basic Decoration",
		Theme:      "Royal",
	}
}

func TestValidate_Accepts(t *testing.T) {
	d := validDraft()
	d.Name = "  Asha Rao  "
	d.Phone = "98765 43210"
	d.Date = testDate.Add(15 * time.Hour)

	n, err := Validate(d, DefaultCalendar(), testDate)
	require.NoError(t, err)

	assert.Equal(t, "Asha Rao", n.Name)
	assert.Equal(t, "9876543210", n.Phone)
	assert.Equal(t, testDate, n.Date)
	assert.Equal(t, CandidateRange{Start: 2, End: 5}, n.Range)
	assert.Equal(t, "wedding", n.ResourceID)
}

func TestValidate_CollectsEveryField(t *testing.T) {
	_, err := Validate(Draft{}, DefaultCalendar(), testDate)

	var fieldErr *FieldValidationError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, map[string]string{
		FieldName:    "Name is required",
		FieldPhone:   "Phone number is required",
		FieldDate:    "Please select a date",
		FieldSlot:    "Please select a time slot",
		FieldPackage: "Please select food/decoration package",
		FieldTheme:   "Please select a decoration theme",
	}, fieldErr.Fields)
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Draft)
		field   string
		message string
	}{
		{
			name:    "short name after trim",
			mutate:  func(d *Draft) { d.Name = "  Al  " },
			field:   FieldName,
			message: "Name must be at least 3 characters",
		},
		{
			name:    "blank name",
			mutate:  func(d *Draft) { d.Name = "   " },
			field:   FieldName,
			message: "Name is required",
		},
		{
			name:    "phone too short",
			mutate:  func(d *Draft) { d.Phone = "12345" },
			field:   FieldPhone,
			message: "Phone number must be 10 digits",
		},
		{
			name:    "phone with letters",
			mutate:  func(d *Draft) { d.Phone = "98765abcde" },
			field:   FieldPhone,
			message: "Phone number must be 10 digits",
		},
		{
			name:    "phone with dashes",
			mutate:  func(d *Draft) { d.Phone = "987-654-3210" },
			field:   FieldPhone,
			message: "Phone number must be 10 digits",
		},
		{
			name:    "date in the past",
			mutate:  func(d *Draft) { d.Date = testDate.AddDate(0, 0, -1) },
			field:   FieldDate,
			message: "Date cannot be in the past",
		},
		{
			name:    "empty range",
			mutate:  func(d *Draft) { d.Range = &CandidateRange{Start: 4, End: 4} },
			field:   FieldSlot,
			message: "Please select a time slot",
		},
		{
			name:    "range past closing",
			mutate:  func(d *Draft) { d.Range = &CandidateRange{Start: 15, End: 18} },
			field:   FieldSlot,
			message: "Time slot is outside operating hours",
		},
		{
			name:    "blank package",
			mutate:  func(d *Draft) { d.Package = " " },
			field:   FieldPackage,
			message: "Please select food/decoration package",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			_, err := Validate(d, DefaultCalendar(), testDate)

			var fieldErr *FieldValidationError
			require.True(t, errors.As(err, &fieldErr))
			assert.Len(t, fieldErr.Fields, 1)
			assert.Equal(t, tt.message, fieldErr.Fields[tt.field])
		})
	}
}

func TestValidate_TodayIsAllowed(t *testing.T) {
	d := validDraft()
	now := testDate.Add(21 * time.Hour)

	_, err := Validate(d, DefaultCalendar(), now)
	assert.NoError(t, err)
}

func TestFieldValidationError_Message(t *testing.T) {
	e := NewFieldValidationError()
	e.Add(FieldPhone, "Phone number must be 10 digits")
	e.Add(FieldName, "Name is required")
	e.Add(FieldName, "ignored")

	assert.Equal(t, "validation failed: name: Name is required; phone: Phone number must be 10 digits", e.Error())
}
