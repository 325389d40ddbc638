package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	today := time.Date(2026, 5, 20, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		date      time.Time
		cancelled bool
		want      Status
	}{
		{name: "yesterday", date: today.AddDate(0, 0, -1), want: StatusPast},
		{name: "yesterday cancelled", date: today.AddDate(0, 0, -1), cancelled: true, want: StatusCancelled},
		{name: "today earlier hour", date: time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), want: StatusUpcoming},
		{name: "tomorrow", date: today.AddDate(0, 0, 1), want: StatusUpcoming},
		{name: "tomorrow cancelled", date: today.AddDate(0, 0, 1), cancelled: true, want: StatusCancelled},
		{name: "late yesterday", date: time.Date(2026, 5, 19, 23, 59, 0, 0, time.UTC), want: StatusPast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ReservedRange{Date: tt.date, Start: 1, End: 2, Cancelled: tt.cancelled}
			assert.Equal(t, tt.want, Classify(r, today))
			// Same inputs, same answer.
			assert.Equal(t, Classify(r, today), Classify(r, today))
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("past")
	assert.True(t, ok)
	assert.Equal(t, StatusPast, s)

	_, ok = ParseStatus("pending")
	assert.False(t, ok)
}
