package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalized(id string, start, end int) NormalizedReservation {
	return NormalizedReservation{
		ResourceID:    "wedding",
		ReservationID: id,
		Name:          "Asha Rao",
		Phone:         "9876543210",
		Date:          testDate,
		Range:         CandidateRange{Start: start, End: end},
		Package:       "Veg Food + Basic Decoration",
		Theme:         "Royal",
	}
}

func TestCommit_Accepts(t *testing.T) {
	existing := []ReservedRange{reserved("a", 0, 3), reserved("b", 8, 10)}

	got, err := Commit(normalized("c", 3, 8), existing)
	require.NoError(t, err)
	assert.Equal(t, ReservedRange{ReservationID: "c", ResourceID: "wedding", Date: testDate, Start: 3, End: 8}, got)
	assert.Equal(t, 5, got.Hours())
}

func TestCommit_NoFalseAcceptOrReject(t *testing.T) {
	cal, err := NewCalendar(6, 11)
	require.NoError(t, err)
	n := cal.Len()

	for es := 0; es < n; es++ {
		for ee := es + 1; ee <= n; ee++ {
			existing := []ReservedRange{reserved("x", es, ee)}
			for cs := 0; cs < n; cs++ {
				for ce := cs + 1; ce <= n; ce++ {
					name := fmt.Sprintf("existing[%d,%d) candidate[%d,%d)", es, ee, cs, ce)
					overlap := cs < ee && es < ce

					_, err := Commit(normalized("y", cs, ce), existing)
					if overlap {
						var conflict *ConflictError
						require.True(t, errors.As(err, &conflict), name)
						assert.Equal(t, "x", conflict.Conflicting.ReservationID, name)
					} else {
						assert.NoError(t, err, name)
					}
				}
			}
		}
	}
}

func TestCommit_RacingCommits(t *testing.T) {
	var snapshot []ReservedRange

	first, err := Commit(normalized("first", 4, 7), snapshot)
	require.NoError(t, err)

	// The store re-reads before the second write and now sees the first.
	snapshot = append(snapshot, first)
	_, err = Commit(normalized("second", 6, 9), snapshot)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "first", conflict.Conflicting.ReservationID)
	assert.Contains(t, conflict.Error(), "first")
}

func TestCommit_Skips(t *testing.T) {
	cancelled := reserved("gone", 2, 6)
	cancelled.Cancelled = true

	otherDay := reserved("other-day", 2, 6)
	otherDay.Date = testDate.AddDate(0, 0, 1)

	otherResource := reserved("other-resource", 2, 6)
	otherResource.ResourceID = "birthday"

	tests := []struct {
		name     string
		existing ReservedRange
	}{
		{name: "cancelled range", existing: cancelled},
		{name: "own previous range", existing: reserved("edit-me", 2, 6)},
		{name: "another date", existing: otherDay},
		{name: "another resource", existing: otherResource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Commit(normalized("edit-me", 3, 5), []ReservedRange{tt.existing})
			assert.NoError(t, err)
		})
	}
}
