package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		from   string
		months int
		want   string
	}{
		{"2025-03-03", -2, "2025-01-03"},
		{"2025-03-03", 3, "2025-06-03"},
		{"2025-01-31", 1, "2025-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2025-05-31", -3, "2025-02-28"},
		{"2024-12-15", 3, "2025-03-15"},
		{"2025-02-10", -3, "2024-11-10"},
		{"2025-08-31", 1, "2025-09-30"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, day(tt.want), AddMonths(day(tt.from), tt.months))
		})
	}
}

func TestDate(t *testing.T) {
	loc := time.FixedZone("SGT", 8*3600)
	got := Date(time.Date(2025, 3, 10, 23, 59, 0, 0, loc))
	assert.Equal(t, day("2025-03-10"), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[RequestStatus][]RequestStatus{
		StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
		StatusApproved: {StatusWithdrawn},
	}
	all := []RequestStatus{StatusPending, StatusApproved, StatusRejected, StatusWithdrawn, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusWithdrawn.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestParseClosedTypes(t *testing.T) {
	_, err := ParseTimeslot("FULL")
	assert.NoError(t, err)
	_, err = ParseTimeslot("full")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseRequestStatus("Withdrawn")
	assert.NoError(t, err)
	_, err = ParseRequestStatus("Expired")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseRole("Manager")
	assert.NoError(t, err)
	_, err = ParseRole("Director")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ParseDecision("approve")
	assert.NoError(t, err)
	_, err = ParseDecision("APPROVE")
	assert.ErrorIs(t, err, ErrValidation)

	w, err := ParseWeekday("Friday")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, w.Std())
	_, err = ParseWeekday("Sunday")
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestTimeslotOverlaps(t *testing.T) {
	assert.True(t, TimeslotAM.Overlaps(TimeslotAM))
	assert.False(t, TimeslotAM.Overlaps(TimeslotPM))
	assert.True(t, TimeslotAM.Overlaps(TimeslotFull))
	assert.True(t, TimeslotFull.Overlaps(TimeslotPM))

	assert.True(t, TimeslotFull.CoversAM())
	assert.True(t, TimeslotFull.CoversPM())
	assert.False(t, TimeslotPM.CoversAM())
}

func TestBlockoutCovers(t *testing.T) {
	b := &Blockout{StartDate: day("2025-03-10"), EndDate: day("2025-03-12"), Timeslot: TimeslotAM}

	assert.True(t, b.Covers(day("2025-03-10"), TimeslotAM))
	assert.True(t, b.Covers(day("2025-03-12"), TimeslotFull))
	assert.False(t, b.Covers(day("2025-03-11"), TimeslotPM))
	assert.False(t, b.Covers(day("2025-03-13"), TimeslotAM))
	assert.False(t, b.Covers(day("2025-03-09"), TimeslotAM))
}

func TestRequestValidate(t *testing.T) {
	d := day("2025-03-10")
	recurrence := &Recurrence{Weekday: Monday, StartDate: d, EndDate: day("2025-03-31")}

	assert.NoError(t, (&Request{ArrangementDate: &d, ArrangementDates: []time.Time{d}}).Validate())
	assert.NoError(t, (&Request{Recurrence: recurrence, ArrangementDates: []time.Time{d}}).Validate())

	assert.ErrorIs(t, (&Request{ArrangementDates: []time.Time{d}}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Request{ArrangementDate: &d, Recurrence: recurrence, ArrangementDates: []time.Time{d}}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&Request{Recurrence: recurrence}).Validate(), ErrNoDatesGenerated)
	assert.Error(t, (&Request{ArrangementDate: &d, ArrangementDates: []time.Time{day("2025-03-11")}}).Validate())
}

func TestRevokeDates(t *testing.T) {
	task := &RevocationTask{Items: []RevocationItem{
		{RequestID: 2, ArrangementID: 1, Date: day("2025-02-20")},
		{RequestID: 1, ArrangementID: 1, Date: day("2025-01-15")},
		{RequestID: 3, ArrangementID: 1, Date: day("2025-02-20")},
	}}

	assert.Equal(t, []time.Time{day("2025-01-15"), day("2025-02-20")}, task.RevokeDates())
	assert.Empty(t, (&RevocationTask{}).RevokeDates())
}

func TestErrorTaxonomy(t *testing.T) {
	denied := error(&AdmissionDeniedError{Failures: []DateFailure{{Date: day("2025-03-10"), Reason: "AM"}}})
	assert.ErrorIs(t, denied, ErrAdmissionDenied)
	assert.Contains(t, denied.Error(), "2025-03-10")

	assert.ErrorIs(t, &DuplicateDateError{Dates: []time.Time{day("2025-03-10")}}, ErrValidation)
	assert.ErrorIs(t, &DateOutOfRangeError{}, ErrDateOutOfRange)
	assert.ErrorIs(t, &BlockedOutError{}, ErrBlockedOut)
	assert.ErrorIs(t, &RevocationTooLateError{}, ErrValidation)
	assert.ErrorIs(t, &InvalidTransitionError{From: StatusApproved, To: StatusCancelled}, ErrInvalidTransition)
	assert.ErrorIs(t, ErrLockNotAcquired, ErrConcurrentModification)

	cause := errors.New("connection refused")
	upstream := error(&UpstreamError{Op: "获取申请", Err: cause})
	assert.ErrorIs(t, upstream, ErrUpstreamUnavailable)
	assert.ErrorIs(t, upstream, cause)
	assert.NotErrorIs(t, upstream, ErrValidation)
}
