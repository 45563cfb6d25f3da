package subscription

import (
	"testing"
	"time"

	"subscription_notifier/internal/domain/calendar"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) calendar.Date {
	return calendar.NewDate(y, m, d)
}

func TestComputeNextCycle_FirstCycle(t *testing.T) {
	today := date(2025, time.June, 1)

	p, err := ComputeNextCycle(nil, 30, today)
	require.NoError(t, err)

	assert.Equal(t, today, p.Start)
	assert.Equal(t, date(2025, time.July, 1), p.End)
	assert.Equal(t, 30, p.DaysSubscribed)
}

func TestComputeNextCycle_LapsedGetsNoCredit(t *testing.T) {
	last := &Cycle{StartDate: date(2025, time.May, 11), EndDate: date(2025, time.June, 10)}

	p, err := ComputeNextCycle(last, 30, date(2025, time.June, 20))
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.June, 20), p.Start)
	assert.Equal(t, date(2025, time.July, 20), p.End)
	assert.Equal(t, 30, p.DaysSubscribed)
}

func TestComputeNextCycle_ActiveChainsWithoutGap(t *testing.T) {
	last := &Cycle{StartDate: date(2025, time.May, 11), EndDate: date(2025, time.June, 10)}

	p, err := ComputeNextCycle(last, 30, date(2025, time.June, 1))
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.June, 11), p.Start)
	assert.Equal(t, date(2025, time.July, 11), p.End)
}

func TestComputeNextCycle_EndsTodayCountsAsActive(t *testing.T) {
	last := &Cycle{EndDate: date(2025, time.June, 10)}

	p, err := ComputeNextCycle(last, 7, date(2025, time.June, 10))
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.June, 11), p.Start)
	assert.Equal(t, date(2025, time.June, 18), p.End)
}

func TestComputeNextCycle_RejectsNonPositiveDuration(t *testing.T) {
	_, err := ComputeNextCycle(nil, 0, date(2025, time.June, 10))
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestComputeNextCycle_Invariants(t *testing.T) {
	today := date(2025, time.January, 15)
	ends := []calendar.Date{
		today.AddDays(-40), today.AddDays(-1), today, today.AddDays(1), today.AddDays(90),
	}
	for _, end := range ends {
		for _, duration := range []int{1, 7, 28, 30, 31, 365} {
			last := &Cycle{StartDate: end.AddDays(-duration), EndDate: end}
			p, err := ComputeNextCycle(last, duration, today)
			require.NoError(t, err)

			assert.False(t, p.End.Before(p.Start))
			assert.Equal(t, calendar.DaysBetween(p.Start, p.End), p.DaysSubscribed)
			assert.Equal(t, duration, p.DaysSubscribed)
			if end.Before(today) {
				assert.Equal(t, today, p.Start)
			} else {
				assert.Equal(t, end.AddDays(1), p.Start)
			}
		}
	}
}

func TestBounds(t *testing.T) {
	_, _, ok := Bounds(nil)
	assert.False(t, ok)

	cycles := []*Cycle{
		{StartDate: date(2025, time.March, 1), EndDate: date(2025, time.March, 31)},
		{StartDate: date(2025, time.January, 1), EndDate: date(2025, time.January, 31)},
		{StartDate: date(2025, time.April, 1), EndDate: date(2025, time.May, 1)},
	}
	start, end, ok := Bounds(cycles)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.January, 1), start)
	assert.Equal(t, date(2025, time.May, 1), end)
}

func TestOfferSoldOn(t *testing.T) {
	cutoff := date(2025, time.June, 10)
	offer := &Offer{SalesCutoff: &cutoff}

	assert.True(t, offer.SoldOn(date(2025, time.June, 9)))
	assert.True(t, offer.SoldOn(cutoff))
	assert.False(t, offer.SoldOn(date(2025, time.June, 11)))
	assert.True(t, (&Offer{}).SoldOn(date(2030, time.January, 1)))
}
