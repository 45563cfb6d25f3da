package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	end := NewDate(2025, time.June, 10)

	assert.Equal(t, 5, DaysBetween(NewDate(2025, time.June, 5), end))
	assert.Equal(t, 0, DaysBetween(end, end))
	assert.Equal(t, -30, DaysBetween(NewDate(2025, time.July, 10), end))
	assert.Equal(t, 365, DaysBetween(NewDate(2024, time.June, 10), end))
}

func TestDaysBetween_AcrossDSTTransition(t *testing.T) {
	paris, err := LoadZone("Europe/Paris")
	require.NoError(t, err)

	// 2025-03-30 is the spring-forward day in Paris: only 23 hours long.
	before := time.Date(2025, time.March, 29, 23, 30, 0, 0, paris)
	after := time.Date(2025, time.March, 31, 0, 15, 0, 0, paris)

	assert.Equal(t, 2, DaysBetween(In(before, paris), In(after, paris)))
	assert.Less(t, after.Sub(before), 48*time.Hour)
}

func TestIn_UsesBusinessZoneNotUTC(t *testing.T) {
	paris, err := LoadZone("Europe/Paris")
	require.NoError(t, err)

	// 23:30 UTC on June 4 is already June 5 in Paris.
	instant := time.Date(2025, time.June, 4, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, NewDate(2025, time.June, 5), Today(instant, paris))
	assert.Equal(t, NewDate(2025, time.June, 4), In(instant, time.UTC))
}

func TestAddDaysAndCompare(t *testing.T) {
	d := NewDate(2025, time.June, 10)

	assert.Equal(t, NewDate(2025, time.August, 9), d.AddDays(60))
	assert.Equal(t, NewDate(2024, time.December, 31), NewDate(2025, time.January, 1).AddDays(-1))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(d.AddDays(-1)))
	assert.True(t, d.Equal(NewDate(2025, time.June, 10)))
	assert.Equal(t, "2025-06-10", d.String())
	assert.Equal(t, "10.06.2025", d.Format("02.01.2006"))
}

func TestScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2025-06-10"))
	assert.Equal(t, NewDate(2025, time.June, 10), d)

	require.NoError(t, d.Scan([]byte("2025-07-01T00:00:00Z")))
	assert.Equal(t, NewDate(2025, time.July, 1), d)

	require.NoError(t, d.Scan(time.Date(2025, time.August, 9, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, NewDate(2025, time.August, 9), d)

	assert.Error(t, d.Scan(nil))
	assert.Error(t, d.Scan("garbage"))

	var nd NullDate
	require.NoError(t, nd.Scan(nil))
	assert.False(t, nd.Valid)
	assert.Nil(t, nd.Ptr())

	require.NoError(t, nd.Scan("2025-06-10"))
	require.NotNil(t, nd.Ptr())
	assert.Equal(t, NewDate(2025, time.June, 10), *nd.Ptr())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-20")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.June, 20), d)

	_, err = ParseDate("20/06/2025")
	assert.Error(t, err)
}
