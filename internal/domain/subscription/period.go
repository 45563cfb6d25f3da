package subscription

import (
	"errors"

	"subscription_notifier/internal/domain/calendar"

	"github.com/samber/lo"
)

var (
	ErrInvalidDuration   = errors.New("offer duration must be a positive number of days")
	ErrOfferNoLongerSold = errors.New("offer is no longer sold")
)

// Period is the computed span of a cycle about to be created.
type Period struct {
	Start          calendar.Date
	End            calendar.Date
	DaysSubscribed int
}

// ComputeNextCycle places the next cycle right after the last one, or at
// today when there is no last cycle or it has already lapsed. A lapsed gap
// is never credited back.
func ComputeNextCycle(last *Cycle, offerDurationDays int, today calendar.Date) (Period, error) {
	if offerDurationDays <= 0 {
		return Period{}, ErrInvalidDuration
	}

	start := today
	if last != nil && !last.EndDate.Before(today) {
		start = last.EndDate.AddDays(1)
	}
	end := start.AddDays(offerDurationDays)

	return Period{
		Start:          start,
		End:            end,
		DaysSubscribed: calendar.DaysBetween(start, end),
	}, nil
}

// Bounds returns the earliest start and latest end over cycles.
// ok is false for an empty slice.
func Bounds(cycles []*Cycle) (start, end calendar.Date, ok bool) {
	if len(cycles) == 0 {
		return calendar.Date{}, calendar.Date{}, false
	}
	first := lo.MinBy(cycles, func(a, b *Cycle) bool { return a.StartDate.Before(b.StartDate) })
	last := lo.MaxBy(cycles, func(a, b *Cycle) bool { return a.EndDate.After(b.EndDate) })
	return first.StartDate, last.EndDate, true
}
