// Package calendar provides a civil (zone-agnostic) date used for all
// day-granular billing arithmetic.
package calendar

import (
	"database/sql/driver"
	"fmt"
	"time"
)

const layout = "2006-01-02"

// Date is a calendar day with no time-of-day and no location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a normalized Date (2025-02-30 becomes 2025-03-02).
func NewDate(year int, month time.Month, day int) Date {
	return fromMidnight(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// In returns the calendar day that t falls on in loc.
func In(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today is In(now, loc); kept separate so call sites read as intent.
func Today(now time.Time, loc *time.Location) Date {
	return In(now, loc)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return fromMidnight(t), nil
}

// LoadZone resolves the business timezone by IANA name.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

func fromMidnight(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// midnightUTC maps the date onto a fixed zone with no DST so that
// differences are always whole multiples of 24h.
func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) AddDays(n int) Date {
	return fromMidnight(d.midnightUTC().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool { return d.midnightUTC().Before(o.midnightUTC()) }
func (d Date) After(o Date) bool  { return d.midnightUTC().After(o.midnightUTC()) }
func (d Date) Equal(o Date) bool  { return d == o }

func (d Date) String() string {
	return d.midnightUTC().Format(layout)
}

// Format renders the date with a time layout, e.g. "02.01.2006".
func (d Date) Format(l string) string {
	return d.midnightUTC().Format(l)
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// DaysBetween returns the signed number of whole days from `from` to `to`.
func DaysBetween(from, to Date) int {
	hours := to.midnightUTC().Sub(from.midnightUTC()).Hours()
	if hours < 0 {
		return -int(-hours/24 + 0.5)
	}
	return int(hours/24 + 0.5)
}

// Value stores the date as YYYY-MM-DD text, which both Postgres DATE and
// SQLite accept.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan accepts time.Time (lib/pq DATE columns) and text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		return fmt.Errorf("cannot scan NULL into calendar.Date")
	default:
		return fmt.Errorf("cannot scan %T into calendar.Date", src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) < len(layout) {
		return fmt.Errorf("invalid date %q", s)
	}
	parsed, err := ParseDate(s[:len(layout)])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NullDate is a Date that may be NULL in storage.
type NullDate struct {
	Date  Date
	Valid bool
}

func (n NullDate) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Date.Value()
}

func (n *NullDate) Scan(src any) error {
	if src == nil {
		n.Date, n.Valid = Date{}, false
		return nil
	}
	if err := n.Date.Scan(src); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr returns nil for an invalid NullDate.
func (n NullDate) Ptr() *Date {
	if !n.Valid {
		return nil
	}
	d := n.Date
	return &d
}
