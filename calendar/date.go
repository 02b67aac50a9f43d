/*
Package calendar computes statutory pay dates and compliance deadlines.

PURPOSE:
  This package contains the pure date arithmetic for the payroll cycle:
  - Date: a calendar-day value type (no time component, always UTC)
  - PayDates: pay frequency -> ordered pay dates for a month
  - Deadlines: jurisdiction -> statutory deadlines for a month

DESIGN PRINCIPLES:
  1. Purity: every function is deterministic in (year, month, rules)
  2. Backward resolution: weekend targets always resolve to the PRECEDING
     weekday, never the following one
  3. Data-driven rules: frequencies and jurisdictions are table entries,
     not control flow
  4. Injected clock: "today" is always a parameter, never time.Now()

Only weekday/weekend is modeled. Public holidays are out of scope.

SEE ALSO:
  - paydates.go: frequency rule table and interpreter
  - deadlines.go: jurisdiction rule table and interpreter
*/
package calendar

import "time"

// =============================================================================
// DATE - Calendar day without time component
// =============================================================================

type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates a time.Time to its calendar day.
func FromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO "2006-01-02" date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return FromTime(t), nil
}

func FirstOfMonth(year int, month time.Month) Date { return NewDate(year, month, 1) }

func LastOfMonth(year int, month time.Month) Date {
	return Date{t: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysBetween returns the signed number of days from d to other.
func (d Date) DaysBetween(other Date) int { return int(other.t.Sub(d.t).Hours() / 24) }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) IsWorkday() bool { return !d.IsWeekend() }

// InMonth reports whether the date falls in the given (year, month).
func (d Date) InMonth(year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month
}

// PreviousWorkday resolves a date to the nearest weekday at or before it.
// Resolution always walks BACKWARD one day at a time; a Saturday target
// resolves to the preceding Friday, never the following Monday. This
// asymmetry is part of the scheduling contract.
func (d Date) PreviousWorkday() Date {
	for d.IsWeekend() {
		d = d.AddDays(-1)
	}
	return d
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CLOCK - Injected "today" for deterministic scheduling
// =============================================================================

// Clock supplies the current calendar day. Handlers and day-counting code
// take a Clock instead of calling time.Now so tests are replayable.
type Clock interface {
	Today() Date
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Today() Date { return FromTime(time.Now()) }

// FixedClock always returns the same day.
type FixedClock struct {
	Day Date
}

func (c FixedClock) Today() Date { return c.Day }
