/*
paydates.go - Pay date scheduling per pay frequency

PURPOSE:
  Maps (year, month, pay frequency) to the ordered set of pay dates for
  that month. Frequencies are entries in a data table interpreted by one
  small engine; adding a frequency is an additive table change.

FREQUENCY RULES:
  MONTHLY:      last weekday of the month
  SEMI_MONTHLY: weekday at or before the 15th, plus last weekday
  WEEKLY:       every Friday
  BI_WEEKLY:    Fridays on a 14-day cadence from a fixed reference Friday.
                If the cadence matches nothing in the month, fall back to
                every second Friday starting from the month's first Friday.
                The fallback is defined behavior, not an accident.

All pay dates fall on weekdays. Weekend targets resolve backward only.

SEE ALSO:
  - date.go: Date value type and backward weekday resolution
  - deadlines.go: the companion jurisdiction rule engine
*/
package calendar

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// PAY FREQUENCY
// =============================================================================

type PayFrequency string

const (
	FrequencyMonthly     PayFrequency = "MONTHLY"
	FrequencySemiMonthly PayFrequency = "SEMI_MONTHLY"
	FrequencyBiWeekly    PayFrequency = "BI_WEEKLY"
	FrequencyWeekly      PayFrequency = "WEEKLY"
)

// ParseFrequency validates a frequency code.
func ParseFrequency(s string) (PayFrequency, error) {
	f := PayFrequency(s)
	if _, ok := frequencyRules[f]; !ok {
		return "", &UnknownFrequencyError{Code: s}
	}
	return f, nil
}

// PayDate is a derived value, never persisted. Every pay date falls on a
// weekday, so IsWorkingDay is always true.
type PayDate struct {
	Date         Date
	IsWorkingDay bool
}

// =============================================================================
// FREQUENCY RULE TABLE
// =============================================================================

// lastDayOfMonth is a sentinel target meaning "the month's final day".
const lastDayOfMonth = 0

// frequencyRule declares how pay dates are derived for one frequency.
// Exactly one of TargetDays or Weekday drives the rule.
type frequencyRule struct {
	// Fixed day-of-month targets, each resolved backward to a weekday.
	TargetDays []int

	// Recurring weekday within the month.
	Weekday time.Weekday

	// Cadence in days between occurrences, measured from Anchor.
	// Zero means every occurrence of Weekday.
	CadenceDays int
}

// biWeeklyAnchor is a known Friday. Because a 14-day cadence is
// anchor-invariant modulo 14, any fixed Friday works.
var biWeeklyAnchor = NewDate(2021, time.January, 8)

var frequencyRules = map[PayFrequency]frequencyRule{
	FrequencyMonthly:     {TargetDays: []int{lastDayOfMonth}},
	FrequencySemiMonthly: {TargetDays: []int{15, lastDayOfMonth}},
	FrequencyWeekly:      {Weekday: time.Friday},
	FrequencyBiWeekly:    {Weekday: time.Friday, CadenceDays: 14},
}

// =============================================================================
// RULE INTERPRETER
// =============================================================================

// PayDates returns the ordered, distinct pay dates for (year, month, freq).
// Every returned date lies within the requested month.
func PayDates(year int, month time.Month, freq PayFrequency) ([]PayDate, error) {
	rule, ok := frequencyRules[freq]
	if !ok {
		return nil, &UnknownFrequencyError{Code: string(freq)}
	}

	var dates []Date
	if len(rule.TargetDays) > 0 {
		dates = resolveTargetDays(year, month, rule.TargetDays)
	} else {
		dates = resolveWeekdays(year, month, rule)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	result := make([]PayDate, 0, len(dates))
	for _, d := range dates {
		result = append(result, PayDate{Date: d, IsWorkingDay: true})
	}
	return result, nil
}

func resolveTargetDays(year int, month time.Month, targets []int) []Date {
	seen := make(map[Date]bool)
	var dates []Date
	for _, target := range targets {
		var d Date
		if target == lastDayOfMonth {
			d = LastOfMonth(year, month)
		} else {
			d = NewDate(year, month, target)
		}
		resolved := d.PreviousWorkday()
		// Backward resolution can land two targets on the same day in a
		// short month; keep the set distinct.
		if !seen[resolved] {
			seen[resolved] = true
			dates = append(dates, resolved)
		}
	}
	return dates
}

func resolveWeekdays(year int, month time.Month, rule frequencyRule) []Date {
	occurrences := weekdaysInMonth(year, month, rule.Weekday)
	if rule.CadenceDays == 0 {
		return occurrences
	}

	var matched []Date
	for _, d := range occurrences {
		if biWeeklyAnchor.DaysBetween(d)%rule.CadenceDays == 0 {
			matched = append(matched, d)
		}
	}
	if len(matched) > 0 {
		return matched
	}

	// Cadence produced no dates for this month (mis-tuned anchor or edge
	// month): fall back to every second occurrence starting from the first.
	for i := 0; i < len(occurrences); i += 2 {
		matched = append(matched, occurrences[i])
	}
	return matched
}

func weekdaysInMonth(year int, month time.Month, weekday time.Weekday) []Date {
	var dates []Date
	d := FirstOfMonth(year, month)
	for d.Weekday() != weekday {
		d = d.AddDays(1)
	}
	for d.InMonth(year, month) {
		dates = append(dates, d)
		d = d.AddDays(7)
	}
	return dates
}

// =============================================================================
// SCHEDULER - Memoizing wrapper
// =============================================================================

// Scheduler memoizes PayDates per (year, month, frequency). Safe because
// the computation is deterministic and takes no mutable input.
type Scheduler struct {
	mu    sync.RWMutex
	cache map[scheduleKey][]PayDate
}

type scheduleKey struct {
	Year      int
	Month     time.Month
	Frequency PayFrequency
}

func NewScheduler() *Scheduler {
	return &Scheduler{cache: make(map[scheduleKey][]PayDate)}
}

func (s *Scheduler) PayDates(year int, month time.Month, freq PayFrequency) ([]PayDate, error) {
	key := scheduleKey{Year: year, Month: month, Frequency: freq}

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	dates, err := PayDates(year, month, freq)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = dates
	s.mu.Unlock()
	return dates, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// UnknownFrequencyError rejects a frequency code with no table entry.
// The whole request fails; there is no partial output.
type UnknownFrequencyError struct {
	Code string
}

func (e *UnknownFrequencyError) Error() string {
	return fmt.Sprintf("unknown pay frequency %q (known: MONTHLY, SEMI_MONTHLY, BI_WEEKLY, WEEKLY)", e.Code)
}
