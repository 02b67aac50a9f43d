package calendar_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/payroll-engine/calendar"
)

func dateStrings(payDates []calendar.PayDate) []string {
	out := make([]string, len(payDates))
	for i, pd := range payDates {
		out[i] = pd.Date.String()
	}
	return out
}

func assertDates(t *testing.T, got []calendar.PayDate, want ...string) {
	t.Helper()
	gotStrs := dateStrings(got)
	if len(gotStrs) != len(want) {
		t.Fatalf("expected %d pay dates %v, got %v", len(want), want, gotStrs)
	}
	for i := range want {
		if gotStrs[i] != want[i] {
			t.Errorf("pay date %d: expected %s, got %s", i, want[i], gotStrs[i])
		}
	}
}

// =============================================================================
// MONTHLY
// =============================================================================

func TestPayDates_Monthly_LastWeekdayOfMonth(t *testing.T) {
	// GIVEN: February 2025, which ends on Friday the 28th
	// WHEN: Computing MONTHLY pay dates
	// THEN: Exactly one pay date, the last day itself

	dates, err := calendar.PayDates(2025, time.February, calendar.FrequencyMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, dates, "2025-02-28")
}

func TestPayDates_Monthly_WeekendEndResolvesBackward(t *testing.T) {
	// GIVEN: August 2025, which ends on Sunday the 31st
	// WHEN: Computing MONTHLY pay dates
	// THEN: The pay date is Friday the 29th, never Monday September 1st

	dates, err := calendar.PayDates(2025, time.August, calendar.FrequencyMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, dates, "2025-08-29")
}

// =============================================================================
// SEMI_MONTHLY
// =============================================================================

func TestPayDates_SemiMonthly_MidMonthWeekendResolvesBackward(t *testing.T) {
	// GIVEN: March 2025, where the 15th is a Saturday
	// WHEN: Computing SEMI_MONTHLY pay dates
	// THEN: Friday the 14th and Monday the 31st, in order

	dates, err := calendar.PayDates(2025, time.March, calendar.FrequencySemiMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, dates, "2025-03-14", "2025-03-31")
}

func TestPayDates_SemiMonthly_AlwaysTwoDistinctWeekdays(t *testing.T) {
	// GIVEN: Every month of 2024 and 2025
	// WHEN: Computing SEMI_MONTHLY pay dates
	// THEN: Always two distinct dates, both weekdays, in ascending order

	for _, year := range []int{2024, 2025} {
		for month := time.January; month <= time.December; month++ {
			dates, err := calendar.PayDates(year, month, calendar.FrequencySemiMonthly)
			if err != nil {
				t.Fatalf("%d-%s: unexpected error: %v", year, month, err)
			}
			if len(dates) != 2 {
				t.Fatalf("%d-%s: expected 2 dates, got %v", year, month, dateStrings(dates))
			}
			if !dates[0].Date.Before(dates[1].Date) {
				t.Errorf("%d-%s: dates out of order: %v", year, month, dateStrings(dates))
			}
			for _, pd := range dates {
				if pd.Date.IsWeekend() {
					t.Errorf("%d-%s: pay date %s falls on a weekend", year, month, pd.Date)
				}
				if !pd.IsWorkingDay {
					t.Errorf("%d-%s: pay date %s not marked working day", year, month, pd.Date)
				}
			}
		}
	}
}

// =============================================================================
// WEEKLY
// =============================================================================

func TestPayDates_Weekly_EveryFriday(t *testing.T) {
	// GIVEN: August 2025, which starts on a Friday and has five of them
	// WHEN: Computing WEEKLY pay dates
	// THEN: All five Fridays are returned in order

	dates, err := calendar.PayDates(2025, time.August, calendar.FrequencyWeekly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, dates, "2025-08-01", "2025-08-08", "2025-08-15", "2025-08-22", "2025-08-29")
}

// =============================================================================
// BI_WEEKLY
// =============================================================================

func TestPayDates_BiWeekly_FourteenDayCadence(t *testing.T) {
	// GIVEN: Any month in 2025
	// WHEN: Computing BI_WEEKLY pay dates
	// THEN: Every date is a Friday, and consecutive dates within the month
	//       are exactly 14 days apart

	for month := time.January; month <= time.December; month++ {
		dates, err := calendar.PayDates(2025, month, calendar.FrequencyBiWeekly)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", month, err)
		}
		if len(dates) < 2 {
			t.Fatalf("%s: expected at least 2 pay dates, got %v", month, dateStrings(dates))
		}
		for i, pd := range dates {
			if pd.Date.Weekday() != time.Friday {
				t.Errorf("%s: %s is not a Friday", month, pd.Date)
			}
			if i > 0 {
				if gap := dates[i-1].Date.DaysBetween(pd.Date); gap != 14 {
					t.Errorf("%s: gap between %s and %s is %d days, want 14",
						month, dates[i-1].Date, pd.Date, gap)
				}
			}
		}
	}
}

func TestPayDates_BiWeekly_SubsetOfWeekly(t *testing.T) {
	// GIVEN: September 2025 (four Fridays)
	// WHEN: Computing BI_WEEKLY pay dates
	// THEN: The cadence selects the 12th and 26th

	dates, err := calendar.PayDates(2025, time.September, calendar.FrequencyBiWeekly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, dates, "2025-09-12", "2025-09-26")
}

// =============================================================================
// UNKNOWN FREQUENCY
// =============================================================================

func TestPayDates_UnknownFrequency_WholeRequestFails(t *testing.T) {
	// GIVEN: A frequency code with no table entry
	// WHEN: Computing pay dates
	// THEN: UnknownFrequencyError, no partial output

	dates, err := calendar.PayDates(2025, time.January, calendar.PayFrequency("FORTNIGHTLY"))
	if dates != nil {
		t.Errorf("expected no dates, got %v", dateStrings(dates))
	}
	var unknownErr *calendar.UnknownFrequencyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownFrequencyError, got %v", err)
	}
	if unknownErr.Code != "FORTNIGHTLY" {
		t.Errorf("error should carry the rejected code, got %q", unknownErr.Code)
	}
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"MONTHLY", "SEMI_MONTHLY", "BI_WEEKLY", "WEEKLY"} {
		if _, err := calendar.ParseFrequency(valid); err != nil {
			t.Errorf("%s should parse: %v", valid, err)
		}
	}
	if _, err := calendar.ParseFrequency("monthly"); err == nil {
		t.Error("frequency codes are case sensitive")
	}
}

// =============================================================================
// SCHEDULER MEMOIZATION
// =============================================================================

func TestScheduler_CachesPerKey(t *testing.T) {
	// GIVEN: A scheduler asked twice for the same (year, month, frequency)
	// WHEN: Comparing the two results
	// THEN: Both calls return the same dates; a different key computes fresh

	s := calendar.NewScheduler()

	first, err := s.PayDates(2025, time.February, calendar.FrequencyMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.PayDates(2025, time.February, calendar.FrequencyMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, first, "2025-02-28")
	assertDates(t, second, "2025-02-28")

	other, err := s.PayDates(2025, time.March, calendar.FrequencyMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDates(t, other, "2025-03-31")
}

func TestScheduler_UnknownFrequencyNotCached(t *testing.T) {
	s := calendar.NewScheduler()
	if _, err := s.PayDates(2025, time.January, calendar.PayFrequency("NOPE")); err == nil {
		t.Fatal("expected error for unknown frequency")
	}
	// A subsequent valid call still works.
	if _, err := s.PayDates(2025, time.January, calendar.FrequencyWeekly); err != nil {
		t.Fatalf("valid call failed after error: %v", err)
	}
}
