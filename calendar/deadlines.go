/*
deadlines.go - Statutory compliance deadline calendar per jurisdiction

PURPOSE:
  Maps (year, month, jurisdiction) to the statutory remittance and filing
  deadlines falling in that month. Jurisdictions are keyed entries in a
  rule table; adding a country is a new table entry with zero control-flow
  change.

RULE KINDS:
  Recurring:  a nominal day of every month, resolved backward to the
              nearest weekday (day 7 TDS, day 15 PF/ESI, ...)
  Fixed:      an absolute calendar date in a specific month (quarterly and
              annual filings), taken as-is with no weekday adjustment

FILTERING:
  Every rule is resolved independently, then the results are filtered to
  dates whose (year, month) equals the request. A rule that resolves
  outside the requested month is silently dropped for that call - it is
  not returned as "upcoming".

SEE ALSO:
  - paydates.go: the companion frequency rule engine
  - factory/rules.go: JSON-defined jurisdiction tables
*/
package calendar

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// DEADLINE - Derived value object
// =============================================================================

type DeadlineCategory string

const (
	CategoryTax        DeadlineCategory = "tax"
	CategoryCompliance DeadlineCategory = "compliance"
	CategoryFiling     DeadlineCategory = "filing"
)

// Deadline is recomputed per request and never persisted. Its date always
// lies within the (year, month) it was requested for.
type Deadline struct {
	Date     Date
	Label    string
	Category DeadlineCategory
}

// IsOverdue reports whether the deadline has passed as of the injected
// clock's today.
func (d Deadline) IsOverdue(clock Clock) bool {
	return d.Date.Before(clock.Today())
}

// =============================================================================
// DEADLINE RULES - Declarative, per jurisdiction
// =============================================================================

// DeadlineRule declares a single statutory deadline. Month zero means the
// rule recurs every month with backward weekday resolution; a non-zero
// Month pins the rule to a fixed calendar date in that month only.
type DeadlineRule struct {
	Label    string
	Category DeadlineCategory
	Day      int
	Month    time.Month
}

// Resolve computes the rule's concrete date for a request. The caller
// filters out resolutions falling outside the requested month.
func (r DeadlineRule) Resolve(year int, requestMonth time.Month) Date {
	if r.Month != 0 {
		return NewDate(year, r.Month, r.Day)
	}
	return NewDate(year, requestMonth, r.Day).PreviousWorkday()
}

var builtinJurisdictions = map[string][]DeadlineRule{
	"IN": {
		{Label: "TDS Remittance Due", Category: CategoryTax, Day: 7},
		{Label: "PF Remittance Due", Category: CategoryCompliance, Day: 15},
		{Label: "ESI Remittance Due", Category: CategoryCompliance, Day: 15},
		{Label: "Form 24Q (Q1) Due", Category: CategoryFiling, Day: 31, Month: time.July},
		{Label: "Form 24Q (Q2) Due", Category: CategoryFiling, Day: 31, Month: time.October},
		{Label: "Form 24Q (Q3) Due", Category: CategoryFiling, Day: 31, Month: time.January},
		{Label: "Form 24Q (Q4) Due", Category: CategoryFiling, Day: 31, Month: time.May},
	},
	"US": {
		{Label: "Federal Tax Deposit Due", Category: CategoryTax, Day: 15},
		{Label: "Form 941 (Q1) Filing Due", Category: CategoryFiling, Day: 30, Month: time.April},
		{Label: "Form 941 (Q2) Filing Due", Category: CategoryFiling, Day: 31, Month: time.July},
		{Label: "Form 941 (Q3) Filing Due", Category: CategoryFiling, Day: 31, Month: time.October},
		{Label: "Form 941 (Q4) Filing Due", Category: CategoryFiling, Day: 31, Month: time.January},
		{Label: "W-2 / Annual Filing Due", Category: CategoryFiling, Day: 31, Month: time.January},
	},
}

// =============================================================================
// JURISDICTION REGISTRY
// =============================================================================

// Registry holds jurisdiction rule tables. The built-in tables cover IN
// and US; additional jurisdictions can be registered at runtime (e.g. from
// factory-parsed JSON).
type Registry struct {
	mu    sync.RWMutex
	rules map[string][]DeadlineRule
}

func NewRegistry() *Registry {
	rules := make(map[string][]DeadlineRule, len(builtinJurisdictions))
	for code, rs := range builtinJurisdictions {
		rules[code] = append([]DeadlineRule(nil), rs...)
	}
	return &Registry{rules: rules}
}

// Register installs or replaces the rule table for a jurisdiction code.
func (reg *Registry) Register(code string, rules []DeadlineRule) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.rules[code] = append([]DeadlineRule(nil), rules...)
}

// Jurisdictions returns the registered codes, sorted.
func (reg *Registry) Jurisdictions() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	codes := make([]string, 0, len(reg.rules))
	for code := range reg.rules {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Deadlines resolves every rule for the jurisdiction independently and
// returns those whose resolved date falls in (year, month), ordered by
// date then label.
func (reg *Registry) Deadlines(year int, month time.Month, jurisdiction string) ([]Deadline, error) {
	reg.mu.RLock()
	rules, ok := reg.rules[jurisdiction]
	reg.mu.RUnlock()
	if !ok {
		return nil, &UnknownJurisdictionError{Code: jurisdiction}
	}

	var deadlines []Deadline
	for _, rule := range rules {
		resolved := rule.Resolve(year, month)
		if !resolved.InMonth(year, month) {
			continue
		}
		deadlines = append(deadlines, Deadline{
			Date:     resolved,
			Label:    rule.Label,
			Category: rule.Category,
		})
	}

	sort.Slice(deadlines, func(i, j int) bool {
		if !deadlines[i].Date.Equal(deadlines[j].Date) {
			return deadlines[i].Date.Before(deadlines[j].Date)
		}
		return deadlines[i].Label < deadlines[j].Label
	})
	return deadlines, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// UnknownJurisdictionError rejects a jurisdiction code with no rule table.
type UnknownJurisdictionError struct {
	Code string
}

func (e *UnknownJurisdictionError) Error() string {
	return fmt.Sprintf("unknown jurisdiction %q", e.Code)
}
