/*
Package factory provides JSON to Go rule-table conversion.

PURPOSE:
  Converts JSON jurisdiction definitions into calendar.DeadlineRule
  tables. This keeps new countries additive data changes - compliance
  teams can define a jurisdiction in JSON with no code change, and the
  factory installs it in the registry alongside the built-in tables.

JSON SCHEMA:
  {
    "code": "UK",
    "deadlines": [
      {"label": "PAYE Remittance Due", "category": "tax", "day": 22},
      {"label": "P60 Issue Due", "category": "filing", "day": 31, "month": 5}
    ]
  }

  A rule without "month" recurs every month, resolved backward to the
  nearest weekday. A rule with "month" is a fixed calendar date emitted
  only for that month.

USAGE:
  registry := calendar.NewRegistry()
  factory := NewRuleFactory(registry)
  if err := factory.RegisterJSON(jsonStr); err != nil { ... }

SEE ALSO:
  - calendar/deadlines.go: DeadlineRule and the registry
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/payroll-engine/calendar"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// JurisdictionJSON is the JSON representation of a jurisdiction rule table.
type JurisdictionJSON struct {
	Code      string         `json:"code"`
	Deadlines []DeadlineJSON `json:"deadlines"`
}

// DeadlineJSON represents one statutory deadline rule.
type DeadlineJSON struct {
	Label    string `json:"label"`
	Category string `json:"category"`
	Day      int    `json:"day"`
	Month    int    `json:"month,omitempty"` // 1-12; 0 = recurring monthly
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory installs JSON-defined jurisdictions into a registry.
type RuleFactory struct {
	Registry *calendar.Registry
}

func NewRuleFactory(registry *calendar.Registry) *RuleFactory {
	return &RuleFactory{Registry: registry}
}

// RegisterJSON parses a jurisdiction definition and registers it.
func (f *RuleFactory) RegisterJSON(jsonStr string) error {
	var jj JurisdictionJSON
	if err := json.Unmarshal([]byte(jsonStr), &jj); err != nil {
		return fmt.Errorf("failed to parse jurisdiction JSON: %w", err)
	}
	return f.Register(jj)
}

// Register validates and installs a parsed jurisdiction definition.
func (f *RuleFactory) Register(jj JurisdictionJSON) error {
	if jj.Code == "" {
		return fmt.Errorf("jurisdiction code is required")
	}
	if len(jj.Deadlines) == 0 {
		return fmt.Errorf("jurisdiction %q has no deadline rules", jj.Code)
	}

	rules := make([]calendar.DeadlineRule, 0, len(jj.Deadlines))
	for i, dj := range jj.Deadlines {
		rule, err := toRule(dj)
		if err != nil {
			return fmt.Errorf("jurisdiction %q rule %d: %w", jj.Code, i, err)
		}
		rules = append(rules, rule)
	}

	f.Registry.Register(jj.Code, rules)
	return nil
}

func toRule(dj DeadlineJSON) (calendar.DeadlineRule, error) {
	if dj.Label == "" {
		return calendar.DeadlineRule{}, fmt.Errorf("label is required")
	}
	category, err := parseCategory(dj.Category)
	if err != nil {
		return calendar.DeadlineRule{}, err
	}
	if dj.Day < 1 || dj.Day > 31 {
		return calendar.DeadlineRule{}, fmt.Errorf("day %d out of range 1-31", dj.Day)
	}
	if dj.Month < 0 || dj.Month > 12 {
		return calendar.DeadlineRule{}, fmt.Errorf("month %d out of range 1-12", dj.Month)
	}

	return calendar.DeadlineRule{
		Label:    dj.Label,
		Category: category,
		Day:      dj.Day,
		Month:    time.Month(dj.Month),
	}, nil
}

func parseCategory(s string) (calendar.DeadlineCategory, error) {
	switch calendar.DeadlineCategory(s) {
	case calendar.CategoryTax, calendar.CategoryCompliance, calendar.CategoryFiling:
		return calendar.DeadlineCategory(s), nil
	default:
		return "", fmt.Errorf("unknown deadline category %q", s)
	}
}
