/*
reconcile.go - Month-over-month payroll reconciliation

PURPOSE:
  Diffs two consecutive batch snapshots and classifies the differences as
  anomalies. The report is ephemeral: recomputed on demand from the two
  snapshots and never cached across batch mutation.

ANOMALY TYPES:
  MISSING          employee in previous snapshot, absent from current
  NEW              employee in current snapshot, absent from previous
  SALARY_CHANGE    gross differs between the two snapshots
  DEDUCTION_CHANGE total deductions differ between the two snapshots

  One employee can produce both SALARY_CHANGE and DEDUCTION_CHANGE in a
  single pass.

BASELINE ABSENCE:
  When no previous batch exists for the period, the report carries
  PreviousBatchTotal = 0, HeadcountChange = current headcount, and an
  EMPTY anomaly list. Absence of a baseline is a distinct state from a
  baseline-detected change; employees are not flagged NEW.

CONFIGURATION:
  The change threshold and anomaly ordering were deliberately left
  configurable instead of hard-coded:
  - Threshold: minimum |change %| to flag; default 0 = any non-zero change
  - Order: by employee id (default) or by change magnitude descending

SEE ALSO:
  - types.go: Snapshot and EmployeeEntry
  - api/handlers.go: the reconciliation endpoint
*/
package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT - Ephemeral reconciliation output
// =============================================================================

type AnomalyType string

const (
	AnomalyMissing         AnomalyType = "MISSING"
	AnomalyNew             AnomalyType = "NEW"
	AnomalySalaryChange    AnomalyType = "SALARY_CHANGE"
	AnomalyDeductionChange AnomalyType = "DEDUCTION_CHANGE"
)

// Anomaly is one detected discrepancy between two consecutive batches.
// ChangePercent is nil when the previous value was zero: a percentage
// against a zero base is undefined, not infinite.
type Anomaly struct {
	EmployeeID    string
	EmployeeName  string
	Type          AnomalyType
	PreviousGross decimal.Decimal
	CurrentGross  decimal.Decimal
	ChangePercent *decimal.Decimal
	Details       string
}

type Report struct {
	Month time.Month
	Year  int

	CurrentBatchTotal  decimal.Decimal
	PreviousBatchTotal decimal.Decimal
	Variance           decimal.Decimal
	VariancePercent    decimal.Decimal
	HeadcountChange    int

	Anomalies []Anomaly
}

// =============================================================================
// ENGINE
// =============================================================================

// AnomalyOrder selects the sort order of the anomaly list.
type AnomalyOrder string

const (
	// OrderByEmployeeID sorts anomalies by employee id ascending.
	OrderByEmployeeID AnomalyOrder = "employee_id"

	// OrderByMagnitude sorts by |change %| descending; anomalies without a
	// computable percentage sort last, ties break by employee id.
	OrderByMagnitude AnomalyOrder = "magnitude"
)

// Engine performs reconciliation. The zero value flags any non-zero change
// and orders anomalies by employee id.
type Engine struct {
	// Threshold is the minimum |change %| for SALARY_CHANGE and
	// DEDUCTION_CHANGE anomalies. Changes against a zero base have no
	// percentage and are always flagged.
	Threshold decimal.Decimal

	Order AnomalyOrder
}

// Reconcile diffs current against previous. previous == nil means no
// baseline exists for the period. Both snapshots must be immutable copies
// taken at a consistent point; the engine performs no mutation.
func (e *Engine) Reconcile(current, previous *Snapshot) Report {
	report := Report{
		Month:             current.Month,
		Year:              current.Year,
		CurrentBatchTotal: current.GrossTotal,
	}

	if previous == nil {
		report.VariancePercent = decimal.Zero
		report.Variance = current.GrossTotal
		report.HeadcountChange = current.Headcount
		report.Anomalies = []Anomaly{}
		return report
	}

	report.PreviousBatchTotal = previous.GrossTotal
	report.Variance = current.GrossTotal.Sub(previous.GrossTotal)
	if previous.GrossTotal.IsZero() {
		report.VariancePercent = decimal.Zero
	} else {
		report.VariancePercent = report.Variance.Div(previous.GrossTotal).Mul(decimal.NewFromInt(100))
	}
	report.HeadcountChange = current.Headcount - previous.Headcount

	anomalies := []Anomaly{}
	anomalies = append(anomalies, e.missingEmployees(current, previous)...)
	anomalies = append(anomalies, e.newEmployees(current, previous)...)
	anomalies = append(anomalies, e.changedEmployees(current, previous)...)

	e.sortAnomalies(anomalies)
	report.Anomalies = anomalies
	return report
}

func (e *Engine) missingEmployees(current, previous *Snapshot) []Anomaly {
	var anomalies []Anomaly
	for id, prev := range previous.Employees {
		if _, ok := current.Employees[id]; ok {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			EmployeeID:    id,
			EmployeeName:  prev.Name,
			Type:          AnomalyMissing,
			PreviousGross: prev.Gross,
			Details:       "present in previous batch, absent from current",
		})
	}
	return anomalies
}

func (e *Engine) newEmployees(current, previous *Snapshot) []Anomaly {
	var anomalies []Anomaly
	for id, cur := range current.Employees {
		if _, ok := previous.Employees[id]; ok {
			continue
		}
		anomalies = append(anomalies, Anomaly{
			EmployeeID:   id,
			EmployeeName: cur.Name,
			Type:         AnomalyNew,
			CurrentGross: cur.Gross,
			Details:      "present in current batch, absent from previous",
		})
	}
	return anomalies
}

func (e *Engine) changedEmployees(current, previous *Snapshot) []Anomaly {
	var anomalies []Anomaly
	for id, cur := range current.Employees {
		prev, ok := previous.Employees[id]
		if !ok {
			continue
		}

		if !cur.Gross.Equal(prev.Gross) {
			pct := percentChange(prev.Gross, cur.Gross)
			if e.flaggable(pct) {
				anomalies = append(anomalies, Anomaly{
					EmployeeID:    id,
					EmployeeName:  cur.Name,
					Type:          AnomalySalaryChange,
					PreviousGross: prev.Gross,
					CurrentGross:  cur.Gross,
					ChangePercent: pct,
					Details:       "gross pay changed from " + prev.Gross.StringFixed(2) + " to " + cur.Gross.StringFixed(2),
				})
			}
		}

		if !cur.Deductions.Equal(prev.Deductions) {
			pct := percentChange(prev.Deductions, cur.Deductions)
			if e.flaggable(pct) {
				anomalies = append(anomalies, Anomaly{
					EmployeeID:    id,
					EmployeeName:  cur.Name,
					Type:          AnomalyDeductionChange,
					PreviousGross: prev.Gross,
					CurrentGross:  cur.Gross,
					ChangePercent: pct,
					Details:       "deductions changed from " + prev.Deductions.StringFixed(2) + " to " + cur.Deductions.StringFixed(2),
				})
			}
		}
	}
	return anomalies
}

// flaggable applies the configured threshold. A nil percentage means the
// previous value was zero; the change is always flagged because no
// percentage comparison is possible.
func (e *Engine) flaggable(pct *decimal.Decimal) bool {
	if pct == nil {
		return true
	}
	return pct.Abs().GreaterThanOrEqual(e.Threshold)
}

func percentChange(prev, cur decimal.Decimal) *decimal.Decimal {
	if prev.IsZero() {
		return nil
	}
	pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
	return &pct
}

func (e *Engine) sortAnomalies(anomalies []Anomaly) {
	switch e.Order {
	case OrderByMagnitude:
		sort.SliceStable(anomalies, func(i, j int) bool {
			pi, pj := anomalies[i].ChangePercent, anomalies[j].ChangePercent
			switch {
			case pi == nil && pj == nil:
				return anomalies[i].EmployeeID < anomalies[j].EmployeeID
			case pi == nil:
				return false
			case pj == nil:
				return true
			case !pi.Abs().Equal(pj.Abs()):
				return pi.Abs().GreaterThan(pj.Abs())
			default:
				return anomalies[i].EmployeeID < anomalies[j].EmployeeID
			}
		})
	default:
		sort.SliceStable(anomalies, func(i, j int) bool {
			if anomalies[i].EmployeeID != anomalies[j].EmployeeID {
				return anomalies[i].EmployeeID < anomalies[j].EmployeeID
			}
			return anomalies[i].Type < anomalies[j].Type
		})
	}
}
