/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMATS:
  - Currency values: decimal strings with two fraction digits ("1234.50")
  - Percentages: signed floats
  - Dates: calendar dates "2006-01-02", no time component
  - Timestamps: RFC 3339

VALIDATION:
  Request types carry validator/v10 struct tags; handlers run the shared
  validator before touching domain logic.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"time"

	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCHEDULING RESPONSES
// =============================================================================

// PayDatesResponse lists the ordered pay dates for a month.
type PayDatesResponse struct {
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Frequency string   `json:"frequency"`
	Dates     []string `json:"dates"`
}

// DeadlineDTO represents one statutory deadline.
type DeadlineDTO struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	Category string `json:"category"`
	Overdue  bool   `json:"overdue"`
}

// CalendarResponse composes pay dates, deadlines, and the month's batch
// status into one view.
type CalendarResponse struct {
	Year      int           `json:"year"`
	Month     int           `json:"month"`
	PayDates  []string      `json:"pay_dates"`
	Deadlines []DeadlineDTO `json:"deadlines"`
	Batch     *BatchDTO     `json:"batch"`
}

// =============================================================================
// BATCH TYPES
// =============================================================================

// BatchDTO represents a payroll batch in API responses.
type BatchDTO struct {
	ID               string  `json:"id"`
	CompanyID        string  `json:"company_id"`
	Year             int     `json:"year"`
	Month            int     `json:"month"`
	ProcessingStatus string  `json:"processing_status"`
	ApprovalStatus   *string `json:"approval_status"`
	EmployeeCount    int     `json:"employee_count"`
	GrossTotal       string  `json:"gross_total"`
	NetTotal         string  `json:"net_total"`
	DeductionsTotal  string  `json:"deductions_total"`
	CurrencySymbol   string  `json:"currency_symbol"`
	SubmittedAt      *string `json:"submitted_at,omitempty"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
	RejectedAt       *string `json:"rejected_at,omitempty"`
	RejectionNotes   string  `json:"rejection_notes,omitempty"`
}

// CreateBatchRequest registers a new payroll run for a period. Used by
// the external processing pipeline.
type CreateBatchRequest struct {
	Year           int    `json:"year" validate:"required,min=1900,max=2200"`
	Month          int    `json:"month" validate:"required,min=1,max=12"`
	CurrencySymbol string `json:"currency_symbol"`
}

// SetProcessingStatusRequest records a processing transition from the
// external pipeline, with totals when the run finishes.
type SetProcessingStatusRequest struct {
	Status          string  `json:"status" validate:"required,oneof=PENDING PROCESSING COMPLETED FAILED PARTIAL"`
	EmployeeCount   *int    `json:"employee_count,omitempty"`
	GrossTotal      *string `json:"gross_total,omitempty"`
	NetTotal        *string `json:"net_total,omitempty"`
	DeductionsTotal *string `json:"deductions_total,omitempty"`
}

// SubmitApprovalRequest carries optional submission notes.
type SubmitApprovalRequest struct {
	Notes string `json:"notes,omitempty"`
}

// RejectRequest carries the mandatory rejection notes.
type RejectRequest struct {
	Notes string `json:"notes" validate:"required"`
}

// AuditRecordDTO represents one approval transition in the audit trail.
type AuditRecordDTO struct {
	ID    string `json:"id"`
	Actor string `json:"actor"`
	From  string `json:"from"`
	To    string `json:"to"`
	At    string `json:"at"`
	Notes string `json:"notes,omitempty"`
}

// =============================================================================
// SNAPSHOT INGEST
// =============================================================================

// SnapshotEmployeeJSON is one employee's computed pay.
type SnapshotEmployeeJSON struct {
	Name       string `json:"name" validate:"required"`
	Gross      string `json:"gross" validate:"required"`
	Deductions string `json:"deductions"`
}

// PutSnapshotRequest ingests a batch snapshot from the payroll
// computation engine.
type PutSnapshotRequest struct {
	Year            int                             `json:"year" validate:"required,min=1900,max=2200"`
	Month           int                             `json:"month" validate:"required,min=1,max=12"`
	GrossTotal      string                          `json:"gross_total" validate:"required"`
	DeductionsTotal string                          `json:"deductions_total"`
	NetTotal        string                          `json:"net_total"`
	Employees       map[string]SnapshotEmployeeJSON `json:"employees" validate:"required"`
}

// =============================================================================
// RECONCILIATION RESPONSES
// =============================================================================

// AnomalyDTO is one detected discrepancy.
type AnomalyDTO struct {
	EmployeeID    string   `json:"employee_id"`
	EmployeeName  string   `json:"employee_name"`
	Type          string   `json:"type"`
	PreviousGross string   `json:"previous_gross"`
	CurrentGross  string   `json:"current_gross"`
	ChangePercent *float64 `json:"change_percent"`
	Details       string   `json:"details,omitempty"`
}

// ReportDTO is the reconciliation report for a month.
type ReportDTO struct {
	Year               int          `json:"year"`
	Month              int          `json:"month"`
	CurrentBatchTotal  string       `json:"current_batch_total"`
	PreviousBatchTotal string       `json:"previous_batch_total"`
	Variance           string       `json:"variance"`
	VariancePercent    float64      `json:"variance_percent"`
	HeadcountChange    int          `json:"headcount_change"`
	Anomalies          []AnomalyDTO `json:"anomalies"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBatchDTO(b *payroll.Batch) *BatchDTO {
	dto := &BatchDTO{
		ID:               string(b.ID),
		CompanyID:        b.CompanyID,
		Year:             b.Year,
		Month:            int(b.Month),
		ProcessingStatus: string(b.ProcessingStatus),
		EmployeeCount:    b.EmployeeCount,
		GrossTotal:       b.GrossTotal.StringFixed(2),
		NetTotal:         b.NetTotal.StringFixed(2),
		DeductionsTotal:  b.DeductionsTotal.StringFixed(2),
		CurrencySymbol:   b.CurrencySymbol,
		RejectionNotes:   b.RejectionNotes,
	}
	if b.ApprovalStatus != payroll.ApprovalNone {
		s := string(b.ApprovalStatus)
		dto.ApprovalStatus = &s
	}
	dto.SubmittedAt = formatTimePtr(b.SubmittedAt)
	dto.ApprovedAt = formatTimePtr(b.ApprovedAt)
	dto.RejectedAt = formatTimePtr(b.RejectedAt)
	return dto
}

func toDeadlineDTOs(deadlines []calendar.Deadline, clock calendar.Clock) []DeadlineDTO {
	dtos := make([]DeadlineDTO, len(deadlines))
	for i, d := range deadlines {
		dtos[i] = DeadlineDTO{
			Date:     d.Date.String(),
			Label:    d.Label,
			Category: string(d.Category),
			Overdue:  d.IsOverdue(clock),
		}
	}
	return dtos
}

func toDateStrings(payDates []calendar.PayDate) []string {
	dates := make([]string, len(payDates))
	for i, pd := range payDates {
		dates[i] = pd.Date.String()
	}
	return dates
}

func toReportDTO(r payroll.Report) ReportDTO {
	variancePct, _ := r.VariancePercent.Float64()
	dto := ReportDTO{
		Year:               r.Year,
		Month:              int(r.Month),
		CurrentBatchTotal:  r.CurrentBatchTotal.StringFixed(2),
		PreviousBatchTotal: r.PreviousBatchTotal.StringFixed(2),
		Variance:           r.Variance.StringFixed(2),
		VariancePercent:    variancePct,
		HeadcountChange:    r.HeadcountChange,
		Anomalies:          make([]AnomalyDTO, len(r.Anomalies)),
	}
	for i, a := range r.Anomalies {
		anomaly := AnomalyDTO{
			EmployeeID:    a.EmployeeID,
			EmployeeName:  a.EmployeeName,
			Type:          string(a.Type),
			PreviousGross: a.PreviousGross.StringFixed(2),
			CurrentGross:  a.CurrentGross.StringFixed(2),
			Details:       a.Details,
		}
		if a.ChangePercent != nil {
			pct, _ := a.ChangePercent.Float64()
			anomaly.ChangePercent = &pct
		}
		dto.Anomalies[i] = anomaly
	}
	return dto
}

func toAuditDTOs(records []payroll.AuditRecord) []AuditRecordDTO {
	dtos := make([]AuditRecordDTO, len(records))
	for i, r := range records {
		dtos[i] = AuditRecordDTO{
			ID:    r.ID,
			Actor: r.Actor,
			From:  approvalLabel(r.From),
			To:    approvalLabel(r.To),
			At:    r.At.Format(time.RFC3339),
			Notes: r.Notes,
		}
	}
	return dtos
}

func approvalLabel(s payroll.ApprovalStatus) string {
	if s == payroll.ApprovalNone {
		return "none"
	}
	return string(s)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
