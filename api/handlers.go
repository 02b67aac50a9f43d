/*
handlers.go - HTTP API handlers for the payroll compliance engine

PURPOSE:
  Exposes scheduling, reconciliation, and the approval lifecycle via
  REST. Handles HTTP request/response, JSON serialization, and delegates
  to domain logic.

ENDPOINTS:
  Scheduling:
    GET    /api/pay-dates              Pay dates for year/month/frequency
    GET    /api/compliance-deadlines   Statutory deadlines for year/month/jurisdiction
    GET    /api/calendar               Composed month view (dates + deadlines + batch)

  Reconciliation:
    GET    /api/reconciliation         Month-over-month diff report

  Batches:
    GET    /api/batches                List company batches
    POST   /api/batches                Register a payroll run (processing pipeline)
    GET    /api/batches/{id}           Get one batch
    GET    /api/batches/{id}/audit     Approval audit trail
    POST   /api/batches/{id}/status    Processing-status transition (pipeline)
    POST   /api/batches/{id}/submit-for-approval
    POST   /api/batches/{id}/approve
    POST   /api/batches/{id}/reject

  Snapshots:
    PUT    /api/snapshots              Ingest a batch snapshot (pipeline)

TENANCY AND ACTORS:
  Authentication is an upstream concern; the gateway injects
  X-Company-ID (tenant scope, required) and X-Actor-ID (required for
  approval transitions).

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: validation errors, unknown frequency/jurisdiction
  - 404: batch or snapshot not found (or wrong tenant)
  - 409: transition guard failed, lost race, duplicate period
  - 500: internal errors

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Batches   payroll.BatchStore
	Snapshots payroll.SnapshotStore
	Audit     payroll.AuditLog
	Approvals *payroll.StateMachine
	Recon     *payroll.Engine
	Scheduler *calendar.Scheduler
	Deadlines *calendar.Registry
	Clock     calendar.Clock
	Logger    *zap.Logger

	// Now is injected for deterministic tests.
	Now func() time.Time

	validate *validator.Validate
}

// NewHandler wires a handler with defaults for clock and validation.
func NewHandler(batches payroll.BatchStore, snapshots payroll.SnapshotStore, audit payroll.AuditLog, approvals *payroll.StateMachine, recon *payroll.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Batches:   batches,
		Snapshots: snapshots,
		Audit:     audit,
		Approvals: approvals,
		Recon:     recon,
		Scheduler: calendar.NewScheduler(),
		Deadlines: calendar.NewRegistry(),
		Clock:     calendar.SystemClock{},
		Logger:    logger,
		Now:       time.Now,
		validate:  validator.New(),
	}
}

// =============================================================================
// SCHEDULING HANDLERS
// =============================================================================

// GetPayDates returns the ordered pay dates for a month.
// GET /api/pay-dates?year=2025&month=2&frequency=MONTHLY
func (h *Handler) GetPayDates(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	freq, err := calendar.ParseFrequency(queryDefault(r, "frequency", string(calendar.FrequencyMonthly)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	payDates, err := h.Scheduler.PayDates(year, month, freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, PayDatesResponse{
		Year:      year,
		Month:     int(month),
		Frequency: string(freq),
		Dates:     toDateStrings(payDates),
	})
}

// GetComplianceDeadlines returns the statutory deadlines for a month.
// GET /api/compliance-deadlines?year=2025&month=7&jurisdiction=IN
func (h *Handler) GetComplianceDeadlines(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	jurisdiction := r.URL.Query().Get("jurisdiction")
	if jurisdiction == "" {
		writeError(w, http.StatusBadRequest, "jurisdiction is required", nil)
		return
	}

	deadlines, err := h.Deadlines.Deadlines(year, month, jurisdiction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"year":         year,
		"month":        int(month),
		"jurisdiction": jurisdiction,
		"deadlines":    toDeadlineDTOs(deadlines, h.Clock),
	})
}

// GetCalendar composes pay dates, deadlines, and the month's batch into
// one view.
// GET /api/calendar?year=2025&month=7&frequency=MONTHLY&jurisdiction=IN
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	freq, err := calendar.ParseFrequency(queryDefault(r, "frequency", string(calendar.FrequencyMonthly)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	jurisdiction := r.URL.Query().Get("jurisdiction")
	if jurisdiction == "" {
		writeError(w, http.StatusBadRequest, "jurisdiction is required", nil)
		return
	}

	payDates, err := h.Scheduler.PayDates(year, month, freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	deadlines, err := h.Deadlines.Deadlines(year, month, jurisdiction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	resp := CalendarResponse{
		Year:      year,
		Month:     int(month),
		PayDates:  toDateStrings(payDates),
		Deadlines: toDeadlineDTOs(deadlines, h.Clock),
	}

	// The month may have no batch yet; that is not an error for this view.
	batch, err := h.Batches.GetByPeriod(r.Context(), companyID, year, month)
	if err == nil {
		resp.Batch = toBatchDTO(batch)
	} else if !payroll.IsNotFound(err) {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RECONCILIATION HANDLER
// =============================================================================

// GetReconciliation diffs the month's snapshot against the previous
// month's.
// GET /api/reconciliation?year=2025&month=7
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	current, err := h.Snapshots.GetSnapshot(r.Context(), companyID, year, month)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	prevYear, prevMonth := previousPeriod(year, month)
	previous, err := h.Snapshots.GetSnapshot(r.Context(), companyID, prevYear, prevMonth)
	if err != nil {
		if !payroll.IsNotFound(err) {
			h.writeDomainError(w, err)
			return
		}
		// No baseline: reconcile reports it distinctly, with no anomalies.
		previous = nil
	}

	report := h.Recon.Reconcile(current, previous)
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// ListBatches returns the company's batches, newest period first.
// GET /api/batches
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	batches, err := h.Batches.ListByCompany(r.Context(), companyID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]*BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": dtos})
}

// CreateBatch registers a payroll run for a period. Called by the
// external processing pipeline.
// POST /api/batches
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req CreateBatchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	now := h.Now()
	batch := &payroll.Batch{
		ID:               payroll.BatchID(uuid.NewString()),
		CompanyID:        companyID,
		Year:             req.Year,
		Month:            time.Month(req.Month),
		ProcessingStatus: payroll.ProcessingPending,
		ApprovalStatus:   payroll.ApprovalNone,
		GrossTotal:       decimal.Zero,
		NetTotal:         decimal.Zero,
		DeductionsTotal:  decimal.Zero,
		CurrencySymbol:   req.CurrencySymbol,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.Batches.Create(r.Context(), batch); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(batch))
}

// GetBatch returns a single batch.
// GET /api/batches/{id}
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	batch, err := h.Batches.Get(r.Context(), companyID, payroll.BatchID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// GetBatchAudit returns the approval audit trail.
// GET /api/batches/{id}/audit
func (h *Handler) GetBatchAudit(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	id := payroll.BatchID(chi.URLParam(r, "id"))
	// Resolve through the tenant scope first so one company cannot read
	// another's audit trail.
	if _, err := h.Batches.Get(r.Context(), companyID, id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	records, err := h.Audit.ListByBatch(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": toAuditDTOs(records)})
}

// SetProcessingStatus records a processing transition from the external
// pipeline.
// POST /api/batches/{id}/status
func (h *Handler) SetProcessingStatus(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req SetProcessingStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	var totals *payroll.BatchTotals
	if req.GrossTotal != nil {
		parsed, err := parseTotals(&req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		totals = parsed
	}

	batch, err := h.Batches.SetProcessing(r.Context(), companyID,
		payroll.BatchID(chi.URLParam(r, "id")),
		payroll.ProcessingStatus(req.Status), totals)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// PutSnapshot ingests a batch snapshot from the payroll computation
// engine.
// PUT /api/snapshots
func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return
	}

	var req PutSnapshotRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	snapshot, err := toSnapshot(companyID, &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := h.Snapshots.PutSnapshot(r.Context(), snapshot); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"company_id": companyID,
		"year":       req.Year,
		"month":      req.Month,
		"headcount":  snapshot.Headcount,
	})
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// SubmitForApproval moves a COMPLETED batch into PENDING_APPROVAL.
// POST /api/batches/{id}/submit-for-approval
func (h *Handler) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	companyID, actor, ok := h.companyAndActor(w, r)
	if !ok {
		return
	}

	var req SubmitApprovalRequest
	if r.ContentLength > 0 && !h.decodeAndValidate(w, r, &req) {
		return
	}

	batch, err := h.Approvals.SubmitForApproval(r.Context(), companyID,
		payroll.BatchID(chi.URLParam(r, "id")), actor, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// ApproveBatch approves a pending batch, signalling disbursement
// eligibility downstream.
// POST /api/batches/{id}/approve
func (h *Handler) ApproveBatch(w http.ResponseWriter, r *http.Request) {
	companyID, actor, ok := h.companyAndActor(w, r)
	if !ok {
		return
	}

	batch, err := h.Approvals.Approve(r.Context(), companyID,
		payroll.BatchID(chi.URLParam(r, "id")), actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// RejectBatch rejects a pending batch; notes are mandatory.
// POST /api/batches/{id}/reject
func (h *Handler) RejectBatch(w http.ResponseWriter, r *http.Request) {
	companyID, actor, ok := h.companyAndActor(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	batch, err := h.Approvals.Reject(r.Context(), companyID,
		payroll.BatchID(chi.URLParam(r, "id")), actor, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(batch))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) companyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	companyID := r.Header.Get("X-Company-ID")
	if companyID == "" {
		writeError(w, http.StatusBadRequest, "X-Company-ID header is required", nil)
		return "", false
	}
	return companyID, true
}

func (h *Handler) companyAndActor(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	companyID, ok := h.companyID(w, r)
	if !ok {
		return "", "", false
	}
	actor := r.Header.Get("X-Actor-ID")
	if actor == "" {
		writeError(w, http.StatusBadRequest, "X-Actor-ID header is required", nil)
		return "", "", false
	}
	return companyID, actor, true
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var invalidState *payroll.InvalidStateError
	var validation *payroll.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.As(err, &invalidState), payroll.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.Logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func parseYearMonth(r *http.Request) (int, time.Month, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1900 || year > 2200 {
		return 0, 0, errors.New("year must be an integer between 1900 and 2200")
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errors.New("month must be an integer between 1 and 12")
	}
	return year, time.Month(month), nil
}

func queryDefault(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func previousPeriod(year int, month time.Month) (int, time.Month) {
	if month == time.January {
		return year - 1, time.December
	}
	return year, month - 1
}

func parseTotals(req *SetProcessingStatusRequest) (*payroll.BatchTotals, error) {
	totals := &payroll.BatchTotals{}
	if req.EmployeeCount != nil {
		totals.EmployeeCount = *req.EmployeeCount
	}
	var err error
	if totals.GrossTotal, err = parseMoney("gross_total", req.GrossTotal); err != nil {
		return nil, err
	}
	if totals.NetTotal, err = parseMoney("net_total", req.NetTotal); err != nil {
		return nil, err
	}
	if totals.DeductionsTotal, err = parseMoney("deductions_total", req.DeductionsTotal); err != nil {
		return nil, err
	}
	return totals, nil
}

func parseMoney(field string, s *string) (decimal.Decimal, error) {
	if s == nil || *s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.Zero, &payroll.ValidationError{Field: field, Message: "not a decimal amount"}
	}
	return d, nil
}

func toSnapshot(companyID string, req *PutSnapshotRequest) (*payroll.Snapshot, error) {
	snapshot := &payroll.Snapshot{
		CompanyID: companyID,
		Year:      req.Year,
		Month:     time.Month(req.Month),
		Headcount: len(req.Employees),
		Employees: make(map[string]payroll.EmployeeEntry, len(req.Employees)),
	}

	var err error
	grossField := req.GrossTotal
	if snapshot.GrossTotal, err = parseMoney("gross_total", &grossField); err != nil {
		return nil, err
	}
	dedField := req.DeductionsTotal
	if snapshot.DeductionsTotal, err = parseMoney("deductions_total", &dedField); err != nil {
		return nil, err
	}
	netField := req.NetTotal
	if snapshot.NetTotal, err = parseMoney("net_total", &netField); err != nil {
		return nil, err
	}

	for id, e := range req.Employees {
		gross := e.Gross
		deductions := e.Deductions
		entry := payroll.EmployeeEntry{Name: e.Name}
		if entry.Gross, err = parseMoney("employees."+id+".gross", &gross); err != nil {
			return nil, err
		}
		if entry.Deductions, err = parseMoney("employees."+id+".deductions", &deductions); err != nil {
			return nil, err
		}
		snapshot.Employees[id] = entry
	}
	return snapshot, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
