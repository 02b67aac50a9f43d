/*
Package payroll governs the payroll batch compliance and reconciliation cycle.

PURPOSE:
  This package contains the core domain for a company's monthly payroll
  runs: the PayrollBatch record and its two orthogonal status axes, the
  immutable batch snapshots supplied by the external payroll computation
  engine, the reconciliation engine that diffs consecutive snapshots, and
  the approval state machine gating disbursement.

KEY CONCEPTS IN THIS FILE (types.go):
  - Batch: one company's payroll run for a (month, year)
  - ProcessingStatus: driven by the external processing pipeline
  - ApprovalStatus: owned exclusively by the approval state machine
  - Snapshot: read-only per-employee projection used for reconciliation

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all monetary totals
  2. Two axes: processing and approval status never collapse into one enum
  3. Immutability: snapshots are cloned defensively, reports are ephemeral
  4. Tenancy: every batch is owned by a company; reads are tenant-scoped

SEE ALSO:
  - reconcile.go: snapshot diffing and anomaly classification
  - approval.go: the approval lifecycle and its guards
  - store.go: persistence interfaces and the audit log
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS AXES
// =============================================================================

// ProcessingStatus tracks the external computation pipeline. This package
// never drives these transitions; it only reads them as guards.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "PENDING"
	ProcessingRunning   ProcessingStatus = "PROCESSING"
	ProcessingCompleted ProcessingStatus = "COMPLETED"
	ProcessingFailed    ProcessingStatus = "FAILED"
	ProcessingPartial   ProcessingStatus = "PARTIAL"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case ProcessingPending, ProcessingRunning, ProcessingCompleted, ProcessingFailed, ProcessingPartial:
		return true
	}
	return false
}

// ApprovalStatus tracks the approval lifecycle. The zero value means the
// batch has never been submitted.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = ""
	ApprovalPending  ApprovalStatus = "PENDING_APPROVAL"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// =============================================================================
// BATCH - One company's payroll run for a (month, year)
// =============================================================================

type BatchID string

type Batch struct {
	ID        BatchID
	CompanyID string
	Month     time.Month
	Year      int

	ProcessingStatus ProcessingStatus
	ApprovalStatus   ApprovalStatus

	// Aggregate totals from the external computation engine.
	EmployeeCount   int
	GrossTotal      decimal.Decimal
	NetTotal        decimal.Decimal
	DeductionsTotal decimal.Decimal
	CurrencySymbol  string

	// Approval lifecycle timestamps.
	SubmittedAt *time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time

	// Present only while ApprovalStatus is REJECTED. Retained in the audit
	// trail after resubmission but no longer blocks the batch.
	RejectionNotes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy safe to mutate without affecting the stored record.
func (b *Batch) Clone() *Batch {
	c := *b
	if b.SubmittedAt != nil {
		t := *b.SubmittedAt
		c.SubmittedAt = &t
	}
	if b.ApprovedAt != nil {
		t := *b.ApprovedAt
		c.ApprovedAt = &t
	}
	if b.RejectedAt != nil {
		t := *b.RejectedAt
		c.RejectedAt = &t
	}
	return &c
}

// =============================================================================
// SNAPSHOT - Read-only projection from the external payroll engine
// =============================================================================

// EmployeeEntry is one employee's computed pay within a snapshot.
type EmployeeEntry struct {
	Name       string
	Gross      decimal.Decimal
	Deductions decimal.Decimal
}

// Snapshot is the per-employee projection of a batch at a consistent
// point. Callers pass snapshots by value of this clone, never a live
// reference, so reconciliation never sees a partially-updated batch.
type Snapshot struct {
	CompanyID string
	Month     time.Month
	Year      int

	Headcount       int
	GrossTotal      decimal.Decimal
	DeductionsTotal decimal.Decimal
	NetTotal        decimal.Decimal

	Employees map[string]EmployeeEntry
}

// Clone deep-copies the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Employees = make(map[string]EmployeeEntry, len(s.Employees))
	for id, e := range s.Employees {
		c.Employees[id] = e
	}
	return &c
}
