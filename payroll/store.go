/*
store.go - Persistence interfaces for batches, snapshots, and audit

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  BatchStore:    Batch records, with a compare-and-set approval update
  SnapshotStore: Per-employee batch snapshots from the payroll engine
  AuditLog:      Append-only record of approval transitions

COMPARE-AND-SET CONTRACT:
  UpdateApproval applies a mutation to the stored batch atomically. The
  mutate callback observes the current record and either returns an error
  (nothing is written) or mutates it. The write succeeds only if the
  stored approval status still equals the one the callback observed;
  otherwise the store returns ErrStaleState and nothing is written. This
  is a correctness requirement for racing approvers, not an optimization.

TENANCY:
  Every read is scoped by company id. A batch id outside the caller's
  company resolves to ErrBatchNotFound, indistinguishable from a missing
  record.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite (WAL, guarded UPDATE for CAS)
  - payroll/store: in-memory for tests and dev
*/
package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BATCH STORE
// =============================================================================

type BatchStore interface {
	// Create persists a new batch. Fails with ErrDuplicateBatch if one
	// already exists for (company, month, year).
	Create(ctx context.Context, b *Batch) error

	// Get returns the batch, scoped to the company. ErrBatchNotFound if
	// the id is unknown or belongs to another tenant.
	Get(ctx context.Context, companyID string, id BatchID) (*Batch, error)

	// GetByPeriod returns the company's batch for (month, year).
	GetByPeriod(ctx context.Context, companyID string, year int, month time.Month) (*Batch, error)

	// ListByCompany returns the company's batches, newest period first.
	ListByCompany(ctx context.Context, companyID string) ([]*Batch, error)

	// UpdateApproval atomically applies mutate under the compare-and-set
	// contract described in the package documentation.
	UpdateApproval(ctx context.Context, companyID string, id BatchID, mutate func(*Batch) error) (*Batch, error)

	// SetProcessing records a processing-status transition driven by the
	// external computation pipeline, together with its aggregate totals.
	SetProcessing(ctx context.Context, companyID string, id BatchID, status ProcessingStatus, totals *BatchTotals) (*Batch, error)
}

// BatchTotals carries the aggregates the processing pipeline reports when
// it finishes a run.
type BatchTotals struct {
	EmployeeCount   int
	GrossTotal      decimal.Decimal
	NetTotal        decimal.Decimal
	DeductionsTotal decimal.Decimal
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

type SnapshotStore interface {
	// PutSnapshot stores the snapshot for its (company, month, year),
	// replacing any existing one.
	PutSnapshot(ctx context.Context, s *Snapshot) error

	// GetSnapshot returns an immutable copy, or ErrSnapshotNotFound.
	GetSnapshot(ctx context.Context, companyID string, year int, month time.Month) (*Snapshot, error)
}

// =============================================================================
// AUDIT LOG - Append-only, never mutated
// =============================================================================

// AuditRecord documents one approval transition.
type AuditRecord struct {
	ID      string
	BatchID BatchID
	Actor   string
	From    ApprovalStatus
	To      ApprovalStatus
	At      time.Time
	Notes   string
}

type AuditLog interface {
	Append(ctx context.Context, record AuditRecord) error

	// ListByBatch returns the batch's records in append order.
	ListByBatch(ctx context.Context, id BatchID) ([]AuditRecord, error)
}
