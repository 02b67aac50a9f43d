package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

func newBatch(id, companyID string, year int, month time.Month) *payroll.Batch {
	now := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	return &payroll.Batch{
		ID:               payroll.BatchID(id),
		CompanyID:        companyID,
		Year:             year,
		Month:            month,
		ProcessingStatus: payroll.ProcessingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// =============================================================================
// BATCH STORE
// =============================================================================

func TestMemory_DuplicatePeriod_Rejected(t *testing.T) {
	// GIVEN: A batch for acme July 2025
	// WHEN: Creating a second batch for the same company and period
	// THEN: ErrDuplicateBatch; a different period still succeeds

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, newBatch("b1", "acme", 2025, time.July)))

	err := m.Create(ctx, newBatch("b2", "acme", 2025, time.July))
	assert.ErrorIs(t, err, payroll.ErrDuplicateBatch)

	assert.NoError(t, m.Create(ctx, newBatch("b3", "acme", 2025, time.August)))
	assert.NoError(t, m.Create(ctx, newBatch("b4", "globex", 2025, time.July)))
}

func TestMemory_Get_TenantScoped(t *testing.T) {
	// GIVEN: A batch owned by acme
	// WHEN: Reading it as another company
	// THEN: ErrBatchNotFound

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newBatch("b1", "acme", 2025, time.July)))

	_, err := m.Get(ctx, "globex", "b1")
	assert.ErrorIs(t, err, payroll.ErrBatchNotFound)

	got, err := m.Get(ctx, "acme", "b1")
	require.NoError(t, err)
	assert.Equal(t, payroll.BatchID("b1"), got.ID)
}

func TestMemory_GetByPeriod(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newBatch("b1", "acme", 2025, time.July)))

	got, err := m.GetByPeriod(ctx, "acme", 2025, time.July)
	require.NoError(t, err)
	assert.Equal(t, payroll.BatchID("b1"), got.ID)

	_, err = m.GetByPeriod(ctx, "acme", 2025, time.June)
	assert.ErrorIs(t, err, payroll.ErrBatchNotFound)
}

func TestMemory_ListByCompany_NewestPeriodFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newBatch("b1", "acme", 2025, time.February)))
	require.NoError(t, m.Create(ctx, newBatch("b2", "acme", 2024, time.December)))
	require.NoError(t, m.Create(ctx, newBatch("b3", "acme", 2025, time.March)))
	require.NoError(t, m.Create(ctx, newBatch("b4", "globex", 2025, time.January)))

	batches, err := m.ListByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, payroll.BatchID("b3"), batches[0].ID)
	assert.Equal(t, payroll.BatchID("b1"), batches[1].ID)
	assert.Equal(t, payroll.BatchID("b2"), batches[2].ID)
}

func TestMemory_Create_StoresACopy(t *testing.T) {
	// GIVEN: A created batch
	// WHEN: The caller mutates the original afterwards
	// THEN: The stored record is unaffected

	m := store.NewMemory()
	ctx := context.Background()
	b := newBatch("b1", "acme", 2025, time.July)
	require.NoError(t, m.Create(ctx, b))

	b.ProcessingStatus = payroll.ProcessingFailed

	stored, err := m.Get(ctx, "acme", "b1")
	require.NoError(t, err)
	assert.Equal(t, payroll.ProcessingPending, stored.ProcessingStatus)
}

func TestMemory_UpdateApproval_MutateErrorWritesNothing(t *testing.T) {
	// GIVEN: A stored batch
	// WHEN: The mutate callback returns an error
	// THEN: Nothing is written

	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newBatch("b1", "acme", 2025, time.July)))

	_, err := m.UpdateApproval(ctx, "acme", "b1", func(b *payroll.Batch) error {
		b.ApprovalStatus = payroll.ApprovalApproved
		return payroll.ErrInvalidState
	})
	assert.ErrorIs(t, err, payroll.ErrInvalidState)

	stored, err := m.Get(ctx, "acme", "b1")
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalNone, stored.ApprovalStatus)
}

func TestMemory_SetProcessing_AppliesTotals(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, newBatch("b1", "acme", 2025, time.July)))

	updated, err := m.SetProcessing(ctx, "acme", "b1", payroll.ProcessingCompleted, &payroll.BatchTotals{
		EmployeeCount:   3,
		GrossTotal:      decimal.RequireFromString("150000.00"),
		NetTotal:        decimal.RequireFromString("135000.00"),
		DeductionsTotal: decimal.RequireFromString("15000.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.ProcessingCompleted, updated.ProcessingStatus)
	assert.Equal(t, 3, updated.EmployeeCount)
	assert.True(t, updated.GrossTotal.Equal(decimal.RequireFromString("150000.00")))

	// Status-only update keeps the totals.
	updated, err = m.SetProcessing(ctx, "acme", "b1", payroll.ProcessingPartial, nil)
	require.NoError(t, err)
	assert.Equal(t, payroll.ProcessingPartial, updated.ProcessingStatus)
	assert.Equal(t, 3, updated.EmployeeCount)
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func TestMemorySnapshots_PutReplacesAndCopies(t *testing.T) {
	// GIVEN: A stored snapshot
	// WHEN: Storing again for the same period and mutating the original
	// THEN: The read returns the replacement, unaffected by the mutation

	m := store.NewMemorySnapshots()
	ctx := context.Background()

	first := &payroll.Snapshot{
		CompanyID: "acme", Year: 2025, Month: time.July, Headcount: 1,
		GrossTotal: decimal.RequireFromString("50000.00"),
		Employees:  map[string]payroll.EmployeeEntry{"e1": {Name: "Asha", Gross: decimal.RequireFromString("50000.00")}},
	}
	require.NoError(t, m.PutSnapshot(ctx, first))

	second := first.Clone()
	second.Headcount = 2
	second.Employees["e2"] = payroll.EmployeeEntry{Name: "Ben", Gross: decimal.RequireFromString("60000.00")}
	require.NoError(t, m.PutSnapshot(ctx, second))

	second.Employees["e3"] = payroll.EmployeeEntry{Name: "Chitra"}

	got, err := m.GetSnapshot(ctx, "acme", 2025, time.July)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Headcount)
	assert.Len(t, got.Employees, 2)

	_, err = m.GetSnapshot(ctx, "acme", 2025, time.June)
	assert.ErrorIs(t, err, payroll.ErrSnapshotNotFound)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestMemoryAudit_AppendOrderPreserved(t *testing.T) {
	m := store.NewMemoryAudit()
	ctx := context.Background()
	at := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

	for i, to := range []payroll.ApprovalStatus{payroll.ApprovalPending, payroll.ApprovalRejected, payroll.ApprovalPending} {
		require.NoError(t, m.Append(ctx, payroll.AuditRecord{
			ID: string(rune('a' + i)), BatchID: "b1", Actor: "user-1", To: to, At: at,
		}))
	}

	records, err := m.ListByBatch(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, payroll.ApprovalPending, records[0].To)
	assert.Equal(t, payroll.ApprovalRejected, records[1].To)
	assert.Equal(t, payroll.ApprovalPending, records[2].To)

	other, err := m.ListByBatch(ctx, "b2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
