package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedBatch(t *testing.T, store *sqlite.Store, id, companyID string, year int, month time.Month) *payroll.Batch {
	t.Helper()
	now := time.Date(2025, time.August, 1, 9, 30, 0, 0, time.UTC)
	submitted := now.Add(time.Hour)
	b := &payroll.Batch{
		ID:               payroll.BatchID(id),
		CompanyID:        companyID,
		Year:             year,
		Month:            month,
		ProcessingStatus: payroll.ProcessingCompleted,
		ApprovalStatus:   payroll.ApprovalPending,
		EmployeeCount:    2,
		GrossTotal:       decimal.RequireFromString("110000.00"),
		NetTotal:         decimal.RequireFromString("99000.00"),
		DeductionsTotal:  decimal.RequireFromString("11000.00"),
		CurrencySymbol:   "₹",
		SubmittedAt:      &submitted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, store.Create(context.Background(), b))
	return b
}

// =============================================================================
// BATCH ROUND TRIP
// =============================================================================

func TestSQLite_CreateAndGet_RoundTrip(t *testing.T) {
	// GIVEN: A batch with totals, timestamps, and approval state
	// WHEN: Persisting and reading it back
	// THEN: Every field survives, including decimal precision and the
	//       nullable timestamps

	store := newTestStore(t)
	ctx := context.Background()
	b := seedBatch(t, store, "batch-1", "acme", 2025, time.July)

	got, err := store.Get(ctx, "acme", b.ID)
	require.NoError(t, err)

	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.CompanyID, got.CompanyID)
	assert.Equal(t, b.Year, got.Year)
	assert.Equal(t, b.Month, got.Month)
	assert.Equal(t, payroll.ProcessingCompleted, got.ProcessingStatus)
	assert.Equal(t, payroll.ApprovalPending, got.ApprovalStatus)
	assert.Equal(t, 2, got.EmployeeCount)
	assert.True(t, got.GrossTotal.Equal(b.GrossTotal), "gross: %s", got.GrossTotal)
	assert.True(t, got.NetTotal.Equal(b.NetTotal))
	assert.True(t, got.DeductionsTotal.Equal(b.DeductionsTotal))
	assert.Equal(t, "₹", got.CurrencySymbol)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, got.SubmittedAt.Equal(*b.SubmittedAt))
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.RejectedAt)
	assert.True(t, got.CreatedAt.Equal(b.CreatedAt))
}

func TestSQLite_DuplicatePeriod_Rejected(t *testing.T) {
	// GIVEN: A batch for acme July 2025
	// WHEN: Inserting another for the same company and period
	// THEN: The UNIQUE constraint surfaces as ErrDuplicateBatch

	store := newTestStore(t)
	seedBatch(t, store, "batch-1", "acme", 2025, time.July)

	dup := &payroll.Batch{
		ID: "batch-2", CompanyID: "acme", Year: 2025, Month: time.July,
		ProcessingStatus: payroll.ProcessingPending,
		CreatedAt:        time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	err := store.Create(context.Background(), dup)
	assert.ErrorIs(t, err, payroll.ErrDuplicateBatch)
}

func TestSQLite_Get_TenantScoped(t *testing.T) {
	store := newTestStore(t)
	b := seedBatch(t, store, "batch-1", "acme", 2025, time.July)

	_, err := store.Get(context.Background(), "globex", b.ID)
	assert.ErrorIs(t, err, payroll.ErrBatchNotFound)
}

func TestSQLite_GetByPeriodAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedBatch(t, store, "b1", "acme", 2024, time.December)
	seedBatch(t, store, "b2", "acme", 2025, time.February)
	seedBatch(t, store, "b3", "acme", 2025, time.January)

	got, err := store.GetByPeriod(ctx, "acme", 2025, time.January)
	require.NoError(t, err)
	assert.Equal(t, payroll.BatchID("b3"), got.ID)

	batches, err := store.ListByCompany(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, payroll.BatchID("b2"), batches[0].ID)
	assert.Equal(t, payroll.BatchID("b3"), batches[1].ID)
	assert.Equal(t, payroll.BatchID("b1"), batches[2].ID)
}

// =============================================================================
// COMPARE-AND-SET
// =============================================================================

func TestSQLite_UpdateApproval_AppliesMutation(t *testing.T) {
	// GIVEN: A pending batch
	// WHEN: Updating approval through the compare-and-set path
	// THEN: The mutation commits and reads back

	store := newTestStore(t)
	ctx := context.Background()
	b := seedBatch(t, store, "batch-1", "acme", 2025, time.July)

	approvedAt := time.Date(2025, time.August, 2, 10, 0, 0, 0, time.UTC)
	updated, err := store.UpdateApproval(ctx, "acme", b.ID, func(b *payroll.Batch) error {
		b.ApprovalStatus = payroll.ApprovalApproved
		b.ApprovedAt = &approvedAt
		b.UpdatedAt = approvedAt
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalApproved, updated.ApprovalStatus)

	got, err := store.Get(ctx, "acme", b.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalApproved, got.ApprovalStatus)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, got.ApprovedAt.Equal(approvedAt))
}

func TestSQLite_UpdateApproval_MutateErrorWritesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	b := seedBatch(t, store, "batch-1", "acme", 2025, time.July)

	_, err := store.UpdateApproval(ctx, "acme", b.ID, func(b *payroll.Batch) error {
		b.ApprovalStatus = payroll.ApprovalApproved
		return payroll.ErrInvalidState
	})
	assert.ErrorIs(t, err, payroll.ErrInvalidState)

	got, err := store.Get(ctx, "acme", b.ID)
	require.NoError(t, err)
	assert.Equal(t, payroll.ApprovalPending, got.ApprovalStatus)
}

func TestSQLite_UpdateApproval_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.UpdateApproval(context.Background(), "acme", "missing", func(b *payroll.Batch) error {
		return nil
	})
	assert.ErrorIs(t, err, payroll.ErrBatchNotFound)
}

// =============================================================================
// PROCESSING STATUS
// =============================================================================

func TestSQLite_SetProcessing_WithTotals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	b := seedBatch(t, store, "batch-1", "acme", 2025, time.July)

	updated, err := store.SetProcessing(ctx, "acme", b.ID, payroll.ProcessingPartial, &payroll.BatchTotals{
		EmployeeCount:   5,
		GrossTotal:      decimal.RequireFromString("250000.00"),
		NetTotal:        decimal.RequireFromString("225000.00"),
		DeductionsTotal: decimal.RequireFromString("25000.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.ProcessingPartial, updated.ProcessingStatus)
	assert.Equal(t, 5, updated.EmployeeCount)
	assert.True(t, updated.GrossTotal.Equal(decimal.RequireFromString("250000.00")))

	_, err = store.SetProcessing(ctx, "globex", b.ID, payroll.ProcessingFailed, nil)
	assert.ErrorIs(t, err, payroll.ErrBatchNotFound)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func TestSQLite_Snapshot_RoundTripAndUpsert(t *testing.T) {
	// GIVEN: A snapshot with per-employee entries
	// WHEN: Storing, re-storing for the same period, and reading back
	// THEN: The JSON payload round-trips and the second write replaces
	//       the first

	store := newTestStore(t)
	ctx := context.Background()

	snap := &payroll.Snapshot{
		CompanyID: "acme", Year: 2025, Month: time.July,
		Headcount:       2,
		GrossTotal:      decimal.RequireFromString("110000.00"),
		DeductionsTotal: decimal.RequireFromString("11000.00"),
		NetTotal:        decimal.RequireFromString("99000.00"),
		Employees: map[string]payroll.EmployeeEntry{
			"e1": {Name: "Asha", Gross: decimal.RequireFromString("50000.00"), Deductions: decimal.RequireFromString("5000.00")},
			"e2": {Name: "Ben", Gross: decimal.RequireFromString("60000.00"), Deductions: decimal.RequireFromString("6000.00")},
		},
	}
	require.NoError(t, store.PutSnapshot(ctx, snap))

	got, err := store.GetSnapshot(ctx, "acme", 2025, time.July)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Headcount)
	assert.True(t, got.GrossTotal.Equal(snap.GrossTotal))
	require.Len(t, got.Employees, 2)
	assert.Equal(t, "Asha", got.Employees["e1"].Name)
	assert.True(t, got.Employees["e1"].Gross.Equal(decimal.RequireFromString("50000.00")))

	// Upsert replaces.
	snap.Headcount = 1
	delete(snap.Employees, "e2")
	snap.GrossTotal = decimal.RequireFromString("50000.00")
	require.NoError(t, store.PutSnapshot(ctx, snap))

	got, err = store.GetSnapshot(ctx, "acme", 2025, time.July)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Headcount)
	assert.Len(t, got.Employees, 1)

	_, err = store.GetSnapshot(ctx, "acme", 2025, time.June)
	assert.ErrorIs(t, err, payroll.ErrSnapshotNotFound)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func TestSQLite_Audit_AppendOrderPreserved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, time.August, 1, 12, 0, 0, 0, time.UTC)

	transitions := []struct {
		id   string
		from payroll.ApprovalStatus
		to   payroll.ApprovalStatus
	}{
		{"rec-1", payroll.ApprovalNone, payroll.ApprovalPending},
		{"rec-2", payroll.ApprovalPending, payroll.ApprovalRejected},
		{"rec-3", payroll.ApprovalRejected, payroll.ApprovalPending},
	}
	for _, tr := range transitions {
		require.NoError(t, store.Append(ctx, payroll.AuditRecord{
			ID: tr.id, BatchID: "batch-1", Actor: "user-1",
			From: tr.from, To: tr.to, At: at, Notes: "n",
		}))
	}

	records, err := store.ListByBatch(ctx, "batch-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, tr := range transitions {
		assert.Equal(t, tr.id, records[i].ID)
		assert.Equal(t, tr.from, records[i].From)
		assert.Equal(t, tr.to, records[i].To)
	}
	assert.True(t, records[0].At.Equal(at))

	other, err := store.ListByBatch(ctx, "batch-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
