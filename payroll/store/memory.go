// Package store provides in-memory implementations of the payroll
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY BATCH STORE
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	batches map[payroll.BatchID]*payroll.Batch
	periods map[periodKey]payroll.BatchID
}

type periodKey struct {
	CompanyID string
	Year      int
	Month     time.Month
}

func NewMemory() *Memory {
	return &Memory{
		batches: make(map[payroll.BatchID]*payroll.Batch),
		periods: make(map[periodKey]payroll.BatchID),
	}
}

func (m *Memory) Create(_ context.Context, b *payroll.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := periodKey{CompanyID: b.CompanyID, Year: b.Year, Month: b.Month}
	if _, exists := m.periods[key]; exists {
		return payroll.ErrDuplicateBatch
	}
	m.batches[b.ID] = b.Clone()
	m.periods[key] = b.ID
	return nil
}

func (m *Memory) Get(_ context.Context, companyID string, id payroll.BatchID) (*payroll.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(companyID, id)
}

func (m *Memory) getLocked(companyID string, id payroll.BatchID) (*payroll.Batch, error) {
	b, ok := m.batches[id]
	if !ok || b.CompanyID != companyID {
		return nil, payroll.ErrBatchNotFound
	}
	return b.Clone(), nil
}

func (m *Memory) GetByPeriod(_ context.Context, companyID string, year int, month time.Month) (*payroll.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.periods[periodKey{CompanyID: companyID, Year: year, Month: month}]
	if !ok {
		return nil, payroll.ErrBatchNotFound
	}
	return m.getLocked(companyID, id)
}

func (m *Memory) ListByCompany(_ context.Context, companyID string) ([]*payroll.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var batches []*payroll.Batch
	for _, b := range m.batches {
		if b.CompanyID == companyID {
			batches = append(batches, b.Clone())
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].Year != batches[j].Year {
			return batches[i].Year > batches[j].Year
		}
		return batches[i].Month > batches[j].Month
	})
	return batches, nil
}

// UpdateApproval holds the write lock for the whole read-guard-write
// sequence, so the compare-and-set contract holds trivially.
func (m *Memory) UpdateApproval(_ context.Context, companyID string, id payroll.BatchID, mutate func(*payroll.Batch) error) (*payroll.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.batches[id]
	if !ok || stored.CompanyID != companyID {
		return nil, payroll.ErrBatchNotFound
	}

	candidate := stored.Clone()
	if err := mutate(candidate); err != nil {
		return nil, err
	}

	m.batches[id] = candidate
	return candidate.Clone(), nil
}

func (m *Memory) SetProcessing(_ context.Context, companyID string, id payroll.BatchID, status payroll.ProcessingStatus, totals *payroll.BatchTotals) (*payroll.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.batches[id]
	if !ok || stored.CompanyID != companyID {
		return nil, payroll.ErrBatchNotFound
	}

	updated := stored.Clone()
	updated.ProcessingStatus = status
	if totals != nil {
		updated.EmployeeCount = totals.EmployeeCount
		updated.GrossTotal = totals.GrossTotal
		updated.NetTotal = totals.NetTotal
		updated.DeductionsTotal = totals.DeductionsTotal
	}
	m.batches[id] = updated
	return updated.Clone(), nil
}

// =============================================================================
// MEMORY SNAPSHOT STORE
// =============================================================================

type MemorySnapshots struct {
	mu        sync.RWMutex
	snapshots map[periodKey]*payroll.Snapshot
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{snapshots: make(map[periodKey]*payroll.Snapshot)}
}

func (m *MemorySnapshots) PutSnapshot(_ context.Context, s *payroll.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[periodKey{CompanyID: s.CompanyID, Year: s.Year, Month: s.Month}] = s.Clone()
	return nil
}

func (m *MemorySnapshots) GetSnapshot(_ context.Context, companyID string, year int, month time.Month) (*payroll.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.snapshots[periodKey{CompanyID: companyID, Year: year, Month: month}]
	if !ok {
		return nil, payroll.ErrSnapshotNotFound
	}
	return s.Clone(), nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

type MemoryAudit struct {
	mu      sync.RWMutex
	records map[payroll.BatchID][]payroll.AuditRecord
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{records: make(map[payroll.BatchID][]payroll.AuditRecord)}
}

// Append is the only write; records are never mutated or removed.
func (m *MemoryAudit) Append(_ context.Context, record payroll.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.BatchID] = append(m.records[record.BatchID], record)
	return nil
}

func (m *MemoryAudit) ListByBatch(_ context.Context, id payroll.BatchID) ([]payroll.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]payroll.AuditRecord, len(m.records[id]))
	copy(records, m.records[id])
	return records, nil
}
