/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements payroll.BatchStore, payroll.SnapshotStore, and
  payroll.AuditLog using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  batches:       One row per company payroll run, unique per period
  snapshots:     Per-employee batch projections (employees as JSON)
  audit_records: Append-only approval transition log

COMPARE-AND-SET:
  UpdateApproval runs the read-guard-write sequence inside one
  transaction and re-checks the approval status in the UPDATE's WHERE
  clause. Zero rows affected means another writer won the race; the
  transaction rolls back and ErrStaleState is returned with nothing
  written.

APPEND-ONLY ENFORCEMENT:
  audit_records has no UPDATE or DELETE statements anywhere in this
  package. Append order is preserved by an AUTOINCREMENT sequence.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers do
  not block, a single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - payroll/store.go: interface definitions and the CAS contract
  - payroll/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A :memory: database exists per connection; a single connection also
	// serializes writers, which sqlite requires anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		processing_status TEXT NOT NULL,
		approval_status TEXT NOT NULL DEFAULT '',
		employee_count INTEGER NOT NULL DEFAULT 0,
		gross_total TEXT NOT NULL DEFAULT '0',
		net_total TEXT NOT NULL DEFAULT '0',
		deductions_total TEXT NOT NULL DEFAULT '0',
		currency_symbol TEXT NOT NULL DEFAULT '',
		submitted_at TEXT,
		approved_at TEXT,
		rejected_at TEXT,
		rejection_notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(company_id, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_batches_company_period
		ON batches(company_id, year, month);

	CREATE TABLE IF NOT EXISTS snapshots (
		company_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		headcount INTEGER NOT NULL,
		gross_total TEXT NOT NULL,
		deductions_total TEXT NOT NULL,
		net_total TEXT NOT NULL,
		employees_json TEXT NOT NULL,
		PRIMARY KEY (company_id, year, month)
	);

	-- Append-only: no UPDATE or DELETE in this package.
	CREATE TABLE IF NOT EXISTS audit_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		batch_id TEXT NOT NULL,
		actor TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		at TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_batch ON audit_records(batch_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BATCH STORE
// =============================================================================

func (s *Store) Create(ctx context.Context, b *payroll.Batch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (
			id, company_id, year, month, processing_status, approval_status,
			employee_count, gross_total, net_total, deductions_total,
			currency_symbol, submitted_at, approved_at, rejected_at,
			rejection_notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(b.ID), b.CompanyID, b.Year, int(b.Month),
		string(b.ProcessingStatus), string(b.ApprovalStatus),
		b.EmployeeCount, b.GrossTotal.String(), b.NetTotal.String(),
		b.DeductionsTotal.String(), b.CurrencySymbol,
		nullTime(b.SubmittedAt), nullTime(b.ApprovedAt), nullTime(b.RejectedAt),
		b.RejectionNotes, b.CreatedAt.UTC().Format(time.RFC3339Nano), b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return payroll.ErrDuplicateBatch
	}
	return err
}

func (s *Store) Get(ctx context.Context, companyID string, id payroll.BatchID) (*payroll.Batch, error) {
	return s.queryBatch(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ? AND company_id = ?`,
		string(id), companyID)
}

func (s *Store) GetByPeriod(ctx context.Context, companyID string, year int, month time.Month) (*payroll.Batch, error) {
	return s.queryBatch(ctx, `SELECT `+batchColumns+` FROM batches WHERE company_id = ? AND year = ? AND month = ?`,
		companyID, year, int(month))
}

func (s *Store) ListByCompany(ctx context.Context, companyID string) ([]*payroll.Batch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE company_id = ? ORDER BY year DESC, month DESC`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*payroll.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// UpdateApproval implements the compare-and-set contract: the UPDATE's
// WHERE clause re-checks the approval status read at the start of the
// transaction, and zero affected rows means another writer won the race.
func (s *Store) UpdateApproval(ctx context.Context, companyID string, id payroll.BatchID, mutate func(*payroll.Batch) error) (*payroll.Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = ? AND company_id = ?`,
		string(id), companyID)
	current, err := scanBatch(row)
	if err != nil {
		return nil, err
	}

	observed := current.ApprovalStatus
	candidate := current.Clone()
	if err := mutate(candidate); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE batches SET
			approval_status = ?, submitted_at = ?, approved_at = ?,
			rejected_at = ?, rejection_notes = ?, updated_at = ?
		WHERE id = ? AND company_id = ? AND approval_status = ?`,
		string(candidate.ApprovalStatus),
		nullTime(candidate.SubmittedAt), nullTime(candidate.ApprovedAt),
		nullTime(candidate.RejectedAt), candidate.RejectionNotes,
		candidate.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(id), companyID, string(observed),
	)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, payroll.ErrStaleState
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return candidate, nil
}

func (s *Store) SetProcessing(ctx context.Context, companyID string, id payroll.BatchID, status payroll.ProcessingStatus, totals *payroll.BatchTotals) (*payroll.Batch, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var result sql.Result
	var err error
	if totals != nil {
		result, err = s.db.ExecContext(ctx, `
			UPDATE batches SET
				processing_status = ?, employee_count = ?, gross_total = ?,
				net_total = ?, deductions_total = ?, updated_at = ?
			WHERE id = ? AND company_id = ?`,
			string(status), totals.EmployeeCount, totals.GrossTotal.String(),
			totals.NetTotal.String(), totals.DeductionsTotal.String(), now,
			string(id), companyID)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE batches SET processing_status = ?, updated_at = ?
			WHERE id = ? AND company_id = ?`,
			string(status), now, string(id), companyID)
	}
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, payroll.ErrBatchNotFound
	}
	return s.Get(ctx, companyID, id)
}

const batchColumns = `id, company_id, year, month, processing_status, approval_status,
	employee_count, gross_total, net_total, deductions_total, currency_symbol,
	submitted_at, approved_at, rejected_at, rejection_notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryBatch(ctx context.Context, query string, args ...any) (*payroll.Batch, error) {
	return scanBatch(s.db.QueryRowContext(ctx, query, args...))
}

func scanBatch(row rowScanner) (*payroll.Batch, error) {
	var (
		b                        payroll.Batch
		id, processing, approval string
		month                    int
		gross, net, deductions   string
		subAt, appAt, rejAt      sql.NullString
		createdAt, updatedAt     string
	)
	err := row.Scan(
		&id, &b.CompanyID, &b.Year, &month, &processing, &approval,
		&b.EmployeeCount, &gross, &net, &deductions, &b.CurrencySymbol,
		&subAt, &appAt, &rejAt, &b.RejectionNotes, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrBatchNotFound
	}
	if err != nil {
		return nil, err
	}

	b.ID = payroll.BatchID(id)
	b.Month = time.Month(month)
	b.ProcessingStatus = payroll.ProcessingStatus(processing)
	b.ApprovalStatus = payroll.ApprovalStatus(approval)
	if b.GrossTotal, err = decimal.NewFromString(gross); err != nil {
		return nil, fmt.Errorf("corrupt gross_total: %w", err)
	}
	if b.NetTotal, err = decimal.NewFromString(net); err != nil {
		return nil, fmt.Errorf("corrupt net_total: %w", err)
	}
	if b.DeductionsTotal, err = decimal.NewFromString(deductions); err != nil {
		return nil, fmt.Errorf("corrupt deductions_total: %w", err)
	}
	if b.SubmittedAt, err = parseNullTime(subAt); err != nil {
		return nil, err
	}
	if b.ApprovedAt, err = parseNullTime(appAt); err != nil {
		return nil, err
	}
	if b.RejectedAt, err = parseNullTime(rejAt); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (s *Store) PutSnapshot(ctx context.Context, snap *payroll.Snapshot) error {
	employees, err := json.Marshal(snap.Employees)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (company_id, year, month, headcount, gross_total, deductions_total, net_total, employees_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, year, month) DO UPDATE SET
			headcount = excluded.headcount,
			gross_total = excluded.gross_total,
			deductions_total = excluded.deductions_total,
			net_total = excluded.net_total,
			employees_json = excluded.employees_json`,
		snap.CompanyID, snap.Year, int(snap.Month), snap.Headcount,
		snap.GrossTotal.String(), snap.DeductionsTotal.String(),
		snap.NetTotal.String(), string(employees))
	return err
}

func (s *Store) GetSnapshot(ctx context.Context, companyID string, year int, month time.Month) (*payroll.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT headcount, gross_total, deductions_total, net_total, employees_json
		FROM snapshots WHERE company_id = ? AND year = ? AND month = ?`,
		companyID, year, int(month))

	var (
		snap                   payroll.Snapshot
		gross, deductions, net string
		employeesJSON          string
	)
	err := row.Scan(&snap.Headcount, &gross, &deductions, &net, &employeesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payroll.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	snap.CompanyID = companyID
	snap.Year = year
	snap.Month = month
	if snap.GrossTotal, err = decimal.NewFromString(gross); err != nil {
		return nil, fmt.Errorf("corrupt gross_total: %w", err)
	}
	if snap.DeductionsTotal, err = decimal.NewFromString(deductions); err != nil {
		return nil, fmt.Errorf("corrupt deductions_total: %w", err)
	}
	if snap.NetTotal, err = decimal.NewFromString(net); err != nil {
		return nil, fmt.Errorf("corrupt net_total: %w", err)
	}
	if err := json.Unmarshal([]byte(employeesJSON), &snap.Employees); err != nil {
		return nil, fmt.Errorf("corrupt employees_json: %w", err)
	}
	return &snap, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, record payroll.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, batch_id, actor, from_status, to_status, at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.BatchID), record.Actor,
		string(record.From), string(record.To),
		record.At.UTC().Format(time.RFC3339Nano), record.Notes)
	return err
}

func (s *Store) ListByBatch(ctx context.Context, id payroll.BatchID) ([]payroll.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, actor, from_status, to_status, at, notes
		FROM audit_records WHERE batch_id = ? ORDER BY seq`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []payroll.AuditRecord
	for rows.Next() {
		var (
			r                 payroll.AuditRecord
			batchID, from, to string
			at                string
		)
		if err := rows.Scan(&r.ID, &batchID, &r.Actor, &from, &to, &at, &r.Notes); err != nil {
			return nil, err
		}
		r.BatchID = payroll.BatchID(batchID)
		r.From = payroll.ApprovalStatus(from)
		r.To = payroll.ApprovalStatus(to)
		if r.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
