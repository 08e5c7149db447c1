/*
Package sqlite provides a SQLite-backed implementation of the payroll
storage interfaces.

INTERFACES IMPLEMENTED:
  payroll.ComponentStore:    Effective-dated component assignments
  payroll.ComponentCatalog:  Salary component master
  payroll.PeriodStore:       Periods, status transitions, audit trail
  payroll.ResultStore:       Computed payroll results
  payroll.LoanStore:         Loans and applied deductions
  payroll.SettlementStore:   Final settlements
  payroll.AttendanceSource & AttendanceSink: Period summaries
  payroll.EmployeeDirectory, payroll.LeaveTypeCatalog
  approval.Journal:          Append-only approval log

INVARIANT ENFORCEMENT:
  - Assignment writes route through the shared interval algebra in
    payroll/components.go, so the no-overlap invariant holds here exactly
    as it does in the in-memory store.
  - Period and settlement status transitions are compare-and-swap UPDATEs
    (WHERE status = expected); a zero row count is a conflicting
    transition.
  - Loan deductions carry UNIQUE(loan_id, period_id); the constraint
    violation maps to the already-applied error, which is what makes loan
    processing idempotent under retry.
  - The approval journal has no UPDATE or DELETE path at all.

AMOUNT STORAGE:
  Monetary amounts and day counts are stored as decimal strings, never
  floats. Dates are stored as YYYY-MM-DD, timestamps as RFC3339.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  one writer at a time, better crash recovery.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a versioned
  migration tool.

SEE ALSO:
  - payroll/store.go: interface definitions
  - payroll/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/payroll"
)

// Store implements all payroll storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

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
	-- Salary component master
	CREATE TABLE IF NOT EXISTS components (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		method TEXT NOT NULL,
		wps_class TEXT NOT NULL,
		taxable BOOLEAN DEFAULT FALSE
	);

	-- Effective-dated assignments: closed, never edited
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		component_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_pair
		ON assignments(employee_id, component_id, effective_from);

	-- Payroll periods
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		range_start TEXT NOT NULL,
		range_end TEXT NOT NULL,
		pay_month INTEGER NOT NULL,
		pay_year INTEGER NOT NULL,
		status TEXT NOT NULL,
		locked_at TEXT,
		locked_by TEXT,
		UNIQUE(pay_month, pay_year)
	);

	CREATE INDEX IF NOT EXISTS idx_periods_range
		ON periods(range_start, range_end);

	-- Period audit trail (lock, reopen)
	CREATE TABLE IF NOT EXISTS period_audits (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		reason TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_period_audits_period
		ON period_audits(period_id, at);

	-- Computed payroll results, one row per (period, employee)
	CREATE TABLE IF NOT EXISTS results (
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		days_worked TEXT NOT NULL,
		fixed_amount TEXT NOT NULL,
		variable_amount TEXT NOT NULL,
		gross TEXT NOT NULL,
		deductions TEXT NOT NULL,
		net TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		PRIMARY KEY (period_id, employee_id)
	);

	-- Employee loans
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		installment_amount TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		start_period_id TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_loans_employee
		ON loans(employee_id);

	-- Applied loan deductions; the UNIQUE pair is the idempotency guard
	CREATE TABLE IF NOT EXISTS loan_deductions (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		UNIQUE(loan_id, period_id)
	);

	CREATE INDEX IF NOT EXISTS idx_loan_deductions_period
		ON loan_deductions(period_id);

	-- Final settlements
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		termination_date TEXT NOT NULL,
		gratuity_amount TEXT NOT NULL,
		leave_encashment_amount TEXT NOT NULL,
		notice_pay_amount TEXT NOT NULL,
		other_earnings TEXT NOT NULL,
		other_deductions TEXT NOT NULL,
		total_payable TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_settlements_employee
		ON settlements(employee_id);
	CREATE INDEX IF NOT EXISTS idx_settlements_period_status
		ON settlements(period_id, status);

	-- Attendance summaries, one row per (period, employee)
	CREATE TABLE IF NOT EXISTS summaries (
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		worked_minutes INTEGER NOT NULL,
		scheduled_minutes INTEGER NOT NULL,
		overtime_json TEXT NOT NULL,
		unpaid_leave_json TEXT NOT NULL,
		absence_days TEXT NOT NULL,
		PRIMARY KEY (period_id, employee_id)
	);

	-- Employee master (engine-facing subset)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		iban TEXT,
		mohre_person_id TEXT,
		labor_card_number TEXT,
		joining_date TEXT NOT NULL,
		wps_eligible BOOLEAN DEFAULT TRUE,
		basic_component TEXT NOT NULL
	);

	-- Leave type catalog (payroll-facing flags only)
	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		paid BOOLEAN DEFAULT TRUE,
		payroll_deductible BOOLEAN DEFAULT FALSE
	);

	-- Approval journal (append-only; no UPDATE or DELETE path exists)
	CREATE TABLE IF NOT EXISTS approval_journal (
		seq INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		request_json TEXT,
		request_id TEXT,
		outcome TEXT,
		actor TEXT,
		at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COMPONENT CATALOG (payroll.ComponentCatalog interface)
// =============================================================================

// SaveComponent inserts or replaces a catalog entry.
func (s *Store) SaveComponent(ctx context.Context, c payroll.SalaryComponent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO components (id, name, kind, method, wps_class, taxable)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Kind, c.Method, c.Class, c.Taxable)
	if err != nil {
		return fmt.Errorf("failed to save component: %w", err)
	}
	return nil
}

func (s *Store) Component(ctx context.Context, id payroll.ComponentID) (payroll.SalaryComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c payroll.SalaryComponent
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, method, wps_class, taxable
		FROM components WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Kind, &c.Method, &c.Class, &c.Taxable)
	if err == sql.ErrNoRows {
		return payroll.SalaryComponent{}, payroll.ErrComponentNotFound
	}
	if err != nil {
		return payroll.SalaryComponent{}, fmt.Errorf("failed to query component: %w", err)
	}
	return c, nil
}

func (s *Store) Components(ctx context.Context) ([]payroll.SalaryComponent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, method, wps_class, taxable
		FROM components ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query components: %w", err)
	}
	defer rows.Close()

	var out []payroll.SalaryComponent
	for rows.Next() {
		var c payroll.SalaryComponent
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.Method, &c.Class, &c.Taxable); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// COMPONENT STORE (payroll.ComponentStore interface)
// =============================================================================

// Assign inserts a new effective-dated interval. The overlap check runs
// against the loaded history through the shared interval algebra; the write
// lock makes load-check-insert atomic.
func (s *Store) Assign(ctx context.Context, a payroll.ComponentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory(ctx, a.EmployeeID, a.ComponentID)
	if err != nil {
		return err
	}
	if _, err := payroll.InsertAssignment(history, a); err != nil {
		return err
	}
	return s.insertAssignment(ctx, s.db, a)
}

func (s *Store) Resolve(ctx context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID, asOf payroll.Date) (payroll.ComponentAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, err := s.loadHistory(ctx, employeeID, componentID)
	if err != nil {
		return payroll.ComponentAssignment{}, err
	}
	a, ok := payroll.ResolveAssignment(history, asOf)
	if !ok {
		return payroll.ComponentAssignment{}, payroll.ErrAssignmentNotFound
	}
	return a, nil
}

// Supersede closes the interval active at asOf and opens a new one starting
// the same date, in one database transaction.
func (s *Store) Supersede(ctx context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID, newAmount payroll.Money, asOf payroll.Date) (payroll.ComponentAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory(ctx, employeeID, componentID)
	if err != nil {
		return payroll.ComponentAssignment{}, err
	}
	current, ok := payroll.ResolveAssignment(history, asOf)
	if !ok {
		return payroll.ComponentAssignment{}, payroll.ErrAssignmentNotFound
	}
	_, opened, err := payroll.SupersedeAssignment(history, newAmount, asOf, time.Now().UTC())
	if err != nil {
		return payroll.ComponentAssignment{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payroll.ComponentAssignment{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if current.EffectiveFrom.Equal(asOf) {
		// Supersede exactly at the interval start replaces it outright.
		if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, current.ID); err != nil {
			return payroll.ComponentAssignment{}, fmt.Errorf("failed to replace assignment: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE assignments SET effective_to = ? WHERE id = ?`,
			asOf.String(), current.ID); err != nil {
			return payroll.ComponentAssignment{}, fmt.Errorf("failed to close assignment: %w", err)
		}
	}
	if err := s.insertAssignment(ctx, tx, opened); err != nil {
		return payroll.ComponentAssignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return payroll.ComponentAssignment{}, fmt.Errorf("failed to commit supersede: %w", err)
	}
	return opened, nil
}

func (s *Store) History(ctx context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID) ([]payroll.ComponentAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadHistory(ctx, employeeID, componentID)
}

func (s *Store) ComponentsForEmployee(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.ComponentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT component_id FROM assignments
		WHERE employee_id = ? ORDER BY component_id`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query employee components: %w", err)
	}
	defer rows.Close()

	var out []payroll.ComponentID
	for rows.Next() {
		var id payroll.ComponentID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertAssignment(ctx context.Context, db execer, a payroll.ComponentAssignment) error {
	var effectiveTo any
	if a.EffectiveTo != nil {
		effectiveTo = a.EffectiveTo.String()
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO assignments (id, employee_id, component_id, amount, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EmployeeID, a.ComponentID, a.Amount.Value.String(),
		a.EffectiveFrom.String(), effectiveTo, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func (s *Store) loadHistory(ctx context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID) ([]payroll.ComponentAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, component_id, amount, effective_from, effective_to, created_at
		FROM assignments
		WHERE employee_id = ? AND component_id = ?
		ORDER BY effective_from ASC`, employeeID, componentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []payroll.ComponentAssignment
	for rows.Next() {
		var (
			a           payroll.ComponentAssignment
			amount      string
			from        string
			to          sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.ComponentID, &amount, &from, &to, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.Amount = parseMoney(amount)
		a.EffectiveFrom, err = payroll.ParseDate(from)
		if err != nil {
			return nil, err
		}
		if to.Valid {
			d, err := payroll.ParseDate(to.String)
			if err != nil {
				return nil, err
			}
			a.EffectiveTo = &d
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// PERIOD STORE (payroll.PeriodStore interface)
// =============================================================================

func (s *Store) CreatePeriod(ctx context.Context, p payroll.PayrollPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO periods (id, range_start, range_end, pay_month, pay_year, status, locked_at, locked_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Range.Start.String(), p.Range.End.String(),
		p.PayMonth, p.PayYear, p.Status, nullTime(p.LockedAt), nullString(p.LockedBy))
	if err != nil {
		if isUniqueConstraintError(err) {
			return payroll.ErrDuplicatePeriod
		}
		return fmt.Errorf("failed to create period: %w", err)
	}
	return nil
}

func (s *Store) GetPeriod(ctx context.Context, id payroll.PeriodID) (payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPeriod(ctx, `WHERE id = ?`, id)
}

func (s *Store) PeriodForDate(ctx context.Context, d payroll.Date) (payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPeriod(ctx, `WHERE range_start <= ? AND range_end >= ?`, d.String(), d.String())
}

func (s *Store) queryPeriod(ctx context.Context, where string, args ...any) (payroll.PayrollPeriod, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, range_start, range_end, pay_month, pay_year, status, locked_at, locked_by
		FROM periods `+where, args...)

	p, err := scanPeriod(row)
	if err == sql.ErrNoRows {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
	}
	if err != nil {
		return payroll.PayrollPeriod{}, fmt.Errorf("failed to query period: %w", err)
	}
	return p, nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]payroll.PayrollPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, range_start, range_end, pay_month, pay_year, status, locked_at, locked_by
		FROM periods ORDER BY pay_year, pay_month`)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var out []payroll.PayrollPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (payroll.PayrollPeriod, error) {
	var (
		p          payroll.PayrollPeriod
		start, end string
		lockedAt   sql.NullString
		lockedBy   sql.NullString
	)
	err := row.Scan(&p.ID, &start, &end, &p.PayMonth, &p.PayYear, &p.Status, &lockedAt, &lockedBy)
	if err != nil {
		return p, err
	}
	if p.Range.Start, err = payroll.ParseDate(start); err != nil {
		return p, err
	}
	if p.Range.End, err = payroll.ParseDate(end); err != nil {
		return p, err
	}
	if lockedAt.Valid {
		t, _ := time.Parse(time.RFC3339, lockedAt.String)
		p.LockedAt = &t
	}
	p.LockedBy = lockedBy.String
	return p, nil
}

// TransitionPeriod applies from -> to as a compare-and-swap: the UPDATE
// names the expected status, and zero affected rows means another
// transition won.
func (s *Store) TransitionPeriod(ctx context.Context, id payroll.PeriodID, from, to payroll.PeriodStatus, lockedAt *time.Time, lockedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE periods SET status = ?, locked_at = ?, locked_by = ?
		WHERE id = ? AND status = ?`,
		to, nullTime(lockedAt), nullString(lockedBy), id, from)
	if err != nil {
		return fmt.Errorf("failed to transition period: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.queryPeriod(ctx, `WHERE id = ?`, id); err != nil {
			return err
		}
		return payroll.ErrConflictingTransition
	}
	return nil
}

func (s *Store) AppendPeriodAudit(ctx context.Context, e payroll.PeriodAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO period_audits (id, period_id, action, actor, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.PeriodID, e.Action, e.Actor, e.Reason, e.At.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append period audit: %w", err)
	}
	return nil
}

func (s *Store) PeriodAuditTrail(ctx context.Context, id payroll.PeriodID) ([]payroll.PeriodAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period_id, action, actor, reason, at
		FROM period_audits WHERE period_id = ? ORDER BY at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query period audits: %w", err)
	}
	defer rows.Close()

	var out []payroll.PeriodAudit
	for rows.Next() {
		var (
			e  payroll.PeriodAudit
			at string
		)
		if err := rows.Scan(&e.ID, &e.PeriodID, &e.Action, &e.Actor, &e.Reason, &at); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// RESULT STORE (payroll.ResultStore interface)
// =============================================================================

func (s *Store) SaveResult(ctx context.Context, r payroll.PayrollResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO results
		(period_id, employee_id, days_worked, fixed_amount, variable_amount, gross, deductions, net, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PeriodID, r.EmployeeID, r.DaysWorked.String(),
		r.FixedAmount.Value.String(), r.VariableAmount.Value.String(),
		r.Gross.Value.String(), r.Deductions.Value.String(), r.Net.Value.String(),
		r.GeneratedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

func (s *Store) GetResult(ctx context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) (payroll.PayrollResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT period_id, employee_id, days_worked, fixed_amount, variable_amount, gross, deductions, net, generated_at
		FROM results WHERE period_id = ? AND employee_id = ?`, periodID, employeeID)

	r, err := scanResult(row)
	if err == sql.ErrNoRows {
		return payroll.PayrollResult{}, payroll.ErrResultNotFound
	}
	if err != nil {
		return payroll.PayrollResult{}, fmt.Errorf("failed to query result: %w", err)
	}
	return r, nil
}

func (s *Store) ResultsForPeriod(ctx context.Context, periodID payroll.PeriodID) ([]payroll.PayrollResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT period_id, employee_id, days_worked, fixed_amount, variable_amount, gross, deductions, net, generated_at
		FROM results WHERE period_id = ? ORDER BY employee_id`, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []payroll.PayrollResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanResult(row rowScanner) (payroll.PayrollResult, error) {
	var (
		r           payroll.PayrollResult
		daysWorked  string
		fixed       string
		variable    string
		gross       string
		deductions  string
		net         string
		generatedAt string
	)
	err := row.Scan(&r.PeriodID, &r.EmployeeID, &daysWorked, &fixed, &variable, &gross, &deductions, &net, &generatedAt)
	if err != nil {
		return r, err
	}
	r.DaysWorked, _ = decimal.NewFromString(daysWorked)
	r.FixedAmount = parseMoney(fixed)
	r.VariableAmount = parseMoney(variable)
	r.Gross = parseMoney(gross)
	r.Deductions = parseMoney(deductions)
	r.Net = parseMoney(net)
	r.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
	return r, nil
}

// =============================================================================
// LOAN STORE (payroll.LoanStore interface)
// =============================================================================

func (s *Store) SaveLoan(ctx context.Context, l payroll.EmployeeLoan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO loans
		(id, employee_id, total_amount, installment_amount, remaining_balance, start_period_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.EmployeeID, l.TotalAmount.Value.String(), l.InstallmentAmount.Value.String(),
		l.RemainingBalance.Value.String(), l.StartPeriodID, l.Status)
	if err != nil {
		return fmt.Errorf("failed to save loan: %w", err)
	}
	return nil
}

func (s *Store) GetLoan(ctx context.Context, id payroll.LoanID) (payroll.EmployeeLoan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, total_amount, installment_amount, remaining_balance, start_period_id, status
		FROM loans WHERE id = ?`, id)

	l, err := scanLoan(row)
	if err == sql.ErrNoRows {
		return payroll.EmployeeLoan{}, payroll.ErrLoanNotFound
	}
	if err != nil {
		return payroll.EmployeeLoan{}, fmt.Errorf("failed to query loan: %w", err)
	}
	return l, nil
}

func (s *Store) LoansForEmployee(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.EmployeeLoan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, total_amount, installment_amount, remaining_balance, start_period_id, status
		FROM loans WHERE employee_id = ? ORDER BY id`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var out []payroll.EmployeeLoan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLoan(row rowScanner) (payroll.EmployeeLoan, error) {
	var (
		l           payroll.EmployeeLoan
		total       string
		installment string
		remaining   string
	)
	err := row.Scan(&l.ID, &l.EmployeeID, &total, &installment, &remaining, &l.StartPeriodID, &l.Status)
	if err != nil {
		return l, err
	}
	l.TotalAmount = parseMoney(total)
	l.InstallmentAmount = parseMoney(installment)
	l.RemainingBalance = parseMoney(remaining)
	return l, nil
}

func (s *Store) UpdateLoanBalance(ctx context.Context, id payroll.LoanID, remaining payroll.Money, status payroll.LoanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET remaining_balance = ?, status = ? WHERE id = ?`,
		remaining.Value.String(), status, id)
	if err != nil {
		return fmt.Errorf("failed to update loan balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return payroll.ErrLoanNotFound
	}
	return nil
}

func (s *Store) RecordDeduction(ctx context.Context, d payroll.AppliedDeduction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loan_deductions (id, loan_id, period_id, amount, applied_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.LoanID, d.PeriodID, d.Amount.Value.String(), d.AppliedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return payroll.ErrDeductionApplied
		}
		return fmt.Errorf("failed to record deduction: %w", err)
	}
	return nil
}

func (s *Store) Deduction(ctx context.Context, loanID payroll.LoanID, periodID payroll.PeriodID) (payroll.AppliedDeduction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		d         payroll.AppliedDeduction
		amount    string
		appliedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, loan_id, period_id, amount, applied_at
		FROM loan_deductions WHERE loan_id = ? AND period_id = ?`, loanID, periodID).
		Scan(&d.ID, &d.LoanID, &d.PeriodID, &amount, &appliedAt)
	if err == sql.ErrNoRows {
		return payroll.AppliedDeduction{}, false, nil
	}
	if err != nil {
		return payroll.AppliedDeduction{}, false, fmt.Errorf("failed to query deduction: %w", err)
	}
	d.Amount = parseMoney(amount)
	d.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
	return d, true, nil
}

func (s *Store) DeductionsForPeriod(ctx context.Context, periodID payroll.PeriodID) ([]payroll.AppliedDeduction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, loan_id, period_id, amount, applied_at
		FROM loan_deductions WHERE period_id = ? ORDER BY loan_id`, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deductions: %w", err)
	}
	defer rows.Close()

	var out []payroll.AppliedDeduction
	for rows.Next() {
		var (
			d         payroll.AppliedDeduction
			amount    string
			appliedAt string
		)
		if err := rows.Scan(&d.ID, &d.LoanID, &d.PeriodID, &amount, &appliedAt); err != nil {
			return nil, err
		}
		d.Amount = parseMoney(amount)
		d.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// =============================================================================
// SETTLEMENT STORE (payroll.SettlementStore interface)
// =============================================================================

func (s *Store) SaveSettlement(ctx context.Context, st payroll.FinalSettlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settlements
		(id, employee_id, period_id, termination_date, gratuity_amount, leave_encashment_amount,
		 notice_pay_amount, other_earnings, other_deductions, total_payable, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.EmployeeID, st.PeriodID, st.TerminationDate.String(),
		st.GratuityAmount.Value.String(), st.LeaveEncashmentAmount.Value.String(),
		st.NoticePayAmount.Value.String(), st.OtherEarnings.Value.String(),
		st.OtherDeductions.Value.String(), st.TotalPayable.Value.String(),
		st.Status, st.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save settlement: %w", err)
	}
	return nil
}

func (s *Store) GetSettlement(ctx context.Context, id payroll.SettlementID) (payroll.FinalSettlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, settlementSelect+` WHERE id = ?`, id)
	st, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return payroll.FinalSettlement{}, payroll.ErrSettlementNotFound
	}
	if err != nil {
		return payroll.FinalSettlement{}, fmt.Errorf("failed to query settlement: %w", err)
	}
	return st, nil
}

func (s *Store) SettlementsForEmployee(ctx context.Context, employeeID payroll.EmployeeID) ([]payroll.FinalSettlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.querySettlements(ctx, settlementSelect+` WHERE employee_id = ? ORDER BY created_at`, employeeID)
}

func (s *Store) PaidSettlementsForPeriod(ctx context.Context, periodID payroll.PeriodID) ([]payroll.FinalSettlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.querySettlements(ctx, settlementSelect+` WHERE period_id = ? AND status = ? ORDER BY id`,
		periodID, payroll.SettlementPaid)
}

func (s *Store) TransitionSettlement(ctx context.Context, id payroll.SettlementID, from, to payroll.SettlementStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE settlements SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to transition settlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlements WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return payroll.ErrSettlementNotFound
		}
		return payroll.ErrConflictingTransition
	}
	return nil
}

const settlementSelect = `
	SELECT id, employee_id, period_id, termination_date, gratuity_amount, leave_encashment_amount,
	       notice_pay_amount, other_earnings, other_deductions, total_payable, status, created_at
	FROM settlements`

func (s *Store) querySettlements(ctx context.Context, query string, args ...any) ([]payroll.FinalSettlement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var out []payroll.FinalSettlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanSettlement(row rowScanner) (payroll.FinalSettlement, error) {
	var (
		st              payroll.FinalSettlement
		terminationDate string
		gratuity        string
		encashment      string
		notice          string
		otherEarnings   string
		otherDeductions string
		total           string
		createdAt       string
	)
	err := row.Scan(&st.ID, &st.EmployeeID, &st.PeriodID, &terminationDate,
		&gratuity, &encashment, &notice, &otherEarnings, &otherDeductions, &total,
		&st.Status, &createdAt)
	if err != nil {
		return st, err
	}
	if st.TerminationDate, err = payroll.ParseDate(terminationDate); err != nil {
		return st, err
	}
	st.GratuityAmount = parseMoney(gratuity)
	st.LeaveEncashmentAmount = parseMoney(encashment)
	st.NoticePayAmount = parseMoney(notice)
	st.OtherEarnings = parseMoney(otherEarnings)
	st.OtherDeductions = parseMoney(otherDeductions)
	st.TotalPayable = parseMoney(total)
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return st, nil
}

// =============================================================================
// ATTENDANCE SUMMARIES (payroll.AttendanceSource / AttendanceSink)
// =============================================================================

func (s *Store) PutSummary(ctx context.Context, sum payroll.AttendanceSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overtimeJSON, _ := json.Marshal(sum.OvertimeMinutes)
	unpaidJSON, _ := json.Marshal(sum.UnpaidLeave)

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO summaries
		(period_id, employee_id, worked_minutes, scheduled_minutes, overtime_json, unpaid_leave_json, absence_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sum.PeriodID, sum.EmployeeID, sum.WorkedMinutes, sum.ScheduledMinutes,
		string(overtimeJSON), string(unpaidJSON), sum.AbsenceDays.String())
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

func (s *Store) PeriodSummary(ctx context.Context, employeeID payroll.EmployeeID, periodID payroll.PeriodID) (payroll.AttendanceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sum          payroll.AttendanceSummary
		overtimeJSON string
		unpaidJSON   string
		absenceDays  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT period_id, employee_id, worked_minutes, scheduled_minutes, overtime_json, unpaid_leave_json, absence_days
		FROM summaries WHERE period_id = ? AND employee_id = ?`, periodID, employeeID).
		Scan(&sum.PeriodID, &sum.EmployeeID, &sum.WorkedMinutes, &sum.ScheduledMinutes,
			&overtimeJSON, &unpaidJSON, &absenceDays)
	if err == sql.ErrNoRows {
		return payroll.AttendanceSummary{}, payroll.ErrSummaryNotFound
	}
	if err != nil {
		return payroll.AttendanceSummary{}, fmt.Errorf("failed to query summary: %w", err)
	}
	json.Unmarshal([]byte(overtimeJSON), &sum.OvertimeMinutes)
	json.Unmarshal([]byte(unpaidJSON), &sum.UnpaidLeave)
	sum.AbsenceDays, _ = decimal.NewFromString(absenceDays)
	return sum, nil
}

// =============================================================================
// EMPLOYEE DIRECTORY & LEAVE TYPE CATALOG
// =============================================================================

func (s *Store) SaveEmployee(ctx context.Context, e payroll.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO employees
		(id, code, name, iban, mohre_person_id, labor_card_number, joining_date, wps_eligible, basic_component)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Code, e.Name, e.IBAN, e.MOHREPersonID, e.LaborCardNumber,
		e.JoiningDate.String(), e.WPSEligible, e.BasicComponent)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) Employee(ctx context.Context, id payroll.EmployeeID) (payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, name, iban, mohre_person_id, labor_card_number, joining_date, wps_eligible, basic_component
		FROM employees WHERE id = ?`, id)

	e, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return payroll.Employee{}, payroll.ErrEmployeeNotFound
	}
	if err != nil {
		return payroll.Employee{}, fmt.Errorf("failed to query employee: %w", err)
	}
	return e, nil
}

func (s *Store) Employees(ctx context.Context) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, name, iban, mohre_person_id, labor_card_number, joining_date, wps_eligible, basic_component
		FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []payroll.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row rowScanner) (payroll.Employee, error) {
	var (
		e       payroll.Employee
		iban    sql.NullString
		mohre   sql.NullString
		labor   sql.NullString
		joining string
	)
	err := row.Scan(&e.ID, &e.Code, &e.Name, &iban, &mohre, &labor, &joining, &e.WPSEligible, &e.BasicComponent)
	if err != nil {
		return e, err
	}
	e.IBAN = iban.String
	e.MOHREPersonID = mohre.String
	e.LaborCardNumber = labor.String
	if e.JoiningDate, err = payroll.ParseDate(joining); err != nil {
		return e, err
	}
	return e, nil
}

func (s *Store) SaveLeaveType(ctx context.Context, lt payroll.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO leave_types (id, name, paid, payroll_deductible)
		VALUES (?, ?, ?, ?)`,
		lt.ID, lt.Name, lt.Paid, lt.PayrollDeductible)
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func (s *Store) LeaveType(ctx context.Context, id payroll.LeaveTypeID) (payroll.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lt payroll.LeaveType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, paid, payroll_deductible FROM leave_types WHERE id = ?`, id).
		Scan(&lt.ID, &lt.Name, &lt.Paid, &lt.PayrollDeductible)
	if err == sql.ErrNoRows {
		return payroll.LeaveType{}, payroll.ErrComponentNotFound
	}
	if err != nil {
		return payroll.LeaveType{}, fmt.Errorf("failed to query leave type: %w", err)
	}
	return lt, nil
}

// =============================================================================
// APPROVAL JOURNAL (approval.Journal interface)
// =============================================================================

// Append writes one journal entry. The table is insert-only; the sequence
// number comes from the coordinator.
func (s *Store) Append(ctx context.Context, e approval.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var requestJSON any
	if e.Kind == approval.EntrySubmit {
		b, err := json.Marshal(e.Request)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		requestJSON = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_journal (seq, kind, request_json, request_id, outcome, actor, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Seq, e.Kind, requestJSON, nullString(e.RequestID),
		nullString(string(e.Outcome)), nullString(e.Actor), e.At.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Replay yields journal entries in sequence order.
func (s *Store) Replay(ctx context.Context, fn func(approval.Entry) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, request_json, request_id, outcome, actor, at
		FROM approval_journal ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e           approval.Entry
			requestJSON sql.NullString
			requestID   sql.NullString
			outcome     sql.NullString
			actor       sql.NullString
			at          string
		)
		if err := rows.Scan(&e.Seq, &e.Kind, &requestJSON, &requestID, &outcome, &actor, &at); err != nil {
			return fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if requestJSON.Valid && requestJSON.String != "" {
			if err := json.Unmarshal([]byte(requestJSON.String), &e.Request); err != nil {
				return fmt.Errorf("failed to unmarshal request: %w", err)
			}
		}
		e.RequestID = requestID.String
		e.Outcome = approval.Status(outcome.String)
		e.Actor = actor.String
		e.At, _ = time.Parse(time.RFC3339, at)
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMoney(s string) payroll.Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return payroll.ZeroMoney()
	}
	return payroll.Money{Value: d}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
