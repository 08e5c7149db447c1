/*
store.go - Persistence interfaces for the payroll engine

PURPOSE:
  Defines the boundary between the engine and its storage. Implementations
  exist in payroll/store (in-memory, for tests and dev) and store/sqlite
  (production). Read-only collaborator feeds (attendance, employee master,
  leave-type catalog) are also modeled here as narrow interfaces so the
  engine never depends on the systems that produce them.

OWNERSHIP:
  - The calculation engine owns PayrollResult rows.
  - The period manager owns PayrollPeriod.Status.
  - The loan tracker owns EmployeeLoan.RemainingBalance.
  No two components write the same field.
*/
package payroll

import (
	"context"
	"time"
)

// =============================================================================
// COMPONENT STORE - Effective-dated assignment persistence
// =============================================================================

// ComponentStore persists effective-dated component assignments. All
// implementations enforce the no-overlap invariant through the interval
// algebra in components.go.
type ComponentStore interface {
	// Assign adds a new interval. Fails with OverlapError on intersection.
	Assign(ctx context.Context, a ComponentAssignment) error

	// Resolve returns the unique assignment active on asOf, or
	// ErrAssignmentNotFound.
	Resolve(ctx context.Context, employeeID EmployeeID, componentID ComponentID, asOf Date) (ComponentAssignment, error)

	// Supersede closes the interval active at asOf and opens a new one
	// starting the same date, atomically. Returns the opened assignment.
	Supersede(ctx context.Context, employeeID EmployeeID, componentID ComponentID, newAmount Money, asOf Date) (ComponentAssignment, error)

	// History returns all intervals for the pair, ordered by EffectiveFrom.
	History(ctx context.Context, employeeID EmployeeID, componentID ComponentID) ([]ComponentAssignment, error)

	// ComponentsForEmployee returns the distinct component ids that have any
	// assignment history for the employee.
	ComponentsForEmployee(ctx context.Context, employeeID EmployeeID) ([]ComponentID, error)
}

// ComponentCatalog is the immutable salary component master.
type ComponentCatalog interface {
	Component(ctx context.Context, id ComponentID) (SalaryComponent, error)
	Components(ctx context.Context) ([]SalaryComponent, error)
}

// =============================================================================
// PERIOD STORE
// =============================================================================

// PeriodAudit records an administrative period action (lock, reopen).
type PeriodAudit struct {
	ID       string
	PeriodID PeriodID
	Action   string
	Actor    string
	Reason   string
	At       time.Time
}

// PeriodStore persists payroll periods and their audit trail. The status
// transition is a compare-and-swap: the update names the expected current
// status and fails with ErrConflictingTransition if it no longer holds.
type PeriodStore interface {
	CreatePeriod(ctx context.Context, p PayrollPeriod) error
	GetPeriod(ctx context.Context, id PeriodID) (PayrollPeriod, error)
	PeriodForDate(ctx context.Context, d Date) (PayrollPeriod, error)
	ListPeriods(ctx context.Context) ([]PayrollPeriod, error)

	// TransitionPeriod applies from -> to atomically.
	TransitionPeriod(ctx context.Context, id PeriodID, from, to PeriodStatus, lockedAt *time.Time, lockedBy string) error

	AppendPeriodAudit(ctx context.Context, e PeriodAudit) error
	PeriodAuditTrail(ctx context.Context, id PeriodID) ([]PeriodAudit, error)
}

// =============================================================================
// RESULT STORE - Owned by the calculation engine
// =============================================================================

type ResultStore interface {
	// SaveResult writes or overwrites the result for (period, employee).
	SaveResult(ctx context.Context, r PayrollResult) error
	GetResult(ctx context.Context, periodID PeriodID, employeeID EmployeeID) (PayrollResult, error)
	ResultsForPeriod(ctx context.Context, periodID PeriodID) ([]PayrollResult, error)
}

// =============================================================================
// LOAN STORE
// =============================================================================

type LoanStore interface {
	SaveLoan(ctx context.Context, l EmployeeLoan) error
	GetLoan(ctx context.Context, id LoanID) (EmployeeLoan, error)
	LoansForEmployee(ctx context.Context, employeeID EmployeeID) ([]EmployeeLoan, error)

	// UpdateLoanBalance sets the remaining balance and status. Only the loan
	// tracker calls this.
	UpdateLoanBalance(ctx context.Context, id LoanID, remaining Money, status LoanStatus) error

	// RecordDeduction appends an applied deduction. Fails with
	// ErrDeductionApplied if one exists for the same (loan, period).
	RecordDeduction(ctx context.Context, d AppliedDeduction) error
	Deduction(ctx context.Context, loanID LoanID, periodID PeriodID) (AppliedDeduction, bool, error)
	DeductionsForPeriod(ctx context.Context, periodID PeriodID) ([]AppliedDeduction, error)
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

type SettlementStatus string

const (
	SettlementDraft    SettlementStatus = "DRAFT"
	SettlementApproved SettlementStatus = "APPROVED"
	SettlementPaid     SettlementStatus = "PAID"
)

// FinalSettlement is the termination settlement record. Computed by the
// settlement package; status transitions are an external workflow action.
type FinalSettlement struct {
	ID                    SettlementID
	EmployeeID            EmployeeID
	PeriodID              PeriodID
	TerminationDate       Date
	GratuityAmount        Money
	LeaveEncashmentAmount Money
	NoticePayAmount       Money
	OtherEarnings         Money
	OtherDeductions       Money
	TotalPayable          Money
	Status                SettlementStatus
	CreatedAt             time.Time
}

type SettlementStore interface {
	SaveSettlement(ctx context.Context, s FinalSettlement) error
	GetSettlement(ctx context.Context, id SettlementID) (FinalSettlement, error)
	SettlementsForEmployee(ctx context.Context, employeeID EmployeeID) ([]FinalSettlement, error)

	// TransitionSettlement applies from -> to, compare-and-swap like periods.
	TransitionSettlement(ctx context.Context, id SettlementID, from, to SettlementStatus) error

	// PaidSettlementsForPeriod returns settlements in PAID status tied to
	// the period. The period manager consults this before a reopen.
	PaidSettlementsForPeriod(ctx context.Context, periodID PeriodID) ([]FinalSettlement, error)
}

// =============================================================================
// READ-ONLY COLLABORATOR FEEDS
// =============================================================================

// AttendanceSource supplies normalized, already-approved period summaries.
// The engine only reads; writes happen upstream through the feed.
type AttendanceSource interface {
	PeriodSummary(ctx context.Context, employeeID EmployeeID, periodID PeriodID) (AttendanceSummary, error)
}

// AttendanceSink accepts regenerated summaries from the attendance pipeline.
// Implemented by the same stores that implement AttendanceSource; the
// AttendanceFeed wrapper gates writes on period lock state.
type AttendanceSink interface {
	PutSummary(ctx context.Context, s AttendanceSummary) error
}

// EmployeeDirectory is the engine-facing view of the employee master.
type EmployeeDirectory interface {
	Employee(ctx context.Context, id EmployeeID) (Employee, error)
	Employees(ctx context.Context) ([]Employee, error)
}

// LeaveTypeCatalog is the engine-facing view of the leave-type master.
type LeaveTypeCatalog interface {
	LeaveType(ctx context.Context, id LeaveTypeID) (LeaveType, error)
}
