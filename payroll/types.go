/*
Package payroll provides the core payroll computation engine.

PURPOSE:
  This package contains the types and algorithms that turn effective-dated
  compensation records and locked attendance summaries into period payroll
  results: the effective-dated component store, the period lock state
  machine, the loan amortization tracker, and the calculation engine itself.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal monetary amount (always AED in this system)
  - SalaryComponent: Immutable catalog entry (earning/deduction, WPS class)
  - ComponentAssignment: An effective-dated amount for (employee, component)
  - AttendanceSummary: Read-only, already-approved attendance input
  - PayrollResult: The derived output for one (period, employee)
  - EmployeeLoan: Amortized payroll deduction with a remaining balance

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal everywhere money flows - no float64
  2. Immutability: Assignments are superseded, never overwritten
  3. Type Safety: Strong typing for IDs prevents mixing employees/periods
  4. Determinism: Identical inputs reproduce identical financial output

SEE ALSO:
  - components.go: Effective-dated interval resolution
  - engine.go: Period calculation
  - period.go: DRAFT -> APPROVED -> LOCKED lifecycle
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal monetary amount
// =============================================================================

// Money is a monetary amount. All payroll arithmetic goes through this type;
// float64 never touches a financial figure.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value int64) Money            { return Money{Value: decimal.NewFromInt(value)} }
func NewMoneyFromFloat(value float64) Money { return Money{Value: decimal.NewFromFloat(value)} }

// MustParseMoney parses a decimal string, returning zero on failure.
// Intended for configuration defaults and tests, not user input.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func (m Money) Add(o Money) Money             { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money             { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Mul(s decimal.Decimal) Money   { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money   { return Money{Value: m.Value.Div(s)} }
func (m Money) Neg() Money                    { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool                  { return m.Value.IsZero() }
func (m Money) IsNegative() bool              { return m.Value.IsNegative() }
func (m Money) IsPositive() bool              { return m.Value.IsPositive() }
func (m Money) Equal(o Money) bool            { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool      { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool         { return m.Value.LessThan(o.Value) }
func (m Money) Round2() Money                 { return Money{Value: m.Value.Round(2)} }

func (m Money) Min(o Money) Money {
	if m.LessThan(o) {
		return m
	}
	return o
}

// String renders with two decimal places, the bank-file convention.
func (m Money) String() string { return m.Value.StringFixed(2) }

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type ComponentID string
type PeriodID string
type LoanID string
type SettlementID string
type LeaveTypeID string

// =============================================================================
// SALARY COMPONENT CATALOG
// =============================================================================

type ComponentKind string

const (
	KindEarning   ComponentKind = "EARNING"
	KindDeduction ComponentKind = "DEDUCTION"
)

type CalculationMethod string

const (
	CalcFixed   CalculationMethod = "FIXED"
	CalcDerived CalculationMethod = "DERIVED"
)

// WPSClass classifies a component for bank-file reporting.
type WPSClass string

const (
	WPSFixed         WPSClass = "FIXED"
	WPSVariable      WPSClass = "VARIABLE"
	WPSNotApplicable WPSClass = "NOT_APPLICABLE"
)

// SalaryComponent is an immutable catalog entry. Amounts never live here;
// they live in ComponentAssignment intervals.
type SalaryComponent struct {
	ID      ComponentID
	Name    string
	Kind    ComponentKind
	Method  CalculationMethod
	Class   WPSClass
	Taxable bool
}

// ComponentAssignment is one effective-dated amount for an
// (employee, component) pair. The active interval is [EffectiveFrom,
// EffectiveTo); a nil EffectiveTo means open-ended.
//
// INVARIANT: for a fixed (employee, component) pair, intervals never
// overlap and at most one is active on any calendar date. Assignments are
// created and closed, never mutated in place.
type ComponentAssignment struct {
	ID            string
	EmployeeID    EmployeeID
	ComponentID   ComponentID
	Amount        Money
	EffectiveFrom Date
	EffectiveTo   *Date
	CreatedAt     time.Time
}

// ActiveOn reports whether the assignment covers the given date.
// The interval is half-open: from inclusive, to exclusive.
func (a ComponentAssignment) ActiveOn(d Date) bool {
	if d.Before(a.EffectiveFrom) {
		return false
	}
	if a.EffectiveTo != nil && !d.Before(*a.EffectiveTo) {
		return false
	}
	return true
}

// =============================================================================
// ATTENDANCE SUMMARY - Read-only input from the attendance pipeline
// =============================================================================

// OvertimeCategory is the closed day-type enumeration shared by attendance
// summaries and the overtime rate table. Free-form day-type strings from
// upstream systems must be mapped to one of these before entering the engine.
type OvertimeCategory string

const (
	OvertimeWorkday       OvertimeCategory = "WORKDAY"
	OvertimeWeekend       OvertimeCategory = "WEEKEND"
	OvertimePublicHoliday OvertimeCategory = "PUBLIC_HOLIDAY"
)

// OvertimeCategories lists every valid category, in rate-table order.
var OvertimeCategories = []OvertimeCategory{OvertimeWorkday, OvertimeWeekend, OvertimePublicHoliday}

// UnpaidLeaveEntry records unpaid leave days taken under a specific leave
// type. Whether they deduct pay depends on the leave type catalog.
type UnpaidLeaveEntry struct {
	LeaveTypeID LeaveTypeID
	Days        decimal.Decimal
}

// AttendanceSummary is the normalized, already-approved attendance input for
// one employee and one payroll period. The engine treats it as read-only.
type AttendanceSummary struct {
	EmployeeID       EmployeeID
	PeriodID         PeriodID
	WorkedMinutes    int
	ScheduledMinutes int
	OvertimeMinutes  map[OvertimeCategory]int
	UnpaidLeave      []UnpaidLeaveEntry
	AbsenceDays      decimal.Decimal
}

// =============================================================================
// PAYROLL RESULT - Derived output, owned by the calculation engine
// =============================================================================

// PayrollResult is the computed payroll for one (period, employee).
// Idempotently regenerable while the period is not LOCKED; frozen after.
type PayrollResult struct {
	PeriodID   PeriodID
	EmployeeID EmployeeID

	DaysWorked     decimal.Decimal
	FixedAmount    Money
	VariableAmount Money
	Gross          Money
	Deductions     Money
	Net            Money

	GeneratedAt time.Time
}

// FinanciallyEqual reports whether two results carry the same money figures.
// GeneratedAt is a stamp, not an input, so it is excluded.
func (r PayrollResult) FinanciallyEqual(o PayrollResult) bool {
	return r.PeriodID == o.PeriodID &&
		r.EmployeeID == o.EmployeeID &&
		r.DaysWorked.Equal(o.DaysWorked) &&
		r.FixedAmount.Equal(o.FixedAmount) &&
		r.VariableAmount.Equal(o.VariableAmount) &&
		r.Gross.Equal(o.Gross) &&
		r.Deductions.Equal(o.Deductions) &&
		r.Net.Equal(o.Net)
}

// =============================================================================
// EMPLOYEE LOAN
// =============================================================================

type LoanStatus string

const (
	LoanActive LoanStatus = "ACTIVE"
	LoanClosed LoanStatus = "CLOSED"
)

// EmployeeLoan is an amortized advance recovered through payroll.
// RemainingBalance decreases monotonically and never goes negative.
type EmployeeLoan struct {
	ID                LoanID
	EmployeeID        EmployeeID
	TotalAmount       Money
	InstallmentAmount Money
	RemainingBalance  Money
	StartPeriodID     PeriodID
	Status            LoanStatus
}

// AppliedDeduction records that a loan installment was taken in a period.
// The (LoanID, PeriodID) pair is unique; this is what makes loan processing
// idempotent under retry.
type AppliedDeduction struct {
	ID        string
	LoanID    LoanID
	PeriodID  PeriodID
	Amount    Money
	AppliedAt time.Time
}

// =============================================================================
// EXTERNAL MASTER DATA - Consumed read-only at the engine boundary
// =============================================================================

// Employee is the engine-facing subset of the employee master record.
type Employee struct {
	ID              EmployeeID
	Code            string
	Name            string
	IBAN            string
	MOHREPersonID   string
	LaborCardNumber string
	JoiningDate     Date
	WPSEligible     bool
	BasicComponent  ComponentID
}

// PersonIdentifier returns the labour/person identifier used in the bank
// file: the MOHRE person ID when present, otherwise the labor card number.
func (e Employee) PersonIdentifier() string {
	if e.MOHREPersonID != "" {
		return e.MOHREPersonID
	}
	return e.LaborCardNumber
}

// LeaveType is a catalog entry from the leave module. Only the payroll-facing
// flags are consumed here.
type LeaveType struct {
	ID                LeaveTypeID
	Name              string
	Paid              bool
	PayrollDeductible bool
}
