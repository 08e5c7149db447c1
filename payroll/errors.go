/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy has three classes, and callers react differently to each:

  1. Validation errors - bad input, surfaced before any write
     (overlapping intervals, missing compliance fields)
  2. State errors - business-process violations, never silently retried
     (period locked, request already decided, conflicting transition)
  3. Computation errors - blocking failures requiring upstream correction
     (negative net pay)

  No error in this engine is silently swallowed. Idempotent operations
  (recomputation, loan application, gratuity calculation) may be retried by
  the caller after the reported condition is resolved; LOCKED-period retries
  fail deterministically.

USAGE:
  Structured errors wrap sentinels, so both work:

    if errors.Is(err, payroll.ErrPeriodLocked) { ... }

    var overlap *payroll.OverlapError
    if errors.As(err, &overlap) { ... overlap.Existing ... }
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOverlap is returned when a new component assignment intersects an
	// existing interval for the same (employee, component) pair.
	ErrOverlap = errors.New("assignment interval overlaps existing interval")

	// ErrAssignmentNotFound is returned when no assignment covers the
	// queried date.
	ErrAssignmentNotFound = errors.New("no assignment active for date")

	// ErrPeriodLocked is returned when a mutation targets a period whose
	// lock state forbids it.
	ErrPeriodLocked = errors.New("payroll period is locked")

	// ErrPeriodNotFound is returned when a referenced period doesn't exist.
	ErrPeriodNotFound = errors.New("payroll period not found")

	// ErrDuplicatePeriod is returned when a second period is created for the
	// same (payMonth, payYear).
	ErrDuplicatePeriod = errors.New("period already exists for pay month")

	// ErrConflictingTransition is returned to the loser of two concurrent
	// state transitions on the same period.
	ErrConflictingTransition = errors.New("conflicting period transition")

	// ErrSettlementConflict is returned when reopening a period that has a
	// PAID final settlement tied to it. Requires manual resolution.
	ErrSettlementConflict = errors.New("period has paid settlement")

	// ErrNegativeNetPay is returned when deductions exceed gross. The engine
	// never clamps; this surfaces a data-entry problem.
	ErrNegativeNetPay = errors.New("net pay would be negative")

	// ErrDeductionApplied is returned by stores when a loan deduction for
	// the same (loan, period) pair already exists.
	ErrDeductionApplied = errors.New("loan deduction already applied for period")

	// ErrAlreadyDecided is returned when deciding an approval request that
	// is no longer PENDING.
	ErrAlreadyDecided = errors.New("approval request already decided")

	// ErrRequestNotFound is returned when a referenced approval request
	// doesn't exist.
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrInvalidInput is the sentinel behind ValidationError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIncompleteComplianceData is returned when WPS-mandatory fields are
	// missing. The export is all-or-nothing; no partial file is emitted.
	ErrIncompleteComplianceData = errors.New("incomplete wage-protection compliance data")

	// ErrWPSNotApplicable is returned when the establishment is not subject
	// to wage-protection reporting (free-zone entities outside the scheme).
	ErrWPSNotApplicable = errors.New("wage protection reporting not applicable to this establishment")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrComponentNotFound is returned when a referenced salary component or
	// leave type doesn't exist in the catalog.
	ErrComponentNotFound = errors.New("catalog entry not found")

	// ErrSettlementNotFound is returned when a referenced settlement doesn't exist.
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrLoanNotFound is returned when a referenced loan doesn't exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrResultNotFound is returned when no payroll result exists for the
	// queried (period, employee).
	ErrResultNotFound = errors.New("payroll result not found")

	// ErrSummaryNotFound is returned when the attendance feed has no summary
	// for the queried (employee, period).
	ErrSummaryNotFound = errors.New("attendance summary not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a single rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// OverlapError reports the existing interval that blocked an assignment.
type OverlapError struct {
	EmployeeID  EmployeeID
	ComponentID ComponentID
	From        Date
	Existing    ComponentAssignment
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("assignment for %s/%s from %s overlaps interval starting %s",
		e.EmployeeID, e.ComponentID, e.From, e.Existing.EffectiveFrom)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// PeriodLockedError reports which period blocked a mutation and what was
// attempted.
type PeriodLockedError struct {
	PeriodID  PeriodID
	Status    PeriodStatus
	Operation string
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("period %s is %s: %s rejected", e.PeriodID, e.Status, e.Operation)
}

func (e *PeriodLockedError) Unwrap() error { return ErrPeriodLocked }

// NegativeNetPayError carries the figures that produced a negative net.
type NegativeNetPayError struct {
	PeriodID   PeriodID
	EmployeeID EmployeeID
	Gross      Money
	Deductions Money
}

func (e *NegativeNetPayError) Error() string {
	return fmt.Sprintf("negative net pay for %s in %s: gross %s, deductions %s",
		e.EmployeeID, e.PeriodID, e.Gross, e.Deductions)
}

func (e *NegativeNetPayError) Unwrap() error { return ErrNegativeNetPay }

// SettlementConflictError reports the PAID settlements blocking a reopen.
type SettlementConflictError struct {
	PeriodID    PeriodID
	Settlements []SettlementID
}

func (e *SettlementConflictError) Error() string {
	return fmt.Sprintf("cannot reopen period %s: %d paid settlement(s) tied to it",
		e.PeriodID, len(e.Settlements))
}

func (e *SettlementConflictError) Unwrap() error { return ErrSettlementConflict }

// IncompleteComplianceDataError lists every missing WPS-mandatory field.
// Validation runs to completion before the first row is rendered, so the
// caller sees the full repair list at once.
type IncompleteComplianceDataError struct {
	Missing []string
}

func (e *IncompleteComplianceDataError) Error() string {
	return "incomplete compliance data: " + strings.Join(e.Missing, "; ")
}

func (e *IncompleteComplianceDataError) Unwrap() error { return ErrIncompleteComplianceData }

// =============================================================================
// ERROR CLASS HELPERS - Drive HTTP status mapping and caller policy
// =============================================================================

// IsValidation reports whether the error is a validation failure: bad input
// rejected before any write.
func IsValidation(err error) bool {
	return errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrIncompleteComplianceData) ||
		errors.Is(err, ErrDuplicatePeriod) ||
		errors.Is(err, ErrInvalidInput)
}

// IsState reports whether the error is a business-process state violation.
// These are deterministic; retrying without changing state fails again.
func IsState(err error) bool {
	return errors.Is(err, ErrPeriodLocked) ||
		errors.Is(err, ErrAlreadyDecided) ||
		errors.Is(err, ErrConflictingTransition) ||
		errors.Is(err, ErrSettlementConflict) ||
		errors.Is(err, ErrWPSNotApplicable)
}

// IsComputation reports whether the error is a computation failure that
// requires manual correction of upstream data.
func IsComputation(err error) bool {
	return errors.Is(err, ErrNegativeNetPay)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrResultNotFound) ||
		errors.Is(err, ErrComponentNotFound) ||
		errors.Is(err, ErrSettlementNotFound) ||
		errors.Is(err, ErrSummaryNotFound) ||
		errors.Is(err, ErrRequestNotFound)
}
