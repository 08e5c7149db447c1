/*
loan.go - Loan amortization tracker

PURPOSE:
  Recovers employee advances through payroll, one installment per period:

      deduction = min(installmentAmount, remainingBalance)

  The remaining balance decreases monotonically and never goes negative.
  When it reaches zero the loan moves to CLOSED and stops deducting.
  Periods that precede the loan's start period deduct nothing, so reopening
  and recalculating an old period never pulls a later loan into it.

IDEMPOTENCY:
  Every applied deduction is keyed on (loanID, periodID). Re-processing a
  period returns the already-recorded amounts instead of deducting twice,
  which is what lets the calculation engine recompute a result any number of
  times before lock and land on the same figures.
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoanTracker owns EmployeeLoan.RemainingBalance. Nothing else writes it.
type LoanTracker struct {
	Store  LoanStore
	Logger *zap.Logger

	locks keyedMutex
}

func NewLoanTracker(store LoanStore, logger *zap.Logger) *LoanTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanTracker{Store: store, Logger: logger}
}

// Create registers a new ACTIVE loan.
func (lt *LoanTracker) Create(ctx context.Context, employeeID EmployeeID, total, installment Money, startPeriod PeriodID) (EmployeeLoan, error) {
	if !total.IsPositive() || !installment.IsPositive() {
		return EmployeeLoan{}, &ValidationError{Field: "amount", Reason: "loan amounts must be positive"}
	}
	if installment.GreaterThan(total) {
		return EmployeeLoan{}, &ValidationError{Field: "installment_amount", Reason: fmt.Sprintf("installment %s exceeds total %s", installment, total)}
	}

	loan := EmployeeLoan{
		ID:                LoanID(uuid.NewString()),
		EmployeeID:        employeeID,
		TotalAmount:       total,
		InstallmentAmount: installment,
		RemainingBalance:  total,
		StartPeriodID:     startPeriod,
		Status:            LoanActive,
	}
	if err := lt.Store.SaveLoan(ctx, loan); err != nil {
		return EmployeeLoan{}, err
	}
	return loan, nil
}

func (lt *LoanTracker) Get(ctx context.Context, id LoanID) (EmployeeLoan, error) {
	return lt.Store.GetLoan(ctx, id)
}

func (lt *LoanTracker) ForEmployee(ctx context.Context, employeeID EmployeeID) ([]EmployeeLoan, error) {
	return lt.Store.LoansForEmployee(ctx, employeeID)
}

// DeductionsForPeriod lists every installment recorded against the period,
// the audit view of what the engine actually took.
func (lt *LoanTracker) DeductionsForPeriod(ctx context.Context, periodID PeriodID) ([]AppliedDeduction, error) {
	return lt.Store.DeductionsForPeriod(ctx, periodID)
}

// ApplyForEmployee processes every loan of the employee for the period and
// returns the total deduction. Idempotent: periods already processed for a
// loan contribute their recorded amount; closed loans are a no-op.
func (lt *LoanTracker) ApplyForEmployee(ctx context.Context, employeeID EmployeeID, periodID PeriodID) (Money, error) {
	loans, err := lt.Store.LoansForEmployee(ctx, employeeID)
	if err != nil {
		return Money{}, err
	}

	total := ZeroMoney()
	for _, loan := range loans {
		d, err := lt.Apply(ctx, loan.ID, periodID)
		if err != nil {
			return Money{}, err
		}
		total = total.Add(d)
	}
	return total, nil
}

// Apply processes one loan for one period and returns the deduction taken
// (zero for closed or already-fully-recovered loans). Safe to retry.
func (lt *LoanTracker) Apply(ctx context.Context, loanID LoanID, periodID PeriodID) (Money, error) {
	lock := lt.locks.get(string(loanID))
	lock.Lock()
	defer lock.Unlock()

	// Already applied for this period: return the recorded amount.
	if existing, ok, err := lt.Store.Deduction(ctx, loanID, periodID); err != nil {
		return Money{}, err
	} else if ok {
		return existing.Amount, nil
	}

	loan, err := lt.Store.GetLoan(ctx, loanID)
	if err != nil {
		return Money{}, err
	}
	if loan.Status == LoanClosed {
		return ZeroMoney(), nil
	}

	// Installments start at the loan's start period. Canonical period IDs
	// (PP-YYYY-MM) sort chronologically, so earlier periods compare lower
	// even when the start period has not been opened yet.
	if loan.StartPeriodID != "" && periodID < loan.StartPeriodID {
		return ZeroMoney(), nil
	}

	deduction := loan.InstallmentAmount.Min(loan.RemainingBalance)
	if !deduction.IsPositive() {
		return ZeroMoney(), nil
	}

	applied := AppliedDeduction{
		ID:        uuid.NewString(),
		LoanID:    loanID,
		PeriodID:  periodID,
		Amount:    deduction,
		AppliedAt: time.Now().UTC(),
	}
	if err := lt.Store.RecordDeduction(ctx, applied); err != nil {
		// Lost a race with another application of the same period: the
		// recorded amount wins.
		if errors.Is(err, ErrDeductionApplied) {
			if existing, ok, derr := lt.Store.Deduction(ctx, loanID, periodID); derr == nil && ok {
				return existing.Amount, nil
			}
		}
		return Money{}, err
	}

	remaining := loan.RemainingBalance.Sub(deduction)
	status := loan.Status
	if remaining.IsZero() {
		status = LoanClosed
	}
	if err := lt.Store.UpdateLoanBalance(ctx, loanID, remaining, status); err != nil {
		return Money{}, err
	}

	lt.Logger.Debug("loan installment applied",
		zap.String("loan", string(loanID)),
		zap.String("period", string(periodID)),
		zap.String("deduction", deduction.String()),
		zap.String("remaining", remaining.String()))
	return deduction, nil
}
