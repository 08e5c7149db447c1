/*
engine.go - Period payroll calculation

PURPOSE:
  Combines the effective-dated component store, the attendance summary feed,
  and the loan tracker into one deterministic net-pay figure per
  (period, employee):

    1. Resolve component amounts for the period (day-weighted proration when
       an amount changes mid-period, policy-controlled)
    2. fixed     = sum of WPS-FIXED earning components
    3. overtime  = minutes-by-category x category multiplier x hourly rate
                   (hourly rate = basic / standard monthly hours)
    4. unpaid    = (basic / days in period) x unpaid leave days, only for
                   leave types flagged payroll-deductible
    5. loans     = idempotent installment application (loan.go)
    6. gross = fixed + overtime; net = gross - deductions
       A negative net fails with NegativeNetPayError - never clamped, it
       means upstream data is wrong.
    7. Result is written for (period, employee) with a GeneratedAt stamp.
       Recomputing with identical inputs returns the stored result
       unchanged, stamp included; only changed figures rewrite the row.

CONCURRENCY:
  Runs for different employees in the same period execute concurrently.
  A per-(period, employee) mutex serializes recomputation against the lock
  check: check lock, compute, commit only if still unlocked, else discard
  and report PeriodLockedError.

SEE ALSO:
  - loan.go: deduction idempotency
  - period.go: the lock state machine the engine defers to
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var sixty = decimal.NewFromInt(60)

// Engine computes payroll results. It owns PayrollResult rows.
type Engine struct {
	Components ComponentStore
	Catalog    ComponentCatalog
	Attendance AttendanceSource
	Results    ResultStore
	Loans      *LoanTracker
	Periods    *PeriodManager
	Directory  EmployeeDirectory
	LeaveTypes LeaveTypeCatalog
	Settings   OrgSettings
	Logger     *zap.Logger

	// Workers bounds concurrent per-employee calculations in RunPeriod.
	Workers int

	locks keyedMutex
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Calculate computes and stores the payroll result for one employee in one
// period. Recomputation before lock is idempotent.
func (e *Engine) Calculate(ctx context.Context, periodID PeriodID, employeeID EmployeeID) (PayrollResult, error) {
	lock := e.locks.get(string(periodID) + "|" + string(employeeID))
	lock.Lock()
	defer lock.Unlock()

	if err := e.Periods.CheckResultsWritable(ctx, periodID); err != nil {
		return PayrollResult{}, err
	}

	period, err := e.Periods.Get(ctx, periodID)
	if err != nil {
		return PayrollResult{}, err
	}
	emp, err := e.Directory.Employee(ctx, employeeID)
	if err != nil {
		return PayrollResult{}, err
	}

	summary, err := e.Attendance.PeriodSummary(ctx, employeeID, periodID)
	if err != nil {
		if !errors.Is(err, ErrSummaryNotFound) {
			return PayrollResult{}, err
		}
		// No summary means a clean month: no overtime, no unpaid leave.
		summary = AttendanceSummary{EmployeeID: employeeID, PeriodID: periodID}
		e.logger().Warn("no attendance summary, assuming clean month",
			zap.String("employee", string(employeeID)),
			zap.String("period", string(periodID)))
	}

	fixed, otherDeductions, err := e.componentTotals(ctx, emp, period)
	if err != nil {
		return PayrollResult{}, err
	}

	// Basic as of the period start anchors all rate math (hourly rate and
	// per-day rate), independent of proration of the fixed total.
	basicAssignment, err := e.Components.Resolve(ctx, employeeID, emp.BasicComponent, period.Range.Start)
	if err != nil {
		return PayrollResult{}, fmt.Errorf("basic salary for %s: %w", employeeID, err)
	}
	basic := basicAssignment.Amount

	overtime := e.overtimeAmount(basic, summary)

	unpaidDeduction, unpaidDays, err := e.unpaidLeave(ctx, basic, period, summary)
	if err != nil {
		return PayrollResult{}, err
	}

	loanDeduction, err := e.Loans.ApplyForEmployee(ctx, employeeID, periodID)
	if err != nil {
		return PayrollResult{}, err
	}

	fixed = fixed.Round2()
	variable := overtime.Round2()
	gross := fixed.Add(variable)
	deductions := unpaidDeduction.Add(loanDeduction).Add(otherDeductions).Round2()
	net := gross.Sub(deductions)

	if net.IsNegative() {
		return PayrollResult{}, &NegativeNetPayError{
			PeriodID:   periodID,
			EmployeeID: employeeID,
			Gross:      gross,
			Deductions: deductions,
		}
	}

	result := PayrollResult{
		PeriodID:       periodID,
		EmployeeID:     employeeID,
		DaysWorked:     daysWorked(unpaidDays, summary.AbsenceDays),
		FixedAmount:    fixed,
		VariableAmount: variable,
		Gross:          gross,
		Deductions:     deductions,
		Net:            net,
		GeneratedAt:    time.Now().UTC(),
	}

	// A stored result with the same figures stays authoritative, stamp
	// included: recomputation with identical inputs returns it unchanged.
	existing, err := e.Results.GetResult(ctx, periodID, employeeID)
	if err == nil && existing.FinanciallyEqual(result) {
		return existing, nil
	}
	if err != nil && !errors.Is(err, ErrResultNotFound) {
		return PayrollResult{}, err
	}

	// Commit only if the period is still unlocked; a lock that landed while
	// we were computing wins and the result is discarded.
	if err := e.Periods.CheckResultsWritable(ctx, periodID); err != nil {
		return PayrollResult{}, err
	}
	if err := e.Results.SaveResult(ctx, result); err != nil {
		return PayrollResult{}, err
	}
	return result, nil
}

// componentTotals resolves every component with history for the employee and
// splits them into fixed earnings and fixed deductions. Derived components
// (overtime, unpaid leave, loans) are computed elsewhere, never read from
// assignments.
func (e *Engine) componentTotals(ctx context.Context, emp Employee, period PayrollPeriod) (Money, Money, error) {
	fixed, deductions := ZeroMoney(), ZeroMoney()

	ids, err := e.Components.ComponentsForEmployee(ctx, emp.ID)
	if err != nil {
		return Money{}, Money{}, err
	}
	for _, id := range ids {
		component, err := e.Catalog.Component(ctx, id)
		if err != nil {
			return Money{}, Money{}, err
		}
		if component.Method != CalcFixed {
			continue
		}

		history, err := e.Components.History(ctx, emp.ID, id)
		if err != nil {
			return Money{}, Money{}, err
		}

		var amount Money
		if e.Settings.Proration == ProrateDayWeighted {
			amount = ProratedAmount(history, period.Range)
		} else {
			resolved, ok := ResolveAssignment(history, period.Range.Start)
			if !ok {
				continue
			}
			amount = resolved.Amount
		}
		if amount.IsZero() {
			continue
		}

		switch {
		case component.Kind == KindEarning && component.Class == WPSFixed:
			fixed = fixed.Add(amount)
		case component.Kind == KindDeduction:
			deductions = deductions.Add(amount)
		}
	}
	return fixed, deductions, nil
}

// overtimeAmount prices categorized overtime minutes against the rate table.
func (e *Engine) overtimeAmount(basic Money, summary AttendanceSummary) Money {
	if len(summary.OvertimeMinutes) == 0 {
		return ZeroMoney()
	}

	hourlyRate := basic.Div(e.Settings.StandardMonthlyHours)
	total := ZeroMoney()
	for _, cat := range OvertimeCategories {
		minutes := summary.OvertimeMinutes[cat]
		if minutes == 0 {
			continue
		}
		hours := decimal.NewFromInt(int64(minutes)).Div(sixty)
		total = total.Add(hourlyRate.Mul(hours).Mul(e.Settings.OvertimeRate(cat)))
	}
	return total
}

// unpaidLeave prices deductible unpaid leave days and returns both the
// deduction and the total unpaid days (deductible or not, for days worked).
func (e *Engine) unpaidLeave(ctx context.Context, basic Money, period PayrollPeriod, summary AttendanceSummary) (Money, decimal.Decimal, error) {
	deduction := ZeroMoney()
	totalDays := decimal.Zero

	perDay := basic.Div(period.Range.DaysDecimal())
	for _, entry := range summary.UnpaidLeave {
		totalDays = totalDays.Add(entry.Days)

		lt, err := e.LeaveTypes.LeaveType(ctx, entry.LeaveTypeID)
		if err != nil {
			return Money{}, decimal.Zero, err
		}
		if !lt.PayrollDeductible {
			continue
		}
		deduction = deduction.Add(perDay.Mul(entry.Days))
	}
	return deduction, totalDays, nil
}

// daysWorked applies the 30-day bank-file convention, reduced for unpaid
// leave and absence, floored at zero.
func daysWorked(unpaidLeaveDays, absenceDays decimal.Decimal) decimal.Decimal {
	d := decimal.NewFromInt(30).Sub(unpaidLeaveDays).Sub(absenceDays)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// PERIOD RUN - Whole-period calculation across employees
// =============================================================================

// EmployeeFailure records one employee whose calculation failed during a run.
type EmployeeFailure struct {
	EmployeeID EmployeeID
	Err        error
}

// RunSummary reports the outcome of a whole-period run.
type RunSummary struct {
	PeriodID   PeriodID
	Computed   int
	Failures   []EmployeeFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunPeriod calculates every employee in the period with a bounded worker
// pool. Failures don't abort the run; they are collected per employee so
// one bad record never blocks the rest of the payroll.
func (e *Engine) RunPeriod(ctx context.Context, periodID PeriodID) (RunSummary, error) {
	if err := e.Periods.CheckResultsWritable(ctx, periodID); err != nil {
		return RunSummary{}, err
	}

	employees, err := e.Directory.Employees(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	workers := e.Workers
	if workers <= 0 {
		workers = 4
	}

	summary := RunSummary{PeriodID: periodID, StartedAt: time.Now().UTC()}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)
	for _, emp := range employees {
		emp := emp
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := e.Calculate(ctx, periodID, emp.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failures = append(summary.Failures, EmployeeFailure{EmployeeID: emp.ID, Err: err})
				return
			}
			summary.Computed++
		}()
	}
	wg.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].EmployeeID < summary.Failures[j].EmployeeID
	})
	summary.FinishedAt = time.Now().UTC()

	e.logger().Info("period run finished",
		zap.String("period", string(periodID)),
		zap.Int("computed", summary.Computed),
		zap.Int("failed", len(summary.Failures)))
	return summary, nil
}
