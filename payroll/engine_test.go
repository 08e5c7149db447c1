package payroll_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

// engineFixture wires the engine against the in-memory store with a DRAFT
// February 2026 period and one employee:
//
//	E-001: basic 8400 (hourly 35, per-day 300 over 28 days), housing 2000,
//	       fixed insurance deduction 100
type engineFixture struct {
	engine *payroll.Engine
	mem    *store.Memory
	pm     *payroll.PeriodManager
	loans  *payroll.LoanTracker
	period payroll.PayrollPeriod
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	pm := payroll.NewPeriodManager(mem, mem, nil)
	loans := payroll.NewLoanTracker(mem, nil)

	period, err := pm.Create(ctx, payroll.DateRange{
		Start: mustDate(t, "2026-02-01"),
		End:   mustDate(t, "2026-02-28"),
	}, 2, 2026)
	require.NoError(t, err)

	mem.PutComponent(payroll.SalaryComponent{
		ID: "SC-BASIC", Name: "Basic Salary",
		Kind: payroll.KindEarning, Method: payroll.CalcFixed, Class: payroll.WPSFixed,
	})
	mem.PutComponent(payroll.SalaryComponent{
		ID: "SC-HOUSING", Name: "Housing Allowance",
		Kind: payroll.KindEarning, Method: payroll.CalcFixed, Class: payroll.WPSFixed,
	})
	mem.PutComponent(payroll.SalaryComponent{
		ID: "SC-INSURANCE", Name: "Insurance Contribution",
		Kind: payroll.KindDeduction, Method: payroll.CalcFixed, Class: payroll.WPSNotApplicable,
	})
	mem.PutLeaveType(payroll.LeaveType{ID: "LT-UNPAID", Name: "Unpaid Leave", PayrollDeductible: true})
	mem.PutLeaveType(payroll.LeaveType{ID: "LT-HAJJ", Name: "Hajj Leave", PayrollDeductible: false})

	mem.PutEmployee(payroll.Employee{
		ID: "E-001", Code: "EMP001", Name: "Aisha Rahman",
		JoiningDate:    mustDate(t, "2022-01-01"),
		WPSEligible:    true,
		BasicComponent: "SC-BASIC",
	})

	assign := func(id string, componentID payroll.ComponentID, amount int64) {
		require.NoError(t, mem.Assign(ctx, payroll.ComponentAssignment{
			ID: id, EmployeeID: "E-001", ComponentID: componentID,
			Amount:        payroll.NewMoney(amount),
			EffectiveFrom: mustDate(t, "2025-01-01"),
		}))
	}
	assign("A-1", "SC-BASIC", 8400)
	assign("A-2", "SC-HOUSING", 2000)
	assign("A-3", "SC-INSURANCE", 100)

	engine := &payroll.Engine{
		Components: mem,
		Catalog:    mem,
		Attendance: mem,
		Results:    mem,
		Loans:      loans,
		Periods:    pm,
		Directory:  mem,
		LeaveTypes: mem,
		Settings:   payroll.DefaultSettings(),
	}
	return &engineFixture{engine: engine, mem: mem, pm: pm, loans: loans, period: period}
}

func TestCalculate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Overtime: 2h workday x 35 x 1.25 + 1h weekend x 35 x 1.5 +
	// 0.4h holiday x 35 x 2.5 = 87.50 + 52.50 + 35.00 = 175.00
	// Unpaid: 2 deductible days x 300 = 600; 1 Hajj day deducts nothing.
	// Loan: 1000 installment. Insurance: 100 fixed.
	require.NoError(t, f.mem.PutSummary(ctx, payroll.AttendanceSummary{
		EmployeeID: "E-001",
		PeriodID:   f.period.ID,
		OvertimeMinutes: map[payroll.OvertimeCategory]int{
			payroll.OvertimeWorkday:       120,
			payroll.OvertimeWeekend:       60,
			payroll.OvertimePublicHoliday: 24,
		},
		UnpaidLeave: []payroll.UnpaidLeaveEntry{
			{LeaveTypeID: "LT-UNPAID", Days: decimal.NewFromInt(2)},
			{LeaveTypeID: "LT-HAJJ", Days: decimal.NewFromInt(1)},
		},
		AbsenceDays: decimal.NewFromInt(1),
	}))
	_, err := f.loans.Create(ctx, "E-001", payroll.NewMoney(5000), payroll.NewMoney(1000), f.period.ID)
	require.NoError(t, err)

	result, err := f.engine.Calculate(ctx, f.period.ID, "E-001")
	require.NoError(t, err)

	assert.Equal(t, "10400.00", result.FixedAmount.String())
	assert.Equal(t, "175.00", result.VariableAmount.String())
	assert.Equal(t, "10575.00", result.Gross.String())
	assert.Equal(t, "1700.00", result.Deductions.String())
	assert.Equal(t, "8875.00", result.Net.String())

	// 30-day convention minus 3 unpaid leave days minus 1 absence day.
	assert.Equal(t, "26", result.DaysWorked.String())

	stored, err := f.mem.GetResult(ctx, f.period.ID, "E-001")
	require.NoError(t, err)
	assert.True(t, stored.FinanciallyEqual(result))
}

func TestCalculateIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mem.PutSummary(ctx, payroll.AttendanceSummary{
		EmployeeID:      "E-001",
		PeriodID:        f.period.ID,
		OvertimeMinutes: map[payroll.OvertimeCategory]int{payroll.OvertimeWorkday: 120},
	}))
	_, err := f.loans.Create(ctx, "E-001", payroll.NewMoney(5000), payroll.NewMoney(1000), f.period.ID)
	require.NoError(t, err)

	first, err := f.engine.Calculate(ctx, f.period.ID, "E-001")
	require.NoError(t, err)

	// Recomputation with unchanged inputs returns the stored result
	// verbatim, GeneratedAt included, and must not double-apply the loan
	// installment.
	second, err := f.engine.Calculate(ctx, f.period.ID, "E-001")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := f.mem.GetResult(ctx, f.period.ID, "E-001")
	require.NoError(t, err)
	assert.Equal(t, first, stored)

	loans, err := f.loans.ForEmployee(ctx, "E-001")
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, "4000.00", loans[0].RemainingBalance.String())
}

func TestCalculateMissingSummaryMeansCleanMonth(t *testing.T) {
	f := newEngineFixture(t)

	result, err := f.engine.Calculate(context.Background(), f.period.ID, "E-001")
	require.NoError(t, err)
	assert.Equal(t, "10400.00", result.FixedAmount.String())
	assert.True(t, result.VariableAmount.IsZero())
	assert.Equal(t, "100.00", result.Deductions.String())
	assert.Equal(t, "30", result.DaysWorked.String())
}

func TestCalculateSkipsLoanBeforeStartPeriod(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Loan starts in March; the February run must not take an installment.
	loan, err := f.loans.Create(ctx, "E-001", payroll.NewMoney(5000), payroll.NewMoney(1000), "PP-2026-03")
	require.NoError(t, err)

	result, err := f.engine.Calculate(ctx, f.period.ID, "E-001")
	require.NoError(t, err)
	assert.Equal(t, "100.00", result.Deductions.String())

	got, err := f.loans.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", got.RemainingBalance.String())
}

func TestCalculateLockedPeriod(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pm.Approve(ctx, f.period.ID, "hr.manager"))
	require.NoError(t, f.pm.Lock(ctx, f.period.ID, "finance.director"))

	_, err := f.engine.Calculate(ctx, f.period.ID, "E-001")
	require.ErrorIs(t, err, payroll.ErrPeriodLocked)

	_, err = f.mem.GetResult(ctx, f.period.ID, "E-001")
	assert.ErrorIs(t, err, payroll.ErrResultNotFound)
}

func TestCalculateNegativeNet(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// A deduction component larger than gross must fail, never clamp.
	f.mem.PutComponent(payroll.SalaryComponent{
		ID: "SC-RECOVERY", Name: "Asset Recovery",
		Kind: payroll.KindDeduction, Method: payroll.CalcFixed, Class: payroll.WPSNotApplicable,
	})
	require.NoError(t, f.mem.Assign(ctx, payroll.ComponentAssignment{
		ID: "A-9", EmployeeID: "E-001", ComponentID: "SC-RECOVERY",
		Amount:        payroll.NewMoney(50000),
		EffectiveFrom: mustDate(t, "2025-01-01"),
	}))

	_, err := f.engine.Calculate(ctx, f.period.ID, "E-001")
	require.ErrorIs(t, err, payroll.ErrNegativeNetPay)

	var negative *payroll.NegativeNetPayError
	require.ErrorAs(t, err, &negative)
	assert.Equal(t, "10400.00", negative.Gross.String())

	_, err = f.mem.GetResult(ctx, f.period.ID, "E-001")
	assert.ErrorIs(t, err, payroll.ErrResultNotFound)
}

func TestCalculateProratesMidPeriodRaise(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Basic 8400 -> 11200 on Feb 15: 14 days each over 28 days = 9800.
	_, err := f.mem.Supersede(ctx, "E-001", "SC-BASIC", payroll.NewMoney(11200), mustDate(t, "2026-02-15"))
	require.NoError(t, err)

	result, err := f.engine.Calculate(ctx, f.period.ID, "E-001")
	require.NoError(t, err)

	// 9800 prorated basic + 2000 housing.
	assert.Equal(t, "11800.00", result.FixedAmount.String())
}

func TestCalculateMissingBasic(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.mem.PutEmployee(payroll.Employee{
		ID: "E-002", Code: "EMP002", Name: "Omar Hassan",
		JoiningDate:    mustDate(t, "2023-05-01"),
		BasicComponent: "SC-BASIC",
	})

	_, err := f.engine.Calculate(ctx, f.period.ID, "E-002")
	assert.ErrorIs(t, err, payroll.ErrAssignmentNotFound)
}

func TestRunPeriod(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// E-002 has no basic assignment and must fail without blocking E-001.
	f.mem.PutEmployee(payroll.Employee{
		ID: "E-002", Code: "EMP002", Name: "Omar Hassan",
		JoiningDate:    mustDate(t, "2023-05-01"),
		BasicComponent: "SC-BASIC",
	})

	summary, err := f.engine.RunPeriod(ctx, f.period.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Computed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, payroll.EmployeeID("E-002"), summary.Failures[0].EmployeeID)
	assert.ErrorIs(t, summary.Failures[0].Err, payroll.ErrAssignmentNotFound)

	_, err = f.mem.GetResult(ctx, f.period.ID, "E-001")
	assert.NoError(t, err)
}

func TestRunPeriodLocked(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pm.Approve(ctx, f.period.ID, "hr.manager"))
	require.NoError(t, f.pm.Lock(ctx, f.period.ID, "finance.director"))

	_, err := f.engine.RunPeriod(ctx, f.period.ID)
	assert.ErrorIs(t, err, payroll.ErrPeriodLocked)
}
