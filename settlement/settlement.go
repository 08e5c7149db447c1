/*
Package settlement computes termination settlements: end-of-service gratuity,
leave encashment, notice pay, and the resulting total payable.

GRATUITY (UAE end-of-service entitlement):
  tenure    = whole years of service + fractional remainder in days/365
              (never rounded up)
  < 1 year  = no gratuity (minimum-service floor)
  years 1-5 = gratuityFirst5YearDays days of basic pay per year (21 default)
  beyond 5  = gratuityAfter5YearDays days per year (30 default)
  daily rate uses a fixed 30-day month (basic / 30), independent of
  calendar days, and the total is capped at gratuityCapYears x 365 days
  of basic salary.

  Fractional years prorate within their tier by days/365, so 4.5 years at
  tier 21 accrues 94.5 days.

WORKED EXAMPLES (basic 9000, tiers 21/30, cap 2 years):
  4.5 years: 4.5 x 21 = 94.5 days -> 94.5 x 300 = 28,350
  7 years:   5 x 21 + 2 x 30 = 165 days -> 165 x 300 = 49,500
  cap:       2 x 365 x 300 = 219,000 (neither example hits it)

The calculator resolves the terminal basic salary from the effective-dated
component store as of the termination date, writes a FinalSettlement in
DRAFT, and leaves APPROVED/PAID transitions to the external workflow.
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

var (
	thirty      = decimal.NewFromInt(30)
	daysPerYear = decimal.NewFromInt(365)
)

// Calculator produces final settlements. Writes go through the settlement
// store in DRAFT status only.
type Calculator struct {
	Components payroll.ComponentStore
	Directory  payroll.EmployeeDirectory
	Store      payroll.SettlementStore
	Settings   payroll.OrgSettings
	Logger     *zap.Logger
}

func NewCalculator(components payroll.ComponentStore, directory payroll.EmployeeDirectory, store payroll.SettlementStore, settings payroll.OrgSettings, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		Components: components,
		Directory:  directory,
		Store:      store,
		Settings:   settings,
		Logger:     logger,
	}
}

// Input carries the termination facts the calculator cannot derive itself.
type Input struct {
	EmployeeID      payroll.EmployeeID
	PeriodID        payroll.PeriodID
	TerminationDate payroll.Date
	UnusedLeaveDays decimal.Decimal
	NoticePayAmount payroll.Money
	OtherEarnings   payroll.Money
	OtherDeductions payroll.Money
}

// Compute calculates the settlement and writes it in DRAFT status.
func (c *Calculator) Compute(ctx context.Context, in Input) (payroll.FinalSettlement, error) {
	emp, err := c.Directory.Employee(ctx, in.EmployeeID)
	if err != nil {
		return payroll.FinalSettlement{}, err
	}
	if in.TerminationDate.Before(emp.JoiningDate) {
		return payroll.FinalSettlement{}, fmt.Errorf("termination %s precedes joining %s", in.TerminationDate, emp.JoiningDate)
	}

	basicAssignment, err := c.Components.Resolve(ctx, emp.ID, emp.BasicComponent, in.TerminationDate)
	if err != nil {
		return payroll.FinalSettlement{}, fmt.Errorf("terminal basic salary: %w", err)
	}
	basic := basicAssignment.Amount
	dailyRate := basic.Div(thirty)

	gratuity := Gratuity(emp.JoiningDate, in.TerminationDate, basic, c.Settings)
	encashment := dailyRate.Mul(in.UnusedLeaveDays).Round2()

	total := gratuity.
		Add(encashment).
		Add(in.NoticePayAmount).
		Add(in.OtherEarnings).
		Sub(in.OtherDeductions)

	s := payroll.FinalSettlement{
		ID:                    payroll.SettlementID(uuid.NewString()),
		EmployeeID:            in.EmployeeID,
		PeriodID:              in.PeriodID,
		TerminationDate:       in.TerminationDate,
		GratuityAmount:        gratuity,
		LeaveEncashmentAmount: encashment,
		NoticePayAmount:       in.NoticePayAmount,
		OtherEarnings:         in.OtherEarnings,
		OtherDeductions:       in.OtherDeductions,
		TotalPayable:          total,
		Status:                payroll.SettlementDraft,
		CreatedAt:             time.Now().UTC(),
	}
	if err := c.Store.SaveSettlement(ctx, s); err != nil {
		return payroll.FinalSettlement{}, err
	}

	c.Logger.Info("settlement computed",
		zap.String("employee", string(in.EmployeeID)),
		zap.String("gratuity", gratuity.String()),
		zap.String("total", total.String()))
	return s, nil
}

// =============================================================================
// GRATUITY - Pure tiered, capped accrual
// =============================================================================

// Tenure splits service length into whole years and a day remainder.
// The remainder counts days from the last completed service anniversary.
func Tenure(joining, termination payroll.Date) (wholeYears int, remainderDays int) {
	years := 0
	for joining.AddYears(years + 1).BeforeOrEqual(termination) {
		years++
	}
	return years, payroll.DaysBetween(joining.AddYears(years), termination)
}

// AccruedGratuityDays computes the tiered accrual in days of basic pay.
// Fractional years prorate by days/365 within their tier.
func AccruedGratuityDays(joining, termination payroll.Date, settings payroll.OrgSettings) decimal.Decimal {
	wholeYears, remainderDays := Tenure(joining, termination)
	tenure := decimal.NewFromInt(int64(wholeYears)).
		Add(decimal.NewFromInt(int64(remainderDays)).Div(daysPerYear))

	if tenure.LessThan(decimal.NewFromInt(1)) {
		return decimal.Zero
	}

	five := decimal.NewFromInt(5)
	firstTierYears := decimal.Min(tenure, five)
	accrued := firstTierYears.Mul(settings.GratuityFirst5YearDays)

	if tenure.GreaterThan(five) {
		accrued = accrued.Add(tenure.Sub(five).Mul(settings.GratuityAfter5YearDays))
	}
	return accrued
}

// Gratuity computes the capped gratuity amount from tenure and the terminal
// basic salary.
func Gratuity(joining, termination payroll.Date, basic payroll.Money, settings payroll.OrgSettings) payroll.Money {
	accruedDays := AccruedGratuityDays(joining, termination, settings)
	if accruedDays.IsZero() {
		return payroll.ZeroMoney()
	}

	dailyRate := basic.Div(thirty)
	amount := dailyRate.Mul(accruedDays)

	capDays := decimal.NewFromInt(int64(settings.GratuityCapYears)).Mul(daysPerYear)
	cap := dailyRate.Mul(capDays)
	if amount.GreaterThan(cap) {
		amount = cap
	}
	return amount.Round2()
}

// =============================================================================
// STATUS WORKFLOW - External actions, recorded here for auditability
// =============================================================================

// Approve moves DRAFT -> APPROVED.
func (c *Calculator) Approve(ctx context.Context, id payroll.SettlementID) error {
	return c.Store.TransitionSettlement(ctx, id, payroll.SettlementDraft, payroll.SettlementApproved)
}

// MarkPaid moves APPROVED -> PAID. A paid settlement blocks its period from
// reopening until manually resolved.
func (c *Calculator) MarkPaid(ctx context.Context, id payroll.SettlementID) error {
	return c.Store.TransitionSettlement(ctx, id, payroll.SettlementApproved, payroll.SettlementPaid)
}
