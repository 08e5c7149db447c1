/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates salary components,
	employees, effective-dated assignments, and the supporting records that
	demonstrate a specific engine feature.

AVAILABLE SCENARIOS:

	small-team:      Three employees with allowances, a loan, and attendance
	mid-month-raise: One employee with a superseded basic mid-period

HOW SCENARIOS WORK:
 1. Seed the component catalog and leave types
 2. Create employees
 3. Open a DRAFT period for the demo month
 4. Assign components effective before the period
 5. Optionally add loans and attendance summaries

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "small-team"}

NOTE:

	Loading is additive and idempotent: records that already exist are left
	in place. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: request handling and error mapping
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "small-team",
		Name:        "Small Team",
		Description: "Three employees with allowances, an active loan, and attendance",
	},
	{
		ID:          "mid-month-raise",
		Name:        "Mid-Month Raise",
		Description: "A basic salary superseded mid-period, showing day-weighted proration",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	var err error
	switch req.ScenarioID {
	case "small-team":
		err = h.loadSmallTeamScenario(ctx)
	case "mid-month-raise":
		err = h.loadMidMonthRaiseScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSmallTeamScenario(ctx context.Context) error {
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}

	period, err := h.seedPeriod(ctx, 2, 2026)
	if err != nil {
		return err
	}

	team := []struct {
		emp     payroll.Employee
		basic   int64
		housing int64
	}{
		{
			emp: payroll.Employee{
				ID: "E-001", Code: "EMP001", Name: "Aisha Rahman",
				IBAN:          "AE070331234567890123456",
				MOHREPersonID: "784-1990-1234567-1",
				JoiningDate:   demoDate(2019, 3, 1),
				WPSEligible:   true, BasicComponent: "SC-BASIC",
			},
			basic: 12000, housing: 4000,
		},
		{
			emp: payroll.Employee{
				ID: "E-002", Code: "EMP002", Name: "Omar Hassan",
				IBAN:          "AE210331234567890654321",
				MOHREPersonID: "784-1985-7654321-2",
				JoiningDate:   demoDate(2021, 7, 15),
				WPSEligible:   true, BasicComponent: "SC-BASIC",
			},
			basic: 8400, housing: 2500,
		},
		{
			emp: payroll.Employee{
				ID: "E-003", Code: "EMP003", Name: "Priya Nair",
				LaborCardNumber: "LC-445566",
				JoiningDate:     demoDate(2024, 1, 8),
				WPSEligible:     false, BasicComponent: "SC-BASIC",
			},
			basic: 6000, housing: 1500,
		},
	}

	for _, m := range team {
		if err := h.Master.SaveEmployee(ctx, m.emp); err != nil {
			return err
		}
		if err := h.seedAssignment(ctx, m.emp.ID, "SC-BASIC", m.basic); err != nil {
			return err
		}
		if err := h.seedAssignment(ctx, m.emp.ID, "SC-HOUSING", m.housing); err != nil {
			return err
		}
	}

	// Omar is repaying an advance.
	_, err = h.Loans.Create(ctx, "E-002", payroll.NewMoney(6000), payroll.NewMoney(500), period.ID)
	if err != nil && !errors.Is(err, payroll.ErrInvalidInput) {
		return err
	}

	// Aisha worked overtime; Priya took two unpaid days.
	summaries := []payroll.AttendanceSummary{
		{
			EmployeeID: "E-001", PeriodID: period.ID,
			OvertimeMinutes: map[payroll.OvertimeCategory]int{
				payroll.OvertimeWorkday: 180,
				payroll.OvertimeWeekend: 120,
			},
		},
		{
			EmployeeID: "E-003", PeriodID: period.ID,
			UnpaidLeave: []payroll.UnpaidLeaveEntry{
				{LeaveTypeID: "LT-UNPAID", Days: decimal.NewFromInt(2)},
			},
		},
	}
	for _, s := range summaries {
		if err := h.Attendance.Put(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadMidMonthRaiseScenario(ctx context.Context) error {
	if err := h.seedCatalog(ctx); err != nil {
		return err
	}
	if _, err := h.seedPeriod(ctx, 2, 2026); err != nil {
		return err
	}

	emp := payroll.Employee{
		ID: "E-010", Code: "EMP010", Name: "Fatima Al Zaabi",
		IBAN:          "AE990331234567890111222",
		MOHREPersonID: "784-1992-1112223-3",
		JoiningDate:   demoDate(2020, 9, 1),
		WPSEligible:   true, BasicComponent: "SC-BASIC",
	}
	if err := h.Master.SaveEmployee(ctx, emp); err != nil {
		return err
	}
	if err := h.seedAssignment(ctx, emp.ID, "SC-BASIC", 9000); err != nil {
		return err
	}

	// The raise lands mid-period; February pays day-weighted halves.
	_, err := h.Master.Supersede(ctx, emp.ID, "SC-BASIC", payroll.NewMoney(12000), demoDate(2026, 2, 15))
	if err != nil && !errors.Is(err, payroll.ErrAssignmentNotFound) {
		return err
	}
	return nil
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) seedCatalog(ctx context.Context) error {
	components := []payroll.SalaryComponent{
		{ID: "SC-BASIC", Name: "Basic Salary", Kind: payroll.KindEarning, Method: payroll.CalcFixed, Class: payroll.WPSFixed, Taxable: true},
		{ID: "SC-HOUSING", Name: "Housing Allowance", Kind: payroll.KindEarning, Method: payroll.CalcFixed, Class: payroll.WPSFixed},
		{ID: "SC-TRANSPORT", Name: "Transport Allowance", Kind: payroll.KindEarning, Method: payroll.CalcFixed, Class: payroll.WPSFixed},
		{ID: "SC-OVERTIME", Name: "Overtime", Kind: payroll.KindEarning, Method: payroll.CalcDerived, Class: payroll.WPSVariable},
	}
	for _, c := range components {
		if err := h.Master.SaveComponent(ctx, c); err != nil {
			return err
		}
	}

	leaveTypes := []payroll.LeaveType{
		{ID: "LT-ANNUAL", Name: "Annual Leave", Paid: true},
		{ID: "LT-SICK", Name: "Sick Leave", Paid: true},
		{ID: "LT-UNPAID", Name: "Unpaid Leave", PayrollDeductible: true},
		{ID: "LT-HAJJ", Name: "Hajj Leave"},
	}
	for _, lt := range leaveTypes {
		if err := h.Master.SaveLeaveType(ctx, lt); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedPeriod(ctx context.Context, month, year int) (payroll.PayrollPeriod, error) {
	p, err := h.Periods.Create(ctx, payroll.DateRange{
		Start: payroll.StartOfMonth(year, time.Month(month)),
		End:   payroll.EndOfMonth(year, time.Month(month)),
	}, month, year)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, payroll.ErrDuplicatePeriod) {
		return h.Periods.Get(ctx, payroll.PeriodID(fmt.Sprintf("PP-%04d-%02d", year, month)))
	}
	return payroll.PayrollPeriod{}, err
}

// seedAssignment opens an interval well before the demo period; an existing
// interval is kept as-is.
func (h *Handler) seedAssignment(ctx context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID, amount int64) error {
	err := h.Master.Assign(ctx, payroll.ComponentAssignment{
		ID:            newAssignmentID(employeeID, string(componentID), demoDate(2025, 1, 1)),
		EmployeeID:    employeeID,
		ComponentID:   componentID,
		Amount:        payroll.NewMoney(amount),
		EffectiveFrom: demoDate(2025, 1, 1),
	})
	if err != nil && !errors.Is(err, payroll.ErrOverlap) {
		return err
	}
	return nil
}

func demoDate(year, month, day int) payroll.Date {
	return payroll.NewDate(year, time.Month(month), day)
}
