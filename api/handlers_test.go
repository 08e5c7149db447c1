/*
handlers_test.go - HTTP-level tests for the API surface

Runs each handler through the real router against the in-memory store, so
routing, JSON codecs, and the error-to-status mapping are all exercised
together.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
	"github.com/warp/payroll-engine/settlement"
	"github.com/warp/payroll-engine/wps"
)

type apiFixture struct {
	router  http.Handler
	mem     *store.Memory
	periods *payroll.PeriodManager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mem := store.NewMemory()
	settings := payroll.DefaultSettings()
	settings.MOHREEstablishmentNumber = "MOH-123456"
	settings.WPSBankRoutingCode = "302620122"

	periods := payroll.NewPeriodManager(mem, mem, nil)
	loans := payroll.NewLoanTracker(mem, nil)
	attendance := payroll.NewAttendanceFeed(mem, periods, nil)
	engine := &payroll.Engine{
		Components: mem,
		Catalog:    mem,
		Attendance: mem,
		Results:    mem,
		Loans:      loans,
		Periods:    periods,
		Directory:  mem,
		LeaveTypes: mem,
		Settings:   settings,
	}

	sink := approval.EventSinkFunc(func(context.Context, approval.Event) error { return nil })
	approvals, err := approval.NewCoordinator(context.Background(), approval.NewMemoryJournal(), sink, nil)
	require.NoError(t, err)

	h := &Handler{
		Master:          mem,
		Periods:         periods,
		Engine:          engine,
		Loans:           loans,
		Results:         mem,
		Attendance:      attendance,
		Settlements:     settlement.NewCalculator(mem, mem, mem, settings, nil),
		SettlementStore: mem,
		Exporter:        wps.NewExporter(mem, mem, settings, nil),
		Approvals:       approvals,
	}
	return &apiFixture{router: NewRouter(h), mem: mem, periods: periods}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

// seedMaster creates the demo catalog, one WPS-eligible employee, and a
// DRAFT February 2026 period.
func (f *apiFixture) seedMaster(t *testing.T) payroll.PayrollPeriod {
	t.Helper()
	ctx := context.Background()

	f.mem.PutComponent(payroll.SalaryComponent{
		ID: "SC-BASIC", Name: "Basic Salary",
		Kind: payroll.KindEarning, Method: payroll.CalcFixed, Class: payroll.WPSFixed,
	})
	f.mem.PutEmployee(payroll.Employee{
		ID: "E-001", Code: "EMP001", Name: "Aisha Rahman",
		IBAN:           "AE070331234567890123456",
		MOHREPersonID:  "784-1990-1234567-1",
		JoiningDate:    payroll.NewDate(2019, 3, 1),
		WPSEligible:    true,
		BasicComponent: "SC-BASIC",
	})
	require.NoError(t, f.mem.Assign(ctx, payroll.ComponentAssignment{
		ID: "A-1", EmployeeID: "E-001", ComponentID: "SC-BASIC",
		Amount:        payroll.NewMoney(9000),
		EffectiveFrom: payroll.NewDate(2025, 1, 1),
	}))

	p, err := f.periods.Create(ctx, payroll.DateRange{
		Start: payroll.NewDate(2026, 2, 1),
		End:   payroll.NewDate(2026, 2, 28),
	}, 2, 2026)
	require.NoError(t, err)
	return p
}

func TestEmployeeEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID: "E-001", Code: "EMP001", Name: "Aisha Rahman",
		JoiningDate: "2019-03-01", WPSEligible: true, BasicComponent: "SC-BASIC",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/employees/E-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[EmployeeDTO](t, rec)
	assert.Equal(t, "Aisha Rahman", got.Name)

	rec = f.do(t, http.MethodGet, "/api/employees/E-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/employees", CreateEmployeeRequest{
		ID: "E-002", Name: "Bad Date", JoiningDate: "01/02/2026",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssignmentEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedMaster(t)

	rec := f.do(t, http.MethodPost, "/api/employees/E-001/components", AssignComponentRequest{
		ComponentID: "SC-HOUSING", Amount: "2500", EffectiveFrom: "2026-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("overlap maps to 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/employees/E-001/components", AssignComponentRequest{
			ComponentID: "SC-HOUSING", Amount: "3000", EffectiveFrom: "2026-03-01",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resolve honors as_of", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/employees/E-001/components/SC-HOUSING/resolve?as_of=2026-02-01", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[AssignmentDTO](t, rec)
		assert.Equal(t, "2500.00", got.Amount)
	})

	t.Run("supersede opens a new interval", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/employees/E-001/components/SC-HOUSING/supersede", SupersedeComponentRequest{
			Amount: "3000", AsOf: "2026-04-01",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodGet, "/api/employees/E-001/components/SC-HOUSING", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		history := decodeBody[[]AssignmentDTO](t, rec)
		assert.Len(t, history, 2)
	})

	t.Run("assignment into locked period maps to 409", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, f.periods.Approve(ctx, "PP-2026-02", "hr"))
		require.NoError(t, f.periods.Lock(ctx, "PP-2026-02", "finance"))

		rec := f.do(t, http.MethodPost, "/api/employees/E-001/components", AssignComponentRequest{
			ComponentID: "SC-TRANSPORT", Amount: "800", EffectiveFrom: "2026-02-10",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestPeriodEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/periods", CreatePeriodRequest{
		Start: "2026-02-01", End: "2026-02-28", PayMonth: 2, PayYear: 2026,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeBody[PeriodDTO](t, rec)
	assert.Equal(t, "PP-2026-02", p.ID)
	assert.Equal(t, "DRAFT", p.Status)

	t.Run("duplicate maps to 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/periods", CreatePeriodRequest{
			Start: "2026-02-01", End: "2026-02-28", PayMonth: 2, PayYear: 2026,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("lifecycle with audit", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/periods/PP-2026-02/approve", PeriodActionRequest{Actor: "hr.manager"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodPost, "/api/periods/PP-2026-02/lock", PeriodActionRequest{Actor: "finance.director"})
		require.Equal(t, http.StatusOK, rec.Code)
		locked := decodeBody[PeriodDTO](t, rec)
		assert.Equal(t, "LOCKED", locked.Status)
		assert.Equal(t, "finance.director", locked.LockedBy)

		// Double lock loses the CAS.
		rec = f.do(t, http.MethodPost, "/api/periods/PP-2026-02/lock", PeriodActionRequest{Actor: "finance.director"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		// Reopen without a reason is a validation failure.
		rec = f.do(t, http.MethodPost, "/api/periods/PP-2026-02/reopen", PeriodActionRequest{Actor: "finance.director"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = f.do(t, http.MethodPost, "/api/periods/PP-2026-02/reopen", PeriodActionRequest{
			Actor: "finance.director", Reason: "late overtime correction",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodGet, "/api/periods/PP-2026-02/audit", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		trail := decodeBody[[]PeriodAuditDTO](t, rec)
		require.Len(t, trail, 3)
		assert.Equal(t, "LOCKED->DRAFT", trail[2].Action)
	})
}

func TestCalculationEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedMaster(t)

	rec := f.do(t, http.MethodPost, "/api/periods/PP-2026-02/employees/E-001/calculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeBody[ResultDTO](t, rec)
	assert.Equal(t, "9000.00", result.Net)

	rec = f.do(t, http.MethodPost, "/api/periods/PP-2026-02/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[RunSummaryDTO](t, rec)
	assert.Equal(t, 1, summary.Computed)
	assert.Empty(t, summary.Failures)

	rec = f.do(t, http.MethodGet, "/api/periods/PP-2026-02/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeBody[[]ResultDTO](t, rec)
	assert.Len(t, results, 1)
}

func TestSIFEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedMaster(t)

	rec := f.do(t, http.MethodPost, "/api/periods/PP-2026-02/employees/E-001/calculate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/periods/PP-2026-02/sif", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	export := decodeBody[SIFExportDTO](t, rec)
	assert.Equal(t, 1, export.Employees)
	assert.Contains(t, export.Content, "1,MOH-123456,302620122,02,2026,1,")
	assert.Contains(t, export.Content, "2,302620122,AE070331234567890123456,")

	t.Run("missing IBAN fails the export", func(t *testing.T) {
		emp, err := f.mem.Employee(context.Background(), "E-001")
		require.NoError(t, err)
		emp.IBAN = ""
		f.mem.PutEmployee(emp)

		rec := f.do(t, http.MethodGet, "/api/periods/PP-2026-02/sif", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoanEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedMaster(t)

	rec := f.do(t, http.MethodPost, "/api/loans", CreateLoanRequest{
		EmployeeID: "E-001", TotalAmount: "6000", InstallmentAmount: "500", StartPeriodID: "PP-2026-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decodeBody[LoanDTO](t, rec)
	assert.Equal(t, "ACTIVE", loan.Status)
	assert.Equal(t, "6000.00", loan.RemainingBalance)

	rec = f.do(t, http.MethodGet, "/api/loans/"+loan.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/employees/E-001/loans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loans := decodeBody[[]LoanDTO](t, rec)
	assert.Len(t, loans, 1)

	t.Run("installment above total maps to 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/loans", CreateLoanRequest{
			EmployeeID: "E-001", TotalAmount: "100", InstallmentAmount: "500", StartPeriodID: "PP-2026-02",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("period deductions list installments taken", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/periods/PP-2026-02/employees/E-001/calculate", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodGet, "/api/periods/PP-2026-02/deductions", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		deductions := decodeBody[[]AppliedDeductionDTO](t, rec)
		require.Len(t, deductions, 1)
		assert.Equal(t, loan.ID, deductions[0].LoanID)
		assert.Equal(t, "500.00", deductions[0].Amount)
	})
}

func TestSettlementEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.seedMaster(t)

	rec := f.do(t, http.MethodPost, "/api/settlements", ComputeSettlementRequest{
		EmployeeID:      "E-001",
		PeriodID:        "PP-2026-02",
		TerminationDate: "2026-03-01",
		UnusedLeaveDays: "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s := decodeBody[SettlementDTO](t, rec)
	assert.Equal(t, "DRAFT", s.Status)
	// 7 years of service on basic 9000: 5x21 + 2x30 = 165 days x 300.
	assert.Equal(t, "49500.00", s.GratuityAmount)

	t.Run("pay before approve maps to 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/settlements/"+s.ID+"/pay", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("approve then pay", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/settlements/"+s.ID+"/approve", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, http.MethodPost, "/api/settlements/"+s.ID+"/pay", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		paid := decodeBody[SettlementDTO](t, rec)
		assert.Equal(t, "PAID", paid.Status)
	})
}

func TestAttendanceEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.seedMaster(t)

	body := PutSummaryRequest{
		EmployeeID:      "E-001",
		PeriodID:        "PP-2026-02",
		WorkedMinutes:   10080,
		OvertimeMinutes: map[string]int{"WORKDAY": 120},
	}
	rec := f.do(t, http.MethodPut, "/api/attendance/summaries", body)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	got, err := f.mem.PeriodSummary(context.Background(), "E-001", "PP-2026-02")
	require.NoError(t, err)
	assert.Equal(t, 120, got.OvertimeMinutes[payroll.OvertimeWorkday])

	t.Run("approved period freezes the feed", func(t *testing.T) {
		require.NoError(t, f.periods.Approve(context.Background(), "PP-2026-02", "hr"))
		rec := f.do(t, http.MethodPut, "/api/attendance/summaries", body)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestApprovalEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/approvals", SubmitApprovalRequest{
		Type: "OVERTIME", ReferenceID: "OT-77", SubjectEmployee: "E-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decodeBody[ApprovalRequestDTO](t, rec)
	assert.Equal(t, "PENDING", req.Status)

	rec = f.do(t, http.MethodGet, "/api/approvals/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeBody[[]ApprovalRequestDTO](t, rec)
	require.Len(t, pending, 1)

	rec = f.do(t, http.MethodPost, "/api/approvals/"+req.ID+"/approve", DecideApprovalRequest{Actor: "hr.manager"})
	require.Equal(t, http.StatusOK, rec.Code)
	decided := decodeBody[ApprovalRequestDTO](t, rec)
	assert.Equal(t, "APPROVED", decided.Status)

	t.Run("deciding twice maps to 409", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/approvals/"+req.ID+"/reject", DecideApprovalRequest{Actor: "hr.manager"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown type maps to 400", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/approvals", SubmitApprovalRequest{
			Type: "EXPENSE", ReferenceID: "X-1", SubjectEmployee: "E-001",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestScenarioEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]ScenarioDTO](t, rec)
	assert.NotEmpty(t, list)

	rec = f.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "small-team"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	employees := decodeBody[[]EmployeeDTO](t, rec)
	assert.Len(t, employees, 3)

	// Loading twice is additive but idempotent.
	rec = f.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "small-team"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
