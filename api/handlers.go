/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll computation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                     List employees
    POST   /api/employees                     Create employee
    GET    /api/employees/{id}                Get employee
    POST   /api/employees/{id}/components     Assign a component interval
    GET    /api/employees/{id}/components/{componentID}            History
    GET    /api/employees/{id}/components/{componentID}/resolve    Resolve as of date
    POST   /api/employees/{id}/components/{componentID}/supersede  Change amount
    GET    /api/employees/{id}/loans          Employee loans
    GET    /api/employees/{id}/settlements    Employee settlements

  Components:
    GET    /api/components                    List catalog
    POST   /api/components                    Create catalog entry

  Periods:
    POST   /api/periods                       Create period (DRAFT)
    GET    /api/periods                       List periods
    GET    /api/periods/{id}                  Get period
    POST   /api/periods/{id}/approve          DRAFT -> APPROVED
    POST   /api/periods/{id}/lock             APPROVED -> LOCKED
    POST   /api/periods/{id}/reopen           LOCKED -> DRAFT (audited)
    GET    /api/periods/{id}/audit            Audit trail
    POST   /api/periods/{id}/run              Calculate whole period
    GET    /api/periods/{id}/results          All results
    GET    /api/periods/{id}/deductions       Loan installments taken
    POST   /api/periods/{id}/employees/{employeeID}/calculate  One employee
    GET    /api/periods/{id}/employees/{employeeID}/result     One result
    GET    /api/periods/{id}/sif              WPS bank file

  Loans:
    POST   /api/loans                         Create loan
    GET    /api/loans/{id}                    Get loan

  Settlements:
    POST   /api/settlements                   Compute settlement (DRAFT)
    GET    /api/settlements/{id}              Get settlement
    POST   /api/settlements/{id}/approve      DRAFT -> APPROVED
    POST   /api/settlements/{id}/pay          APPROVED -> PAID

  Attendance:
    PUT    /api/attendance/summaries          Put a period summary

  Approvals:
    POST   /api/approvals                     Submit change request
    GET    /api/approvals/pending             Pending requests (FIFO)
    GET    /api/approvals/{id}                Get request
    POST   /api/approvals/{id}/approve        Approve (emits event)
    POST   /api/approvals/{id}/reject         Reject (no downstream effect)

ERROR HANDLING:
  Domain errors map to HTTP status by class:
  - 400: validation (overlap, duplicate period, bad input)
  - 404: not found
  - 409: state violations (period locked, already decided, conflict)
  - 422: computation failures (negative net pay)
  - 500: everything else

SECURITY NOTE:
  No authentication middleware. All endpoints are public; front with a
  gateway in production.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/settlement"
	"github.com/warp/payroll-engine/wps"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// MasterStore is the write-capable master data surface the API needs on top
// of the engine's read-only feeds. Both the sqlite and in-memory stores
// satisfy it.
type MasterStore interface {
	payroll.ComponentStore
	payroll.ComponentCatalog
	payroll.EmployeeDirectory
	SaveEmployee(ctx context.Context, e payroll.Employee) error
	SaveComponent(ctx context.Context, c payroll.SalaryComponent) error
	SaveLeaveType(ctx context.Context, lt payroll.LeaveType) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Master          MasterStore
	Periods         *payroll.PeriodManager
	Engine          *payroll.Engine
	Loans           *payroll.LoanTracker
	Results         payroll.ResultStore
	Attendance      *payroll.AttendanceFeed
	Settlements     *settlement.Calculator
	SettlementStore payroll.SettlementStore
	Exporter        *wps.Exporter
	Approvals       *approval.Coordinator
	Logger          *zap.Logger
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Master.Employees(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Master.Employee(r.Context(), payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	joining, err := payroll.ParseDate(req.JoiningDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid joining_date format (use YYYY-MM-DD)", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	emp := payroll.Employee{
		ID:              payroll.EmployeeID(req.ID),
		Code:            req.Code,
		Name:            req.Name,
		IBAN:            req.IBAN,
		MOHREPersonID:   req.MOHREPersonID,
		LaborCardNumber: req.LaborCardNumber,
		JoiningDate:     joining,
		WPSEligible:     req.WPSEligible,
		BasicComponent:  payroll.ComponentID(req.BasicComponent),
	}
	if err := h.Master.SaveEmployee(r.Context(), emp); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// COMPONENT CATALOG HANDLERS
// =============================================================================

func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	components, err := h.Master.Components(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ComponentDTO, len(components))
	for i, c := range components {
		dtos[i] = toComponentDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateComponent(w http.ResponseWriter, r *http.Request) {
	var req CreateComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	c := payroll.SalaryComponent{
		ID:      payroll.ComponentID(req.ID),
		Name:    req.Name,
		Kind:    payroll.ComponentKind(req.Kind),
		Method:  payroll.CalculationMethod(req.Method),
		Class:   payroll.WPSClass(req.WPSClass),
		Taxable: req.Taxable,
	}
	if err := h.Master.SaveComponent(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toComponentDTO(c))
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

// AssignComponent opens a new effective-dated interval. Assignments whose
// start falls inside a LOCKED period are rejected before the store sees them.
func (h *Handler) AssignComponent(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))

	var req AssignComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := payroll.ParseDate(req.EffectiveFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_from format (use YYYY-MM-DD)", err)
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	a := payroll.ComponentAssignment{
		ID:            newAssignmentID(employeeID, req.ComponentID, from),
		EmployeeID:    employeeID,
		ComponentID:   payroll.ComponentID(req.ComponentID),
		Amount:        amount,
		EffectiveFrom: from,
	}
	if req.EffectiveTo != "" {
		to, err := payroll.ParseDate(req.EffectiveTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_to format (use YYYY-MM-DD)", err)
			return
		}
		a.EffectiveTo = &to
	}

	if err := h.Periods.CheckDateAssignable(r.Context(), from); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Master.Assign(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

func (h *Handler) GetComponentHistory(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))
	componentID := payroll.ComponentID(chi.URLParam(r, "componentID"))

	history, err := h.Master.History(r.Context(), employeeID, componentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AssignmentDTO, len(history))
	for i, a := range history {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ResolveComponent(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))
	componentID := payroll.ComponentID(chi.URLParam(r, "componentID"))

	asOf := payroll.Today()
	if s := r.URL.Query().Get("as_of"); s != "" {
		d, err := payroll.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = d
	}
	a, err := h.Master.Resolve(r.Context(), employeeID, componentID, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

// SupersedeComponent closes the active interval and opens a new one - the
// only sanctioned way to change a salary amount.
func (h *Handler) SupersedeComponent(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))
	componentID := payroll.ComponentID(chi.URLParam(r, "componentID"))

	var req SupersedeComponentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asOf, err := payroll.ParseDate(req.AsOf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return
	}
	amount, err := parseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Periods.CheckDateAssignable(r.Context(), asOf); err != nil {
		writeDomainError(w, err)
		return
	}
	opened, err := h.Master.Supersede(r.Context(), employeeID, componentID, amount, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(opened))
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := payroll.ParseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start format (use YYYY-MM-DD)", err)
		return
	}
	end, err := payroll.ParseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end format (use YYYY-MM-DD)", err)
		return
	}
	p, err := h.Periods.Create(r.Context(), payroll.DateRange{Start: start, End: end}, req.PayMonth, req.PayYear)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(p))
}

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Periods.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Periods.Get(r.Context(), payroll.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

func (h *Handler) ApprovePeriod(w http.ResponseWriter, r *http.Request) {
	h.periodAction(w, r, func(id payroll.PeriodID, req PeriodActionRequest) error {
		return h.Periods.Approve(r.Context(), id, req.Actor)
	})
}

func (h *Handler) LockPeriod(w http.ResponseWriter, r *http.Request) {
	h.periodAction(w, r, func(id payroll.PeriodID, req PeriodActionRequest) error {
		return h.Periods.Lock(r.Context(), id, req.Actor)
	})
}

// ReopenPeriod is the guarded reverse edge. Requires actor and reason;
// blocked while PAID settlements reference the period.
func (h *Handler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	h.periodAction(w, r, func(id payroll.PeriodID, req PeriodActionRequest) error {
		return h.Periods.Reopen(r.Context(), id, req.Actor, req.Reason)
	})
}

func (h *Handler) periodAction(w http.ResponseWriter, r *http.Request, action func(payroll.PeriodID, PeriodActionRequest) error) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	var req PeriodActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := action(id, req); err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := h.Periods.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

func (h *Handler) GetPeriodAudit(w http.ResponseWriter, r *http.Request) {
	trail, err := h.Periods.AuditTrail(r.Context(), payroll.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]PeriodAuditDTO, len(trail))
	for i, e := range trail {
		dtos[i] = PeriodAuditDTO{
			Action: e.Action,
			Actor:  e.Actor,
			Reason: e.Reason,
			At:     e.At.UTC().Format(timestampFormat),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CALCULATION HANDLERS
// =============================================================================

func (h *Handler) CalculateEmployee(w http.ResponseWriter, r *http.Request) {
	periodID := payroll.PeriodID(chi.URLParam(r, "id"))
	employeeID := payroll.EmployeeID(chi.URLParam(r, "employeeID"))

	result, err := h.Engine.Calculate(r.Context(), periodID, employeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(result))
}

func (h *Handler) RunPeriod(w http.ResponseWriter, r *http.Request) {
	periodID := payroll.PeriodID(chi.URLParam(r, "id"))

	summary, err := h.Engine.RunPeriod(r.Context(), periodID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dto := RunSummaryDTO{
		PeriodID: string(periodID),
		Computed: summary.Computed,
		Failures: make([]FailureDTO, len(summary.Failures)),
	}
	for i, f := range summary.Failures {
		dto.Failures[i] = FailureDTO{EmployeeID: string(f.EmployeeID), Error: f.Err.Error()}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	periodID := payroll.PeriodID(chi.URLParam(r, "id"))
	employeeID := payroll.EmployeeID(chi.URLParam(r, "employeeID"))

	result, err := h.Results.GetResult(r.Context(), periodID, employeeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(result))
}

func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.Results.ResultsForPeriod(r.Context(), payroll.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ResultDTO, len(results))
	for i, res := range results {
		dtos[i] = toResultDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListPeriodDeductions reports every loan installment recorded against the
// period, the audit view of what the engine actually took.
func (h *Handler) ListPeriodDeductions(w http.ResponseWriter, r *http.Request) {
	deductions, err := h.Loans.DeductionsForPeriod(r.Context(), payroll.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AppliedDeductionDTO, len(deductions))
	for i, d := range deductions {
		dtos[i] = toAppliedDeductionDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportSIF renders the period's WPS bank file. All-or-nothing: a single
// missing compliance field fails the whole export with 400.
func (h *Handler) ExportSIF(w http.ResponseWriter, r *http.Request) {
	periodID := payroll.PeriodID(chi.URLParam(r, "id"))

	period, err := h.Periods.Get(r.Context(), periodID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	f, err := h.Exporter.Export(r.Context(), period)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "raw" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(periodID)+".sif"))
		w.Write([]byte(f.Content))
		return
	}
	writeJSON(w, http.StatusOK, SIFExportDTO{
		PeriodID:  string(f.PeriodID),
		Employees: len(f.Rows),
		TotalNet:  f.TotalNet.String(),
		Content:   f.Content,
	})
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	total, err := parseMoney(req.TotalAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_amount", err)
		return
	}
	installment, err := parseMoney(req.InstallmentAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid installment_amount", err)
		return
	}
	loan, err := h.Loans.Create(r.Context(),
		payroll.EmployeeID(req.EmployeeID), total, installment,
		payroll.PeriodID(req.StartPeriodID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(loan))
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.Loans.Get(r.Context(), payroll.LoanID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(loan))
}

func (h *Handler) ListEmployeeLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Loans.ForEmployee(r.Context(), payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]LoanDTO, len(loans))
	for i, l := range loans {
		dtos[i] = toLoanDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

func (h *Handler) ComputeSettlement(w http.ResponseWriter, r *http.Request) {
	var req ComputeSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	termination, err := payroll.ParseDate(req.TerminationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid termination_date format (use YYYY-MM-DD)", err)
		return
	}
	unusedLeave, err := parseDecimal(req.UnusedLeaveDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unused_leave_days", err)
		return
	}
	notice, err := parseMoneyOrZero(req.NoticePayAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid notice_pay_amount", err)
		return
	}
	earnings, err := parseMoneyOrZero(req.OtherEarnings)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid other_earnings", err)
		return
	}
	deductions, err := parseMoneyOrZero(req.OtherDeductions)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid other_deductions", err)
		return
	}

	s, err := h.Settlements.Compute(r.Context(), settlement.Input{
		EmployeeID:      payroll.EmployeeID(req.EmployeeID),
		PeriodID:        payroll.PeriodID(req.PeriodID),
		TerminationDate: termination,
		UnusedLeaveDays: unusedLeave,
		NoticePayAmount: notice,
		OtherEarnings:   earnings,
		OtherDeductions: deductions,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementDTO(s))
}

func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.SettlementStore.GetSettlement(r.Context(), payroll.SettlementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

func (h *Handler) ListEmployeeSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := h.SettlementStore.SettlementsForEmployee(r.Context(), payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]SettlementDTO, len(settlements))
	for i, s := range settlements {
		dtos[i] = toSettlementDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApproveSettlement(w http.ResponseWriter, r *http.Request) {
	h.settlementAction(w, r, h.Settlements.Approve)
}

func (h *Handler) PaySettlement(w http.ResponseWriter, r *http.Request) {
	h.settlementAction(w, r, h.Settlements.MarkPaid)
}

func (h *Handler) settlementAction(w http.ResponseWriter, r *http.Request, action func(context.Context, payroll.SettlementID) error) {
	id := payroll.SettlementID(chi.URLParam(r, "id"))
	if err := action(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	s, err := h.SettlementStore.GetSettlement(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// PutSummary writes an attendance summary through the feed, which rejects
// the write unless the target period is in DRAFT.
func (h *Handler) PutSummary(w http.ResponseWriter, r *http.Request) {
	var req PutSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	summary := payroll.AttendanceSummary{
		EmployeeID:       payroll.EmployeeID(req.EmployeeID),
		PeriodID:         payroll.PeriodID(req.PeriodID),
		WorkedMinutes:    req.WorkedMinutes,
		ScheduledMinutes: req.ScheduledMinutes,
		OvertimeMinutes:  make(map[payroll.OvertimeCategory]int, len(req.OvertimeMinutes)),
	}
	for cat, minutes := range req.OvertimeMinutes {
		summary.OvertimeMinutes[payroll.OvertimeCategory(cat)] = minutes
	}
	for _, entry := range req.UnpaidLeave {
		days, err := parseDecimal(entry.Days)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unpaid_leave days", err)
			return
		}
		summary.UnpaidLeave = append(summary.UnpaidLeave, payroll.UnpaidLeaveEntry{
			LeaveTypeID: payroll.LeaveTypeID(entry.LeaveTypeID),
			Days:        days,
		})
	}
	if req.AbsenceDays != "" {
		days, err := parseDecimal(req.AbsenceDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid absence_days", err)
			return
		}
		summary.AbsenceDays = days
	}

	if err := h.Attendance.Put(r.Context(), summary); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

func (h *Handler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	var req SubmitApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	request, err := h.Approvals.Submit(r.Context(),
		approval.RequestType(req.Type), req.ReferenceID,
		payroll.EmployeeID(req.SubjectEmployee))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toApprovalDTO(request))
}

func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending := h.Approvals.Pending()
	dtos := make([]ApprovalRequestDTO, len(pending))
	for i, req := range pending {
		dtos[i] = toApprovalDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetApproval(w http.ResponseWriter, r *http.Request) {
	request, err := h.Approvals.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(request))
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decideApproval(w, r, approval.StatusApproved)
}

func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decideApproval(w, r, approval.StatusRejected)
}

func (h *Handler) decideApproval(w http.ResponseWriter, r *http.Request, outcome approval.Status) {
	var req DecideApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	decided, err := h.Approvals.Decide(r.Context(), chi.URLParam(r, "id"), outcome, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(decided))
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMoney(s string) (payroll.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return payroll.Money{}, err
	}
	return payroll.Money{Value: d}, nil
}

// parseMoneyOrZero treats absent amounts as zero; settlements often have no
// notice pay or extra earnings.
func parseMoneyOrZero(s string) (payroll.Money, error) {
	if s == "" {
		return payroll.ZeroMoney(), nil
	}
	return parseMoney(s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func newAssignmentID(employeeID payroll.EmployeeID, componentID string, from payroll.Date) string {
	return fmt.Sprintf("%s:%s:%s", employeeID, componentID, from)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case payroll.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case payroll.IsState(err):
		writeError(w, http.StatusConflict, "State conflict", err)
	case payroll.IsComputation(err):
		writeError(w, http.StatusUnprocessableEntity, "Computation failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
