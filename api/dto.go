/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNT FORMAT:
  Monetary amounts travel as strings with two decimal places ("8000.00"),
  never as JSON numbers - float64 round-tripping is how payroll figures get
  corrupted. Dates are YYYY-MM-DD strings.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"github.com/warp/payroll-engine/approval"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	IBAN            string `json:"iban,omitempty"`
	MOHREPersonID   string `json:"mohre_person_id,omitempty"`
	LaborCardNumber string `json:"labor_card_number,omitempty"`
	JoiningDate     string `json:"joining_date"`
	WPSEligible     bool   `json:"wps_eligible"`
	BasicComponent  string `json:"basic_component"`
}

type CreateEmployeeRequest struct {
	ID              string `json:"id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
	IBAN            string `json:"iban"`
	MOHREPersonID   string `json:"mohre_person_id"`
	LaborCardNumber string `json:"labor_card_number"`
	JoiningDate     string `json:"joining_date"`
	WPSEligible     bool   `json:"wps_eligible"`
	BasicComponent  string `json:"basic_component"`
}

func toEmployeeDTO(e payroll.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:              string(e.ID),
		Code:            e.Code,
		Name:            e.Name,
		IBAN:            e.IBAN,
		MOHREPersonID:   e.MOHREPersonID,
		LaborCardNumber: e.LaborCardNumber,
		JoiningDate:     e.JoiningDate.String(),
		WPSEligible:     e.WPSEligible,
		BasicComponent:  string(e.BasicComponent),
	}
}

// =============================================================================
// COMPONENTS & ASSIGNMENTS
// =============================================================================

type ComponentDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Method   string `json:"method"`
	WPSClass string `json:"wps_class"`
	Taxable  bool   `json:"taxable"`
}

type CreateComponentRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Method   string `json:"method"`
	WPSClass string `json:"wps_class"`
	Taxable  bool   `json:"taxable"`
}

func toComponentDTO(c payroll.SalaryComponent) ComponentDTO {
	return ComponentDTO{
		ID:       string(c.ID),
		Name:     c.Name,
		Kind:     string(c.Kind),
		Method:   string(c.Method),
		WPSClass: string(c.Class),
		Taxable:  c.Taxable,
	}
}

type AssignmentDTO struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	ComponentID   string `json:"component_id"`
	Amount        string `json:"amount"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

type AssignComponentRequest struct {
	ComponentID   string `json:"component_id"`
	Amount        string `json:"amount"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

type SupersedeComponentRequest struct {
	Amount string `json:"amount"`
	AsOf   string `json:"as_of"`
}

func toAssignmentDTO(a payroll.ComponentAssignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:            a.ID,
		EmployeeID:    string(a.EmployeeID),
		ComponentID:   string(a.ComponentID),
		Amount:        a.Amount.String(),
		EffectiveFrom: a.EffectiveFrom.String(),
	}
	if a.EffectiveTo != nil {
		dto.EffectiveTo = a.EffectiveTo.String()
	}
	return dto
}

// =============================================================================
// PERIODS
// =============================================================================

type PeriodDTO struct {
	ID       string `json:"id"`
	Start    string `json:"start"`
	End      string `json:"end"`
	PayMonth int    `json:"pay_month"`
	PayYear  int    `json:"pay_year"`
	Status   string `json:"status"`
	LockedAt string `json:"locked_at,omitempty"`
	LockedBy string `json:"locked_by,omitempty"`
}

type CreatePeriodRequest struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	PayMonth int    `json:"pay_month"`
	PayYear  int    `json:"pay_year"`
}

type PeriodActionRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

type PeriodAuditDTO struct {
	Action string `json:"action"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
	At     string `json:"at"`
}

func toPeriodDTO(p payroll.PayrollPeriod) PeriodDTO {
	dto := PeriodDTO{
		ID:       string(p.ID),
		Start:    p.Range.Start.String(),
		End:      p.Range.End.String(),
		PayMonth: p.PayMonth,
		PayYear:  p.PayYear,
		Status:   string(p.Status),
		LockedBy: p.LockedBy,
	}
	if p.LockedAt != nil {
		dto.LockedAt = p.LockedAt.UTC().Format(timestampFormat)
	}
	return dto
}

const timestampFormat = "2006-01-02T15:04:05Z07:00"

// =============================================================================
// RESULTS
// =============================================================================

type ResultDTO struct {
	PeriodID       string `json:"period_id"`
	EmployeeID     string `json:"employee_id"`
	DaysWorked     string `json:"days_worked"`
	FixedAmount    string `json:"fixed_amount"`
	VariableAmount string `json:"variable_amount"`
	Gross          string `json:"gross"`
	Deductions     string `json:"deductions"`
	Net            string `json:"net"`
	GeneratedAt    string `json:"generated_at"`
}

func toResultDTO(r payroll.PayrollResult) ResultDTO {
	return ResultDTO{
		PeriodID:       string(r.PeriodID),
		EmployeeID:     string(r.EmployeeID),
		DaysWorked:     r.DaysWorked.String(),
		FixedAmount:    r.FixedAmount.String(),
		VariableAmount: r.VariableAmount.String(),
		Gross:          r.Gross.String(),
		Deductions:     r.Deductions.String(),
		Net:            r.Net.String(),
		GeneratedAt:    r.GeneratedAt.UTC().Format(timestampFormat),
	}
}

type RunSummaryDTO struct {
	PeriodID string       `json:"period_id"`
	Computed int          `json:"computed"`
	Failures []FailureDTO `json:"failures"`
}

type FailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

// =============================================================================
// LOANS
// =============================================================================

type LoanDTO struct {
	ID                string `json:"id"`
	EmployeeID        string `json:"employee_id"`
	TotalAmount       string `json:"total_amount"`
	InstallmentAmount string `json:"installment_amount"`
	RemainingBalance  string `json:"remaining_balance"`
	StartPeriodID     string `json:"start_period_id"`
	Status            string `json:"status"`
}

type CreateLoanRequest struct {
	EmployeeID        string `json:"employee_id"`
	TotalAmount       string `json:"total_amount"`
	InstallmentAmount string `json:"installment_amount"`
	StartPeriodID     string `json:"start_period_id"`
}

func toLoanDTO(l payroll.EmployeeLoan) LoanDTO {
	return LoanDTO{
		ID:                string(l.ID),
		EmployeeID:        string(l.EmployeeID),
		TotalAmount:       l.TotalAmount.String(),
		InstallmentAmount: l.InstallmentAmount.String(),
		RemainingBalance:  l.RemainingBalance.String(),
		StartPeriodID:     string(l.StartPeriodID),
		Status:            string(l.Status),
	}
}

type AppliedDeductionDTO struct {
	LoanID    string `json:"loan_id"`
	PeriodID  string `json:"period_id"`
	Amount    string `json:"amount"`
	AppliedAt string `json:"applied_at"`
}

func toAppliedDeductionDTO(d payroll.AppliedDeduction) AppliedDeductionDTO {
	return AppliedDeductionDTO{
		LoanID:    string(d.LoanID),
		PeriodID:  string(d.PeriodID),
		Amount:    d.Amount.String(),
		AppliedAt: d.AppliedAt.UTC().Format(timestampFormat),
	}
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

type SettlementDTO struct {
	ID                    string `json:"id"`
	EmployeeID            string `json:"employee_id"`
	PeriodID              string `json:"period_id"`
	TerminationDate       string `json:"termination_date"`
	GratuityAmount        string `json:"gratuity_amount"`
	LeaveEncashmentAmount string `json:"leave_encashment_amount"`
	NoticePayAmount       string `json:"notice_pay_amount"`
	OtherEarnings         string `json:"other_earnings"`
	OtherDeductions       string `json:"other_deductions"`
	TotalPayable          string `json:"total_payable"`
	Status                string `json:"status"`
}

type ComputeSettlementRequest struct {
	EmployeeID      string `json:"employee_id"`
	PeriodID        string `json:"period_id"`
	TerminationDate string `json:"termination_date"`
	UnusedLeaveDays string `json:"unused_leave_days"`
	NoticePayAmount string `json:"notice_pay_amount"`
	OtherEarnings   string `json:"other_earnings"`
	OtherDeductions string `json:"other_deductions"`
}

func toSettlementDTO(s payroll.FinalSettlement) SettlementDTO {
	return SettlementDTO{
		ID:                    string(s.ID),
		EmployeeID:            string(s.EmployeeID),
		PeriodID:              string(s.PeriodID),
		TerminationDate:       s.TerminationDate.String(),
		GratuityAmount:        s.GratuityAmount.String(),
		LeaveEncashmentAmount: s.LeaveEncashmentAmount.String(),
		NoticePayAmount:       s.NoticePayAmount.String(),
		OtherEarnings:         s.OtherEarnings.String(),
		OtherDeductions:       s.OtherDeductions.String(),
		TotalPayable:          s.TotalPayable.String(),
		Status:                string(s.Status),
	}
}

// =============================================================================
// WPS EXPORT
// =============================================================================

type SIFExportDTO struct {
	PeriodID  string `json:"period_id"`
	Employees int    `json:"employees"`
	TotalNet  string `json:"total_net"`
	Content   string `json:"content"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type UnpaidLeaveEntryDTO struct {
	LeaveTypeID string `json:"leave_type_id"`
	Days        string `json:"days"`
}

type PutSummaryRequest struct {
	EmployeeID       string                `json:"employee_id"`
	PeriodID         string                `json:"period_id"`
	WorkedMinutes    int                   `json:"worked_minutes"`
	ScheduledMinutes int                   `json:"scheduled_minutes"`
	OvertimeMinutes  map[string]int        `json:"overtime_minutes"`
	UnpaidLeave      []UnpaidLeaveEntryDTO `json:"unpaid_leave"`
	AbsenceDays      string                `json:"absence_days"`
}

// =============================================================================
// APPROVALS
// =============================================================================

type ApprovalRequestDTO struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ReferenceID     string `json:"reference_id"`
	SubjectEmployee string `json:"subject_employee"`
	Status          string `json:"status"`
	SubmittedAt     string `json:"submitted_at"`
	DecidedAt       string `json:"decided_at,omitempty"`
	DecidedBy       string `json:"decided_by,omitempty"`
}

type SubmitApprovalRequest struct {
	Type            string `json:"type"`
	ReferenceID     string `json:"reference_id"`
	SubjectEmployee string `json:"subject_employee"`
}

type DecideApprovalRequest struct {
	Actor string `json:"actor"`
}

func toApprovalDTO(r approval.Request) ApprovalRequestDTO {
	dto := ApprovalRequestDTO{
		ID:              r.ID,
		Type:            string(r.Type),
		ReferenceID:     r.ReferenceID,
		SubjectEmployee: string(r.SubjectEmployee),
		Status:          string(r.Status),
		SubmittedAt:     r.SubmittedAt.UTC().Format(timestampFormat),
		DecidedBy:       r.DecidedBy,
	}
	if r.DecidedAt != nil {
		dto.DecidedAt = r.DecidedAt.UTC().Format(timestampFormat)
	}
	return dto
}
