// Package store provides in-memory implementations of the payroll
// persistence interfaces, used by tests and the dev server.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements every store interface the engine consumes. A single
// RWMutex guards all maps; the production SQLite store relies on database
// transactions instead.
type Memory struct {
	mu sync.RWMutex

	components  map[payroll.ComponentID]payroll.SalaryComponent
	assignments map[assignmentKey][]payroll.ComponentAssignment

	periods map[payroll.PeriodID]payroll.PayrollPeriod
	audits  map[payroll.PeriodID][]payroll.PeriodAudit

	results map[resultKey]payroll.PayrollResult

	loans      map[payroll.LoanID]payroll.EmployeeLoan
	deductions map[deductionKey]payroll.AppliedDeduction

	settlements map[payroll.SettlementID]payroll.FinalSettlement

	summaries map[resultKey]payroll.AttendanceSummary

	employees  map[payroll.EmployeeID]payroll.Employee
	leaveTypes map[payroll.LeaveTypeID]payroll.LeaveType
}

type assignmentKey struct {
	EmployeeID  payroll.EmployeeID
	ComponentID payroll.ComponentID
}

type resultKey struct {
	PeriodID   payroll.PeriodID
	EmployeeID payroll.EmployeeID
}

type deductionKey struct {
	LoanID   payroll.LoanID
	PeriodID payroll.PeriodID
}

func NewMemory() *Memory {
	return &Memory{
		components:  make(map[payroll.ComponentID]payroll.SalaryComponent),
		assignments: make(map[assignmentKey][]payroll.ComponentAssignment),
		periods:     make(map[payroll.PeriodID]payroll.PayrollPeriod),
		audits:      make(map[payroll.PeriodID][]payroll.PeriodAudit),
		results:     make(map[resultKey]payroll.PayrollResult),
		loans:       make(map[payroll.LoanID]payroll.EmployeeLoan),
		deductions:  make(map[deductionKey]payroll.AppliedDeduction),
		settlements: make(map[payroll.SettlementID]payroll.FinalSettlement),
		summaries:   make(map[resultKey]payroll.AttendanceSummary),
		employees:   make(map[payroll.EmployeeID]payroll.Employee),
		leaveTypes:  make(map[payroll.LeaveTypeID]payroll.LeaveType),
	}
}

// =============================================================================
// COMPONENT CATALOG + MASTER DATA SEEDING
// =============================================================================

func (m *Memory) SaveComponent(_ context.Context, c payroll.SalaryComponent) error {
	m.PutComponent(c)
	return nil
}

func (m *Memory) PutComponent(c payroll.SalaryComponent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[c.ID] = c
}

func (m *Memory) Component(_ context.Context, id payroll.ComponentID) (payroll.SalaryComponent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.components[id]
	if !ok {
		return payroll.SalaryComponent{}, payroll.ErrComponentNotFound
	}
	return c, nil
}

func (m *Memory) Components(_ context.Context) ([]payroll.SalaryComponent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.SalaryComponent, 0, len(m.components))
	for _, c := range m.components {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutEmployee(e payroll.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e
}

func (m *Memory) SaveEmployee(_ context.Context, e payroll.Employee) error {
	m.PutEmployee(e)
	return nil
}

func (m *Memory) Employee(_ context.Context, id payroll.EmployeeID) (payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return payroll.Employee{}, payroll.ErrEmployeeNotFound
	}
	return e, nil
}

func (m *Memory) Employees(_ context.Context) ([]payroll.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutLeaveType(lt payroll.LeaveType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveTypes[lt.ID] = lt
}

func (m *Memory) SaveLeaveType(_ context.Context, lt payroll.LeaveType) error {
	m.PutLeaveType(lt)
	return nil
}

func (m *Memory) LeaveType(_ context.Context, id payroll.LeaveTypeID) (payroll.LeaveType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lt, ok := m.leaveTypes[id]
	if !ok {
		return payroll.LeaveType{}, payroll.ErrComponentNotFound
	}
	return lt, nil
}

// =============================================================================
// COMPONENT STORE
// =============================================================================

func (m *Memory) Assign(_ context.Context, a payroll.ComponentAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := assignmentKey{EmployeeID: a.EmployeeID, ComponentID: a.ComponentID}
	updated, err := payroll.InsertAssignment(m.assignments[k], a)
	if err != nil {
		return err
	}
	m.assignments[k] = updated
	return nil
}

func (m *Memory) Resolve(_ context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID, asOf payroll.Date) (payroll.ComponentAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := assignmentKey{EmployeeID: employeeID, ComponentID: componentID}
	a, ok := payroll.ResolveAssignment(m.assignments[k], asOf)
	if !ok {
		return payroll.ComponentAssignment{}, payroll.ErrAssignmentNotFound
	}
	return a, nil
}

func (m *Memory) Supersede(_ context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID, newAmount payroll.Money, asOf payroll.Date) (payroll.ComponentAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := assignmentKey{EmployeeID: employeeID, ComponentID: componentID}
	updated, opened, err := payroll.SupersedeAssignment(m.assignments[k], newAmount, asOf, time.Now().UTC())
	if err != nil {
		return payroll.ComponentAssignment{}, err
	}
	m.assignments[k] = updated
	return opened, nil
}

func (m *Memory) History(_ context.Context, employeeID payroll.EmployeeID, componentID payroll.ComponentID) ([]payroll.ComponentAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := assignmentKey{EmployeeID: employeeID, ComponentID: componentID}
	out := make([]payroll.ComponentAssignment, len(m.assignments[k]))
	copy(out, m.assignments[k])
	return out, nil
}

func (m *Memory) ComponentsForEmployee(_ context.Context, employeeID payroll.EmployeeID) ([]payroll.ComponentID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.ComponentID
	for k := range m.assignments {
		if k.EmployeeID == employeeID {
			out = append(out, k.ComponentID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// PERIOD STORE
// =============================================================================

func (m *Memory) CreatePeriod(_ context.Context, p payroll.PayrollPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.periods {
		if existing.PayMonth == p.PayMonth && existing.PayYear == p.PayYear {
			return payroll.ErrDuplicatePeriod
		}
	}
	m.periods[p.ID] = p
	return nil
}

func (m *Memory) GetPeriod(_ context.Context, id payroll.PeriodID) (payroll.PayrollPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[id]
	if !ok {
		return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
	}
	return p, nil
}

func (m *Memory) PeriodForDate(_ context.Context, d payroll.Date) (payroll.PayrollPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.periods {
		if p.Range.Contains(d) {
			return p, nil
		}
	}
	return payroll.PayrollPeriod{}, payroll.ErrPeriodNotFound
}

func (m *Memory) ListPeriods(_ context.Context) ([]payroll.PayrollPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.PayrollPeriod, 0, len(m.periods))
	for _, p := range m.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PayYear != out[j].PayYear {
			return out[i].PayYear < out[j].PayYear
		}
		return out[i].PayMonth < out[j].PayMonth
	})
	return out, nil
}

func (m *Memory) TransitionPeriod(_ context.Context, id payroll.PeriodID, from, to payroll.PeriodStatus, lockedAt *time.Time, lockedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.periods[id]
	if !ok {
		return payroll.ErrPeriodNotFound
	}
	if p.Status != from {
		return payroll.ErrConflictingTransition
	}
	p.Status = to
	if lockedAt != nil {
		p.LockedAt = lockedAt
		p.LockedBy = lockedBy
	}
	m.periods[id] = p
	return nil
}

func (m *Memory) AppendPeriodAudit(_ context.Context, e payroll.PeriodAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits[e.PeriodID] = append(m.audits[e.PeriodID], e)
	return nil
}

func (m *Memory) PeriodAuditTrail(_ context.Context, id payroll.PeriodID) ([]payroll.PeriodAudit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.PeriodAudit, len(m.audits[id]))
	copy(out, m.audits[id])
	return out, nil
}

// =============================================================================
// RESULT STORE
// =============================================================================

func (m *Memory) SaveResult(_ context.Context, r payroll.PayrollResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[resultKey{PeriodID: r.PeriodID, EmployeeID: r.EmployeeID}] = r
	return nil
}

func (m *Memory) GetResult(_ context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) (payroll.PayrollResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[resultKey{PeriodID: periodID, EmployeeID: employeeID}]
	if !ok {
		return payroll.PayrollResult{}, payroll.ErrResultNotFound
	}
	return r, nil
}

func (m *Memory) ResultsForPeriod(_ context.Context, periodID payroll.PeriodID) ([]payroll.PayrollResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.PayrollResult
	for k, r := range m.results {
		if k.PeriodID == periodID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

// =============================================================================
// LOAN STORE
// =============================================================================

func (m *Memory) SaveLoan(_ context.Context, l payroll.EmployeeLoan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[l.ID] = l
	return nil
}

func (m *Memory) GetLoan(_ context.Context, id payroll.LoanID) (payroll.EmployeeLoan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loans[id]
	if !ok {
		return payroll.EmployeeLoan{}, payroll.ErrLoanNotFound
	}
	return l, nil
}

func (m *Memory) LoansForEmployee(_ context.Context, employeeID payroll.EmployeeID) ([]payroll.EmployeeLoan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.EmployeeLoan
	for _, l := range m.loans {
		if l.EmployeeID == employeeID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateLoanBalance(_ context.Context, id payroll.LoanID, remaining payroll.Money, status payroll.LoanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loans[id]
	if !ok {
		return payroll.ErrLoanNotFound
	}
	l.RemainingBalance = remaining
	l.Status = status
	m.loans[id] = l
	return nil
}

func (m *Memory) RecordDeduction(_ context.Context, d payroll.AppliedDeduction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := deductionKey{LoanID: d.LoanID, PeriodID: d.PeriodID}
	if _, exists := m.deductions[k]; exists {
		return payroll.ErrDeductionApplied
	}
	m.deductions[k] = d
	return nil
}

func (m *Memory) Deduction(_ context.Context, loanID payroll.LoanID, periodID payroll.PeriodID) (payroll.AppliedDeduction, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deductions[deductionKey{LoanID: loanID, PeriodID: periodID}]
	return d, ok, nil
}

func (m *Memory) DeductionsForPeriod(_ context.Context, periodID payroll.PeriodID) ([]payroll.AppliedDeduction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.AppliedDeduction
	for k, d := range m.deductions {
		if k.PeriodID == periodID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoanID < out[j].LoanID })
	return out, nil
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

func (m *Memory) SaveSettlement(_ context.Context, s payroll.FinalSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[s.ID] = s
	return nil
}

func (m *Memory) GetSettlement(_ context.Context, id payroll.SettlementID) (payroll.FinalSettlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settlements[id]
	if !ok {
		return payroll.FinalSettlement{}, payroll.ErrSettlementNotFound
	}
	return s, nil
}

func (m *Memory) SettlementsForEmployee(_ context.Context, employeeID payroll.EmployeeID) ([]payroll.FinalSettlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.FinalSettlement
	for _, s := range m.settlements {
		if s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TransitionSettlement(_ context.Context, id payroll.SettlementID, from, to payroll.SettlementStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[id]
	if !ok {
		return payroll.ErrSettlementNotFound
	}
	if s.Status != from {
		return payroll.ErrConflictingTransition
	}
	s.Status = to
	m.settlements[id] = s
	return nil
}

func (m *Memory) PaidSettlementsForPeriod(_ context.Context, periodID payroll.PeriodID) ([]payroll.FinalSettlement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.FinalSettlement
	for _, s := range m.settlements {
		if s.PeriodID == periodID && s.Status == payroll.SettlementPaid {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ATTENDANCE SOURCE / SINK
// =============================================================================

func (m *Memory) PutSummary(_ context.Context, s payroll.AttendanceSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[resultKey{PeriodID: s.PeriodID, EmployeeID: s.EmployeeID}] = s
	return nil
}

func (m *Memory) PeriodSummary(_ context.Context, employeeID payroll.EmployeeID, periodID payroll.PeriodID) (payroll.AttendanceSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[resultKey{PeriodID: periodID, EmployeeID: employeeID}]
	if !ok {
		return payroll.AttendanceSummary{}, payroll.ErrSummaryNotFound
	}
	return s, nil
}
