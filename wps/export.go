/*
Package wps renders computed payroll results into the Salary Information
File (SIF), the fixed-field batch format UAE banks accept for Wage
Protection System submissions.

FILE LAYOUT (comma-separated, one record per line):
  Header record (exactly one, first line):
    1,<establishment number>,<bank routing code>,<MM>,<YYYY>,<employee count>,<total net>,<currency>
  Employee record (one per WPS-eligible employee with a payroll result):
    2,<bank routing code>,<IBAN>,<name>,<person identifier>,<employee code>,<days worked>,<fixed amount>,<variable amount>

Field order and presence are exact-match requirements of the receiving
bank. The exporter never reorders, omits, or defaults a field: validation
runs over the whole batch first, and any missing mandatory field fails
the entire export before a single row is rendered. Amounts render with
two decimal places.

The exporter is pure and stateless. It reads results and master data,
writes nothing, and holds no locks; callers export LOCKED periods by
convention but nothing here enforces it.
*/
package wps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

// Exporter renders one period's results into a SIF payload.
type Exporter struct {
	Results   payroll.ResultStore
	Directory payroll.EmployeeDirectory
	Settings  payroll.OrgSettings
	Logger    *zap.Logger
}

func NewExporter(results payroll.ResultStore, directory payroll.EmployeeDirectory, settings payroll.OrgSettings, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{Results: results, Directory: directory, Settings: settings, Logger: logger}
}

// Row pairs an employee with their computed result, post-validation.
type Row struct {
	Employee payroll.Employee
	Result   payroll.PayrollResult
}

// File is a validated, rendered SIF batch.
type File struct {
	PeriodID payroll.PeriodID
	Rows     []Row
	TotalNet payroll.Money
	Content  string
}

// Export builds the SIF payload for the period. Non-WPS-eligible employees
// are skipped, not failed. Returns IncompleteComplianceDataError listing
// every missing field when validation fails; no partial file is produced.
// Establishments outside the wage-protection scheme cannot export at all.
func (e *Exporter) Export(ctx context.Context, period payroll.PayrollPeriod) (File, error) {
	if !e.Settings.WPSApplicable {
		return File{}, payroll.ErrWPSNotApplicable
	}

	results, err := e.Results.ResultsForPeriod(ctx, period.ID)
	if err != nil {
		return File{}, err
	}

	rows := make([]Row, 0, len(results))
	for _, r := range results {
		emp, err := e.Directory.Employee(ctx, r.EmployeeID)
		if err != nil {
			return File{}, fmt.Errorf("employee %s: %w", r.EmployeeID, err)
		}
		if !emp.WPSEligible {
			continue
		}
		rows = append(rows, Row{Employee: emp, Result: r})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Employee.ID < rows[j].Employee.ID })

	if missing := e.validate(rows); len(missing) > 0 {
		return File{}, &payroll.IncompleteComplianceDataError{Missing: missing}
	}

	total := payroll.ZeroMoney()
	for _, row := range rows {
		total = total.Add(row.Result.Net)
	}

	f := File{
		PeriodID: period.ID,
		Rows:     rows,
		TotalNet: total,
		Content:  e.render(period, rows, total),
	}
	e.Logger.Info("sif exported",
		zap.String("period", string(period.ID)),
		zap.Int("employees", len(rows)),
		zap.String("total_net", total.String()))
	return f, nil
}

// validate collects every missing mandatory field across the organization
// and all rows. It never stops at the first problem: the caller gets the
// complete repair list in one failure.
func (e *Exporter) validate(rows []Row) []string {
	var missing []string
	if e.Settings.MOHREEstablishmentNumber == "" {
		missing = append(missing, "organization: establishment number")
	}
	if e.Settings.WPSBankRoutingCode == "" {
		missing = append(missing, "organization: bank routing code")
	}
	if e.Settings.Currency == "" {
		missing = append(missing, "organization: currency code")
	}
	for _, row := range rows {
		emp := row.Employee
		if emp.IBAN == "" {
			missing = append(missing, fmt.Sprintf("employee %s: IBAN", emp.ID))
		}
		if emp.PersonIdentifier() == "" {
			missing = append(missing, fmt.Sprintf("employee %s: person identifier", emp.ID))
		}
		if emp.Code == "" {
			missing = append(missing, fmt.Sprintf("employee %s: employee code", emp.ID))
		}
	}
	return missing
}

// render produces the file body. Only called after validation passes.
func (e *Exporter) render(period payroll.PayrollPeriod, rows []Row, total payroll.Money) string {
	var b strings.Builder
	fmt.Fprintf(&b, "1,%s,%s,%02d,%04d,%d,%s,%s\n",
		e.Settings.MOHREEstablishmentNumber,
		e.Settings.WPSBankRoutingCode,
		period.PayMonth,
		period.PayYear,
		len(rows),
		total,
		e.Settings.Currency,
	)
	for _, row := range rows {
		fmt.Fprintf(&b, "2,%s,%s,%s,%s,%s,%s,%s,%s\n",
			e.Settings.WPSBankRoutingCode,
			row.Employee.IBAN,
			row.Employee.Name,
			row.Employee.PersonIdentifier(),
			row.Employee.Code,
			row.Result.DaysWorked,
			row.Result.FixedAmount,
			row.Result.VariableAmount,
		)
	}
	return b.String()
}
