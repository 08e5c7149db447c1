/*
attendance.go - Gated write path for attendance summaries

PURPOSE:
  The attendance pipeline (out of scope here) produces normalized period
  summaries and pushes them through this feed. The feed is where the period
  manager's soft/hard locks bite: a regeneration targeting a DRAFT period
  goes through, anything else is rejected with PeriodLockedError. The
  approval coordinator's APPROVED events land here too - it never inspects
  lock state itself.
*/
package payroll

import (
	"context"

	"go.uber.org/zap"
)

// AttendanceFeed is the sole write path for attendance summaries inside the
// engine boundary. Reads go directly through AttendanceSource.
type AttendanceFeed struct {
	Sink    AttendanceSink
	Periods *PeriodManager
	Logger  *zap.Logger
}

func NewAttendanceFeed(sink AttendanceSink, periods *PeriodManager, logger *zap.Logger) *AttendanceFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceFeed{Sink: sink, Periods: periods, Logger: logger}
}

// Put stores a summary after checking the target period is still editable.
func (f *AttendanceFeed) Put(ctx context.Context, s AttendanceSummary) error {
	if err := f.Periods.CheckUpstreamEditable(ctx, s.PeriodID); err != nil {
		return err
	}
	return f.Sink.PutSummary(ctx, s)
}

// Regenerate is the entry point for approval-driven regeneration. The
// regenerator callback rebuilds the summary from raw events; it only runs
// when the period permits the write.
func (f *AttendanceFeed) Regenerate(ctx context.Context, employeeID EmployeeID, periodID PeriodID, regenerate func(context.Context) (AttendanceSummary, error)) error {
	if err := f.Periods.CheckUpstreamEditable(ctx, periodID); err != nil {
		return err
	}
	s, err := regenerate(ctx)
	if err != nil {
		return err
	}
	if err := f.Sink.PutSummary(ctx, s); err != nil {
		return err
	}
	f.Logger.Info("attendance summary regenerated",
		zap.String("employee", string(employeeID)),
		zap.String("period", string(periodID)))
	return nil
}
