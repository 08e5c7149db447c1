/*
scheduler.go - Automated period opening

PURPOSE:
  Periodically makes sure the current calendar month has a payroll period,
  so attendance summaries always have a DRAFT period to land in at the start
  of a month.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Creates the current month's period when it does not exist yet
  - A period that already exists is left untouched, whatever its status

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPeriodScheduler(periods, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreatePeriod endpoint (manual period creation)
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

// PeriodScheduler keeps a DRAFT period open for the current pay month.
type PeriodScheduler struct {
	Periods       *payroll.PeriodManager
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodScheduler creates a new scheduler.
func NewPeriodScheduler(periods *payroll.PeriodManager, logger *zap.Logger) *PeriodScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodScheduler{
		Periods:       periods,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ps *PeriodScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.Logger.Info("period scheduler disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	ps.Logger.Info("period scheduler started",
		zap.Duration("interval", ps.CheckInterval))
}

// Stop stops the scheduler.
func (ps *PeriodScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.Logger.Info("period scheduler stopped")
	}
}

func (ps *PeriodScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.ensureCurrentPeriod()

	for {
		select {
		case <-ps.ticker.C:
			ps.ensureCurrentPeriod()
		case <-ps.stop:
			return
		}
	}
}

func (ps *PeriodScheduler) ensureCurrentPeriod() {
	ctx := context.Background()
	today := payroll.Today()
	year, month := today.Year(), today.Month()

	p, err := ps.Periods.Create(ctx, payroll.DateRange{
		Start: payroll.StartOfMonth(year, month),
		End:   payroll.EndOfMonth(year, month),
	}, int(month), year)
	if err != nil {
		if errors.Is(err, payroll.ErrDuplicatePeriod) {
			return
		}
		ps.Logger.Error("failed to open current period", zap.Error(err))
		return
	}

	ps.Logger.Info("opened current pay period",
		zap.String("period", string(p.ID)),
		zap.String("range", p.Range.String()))
}

// RunNow triggers an immediate check (for testing/admin).
func (ps *PeriodScheduler) RunNow() {
	ps.ensureCurrentPeriod()
}
