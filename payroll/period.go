/*
period.go - Payroll period lifecycle and lock state machine

PURPOSE:
  A payroll period gates every financial mutation in the engine:

      DRAFT ----> APPROVED ----> LOCKED
        ^                          |
        +------- reopen -----------+   (audited administrative action)

  DRAFT:    unrestricted recomputation, upstream edits allowed
  APPROVED: results may still be regenerated, but upstream attendance and
            leave records for the period's range are frozen (soft lock)
  LOCKED:   results, in-range component assignments, and in-range attendance
            are all frozen; mutations fail with PeriodLockedError

  Reopen is the only reverse edge. It requires an actor and a reason, writes
  an audit entry, and refuses to proceed while a PAID final settlement is
  tied to the period (SettlementConflictError - manual resolution, never a
  silent void).

CONCURRENCY:
  Transitions are a compare-and-swap on status under a period-scoped mutex.
  Concurrent transitions on the same period serialize; the loser observes
  ConflictingTransitionError.

SEE ALSO:
  - engine.go: checks the lock state around every calculation commit
  - store.go: PeriodStore contract
*/
package payroll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// PAYROLL PERIOD
// =============================================================================

type PeriodStatus string

const (
	PeriodDraft    PeriodStatus = "DRAFT"
	PeriodApproved PeriodStatus = "APPROVED"
	PeriodLocked   PeriodStatus = "LOCKED"
)

// PayrollPeriod is one pay cycle. Exactly one period exists per
// (payMonth, payYear).
type PayrollPeriod struct {
	ID       PeriodID
	Range    DateRange
	PayMonth int
	PayYear  int
	Status   PeriodStatus
	LockedAt *time.Time
	LockedBy string
}

// =============================================================================
// KEYED MUTEX - Per-key serialization
// =============================================================================

// keyedMutex hands out one mutex per string key. Used to serialize period
// transitions per period and calculations per (period, employee).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (km *keyedMutex) get(key string) *sync.Mutex {
	km.mu.Lock()
	defer km.mu.Unlock()
	if km.locks == nil {
		km.locks = make(map[string]*sync.Mutex)
	}
	if _, ok := km.locks[key]; !ok {
		km.locks[key] = &sync.Mutex{}
	}
	return km.locks[key]
}

// =============================================================================
// PERIOD MANAGER
// =============================================================================

// PeriodManager owns PayrollPeriod.Status. Nothing else writes it.
type PeriodManager struct {
	Store       PeriodStore
	Settlements SettlementStore
	Logger      *zap.Logger

	locks keyedMutex
}

func NewPeriodManager(store PeriodStore, settlements SettlementStore, logger *zap.Logger) *PeriodManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodManager{Store: store, Settlements: settlements, Logger: logger}
}

// Create opens a new DRAFT period. The store rejects a duplicate
// (payMonth, payYear) with ErrDuplicatePeriod.
func (pm *PeriodManager) Create(ctx context.Context, r DateRange, payMonth, payYear int) (PayrollPeriod, error) {
	if r.End.Before(r.Start) {
		return PayrollPeriod{}, &ValidationError{Field: "range", Reason: fmt.Sprintf("end precedes start in %s", r)}
	}
	if payMonth < 1 || payMonth > 12 {
		return PayrollPeriod{}, &ValidationError{Field: "pay_month", Reason: fmt.Sprintf("%d is out of range", payMonth)}
	}

	p := PayrollPeriod{
		ID:       PeriodID(fmt.Sprintf("PP-%04d-%02d", payYear, payMonth)),
		Range:    r,
		PayMonth: payMonth,
		PayYear:  payYear,
		Status:   PeriodDraft,
	}
	if err := pm.Store.CreatePeriod(ctx, p); err != nil {
		return PayrollPeriod{}, err
	}
	pm.Logger.Info("period created",
		zap.String("period", string(p.ID)),
		zap.String("range", r.String()))
	return p, nil
}

func (pm *PeriodManager) Get(ctx context.Context, id PeriodID) (PayrollPeriod, error) {
	return pm.Store.GetPeriod(ctx, id)
}

func (pm *PeriodManager) List(ctx context.Context) ([]PayrollPeriod, error) {
	return pm.Store.ListPeriods(ctx)
}

// Approve moves DRAFT -> APPROVED.
func (pm *PeriodManager) Approve(ctx context.Context, id PeriodID, actor string) error {
	return pm.transition(ctx, id, PeriodDraft, PeriodApproved, actor, "")
}

// Lock moves APPROVED -> LOCKED and stamps lockedAt/lockedBy.
func (pm *PeriodManager) Lock(ctx context.Context, id PeriodID, actor string) error {
	return pm.transition(ctx, id, PeriodApproved, PeriodLocked, actor, "")
}

// Reopen moves LOCKED -> DRAFT. Requires a reason, writes an audit entry,
// and fails with SettlementConflictError while a PAID settlement is tied to
// the period.
func (pm *PeriodManager) Reopen(ctx context.Context, id PeriodID, actor, reason string) error {
	if actor == "" {
		return &ValidationError{Field: "actor", Reason: "reopen requires an actor"}
	}
	if reason == "" {
		return &ValidationError{Field: "reason", Reason: "reopen requires a reason"}
	}
	return pm.transition(ctx, id, PeriodLocked, PeriodDraft, actor, reason)
}

func (pm *PeriodManager) transition(ctx context.Context, id PeriodID, from, to PeriodStatus, actor, reason string) error {
	lock := pm.locks.get(string(id))
	lock.Lock()
	defer lock.Unlock()

	p, err := pm.Store.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != from {
		return fmt.Errorf("period %s is %s, expected %s: %w", id, p.Status, from, ErrConflictingTransition)
	}

	if from == PeriodLocked && to == PeriodDraft {
		paid, err := pm.Settlements.PaidSettlementsForPeriod(ctx, id)
		if err != nil {
			return err
		}
		if len(paid) > 0 {
			ids := make([]SettlementID, len(paid))
			for i, s := range paid {
				ids[i] = s.ID
			}
			return &SettlementConflictError{PeriodID: id, Settlements: ids}
		}
	}

	var lockedAt *time.Time
	lockedBy := p.LockedBy
	if to == PeriodLocked {
		now := time.Now().UTC()
		lockedAt = &now
		lockedBy = actor
	}

	if err := pm.Store.TransitionPeriod(ctx, id, from, to, lockedAt, lockedBy); err != nil {
		return err
	}

	audit := PeriodAudit{
		ID:       uuid.NewString(),
		PeriodID: id,
		Action:   fmt.Sprintf("%s->%s", from, to),
		Actor:    actor,
		Reason:   reason,
		At:       time.Now().UTC(),
	}
	if err := pm.Store.AppendPeriodAudit(ctx, audit); err != nil {
		return err
	}

	pm.Logger.Info("period transition",
		zap.String("period", string(id)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor))
	return nil
}

// AuditTrail returns the administrative actions recorded for a period.
func (pm *PeriodManager) AuditTrail(ctx context.Context, id PeriodID) ([]PeriodAudit, error) {
	return pm.Store.PeriodAuditTrail(ctx, id)
}

// =============================================================================
// LOCK GUARDS - Asked by everything that wants to mutate period-scoped data
// =============================================================================

// CheckResultsWritable rejects result writes for a LOCKED period.
// APPROVED still permits result regeneration.
func (pm *PeriodManager) CheckResultsWritable(ctx context.Context, id PeriodID) error {
	p, err := pm.Store.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == PeriodLocked {
		return &PeriodLockedError{PeriodID: id, Status: p.Status, Operation: "write payroll result"}
	}
	return nil
}

// CheckUpstreamEditable rejects attendance/leave edits for dates falling in
// an APPROVED or LOCKED period. Approval is the soft lock: results may still
// be regenerated, but their inputs are frozen.
func (pm *PeriodManager) CheckUpstreamEditable(ctx context.Context, id PeriodID) error {
	p, err := pm.Store.GetPeriod(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != PeriodDraft {
		return &PeriodLockedError{PeriodID: id, Status: p.Status, Operation: "edit attendance/leave input"}
	}
	return nil
}

// CheckDateAssignable rejects component assignments effective within a
// LOCKED period's range. Periods that don't exist yet don't block.
func (pm *PeriodManager) CheckDateAssignable(ctx context.Context, d Date) error {
	p, err := pm.Store.PeriodForDate(ctx, d)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if p.Status == PeriodLocked {
		return &PeriodLockedError{PeriodID: p.ID, Status: p.Status, Operation: "assign component in range"}
	}
	return nil
}
