package approval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

func newCoordinator(t *testing.T, sink EventSink) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(context.Background(), NewMemoryJournal(), sink, nil)
	require.NoError(t, err)
	return c
}

func TestSubmitAndDecide(t *testing.T) {
	var events []Event
	sink := EventSinkFunc(func(_ context.Context, e Event) error {
		events = append(events, e)
		return nil
	})
	c := newCoordinator(t, sink)
	ctx := context.Background()

	r, err := c.Submit(ctx, TypeOvertime, "OT-2026-02-14-E001", "E-001")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
	assert.NotEmpty(t, r.ID)

	decided, err := c.Decide(ctx, r.ID, StatusApproved, "hr.manager")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedAt)
	assert.Equal(t, "hr.manager", decided.DecidedBy)

	require.Len(t, events, 1)
	assert.Equal(t, r.ID, events[0].RequestID)
	assert.Equal(t, TypeOvertime, events[0].Type)
	assert.Equal(t, "OT-2026-02-14-E001", events[0].ReferenceID)
	assert.Equal(t, payroll.EmployeeID("E-001"), events[0].SubjectEmployee)
}

func TestDecideIsTerminal(t *testing.T) {
	c := newCoordinator(t, nil)
	ctx := context.Background()

	r, err := c.Submit(ctx, TypeLeave, "LV-100", "E-001")
	require.NoError(t, err)

	_, err = c.Decide(ctx, r.ID, StatusRejected, "hr.manager")
	require.NoError(t, err)

	// A second decision fails regardless of the outcome requested.
	_, err = c.Decide(ctx, r.ID, StatusApproved, "hr.manager")
	require.ErrorIs(t, err, payroll.ErrAlreadyDecided)
	_, err = c.Decide(ctx, r.ID, StatusRejected, "hr.manager")
	require.ErrorIs(t, err, payroll.ErrAlreadyDecided)

	got, err := c.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
}

func TestRejectedEmitsNoEvent(t *testing.T) {
	var events []Event
	sink := EventSinkFunc(func(_ context.Context, e Event) error {
		events = append(events, e)
		return nil
	})
	c := newCoordinator(t, sink)
	ctx := context.Background()

	r, err := c.Submit(ctx, TypeAttendance, "AT-42", "E-002")
	require.NoError(t, err)
	_, err = c.Decide(ctx, r.ID, StatusRejected, "hr.manager")
	require.NoError(t, err)

	assert.Empty(t, events)
}

func TestPendingIsFIFO(t *testing.T) {
	c := newCoordinator(t, nil)
	ctx := context.Background()

	first, _ := c.Submit(ctx, TypeAttendance, "AT-1", "E-001")
	second, _ := c.Submit(ctx, TypeLeave, "LV-2", "E-002")
	third, _ := c.Submit(ctx, TypeOvertime, "OT-3", "E-001")

	_, err := c.Decide(ctx, second.ID, StatusApproved, "hr.manager")
	require.NoError(t, err)

	pending := c.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, third.ID, pending[1].ID)

	// History keeps decided requests, still in submission order.
	history := c.History()
	require.Len(t, history, 3)
	assert.Equal(t, StatusApproved, history[1].Status)
}

func TestReplayRebuildsIndex(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	c1, err := NewCoordinator(ctx, journal, nil, nil)
	require.NoError(t, err)
	r1, _ := c1.Submit(ctx, TypeLeave, "LV-1", "E-001")
	r2, _ := c1.Submit(ctx, TypeOvertime, "OT-2", "E-002")
	_, err = c1.Decide(ctx, r1.ID, StatusApproved, "hr.manager")
	require.NoError(t, err)

	// A fresh coordinator over the same journal sees identical state.
	c2, err := NewCoordinator(ctx, journal, nil, nil)
	require.NoError(t, err)

	got, err := c2.Get(r1.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	pending := c2.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, r2.ID, pending[0].ID)

	// Terminality survives the replay too.
	_, err = c2.Decide(ctx, r1.ID, StatusRejected, "hr.manager")
	require.ErrorIs(t, err, payroll.ErrAlreadyDecided)
}

func TestSinkFailureKeepsDecision(t *testing.T) {
	sinkErr := errors.New("period is locked downstream")
	sink := EventSinkFunc(func(_ context.Context, _ Event) error { return sinkErr })
	c := newCoordinator(t, sink)
	ctx := context.Background()

	r, _ := c.Submit(ctx, TypeAttendance, "AT-9", "E-003")
	decided, err := c.Decide(ctx, r.ID, StatusApproved, "hr.manager")
	require.ErrorIs(t, err, sinkErr)
	assert.Equal(t, StatusApproved, decided.Status)

	// The decision is journaled; the downstream failure does not undo it.
	got, err := c.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
}

func TestSubmitRejectsUnknownType(t *testing.T) {
	c := newCoordinator(t, nil)
	_, err := c.Submit(context.Background(), RequestType("EXPENSE"), "EX-1", "E-001")
	require.ErrorIs(t, err, payroll.ErrInvalidInput)
}

func TestDecideUnknownRequest(t *testing.T) {
	c := newCoordinator(t, nil)
	_, err := c.Decide(context.Background(), "missing", StatusApproved, "hr.manager")
	require.ErrorIs(t, err, payroll.ErrRequestNotFound)
}

func TestForEmployee(t *testing.T) {
	c := newCoordinator(t, nil)
	ctx := context.Background()

	c.Submit(ctx, TypeLeave, "LV-1", "E-001")
	c.Submit(ctx, TypeLeave, "LV-2", "E-002")
	c.Submit(ctx, TypeOvertime, "OT-3", "E-001")

	mine := c.ForEmployee("E-001")
	require.Len(t, mine, 2)
	assert.Equal(t, "LV-1", mine[0].ReferenceID)
	assert.Equal(t, "OT-3", mine[1].ReferenceID)
}