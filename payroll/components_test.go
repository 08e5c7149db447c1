package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

func interval(from, to string, amount int64) payroll.ComponentAssignment {
	a := payroll.ComponentAssignment{
		ID:          from,
		EmployeeID:  "E-001",
		ComponentID: "SC-BASIC",
		Amount:      payroll.NewMoney(amount),
	}
	var err error
	a.EffectiveFrom, err = payroll.ParseDate(from)
	if err != nil {
		panic(err)
	}
	if to != "" {
		d, err := payroll.ParseDate(to)
		if err != nil {
			panic(err)
		}
		a.EffectiveTo = &d
	}
	return a
}

func TestInsertAssignment(t *testing.T) {
	t.Run("keeps history sorted", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-06-01", "2026-01-01", 8000))
		require.NoError(t, err)
		history, err = payroll.InsertAssignment(history, interval("2025-01-01", "2025-06-01", 7000))
		require.NoError(t, err)
		history, err = payroll.InsertAssignment(history, interval("2026-01-01", "", 9000))
		require.NoError(t, err)

		require.Len(t, history, 3)
		assert.Equal(t, "2025-01-01", history[0].EffectiveFrom.String())
		assert.Equal(t, "2025-06-01", history[1].EffectiveFrom.String())
		assert.Equal(t, "2026-01-01", history[2].EffectiveFrom.String())
	})

	t.Run("rejects overlap with open-ended predecessor", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "", 8000))
		require.NoError(t, err)

		_, err = payroll.InsertAssignment(history, interval("2025-06-01", "", 9000))
		require.Error(t, err)
		assert.ErrorIs(t, err, payroll.ErrOverlap)

		var overlap *payroll.OverlapError
		require.ErrorAs(t, err, &overlap)
		assert.Equal(t, "2025-01-01", overlap.Existing.EffectiveFrom.String())
	})

	t.Run("rejects overlap with successor", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-06-01", "", 9000))
		require.NoError(t, err)

		// Open-ended interval starting before the successor must collide.
		_, err = payroll.InsertAssignment(history, interval("2025-01-01", "", 8000))
		assert.ErrorIs(t, err, payroll.ErrOverlap)

		// Closed interval ending after the successor starts must collide too.
		_, err = payroll.InsertAssignment(history, interval("2025-01-01", "2025-07-01", 8000))
		assert.ErrorIs(t, err, payroll.ErrOverlap)
	})

	t.Run("adjacent intervals touch without overlapping", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "2025-06-01", 8000))
		require.NoError(t, err)
		_, err = payroll.InsertAssignment(history, interval("2025-06-01", "", 9000))
		assert.NoError(t, err)
	})
}

func TestResolveAssignment(t *testing.T) {
	history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "2025-06-01", 8000))
	require.NoError(t, err)
	history, err = payroll.InsertAssignment(history, interval("2025-06-01", "", 9000))
	require.NoError(t, err)

	t.Run("from date is inclusive", func(t *testing.T) {
		a, ok := payroll.ResolveAssignment(history, mustDate(t, "2025-06-01"))
		require.True(t, ok)
		assert.Equal(t, "9000.00", a.Amount.String())
	})

	t.Run("to date is exclusive", func(t *testing.T) {
		a, ok := payroll.ResolveAssignment(history, mustDate(t, "2025-05-31"))
		require.True(t, ok)
		assert.Equal(t, "8000.00", a.Amount.String())
	})

	t.Run("before first interval resolves nothing", func(t *testing.T) {
		_, ok := payroll.ResolveAssignment(history, mustDate(t, "2024-12-31"))
		assert.False(t, ok)
	})
}

func TestSupersedeAssignment(t *testing.T) {
	now := time.Now().UTC()

	t.Run("mid-interval closes old and opens new", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "", 8000))
		require.NoError(t, err)

		history, opened, err := payroll.SupersedeAssignment(history, payroll.NewMoney(9000), mustDate(t, "2025-06-01"), now)
		require.NoError(t, err)
		require.Len(t, history, 2)

		closed := history[0]
		require.NotNil(t, closed.EffectiveTo)
		assert.Equal(t, "2025-06-01", closed.EffectiveTo.String())
		assert.Equal(t, "8000.00", closed.Amount.String())

		assert.Equal(t, "2025-06-01", opened.EffectiveFrom.String())
		assert.Nil(t, opened.EffectiveTo)
		assert.Equal(t, "9000.00", opened.Amount.String())

		// Old amount still resolvable for historical dates.
		a, ok := payroll.ResolveAssignment(history, mustDate(t, "2025-03-01"))
		require.True(t, ok)
		assert.Equal(t, "8000.00", a.Amount.String())
	})

	t.Run("at interval start replaces outright", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "", 8000))
		require.NoError(t, err)

		history, opened, err := payroll.SupersedeAssignment(history, payroll.NewMoney(9000), mustDate(t, "2025-01-01"), now)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "9000.00", opened.Amount.String())
	})

	t.Run("no active interval fails", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-06-01", "", 8000))
		require.NoError(t, err)

		_, _, err = payroll.SupersedeAssignment(history, payroll.NewMoney(9000), mustDate(t, "2025-01-01"), now)
		assert.ErrorIs(t, err, payroll.ErrAssignmentNotFound)
	})
}

func TestProratedAmount(t *testing.T) {
	feb := payroll.DateRange{Start: mustDate(t, "2026-02-01"), End: mustDate(t, "2026-02-28")}

	t.Run("single interval covering the period pays in full", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "", 9000))
		require.NoError(t, err)

		got := payroll.ProratedAmount(history, feb)
		assert.Equal(t, "9000.00", got.Round2().String())
	})

	t.Run("mid-period raise is day-weighted", func(t *testing.T) {
		// 14 days at 9000 + 14 days at 12000 over 28 days = 10500.
		history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "", 9000))
		require.NoError(t, err)
		history, _, err = payroll.SupersedeAssignment(history, payroll.NewMoney(12000), mustDate(t, "2026-02-15"), time.Now().UTC())
		require.NoError(t, err)

		got := payroll.ProratedAmount(history, feb)
		assert.Equal(t, "10500.00", got.Round2().String())
	})

	t.Run("no coverage pays nothing", func(t *testing.T) {
		history, err := payroll.InsertAssignment(nil, interval("2026-03-01", "", 9000))
		require.NoError(t, err)

		got := payroll.ProratedAmount(history, feb)
		assert.True(t, got.IsZero())
	})
}

func TestOverlappingAssignments(t *testing.T) {
	history, err := payroll.InsertAssignment(nil, interval("2025-01-01", "2025-06-01", 7000))
	require.NoError(t, err)
	history, err = payroll.InsertAssignment(history, interval("2025-06-01", "2026-01-01", 8000))
	require.NoError(t, err)
	history, err = payroll.InsertAssignment(history, interval("2026-01-01", "", 9000))
	require.NoError(t, err)

	r := payroll.DateRange{Start: mustDate(t, "2025-05-01"), End: mustDate(t, "2025-07-31")}
	got := payroll.OverlappingAssignments(history, r)
	require.Len(t, got, 2)
	assert.Equal(t, "7000.00", got[0].Amount.String())
	assert.Equal(t, "8000.00", got[1].Amount.String())
}

func mustDate(t *testing.T, s string) payroll.Date {
	t.Helper()
	d, err := payroll.ParseDate(s)
	require.NoError(t, err)
	return d
}
