/*
components.go - Effective-dated component assignment resolution

PURPOSE:
  Salary components are versioned by date interval: a change never edits the
  old record, it closes the old interval and opens a new one. This file holds
  the interval algebra every store implementation shares:

  - InsertAssignment: overlap-checked insertion into a sorted history
  - ResolveAssignment: binary-search lookup of the interval covering a date
  - SupersedeAssignment: close-at-date + open-new-interval in one step

  Histories are ordered sequences of non-overlapping [from, to) intervals
  per (employee, component) key. Lookup is O(log n) so resolution stays
  cheap as history grows.

INVARIANT:
  At most one assignment is active for any calendar date. InsertAssignment
  is the single gate that enforces this; both the in-memory and SQLite
  stores route every write through it.

SEE ALSO:
  - store.go: ComponentStore interface
  - payroll/store/memory.go, store/sqlite: implementations
*/
package payroll

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// INTERVAL ALGEBRA - Pure, shared by all store implementations
// =============================================================================

// InsertAssignment inserts a into history (sorted by EffectiveFrom) keeping
// the no-overlap invariant. Returns the new history or an OverlapError.
// The input slice is not mutated.
func InsertAssignment(history []ComponentAssignment, a ComponentAssignment) ([]ComponentAssignment, error) {
	i := sort.Search(len(history), func(i int) bool {
		return history[i].EffectiveFrom.After(a.EffectiveFrom)
	})

	// Predecessor must end before (or exactly at) the new start.
	if i > 0 {
		prev := history[i-1]
		if prev.EffectiveTo == nil || prev.EffectiveTo.After(a.EffectiveFrom) {
			return nil, &OverlapError{
				EmployeeID:  a.EmployeeID,
				ComponentID: a.ComponentID,
				From:        a.EffectiveFrom,
				Existing:    prev,
			}
		}
	}

	// New interval must end before the successor starts.
	if i < len(history) {
		next := history[i]
		if a.EffectiveTo == nil || a.EffectiveTo.After(next.EffectiveFrom) {
			return nil, &OverlapError{
				EmployeeID:  a.EmployeeID,
				ComponentID: a.ComponentID,
				From:        a.EffectiveFrom,
				Existing:    next,
			}
		}
	}

	out := make([]ComponentAssignment, 0, len(history)+1)
	out = append(out, history[:i]...)
	out = append(out, a)
	out = append(out, history[i:]...)
	return out, nil
}

// ResolveAssignment returns the unique assignment whose [from, to) interval
// contains asOf. Binary search over the sorted history.
func ResolveAssignment(history []ComponentAssignment, asOf Date) (ComponentAssignment, bool) {
	i := sort.Search(len(history), func(i int) bool {
		return history[i].EffectiveFrom.After(asOf)
	})
	if i == 0 {
		return ComponentAssignment{}, false
	}
	candidate := history[i-1]
	if !candidate.ActiveOn(asOf) {
		return ComponentAssignment{}, false
	}
	return candidate, true
}

// SupersedeAssignment closes the interval active at asOf and opens a new
// open-ended one starting the same date. This is the only sanctioned way to
// change a component amount; history is preserved in full.
func SupersedeAssignment(history []ComponentAssignment, newAmount Money, asOf Date, now time.Time) ([]ComponentAssignment, ComponentAssignment, error) {
	i := sort.Search(len(history), func(i int) bool {
		return history[i].EffectiveFrom.After(asOf)
	})
	if i == 0 || !history[i-1].ActiveOn(asOf) {
		return nil, ComponentAssignment{}, ErrAssignmentNotFound
	}

	current := history[i-1]

	out := make([]ComponentAssignment, len(history))
	copy(out, history)

	closeAt := asOf
	closed := current
	closed.EffectiveTo = &closeAt
	out[i-1] = closed

	opened := ComponentAssignment{
		ID:            uuid.NewString(),
		EmployeeID:    current.EmployeeID,
		ComponentID:   current.ComponentID,
		Amount:        newAmount,
		EffectiveFrom: asOf,
		CreatedAt:     now,
	}

	// A supersede exactly at the interval's start replaces it outright:
	// the closed interval would be empty ([d, d)).
	if closed.EffectiveFrom.Equal(asOf) {
		out[i-1] = opened
		return out, opened, nil
	}

	out, err := InsertAssignment(out, opened)
	if err != nil {
		return nil, ComponentAssignment{}, err
	}
	return out, opened, nil
}

// OverlappingAssignments returns the assignments whose intervals intersect
// the given range, in chronological order. Used for day-weighted proration.
func OverlappingAssignments(history []ComponentAssignment, r DateRange) []ComponentAssignment {
	var out []ComponentAssignment
	for _, a := range history {
		if a.EffectiveTo != nil && !a.EffectiveTo.After(r.Start) {
			continue
		}
		if a.EffectiveFrom.After(r.End) {
			break
		}
		out = append(out, a)
	}
	return out
}

// ProratedAmount computes the day-weighted amount of a component over a
// period: each interval contributes amount x (covered days / period days).
// With a single interval covering the whole period this is exactly the
// interval amount.
func ProratedAmount(history []ComponentAssignment, period DateRange) Money {
	total := ZeroMoney()
	periodDays := period.DaysDecimal()

	for _, a := range OverlappingAssignments(history, period) {
		ar := DateRange{Start: a.EffectiveFrom, End: period.End}
		if a.EffectiveTo != nil {
			ar.End = a.EffectiveTo.AddDays(-1) // half-open interval: To is excluded
		}
		covered, ok := ar.Overlap(period)
		if !ok {
			continue
		}
		weight := covered.DaysDecimal().Div(periodDays)
		total = total.Add(a.Amount.Mul(weight))
	}
	return total
}
