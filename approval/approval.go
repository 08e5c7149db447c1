/*
Package approval coordinates the unified change-request queue: attendance
corrections, leave requests, and overtime claims all flow through one
FIFO-ordered approval pipeline.

DESIGN:
  The queue is an append-only journal plus an in-memory status index, not
  a mutable array. Submissions and decisions are journal entries; the
  index is rebuilt by replaying the journal, so approved/rejected history
  stays auditable forever.

  PENDING -> APPROVED or PENDING -> REJECTED is terminal. Deciding a
  request twice fails with the already-decided error no matter the
  outcome requested.

  On APPROVED the coordinator emits a domain event carrying
  (type, referenceID, subjectEmployee). The attendance feed consumes it
  to regenerate the affected summary. REJECTED has no downstream effect.
  The coordinator never inspects period-lock state: if the affected
  period is LOCKED, the regeneration itself is rejected downstream by
  the period manager.
*/
package approval

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// REQUEST MODEL
// =============================================================================

type RequestType string

const (
	TypeAttendance RequestType = "ATTENDANCE"
	TypeLeave      RequestType = "LEAVE"
	TypeOvertime   RequestType = "OVERTIME"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Request is one entry in the approval queue.
type Request struct {
	ID              string
	Type            RequestType
	ReferenceID     string
	SubjectEmployee payroll.EmployeeID
	Status          Status
	SubmittedAt     time.Time
	DecidedAt       *time.Time
	DecidedBy       string
}

// Event is the domain event emitted when a request is approved.
type Event struct {
	RequestID       string
	Type            RequestType
	ReferenceID     string
	SubjectEmployee payroll.EmployeeID
}

// EventSink consumes approval events. The attendance feed implements this
// to regenerate summaries affected by an approved change.
type EventSink interface {
	HandleApproval(ctx context.Context, e Event) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, e Event) error

func (f EventSinkFunc) HandleApproval(ctx context.Context, e Event) error { return f(ctx, e) }

// =============================================================================
// JOURNAL - Append-only persistence
// =============================================================================

type EntryKind string

const (
	EntrySubmit EntryKind = "SUBMIT"
	EntryDecide EntryKind = "DECIDE"
)

// Entry is one journal record. SUBMIT carries the full request; DECIDE
// carries the request id, outcome, and actor.
type Entry struct {
	Seq       uint64
	Kind      EntryKind
	Request   Request
	RequestID string
	Outcome   Status
	Actor     string
	At        time.Time
}

// Journal is the append-only log behind the queue. Append assigns the
// sequence number; Replay yields entries in append order.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	Replay(ctx context.Context, fn func(Entry) error) error
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator is the approval queue. All mutation goes through Submit and
// Decide; reads come from the replay-built index.
type Coordinator struct {
	journal Journal
	sink    EventSink
	logger  *zap.Logger

	mu    sync.Mutex
	index map[string]*Request // id -> current state
	order []string            // FIFO submission order
	seq   uint64
}

// NewCoordinator builds a coordinator over the journal and replays any
// existing entries to rebuild the status index. sink may be nil when no
// downstream consumer is wired (approvals then have no side effect).
func NewCoordinator(ctx context.Context, journal Journal, sink EventSink, logger *zap.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		journal: journal,
		sink:    sink,
		logger:  logger,
		index:   make(map[string]*Request),
	}
	err := journal.Replay(ctx, func(e Entry) error {
		c.apply(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// apply folds one journal entry into the index. Caller holds no lock during
// replay; the coordinator is not yet shared.
func (c *Coordinator) apply(e Entry) {
	if e.Seq > c.seq {
		c.seq = e.Seq
	}
	switch e.Kind {
	case EntrySubmit:
		r := e.Request
		c.index[r.ID] = &r
		c.order = append(c.order, r.ID)
	case EntryDecide:
		if r, ok := c.index[e.RequestID]; ok {
			r.Status = e.Outcome
			at := e.At
			r.DecidedAt = &at
			r.DecidedBy = e.Actor
		}
	}
}

// Submit appends a new PENDING request to the queue and returns it.
func (c *Coordinator) Submit(ctx context.Context, typ RequestType, referenceID string, subject payroll.EmployeeID) (Request, error) {
	switch typ {
	case TypeAttendance, TypeLeave, TypeOvertime:
	default:
		return Request{}, &payroll.ValidationError{Field: "type", Reason: "unknown request type " + string(typ)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := Request{
		ID:              uuid.NewString(),
		Type:            typ,
		ReferenceID:     referenceID,
		SubjectEmployee: subject,
		Status:          StatusPending,
		SubmittedAt:     time.Now().UTC(),
	}
	c.seq++
	if err := c.journal.Append(ctx, Entry{Seq: c.seq, Kind: EntrySubmit, Request: r, At: r.SubmittedAt}); err != nil {
		c.seq--
		return Request{}, err
	}
	stored := r
	c.index[r.ID] = &stored
	c.order = append(c.order, r.ID)

	c.logger.Info("approval request submitted",
		zap.String("request", r.ID),
		zap.String("type", string(typ)),
		zap.String("employee", string(subject)))
	return r, nil
}

// Decide transitions PENDING -> outcome. The transition is terminal:
// deciding a non-PENDING request fails with the already-decided error.
// On APPROVED the event sink is notified; a sink failure is reported but
// the decision itself stands (the journal entry is already durable).
func (c *Coordinator) Decide(ctx context.Context, requestID string, outcome Status, actor string) (Request, error) {
	if outcome != StatusApproved && outcome != StatusRejected {
		return Request{}, &payroll.ValidationError{Field: "outcome", Reason: "outcome must be APPROVED or REJECTED"}
	}

	c.mu.Lock()
	r, ok := c.index[requestID]
	if !ok {
		c.mu.Unlock()
		return Request{}, payroll.ErrRequestNotFound
	}
	if r.Status != StatusPending {
		c.mu.Unlock()
		return *r, payroll.ErrAlreadyDecided
	}

	now := time.Now().UTC()
	c.seq++
	entry := Entry{Seq: c.seq, Kind: EntryDecide, RequestID: requestID, Outcome: outcome, Actor: actor, At: now}
	if err := c.journal.Append(ctx, entry); err != nil {
		c.seq--
		c.mu.Unlock()
		return Request{}, err
	}
	r.Status = outcome
	r.DecidedAt = &now
	r.DecidedBy = actor
	decided := *r
	c.mu.Unlock()

	c.logger.Info("approval request decided",
		zap.String("request", requestID),
		zap.String("outcome", string(outcome)),
		zap.String("actor", actor))

	if outcome == StatusApproved && c.sink != nil {
		e := Event{
			RequestID:       decided.ID,
			Type:            decided.Type,
			ReferenceID:     decided.ReferenceID,
			SubjectEmployee: decided.SubjectEmployee,
		}
		if err := c.sink.HandleApproval(ctx, e); err != nil {
			c.logger.Warn("approval event rejected downstream",
				zap.String("request", requestID),
				zap.Error(err))
			return decided, err
		}
	}
	return decided, nil
}

// Get returns the current state of a request.
func (c *Coordinator) Get(requestID string) (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.index[requestID]
	if !ok {
		return Request{}, payroll.ErrRequestNotFound
	}
	return *r, nil
}

// Pending returns undecided requests in submission order.
func (c *Coordinator) Pending() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Request
	for _, id := range c.order {
		if r := c.index[id]; r.Status == StatusPending {
			out = append(out, *r)
		}
	}
	return out
}

// History returns every request, decided or not, in submission order.
func (c *Coordinator) History() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.index[id])
	}
	return out
}

// ForEmployee returns the employee's requests in submission order.
func (c *Coordinator) ForEmployee(employeeID payroll.EmployeeID) []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Request
	for _, id := range c.order {
		if r := c.index[id]; r.SubjectEmployee == employeeID {
			out = append(out, *r)
		}
	}
	return out
}

// =============================================================================
// MEMORY JOURNAL
// =============================================================================

// MemoryJournal keeps the log in memory. Tests and dev mode use this; the
// sqlite store provides the durable implementation.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryJournal() *MemoryJournal { return &MemoryJournal{} }

func (j *MemoryJournal) Append(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *MemoryJournal) Replay(_ context.Context, fn func(Entry) error) error {
	j.mu.Lock()
	snapshot := make([]Entry, len(j.entries))
	copy(snapshot, j.entries)
	j.mu.Unlock()

	sort.SliceStable(snapshot, func(i, k int) bool { return snapshot[i].Seq < snapshot[k].Seq })
	for _, e := range snapshot {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
