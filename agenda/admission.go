/*
admission.go - Day admission with capacity and team exclusivity

PURPOSE:
  Decides whether a candidate reservation may be written, writes it, and
  checks afterwards that no concurrent writer pushed the day over
  capacity.

INVARIANTS (soft):
  1. Capacity:  at most Capacity reservations per calendar day (default 3)
  2. Exclusive: at most one reservation per team per calendar day

  The store has no transactions, no unique keys and no conditional
  writes, so these are enforced optimistically and only detected, never
  repaired, when two admissions interleave.

ALGORITHM (read, validate, write, re-read):
  1. Parse the date         -> InvalidDate, nothing read or written
  2. Parse the kind         -> UnknownKind, nothing read or written
  3. Load a fresh snapshot  (never the read cache)
  4. Day already full?      -> DayFull
  5. Team already present?  -> TeamConflict
  6. Append the row
  7. Load a fresh snapshot again
  8. Day over capacity?     -> RaceDetected (row stays written)

  Any storage failure along the way surfaces as StorageUnavailable. A
  failure in step 7 means the row was written but not verified.

NO LOCK:
  Concurrent Admit calls are not coordinated. Each performs its own reads,
  and two of them may both pass step 4 for the same day.

EXAMPLE:
  engine := agenda.NewEngine(repo)
  res, err := engine.Admit(ctx, agenda.Candidate{
      EmployeeNumber: "100", EmployeeName: "Ana", Team: "Ops",
      Date: "2025-06-10", Kind: "Vacaciones",
  })
  switch {
  case err == nil:
      // admitted
  case errors.Is(err, generic.ErrRaceDetected):
      // admitted, but the day is now over capacity
  case errors.Is(err, generic.ErrDayFull):
      // suggest another date
  }

SEE ALSO:
  - generic/errors.go: Outcome errors
  - service.go: Resolves the employee and invalidates caches
*/
package agenda

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/warp/agenda/generic"
)

// DefaultCapacity is the number of reservations a day can hold.
const DefaultCapacity = 3

// Outcome labels for logs and metrics.
const (
	OutcomeAdmitted     = "admitted"
	OutcomeInvalidDate  = "invalid_date"
	OutcomeUnknownKind  = "unknown_kind"
	OutcomeDayFull      = "day_full"
	OutcomeTeamConflict = "team_conflict"
	OutcomeRaceDetected = "race_detected"
	OutcomeUnavailable  = "storage_unavailable"
	OutcomeNotFound     = "employee_not_found"
	OutcomeError        = "error"
)

// Outcome classifies an Admit result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAdmitted
	case errors.Is(err, generic.ErrInvalidDate):
		return OutcomeInvalidDate
	case errors.Is(err, generic.ErrUnknownKind):
		return OutcomeUnknownKind
	case errors.Is(err, generic.ErrDayFull):
		return OutcomeDayFull
	case errors.Is(err, generic.ErrTeamConflict):
		return OutcomeTeamConflict
	case errors.Is(err, generic.ErrRaceDetected):
		return OutcomeRaceDetected
	case errors.Is(err, generic.ErrStorageUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, generic.ErrEmployeeNotFound):
		return OutcomeNotFound
	}
	return OutcomeError
}

// SnapshotStore is what admission needs from the reservation table.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) ([]Reservation, error)
	AppendRow(ctx context.Context, r Reservation) error
}

// Candidate is an unvalidated admission request. Date and Kind are raw
// user input.
type Candidate struct {
	EmployeeNumber EmployeeNumber
	EmployeeName   string
	Team           string
	Date           string
	Kind           string
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs admissions against a SnapshotStore.
type Engine struct {
	store    SnapshotStore
	capacity int
	clock    generic.Clock
	recorder Recorder
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.capacity = n
		}
	}
}

// WithClock sets the clock used to time admissions.
func WithClock(c generic.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithRecorder receives one observation per Admit.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an engine with DefaultCapacity.
func NewEngine(store SnapshotStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		capacity: DefaultCapacity,
		clock:    generic.SystemClock{},
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capacity is the per-day limit in force.
func (e *Engine) Capacity() int { return e.capacity }

// Admit validates and writes c. On success and on RaceDetected the
// returned Reservation is the row that was written.
func (e *Engine) Admit(ctx context.Context, c Candidate) (Reservation, error) {
	start := e.clock.Now()
	res, err := e.admit(ctx, c)
	e.recorder.ObserveAdmission(Outcome(err), e.clock.Now().Sub(start))
	return res, err
}

func (e *Engine) admit(ctx context.Context, c Candidate) (Reservation, error) {
	date, err := generic.ParseDate(c.Date)
	if err != nil {
		return Reservation{}, err
	}
	kind, err := ParseKind(c.Kind)
	if err != nil {
		return Reservation{}, err
	}

	res := Reservation{
		EmployeeNumber: NewEmployeeNumber(string(c.EmployeeNumber)),
		EmployeeName:   strings.TrimSpace(c.EmployeeName),
		Team:           strings.TrimSpace(c.Team),
		Date:           date,
		Kind:           kind.Label(),
	}

	before, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return Reservation{}, generic.Unavailable("load snapshot", err)
	}
	if err := e.check(before, res); err != nil {
		return Reservation{}, err
	}

	if err := e.store.AppendRow(ctx, res); err != nil {
		return Reservation{}, generic.Unavailable("append reservation", err)
	}

	after, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return res, generic.Unavailable("verify reservation", err)
	}
	if n := CountOn(after, date); n > e.capacity {
		return res, &generic.RaceDetectedError{Date: date, Count: n, Capacity: e.capacity}
	}
	return res, nil
}

// check applies capacity then team exclusivity to the day of res.
func (e *Engine) check(snapshot []Reservation, res Reservation) error {
	day := DayOf(snapshot, res.Date)
	if len(day) >= e.capacity {
		return &generic.DayFullError{Date: res.Date, Count: len(day), Capacity: e.capacity}
	}
	for _, other := range day {
		if other.Team == res.Team {
			return &generic.TeamConflictError{
				Date:           res.Date,
				Team:           res.Team,
				EmployeeNumber: string(other.EmployeeNumber),
			}
		}
	}
	return nil
}

// Check reports the outcome Admit would give for res against snapshot
// without writing. Used for previews.
func (e *Engine) Check(snapshot []Reservation, res Reservation) error {
	return e.check(snapshot, res)
}

// Recorder observes engine and service activity, typically for metrics.
type Recorder interface {
	ObserveAdmission(outcome string, elapsed time.Duration)
	ObserveImport(table, mode string, appended, duplicates, dropped int)
	ObserveCache(name string, hit bool)
	ObserveStorageError(op string)
}

// NopRecorder discards observations.
type NopRecorder struct{}

func (NopRecorder) ObserveAdmission(string, time.Duration)      {}
func (NopRecorder) ObserveImport(string, string, int, int, int) {}
func (NopRecorder) ObserveCache(string, bool)                   {}
func (NopRecorder) ObserveStorageError(string)                  {}
