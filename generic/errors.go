/*
errors.go - Centralized error taxonomy for admission and storage

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Callers branch with errors.Is on the sentinels; structured errors carry
  the context needed to build a user-facing message.

ERROR CATEGORIES:
  1. Input errors    - InvalidDate, SchemaMismatch, UnknownKind
  2. Rule violations - DayFull, TeamConflict (expected, user-facing)
  3. Race alarm      - RaceDetected (the write already happened)
  4. Store errors    - StorageUnavailable (fatal for the operation)

RACE DETECTED IS NOT A ROLLBACK:
  RaceDetected is returned after the row was appended. Nothing is undone.
  The caller must tell the user the day is now over capacity and suggest
  picking another date.

USAGE:
    if errors.Is(err, generic.ErrDayFull) {
        // suggest another date
    }

    var race *generic.RaceDetectedError
    if errors.As(err, &race) {
        log.Printf("day %s now holds %d", race.Date, race.Count)
    }

SEE ALSO:
  - agenda/admission.go: Produces the rule and race errors
  - api/handlers.go: Maps each kind to an HTTP status
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a candidate date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrDayFull is returned when the day already holds its capacity.
	ErrDayFull = errors.New("day is full")

	// ErrTeamConflict is returned when someone from the same team already
	// holds the day.
	ErrTeamConflict = errors.New("team already has a reservation on this day")

	// ErrRaceDetected is returned when the post-write re-read shows the day
	// over capacity. The reservation was written anyway.
	ErrRaceDetected = errors.New("capacity exceeded by concurrent reservation")

	// ErrStorageUnavailable wraps every failure reaching the record store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSchemaMismatch is returned when an import batch lacks required columns.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnknownKind is returned when a reservation kind label is not recognised.
	ErrUnknownKind = errors.New("unknown reservation kind")

	// ErrEmployeeNotFound is returned when a number resolves to no employee.
	ErrEmployeeNotFound = errors.New("employee not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError names the input that failed to parse.
type InvalidDateError struct {
	Input string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q", e.Input)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// DayFullError reports how many reservations the day already holds.
type DayFullError struct {
	Date     Date
	Count    int
	Capacity int
}

func (e *DayFullError) Error() string {
	return fmt.Sprintf("day %s is full: %d of %d reserved", e.Date, e.Count, e.Capacity)
}

func (e *DayFullError) Unwrap() error { return ErrDayFull }

// TeamConflictError names the team member already holding the day.
type TeamConflictError struct {
	Date           Date
	Team           string
	EmployeeNumber string
}

func (e *TeamConflictError) Error() string {
	return fmt.Sprintf("team %q already has a reservation on %s (employee %s)",
		e.Team, e.Date, e.EmployeeNumber)
}

func (e *TeamConflictError) Unwrap() error { return ErrTeamConflict }

// RaceDetectedError is the post-write alarm. Count is what the re-read saw.
type RaceDetectedError struct {
	Date     Date
	Count    int
	Capacity int
}

func (e *RaceDetectedError) Error() string {
	return fmt.Sprintf("day %s now holds %d reservations (capacity %d): concurrent admission",
		e.Date, e.Count, e.Capacity)
}

func (e *RaceDetectedError) Unwrap() error { return ErrRaceDetected }

// StorageError wraps a backend failure. It matches both ErrStorageUnavailable
// and the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

// Unavailable wraps err as a StorageError for op. nil stays nil, and an
// error that already is a StorageError is returned unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// SchemaMismatchError lists the semantic columns that could not be resolved.
type SchemaMismatchError struct {
	Table   string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s import is missing required columns: %s",
		e.Table, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrUnknownKind)
}

// IsConflict returns true for rule violations and the race alarm.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDayFull) ||
		errors.Is(err, ErrTeamConflict) ||
		errors.Is(err, ErrRaceDetected)
}

// WasWritten reports whether an admission outcome left a row in the store.
func WasWritten(err error) bool {
	return err == nil || errors.Is(err, ErrRaceDetected)
}
