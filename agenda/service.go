/*
service.go - Entry point for the HTTP layer

PURPOSE:
  Ties the repositories, engine, importer and cache together and logs
  every mutation. Handlers talk to the Service only.

READS VS WRITES:
  Read paths (Reservations, Day, Calendar, MonthlyReport, Employee) go
  through the Cache and may be up to CacheTTL stale. Admit always reads
  fresh through the Engine. Diagnostics bypasses the cache too.

INVALIDATION:
  Every call that wrote to the store invalidates the cache, including an
  Admit that ended in RaceDetected and an import that failed half way.

SEE ALSO:
  - admission.go: The admission algorithm
  - api/handlers.go: HTTP mapping
*/
package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/logger"
	"github.com/warp/agenda/tabular"
)

// Config holds the tunables of a Service.
type Config struct {
	ReservationsTable string
	EmployeesTable    string
	Capacity          int
	CacheTTL          time.Duration
}

// Service is the façade used by the API.
type Service struct {
	store        generic.RecordStore
	reservations *ReservationRepository
	directory    *DirectoryRepository
	engine       *Engine
	importer     *Importer
	cache        *Cache
	log          logger.Logger
	rec          Recorder
	clock        generic.Clock
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithServiceRecorder sets the metrics recorder shared by all components.
func WithServiceRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.rec = r }
}

// WithServiceClock sets the clock for the cache and engine.
func WithServiceClock(c generic.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// NewService wires a Service over store.
func NewService(store generic.RecordStore, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		log:   logger.Nop(),
		rec:   NopRecorder{},
		clock: generic.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}

	s.reservations = NewReservationRepository(store, cfg.ReservationsTable)
	s.directory = NewDirectoryRepository(store, cfg.EmployeesTable)
	s.engine = NewEngine(s.reservations,
		WithCapacity(cfg.Capacity),
		WithClock(s.clock),
		WithRecorder(s.rec),
	)
	s.importer = NewImporter(s.reservations, s.directory, s.rec)
	s.cache = NewCache(cfg.CacheTTL, s.clock, s.rec)
	return s
}

// Capacity is the per-day limit in force.
func (s *Service) Capacity() int { return s.engine.Capacity() }

// =============================================================================
// READS
// =============================================================================

func (s *Service) loadSnapshot(ctx context.Context) ([]Reservation, error) {
	return s.cache.Snapshot(ctx, s.reservations.LoadSnapshot)
}

func (s *Service) loadDirectory(ctx context.Context) (*Directory, error) {
	return s.cache.Directory(ctx, s.directory.LoadDirectory)
}

// Reservations returns the (possibly cached) snapshot.
func (s *Service) Reservations(ctx context.Context) ([]Reservation, error) {
	snap, err := s.loadSnapshot(ctx)
	return snap, s.storageFailed(ctx, "load reservations", err)
}

// Employees lists the directory in table order.
func (s *Service) Employees(ctx context.Context) ([]Employee, error) {
	dir, err := s.loadDirectory(ctx)
	if err != nil {
		return nil, s.storageFailed(ctx, "load directory", err)
	}
	return dir.Employees(), nil
}

// Teams lists distinct team names.
func (s *Service) Teams(ctx context.Context) ([]string, error) {
	dir, err := s.loadDirectory(ctx)
	if err != nil {
		return nil, s.storageFailed(ctx, "load directory", err)
	}
	return dir.Teams(), nil
}

// Employee resolves a number, accepting zero-stripped aliases.
func (s *Service) Employee(ctx context.Context, number string) (Employee, error) {
	dir, err := s.loadDirectory(ctx)
	if err != nil {
		return Employee{}, s.storageFailed(ctx, "load directory", err)
	}
	e, ok := dir.Lookup(number)
	if !ok {
		return Employee{}, fmt.Errorf("%w: %q", generic.ErrEmployeeNotFound, strings.TrimSpace(number))
	}
	return e, nil
}

// DayView describes one day for the booking screen.
type DayView struct {
	Date         generic.Date
	Capacity     int
	Reservations []Reservation
}

// Remaining is the number of free slots, never negative.
func (v DayView) Remaining() int {
	if n := v.Capacity - len(v.Reservations); n > 0 {
		return n
	}
	return 0
}

// Day lists the reservations on date.
func (s *Service) Day(ctx context.Context, date string) (DayView, error) {
	d, err := generic.ParseDate(date)
	if err != nil {
		return DayView{}, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return DayView{}, s.storageFailed(ctx, "load reservations", err)
	}
	return DayView{Date: d, Capacity: s.Capacity(), Reservations: DayOf(snap, d)}, nil
}

// Preview reports what Admit would answer for number on date right now,
// based on the cached snapshot. It writes nothing.
func (s *Service) Preview(ctx context.Context, number, date string) (DayView, error) {
	view, err := s.Day(ctx, date)
	if err != nil {
		return DayView{}, err
	}
	emp, err := s.Employee(ctx, number)
	if err != nil {
		return view, err
	}
	return view, s.engine.Check(view.Reservations, Reservation{Team: emp.Team, Date: view.Date})
}

// Calendar builds the month grid.
func (s *Service) Calendar(ctx context.Context, q CalendarQuery) (MonthCalendar, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return MonthCalendar{}, s.storageFailed(ctx, "load reservations", err)
	}
	return BuildCalendar(snap, q, s.Capacity()), nil
}

// MonthlyReport builds the team report for one month.
func (s *Service) MonthlyReport(ctx context.Context, year int, month time.Month) (MonthlyReport, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return MonthlyReport{}, s.storageFailed(ctx, "load reservations", err)
	}
	return BuildMonthlyReport(snap, year, month, s.Capacity()), nil
}

// =============================================================================
// ADMISSION
// =============================================================================

// AdmitRequest is what a user submits from the booking screen.
type AdmitRequest struct {
	EmployeeNumber string
	Date           string
	Kind           string
}

// Admit resolves the employee and runs the engine. The stored number is
// the directory's number, so a request for "7" stores "007".
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (Reservation, error) {
	log := s.log.Named("admission")

	// Date errors are reported before any read, as the engine does.
	if _, err := generic.ParseDate(req.Date); err != nil {
		log.Info(ctx, "admission rejected", logger.String("outcome", OutcomeInvalidDate), logger.String("date", req.Date))
		return Reservation{}, err
	}

	emp, err := s.Employee(ctx, req.EmployeeNumber)
	if err != nil {
		log.Info(ctx, "admission rejected",
			logger.String("outcome", Outcome(err)),
			logger.String("employee", req.EmployeeNumber),
			logger.Error(err))
		return Reservation{}, err
	}

	res, err := s.engine.Admit(ctx, Candidate{
		EmployeeNumber: emp.Number,
		EmployeeName:   emp.Name,
		Team:           emp.Team,
		Date:           req.Date,
		Kind:           req.Kind,
	})
	if generic.WasWritten(err) || errors.Is(err, generic.ErrStorageUnavailable) {
		// A failed re-read still leaves the row written.
		s.cache.Invalidate()
	}

	fields := []logger.Field{
		logger.String("outcome", Outcome(err)),
		logger.String("employee", string(emp.Number)),
		logger.String("team", emp.Team),
		logger.String("date", req.Date),
	}
	var race *generic.RaceDetectedError
	switch {
	case err == nil:
		log.Info(ctx, "reservation admitted", fields...)
	case errors.As(err, &race):
		log.Warn(ctx, "capacity exceeded after write", append(fields, logger.Int("count", race.Count))...)
	case errors.Is(err, generic.ErrStorageUnavailable):
		s.rec.ObserveStorageError("admit")
		log.Error(ctx, "admission failed", append(fields, logger.Error(err))...)
	default:
		log.Info(ctx, "admission rejected", append(fields, logger.Error(err))...)
	}
	return res, err
}

// =============================================================================
// BULK OPERATIONS
// =============================================================================

// ImportReservations loads history in the given mode.
func (s *Service) ImportReservations(ctx context.Context, f tabular.Frame, mode ImportMode) (ImportResult, error) {
	res, err := s.importer.ImportReservations(ctx, f, mode)
	return res, s.afterImport(ctx, res, err)
}

// ImportEmployees loads the directory in the given mode.
func (s *Service) ImportEmployees(ctx context.Context, f tabular.Frame, mode ImportMode) (ImportResult, error) {
	res, err := s.importer.ImportEmployees(ctx, f, mode)
	return res, s.afterImport(ctx, res, err)
}

func (s *Service) afterImport(ctx context.Context, res ImportResult, err error) error {
	log := s.log.Named("import")
	fields := []logger.Field{
		logger.String("batch_id", res.BatchID),
		logger.String("table", res.Table),
		logger.String("mode", string(res.Mode)),
		logger.Int("received", res.Received),
	}
	if err != nil {
		if errors.Is(err, generic.ErrStorageUnavailable) {
			s.cache.Invalidate()
			s.rec.ObserveStorageError("import " + res.Table)
		}
		log.Error(ctx, "import failed", append(fields, logger.Error(err))...)
		return err
	}
	s.cache.Invalidate()
	log.Info(ctx, "import complete", append(fields,
		logger.Int("appended", res.Appended),
		logger.Int("duplicates", res.Duplicates),
		logger.Int("dropped", res.Dropped))...)
	return nil
}

// =============================================================================
// DIAGNOSTICS
// =============================================================================

// Diagnostics is a fresh, uncached view of both tables.
type Diagnostics struct {
	ReservationsTable  string
	EmployeesTable     string
	Employees          int
	Reservations       int
	Capacity           int
	SampleEmployees    []Employee
	SampleReservations []Reservation
}

const diagnosticsSample = 10

// Diagnostics reads both tables directly.
func (s *Service) Diagnostics(ctx context.Context) (Diagnostics, error) {
	emps, err := s.directory.LoadEmployees(ctx)
	if err != nil {
		return Diagnostics{}, s.storageFailed(ctx, "diagnostics", err)
	}
	snap, err := s.reservations.LoadSnapshot(ctx)
	if err != nil {
		return Diagnostics{}, s.storageFailed(ctx, "diagnostics", err)
	}
	return Diagnostics{
		ReservationsTable:  s.reservations.Table(),
		EmployeesTable:     s.directory.Table(),
		Employees:          len(emps),
		Reservations:       len(snap),
		Capacity:           s.Capacity(),
		SampleEmployees:    head(emps, diagnosticsSample),
		SampleReservations: head(snap, diagnosticsSample),
	}, nil
}

func head[T any](xs []T, n int) []T {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

// storageFailed logs and counts storage errors; other errors pass through.
func (s *Service) storageFailed(ctx context.Context, op string, err error) error {
	if err != nil && errors.Is(err, generic.ErrStorageUnavailable) {
		s.rec.ObserveStorageError(op)
		s.log.Error(ctx, "storage unavailable", logger.String("op", op), logger.Error(err))
	}
	return err
}
