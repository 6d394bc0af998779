package agenda_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/agenda/agenda"
	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/generic/store"
)

const day = "2025-06-10"

var errBackend = errors.New("backend offline")

// seed writes header and rows through the repository.
func seed(t *testing.T, s generic.RecordStore, rows ...agenda.Reservation) *agenda.ReservationRepository {
	t.Helper()
	repo := agenda.NewReservationRepository(s, "")
	require.NoError(t, repo.ReplaceAll(context.Background(), rows))
	return repo
}

func res(number, team, date, kind string) agenda.Reservation {
	return agenda.Reservation{
		EmployeeNumber: agenda.EmployeeNumber(number),
		EmployeeName:   "Emp " + number,
		Team:           team,
		Date:           generic.MustParseDate(date),
		Kind:           kind,
	}
}

func candidate(number, team, date string) agenda.Candidate {
	return agenda.Candidate{
		EmployeeNumber: agenda.EmployeeNumber(number),
		EmployeeName:   "Emp " + number,
		Team:           team,
		Date:           date,
		Kind:           "Vacaciones",
	}
}

func countOn(t *testing.T, repo *agenda.ReservationRepository, date string) int {
	t.Helper()
	snap, err := repo.LoadSnapshot(context.Background())
	require.NoError(t, err)
	return agenda.CountOn(snap, generic.MustParseDate(date))
}

// =============================================================================
// FAKES
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingStore counts snapshot reads and appends.
type countingStore struct {
	inner   agenda.SnapshotStore
	loads   int
	appends int
}

func (s *countingStore) LoadSnapshot(ctx context.Context) ([]agenda.Reservation, error) {
	s.loads++
	return s.inner.LoadSnapshot(ctx)
}

func (s *countingStore) AppendRow(ctx context.Context, r agenda.Reservation) error {
	s.appends++
	return s.inner.AppendRow(ctx, r)
}

// staleStore answers every odd LoadSnapshot (the pre-write read of each
// Admit) with a frozen snapshot, simulating admissions that all read
// before any of them wrote.
type staleStore struct {
	inner  agenda.SnapshotStore
	frozen []agenda.Reservation
	calls  int
}

func (s *staleStore) LoadSnapshot(ctx context.Context) ([]agenda.Reservation, error) {
	s.calls++
	if s.calls%2 == 1 {
		return append([]agenda.Reservation(nil), s.frozen...), nil
	}
	return s.inner.LoadSnapshot(ctx)
}

func (s *staleStore) AppendRow(ctx context.Context, r agenda.Reservation) error {
	return s.inner.AppendRow(ctx, r)
}

// barrierStore holds the first n snapshot reads until all n arrived, so n
// goroutines validate against the same state.
type barrierStore struct {
	inner agenda.SnapshotStore
	n     int

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

func newBarrierStore(inner agenda.SnapshotStore, n int) *barrierStore {
	return &barrierStore{inner: inner, n: n, release: make(chan struct{})}
}

func (s *barrierStore) LoadSnapshot(ctx context.Context) ([]agenda.Reservation, error) {
	snap, err := s.inner.LoadSnapshot(ctx)

	s.mu.Lock()
	s.arrived++
	waiting := s.arrived <= s.n
	if s.arrived == s.n {
		close(s.release)
	}
	s.mu.Unlock()

	if waiting {
		select {
		case <-s.release:
		case <-time.After(5 * time.Second):
			return nil, errors.New("barrier timeout")
		}
	}
	return snap, err
}

func (s *barrierStore) AppendRow(ctx context.Context, r agenda.Reservation) error {
	return s.inner.AppendRow(ctx, r)
}

// failingStore is a RecordStore whose tables fail selected operations.
type failingStore struct {
	inner      *store.Memory
	failTable  bool
	failRead   bool
	failAppend bool

	// failReadAfterAppend fails every Rows call once an Append succeeded.
	failReadAfterAppend bool
	appended            bool
}

func newFailingStore() *failingStore {
	return &failingStore{inner: store.NewMemory()}
}

func (s *failingStore) Table(ctx context.Context, name string) (generic.Table, error) {
	if s.failTable {
		return nil, errBackend
	}
	t, err := s.inner.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingTable{Table: t, s: s}, nil
}

func (s *failingStore) Close() error { return nil }

type failingTable struct {
	generic.Table
	s *failingStore
}

func (t *failingTable) Rows(ctx context.Context) ([][]string, error) {
	if t.s.failRead || (t.s.failReadAfterAppend && t.s.appended) {
		return nil, errBackend
	}
	return t.Table.Rows(ctx)
}

func (t *failingTable) Append(ctx context.Context, rows [][]string) error {
	if t.s.failAppend {
		return errBackend
	}
	if err := t.Table.Append(ctx, rows); err != nil {
		return err
	}
	t.s.appended = true
	return nil
}

// recorder captures observations.
type recorder struct {
	agenda.NopRecorder
	mu       sync.Mutex
	outcomes []string
	cache    map[string][2]int
	storage  []string
	imports  int
}

func newRecorder() *recorder { return &recorder{cache: make(map[string][2]int)} }

func (r *recorder) ObserveAdmission(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) ObserveCache(name string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.cache[name]
	if hit {
		c[0]++
	} else {
		c[1]++
	}
	r.cache[name] = c
}

func (r *recorder) ObserveStorageError(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage = append(r.storage, op)
}

func (r *recorder) ObserveImport(string, string, int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imports++
}
