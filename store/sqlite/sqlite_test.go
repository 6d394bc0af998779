package sqlite_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/agenda/agenda"
	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_AppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	tbl, err := newStore(t).Table(ctx, "agenda")
	require.NoError(t, err)

	require.NoError(t, tbl.Append(ctx, [][]string{{"a", "1"}, {"b", "2"}}))
	require.NoError(t, tbl.Append(ctx, [][]string{{"c", "3"}}))

	rows, err := tbl.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}}, rows)
}

func TestSQLite_PrependGoesFirst(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newStore(t).Table(ctx, "agenda")

	require.NoError(t, tbl.Append(ctx, [][]string{{"row"}}))
	require.NoError(t, tbl.Prepend(ctx, []string{"header"}))

	first, err := tbl.Header(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"header"}, first)
}

func TestSQLite_TablesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a, _ := s.Table(ctx, "agenda")
	b, _ := s.Table(ctx, "empleados")

	require.NoError(t, a.Append(ctx, [][]string{{"x"}}))
	require.NoError(t, b.Clear(ctx))

	rows, _ := a.Rows(ctx)
	assert.Len(t, rows, 1)

	names, err := s.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"agenda", "empleados"}, names)
}

func TestSQLite_DuplicateRowsAllowed(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newStore(t).Table(ctx, "agenda")
	row := []string{"7", "Ana", "Ops", "2025-06-10", "Vacaciones"}

	require.NoError(t, tbl.Append(ctx, [][]string{row, row}))

	rows, _ := tbl.Rows(ctx)
	assert.Len(t, rows, 2)
}

func TestSQLite_ClearThenEnsureHeader(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newStore(t).Table(ctx, "agenda")
	header := []string{"numero", "nombre"}

	require.NoError(t, tbl.Append(ctx, [][]string{{"1", "Ana"}}))
	require.NoError(t, tbl.Clear(ctx))
	require.NoError(t, generic.EnsureHeader(ctx, tbl, header))

	rows, _ := tbl.Rows(ctx)
	assert.Equal(t, [][]string{header}, rows)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agenda.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	tbl, _ := s.Table(ctx, "agenda")
	require.NoError(t, tbl.Append(ctx, [][]string{{"kept"}}))
	require.NoError(t, s.Close())

	s2, err := sqlite.New(path)
	require.NoError(t, err)
	defer s2.Close()
	tbl2, _ := s2.Table(ctx, "agenda")
	rows, err := tbl2.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"kept"}}, rows)
}

func TestSQLite_ClosedStoreReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	tbl, _ := s.Table(ctx, "agenda")
	require.NoError(t, s.Close())

	_, err = tbl.Rows(ctx)
	assert.ErrorIs(t, err, generic.ErrStorageUnavailable)
}

// bigBatch is larger than one INSERT could carry under SQLite's variable limit.
const bigBatch = 12000

func TestSQLite_AppendLargeBatch(t *testing.T) {
	ctx := context.Background()
	tbl, err := newStore(t).Table(ctx, "agenda")
	require.NoError(t, err)

	rows := make([][]string, bigBatch)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i)}
	}
	require.NoError(t, tbl.Append(ctx, rows))

	got, err := tbl.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, got, bigBatch)
	assert.Equal(t, []string{"0"}, got[0])
	assert.Equal(t, []string{strconv.Itoa(bigBatch - 1)}, got[bigBatch-1])
}

func TestSQLite_ReplaceAllLargeBatchKeepsEveryRow(t *testing.T) {
	// GIVEN: One stored reservation
	ctx := context.Background()
	repo := agenda.NewReservationRepository(newStore(t), "")
	require.NoError(t, repo.AppendRow(ctx, agenda.Reservation{
		EmployeeNumber: "1", EmployeeName: "Ana", Team: "Ops",
		Date: generic.MustParseDate("2025-06-10"), Kind: "Vacaciones",
	}))

	// WHEN: Replacing the table with a batch beyond a single statement
	start := generic.MustParseDate("2025-01-01")
	batch := make([]agenda.Reservation, bigBatch)
	for i := range batch {
		batch[i] = agenda.Reservation{
			EmployeeNumber: agenda.EmployeeNumber(strconv.Itoa(i)),
			EmployeeName:   "Emp",
			Team:           "Ops",
			Date:           start.AddDays(i % 365),
			Kind:           "Permiso",
		}
	}
	require.NoError(t, repo.ReplaceAll(ctx, batch))

	// THEN: The whole batch is stored
	snap, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, bigBatch)
}

func TestSQLite_FailedReplaceKeepsPreviousRows(t *testing.T) {
	ctx := context.Background()
	tbl, err := newStore(t).Table(ctx, "agenda")
	require.NoError(t, err)
	require.NoError(t, tbl.Append(ctx, [][]string{{"numero"}, {"7"}}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = generic.ReplaceRows(cancelled, tbl, [][]string{{"numero"}})
	assert.ErrorIs(t, err, generic.ErrStorageUnavailable)

	rows, err := tbl.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"numero"}, {"7"}}, rows)
}
