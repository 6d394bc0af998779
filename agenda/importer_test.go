package agenda_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/agenda/agenda"
	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/generic/store"
	"github.com/warp/agenda/tabular"
)

func newImporter(s generic.RecordStore) (*agenda.Importer, *agenda.ReservationRepository) {
	reservations := agenda.NewReservationRepository(s, "")
	employees := agenda.NewDirectoryRepository(s, "")
	return agenda.NewImporter(reservations, employees, nil), reservations
}

func historyFrame(rows ...[]string) tabular.Frame {
	return tabular.Frame{Header: []string{"Número", "Nombre", "Depto", "Día", "Motivo"}, Rows: rows}
}

func TestImport_ScenarioE_SkipsStoredDuplicates(t *testing.T) {
	// GIVEN: Two stored rows
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s,
		res("1", "Ops", "2025-06-10", "Vacaciones"),
		res("2", "Sales", "2025-06-11", "Permiso"),
	)
	im, repo := newImporter(s)

	// WHEN: Importing 5 rows, 2 of which match stored keys
	result, err := im.ImportReservations(ctx, historyFrame(
		[]string{"1", "Emp 1", "Ops", "2025-06-10", "Vacaciones"},
		[]string{"2", "Emp 2", "Sales", "2025-06-11", "Permiso"},
		[]string{"3", "Emp 3", "HR", "2025-06-12", "Vacaciones"},
		[]string{"4", "Emp 4", "Ops", "2025-06-13", "Sanción"},
		[]string{"1", "Emp 1", "Ops", "2025-06-10", "Permiso"},
	), agenda.ModeAppend)

	// THEN: Exactly 3 appended
	require.NoError(t, err)
	assert.Equal(t, 5, result.Received)
	assert.Equal(t, 3, result.Appended)
	assert.Equal(t, 2, result.Duplicates)
	_, parseErr := uuid.Parse(result.BatchID)
	assert.NoError(t, parseErr)

	snap, _ := repo.LoadSnapshot(ctx)
	assert.Len(t, snap, 5)
}

func TestImport_ReimportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	im, repo := newImporter(store.NewMemory())
	batch := historyFrame(
		[]string{"1", "Ana", "Ops", "2025-06-10", "Vacaciones"},
		[]string{"2", "Bea", "Sales", "06/11/2025", "Sansión"},
	)

	first, err := im.ImportReservations(ctx, batch, agenda.ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Appended)

	second, err := im.ImportReservations(ctx, batch, agenda.ModeAppend)
	require.NoError(t, err)
	assert.Zero(t, second.Appended)
	assert.Equal(t, 2, second.Duplicates)

	snap, _ := repo.LoadSnapshot(ctx)
	assert.Len(t, snap, 2)
	assert.Equal(t, "Sanción", snap[1].Kind, "typo fixed on import")
}

func TestImport_DuplicatesInsideBatchAreKept(t *testing.T) {
	ctx := context.Background()
	im, _ := newImporter(store.NewMemory())
	row := []string{"1", "Ana", "Ops", "2025-06-10", "Vacaciones"}

	result, err := im.ImportReservations(ctx, historyFrame(row, row), agenda.ModeAppend)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Appended)
}

func TestImport_DropsUnparseableDates(t *testing.T) {
	ctx := context.Background()
	im, _ := newImporter(store.NewMemory())

	result, err := im.ImportReservations(ctx, historyFrame(
		[]string{"1", "Ana", "Ops", "2025-06-10", "Vacaciones"},
		[]string{"2", "Bea", "Sales", "mañana", "Permiso"},
		[]string{"3", "Cris", "HR", "", "Permiso"},
	), agenda.ModeAppend)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Received)
	assert.Equal(t, 1, result.Appended)
	assert.Equal(t, 2, result.Dropped)
}

func TestImport_SchemaMismatchRejectsBatch(t *testing.T) {
	ctx := context.Background()
	im, repo := newImporter(store.NewMemory())

	_, err := im.ImportReservations(ctx, tabular.Frame{
		Header: []string{"numero", "nombre", "fecha"},
		Rows:   [][]string{{"1", "Ana", "2025-06-10"}},
	}, agenda.ModeAppend)

	assert.ErrorIs(t, err, generic.ErrSchemaMismatch)
	var sm *generic.SchemaMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, []string{"team", "kind"}, sm.Missing)

	snap, _ := repo.LoadSnapshot(ctx)
	assert.Empty(t, snap)
}

func TestImport_ReplaceRewritesTable(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s, res("1", "Ops", day, "Vacaciones"), res("2", "Sales", day, "Vacaciones"))
	im, repo := newImporter(s)

	result, err := im.ImportReservations(ctx, historyFrame(
		[]string{"1", "Ana", "Ops", day, "Vacaciones"},
	), agenda.ModeReplace)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Appended)
	snap, _ := repo.LoadSnapshot(ctx)
	assert.Len(t, snap, 1)
}

func TestImportEmployees_AppendAndReplace(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	im, _ := newImporter(s)
	frame := tabular.Frame{
		Header: []string{"ID", "Name", "Team"},
		Rows:   [][]string{{"007", " Ana ", "Ops"}, {"8", "Luis", "Sales"}},
	}

	result, err := im.ImportEmployees(ctx, frame, agenda.ModeAppend)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Appended)

	_, err = im.ImportEmployees(ctx, frame, agenda.ModeAppend)
	require.NoError(t, err)
	emps, _ := agenda.NewDirectoryRepository(s, "").LoadEmployees(ctx)
	assert.Len(t, emps, 4, "employee appends are not deduplicated")

	_, err = im.ImportEmployees(ctx, frame, agenda.ModeReplace)
	require.NoError(t, err)
	dir, _ := agenda.NewDirectoryRepository(s, "").LoadDirectory(ctx)
	assert.Equal(t, 2, dir.Len())
	e, ok := dir.Lookup("7")
	require.True(t, ok)
	assert.Equal(t, "Ana", e.Name)
}

func TestImportEmployees_SchemaMismatch(t *testing.T) {
	im, _ := newImporter(store.NewMemory())
	_, err := im.ImportEmployees(context.Background(), tabular.Frame{Header: []string{"numero", "nombre"}}, agenda.ModeAppend)
	assert.ErrorIs(t, err, generic.ErrSchemaMismatch)
}

func TestParseImportMode(t *testing.T) {
	for in, want := range map[string]agenda.ImportMode{
		"":           agenda.ModeAppend,
		"Anexar":     agenda.ModeAppend,
		"replace":    agenda.ModeReplace,
		"REEMPLAZAR": agenda.ModeReplace,
	} {
		got, err := agenda.ParseImportMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := agenda.ParseImportMode("merge")
	assert.Error(t, err)
}

func TestDedup(t *testing.T) {
	existing := []agenda.Reservation{res("1", "Ops", day, "Vacaciones")}
	batch := []agenda.Reservation{
		res("1", "Ops", day, "Vacaciones"),
		res("1", "Ops", day, "Permiso"),
		res("1", "Ops", "2025-06-11", "Vacaciones"),
	}
	assert.Len(t, agenda.Dedup(existing, batch), 2)
}
