/*
repository.go - Row mapping between agenda types and the record store

PURPOSE:
  The record store only knows tables of text cells. These repositories
  own the two table layouts and the header rule, and turn rows into
  Reservations and Employees.

TABLE LAYOUTS:
  agenda:    numero | nombre | equipo | fecha | tipo
  empleados: numero | nombre | equipo

  Columns are positional. Short rows are padded, extra cells ignored.

HEADER RULE:
  Every operation first opens the table and calls generic.EnsureHeader,
  so a hand-edited or freshly created table is repaired before use.

READ SEMANTICS:
  - All cells are trimmed
  - Agenda rows whose fecha does not parse are dropped silently
  - Nothing is cached here; every call hits the store

SEE ALSO:
  - generic/store.go: Table and EnsureHeader
  - cache.go: Short-lived snapshot cache used by read paths
*/
package agenda

import (
	"context"
	"strings"

	"github.com/warp/agenda/generic"
)

// Default table names, matching the legacy spreadsheet tabs.
const (
	DefaultReservationsTable = "agenda"
	DefaultEmployeesTable    = "empleados"
)

var (
	// ReservationHeader is the agenda table header.
	ReservationHeader = []string{"numero", "nombre", "equipo", "fecha", "tipo"}

	// EmployeeHeader is the directory table header.
	EmployeeHeader = []string{"numero", "nombre", "equipo"}
)

// openTable returns name with its header enforced.
func openTable(ctx context.Context, store generic.RecordStore, name string, header []string) (generic.Table, error) {
	t, err := store.Table(ctx, name)
	if err != nil {
		return nil, generic.Unavailable("open "+name, err)
	}
	if err := generic.EnsureHeader(ctx, t, header); err != nil {
		return nil, generic.Unavailable("ensure header of "+name, err)
	}
	return t, nil
}

// dataRows reads the table and drops the header row. Rows are padded to
// the header width and trimmed.
func dataRows(ctx context.Context, t generic.Table, header []string) ([][]string, error) {
	rows, err := t.Rows(ctx)
	if err != nil {
		return nil, generic.Unavailable("read "+t.Name(), err)
	}
	if len(rows) > 0 && generic.HeaderMatches(rows[0], header) {
		rows = rows[1:]
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		r = generic.PadRow(r, len(header))
		for i := range r {
			r[i] = strings.TrimSpace(r[i])
		}
		out = append(out, r)
	}
	return out, nil
}

// =============================================================================
// RESERVATION REPOSITORY
// =============================================================================

// ReservationRepository reads and writes the agenda table.
type ReservationRepository struct {
	store generic.RecordStore
	table string
}

// NewReservationRepository binds to table in store. An empty name means
// DefaultReservationsTable.
func NewReservationRepository(store generic.RecordStore, table string) *ReservationRepository {
	if table == "" {
		table = DefaultReservationsTable
	}
	return &ReservationRepository{store: store, table: table}
}

// Table is the bound table name.
func (r *ReservationRepository) Table() string { return r.table }

// LoadSnapshot reads every reservation with a parseable date.
func (r *ReservationRepository) LoadSnapshot(ctx context.Context) ([]Reservation, error) {
	t, err := openTable(ctx, r.store, r.table, ReservationHeader)
	if err != nil {
		return nil, err
	}
	rows, err := dataRows(ctx, t, ReservationHeader)
	if err != nil {
		return nil, err
	}

	out := make([]Reservation, 0, len(rows))
	for _, row := range rows {
		d, err := generic.ParseDate(row[3])
		if err != nil {
			continue
		}
		out = append(out, Reservation{
			EmployeeNumber: EmployeeNumber(row[0]),
			EmployeeName:   row[1],
			Team:           row[2],
			Date:           d,
			Kind:           row[4],
		})
	}
	return out, nil
}

// AppendRow writes one reservation. No rule is checked.
func (r *ReservationRepository) AppendRow(ctx context.Context, res Reservation) error {
	return r.AppendRows(ctx, []Reservation{res})
}

// AppendRows writes reservations in one append.
func (r *ReservationRepository) AppendRows(ctx context.Context, rs []Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	t, err := openTable(ctx, r.store, r.table, ReservationHeader)
	if err != nil {
		return err
	}
	rows := make([][]string, len(rs))
	for i, res := range rs {
		rows[i] = res.Row()
	}
	return generic.Unavailable("append to "+r.table, t.Append(ctx, rows))
}

// ReplaceAll clears the table and writes header plus rs. Readers running
// in between may see an empty or partial table.
func (r *ReservationRepository) ReplaceAll(ctx context.Context, rs []Reservation) error {
	rows := make([][]string, len(rs))
	for i, res := range rs {
		rows[i] = res.Row()
	}
	return replaceTable(ctx, r.store, r.table, ReservationHeader, rows)
}

func replaceTable(ctx context.Context, store generic.RecordStore, name string, header []string, rows [][]string) error {
	t, err := store.Table(ctx, name)
	if err != nil {
		return generic.Unavailable("open "+name, err)
	}
	all := make([][]string, 0, len(rows)+1)
	all = append(all, header)
	all = append(all, rows...)
	return generic.Unavailable("rewrite "+name, generic.ReplaceRows(ctx, t, all))
}

// =============================================================================
// DIRECTORY REPOSITORY
// =============================================================================

// DirectoryRepository reads and writes the empleados table.
type DirectoryRepository struct {
	store generic.RecordStore
	table string
}

// NewDirectoryRepository binds to table in store. An empty name means
// DefaultEmployeesTable.
func NewDirectoryRepository(store generic.RecordStore, table string) *DirectoryRepository {
	if table == "" {
		table = DefaultEmployeesTable
	}
	return &DirectoryRepository{store: store, table: table}
}

// Table is the bound table name.
func (r *DirectoryRepository) Table() string { return r.table }

// LoadEmployees reads every row, trimmed, including rows with an empty number.
func (r *DirectoryRepository) LoadEmployees(ctx context.Context) ([]Employee, error) {
	t, err := openTable(ctx, r.store, r.table, EmployeeHeader)
	if err != nil {
		return nil, err
	}
	rows, err := dataRows(ctx, t, EmployeeHeader)
	if err != nil {
		return nil, err
	}
	out := make([]Employee, 0, len(rows))
	for _, row := range rows {
		out = append(out, Employee{Number: EmployeeNumber(row[0]), Name: row[1], Team: row[2]})
	}
	return out, nil
}

// LoadDirectory reads the table and builds the alias-aware directory.
func (r *DirectoryRepository) LoadDirectory(ctx context.Context) (*Directory, error) {
	emps, err := r.LoadEmployees(ctx)
	if err != nil {
		return nil, err
	}
	return BuildDirectory(emps), nil
}

// AppendEmployees writes rows as given. Duplicates are not checked.
func (r *DirectoryRepository) AppendEmployees(ctx context.Context, emps []Employee) error {
	if len(emps) == 0 {
		return nil
	}
	t, err := openTable(ctx, r.store, r.table, EmployeeHeader)
	if err != nil {
		return err
	}
	rows := make([][]string, len(emps))
	for i, e := range emps {
		rows[i] = e.Row()
	}
	return generic.Unavailable("append to "+r.table, t.Append(ctx, rows))
}

// ReplaceEmployees clears the table and writes header plus emps.
func (r *DirectoryRepository) ReplaceEmployees(ctx context.Context, emps []Employee) error {
	rows := make([][]string, len(emps))
	for i, e := range emps {
		rows[i] = e.Row()
	}
	return replaceTable(ctx, r.store, r.table, EmployeeHeader, rows)
}
