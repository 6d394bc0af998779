/*
importer.go - Bulk loading of reservation history and the employee directory

PURPOSE:
  Admin uploads bypass admission entirely. The importer maps loosely named
  columns onto the agenda layouts and writes the result in one append or
  one replace.

COLUMN RESOLUTION:
  Header cells are compared lower-cased and trimmed against a synonym
  list per field. The first synonym present wins. If any field has no
  column, the whole batch is rejected with SchemaMismatch.

MODES:
  append:  Reservations whose Key() already exists in the stored
           snapshot are skipped. Rows in the same batch are NOT checked
           against each other, so a batch that repeats a row writes it
           twice. Employees are appended as given.
  replace: The table is cleared and rewritten with the batch.

ROW FILTERS (reservations only):
  - fecha that does not parse: dropped, counted in Dropped
  - tipo is trimmed and the "Sansión" typo fixed, otherwise kept as is

SEE ALSO:
  - tabular/decode.go: Produces the Frame
  - repository.go: Writes the rows
*/
package agenda

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/tabular"
)

// ImportMode selects append or replace.
type ImportMode string

const (
	ModeAppend  ImportMode = "append"
	ModeReplace ImportMode = "replace"
)

// ParseImportMode accepts append/replace and the legacy anexar/reemplazar.
// Empty means append.
func ParseImportMode(s string) (ImportMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "append", "anexar":
		return ModeAppend, nil
	case "replace", "reemplazar":
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// ImportResult summarises one batch.
type ImportResult struct {
	BatchID    string     `json:"batch_id"`
	Table      string     `json:"table"`
	Mode       ImportMode `json:"mode"`
	Received   int        `json:"received"`
	Appended   int        `json:"appended"`
	Duplicates int        `json:"duplicates"`
	Dropped    int        `json:"dropped"`
}

// Column synonyms, in priority order.
var (
	numberColumns = []string{"numero", "número", "id", "empleado", "num", "number", "employee"}
	teamColumns   = []string{"equipo", "team", "depto", "departamento"}

	employeeColumns = []column{
		{"number", numberColumns},
		{"name", []string{"nombre", "name"}},
		{"team", teamColumns},
	}

	reservationColumns = []column{
		{"number", numberColumns},
		{"name", []string{"nombre", "name", "empleado_nombre"}},
		{"team", teamColumns},
		{"date", []string{"fecha", "date", "dia", "día"}},
		{"kind", []string{"tipo", "motivo", "clase", "kind", "type"}},
	}
)

type column struct {
	field    string
	synonyms []string
}

// resolve maps each field to a header index, in columns order.
func resolve(table string, header []string, columns []column) ([]int, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	idx := make([]int, len(columns))
	var missing []string
	for i, c := range columns {
		idx[i] = -1
		for _, s := range c.synonyms {
			if j, ok := byName[s]; ok {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			missing = append(missing, c.field)
		}
	}
	if len(missing) > 0 {
		return nil, &generic.SchemaMismatchError{Table: table, Missing: missing}
	}
	return idx, nil
}

// =============================================================================
// IMPORTER
// =============================================================================

// Importer writes decoded frames through the repositories.
type Importer struct {
	reservations *ReservationRepository
	employees    *DirectoryRepository
	rec          Recorder
	newID        func() string
}

// NewImporter creates an importer. rec may be nil.
func NewImporter(reservations *ReservationRepository, employees *DirectoryRepository, rec Recorder) *Importer {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Importer{
		reservations: reservations,
		employees:    employees,
		rec:          rec,
		newID:        uuid.NewString,
	}
}

// NormalizeReservations resolves columns and parses rows without writing.
// The int is the number of rows dropped for an unparseable date.
func NormalizeReservations(f tabular.Frame) ([]Reservation, int, error) {
	idx, err := resolve(DefaultReservationsTable, f.Header, reservationColumns)
	if err != nil {
		return nil, 0, err
	}

	out := make([]Reservation, 0, f.Len())
	dropped := 0
	for _, row := range f.Rows {
		d, err := generic.ParseDate(f.Cell(row, idx[3]))
		if err != nil {
			dropped++
			continue
		}
		out = append(out, Reservation{
			EmployeeNumber: NewEmployeeNumber(f.Cell(row, idx[0])),
			EmployeeName:   f.Cell(row, idx[1]),
			Team:           f.Cell(row, idx[2]),
			Date:           d,
			Kind:           NormalizeKindLabel(f.Cell(row, idx[4])),
		})
	}
	return out, dropped, nil
}

// NormalizeEmployees resolves columns and trims cells without writing.
func NormalizeEmployees(f tabular.Frame) ([]Employee, error) {
	idx, err := resolve(DefaultEmployeesTable, f.Header, employeeColumns)
	if err != nil {
		return nil, err
	}
	out := make([]Employee, 0, f.Len())
	for _, row := range f.Rows {
		out = append(out, Employee{
			Number: NewEmployeeNumber(f.Cell(row, idx[0])),
			Name:   f.Cell(row, idx[1]),
			Team:   f.Cell(row, idx[2]),
		})
	}
	return out, nil
}

// ImportReservations writes f to the agenda table.
func (im *Importer) ImportReservations(ctx context.Context, f tabular.Frame, mode ImportMode) (ImportResult, error) {
	result := ImportResult{
		BatchID:  im.newID(),
		Table:    im.reservations.Table(),
		Mode:     mode,
		Received: f.Len(),
	}

	rows, dropped, err := NormalizeReservations(f)
	if err != nil {
		return result, err
	}
	result.Dropped = dropped

	switch mode {
	case ModeReplace:
		if err := im.reservations.ReplaceAll(ctx, rows); err != nil {
			return result, err
		}
		result.Appended = len(rows)

	case ModeAppend:
		existing, err := im.reservations.LoadSnapshot(ctx)
		if err != nil {
			return result, err
		}
		fresh := Dedup(existing, rows)
		if err := im.reservations.AppendRows(ctx, fresh); err != nil {
			return result, err
		}
		result.Appended = len(fresh)
		result.Duplicates = len(rows) - len(fresh)

	default:
		return result, fmt.Errorf("unknown import mode %q", mode)
	}

	im.rec.ObserveImport(result.Table, string(mode), result.Appended, result.Duplicates, result.Dropped)
	return result, nil
}

// ImportEmployees writes f to the directory table.
func (im *Importer) ImportEmployees(ctx context.Context, f tabular.Frame, mode ImportMode) (ImportResult, error) {
	result := ImportResult{
		BatchID:  im.newID(),
		Table:    im.employees.Table(),
		Mode:     mode,
		Received: f.Len(),
	}

	emps, err := NormalizeEmployees(f)
	if err != nil {
		return result, err
	}

	switch mode {
	case ModeReplace:
		err = im.employees.ReplaceEmployees(ctx, emps)
	case ModeAppend:
		err = im.employees.AppendEmployees(ctx, emps)
	default:
		err = fmt.Errorf("unknown import mode %q", mode)
	}
	if err != nil {
		return result, err
	}
	result.Appended = len(emps)

	im.rec.ObserveImport(result.Table, string(mode), result.Appended, 0, 0)
	return result, nil
}

// Dedup returns the rows of batch whose Key is not in existing. Rows in
// batch are not compared with each other.
func Dedup(existing, batch []Reservation) []Reservation {
	keys := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		keys[r.Key()] = struct{}{}
	}
	var out []Reservation
	for _, r := range batch {
		if _, dup := keys[r.Key()]; !dup {
			out = append(out, r)
		}
	}
	return out
}
