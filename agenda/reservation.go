package agenda

import (
	"fmt"
	"strings"

	"github.com/warp/agenda/generic"
)

// =============================================================================
// KIND
// =============================================================================

// Kind is the reason for an absence.
type Kind string

const (
	KindVacation   Kind = "Vacation"
	KindPermission Kind = "Permission"
	KindSanction   Kind = "Sanction"
)

// Kinds in report column order.
var Kinds = []Kind{KindVacation, KindPermission, KindSanction}

// labels are what the agenda table stores for each kind.
var labels = map[Kind]string{
	KindVacation:   "Vacaciones",
	KindPermission: "Permiso",
	KindSanction:   "Sanción",
}

// kindTypos are known misspellings found in historical sheets.
var kindTypos = map[string]string{
	"Sansión": "Sanción",
}

// Label is the stored text for k.
func (k Kind) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// ParseKind accepts stored labels and English names, case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = NormalizeKindLabel(s)
	for _, k := range Kinds {
		if strings.EqualFold(s, string(k)) || strings.EqualFold(s, k.Label()) {
			return k, nil
		}
	}
	switch strings.ToLower(s) {
	case "vacacion", "vacación":
		return KindVacation, nil
	case "sancion":
		return KindSanction, nil
	}
	return "", fmt.Errorf("%w: %q", generic.ErrUnknownKind, s)
}

// NormalizeKindLabel trims s and fixes known typos. Anything else is kept
// as written, since imported history may carry labels of its own.
func NormalizeKindLabel(s string) string {
	s = strings.TrimSpace(s)
	if fixed, ok := kindTypos[s]; ok {
		return fixed
	}
	return s
}

// =============================================================================
// RESERVATION
// =============================================================================

// Reservation is one agenda row. Kind holds the stored label.
type Reservation struct {
	EmployeeNumber EmployeeNumber `json:"employee_number"`
	EmployeeName   string         `json:"employee_name"`
	Team           string         `json:"team"`
	Date           generic.Date   `json:"-"`
	Kind           string         `json:"kind"`
}

// Key identifies a reservation for import deduplication.
func (r Reservation) Key() string {
	return strings.TrimSpace(string(r.EmployeeNumber)) + "|" + r.Date.String() + "|" + NormalizeKindLabel(r.Kind)
}

// Row is the persisted form: numero, nombre, equipo, fecha, tipo.
func (r Reservation) Row() []string {
	return []string{string(r.EmployeeNumber), r.EmployeeName, r.Team, r.Date.String(), r.Kind}
}

// DayOf returns the reservations on d, in snapshot order.
func DayOf(snapshot []Reservation, d generic.Date) []Reservation {
	var out []Reservation
	for _, r := range snapshot {
		if r.Date == d {
			out = append(out, r)
		}
	}
	return out
}

// CountOn is len(DayOf(snapshot, d)) without the allocation.
func CountOn(snapshot []Reservation, d generic.Date) int {
	n := 0
	for _, r := range snapshot {
		if r.Date == d {
			n++
		}
	}
	return n
}
