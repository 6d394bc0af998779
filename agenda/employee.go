package agenda

import (
	"sort"
	"strings"
)

// EmployeeNumber is the directory key. It is text: "007" and "7" are
// different numbers, though "7" may resolve to "007" through an alias.
type EmployeeNumber string

// NewEmployeeNumber trims surrounding whitespace.
func NewEmployeeNumber(s string) EmployeeNumber {
	return EmployeeNumber(strings.TrimSpace(s))
}

func (n EmployeeNumber) String() string { return string(n) }

// Canonical strips leading zeros. "0" and "000" canonicalise to "".
func (n EmployeeNumber) Canonical() EmployeeNumber {
	return EmployeeNumber(strings.TrimLeft(string(n), "0"))
}

// Employee is one directory entry.
type Employee struct {
	Number EmployeeNumber `json:"number"`
	Name   string         `json:"name"`
	Team   string         `json:"team"`
}

// Row is the persisted form: numero, nombre, equipo.
func (e Employee) Row() []string {
	return []string{string(e.Number), e.Name, e.Team}
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory resolves employee numbers, including zero-stripped aliases.
//
// Registration follows row order. A real number always takes its key, even
// when an earlier row registered the same key as an alias. An alias is only
// registered when its key is still free, so the first "007"-style row wins
// the "7" alias.
type Directory struct {
	entries map[EmployeeNumber]Employee
	aliases map[EmployeeNumber]EmployeeNumber
	order   []EmployeeNumber
}

// BuildDirectory indexes employees. Rows with an empty number are skipped.
func BuildDirectory(employees []Employee) *Directory {
	d := &Directory{
		entries: make(map[EmployeeNumber]Employee, len(employees)),
		aliases: make(map[EmployeeNumber]EmployeeNumber),
	}
	for _, e := range employees {
		e.Number = NewEmployeeNumber(string(e.Number))
		if e.Number == "" {
			continue
		}
		if _, seen := d.entries[e.Number]; !seen {
			d.order = append(d.order, e.Number)
		}
		d.entries[e.Number] = e
		delete(d.aliases, e.Number)

		alias := e.Number.Canonical()
		if alias == "" || alias == e.Number {
			continue
		}
		if _, taken := d.entries[alias]; taken {
			continue
		}
		if _, taken := d.aliases[alias]; taken {
			continue
		}
		d.aliases[alias] = e.Number
	}
	return d
}

// Lookup resolves a typed number, trying real numbers before aliases.
func (d *Directory) Lookup(number string) (Employee, bool) {
	n := NewEmployeeNumber(number)
	if e, ok := d.entries[n]; ok {
		return e, true
	}
	if real, ok := d.aliases[n]; ok {
		return d.entries[real], true
	}
	return Employee{}, false
}

// AliasOf returns the real number an alias points at.
func (d *Directory) AliasOf(number string) (EmployeeNumber, bool) {
	real, ok := d.aliases[NewEmployeeNumber(number)]
	return real, ok
}

// Len counts real numbers, not aliases.
func (d *Directory) Len() int { return len(d.entries) }

// Employees lists entries in first-registration order.
func (d *Directory) Employees() []Employee {
	out := make([]Employee, 0, len(d.order))
	for _, n := range d.order {
		out = append(out, d.entries[n])
	}
	return out
}

// Teams lists distinct non-empty team names, sorted.
func (d *Directory) Teams() []string {
	seen := make(map[string]bool)
	var teams []string
	for _, e := range d.entries {
		if e.Team != "" && !seen[e.Team] {
			seen[e.Team] = true
			teams = append(teams, e.Team)
		}
	}
	sort.Strings(teams)
	return teams
}
