/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types keep
  dates as generic.Date and hide them from JSON; DTOs render every date
  as an ISO string so the booking screen never parses Go structs.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Employees:     EmployeeDTO
  Reservations:  ReservationDTO, AdmitRequest, DayDTO, PreviewDTO
  Reports:       MonthlyReportDTO, DayCountDTO
  Admin:         DiagnosticsDTO (imports return agenda.ImportResult)

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/agenda/agenda"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents a directory entry.
type EmployeeDTO struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Team   string `json:"team"`
}

// ReservationDTO represents one agenda row.
type ReservationDTO struct {
	EmployeeNumber string `json:"employee_number"`
	EmployeeName   string `json:"employee_name"`
	Team           string `json:"team"`
	Date           string `json:"date"`
	Kind           string `json:"kind"`
}

// AdmitRequest is the booking form.
type AdmitRequest struct {
	EmployeeNumber string `json:"employee_number"`
	Date           string `json:"date"`
	Kind           string `json:"kind"`
}

// DayDTO lists one day's reservations.
type DayDTO struct {
	Date         string           `json:"date"`
	Capacity     int              `json:"capacity"`
	Remaining    int              `json:"remaining"`
	Reservations []ReservationDTO `json:"reservations"`
}

// PreviewDTO tells the booking screen whether a request would pass.
// It reflects the cached snapshot; the actual admission re-reads.
type PreviewDTO struct {
	Allowed bool   `json:"allowed"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	Day     DayDTO `json:"day"`
}

// DayCountDTO is one row of the per-day report.
type DayCountDTO struct {
	Date        string          `json:"date"`
	Count       int             `json:"count"`
	Utilization decimal.Decimal `json:"utilization"`
}

// MonthlyReportDTO is the JSON form of agenda.MonthlyReport.
type MonthlyReportDTO struct {
	Year     int                `json:"year"`
	Month    int                `json:"month"`
	Capacity int                `json:"capacity"`
	Total    int                `json:"total"`
	Teams    []agenda.TeamTally `json:"teams"`
	Days     []DayCountDTO      `json:"days"`
	Critical []DayCountDTO      `json:"critical"`
}

// CalendarDTO is the month grid.
type CalendarDTO struct {
	Year     int              `json:"year"`
	Month    int              `json:"month"`
	Team     string           `json:"team,omitempty"`
	Capacity int              `json:"capacity"`
	Weeks    [][7]int         `json:"weeks"`
	Days     []CalendarDayDTO `json:"days"`
}

// CalendarDayDTO is one cell of the grid.
type CalendarDayDTO struct {
	Date      string       `json:"date"`
	Count     int          `json:"count"`
	TeamCount int          `json:"team_count"`
	Level     agenda.Level `json:"level"`
	Hidden    bool         `json:"hidden,omitempty"`
}

// DiagnosticsDTO is the admin table overview.
type DiagnosticsDTO struct {
	ReservationsTable  string           `json:"reservations_table"`
	EmployeesTable     string           `json:"employees_table"`
	Employees          int              `json:"employees"`
	Reservations       int              `json:"reservations"`
	Capacity           int              `json:"capacity"`
	SampleEmployees    []EmployeeDTO    `json:"sample_employees"`
	SampleReservations []ReservationDTO `json:"sample_reservations"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`

	// Reservation is set when the row was written despite the error.
	Reservation *ReservationDTO `json:"reservation,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e agenda.Employee) EmployeeDTO {
	return EmployeeDTO{Number: string(e.Number), Name: e.Name, Team: e.Team}
}

func toEmployeeDTOs(es []agenda.Employee) []EmployeeDTO {
	out := make([]EmployeeDTO, len(es))
	for i, e := range es {
		out[i] = toEmployeeDTO(e)
	}
	return out
}

func toReservationDTO(r agenda.Reservation) ReservationDTO {
	return ReservationDTO{
		EmployeeNumber: string(r.EmployeeNumber),
		EmployeeName:   r.EmployeeName,
		Team:           r.Team,
		Date:           r.Date.String(),
		Kind:           r.Kind,
	}
}

func toReservationDTOs(rs []agenda.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, len(rs))
	for i, r := range rs {
		out[i] = toReservationDTO(r)
	}
	return out
}

func toDayDTO(v agenda.DayView) DayDTO {
	return DayDTO{
		Date:         v.Date.String(),
		Capacity:     v.Capacity,
		Remaining:    v.Remaining(),
		Reservations: toReservationDTOs(v.Reservations),
	}
}

func toDayCountDTOs(ds []agenda.DayCount) []DayCountDTO {
	out := make([]DayCountDTO, len(ds))
	for i, d := range ds {
		out[i] = DayCountDTO{Date: d.Date.String(), Count: d.Count, Utilization: d.Utilization}
	}
	return out
}

func toMonthlyReportDTO(r agenda.MonthlyReport) MonthlyReportDTO {
	teams := r.Teams
	if teams == nil {
		teams = []agenda.TeamTally{}
	}
	return MonthlyReportDTO{
		Year:     r.Year,
		Month:    int(r.Month),
		Capacity: r.Capacity,
		Total:    r.Total,
		Teams:    teams,
		Days:     toDayCountDTOs(r.Days),
		Critical: toDayCountDTOs(r.Critical),
	}
}

func toCalendarDTO(c agenda.MonthCalendar) CalendarDTO {
	days := make([]CalendarDayDTO, len(c.Days))
	for i, d := range c.Days {
		days[i] = CalendarDayDTO{
			Date:      d.Date.String(),
			Count:     d.Count,
			TeamCount: d.TeamCount,
			Level:     d.Level,
			Hidden:    d.Hidden,
		}
	}
	return CalendarDTO{
		Year:     c.Year,
		Month:    int(c.Month),
		Team:     c.Team,
		Capacity: c.Capacity,
		Weeks:    c.Weeks,
		Days:     days,
	}
}

func toDiagnosticsDTO(d agenda.Diagnostics) DiagnosticsDTO {
	return DiagnosticsDTO{
		ReservationsTable:  d.ReservationsTable,
		EmployeesTable:     d.EmployeesTable,
		Employees:          d.Employees,
		Reservations:       d.Reservations,
		Capacity:           d.Capacity,
		SampleEmployees:    toEmployeeDTOs(d.SampleEmployees),
		SampleReservations: toReservationDTOs(d.SampleReservations),
	}
}

// monthOf parses year/month query values, defaulting to the month of now.
func monthOf(now time.Time, year, month string) (int, time.Month, bool) {
	y, m := now.Year(), now.Month()
	if year != "" {
		n, ok := atoi(year)
		if !ok || n < 1 || n > 9999 {
			return 0, 0, false
		}
		y = n
	}
	if month != "" {
		n, ok := atoi(month)
		if !ok || n < 1 || n > 12 {
			return 0, 0, false
		}
		m = time.Month(n)
	}
	return y, m, true
}
