package agenda

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/agenda/generic"
	"github.com/warp/agenda/tabular"
)

// =============================================================================
// MONTHLY REPORT
// =============================================================================

// TeamTally is one row of the team by kind crosstab. Only recognised kinds
// are counted; a team whose rows all carry other labels has a zero Total.
type TeamTally struct {
	Team       string          `json:"team"`
	Vacation   int             `json:"vacation"`
	Permission int             `json:"permission"`
	Sanction   int             `json:"sanction"`
	Total      int             `json:"total"`
	Share      decimal.Decimal `json:"share"`
}

// DayCount is the number of rows on one date, whatever their kind.
type DayCount struct {
	Date        generic.Date    `json:"-"`
	Count       int             `json:"count"`
	Utilization decimal.Decimal `json:"utilization"`
}

// MonthlyReport summarises one calendar month.
type MonthlyReport struct {
	Year     int         `json:"year"`
	Month    time.Month  `json:"month"`
	Capacity int         `json:"capacity"`
	Total    int         `json:"total"`
	Teams    []TeamTally `json:"teams"`
	Days     []DayCount  `json:"days"`
	Critical []DayCount  `json:"critical"`
}

// BuildMonthlyReport tallies snapshot rows falling in year/month.
//
//   - Teams: sorted by Total descending, then name
//   - Days:  sorted by date
//   - Critical: days with Count >= capacity, by Count descending, then date
func BuildMonthlyReport(snapshot []Reservation, year int, month time.Month, capacity int) MonthlyReport {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	rep := MonthlyReport{Year: year, Month: month, Capacity: capacity}

	teams := make(map[string]*TeamTally)
	days := make(map[generic.Date]int)
	for _, r := range snapshot {
		if !r.Date.InMonth(year, month) {
			continue
		}
		rep.Total++
		days[r.Date]++

		t, ok := teams[r.Team]
		if !ok {
			t = &TeamTally{Team: r.Team}
			teams[r.Team] = t
		}
		kind, err := ParseKind(r.Kind)
		if err != nil {
			continue
		}
		switch kind {
		case KindVacation:
			t.Vacation++
		case KindPermission:
			t.Permission++
		case KindSanction:
			t.Sanction++
		}
		t.Total++
	}

	counted := 0
	for _, t := range teams {
		counted += t.Total
	}
	for _, t := range teams {
		t.Share = ratio(t.Total, counted)
		rep.Teams = append(rep.Teams, *t)
	}
	sort.Slice(rep.Teams, func(i, j int) bool {
		if rep.Teams[i].Total != rep.Teams[j].Total {
			return rep.Teams[i].Total > rep.Teams[j].Total
		}
		return rep.Teams[i].Team < rep.Teams[j].Team
	})

	capD := decimal.NewFromInt(int64(capacity))
	for d, n := range days {
		dc := DayCount{Date: d, Count: n, Utilization: decimal.NewFromInt(int64(n)).DivRound(capD, 4)}
		rep.Days = append(rep.Days, dc)
		if n >= capacity {
			rep.Critical = append(rep.Critical, dc)
		}
	}
	sort.Slice(rep.Days, func(i, j int) bool { return rep.Days[i].Date.Before(rep.Days[j].Date) })
	sort.Slice(rep.Critical, func(i, j int) bool {
		if rep.Critical[i].Count != rep.Critical[j].Count {
			return rep.Critical[i].Count > rep.Critical[j].Count
		}
		return rep.Critical[i].Date.Before(rep.Critical[j].Date)
	})
	return rep
}

func ratio(n, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).DivRound(decimal.NewFromInt(int64(total)), 4)
}

// TeamSheet is the crosstab as an exportable sheet.
func (r MonthlyReport) TeamSheet() tabular.Sheet {
	s := tabular.Sheet{
		Name:   "Resumen_Equipos",
		Header: []string{"equipo", KindVacation.Label(), KindPermission.Label(), KindSanction.Label(), "Total"},
	}
	for _, t := range r.Teams {
		s.Rows = append(s.Rows, []any{t.Team, t.Vacation, t.Permission, t.Sanction, t.Total})
	}
	return s
}

// Sheets returns the workbook layout: team summary, per-day counts, and
// critical days when there are any.
func (r MonthlyReport) Sheets() []tabular.Sheet {
	days := tabular.Sheet{Name: "Conteo_por_Dia", Header: []string{"fecha", "registros"}}
	for _, d := range r.Days {
		days.Rows = append(days.Rows, []any{d.Date.String(), d.Count})
	}
	sheets := []tabular.Sheet{r.TeamSheet(), days}

	if len(r.Critical) > 0 {
		crit := tabular.Sheet{Name: "Dias_Criticos", Header: []string{"dia", "registros"}}
		for _, d := range r.Critical {
			crit.Rows = append(crit.Rows, []any{d.Date.String(), d.Count})
		}
		sheets = append(sheets, crit)
	}
	return sheets
}

// Filename is the download name for the report in the given extension.
func (r MonthlyReport) Filename(ext string) string {
	return "reporte_" + generic.NewDate(r.Year, r.Month, 1).Time().Format("2006_01") + "." + ext
}
