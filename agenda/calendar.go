package agenda

import (
	"time"

	"github.com/warp/agenda/generic"
)

// Level buckets a day's fill for display.
type Level string

const (
	LevelEmpty  Level = "empty"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelFull   Level = "full"
)

// LevelFor maps a count to a Level. With the default capacity this is
// 0, 1, 2 and 3 or more.
func LevelFor(count, capacity int) Level {
	switch {
	case count <= 0:
		return LevelEmpty
	case count >= capacity:
		return LevelFull
	case count == 1:
		return LevelLow
	}
	return LevelMedium
}

// CalendarQuery selects the month and optional team highlight.
type CalendarQuery struct {
	Year     int
	Month    time.Month
	Team     string // empty means no team highlight
	FullOnly bool   // hide days below capacity
}

// CalendarDay is one cell of the month grid.
type CalendarDay struct {
	Date      generic.Date `json:"-"`
	Day       int          `json:"day"`
	Count     int          `json:"count"`
	TeamCount int          `json:"team_count"`
	Level     Level        `json:"level"`
	Hidden    bool         `json:"hidden,omitempty"`
}

// MonthCalendar is a Monday-first month grid. Weeks hold day numbers with
// 0 for padding cells outside the month.
type MonthCalendar struct {
	Year     int           `json:"year"`
	Month    time.Month    `json:"month"`
	Team     string        `json:"team,omitempty"`
	Capacity int           `json:"capacity"`
	Weeks    [][7]int      `json:"weeks"`
	Days     []CalendarDay `json:"days"`
}

// BuildCalendar counts snapshot rows per day of the queried month.
func BuildCalendar(snapshot []Reservation, q CalendarQuery, capacity int) MonthCalendar {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	n := generic.DaysInMonth(q.Year, q.Month)
	cal := MonthCalendar{Year: q.Year, Month: q.Month, Team: q.Team, Capacity: capacity}

	total := make([]int, n+1)
	team := make([]int, n+1)
	for _, r := range snapshot {
		if !r.Date.InMonth(q.Year, q.Month) {
			continue
		}
		total[r.Date.Day]++
		if q.Team != "" && r.Team == q.Team {
			team[r.Date.Day]++
		}
	}

	for d := 1; d <= n; d++ {
		cal.Days = append(cal.Days, CalendarDay{
			Date:      generic.NewDate(q.Year, q.Month, d),
			Day:       d,
			Count:     total[d],
			TeamCount: team[d],
			Level:     LevelFor(total[d], capacity),
			Hidden:    q.FullOnly && total[d] < capacity,
		})
	}
	cal.Weeks = monthWeeks(q.Year, q.Month, n)
	return cal
}

func monthWeeks(year int, month time.Month, days int) [][7]int {
	// time.Weekday is Sunday=0; shift so Monday is column 0.
	col := (int(generic.NewDate(year, month, 1).Weekday()) + 6) % 7

	var weeks [][7]int
	var week [7]int
	for d := 1; d <= days; d++ {
		week[col] = d
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = [7]int{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}
