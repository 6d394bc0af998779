package agenda_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/agenda/agenda"
)

func TestLevelFor(t *testing.T) {
	assert.Equal(t, agenda.LevelEmpty, agenda.LevelFor(0, 3))
	assert.Equal(t, agenda.LevelLow, agenda.LevelFor(1, 3))
	assert.Equal(t, agenda.LevelMedium, agenda.LevelFor(2, 3))
	assert.Equal(t, agenda.LevelFull, agenda.LevelFor(3, 3))
	assert.Equal(t, agenda.LevelFull, agenda.LevelFor(4, 3))
	assert.Equal(t, agenda.LevelFull, agenda.LevelFor(1, 1))
}

func TestBuildCalendar_CountsAndTeamHighlight(t *testing.T) {
	cal := agenda.BuildCalendar(juneSnapshot(), agenda.CalendarQuery{Year: 2025, Month: time.June, Team: "Ops"}, 3)

	require.Len(t, cal.Days, 30)
	tenth := cal.Days[9]
	assert.Equal(t, 10, tenth.Day)
	assert.Equal(t, 3, tenth.Count)
	assert.Equal(t, 1, tenth.TeamCount)
	assert.Equal(t, agenda.LevelFull, tenth.Level)

	third := cal.Days[2]
	assert.Equal(t, agenda.LevelLow, third.Level)
	assert.Equal(t, agenda.LevelEmpty, cal.Days[0].Level)
}

func TestBuildCalendar_FullOnlyHidesOtherDays(t *testing.T) {
	cal := agenda.BuildCalendar(juneSnapshot(), agenda.CalendarQuery{Year: 2025, Month: time.June, FullOnly: true}, 3)

	visible := 0
	for _, d := range cal.Days {
		if !d.Hidden {
			visible++
		}
	}
	assert.Equal(t, 2, visible)
}

func TestBuildCalendar_MondayFirstWeeks(t *testing.T) {
	// June 2025 starts on a Sunday
	cal := agenda.BuildCalendar(nil, agenda.CalendarQuery{Year: 2025, Month: time.June}, 3)

	require.Len(t, cal.Weeks, 6)
	assert.Equal(t, [7]int{0, 0, 0, 0, 0, 0, 1}, cal.Weeks[0])
	assert.Equal(t, [7]int{2, 3, 4, 5, 6, 7, 8}, cal.Weeks[1])
	assert.Equal(t, [7]int{30, 0, 0, 0, 0, 0, 0}, cal.Weeks[5])
}
