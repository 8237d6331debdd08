package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) Interval {
	start := time.Date(2025, 3, day, hour, minute, 0, 0, saoPaulo)
	return Interval{Start: start, End: start.Add(time.Hour)}
}

func TestBusinessHours_WeekendRegardlessOfHour(t *testing.T) {
	b := DefaultBusinessHours(saoPaulo)
	// 2025-03-15 is a Saturday, 2025-03-16 a Sunday.
	for _, day := range []int{15, 16} {
		for hour := 0; hour < 24; hour++ {
			d := b.Validate(at(day, hour, 0))
			require.NotNil(t, d, "day %d hour %d", day, hour)
			assert.Equal(t, Weekend, d.Outcome)
		}
	}
}

func TestBusinessHours_Hours(t *testing.T) {
	b := DefaultBusinessHours(saoPaulo)
	tests := []struct {
		name    string
		hour    int
		minute  int
		wantNil bool
	}{
		{"before open", 7, 59, false},
		{"midnight", 0, 0, false},
		{"open", 8, 0, true},
		{"afternoon", 14, 0, true},
		{"last slot", 17, 59, true},
		{"close", 18, 0, false},
		{"evening", 21, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 2025-03-10 is a Monday.
			d := b.Validate(at(10, tt.hour, tt.minute))
			if tt.wantNil {
				assert.Nil(t, d)
				return
			}
			require.NotNil(t, d)
			assert.Equal(t, OutsideBusinessHours, d.Outcome)
		})
	}
}

func TestBusinessHours_UsesLocalHour(t *testing.T) {
	b := DefaultBusinessHours(saoPaulo)
	// 10:00 UTC is 07:00 in São Paulo.
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	d := b.Validate(Interval{Start: start, End: start.Add(time.Hour)})
	require.NotNil(t, d)
	assert.Equal(t, OutsideBusinessHours, d.Outcome)
}

func TestBusinessHours_OnlyStartChecked(t *testing.T) {
	b := DefaultBusinessHours(saoPaulo)
	start := time.Date(2025, 3, 10, 17, 30, 0, 0, saoPaulo)
	assert.Nil(t, b.Validate(Interval{Start: start, End: start.Add(2 * time.Hour)}))
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays([]string{"Monday", "sat", " sunday "})
	require.NoError(t, err)
	assert.Equal(t, map[time.Weekday]bool{time.Monday: true, time.Saturday: true, time.Sunday: true}, days)

	_, err = ParseWeekdays([]string{"funday"})
	assert.Error(t, err)
}

func TestBusinessHours_CustomDays(t *testing.T) {
	days, err := ParseWeekdays([]string{"saturday"})
	require.NoError(t, err)
	b := BusinessHours{OpenHour: 9, CloseHour: 12, Days: days, Location: saoPaulo}

	assert.Nil(t, b.Validate(at(15, 10, 0)))
	d := b.Validate(at(10, 10, 0))
	require.NotNil(t, d)
	assert.Equal(t, Weekend, d.Outcome)
}
