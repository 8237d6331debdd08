package booking

import (
	"fmt"
	"strings"
	"time"
)

// BusinessHours is the window in which appointments may start.
type BusinessHours struct {
	// OpenHour and CloseHour bound the local start hour: OpenHour <= h < CloseHour.
	OpenHour  int
	CloseHour int
	Days      map[time.Weekday]bool
	Location  *time.Location
}

// DefaultBusinessHours is Monday to Friday, 08:00 to 18:00.
func DefaultBusinessHours(loc *time.Location) BusinessHours {
	return BusinessHours{
		OpenHour:  8,
		CloseHour: 18,
		Days: map[time.Weekday]bool{
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
			time.Friday:    true,
		},
		Location: loc,
	}
}

// ParseWeekdays converts day names ("monday", "mon", case-insensitive).
func ParseWeekdays(names []string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if key == full || key == full[:3] {
				days[d] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
	}
	return days, nil
}

// Validate checks the start instant only. A non-working day is reported
// before the hour, so a Saturday at 03:00 is a Weekend rejection.
func (b BusinessHours) Validate(interval Interval) *Decision {
	start := interval.Start
	if b.Location != nil {
		start = start.In(b.Location)
	}

	if !b.Days[start.Weekday()] {
		d := WeekendDecision(interval)
		return &d
	}

	if h := start.Hour(); h < b.OpenHour || h >= b.CloseHour {
		d := OutsideBusinessHoursDecision(interval)
		return &d
	}
	return nil
}
