package booking

import (
	"fmt"
	"strings"
	"time"
)

// DefaultDuration is applied when a request carries no end.
const DefaultDuration = time.Hour

// FallbackOffset is used when the zone database cannot resolve the
// configured zone name.
const FallbackOffset = -3 * time.Hour

// Layouts for literals that carry a date. Offset-bearing layouts come
// first so a trailing offset is never silently dropped.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Layouts for bare times of day, combined with a reference date.
var timeOfDayLayouts = []string{
	"15:04:05.999999999Z07:00",
	"15:04Z07:00",
	"15:04:05.999999999",
	"15:04",
}

// LoadLocation resolves name, falling back to a fixed offset when the
// zone database is unavailable.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, int(FallbackOffset/time.Second))
	}
	return loc
}

// Normalizer turns user supplied time literals into an Interval in a
// fixed zone.
type Normalizer struct {
	Location        *time.Location
	DefaultDuration time.Duration
}

// NewNormalizer returns a normalizer for loc with the default one hour
// duration.
func NewNormalizer(loc *time.Location) *Normalizer {
	return &Normalizer{Location: loc, DefaultDuration: DefaultDuration}
}

// Zone is the fixed zone all instants are converted to.
func (n *Normalizer) Zone() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

func (n *Normalizer) duration() time.Duration {
	if n.DefaultDuration <= 0 {
		return DefaultDuration
	}
	return n.DefaultDuration
}

// Normalize parses start and the optional end. A bare time of day in
// start is placed on now's date in the booking zone; a bare time of day
// in end is placed on the start's date. A nil decision means success.
func (n *Normalizer) Normalize(start, end string, now time.Time) (Interval, *Decision) {
	loc := n.Zone()

	s, err := n.ParseInstant(start, now.In(loc))
	if err != nil {
		d := InvalidFormatDecision("start", err.Error())
		return Interval{}, &d
	}

	var e time.Time
	if strings.TrimSpace(end) == "" {
		e = s.Add(n.duration())
	} else {
		e, err = n.ParseInstant(end, s)
		if err != nil {
			d := InvalidFormatDecision("end", err.Error())
			return Interval{}, &d
		}
	}

	if !e.After(s) {
		d := InvalidFormatDecision("end", "end must be after start")
		return Interval{}, &d
	}
	return Interval{Start: s, End: e}, nil
}

// ParseInstant parses one literal. ref supplies the date for bare times
// of day and must already be in the booking zone.
func (n *Normalizer) ParseInstant(literal string, ref time.Time) (time.Time, error) {
	loc := n.Zone()
	value := strings.TrimSpace(literal)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if strings.HasSuffix(value, "z") {
		value = value[:len(value)-1] + "Z"
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), nil
		}
	}

	ref = ref.In(loc)
	for _, layout := range timeOfDayLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err != nil {
			continue
		}
		// Combine in the literal's own zone so an explicit offset is kept.
		combined := time.Date(ref.Year(), ref.Month(), ref.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
		return combined.In(loc), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date/time %q: use YYYY-MM-DDTHH:MM:SS or HH:MM", literal)
}
