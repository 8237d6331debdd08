package booking

import (
	"time"
)

// Outcome classifies the result of a booking operation.
type Outcome int

const (
	Committed Outcome = iota
	InvalidFormat
	OutsideBusinessHours
	Weekend
	Conflict
	RejectedByHuman
	Failed
	NotInitialized
)

var outcomeNames = map[Outcome]string{
	Committed:            "committed",
	InvalidFormat:        "invalid_format",
	OutsideBusinessHours: "outside_business_hours",
	Weekend:              "weekend",
	Conflict:             "conflict",
	RejectedByHuman:      "rejected_by_human",
	Failed:               "failed",
	NotInitialized:       "not_initialized",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Rejected reports whether the outcome is a policy rejection rather than
// a success or a failure.
func (o Outcome) Rejected() bool {
	switch o {
	case OutsideBusinessHours, Weekend, Conflict, RejectedByHuman:
		return true
	}
	return false
}

// Interval is a half-open time range in the booking zone. End is after Start.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Widen returns the interval extended by lead before Start and trail after End.
func (i Interval) Widen(lead, trail time.Duration) Interval {
	return Interval{Start: i.Start.Add(-lead), End: i.End.Add(trail)}
}

// Overlaps reports whether [from, to) intersects the interval.
func (i Interval) Overlaps(from, to time.Time) bool {
	return i.Start.Before(to) && i.End.After(from)
}

// Decision is the structured result of every write operation. Only the
// fields relevant to Outcome are set.
type Decision struct {
	Outcome Outcome

	// Committed
	EventID string
	Link    string

	// Interval holds the normalized times once normalization succeeded.
	Interval Interval

	// InvalidFormat
	Field  string
	Detail string

	// Conflict
	ConflictTitle string
	Buffer        time.Duration

	// Failed
	Err error
}

// OK reports whether the operation was committed.
func (d Decision) OK() bool {
	return d.Outcome == Committed
}

func CommittedDecision(id, link string, interval Interval) Decision {
	return Decision{Outcome: Committed, EventID: id, Link: link, Interval: interval}
}

func InvalidFormatDecision(field, detail string) Decision {
	return Decision{Outcome: InvalidFormat, Field: field, Detail: detail}
}

func OutsideBusinessHoursDecision(interval Interval) Decision {
	return Decision{Outcome: OutsideBusinessHours, Interval: interval}
}

func WeekendDecision(interval Interval) Decision {
	return Decision{Outcome: Weekend, Interval: interval}
}

func ConflictDecision(title string, buffer time.Duration, interval Interval) Decision {
	return Decision{Outcome: Conflict, ConflictTitle: title, Buffer: buffer, Interval: interval}
}

func RejectedByHumanDecision(interval Interval) Decision {
	return Decision{Outcome: RejectedByHuman, Interval: interval}
}

func FailedDecision(err error) Decision {
	return Decision{Outcome: Failed, Err: err}
}

func NotInitializedDecision() Decision {
	return Decision{Outcome: NotInitialized}
}
