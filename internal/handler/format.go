package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/booking"
	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/service"
)

const (
	dateLayout = "Mon 02/01/2006"
	timeLayout = "15:04"
)

// Formatter turns structured results into the sentences the dialogue
// layer relays to the lead.
type Formatter struct {
	Location *time.Location
	Hours    booking.BusinessHours
}

func (f Formatter) local(t time.Time) time.Time {
	if f.Location == nil {
		return t
	}
	return t.In(f.Location)
}

func (f Formatter) when(i booking.Interval) string {
	start, end := f.local(i.Start), f.local(i.End)
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return fmt.Sprintf("%s from %s to %s", start.Format(dateLayout), start.Format(timeLayout), end.Format(timeLayout))
	}
	return fmt.Sprintf("%s %s to %s %s", start.Format(dateLayout), start.Format(timeLayout), end.Format(dateLayout), end.Format(timeLayout))
}

// Decision renders the result of a write operation.
func (f Formatter) Decision(op booking.Operation, summary string, d booking.Decision) string {
	switch d.Outcome {
	case booking.Committed:
		return f.committed(op, summary, d)
	case booking.InvalidFormat:
		return fmt.Sprintf("Invalid %s: %s.", d.Field, strings.TrimSuffix(d.Detail, "."))
	case booking.OutsideBusinessHours:
		start := f.local(d.Interval.Start)
		return fmt.Sprintf("Cannot schedule at %s on %s: appointments must start between %02d:00 and %02d:00.",
			start.Format(timeLayout), start.Format(dateLayout), f.Hours.OpenHour, f.Hours.CloseHour)
	case booking.Weekend:
		start := f.local(d.Interval.Start)
		return fmt.Sprintf("Cannot schedule on %s, %s: appointments are only booked on business days.",
			start.Weekday(), start.Format("02/01/2006"))
	case booking.Conflict:
		return fmt.Sprintf("Time slot unavailable: it conflicts with %q. Appointments need a %d-minute gap from other events.",
			d.ConflictTitle, int(d.Buffer/time.Minute))
	case booking.RejectedByHuman:
		return fmt.Sprintf("The %s was not confirmed by the operator; nothing was changed.", noun(op))
	case booking.Failed:
		return FormatError(d.Err)
	case booking.NotInitialized:
		return FormatError(ErrNotInitialized)
	default:
		return fmt.Sprintf("Unexpected outcome %s.", d.Outcome)
	}
}

func (f Formatter) committed(op booking.Operation, summary string, d booking.Decision) string {
	var b strings.Builder
	switch op {
	case booking.OpCreate:
		fmt.Fprintf(&b, "Appointment booked: %q on %s.", summary, f.when(d.Interval))
	case booking.OpUpdate:
		fmt.Fprintf(&b, "Event %s updated", d.EventID)
		if !d.Interval.Start.IsZero() {
			fmt.Fprintf(&b, ", now on %s", f.when(d.Interval))
		}
		b.WriteString(".")
	case booking.OpDelete:
		fmt.Fprintf(&b, "Event %s deleted.", d.EventID)
	default:
		b.WriteString("Done.")
	}
	if d.EventID != "" && op == booking.OpCreate {
		fmt.Fprintf(&b, " Event ID: %s.", d.EventID)
	}
	if d.Link != "" {
		fmt.Fprintf(&b, " Link: %s", d.Link)
	}
	return b.String()
}

// Events renders a list, one event per line, or a fixed sentence when empty.
func (f Formatter) Events(heading string, events []models.Event) string {
	if len(events) == 0 {
		return "No upcoming events found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", heading, len(events))
	for i := range events {
		ev := &events[i]
		fmt.Fprintf(&b, "- %s | %s | ID: %s\n", f.when(booking.Interval{Start: ev.Start, End: ev.End}), ev.Summary, ev.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Event renders every field of a single event.
func (f Formatter) Event(ev *models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", ev.Summary)
	fmt.Fprintf(&b, "ID: %s\n", ev.ID)
	fmt.Fprintf(&b, "When: %s\n", f.when(booking.Interval{Start: ev.Start, End: ev.End}))
	if ev.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", ev.Location)
	}
	if ev.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", ev.Description)
	}
	if len(ev.Attendees) > 0 {
		fmt.Fprintf(&b, "Attendees: %s\n", strings.Join(ev.AttendeeEmails(), ", "))
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", ev.Status)
	}
	if ev.Link != "" {
		fmt.Fprintf(&b, "Link: %s\n", ev.Link)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatError keeps the backend diagnostic but names not-found and
// not-initialized plainly.
func FormatError(err error) string {
	switch {
	case err == nil:
		return "Error: unknown failure."
	case errors.Is(err, ErrNotInitialized):
		return "Error: service not initialized."
	case errors.Is(err, service.ErrNotFound):
		return "Error: event not found."
	default:
		return "Error: " + err.Error()
	}
}

func noun(op booking.Operation) string {
	switch op {
	case booking.OpCreate:
		return "booking"
	case booking.OpUpdate:
		return "update"
	case booking.OpDelete:
		return "deletion"
	default:
		return "operation"
	}
}
