package models

import "time"

// Event status values as reported by the calendar backend.
const (
	StatusConfirmed = "confirmed"
	StatusTentative = "tentative"
	StatusCancelled = "cancelled"
)

// Attendee is a guest invited to an event.
type Attendee struct {
	Email string `json:"email"`
}

// Event is the calendar representation the booking engine reads and writes.
// Start and End are absolute instants; TimeZone is the IANA name written
// alongside them.
type Event struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	TimeZone    string     `json:"time_zone,omitempty"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	Status      string     `json:"status,omitempty"`
	Link        string     `json:"link,omitempty"`
}

// Cancelled reports whether the backend marked the event as cancelled.
func (e *Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// AttendeeEmails returns the attendee addresses in order.
func (e *Event) AttendeeEmails() []string {
	emails := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		emails = append(emails, a.Email)
	}
	return emails
}

// Overlaps reports whether the event intersects the half-open range [from, to).
func (e *Event) Overlaps(from, to time.Time) bool {
	return e.Start.Before(to) && e.End.After(from)
}

// AttendeesFromEmails builds the attendee list, skipping blank entries.
func AttendeesFromEmails(emails []string) []Attendee {
	if len(emails) == 0 {
		return nil
	}
	attendees := make([]Attendee, 0, len(emails))
	for _, email := range emails {
		if email == "" {
			continue
		}
		attendees = append(attendees, Attendee{Email: email})
	}
	return attendees
}

// EventRef is what the backend hands back after a write.
type EventRef struct {
	ID   string `json:"id"`
	Link string `json:"link"`
}
