package models

// BookingRequest is a create request as produced by the dialogue layer.
// Start and End are raw literals: either a full date-time or a bare
// time-of-day. Extra is shown to the confirming operator and never stored.
type BookingRequest struct {
	Summary     string            `json:"summary"`
	Start       string            `json:"start"`
	End         string            `json:"end,omitempty"`
	Attendees   []string          `json:"attendees,omitempty"`
	Location    string            `json:"location,omitempty"`
	Description string            `json:"description,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// EventPatch carries the caller-supplied fields of an update.
// A nil field means "keep the stored value".
type EventPatch struct {
	Summary     *string   `json:"summary,omitempty"`
	Start       *string   `json:"start,omitempty"`
	End         *string   `json:"end,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Description *string   `json:"description,omitempty"`
	Attendees   *[]string `json:"attendees,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Summary == nil && p.Start == nil && p.End == nil &&
		p.Location == nil && p.Description == nil && p.Attendees == nil
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Strings returns a pointer to ss, for building patches.
func Strings(ss []string) *[]string { return &ss }
