package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/booking"
	"github.com/Felps0156/SDR-Agent/internal/confirm"
	"github.com/Felps0156/SDR-Agent/internal/logger"
	"github.com/Felps0156/SDR-Agent/internal/metrics"
	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/service"
)

// ErrNotInitialized is returned by every operation when no calendar store
// was configured.
var ErrNotInitialized = errors.New("service not initialized")

// DefaultListMax is used when a read does not ask for a result count.
const DefaultListMax = 10

// Orchestrator runs booking requests through normalization, the gates
// configured for the operation, and finally the calendar write.
type Orchestrator struct {
	Logger     *logger.Logger
	Store      service.CalendarStore
	Normalizer *booking.Normalizer
	Hours      booking.BusinessHours
	Conflicts  *booking.ConflictChecker
	Gate       confirm.Gate
	Locker     booking.Locker
	Policy     booking.Policy
	Metrics    *metrics.Recorder

	// CalendarID keys the write lock.
	CalendarID string
	Now        func() time.Time
}

// Ready reports whether a store is wired in.
func (o *Orchestrator) Ready() bool {
	return o != nil && o.Store != nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) log() *logger.Logger {
	if o.Logger == nil {
		return logger.Discard()
	}
	return o.Logger
}

func (o *Orchestrator) policy() booking.Policy {
	if o.Policy == nil {
		return booking.DefaultPolicy()
	}
	return o.Policy
}

func (o *Orchestrator) normalizer() *booking.Normalizer {
	if o.Normalizer == nil {
		return booking.NewNormalizer(time.Local)
	}
	return o.Normalizer
}

func (o *Orchestrator) hours() booking.BusinessHours {
	if o.Hours.Days == nil {
		return booking.DefaultBusinessHours(o.normalizer().Zone())
	}
	return o.Hours
}

func (o *Orchestrator) conflicts() *booking.ConflictChecker {
	if o.Conflicts == nil {
		return booking.NewConflictChecker(o.Store)
	}
	return o.Conflicts
}

func (o *Orchestrator) lockKey() string {
	if o.CalendarID == "" {
		return "primary"
	}
	return o.CalendarID
}

func (o *Orchestrator) timeZone() string {
	return o.normalizer().Zone().String()
}

func (o *Orchestrator) finish(op booking.Operation, d booking.Decision) booking.Decision {
	o.Metrics.Decision(string(op), d.Outcome.String())

	fields := []logger.Field{logger.Operation(string(op)), logger.Outcome(d.Outcome.String())}
	if d.EventID != "" {
		fields = append(fields, logger.EventID(d.EventID))
	}
	switch d.Outcome {
	case booking.Committed:
		o.log().Info("Booking operation committed", fields...)
	case booking.Failed:
		o.log().Error("Booking operation failed", append(fields, logger.Error(d.Err))...)
	case booking.InvalidFormat:
		o.log().Warn("Booking request rejected", append(fields, logger.F("FIELD", d.Field), logger.Reason(d.Detail))...)
	default:
		o.log().Info("Booking request rejected", fields...)
	}
	return d
}

// Create decides and, when every gate passes, commits a new appointment.
// The pipeline stops at the first rejection; nothing is retried.
func (o *Orchestrator) Create(ctx context.Context, req models.BookingRequest) booking.Decision {
	if !o.Ready() {
		return booking.NotInitializedDecision()
	}
	policy := o.policy()

	summary := strings.TrimSpace(req.Summary)
	if summary == "" {
		return o.finish(booking.OpCreate, booking.InvalidFormatDecision("summary", "summary is required"))
	}

	o.log().Info("Booking requested", logger.Action("create"), logger.Status("normalizing"), logger.Summary(summary))

	interval, rejection := o.normalizer().Normalize(req.Start, req.End, o.now())
	if rejection != nil {
		return o.finish(booking.OpCreate, *rejection)
	}

	if policy.Requires(booking.OpCreate, booking.GateBusinessHours) {
		if rejection := o.hours().Validate(interval); rejection != nil {
			return o.finish(booking.OpCreate, *rejection)
		}
	}

	checkConflicts := policy.Requires(booking.OpCreate, booking.GateConflict)
	if checkConflicts {
		o.log().Info("Checking conflicts", logger.Action("create"), logger.Status("conflict_check"), logger.Start(interval.Start), logger.End(interval.End))
		if rejection := o.conflicts().Check(ctx, interval, ""); rejection != nil {
			return o.finish(booking.OpCreate, *rejection)
		}
	}

	event := &models.Event{
		Summary:     summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       interval.Start,
		End:         interval.End,
		TimeZone:    o.timeZone(),
		Attendees:   models.AttendeesFromEmails(req.Attendees),
	}

	if policy.Requires(booking.OpCreate, booking.GateConfirmation) {
		intent := intentFor(booking.OpCreate, "", event)
		intent.Extra = req.Extra
		if d, ok := o.confirm(ctx, intent, interval); !ok {
			return o.finish(booking.OpCreate, d)
		}
	}

	unlock, err := o.lock(ctx)
	if err != nil {
		return o.finish(booking.OpCreate, booking.FailedDecision(err))
	}
	defer unlock()

	// The slot may have been taken while the operator was deciding.
	if checkConflicts {
		if rejection := o.conflicts().Check(ctx, interval, ""); rejection != nil {
			return o.finish(booking.OpCreate, *rejection)
		}
	}

	o.log().Info("Inserting event", logger.Action("create"), logger.Status("inserting"), logger.Count(len(event.Attendees)))
	for _, a := range event.Attendees {
		o.log().Debug("Attendee invited", logger.Attendee(a.Email))
	}

	ref, err := o.Store.InsertEvent(ctx, event)
	if err != nil {
		return o.finish(booking.OpCreate, booking.FailedDecision(fmt.Errorf("failed to create event: %w", err)))
	}
	return o.finish(booking.OpCreate, booking.CommittedDecision(ref.ID, ref.Link, interval))
}

// Update fetches the event, overlays the supplied fields and writes it back.
// Fields absent from patch keep their stored values.
func (o *Orchestrator) Update(ctx context.Context, id string, patch models.EventPatch) booking.Decision {
	if !o.Ready() {
		return booking.NotInitializedDecision()
	}
	policy := o.policy()

	id = strings.TrimSpace(id)
	if id == "" {
		return o.finish(booking.OpUpdate, booking.InvalidFormatDecision("event_id", "event_id is required"))
	}
	if patch.Empty() {
		return o.finish(booking.OpUpdate, booking.InvalidFormatDecision("fields", "no fields to update"))
	}

	o.log().Info("Update requested", logger.Action("update"), logger.Status("fetching"), logger.EventID(id))

	existing, err := o.Store.GetEvent(ctx, id)
	if err != nil {
		return o.finish(booking.OpUpdate, booking.FailedDecision(fmt.Errorf("failed to fetch event %s: %w", id, err)))
	}

	merged, timesChanged, rejection := o.merge(existing, patch)
	if rejection != nil {
		rejection.EventID = id
		return o.finish(booking.OpUpdate, *rejection)
	}
	interval := booking.Interval{Start: merged.Start, End: merged.End}

	if timesChanged && policy.Requires(booking.OpUpdate, booking.GateBusinessHours) {
		if rejection := o.hours().Validate(interval); rejection != nil {
			return o.finish(booking.OpUpdate, *rejection)
		}
	}

	checkConflicts := timesChanged && policy.Requires(booking.OpUpdate, booking.GateConflict)
	if checkConflicts {
		if rejection := o.conflicts().Check(ctx, interval, id); rejection != nil {
			return o.finish(booking.OpUpdate, *rejection)
		}
	}

	if policy.Requires(booking.OpUpdate, booking.GateConfirmation) {
		if d, ok := o.confirm(ctx, intentFor(booking.OpUpdate, id, merged), interval); !ok {
			return o.finish(booking.OpUpdate, d)
		}
	}

	unlock, err := o.lock(ctx)
	if err != nil {
		return o.finish(booking.OpUpdate, booking.FailedDecision(err))
	}
	defer unlock()

	if checkConflicts {
		if rejection := o.conflicts().Check(ctx, interval, id); rejection != nil {
			return o.finish(booking.OpUpdate, *rejection)
		}
	}

	ref, err := o.Store.UpdateEvent(ctx, id, merged)
	if err != nil {
		return o.finish(booking.OpUpdate, booking.FailedDecision(fmt.Errorf("failed to update event %s: %w", id, err)))
	}
	return o.finish(booking.OpUpdate, booking.CommittedDecision(ref.ID, ref.Link, interval))
}

// merge applies patch over a copy of existing. A bare time of day in the
// new start lands on the stored start's date; a new start without a new
// end keeps the stored end.
func (o *Orchestrator) merge(existing *models.Event, patch models.EventPatch) (*models.Event, bool, *booking.Decision) {
	merged := *existing
	merged.Attendees = append([]models.Attendee(nil), existing.Attendees...)

	if patch.Summary != nil {
		summary := strings.TrimSpace(*patch.Summary)
		if summary == "" {
			d := booking.InvalidFormatDecision("summary", "summary cannot be empty")
			return nil, false, &d
		}
		merged.Summary = summary
	}
	if patch.Location != nil {
		merged.Location = *patch.Location
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Attendees != nil {
		merged.Attendees = models.AttendeesFromEmails(*patch.Attendees)
	}

	if patch.Start == nil && patch.End == nil {
		return &merged, false, nil
	}

	n := o.normalizer()
	if patch.Start != nil {
		start, err := n.ParseInstant(*patch.Start, existing.Start.In(n.Zone()))
		if err != nil {
			d := booking.InvalidFormatDecision("start", err.Error())
			return nil, false, &d
		}
		merged.Start = start
	}
	if patch.End != nil {
		end, err := n.ParseInstant(*patch.End, merged.Start.In(n.Zone()))
		if err != nil {
			d := booking.InvalidFormatDecision("end", err.Error())
			return nil, false, &d
		}
		merged.End = end
	}
	if !merged.End.After(merged.Start) {
		d := booking.InvalidFormatDecision("end", "end must be after start")
		return nil, false, &d
	}
	if merged.TimeZone == "" {
		merged.TimeZone = o.timeZone()
	}
	return &merged, true, nil
}

// Delete removes an event, asking for confirmation when the policy says so.
func (o *Orchestrator) Delete(ctx context.Context, id string) booking.Decision {
	if !o.Ready() {
		return booking.NotInitializedDecision()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return o.finish(booking.OpDelete, booking.InvalidFormatDecision("event_id", "event_id is required"))
	}

	o.log().Info("Delete requested", logger.Action("delete"), logger.Status("deleting"), logger.EventID(id))

	if o.policy().Requires(booking.OpDelete, booking.GateConfirmation) {
		existing, err := o.Store.GetEvent(ctx, id)
		if err != nil {
			return o.finish(booking.OpDelete, booking.FailedDecision(fmt.Errorf("failed to fetch event %s: %w", id, err)))
		}
		interval := booking.Interval{Start: existing.Start, End: existing.End}
		if d, ok := o.confirm(ctx, intentFor(booking.OpDelete, id, existing), interval); !ok {
			d.EventID = id
			return o.finish(booking.OpDelete, d)
		}
	}

	if err := o.Store.DeleteEvent(ctx, id); err != nil {
		return o.finish(booking.OpDelete, booking.FailedDecision(fmt.Errorf("failed to delete event %s: %w", id, err)))
	}
	return o.finish(booking.OpDelete, booking.Decision{Outcome: booking.Committed, EventID: id})
}

// ListUpcoming returns events that have not ended yet, ordered by start.
func (o *Orchestrator) ListUpcoming(ctx context.Context, maxResults int) ([]models.Event, error) {
	if !o.Ready() {
		return nil, ErrNotInitialized
	}
	if maxResults <= 0 {
		maxResults = DefaultListMax
	}

	events, err := o.Store.ListEvents(ctx, o.now(), time.Time{}, maxResults)
	o.recordRead(booking.OpList, len(events), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Search looks for upcoming events matching query.
func (o *Orchestrator) Search(ctx context.Context, query string, maxResults int) ([]models.Event, error) {
	if !o.Ready() {
		return nil, ErrNotInitialized
	}
	if maxResults <= 0 {
		maxResults = DefaultListMax
	}

	events, err := o.Store.SearchEvents(ctx, strings.TrimSpace(query), o.now(), maxResults)
	o.recordRead(booking.OpSearch, len(events), err)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}
	return events, nil
}

// Get returns a single event by id.
func (o *Orchestrator) Get(ctx context.Context, id string) (*models.Event, error) {
	if !o.Ready() {
		return nil, ErrNotInitialized
	}

	event, err := o.Store.GetEvent(ctx, strings.TrimSpace(id))
	n := 0
	if event != nil {
		n = 1
	}
	o.recordRead(booking.OpGet, n, err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event %s: %w", id, err)
	}
	return event, nil
}

func (o *Orchestrator) recordRead(op booking.Operation, n int, err error) {
	if err != nil {
		o.Metrics.Decision(string(op), booking.Failed.String())
		o.log().Error("Calendar read failed", logger.Operation(string(op)), logger.Error(err))
		return
	}
	o.Metrics.Decision(string(op), booking.Committed.String())
	o.log().Info("Calendar read", logger.Operation(string(op)), logger.Count(n))
}

// confirm returns ok=true when the operator approved. Otherwise d holds
// the rejection or failure to report.
func (o *Orchestrator) confirm(ctx context.Context, intent confirm.Intent, interval booking.Interval) (booking.Decision, bool) {
	if o.Gate == nil {
		o.Metrics.Confirmation("error")
		return booking.FailedDecision(fmt.Errorf("confirmation channel is not configured")), false
	}

	o.log().Info("Awaiting confirmation", logger.Action(intent.Operation), logger.Status("awaiting_confirmation"))

	approved, err := o.Gate.Confirm(ctx, intent)
	if err != nil {
		o.Metrics.Confirmation("error")
		return booking.FailedDecision(fmt.Errorf("confirmation failed: %w", err)), false
	}
	if !approved {
		o.Metrics.Confirmation("refused")
		return booking.RejectedByHumanDecision(interval), false
	}
	o.Metrics.Confirmation("approved")
	return booking.Decision{}, true
}

func (o *Orchestrator) lock(ctx context.Context) (func(), error) {
	if o.Locker == nil {
		return func() {}, nil
	}
	unlock, err := o.Locker.Lock(ctx, o.lockKey())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire calendar lock: %w", err)
	}
	return unlock, nil
}

func intentFor(op booking.Operation, id string, ev *models.Event) confirm.Intent {
	return confirm.Intent{
		Operation:   string(op),
		EventID:     id,
		Summary:     ev.Summary,
		Start:       ev.Start,
		End:         ev.End,
		Attendees:   ev.AttendeeEmails(),
		Location:    ev.Location,
		Description: ev.Description,
	}
}
