package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/models"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

const defaultCalendarID = "primary"

// CalendarService is the Google Calendar backed CalendarStore.
type CalendarService struct {
	srv    *calendar.Service
	config CalendarConfig
	loc    *time.Location
}

// NewCalendarService authenticates with the configured credentials.
// loc is used to interpret all-day events, which carry no offset.
func NewCalendarService(ctx context.Context, config CalendarConfig, loc *time.Location) (*CalendarService, error) {
	opts, err := config.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}

	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return newCalendarService(srv, config, loc), nil
}

func newCalendarService(srv *calendar.Service, config CalendarConfig, loc *time.Location) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarService{srv: srv, config: config, loc: loc}
}

func (s *CalendarService) calendarID() string {
	if s.config.CalendarID == "" {
		return defaultCalendarID
	}
	return s.config.CalendarID
}

func (s *CalendarService) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.Event, error) {
	call := s.srv.Events.List(s.calendarID()).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx)
	if !timeMax.IsZero() {
		call = call.TimeMax(timeMax.Format(time.RFC3339))
	}
	if maxResults > 0 {
		call = call.MaxResults(int64(maxResults))
	}

	events, err := call.Do()
	if err != nil {
		return nil, translateError(err)
	}
	return s.fromAPIEvents(events.Items)
}

func (s *CalendarService) SearchEvents(ctx context.Context, query string, timeMin time.Time, maxResults int) ([]models.Event, error) {
	call := s.srv.Events.List(s.calendarID()).
		Q(query).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx)
	if maxResults > 0 {
		call = call.MaxResults(int64(maxResults))
	}

	events, err := call.Do()
	if err != nil {
		return nil, translateError(err)
	}
	return s.fromAPIEvents(events.Items)
}

func (s *CalendarService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	raw, err := s.srv.Events.Get(s.calendarID(), id).Context(ctx).Do()
	if err != nil {
		return nil, translateError(err)
	}
	ev, err := fromAPIEvent(raw, s.loc)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *CalendarService) InsertEvent(ctx context.Context, event *models.Event) (models.EventRef, error) {
	call := s.srv.Events.Insert(s.calendarID(), toAPIEvent(event)).Context(ctx)
	if s.config.SendUpdates != "" {
		call = call.SendUpdates(s.config.SendUpdates)
	}
	created, err := call.Do()
	if err != nil {
		return models.EventRef{}, translateError(err)
	}
	return models.EventRef{ID: created.Id, Link: created.HtmlLink}, nil
}

// UpdateEvent overlays the model fields on the stored resource before
// writing it back, so fields the model does not carry (reminders,
// conference data, attendee responses) survive the full-resource update.
func (s *CalendarService) UpdateEvent(ctx context.Context, id string, event *models.Event) (models.EventRef, error) {
	raw, err := s.srv.Events.Get(s.calendarID(), id).Context(ctx).Do()
	if err != nil {
		return models.EventRef{}, translateError(err)
	}

	overlayAPIEvent(raw, event, s.loc)

	call := s.srv.Events.Update(s.calendarID(), id, raw).Context(ctx)
	if s.config.SendUpdates != "" {
		call = call.SendUpdates(s.config.SendUpdates)
	}
	updated, err := call.Do()
	if err != nil {
		return models.EventRef{}, translateError(err)
	}
	return models.EventRef{ID: updated.Id, Link: updated.HtmlLink}, nil
}

func (s *CalendarService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.srv.Events.Delete(s.calendarID(), id).Context(ctx).Do(); err != nil {
		return translateError(err)
	}
	return nil
}

func (s *CalendarService) fromAPIEvents(items []*calendar.Event) ([]models.Event, error) {
	events := make([]models.Event, 0, len(items))
	for _, item := range items {
		ev, err := fromAPIEvent(item, s.loc)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// translateError maps 404/410 to ErrNotFound and keeps the API diagnostic.
func translateError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone {
			return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
		}
		return fmt.Errorf("google calendar API error %d: %s", gerr.Code, strings.TrimSpace(gerr.Message))
	}
	return fmt.Errorf("google calendar request failed: %w", err)
}

func fromAPIEvent(raw *calendar.Event, loc *time.Location) (models.Event, error) {
	ev := models.Event{
		ID:          raw.Id,
		Summary:     raw.Summary,
		Description: raw.Description,
		Location:    raw.Location,
		Status:      raw.Status,
		Link:        raw.HtmlLink,
	}

	var err error
	if ev.Start, ev.TimeZone, err = parseEventDateTime(raw.Start, loc); err != nil {
		return models.Event{}, fmt.Errorf("event %s: invalid start: %w", raw.Id, err)
	}
	if ev.End, _, err = parseEventDateTime(raw.End, loc); err != nil {
		return models.Event{}, fmt.Errorf("event %s: invalid end: %w", raw.Id, err)
	}

	for _, a := range raw.Attendees {
		if a.Email != "" {
			ev.Attendees = append(ev.Attendees, models.Attendee{Email: a.Email})
		}
	}
	return ev, nil
}

// parseEventDateTime handles both timed events (dateTime) and all-day
// events (date, midnight in loc).
func parseEventDateTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, string, error) {
	if dt == nil {
		return time.Time{}, "", fmt.Errorf("missing date")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, dt.TimeZone, err
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		return t, dt.TimeZone, err
	}
	return time.Time{}, "", fmt.Errorf("missing date")
}

func toAPIEvent(event *models.Event) *calendar.Event {
	raw := &calendar.Event{}
	overlayAPIEvent(raw, event, time.UTC)
	return raw
}

// overlayAPIEvent copies the model onto raw. Start and end are only
// rewritten when the instant moved, so all-day events keep their dates.
func overlayAPIEvent(raw *calendar.Event, event *models.Event, loc *time.Location) {
	raw.Summary = event.Summary
	raw.Description = event.Description
	raw.Location = event.Location
	if !sameInstant(raw.Start, event.Start, loc) {
		raw.Start = &calendar.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		}
	}
	if !sameInstant(raw.End, event.End, loc) {
		raw.End = &calendar.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: event.TimeZone,
		}
	}

	existing := make(map[string]*calendar.EventAttendee, len(raw.Attendees))
	for _, a := range raw.Attendees {
		existing[strings.ToLower(a.Email)] = a
	}
	attendees := make([]*calendar.EventAttendee, 0, len(event.Attendees))
	for _, a := range event.Attendees {
		if prev, ok := existing[strings.ToLower(a.Email)]; ok {
			attendees = append(attendees, prev)
			continue
		}
		attendees = append(attendees, &calendar.EventAttendee{Email: a.Email})
	}
	raw.Attendees = attendees
}

func sameInstant(dt *calendar.EventDateTime, t time.Time, loc *time.Location) bool {
	if dt == nil {
		return false
	}
	stored, _, err := parseEventDateTime(dt, loc)
	return err == nil && stored.Equal(t)
}
