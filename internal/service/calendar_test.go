package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var saoPaulo = time.FixedZone("-03", -3*60*60)

// newTestCalendarService points the generated client at handler.
func newTestCalendarService(t *testing.T, cfg CalendarConfig, handler http.HandlerFunc) *CalendarService {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	srv, err := calendar.NewService(context.Background(),
		option.WithHTTPClient(ts.Client()),
		option.WithEndpoint(ts.URL+"/"),
	)
	require.NoError(t, err)
	srv.BasePath = ts.URL + "/"
	return newCalendarService(srv, cfg, saoPaulo)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestCalendarService_ListEvents(t *testing.T) {
	var gotQuery map[string][]string
	svc := newTestCalendarService(t, CalendarConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		gotQuery = r.URL.Query()
		writeJSON(t, w, map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"id":        "evt1",
					"summary":   "Visita",
					"status":    "confirmed",
					"htmlLink":  "https://calendar/evt1",
					"start":     map[string]string{"dateTime": "2025-03-10T10:00:00-03:00", "timeZone": "America/Sao_Paulo"},
					"end":       map[string]string{"dateTime": "2025-03-10T11:00:00-03:00"},
					"attendees": []map[string]string{{"email": "lead@example.com"}},
				},
				{
					"id":      "evt2",
					"summary": "Feriado",
					"start":   map[string]string{"date": "2025-03-11"},
					"end":     map[string]string{"date": "2025-03-12"},
				},
			},
		})
	})

	from := time.Date(2025, 3, 10, 9, 45, 0, 0, saoPaulo)
	to := time.Date(2025, 3, 10, 12, 15, 0, 0, saoPaulo)
	events, err := svc.ListEvents(context.Background(), from, to, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "evt1", events[0].ID)
	assert.Equal(t, "Visita", events[0].Summary)
	assert.Equal(t, "America/Sao_Paulo", events[0].TimeZone)
	assert.Equal(t, "https://calendar/evt1", events[0].Link)
	assert.True(t, events[0].Start.Equal(time.Date(2025, 3, 10, 10, 0, 0, 0, saoPaulo)))
	assert.Equal(t, []string{"lead@example.com"}, events[0].AttendeeEmails())
	assert.True(t, events[1].Start.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, saoPaulo)))

	assert.Equal(t, []string{"2025-03-10T09:45:00-03:00"}, gotQuery["timeMin"])
	assert.Equal(t, []string{"2025-03-10T12:15:00-03:00"}, gotQuery["timeMax"])
	assert.Equal(t, []string{"10"}, gotQuery["maxResults"])
	assert.Equal(t, []string{"startTime"}, gotQuery["orderBy"])
	assert.Equal(t, []string{"true"}, gotQuery["singleEvents"])
}

func TestCalendarService_ListEvents_UnboundedMax(t *testing.T) {
	svc := newTestCalendarService(t, CalendarConfig{CalendarID: "team@group.calendar.google.com"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/team@group.calendar.google.com/events", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("timeMax"))
		writeJSON(t, w, map[string]interface{}{"items": []interface{}{}})
	})

	events, err := svc.ListEvents(context.Background(), time.Now(), time.Time{}, 5)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCalendarService_SearchEvents(t *testing.T) {
	svc := newTestCalendarService(t, CalendarConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Ana", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.URL.Query().Get("timeMin"))
		writeJSON(t, w, map[string]interface{}{"items": []map[string]interface{}{{
			"id":      "evt1",
			"summary": "Ana Souza",
			"start":   map[string]string{"dateTime": "2025-03-10T14:00:00-03:00"},
			"end":     map[string]string{"dateTime": "2025-03-10T15:00:00-03:00"},
		}}})
	})

	events, err := svc.SearchEvents(context.Background(), "Ana", time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Ana Souza", events[0].Summary)
}

func TestCalendarService_InsertEvent(t *testing.T) {
	var body calendar.Event
	svc := newTestCalendarService(t, CalendarConfig{SendUpdates: "all"}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "all", r.URL.Query().Get("sendUpdates"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, map[string]interface{}{"id": "new1", "htmlLink": "https://calendar/new1"})
	})

	ref, err := svc.InsertEvent(context.Background(), &models.Event{
		Summary:   "Ana Souza - Ap 2 quartos",
		Location:  "Rua A, 10",
		Start:     time.Date(2025, 3, 10, 14, 0, 0, 0, saoPaulo),
		End:       time.Date(2025, 3, 10, 15, 0, 0, 0, saoPaulo),
		TimeZone:  "America/Sao_Paulo",
		Attendees: models.AttendeesFromEmails([]string{"ana@example.com"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EventRef{ID: "new1", Link: "https://calendar/new1"}, ref)

	assert.Equal(t, "Ana Souza - Ap 2 quartos", body.Summary)
	assert.Equal(t, "2025-03-10T14:00:00-03:00", body.Start.DateTime)
	assert.Equal(t, "America/Sao_Paulo", body.Start.TimeZone)
	assert.Equal(t, "2025-03-10T15:00:00-03:00", body.End.DateTime)
	require.Len(t, body.Attendees, 1)
	assert.Equal(t, "ana@example.com", body.Attendees[0].Email)
}

func TestCalendarService_UpdateEvent_KeepsUnmodelledFields(t *testing.T) {
	var updated map[string]interface{}
	svc := newTestCalendarService(t, CalendarConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events/evt1", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, map[string]interface{}{
				"id":        "evt1",
				"summary":   "Old",
				"colorId":   "5",
				"start":     map[string]string{"dateTime": "2025-03-10T10:00:00-03:00"},
				"end":       map[string]string{"dateTime": "2025-03-10T11:00:00-03:00"},
				"attendees": []map[string]string{{"email": "Lead@Example.com", "responseStatus": "accepted"}},
			})
		case http.MethodPut:
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &updated))
			writeJSON(t, w, map[string]interface{}{"id": "evt1", "htmlLink": "https://calendar/evt1"})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	ref, err := svc.UpdateEvent(context.Background(), "evt1", &models.Event{
		Summary:   "New",
		Start:     time.Date(2025, 3, 10, 10, 0, 0, 0, saoPaulo),
		End:       time.Date(2025, 3, 10, 11, 0, 0, 0, saoPaulo),
		Attendees: models.AttendeesFromEmails([]string{"lead@example.com"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "evt1", ref.ID)
	assert.Equal(t, "New", updated["summary"])
	assert.Equal(t, "5", updated["colorId"])
	attendees := updated["attendees"].([]interface{})
	require.Len(t, attendees, 1)
	assert.Equal(t, "accepted", attendees[0].(map[string]interface{})["responseStatus"])
}

func TestCalendarService_UpdateEvent_AllDayKeepsDates(t *testing.T) {
	var updated map[string]interface{}
	svc := newTestCalendarService(t, CalendarConfig{}, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, map[string]interface{}{
				"id":      "evt1",
				"summary": "Plantão",
				"start":   map[string]string{"date": "2025-03-11"},
				"end":     map[string]string{"date": "2025-03-12"},
			})
		case http.MethodPut:
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &updated))
			writeJSON(t, w, map[string]interface{}{"id": "evt1"})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	existing, err := svc.GetEvent(context.Background(), "evt1")
	require.NoError(t, err)
	existing.Summary = "Plantão de vendas"

	_, err = svc.UpdateEvent(context.Background(), "evt1", existing)
	require.NoError(t, err)
	assert.Equal(t, "Plantão de vendas", updated["summary"])
	assert.Equal(t, map[string]interface{}{"date": "2025-03-11"}, updated["start"])
	assert.Equal(t, map[string]interface{}{"date": "2025-03-12"}, updated["end"])
}

func TestCalendarService_UpdateEvent_MovedTimesAreRewritten(t *testing.T) {
	var updated map[string]interface{}
	svc := newTestCalendarService(t, CalendarConfig{}, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, map[string]interface{}{
				"id":    "evt1",
				"start": map[string]string{"date": "2025-03-11"},
				"end":   map[string]string{"date": "2025-03-12"},
			})
		case http.MethodPut:
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &updated))
			writeJSON(t, w, map[string]interface{}{"id": "evt1"})
		}
	})

	start := time.Date(2025, 3, 11, 14, 0, 0, 0, saoPaulo)
	_, err := svc.UpdateEvent(context.Background(), "evt1", &models.Event{
		Summary: "Visita",
		Start:   start,
		End:     start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11T14:00:00-03:00", updated["start"].(map[string]interface{})["dateTime"])
	assert.Equal(t, "2025-03-11T15:00:00-03:00", updated["end"].(map[string]interface{})["dateTime"])
	assert.NotContains(t, updated["start"], "date")
}

func TestCalendarService_NotFound(t *testing.T) {
	svc := newTestCalendarService(t, CalendarConfig{}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Not Found"}}`)
	})
	ctx := context.Background()

	_, err := svc.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.DeleteEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateEvent(ctx, "missing", &models.Event{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCalendarService_DeleteEvent(t *testing.T) {
	var deleted bool
	svc := newTestCalendarService(t, CalendarConfig{}, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = strings.HasSuffix(r.URL.Path, "/events/evt1")
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, svc.DeleteEvent(context.Background(), "evt1"))
	assert.True(t, deleted)
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantNotFound bool
		wantContains string
	}{
		{"404", &googleapi.Error{Code: 404, Message: "Not Found"}, true, "Not Found"},
		{"410", &googleapi.Error{Code: 410, Message: "Deleted"}, true, "Deleted"},
		{"403", &googleapi.Error{Code: 403, Message: "Rate Limit Exceeded"}, false, "google calendar API error 403"},
		{"transport", errors.New("dial tcp: refused"), false, "google calendar request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateError(tt.err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, ErrNotFound))
			assert.Contains(t, err.Error(), tt.wantContains)
		})
	}
}

func TestParseEventDateTime_Missing(t *testing.T) {
	_, _, err := parseEventDateTime(nil, time.UTC)
	assert.Error(t, err)
	_, _, err = parseEventDateTime(&calendar.EventDateTime{}, time.UTC)
	assert.Error(t, err)
}
