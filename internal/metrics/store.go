package metrics

import (
	"context"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/service"
)

// InstrumentedStore times every call to the wrapped store.
type InstrumentedStore struct {
	next     service.CalendarStore
	recorder *Recorder
}

func InstrumentStore(next service.CalendarStore, recorder *Recorder) *InstrumentedStore {
	return &InstrumentedStore{next: next, recorder: recorder}
}

func (s *InstrumentedStore) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) (events []models.Event, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveStore("list", start, err) }()
	return s.next.ListEvents(ctx, timeMin, timeMax, maxResults)
}

func (s *InstrumentedStore) SearchEvents(ctx context.Context, query string, timeMin time.Time, maxResults int) (events []models.Event, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveStore("search", start, err) }()
	return s.next.SearchEvents(ctx, query, timeMin, maxResults)
}

func (s *InstrumentedStore) GetEvent(ctx context.Context, id string) (event *models.Event, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveStore("get", start, err) }()
	return s.next.GetEvent(ctx, id)
}

func (s *InstrumentedStore) InsertEvent(ctx context.Context, event *models.Event) (ref models.EventRef, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveStore("insert", start, err) }()
	return s.next.InsertEvent(ctx, event)
}

func (s *InstrumentedStore) UpdateEvent(ctx context.Context, id string, event *models.Event) (ref models.EventRef, err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveStore("update", start, err) }()
	return s.next.UpdateEvent(ctx, id, event)
}

func (s *InstrumentedStore) DeleteEvent(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.recorder.ObserveStore("delete", start, err) }()
	return s.next.DeleteEvent(ctx, id)
}
