package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/service"
	"github.com/google/uuid"
)

// MemoryStore is a process-local calendar used for dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]models.Event
}

func NewMemoryStore(seed ...models.Event) *MemoryStore {
	s := &MemoryStore{events: make(map[string]models.Event)}
	for _, ev := range seed {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		s.events[ev.ID] = ev
	}
	return s
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) sorted(keep func(ev *models.Event) bool) []models.Event {
	var out []models.Event
	for _, ev := range s.events {
		if ev.Cancelled() || !keep(&ev) {
			continue
		}
		out = append(out, cloneEvent(ev))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func limit(events []models.Event, max int) []models.Event {
	if max > 0 && len(events) > max {
		return events[:max]
	}
	return events
}

func (s *MemoryStore) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return limit(s.sorted(func(ev *models.Event) bool {
		if timeMax.IsZero() {
			return ev.End.After(timeMin)
		}
		return ev.Overlaps(timeMin, timeMax)
	}), maxResults), nil
}

func (s *MemoryStore) SearchEvents(ctx context.Context, query string, timeMin time.Time, maxResults int) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return limit(s.sorted(func(ev *models.Event) bool {
		return ev.End.After(timeMin) && matchesQuery(ev, query)
	}), maxResults), nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrNotFound, id)
	}
	out := cloneEvent(ev)
	return &out, nil
}

func (s *MemoryStore) InsertEvent(ctx context.Context, event *models.Event) (models.EventRef, error) {
	if err := ctx.Err(); err != nil {
		return models.EventRef{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := cloneEvent(*event)
	ev.ID = uuid.NewString()
	ev.Link = "memory://events/" + ev.ID
	if ev.Status == "" {
		ev.Status = models.StatusConfirmed
	}
	s.events[ev.ID] = ev
	return models.EventRef{ID: ev.ID, Link: ev.Link}, nil
}

func (s *MemoryStore) UpdateEvent(ctx context.Context, id string, event *models.Event) (models.EventRef, error) {
	if err := ctx.Err(); err != nil {
		return models.EventRef{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[id]
	if !ok {
		return models.EventRef{}, fmt.Errorf("%w: %s", service.ErrNotFound, id)
	}
	ev := cloneEvent(*event)
	ev.ID = id
	ev.Link = existing.Link
	if ev.Status == "" {
		ev.Status = existing.Status
	}
	s.events[id] = ev
	return models.EventRef{ID: id, Link: ev.Link}, nil
}

func (s *MemoryStore) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("%w: %s", service.ErrNotFound, id)
	}
	delete(s.events, id)
	return nil
}

func cloneEvent(ev models.Event) models.Event {
	if ev.Attendees != nil {
		ev.Attendees = append([]models.Attendee(nil), ev.Attendees...)
	}
	return ev
}
