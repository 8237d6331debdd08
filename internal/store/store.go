package store

import (
	"strings"

	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/service"
)

// Store is a calendar backend that owns its resources.
type Store interface {
	service.CalendarStore
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// matchesQuery is the free-text match used by the local backends: every
// word must appear in the summary, description, location or an attendee.
func matchesQuery(ev *models.Event, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join(append([]string{ev.Summary, ev.Description, ev.Location}, ev.AttendeeEmails()...), " "))
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}
