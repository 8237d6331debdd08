package service

import (
	"context"
	"errors"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/models"
)

// ErrNotFound is returned when an event id does not exist (or was deleted).
var ErrNotFound = errors.New("event not found")

// CalendarStore abstracts the calendar backend for testability.
// ListEvents returns events overlapping [timeMin, timeMax) ordered by start;
// a zero timeMax means no upper bound and maxResults <= 0 means backend default.
type CalendarStore interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.Event, error)
	SearchEvents(ctx context.Context, query string, timeMin time.Time, maxResults int) ([]models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	InsertEvent(ctx context.Context, event *models.Event) (models.EventRef, error)
	UpdateEvent(ctx context.Context, id string, event *models.Event) (models.EventRef, error)
	DeleteEvent(ctx context.Context, id string) error
}
