package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/Felps0156/SDR-Agent/internal/models"
)

// DefaultBuffer is the minimum gap kept around every appointment.
const DefaultBuffer = 15 * time.Minute

// DefaultConflictMaxResults bounds the conflict query.
const DefaultConflictMaxResults = 10

// EventLister is the read side of the calendar store used for conflict checks.
type EventLister interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]models.Event, error)
}

// ConflictChecker looks for events near a candidate interval.
type ConflictChecker struct {
	Store EventLister
	// Buffer is kept after the candidate's end, LeadBuffer before its start.
	Buffer     time.Duration
	LeadBuffer time.Duration
	MaxResults int
}

// NewConflictChecker uses the default buffer and result bound.
func NewConflictChecker(store EventLister) *ConflictChecker {
	return &ConflictChecker{
		Store:      store,
		Buffer:     DefaultBuffer,
		LeadBuffer: DefaultBuffer,
		MaxResults: DefaultConflictMaxResults,
	}
}

// Window is the interval widened by LeadBuffer before and Buffer after. It
// is only used to query the store.
func (c *ConflictChecker) Window(interval Interval) Interval {
	return interval.Widen(c.LeadBuffer, c.Buffer)
}

// Check returns a Conflict decision naming the first colliding event,
// a Failed decision when the store cannot be read, or nil when the slot
// is free. Cancelled events and excludeID are ignored.
func (c *ConflictChecker) Check(ctx context.Context, interval Interval, excludeID string) *Decision {
	window := c.Window(interval)

	max := c.MaxResults
	if max <= 0 {
		max = DefaultConflictMaxResults
	}

	events, err := c.Store.ListEvents(ctx, window.Start, window.End, max)
	if err != nil {
		d := FailedDecision(fmt.Errorf("failed to check calendar conflicts: %w", err))
		return &d
	}

	for _, ev := range events {
		if ev.Cancelled() || (excludeID != "" && ev.ID == excludeID) {
			continue
		}
		if !window.Overlaps(ev.Start, ev.End) {
			continue
		}
		d := ConflictDecision(ev.Summary, c.Buffer, interval)
		return &d
	}
	return nil
}
