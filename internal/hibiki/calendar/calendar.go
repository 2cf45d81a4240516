// Package calendar defines the calendar backend capability and its Google
// Calendar implementation.
//
// The dispatch core only depends on the Client interface; the concrete
// backend is injected at wiring time so tests can substitute an in-memory
// fake.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrReauthRequired is returned when the stored OAuth credentials are
// expired or revoked. This is surfaced to the operator as a distinct
// "reauthentication required" condition and is never retried automatically.
var ErrReauthRequired = errors.New("calendar: reauthentication required")

// ErrNotFound is returned when a referenced event no longer exists.
var ErrNotFound = errors.New("calendar: event not found")

// Event is one calendar entry. Times are UTC.
type Event struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// Client is the calendar backend capability.
//
// Implementations must be safe for concurrent use. All calls honour ctx
// deadlines; callers are expected to bound each call with a timeout.
type Client interface {
	// ListEvents returns events starting in [timeMin, timeMax), ordered by
	// start time, at most maxResults entries.
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]Event, error)

	// CreateEvent inserts an event and returns its backend-assigned ID.
	CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error)

	// DeleteEvent removes the event with the given ID. Returns ErrNotFound
	// when the event no longer exists.
	DeleteEvent(ctx context.Context, id string) error
}
