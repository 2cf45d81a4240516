// Package resolve maps interpreted messages onto concrete actions, one
// resolver per action domain. Resolvers decide whether a request is complete
// enough to propose, needs clarification, must be refused, or cannot be
// mapped at all; they never execute anything themselves.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/calendar"
	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
)

const (
	// defaultEventDuration applies when a create request names no duration.
	defaultEventDuration = 60 * time.Minute

	// eventContextWindow is how far ahead the resolver looks when giving the
	// interpreter existing events as context and when matching delete
	// targets.
	eventContextWindow = 30 * 24 * time.Hour

	// defaultListWindow bounds a list request with no explicit range.
	defaultListWindow = 7 * 24 * time.Hour

	maxContextEvents = 25
	maxListResults   = 10
)

// Calendar resolves calendar requests. It consults the live calendar for
// context: the interpreter sees upcoming events so "delete the standup"
// can be matched to a real entry.
type Calendar struct {
	interp nlp.Interpreter
	client calendar.Client
	// loc is the timezone user-supplied dates and times are interpreted in.
	loc *time.Location

	clock func() time.Time
}

var _ dispatch.Resolver = (*Calendar)(nil)

// NewCalendar creates a calendar resolver. A nil loc means local time.
func NewCalendar(interp nlp.Interpreter, client calendar.Client, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{interp: interp, client: client, loc: loc, clock: time.Now}
}

// Resolve implements dispatch.Resolver.
func (r *Calendar) Resolve(ctx context.Context, userID, message string) (*dispatch.Resolution, error) {
	now := r.clock()

	upcoming := r.upcomingEvents(ctx, now)
	details, err := r.interp.CalendarDetails(ctx, message, upcoming, now)
	if err != nil {
		return nil, err
	}

	switch details.Action {
	case nlp.ActionCreateEvent:
		return r.resolveCreate(details, now)
	case nlp.ActionDeleteEvent:
		return r.resolveDelete(ctx, details, now)
	case nlp.ActionListEvents:
		return r.resolveList(details, now), nil
	}
	return &dispatch.Resolution{
		Status: dispatch.StatusUnresolvable,
		Reply:  "I couldn't work out what calendar operation you meant. You can create, delete, or list events.",
	}, nil
}

// upcomingEvents fetches events for interpreter context. A calendar failure
// here only degrades context, it does not fail resolution.
func (r *Calendar) upcomingEvents(ctx context.Context, now time.Time) []nlp.EventContext {
	events, err := r.client.ListEvents(ctx, now, now.Add(eventContextWindow), maxContextEvents)
	if err != nil {
		slog.Warn("could not fetch events for interpretation context", "error", err)
		return nil
	}
	out := make([]nlp.EventContext, 0, len(events))
	for _, e := range events {
		out = append(out, nlp.EventContext{ID: e.ID, Title: e.Title, Start: e.Start, End: e.End})
	}
	return out
}

func (r *Calendar) resolveCreate(details *nlp.CalendarDetails, now time.Time) (*dispatch.Resolution, error) {
	title := strings.TrimSpace(details.Title)
	if title == "" {
		return &dispatch.Resolution{
			Status: dispatch.StatusNeedsClarification,
			Reply:  "What should the event be called?",
		}, nil
	}
	if details.Date == "" || details.Time == "" {
		return &dispatch.Resolution{
			Status: dispatch.StatusNeedsClarification,
			Reply:  fmt.Sprintf("When should %q happen? Please give me a date and a time.", title),
		}, nil
	}

	start, err := time.ParseInLocation("2006-01-02 15:04", details.Date+" "+details.Time, r.loc)
	if err != nil {
		return &dispatch.Resolution{
			Status: dispatch.StatusNeedsClarification,
			Reply:  fmt.Sprintf("I couldn't make sense of %q at %q as a date and time. Could you rephrase?", details.Date, details.Time),
		}, nil
	}

	duration := time.Duration(details.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = defaultEventDuration
	}
	end := start.Add(duration)

	summary := fmt.Sprintf("Create event %q on %s at %s (%d min)",
		title, start.Format("Mon, Jan 2 2006"), start.Format("15:04"), int(duration.Minutes()))

	return &dispatch.Resolution{
		Status: dispatch.StatusExecutable,
		Action: &dispatch.Action{
			Domain:  dispatch.DomainCalendar,
			Kind:    dispatch.KindCreateEvent,
			Summary: summary,
			Calendar: &dispatch.CalendarPayload{
				Title: title,
				Start: start.UTC(),
				End:   end.UTC(),
			},
		},
	}, nil
}

// resolveDelete matches the request against upcoming events: by ID when the
// interpreter picked one, otherwise by case-insensitive title containment,
// narrowed to the named date when one was given. The date narrows rather
// than gates: "delete the dentist" with no date still matches, and any
// resulting ambiguity falls through to the 0/1/many handling below.
func (r *Calendar) resolveDelete(ctx context.Context, details *nlp.CalendarDetails, now time.Time) (*dispatch.Resolution, error) {
	events, err := r.client.ListEvents(ctx, now, now.Add(eventContextWindow), maxContextEvents)
	if err != nil {
		slog.Warn("could not list events to match delete target", "error", err)
		return &dispatch.Resolution{
			Status: dispatch.StatusUnresolvable,
			Reply:  "I couldn't reach the calendar to find that event. Please try again.",
		}, nil
	}

	var matches []calendar.Event
	if details.EventID != "" {
		for _, e := range events {
			if e.ID == details.EventID {
				matches = append(matches, e)
				break
			}
		}
	}
	if len(matches) == 0 && details.Title != "" {
		needle := strings.ToLower(strings.TrimSpace(details.Title))
		for _, e := range events {
			if !strings.Contains(strings.ToLower(e.Title), needle) {
				continue
			}
			if details.Date != "" && e.Start.In(r.loc).Format("2006-01-02") != details.Date {
				continue
			}
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		what := details.Title
		if what == "" {
			what = "that"
		}
		return &dispatch.Resolution{
			Status: dispatch.StatusUnresolvable,
			Reply:  fmt.Sprintf("I couldn't find an upcoming event matching %q.", what),
		}, nil

	case 1:
		target := matches[0]
		summary := fmt.Sprintf("Delete event %q on %s at %s",
			target.Title,
			target.Start.In(r.loc).Format("Mon, Jan 2 2006"),
			target.Start.In(r.loc).Format("15:04"))
		return &dispatch.Resolution{
			Status: dispatch.StatusExecutable,
			Action: &dispatch.Action{
				Domain:  dispatch.DomainCalendar,
				Kind:    dispatch.KindDeleteEvent,
				Summary: summary,
				Calendar: &dispatch.CalendarPayload{
					EventID:    target.ID,
					EventTitle: target.Title,
				},
			},
		}, nil

	default:
		var b strings.Builder
		fmt.Fprintf(&b, "I found %d events matching %q, which one did you mean?\n", len(matches), details.Title)
		for _, e := range matches {
			fmt.Fprintf(&b, "- %q on %s at %s\n",
				e.Title, e.Start.In(r.loc).Format("Mon, Jan 2 2006"), e.Start.In(r.loc).Format("15:04"))
		}
		return &dispatch.Resolution{
			Status: dispatch.StatusNeedsClarification,
			Reply:  strings.TrimRight(b.String(), "\n"),
		}, nil
	}
}

// resolveList produces a read-only list action: a single day when the
// request named a date, the default window otherwise.
func (r *Calendar) resolveList(details *nlp.CalendarDetails, now time.Time) *dispatch.Resolution {
	start := now
	end := now.Add(defaultListWindow)
	summary := "List upcoming events"

	if details.Date != "" {
		if day, err := time.ParseInLocation("2006-01-02", details.Date, r.loc); err == nil {
			start = day
			end = day.AddDate(0, 0, 1)
			summary = fmt.Sprintf("List events on %s", day.Format("Mon, Jan 2 2006"))
		}
	}

	return &dispatch.Resolution{
		Status: dispatch.StatusReadOnly,
		Action: &dispatch.Action{
			Domain:  dispatch.DomainCalendar,
			Kind:    dispatch.KindListEvents,
			Summary: summary,
			Calendar: &dispatch.CalendarPayload{
				Start:      start.UTC(),
				End:        end.UTC(),
				MaxResults: maxListResults,
			},
		},
	}
}
