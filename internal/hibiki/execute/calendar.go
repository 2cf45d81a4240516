package execute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/calendar"
	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
)

// Calendar executes calendar actions against the backend.
type Calendar struct {
	client calendar.Client
	// loc is the timezone event times are rendered in for replies.
	loc     *time.Location
	timeout time.Duration
}

var _ dispatch.Executor = (*Calendar)(nil)

// NewCalendar creates a calendar executor. A nil loc means local time.
func NewCalendar(client calendar.Client, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{client: client, loc: loc, timeout: CalendarTimeout}
}

// Execute implements dispatch.Executor.
func (e *Calendar) Execute(ctx context.Context, action *dispatch.Action) *dispatch.Outcome {
	if action.Calendar == nil {
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeExecutionFailure,
			Reply:  "This calendar action is missing its details.",
			Detail: "nil calendar payload",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch action.Kind {
	case dispatch.KindCreateEvent:
		return e.create(ctx, action.Calendar)
	case dispatch.KindDeleteEvent:
		return e.delete(ctx, action.Calendar)
	case dispatch.KindListEvents:
		return e.list(ctx, action.Calendar)
	}
	return &dispatch.Outcome{
		Code:   dispatch.OutcomeExecutionFailure,
		Reply:  "I don't know how to perform that calendar operation.",
		Detail: fmt.Sprintf("unknown kind %s", action.Kind),
	}
}

func (e *Calendar) create(ctx context.Context, p *dispatch.CalendarPayload) *dispatch.Outcome {
	id, err := e.client.CreateEvent(ctx, p.Title, p.Start, p.End)
	if err != nil {
		return e.failure("create the event", err)
	}
	start := p.Start.In(e.loc)
	return &dispatch.Outcome{
		Code: dispatch.OutcomeOK,
		Reply: fmt.Sprintf("Created %q on %s at %s.",
			p.Title, start.Format("Mon, Jan 2 2006"), start.Format("15:04")),
		Detail: "event id " + id,
	}
}

func (e *Calendar) delete(ctx context.Context, p *dispatch.CalendarPayload) *dispatch.Outcome {
	err := e.client.DeleteEvent(ctx, p.EventID)
	if errors.Is(err, calendar.ErrNotFound) {
		// The event vanished between proposal and confirmation.
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeNotFound,
			Reply:  fmt.Sprintf("%q no longer exists — it may have already been deleted.", p.EventTitle),
			Detail: "event id " + p.EventID,
		}
	}
	if err != nil {
		return e.failure("delete the event", err)
	}
	return &dispatch.Outcome{
		Code:   dispatch.OutcomeOK,
		Reply:  fmt.Sprintf("Deleted %q.", p.EventTitle),
		Detail: "event id " + p.EventID,
	}
}

func (e *Calendar) list(ctx context.Context, p *dispatch.CalendarPayload) *dispatch.Outcome {
	events, err := e.client.ListEvents(ctx, p.Start, p.End, p.MaxResults)
	if err != nil {
		return e.failure("list events", err)
	}
	if len(events) == 0 {
		return &dispatch.Outcome{
			Code:  dispatch.OutcomeOK,
			Reply: "No upcoming events in that window.",
		}
	}

	var b strings.Builder
	b.WriteString("Upcoming events:\n")
	for _, ev := range events {
		start := ev.Start.In(e.loc)
		fmt.Fprintf(&b, "- %s at %s: %s\n",
			start.Format("Mon, Jan 2"), start.Format("15:04"), ev.Title)
	}
	return &dispatch.Outcome{
		Code:   dispatch.OutcomeOK,
		Reply:  strings.TrimRight(b.String(), "\n"),
		Detail: fmt.Sprintf("%d events", len(events)),
	}
}

// failure maps backend errors to outcomes. Expired credentials are a
// distinct, actionable condition; everything else is a plain failure unless
// the deadline was the cause.
func (e *Calendar) failure(what string, err error) *dispatch.Outcome {
	switch {
	case errors.Is(err, calendar.ErrReauthRequired):
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeCredentialFailure,
			Reply:  "Calendar access needs to be reauthorized before I can do that. Please re-run the authorization flow.",
			Detail: err.Error(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeTimeout,
			Reply:  fmt.Sprintf("The calendar didn't respond in time, so I couldn't %s.", what),
			Detail: err.Error(),
		}
	default:
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeExecutionFailure,
			Reply:  fmt.Sprintf("I couldn't %s: %v", what, err),
			Detail: err.Error(),
		}
	}
}
