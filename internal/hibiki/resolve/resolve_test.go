package resolve

// Shared fakes for the resolver tests.

import (
	"context"
	"errors"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/calendar"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
)

type fakeInterp struct {
	calendarDetails *nlp.CalendarDetails
	calendarErr     error
	scriptRequests  []nlp.ScriptRequest
	scriptErr       error
	commandDetails  *nlp.CommandDetails
	commandErr      error
	summaries       map[string]nlp.ScriptSummary
}

func (f *fakeInterp) ClassifyIntent(ctx context.Context, message string) (*nlp.IntentResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeInterp) CalendarDetails(ctx context.Context, message string, events []nlp.EventContext, now time.Time) (*nlp.CalendarDetails, error) {
	return f.calendarDetails, f.calendarErr
}

func (f *fakeInterp) ScriptDetails(ctx context.Context, message string, scripts []nlp.ScriptInfo) ([]nlp.ScriptRequest, error) {
	return f.scriptRequests, f.scriptErr
}

func (f *fakeInterp) CommandDetails(ctx context.Context, message string) (*nlp.CommandDetails, error) {
	return f.commandDetails, f.commandErr
}

func (f *fakeInterp) Chat(ctx context.Context, message string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeInterp) SummarizeScript(ctx context.Context, name, content string) (*nlp.ScriptSummary, error) {
	if s, ok := f.summaries[name]; ok {
		return &s, nil
	}
	return &nlp.ScriptSummary{Description: "does things"}, nil
}

func (f *fakeInterp) ExplainError(ctx context.Context, command, stderr string) (string, error) {
	return "", nil
}

type fakeCalendar struct {
	events  []calendar.Event
	listErr error
}

func (f *fakeCalendar) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]calendar.Event, error) {
	return f.events, f.listErr
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, id string) error {
	return errors.New("not implemented")
}
