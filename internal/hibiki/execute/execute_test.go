package execute

// Shared fakes for the executor tests.

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/calendar"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
	"github.com/dmoraru/hibiki/internal/hibiki/proc"
)

type fakeRunner struct {
	// results maps the basename of the first argument (the script path, or
	// the command line for bash -c) to its result.
	results map[string]*proc.Result
	// fallback is returned when no mapped result matches.
	fallback *proc.Result
	err      error
	calls    [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*proc.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, f.err
	}
	if len(args) > 0 {
		if res, ok := f.results[filepath.Base(args[len(args)-1])]; ok {
			return res, nil
		}
		if res, ok := f.results[filepath.Base(args[0])]; ok {
			return res, nil
		}
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return &proc.Result{}, nil
}

type explainInterp struct {
	explanation string
	calls       int
}

func (f *explainInterp) ClassifyIntent(ctx context.Context, message string) (*nlp.IntentResult, error) {
	return nil, errors.New("not implemented")
}

func (f *explainInterp) CalendarDetails(ctx context.Context, message string, events []nlp.EventContext, now time.Time) (*nlp.CalendarDetails, error) {
	return nil, errors.New("not implemented")
}

func (f *explainInterp) ScriptDetails(ctx context.Context, message string, scripts []nlp.ScriptInfo) ([]nlp.ScriptRequest, error) {
	return nil, errors.New("not implemented")
}

func (f *explainInterp) CommandDetails(ctx context.Context, message string) (*nlp.CommandDetails, error) {
	return nil, errors.New("not implemented")
}

func (f *explainInterp) Chat(ctx context.Context, message string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *explainInterp) SummarizeScript(ctx context.Context, name, content string) (*nlp.ScriptSummary, error) {
	return nil, errors.New("not implemented")
}

func (f *explainInterp) ExplainError(ctx context.Context, command, stderr string) (string, error) {
	f.calls++
	return f.explanation, nil
}

type fakeCalendarClient struct {
	events    []calendar.Event
	listErr   error
	createID  string
	createErr error
	deleteErr error
}

func (f *fakeCalendarClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]calendar.Event, error) {
	return f.events, f.listErr
}

func (f *fakeCalendarClient) CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error) {
	return f.createID, f.createErr
}

func (f *fakeCalendarClient) DeleteEvent(ctx context.Context, id string) error {
	return f.deleteErr
}

func TestTruncate(t *testing.T) {
	short := "hello"
	if got := truncate(short); got != short {
		t.Errorf("short strings must pass through, got %q", got)
	}

	long := strings.Repeat("x", maxOutputChars+100)
	got := truncate(long)
	if !strings.Contains(got, "truncated") {
		t.Error("long output should be marked as truncated")
	}
	if !strings.Contains(got, "100 more bytes") {
		t.Errorf("truncation note should say how much was cut, got tail %q", got[len(got)-60:])
	}
}
