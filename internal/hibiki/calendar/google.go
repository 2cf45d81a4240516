package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleConfig configures the Google Calendar backend.
type GoogleConfig struct {
	// CredentialsPath is the OAuth client credentials JSON file downloaded
	// from the Google Cloud console.
	CredentialsPath string
	// TokenPath is the stored OAuth token JSON produced by the one-time
	// interactive authorization flow. Refresh happens automatically; when
	// the refresh grant itself is rejected the client reports
	// ErrReauthRequired and the operator must re-run the flow.
	TokenPath string
	// CalendarID selects the calendar; defaults to "primary".
	CalendarID string
}

// GoogleClient implements Client against the Google Calendar v3 API.
type GoogleClient struct {
	svc        *gcal.Service
	calendarID string
}

var _ Client = (*GoogleClient)(nil)

// NewGoogle builds a GoogleClient from credentials and a stored token.
// A missing or unreadable token is reported as ErrReauthRequired so the
// caller can direct the operator to the authorization flow instead of
// showing a generic failure.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*GoogleClient, error) {
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}

	credsJSON, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", cfg.CredentialsPath, err)
	}
	oauthCfg, err := google.ConfigFromJSON(credsJSON, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	token, err := loadToken(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}

	svc, err := gcal.NewService(ctx,
		option.WithTokenSource(oauthCfg.TokenSource(ctx, token)),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}

	return &GoogleClient{svc: svc, calendarID: cfg.CalendarID}, nil
}

// loadToken reads a stored oauth2 token from disk.
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no stored token at %s", path)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("token file %s is not valid JSON", path)
	}
	return &token, nil
}

// ListEvents implements Client.
func (g *GoogleClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time, maxResults int) ([]Event, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	call := g.svc.Events.List(g.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(maxResults)).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, wrapGoogleErr("list events", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		start, err := parseEventTime(item.Start)
		if err != nil {
			continue // skip entries with no usable start time
		}
		end, err := parseEventTime(item.End)
		if err != nil {
			end = start
		}
		events = append(events, Event{
			ID:    item.Id,
			Title: item.Summary,
			Start: start.UTC(),
			End:   end.UTC(),
		})
	}
	return events, nil
}

// CreateEvent implements Client.
func (g *GoogleClient) CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error) {
	event := &gcal.Event{
		Summary: title,
		Start:   &gcal.EventDateTime{DateTime: start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:     &gcal.EventDateTime{DateTime: end.UTC().Format(time.RFC3339), TimeZone: "UTC"},
	}
	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleErr("create event", err)
	}
	return created.Id, nil
}

// DeleteEvent implements Client.
func (g *GoogleClient) DeleteEvent(ctx context.Context, id string) error {
	err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		return wrapGoogleErr("delete event", err)
	}
	return nil
}

// wrapGoogleErr maps Google API failures onto the package's typed errors.
// 401 responses and rejected refresh grants both mean the stored token is no
// longer usable.
func wrapGoogleErr(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%s: %w", op, ErrReauthRequired)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, ErrReauthRequired)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// parseEventTime extracts a time from a Google EventDateTime, which carries
// either a full RFC 3339 timestamp or (for all-day events) a bare date.
func parseEventTime(edt *gcal.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, errors.New("missing time")
	}
	if edt.DateTime != "" {
		return time.Parse(time.RFC3339, edt.DateTime)
	}
	if edt.Date != "" {
		return time.Parse("2006-01-02", edt.Date)
	}
	return time.Time{}, errors.New("missing time")
}
