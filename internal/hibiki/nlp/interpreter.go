// Package nlp provides the natural-language interpretation layer for Hibiki.
//
// The layer sits between the raw chat message and the dispatch engine. Its
// sole responsibility is translation: convert a free-form sentence into
// structured data (an intent label, calendar event details, a script
// selection, a shell command) that the deterministic dispatch pipeline can
// act on.
//
// Security invariants:
//   - The LLM only proposes actions; it never executes them. Every
//     side-effecting proposal still flows through the confirmation gate and
//     the audit trail.
//   - The LLM is shown the script catalogue and upcoming event titles only;
//     it never sees credentials or the audit log.
//   - Every structured response is validated against a JSON Schema before it
//     is trusted; anything that fails validation is ErrMalformedOutput.
package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrRateLimit is returned by an Interpreter when the upstream LLM API
// reports a rate-limiting condition (HTTP 429). Callers should surface a
// user-visible message; the request was understood but cannot be fulfilled
// right now.
var ErrRateLimit = errors.New("nlp: upstream rate limit exceeded")

// ErrMalformedOutput is returned when the LLM produces output that cannot be
// interpreted as the expected structure (JSON parse failure or schema
// violation). Callers should ask the user to rephrase.
var ErrMalformedOutput = errors.New("nlp: malformed response from LLM")

// Intent is the coarse domain label assigned to an inbound message.
type Intent string

const (
	// IntentCalendar means the user wants to create, delete, or list
	// calendar events.
	IntentCalendar Intent = "calendar"
	// IntentScript means the user wants to run one of the catalogued scripts.
	IntentScript Intent = "script"
	// IntentServerCommand means the user wants a shell command executed.
	IntentServerCommand Intent = "server_command"
	// IntentGeneralChat is the fallback for conversation and anything the
	// model cannot confidently place in another domain.
	IntentGeneralChat Intent = "general_chat"
)

// IntentResult is the output of a classification call.
type IntentResult struct {
	Intent Intent `json:"intent"`
	// Notes is a short model-provided explanation, kept for the audit trail.
	Notes string `json:"notes,omitempty"`
}

// Normalize maps unknown or low-confidence intent labels to general chat so
// that a misbehaving model can never route a message into a side-effecting
// domain by accident.
func (r *IntentResult) Normalize() Intent {
	switch r.Intent {
	case IntentCalendar, IntentScript, IntentServerCommand, IntentGeneralChat:
	default:
		r.Intent = IntentGeneralChat
	}
	return r.Intent
}

// EventContext is one upcoming calendar event injected into the calendar
// interpretation prompt so the model can match delete requests against live
// data.
type EventContext struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarAction is the operation the model inferred from a calendar message.
type CalendarAction string

const (
	ActionCreateEvent CalendarAction = "create_event"
	ActionDeleteEvent CalendarAction = "delete_event"
	ActionListEvents  CalendarAction = "list_events"
)

// FlexInt unmarshals from either a JSON number or a numeric string. LLMs are
// inconsistent about quoting numbers even under a schema, so the wire type
// accepts both.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte(`null`)) || bytes.Equal(data, []byte(`""`)) {
		*f = 0
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("flexint: %q is not an integer", s)
	}
	*f = FlexInt(n)
	return nil
}

// CalendarDetails is the structured interpretation of a calendar message.
// Only the fields relevant to Action are populated; empty strings mark slots
// the model could not fill.
type CalendarDetails struct {
	Action CalendarAction `json:"action"`
	// Title is the event title, when applicable.
	Title string `json:"title,omitempty"`
	// Date is the target date in YYYY-MM-DD, in the configured local zone.
	Date string `json:"date,omitempty"`
	// Time is the start time in HH:MM (24h), local zone.
	Time string `json:"time,omitempty"`
	// DurationMinutes is the event length; zero means unspecified.
	DurationMinutes FlexInt `json:"duration_minutes,omitempty"`
	// EventID identifies an existing event for deletion, when the model could
	// determine it from the event context.
	EventID string `json:"event_id,omitempty"`
	// Notes carries model uncertainty or clarification hints.
	Notes string `json:"notes,omitempty"`
}

// ScriptRequest is one script the model selected for execution.
type ScriptRequest struct {
	ScriptName      string   `json:"script_name"`
	ExecutionMethod string   `json:"execution_method"` // "python" | "bash"
	Arguments       []string `json:"arguments,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// ScriptInfo describes one catalogued script for inclusion in the script
// interpretation prompt.
type ScriptInfo struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	RequiresArguments bool   `json:"requires_arguments"`
	ExampleUsage      string `json:"example_usage,omitempty"`
}

// CommandDetails is the structured interpretation of a server-command
// message. An empty Command means the model could not produce one.
type CommandDetails struct {
	Command string `json:"command"`
	Notes   string `json:"notes,omitempty"`
}

// ScriptSummary is the model-generated documentation for one script,
// produced during catalogue refresh.
type ScriptSummary struct {
	Description       string `json:"description"`
	RequiresArguments bool   `json:"requires_arguments"`
	ExampleUsage      string `json:"example_usage,omitempty"`
}

// RateLimitMessage is the reply sent to a sender who exceeds the per-minute
// interpretation call limit.
const RateLimitMessage = "⏳ I'm handling too many requests right now. Please try again in a moment."

// APIRateLimitMessage is the reply sent when the upstream LLM API reports a
// rate-limit condition. Unlike RateLimitMessage this means the provider is
// globally throttled, not the sender.
const APIRateLimitMessage = "⏳ The language model is temporarily rate-limited by the upstream provider. Please try again shortly."

// MalformedOutputMessage is the reply sent when the LLM returns output that
// fails schema validation.
const MalformedOutputMessage = "I didn't quite understand that — could you rephrase?"

// Interpreter translates free-form user messages into structured data.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Structured calls return ErrMalformedOutput when the model's reply fails
// schema validation, and ErrRateLimit when the upstream API throttles.
type Interpreter interface {
	// ClassifyIntent assigns a coarse domain label to the message.
	ClassifyIntent(ctx context.Context, message string) (*IntentResult, error)

	// CalendarDetails determines the exact calendar operation the message
	// asks for. events is a point-in-time snapshot of upcoming events; now is
	// the current local time used as the model's date reference.
	CalendarDetails(ctx context.Context, message string, events []EventContext, now time.Time) (*CalendarDetails, error)

	// ScriptDetails selects one or more catalogued scripts matching the
	// message, along with execution method and arguments.
	ScriptDetails(ctx context.Context, message string, scripts []ScriptInfo) ([]ScriptRequest, error)

	// CommandDetails converts the message into a single shell command line
	// plus a human-readable note.
	CommandDetails(ctx context.Context, message string) (*CommandDetails, error)

	// Chat produces a plain conversational reply for general-chat messages.
	Chat(ctx context.Context, message string) (string, error)

	// SummarizeScript generates catalogue documentation for one script file.
	SummarizeScript(ctx context.Context, name, content string) (*ScriptSummary, error)

	// ExplainError turns a failed command's stderr into a plain-language
	// diagnosis.
	ExplainError(ctx context.Context, command, stderr string) (string, error)
}

// decodeStructured validates raw against the named schema and unmarshals it
// into v. Both failure modes are reported as ErrMalformedOutput so callers
// have a single degraded path.
func decodeStructured(schemaName, raw string, v any) error {
	if err := ValidateSchema(schemaName, []byte(raw)); err != nil {
		return fmt.Errorf("%w: %v (raw content: %.200s)", ErrMalformedOutput, err, raw)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v (raw content: %.200s)", ErrMalformedOutput, err, raw)
	}
	return nil
}
