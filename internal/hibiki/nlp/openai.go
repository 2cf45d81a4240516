package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmoraru/hibiki/common/retry"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

// Config configures the OpenAI-compatible interpreter.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model used for all interpretation calls.
	// Defaults to gpt-4o-mini when empty (cost-efficient, sufficient for
	// structured extraction).
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// openAIInterpreter implements Interpreter using the OpenAI chat completions
// API with JSON-mode output for the structured calls.
type openAIInterpreter struct {
	cfg    Config
	client *http.Client
}

// New returns an Interpreter backed by the OpenAI (or compatible) chat API.
// The returned interpreter is safe for concurrent use.
func New(cfg Config) Interpreter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &openAIInterpreter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model          string       `json:"model"`
	Messages       []oaiMessage `json:"messages"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	Temperature    *float64     `json:"temperature,omitempty"`
	ResponseFormat *oaiFormat   `json:"response_format,omitempty"`
}

type oaiFormat struct {
	Type string `json:"type"` // "json_object"
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// errTransient marks failures worth retrying: connection errors and 5xx
// responses. Rate limits (429) and API-level errors are returned as-is.
var errTransient = errors.New("transient upstream failure")

// complete performs one chat-completion round trip and returns the raw
// assistant content. jsonMode forces the API's JSON object response format.
// Transient failures are retried with exponential backoff.
func (p *openAIInterpreter) complete(ctx context.Context, system, user string, jsonMode bool, temperature float64) (string, error) {
	body := oaiRequest{
		Model: p.cfg.Model,
		Messages: []oaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   1024,
		Temperature: &temperature,
	}
	if jsonMode {
		body.ResponseFormat = &oaiFormat{Type: "json_object"}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("nlp: marshal request: %w", err)
	}

	var content string
	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		ShouldRetry:  func(err error) bool { return errors.Is(err, errTransient) },
	}, func() error {
		var attemptErr error
		content, attemptErr = p.roundTrip(ctx, data)
		return attemptErr
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (p *openAIInterpreter) roundTrip(ctx context.Context, reqBody []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return "", fmt.Errorf("nlp: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("nlp: http request: %w (%w)", err, errTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimit
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("nlp: upstream returned HTTP %d (%w)", resp.StatusCode, errTransient)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("nlp: read response body: %w (%w)", err, errTransient)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("nlp: decode API response: %w", err)
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("nlp: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}

	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("nlp: no choices returned (HTTP %d)", resp.StatusCode)
	}

	return strings.TrimSpace(oaiResp.Choices[0].Message.Content), nil
}

// --- system prompts ---

const intentSystemPrompt = `You classify user messages into high-level intents for a personal assistant.

Possible intents:
- calendar: The user wants to create, delete, or list calendar events.
- script: The user wants to run, list, or manage scripts on their server.
- server_command: The user wants to execute a Linux shell command and see the results.
- general_chat: General questions, conversation, or anything else.

Respond ONLY with valid JSON in this format:
{
  "intent": "<one of: calendar, script, server_command, general_chat>",
  "notes": "<short explanation>"
}`

// calendarSystemPromptTmpl takes two printf verbs: today's date (local zone)
// and the upcoming-events JSON snapshot.
const calendarSystemPromptTmpl = `You determine the exact calendar action the user wants to perform.

Today's date (local time zone) is %s. Use ONLY this as the reference for
resolving relative dates; for ambiguous weekday names ("next Friday"), pick
the next future occurrence.

Upcoming calendar events:
%s

Rules:
- If the user asks what they have on some date, set "action" to "list_events"
  and ALWAYS fill "date" in YYYY-MM-DD format.
- If the user wants to create an event, set "action" to "create_event" and
  fill in as many of title/date/time/duration_minutes as possible. Leave a
  field empty when the message truly does not specify it.
- If the user wants to delete an event, set "action" to "delete_event" and
  fill "event_id" when you can identify the event from the list above.
  Otherwise leave "event_id" empty and fill "title" and "date" exactly
  matching the event to delete.
- If you are unsure, pick the closest action and explain the uncertainty in
  "notes".

Respond ONLY with valid JSON in this format:
{
  "action": "<create_event | delete_event | list_events>",
  "title": "",
  "date": "YYYY-MM-DD or empty",
  "time": "HH:MM or empty",
  "duration_minutes": 0,
  "event_id": "",
  "notes": ""
}`

// scriptSystemPromptTmpl takes one printf verb: the script catalogue JSON.
const scriptSystemPromptTmpl = `You determine which of the available scripts the user wants to run.

Available scripts:
%s

Select every script the user's message asks for (one message may request
several), how each should be executed (python or bash), and any arguments to
pass. Include a script even when you are only moderately sure of the match,
and explain doubts in its "notes". If nothing plausibly matches, return an
empty "scripts" array.

Respond ONLY with valid JSON in this format:
{
  "scripts": [
    {
      "script_name": "<script filename>",
      "execution_method": "<python | bash>",
      "arguments": ["arg1", "arg2"],
      "notes": "<short explanation>"
    }
  ]
}`

const commandSystemPrompt = `You convert user requests into Linux shell commands.

Respond ONLY with valid JSON in this format:
{
  "command": "<the shell command>",
  "notes": "<short explanation of what this does>"
}

Examples:

User: Show disk usage
{"command": "df -h", "notes": "Shows disk usage in human-readable format."}

User: Show my IP
{"command": "ip addr", "notes": "Shows network interfaces."}

If you are unsure what command the user wants, leave "command" empty and
explain in "notes".`

const chatSystemPrompt = `You are Hibiki, a helpful and concise personal assistant.`

// summarySystemPromptTmpl takes two printf verbs: filename and file content.
const summarySystemPromptTmpl = `You summarize scripts for a runnable-script catalogue.

Script filename: %s

Script contents:
"""
%s
"""

Respond ONLY with valid JSON in this format:
{
  "description": "<short summary of what the script does>",
  "requires_arguments": false,
  "example_usage": "<example command line usage>"
}`

// explainSystemPrompt is used for stderr diagnosis after a failed command.
const explainSystemPrompt = `You are a Linux troubleshooting assistant. Given a command and its error
output, explain in two or three plain sentences what the error means and how
to fix it. Plain text only, no JSON, no markdown headings.`

// --- Interpreter implementation ---

func (p *openAIInterpreter) ClassifyIntent(ctx context.Context, message string) (*IntentResult, error) {
	raw, err := p.complete(ctx, intentSystemPrompt, message, true, 0)
	if err != nil {
		return nil, err
	}
	var result IntentResult
	if err := decodeStructured(schemaIntent, raw, &result); err != nil {
		return nil, err
	}
	result.Normalize()
	return &result, nil
}

func (p *openAIInterpreter) CalendarDetails(ctx context.Context, message string, events []EventContext, now time.Time) (*CalendarDetails, error) {
	eventsJSON, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("nlp: marshal event context: %w", err)
	}
	system := fmt.Sprintf(calendarSystemPromptTmpl, now.Format("2006-01-02"), eventsJSON)

	raw, err := p.complete(ctx, system, message, true, 0)
	if err != nil {
		return nil, err
	}
	var details CalendarDetails
	if err := decodeStructured(schemaCalendar, raw, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (p *openAIInterpreter) ScriptDetails(ctx context.Context, message string, scripts []ScriptInfo) ([]ScriptRequest, error) {
	catalogueJSON, err := json.MarshalIndent(scripts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("nlp: marshal script catalogue: %w", err)
	}
	system := fmt.Sprintf(scriptSystemPromptTmpl, catalogueJSON)

	raw, err := p.complete(ctx, system, message, true, 0)
	if err != nil {
		return nil, err
	}
	var details struct {
		Scripts []ScriptRequest `json:"scripts"`
	}
	if err := decodeStructured(schemaScripts, raw, &details); err != nil {
		return nil, err
	}
	return details.Scripts, nil
}

func (p *openAIInterpreter) CommandDetails(ctx context.Context, message string) (*CommandDetails, error) {
	raw, err := p.complete(ctx, commandSystemPrompt, message, true, 0)
	if err != nil {
		return nil, err
	}
	var details CommandDetails
	if err := decodeStructured(schemaCommand, raw, &details); err != nil {
		return nil, err
	}
	details.Command = strings.TrimSpace(details.Command)
	return &details, nil
}

func (p *openAIInterpreter) Chat(ctx context.Context, message string) (string, error) {
	return p.complete(ctx, chatSystemPrompt, message, false, 0.7)
}

func (p *openAIInterpreter) SummarizeScript(ctx context.Context, name, content string) (*ScriptSummary, error) {
	system := fmt.Sprintf(summarySystemPromptTmpl, name, content)
	raw, err := p.complete(ctx, system, "Summarize this script.", true, 0)
	if err != nil {
		return nil, err
	}
	var summary ScriptSummary
	if err := decodeStructured(schemaSummary, raw, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (p *openAIInterpreter) ExplainError(ctx context.Context, command, stderr string) (string, error) {
	user := fmt.Sprintf("Command:\n%s\n\nError output:\n%s", command, stderr)
	return p.complete(ctx, explainSystemPrompt, user, false, 0)
}
