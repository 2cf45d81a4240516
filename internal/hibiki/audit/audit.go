// Package audit records every proposal, decision, and execution outcome as
// one JSON line in an append-only file. The file is the authoritative
// history of what the bot was asked to do and what actually happened.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dmoraru/hibiki/common/redact"
)

// Event names recorded in the trail. One proposal produces a "proposed"
// entry and later exactly one of the decision entries, plus an "executed"
// entry when the action actually ran.
const (
	EventProposed   = "proposed"
	EventConfirmed  = "confirmed"
	EventCancelled  = "cancelled"
	EventSuperseded = "superseded"
	EventDiscarded  = "discarded"
	EventExecuted   = "executed"
	EventRejected   = "rejected"
	EventReadOnly   = "read_only"
	EventCommand    = "command"
)

// Entry is one audit record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	TraceID   string    `json:"trace_id"`
	UserID    string    `json:"user_id"`
	Event     string    `json:"event"`
	Domain    string    `json:"domain,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	ActionID  string    `json:"action_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	// Payload is the JSON snapshot of the action's domain parameters, so
	// the trail shows what was actually run, not just its summary line.
	Payload json.RawMessage `json:"payload,omitempty"`
	Outcome string          `json:"outcome,omitempty"`
	Detail  string          `json:"detail,omitempty"`
}

// Trail is an append-only JSONL audit sink. Safe for concurrent use.
type Trail struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Open opens (or creates) the audit file at path for appending.
func Open(path string) (*Trail, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &Trail{path: path, file: f}, nil
}

// Close closes the underlying file.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// Append writes one entry. Free-text fields are scrubbed of credential-like
// substrings before they touch disk. A zero Timestamp is filled with the
// current time.
func (t *Trail) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.Message = redact.String(e.Message)
	e.Summary = redact.String(e.Summary)
	e.Detail = redact.String(e.Detail)
	if len(e.Payload) > 0 {
		e.Payload = json.RawMessage(redact.String(string(e.Payload)))
	}

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return fmt.Errorf("audit trail is closed")
	}
	if _, err := t.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Tail returns the last n entries in chronological order. Lines that fail to
// decode are skipped rather than aborting the read, so one corrupt line
// cannot hide the rest of the history.
func (t *Trail) Tail(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	// Keep a ring of the last n decoded entries.
	ring := make([]Entry, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit file: %w", err)
	}
	return ring, nil
}
