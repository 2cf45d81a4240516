// Package dispatch is the conversational core: it interprets each inbound
// message, routes it to an action domain, and mediates every state-changing
// action through an explicit propose → confirm → execute exchange.
package dispatch

import (
	"context"
	"encoding/json"
	"time"
)

// Domain is the action domain an interpreted message routes to.
type Domain string

const (
	DomainCalendar Domain = "calendar"
	DomainScript   Domain = "script"
	DomainShell    Domain = "shell"
	DomainChat     Domain = "chat"
)

// Kind identifies the concrete operation within a domain.
type Kind string

const (
	KindCreateEvent Kind = "create_event"
	KindDeleteEvent Kind = "delete_event"
	KindListEvents  Kind = "list_events"
	KindRunScripts  Kind = "run_scripts"
	KindRunCommand  Kind = "run_command"
)

// Action is a fully resolved operation. State-changing actions are held
// pending until the user confirms; read-only ones run immediately.
type Action struct {
	ID        string
	Domain    Domain
	Kind      Kind
	CreatedAt time.Time

	// OriginMessage is the user message the action was resolved from.
	OriginMessage string
	// Summary is the human-readable description shown in the confirmation
	// prompt and regenerated into every later reference to this action.
	Summary string

	Calendar *CalendarPayload
	Scripts  []ScriptInvocation
	Shell    *ShellPayload
}

// CalendarPayload carries the parameters of a calendar operation. The json
// tags shape the payload snapshot written to the audit trail.
type CalendarPayload struct {
	Title string    `json:"title,omitempty"`
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`

	// EventID and EventTitle identify the target of a delete. For list
	// operations Start/End bound the query window instead.
	EventID    string `json:"event_id,omitempty"`
	EventTitle string `json:"event_title,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// ScriptInvocation is one script to run. A batch action carries several;
// each runs independently.
type ScriptInvocation struct {
	Name        string   `json:"name"`
	Path        string   `json:"path,omitempty"`
	Interpreter string   `json:"interpreter,omitempty"` // "bash" or "python3"
	Args        []string `json:"args,omitempty"`
	// Known is false when the requested name matched nothing in the
	// catalogue; the invocation is reported as not found instead of run.
	Known bool `json:"known"`
}

// ShellPayload carries a generated shell command.
type ShellPayload struct {
	Command string `json:"command"`
}

// PayloadSnapshot renders the action's domain payload as JSON for the audit
// trail. Returns nil when the action carries no payload or marshalling
// fails; the trail omits the field in that case.
func (a *Action) PayloadSnapshot() json.RawMessage {
	snap := struct {
		Calendar *CalendarPayload   `json:"calendar,omitempty"`
		Scripts  []ScriptInvocation `json:"scripts,omitempty"`
		Shell    *ShellPayload      `json:"shell,omitempty"`
	}{a.Calendar, a.Scripts, a.Shell}

	if snap.Calendar == nil && snap.Scripts == nil && snap.Shell == nil {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil
	}
	return data
}

// OutcomeCode classifies how an execution ended.
type OutcomeCode string

const (
	OutcomeOK                OutcomeCode = "ok"
	OutcomeExecutionFailure  OutcomeCode = "execution_failure"
	OutcomeTimeout           OutcomeCode = "timeout"
	OutcomeNotFound          OutcomeCode = "not_found"
	OutcomeCredentialFailure OutcomeCode = "credential_failure"
)

// Outcome is the result of executing an action.
type Outcome struct {
	Code OutcomeCode
	// Reply is the user-facing result text.
	Reply string
	// Detail is extra context recorded in the audit trail but not shown to
	// the user.
	Detail string
}

// ResolutionStatus classifies what resolution produced.
type ResolutionStatus int

const (
	// StatusExecutable: a complete state-changing action, ready to propose.
	StatusExecutable ResolutionStatus = iota
	// StatusReadOnly: a complete action with no side effects, run at once.
	StatusReadOnly
	// StatusNeedsClarification: the request is plausible but underspecified.
	StatusNeedsClarification
	// StatusRejected: the request is understood and refused.
	StatusRejected
	// StatusUnresolvable: the request cannot be mapped to anything known.
	StatusUnresolvable
)

// Resolution is the outcome of mapping one message to an action.
type Resolution struct {
	Status ResolutionStatus
	// Action is set for StatusExecutable and StatusReadOnly.
	Action *Action
	// Reply carries the clarification question, rejection reason, or
	// unresolvable explanation for the other statuses.
	Reply string
}

// Resolver maps an interpreted message to a Resolution for one domain.
type Resolver interface {
	Resolve(ctx context.Context, userID, message string) (*Resolution, error)
}

// Executor runs a resolved action and reports its outcome. Executors never
// return an error: every failure mode is an Outcome so it reaches both the
// user and the audit trail the same way.
type Executor interface {
	Execute(ctx context.Context, action *Action) *Outcome
}
