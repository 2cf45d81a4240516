package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmoraru/hibiki/common/trace"
	"github.com/dmoraru/hibiki/internal/hibiki/audit"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
)

// DefaultStaleAfter is how old a pending action can get before a
// confirmation is annotated with its age.
const DefaultStaleAfter = 10 * time.Minute

// Reply words. Matching is case-insensitive after trailing punctuation is
// stripped, and only an exact match counts: "yes please do that" is a fresh
// message, not a confirmation.
var affirmations = map[string]bool{
	"yes": true, "y": true, "ok": true, "okay": true, "sure": true,
	"confirm": true, "go ahead": true, "do it": true, "yep": true, "yup": true,
}

var negations = map[string]bool{
	"no": true, "n": true, "cancel": true, "never mind": true, "nevermind": true,
	"stop": true, "abort": true, "nope": true, "forget it": true,
}

const (
	msgBusy = "I'm still working on your previous message, give me a moment."

	msgNothingPending = "There's nothing awaiting confirmation right now."

	msgInterpretFailed = "Sorry, I couldn't process that. Please try again."

	confirmPromptSuffix = "Reply **yes** to confirm or **no** to cancel."
)

// Config wires an Engine.
type Config struct {
	Interpreter nlp.Interpreter
	// Resolvers maps each actionable intent to its domain resolver.
	Resolvers map[nlp.Intent]Resolver
	// Executors maps each action domain to its executor.
	Executors map[Domain]Executor
	Trail     *audit.Trail
	// Limiter bounds interpretation calls per user; nil disables limiting.
	Limiter *nlp.RateLimiter
	// StaleAfter overrides DefaultStaleAfter when positive.
	StaleAfter time.Duration
}

// Engine is the per-message state machine. Exactly one reply is produced for
// every inbound message; every proposal, decision, and execution is recorded
// in the audit trail.
type Engine struct {
	interp     nlp.Interpreter
	resolvers  map[nlp.Intent]Resolver
	executors  map[Domain]Executor
	pending    *PendingStore
	trail      *audit.Trail
	limiter    *nlp.RateLimiter
	staleAfter time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// clock and newID are swapped in tests.
	clock func() time.Time
	newID func() string
}

// NewEngine creates an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Engine{
		interp:     cfg.Interpreter,
		resolvers:  cfg.Resolvers,
		executors:  cfg.Executors,
		pending:    NewPendingStore(),
		trail:      cfg.Trail,
		limiter:    cfg.Limiter,
		staleAfter: staleAfter,
		locks:      make(map[string]*sync.Mutex),
		clock:      time.Now,
		newID:      func() string { return "a_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] },
	}
}

// HandleMessage processes one free-text message from userID and returns the
// reply. Messages from the same user are serialized: if a previous message
// is still being processed, the new one is answered with a busy notice and
// otherwise ignored.
func (e *Engine) HandleMessage(ctx context.Context, userID, message string) string {
	lock := e.userLock(userID)
	if !lock.TryLock() {
		return msgBusy
	}
	defer lock.Unlock()

	message = strings.TrimSpace(message)
	if message == "" {
		return ""
	}

	ctx, traceID := trace.OrNew(ctx)
	reply := normalizeReply(message)

	if pending := e.pending.Peek(userID); pending != nil {
		switch {
		case affirmations[reply]:
			return e.confirm(ctx, traceID, userID, pending)

		case negations[reply]:
			e.pending.Take(userID)
			e.audit(audit.Entry{
				TraceID: traceID, UserID: userID, Event: audit.EventCancelled,
				Domain: string(pending.Domain), Kind: string(pending.Kind),
				ActionID: pending.ID, Summary: pending.Summary,
			})
			return fmt.Sprintf("Cancelled: %s. Nothing was changed.", pending.Summary)

		default:
			// Anything that is not a clear yes or no while an action is
			// pending drops the pending action and is treated as a new
			// request. The dropped action is named in the reply so the user
			// knows it will not run.
			e.pending.Take(userID)
			e.audit(audit.Entry{
				TraceID: traceID, UserID: userID, Event: audit.EventDiscarded,
				Domain: string(pending.Domain), Kind: string(pending.Kind),
				ActionID: pending.ID, Summary: pending.Summary,
				Detail: "superseded by a new message before confirmation",
			})
			note := fmt.Sprintf("(Dropped the unconfirmed action: %s.)\n\n", pending.Summary)
			return note + e.interpret(ctx, traceID, userID, message)
		}
	}

	if affirmations[reply] || negations[reply] {
		return msgNothingPending
	}

	return e.interpret(ctx, traceID, userID, message)
}

// Pending returns the user's pending action without consuming it. Used by
// the command surface.
func (e *Engine) Pending(userID string) *Action {
	return e.pending.Peek(userID)
}

// Cancel drops the user's pending action, if any, recording the
// cancellation. Used by the command surface.
func (e *Engine) Cancel(ctx context.Context, userID string) *Action {
	_, traceID := trace.OrNew(ctx)
	a := e.pending.Take(userID)
	if a != nil {
		e.audit(audit.Entry{
			TraceID: traceID, UserID: userID, Event: audit.EventCancelled,
			Domain: string(a.Domain), Kind: string(a.Kind),
			ActionID: a.ID, Summary: a.Summary, Detail: "cancelled via command",
		})
	}
	return a
}

// confirm consumes and executes the pending action.
func (e *Engine) confirm(ctx context.Context, traceID, userID string, pending *Action) string {
	e.pending.Take(userID)
	e.audit(audit.Entry{
		TraceID: traceID, UserID: userID, Event: audit.EventConfirmed,
		Domain: string(pending.Domain), Kind: string(pending.Kind),
		ActionID: pending.ID, Summary: pending.Summary,
	})

	var note string
	if age := e.clock().Sub(pending.CreatedAt); age > e.staleAfter {
		note = fmt.Sprintf("Note: this action was proposed %s ago.\n\n", age.Round(time.Minute))
	}

	outcome := e.execute(ctx, pending)
	e.audit(audit.Entry{
		TraceID: traceID, UserID: userID, Event: audit.EventExecuted,
		Domain: string(pending.Domain), Kind: string(pending.Kind),
		ActionID: pending.ID, Summary: pending.Summary,
		Message: pending.OriginMessage, Payload: pending.PayloadSnapshot(),
		Outcome: string(outcome.Code), Detail: outcome.Detail,
	})
	return note + outcome.Reply
}

// interpret classifies a fresh message and routes it to chat or a domain
// resolver.
func (e *Engine) interpret(ctx context.Context, traceID, userID, message string) string {
	if e.limiter != nil && !e.limiter.Allow(userID) {
		return nlp.RateLimitMessage
	}

	intentRes, err := e.interp.ClassifyIntent(ctx, message)
	if err != nil {
		return e.interpretationError("classify intent", err)
	}

	intent := intentRes.Normalize()
	if intent == nlp.IntentGeneralChat {
		answer, err := e.interp.Chat(ctx, message)
		if err != nil {
			return e.interpretationError("chat", err)
		}
		return answer
	}

	resolver := e.resolvers[intent]
	if resolver == nil {
		slog.Error("no resolver for intent", "intent", intent)
		return msgInterpretFailed
	}

	resolution, err := resolver.Resolve(ctx, userID, message)
	if err != nil {
		return e.interpretationError("resolve "+string(intent), err)
	}

	switch resolution.Status {
	case StatusRejected:
		e.audit(audit.Entry{
			TraceID: traceID, UserID: userID, Event: audit.EventRejected,
			Domain: domainForIntent(intent), Message: message, Detail: resolution.Reply,
		})
		return resolution.Reply

	case StatusNeedsClarification, StatusUnresolvable:
		return resolution.Reply

	case StatusReadOnly:
		action := e.stamp(resolution.Action, message)
		outcome := e.execute(ctx, action)
		e.audit(audit.Entry{
			TraceID: traceID, UserID: userID, Event: audit.EventReadOnly,
			Domain: string(action.Domain), Kind: string(action.Kind),
			ActionID: action.ID, Summary: action.Summary,
			Message: message, Payload: action.PayloadSnapshot(),
			Outcome: string(outcome.Code), Detail: outcome.Detail,
		})
		return outcome.Reply

	case StatusExecutable:
		action := e.stamp(resolution.Action, message)
		if replaced := e.pending.Put(userID, action); replaced != nil {
			e.audit(audit.Entry{
				TraceID: traceID, UserID: userID, Event: audit.EventSuperseded,
				Domain: string(replaced.Domain), Kind: string(replaced.Kind),
				ActionID: replaced.ID, Summary: replaced.Summary,
			})
		}
		e.audit(audit.Entry{
			TraceID: traceID, UserID: userID, Event: audit.EventProposed,
			Domain: string(action.Domain), Kind: string(action.Kind),
			ActionID: action.ID, Summary: action.Summary, Message: message,
		})
		return fmt.Sprintf("%s\n\n%s", action.Summary, confirmPromptSuffix)
	}

	slog.Error("unknown resolution status", "status", resolution.Status)
	return msgInterpretFailed
}

// execute dispatches the action to its domain executor.
func (e *Engine) execute(ctx context.Context, a *Action) *Outcome {
	exec := e.executors[a.Domain]
	if exec == nil {
		slog.Error("no executor for domain", "domain", a.Domain)
		return &Outcome{
			Code:  OutcomeExecutionFailure,
			Reply: fmt.Sprintf("I can't carry out %s actions right now.", a.Domain),
		}
	}
	return exec.Execute(ctx, a)
}

// stamp fills identity fields on a freshly resolved action.
func (e *Engine) stamp(a *Action, originMessage string) *Action {
	a.ID = e.newID()
	a.CreatedAt = e.clock()
	a.OriginMessage = originMessage
	return a
}

// interpretationError maps interpretation failures onto user-facing replies.
func (e *Engine) interpretationError(op string, err error) string {
	switch {
	case errors.Is(err, nlp.ErrRateLimit):
		return nlp.APIRateLimitMessage
	case errors.Is(err, nlp.ErrMalformedOutput):
		return nlp.MalformedOutputMessage
	default:
		slog.Error("interpretation failed", "op", op, "error", err)
		return msgInterpretFailed
	}
}

func (e *Engine) audit(entry audit.Entry) {
	if e.trail == nil {
		return
	}
	if err := e.trail.Append(entry); err != nil {
		slog.Error("failed to append audit entry", "event", entry.Event, "error", err)
	}
}

func (e *Engine) userLock(userID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	lock, ok := e.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[userID] = lock
	}
	return lock
}

// normalizeReply lowercases the message, collapses whitespace, and strips
// trailing punctuation so "Yes!" and "go  ahead." match the reply words.
func normalizeReply(message string) string {
	s := strings.ToLower(strings.TrimSpace(message))
	s = strings.TrimRight(s, "!.?, ")
	return strings.Join(strings.Fields(s), " ")
}

func domainForIntent(intent nlp.Intent) string {
	switch intent {
	case nlp.IntentCalendar:
		return string(DomainCalendar)
	case nlp.IntentScript:
		return string(DomainScript)
	case nlp.IntentServerCommand:
		return string(DomainShell)
	default:
		return string(DomainChat)
	}
}
