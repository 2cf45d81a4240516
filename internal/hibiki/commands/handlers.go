package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"maunium.net/go/mautrix/event"

	"github.com/dmoraru/hibiki/common/version"
	"github.com/dmoraru/hibiki/internal/hibiki/audit"
	"github.com/dmoraru/hibiki/internal/hibiki/calendar"
	"github.com/dmoraru/hibiki/internal/hibiki/catalog"
	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
)

const helpText = `**Hibiki commands**

- ` + "`/hibiki help`" + ` — this message
- ` + "`/hibiki version`" + ` — build information
- ` + "`/hibiki ping`" + ` — liveness and uptime
- ` + "`/hibiki scripts list`" + ` — the runnable scripts and what they do
- ` + "`/hibiki scripts refresh`" + ` — re-scan the scripts directory
- ` + "`/hibiki events [YYYY-MM-DD]`" + ` — upcoming calendar events, or one day's
- ` + "`/hibiki audit [--limit N]`" + ` — recent audit entries (default 10)
- ` + "`/hibiki pending`" + ` — the action awaiting your confirmation
- ` + "`/hibiki cancel`" + ` — drop the pending action

Anything else you send is treated as a request: I'll propose any
state-changing action and wait for your **yes** or **no**.`

// Handlers owns the dependencies the command surface needs.
type Handlers struct {
	Engine    *dispatch.Engine
	Catalog   *catalog.Catalog
	Calendar  calendar.Client
	Trail     *audit.Trail
	Location  *time.Location
	StartedAt time.Time
}

// RegisterAll wires every handler into the router.
func (h *Handlers) RegisterAll(r *Router) {
	r.Register("help", h.Help)
	r.Register("version", h.Version)
	r.Register("ping", h.Ping)
	r.Register("scripts.list", h.ScriptsList)
	r.Register("scripts.refresh", h.ScriptsRefresh)
	r.Register("scripts", h.ScriptsList)
	r.Register("events", h.Events)
	r.Register("audit", h.Audit)
	r.Register("pending", h.Pending)
	r.Register("cancel", h.Cancel)
}

// Help handles `help`.
func (h *Handlers) Help(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return helpText, nil
}

// Version handles `version`.
func (h *Handlers) Version(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return "Hibiki " + version.Info(), nil
}

// Ping handles `ping`.
func (h *Handlers) Ping(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	return fmt.Sprintf("pong (up %s)", time.Since(h.StartedAt).Round(time.Second)), nil
}

// ScriptsList handles `scripts list`.
func (h *Handlers) ScriptsList(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	scripts := h.Catalog.Snapshot()
	if len(scripts) == 0 {
		return "No scripts available.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%d scripts available:**\n", len(scripts))
	for _, s := range scripts {
		fmt.Fprintf(&b, "- `%s` — %s", s.Name, s.Description)
		if s.RequiresArguments {
			b.WriteString(" (takes arguments")
			if s.ExampleUsage != "" {
				fmt.Fprintf(&b, ", e.g. `%s`", s.ExampleUsage)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// ScriptsRefresh handles `scripts refresh`.
func (h *Handlers) ScriptsRefresh(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	added, removed, err := h.Catalog.Refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh scripts: %w", err)
	}
	total := len(h.Catalog.Snapshot())
	return fmt.Sprintf("Refreshed: %d scripts (%d newly summarized, %d removed).", total, added, removed), nil
}

// Events handles `events [YYYY-MM-DD]`.
func (h *Handlers) Events(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	now := time.Now()
	start, end := now, now.AddDate(0, 0, 7)
	empty := "No upcoming events in the next 7 days."

	if cmd.Subcommand != "" {
		day, err := time.ParseInLocation("2006-01-02", cmd.Subcommand, h.Location)
		if err != nil {
			return "", fmt.Errorf("%q is not a date; use YYYY-MM-DD", cmd.Subcommand)
		}
		start, end = day, day.AddDate(0, 0, 1)
		empty = fmt.Sprintf("Nothing scheduled on %s.", day.Format("Mon, Jan 2"))
	}

	events, err := h.Calendar.ListEvents(ctx, start, end, 10)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return empty, nil
	}

	var b strings.Builder
	b.WriteString("**Upcoming events:**\n")
	for _, e := range events {
		start := e.Start.In(h.Location)
		fmt.Fprintf(&b, "- %s at %s: %s\n", start.Format("Mon, Jan 2"), start.Format("15:04"), e.Title)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Audit handles `audit [--limit N]`.
func (h *Handlers) Audit(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	limit, err := strconv.Atoi(cmd.GetFlag("limit", "10"))
	if err != nil || limit <= 0 {
		return "", fmt.Errorf("--limit must be a positive number")
	}
	if limit > 50 {
		limit = 50
	}

	entries, err := h.Trail.Tail(limit)
	if err != nil {
		return "", fmt.Errorf("read audit trail: %w", err)
	}
	if len(entries) == 0 {
		return "The audit trail is empty.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Last %d audit entries:**\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "- `%s` %s %s", e.Timestamp.Format("Jan 2 15:04:05"), e.Event, e.UserID)
		if e.Summary != "" {
			fmt.Fprintf(&b, ": %s", e.Summary)
		}
		if e.Outcome != "" {
			fmt.Fprintf(&b, " → %s", e.Outcome)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Pending handles `pending`.
func (h *Handlers) Pending(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	action := h.Engine.Pending(evt.Sender.String())
	if action == nil {
		return "Nothing is awaiting confirmation.", nil
	}
	age := time.Since(action.CreatedAt).Round(time.Second)
	return fmt.Sprintf("Awaiting confirmation (proposed %s ago): %s\n\nReply **yes** to confirm or **no** to cancel.",
		age, action.Summary), nil
}

// Cancel handles `cancel`.
func (h *Handlers) Cancel(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	action := h.Engine.Cancel(ctx, evt.Sender.String())
	if action == nil {
		return "Nothing is awaiting confirmation.", nil
	}
	return fmt.Sprintf("Cancelled: %s. Nothing was changed.", action.Summary), nil
}
