// Package commands provides the explicit command surface: messages starting
// with the command prefix bypass interpretation and are routed here.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
)

// Command is one parsed command invocation.
type Command struct {
	Name       string
	Subcommand string
	Args       []string
	Flags      map[string]string
	RawText    string
}

// ErrNotACommand is returned by Parse when the message does not start with
// the command prefix. Callers use errors.Is to fall through to normal
// message handling.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// Handler handles one command.
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router parses prefixed messages and routes them to handlers. Handlers are
// keyed "name" or "name.subcommand".
type Router struct {
	prefix   string
	handlers map[string]Handler
}

// NewRouter creates a router for the given prefix, e.g. "/hibiki".
func NewRouter(prefix string) *Router {
	return &Router{
		prefix:   prefix,
		handlers: make(map[string]Handler),
	}
}

// Register registers a handler under a key.
func (r *Router) Register(key string, handler Handler) {
	r.handlers[key] = handler
}

// Parse splits a prefixed message into name, subcommand, positional args,
// and --flags. A flag followed by a non-flag token takes it as its value;
// otherwise it is the literal "true".
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	text = strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &Command{
		Name:    parts[0],
		Flags:   make(map[string]string),
		RawText: text,
	}
	rest := parts[1:]

	if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
		cmd.Subcommand = rest[0]
		rest = rest[1:]
	}

	for i := 0; i < len(rest); i++ {
		part := rest[i]
		if !strings.HasPrefix(part, "--") {
			cmd.Args = append(cmd.Args, part)
			continue
		}
		name := strings.TrimPrefix(part, "--")
		if i+1 < len(rest) && !strings.HasPrefix(rest[i+1], "--") {
			cmd.Flags[name] = rest[i+1]
			i++
		} else {
			cmd.Flags[name] = "true"
		}
	}

	return cmd, nil
}

// Route parses text and invokes the matching handler, preferring the
// "name.subcommand" key over the bare name.
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}

	key := cmd.Name
	if cmd.Subcommand != "" {
		key = cmd.Name + "." + cmd.Subcommand
	}

	handler, ok := r.handlers[key]
	if !ok {
		handler, ok = r.handlers[cmd.Name]
		if !ok {
			return "", fmt.Errorf("unknown command: %s", key)
		}
	}
	return handler(ctx, cmd, evt)
}

// GetFlag returns the named flag value or def when absent.
func (c *Command) GetFlag(name, def string) string {
	if v, ok := c.Flags[name]; ok {
		return v
	}
	return def
}
