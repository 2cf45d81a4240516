package commands

import (
	"context"
	"errors"
	"testing"

	"maunium.net/go/mautrix/event"
)

func TestParse(t *testing.T) {
	r := NewRouter("/hibiki")

	cases := []struct {
		name    string
		text    string
		wantCmd string
		wantSub string
		args    []string
		flags   map[string]string
		wantErr bool
	}{
		{name: "bare command", text: "/hibiki help", wantCmd: "help"},
		{name: "subcommand", text: "/hibiki scripts list", wantCmd: "scripts", wantSub: "list"},
		{name: "flag with value", text: "/hibiki audit --limit 20", wantCmd: "audit", flags: map[string]string{"limit": "20"}},
		{name: "bare flag", text: "/hibiki audit --json", wantCmd: "audit", flags: map[string]string{"json": "true"}},
		{name: "args", text: "/hibiki scripts run backup.sh", wantCmd: "scripts", wantSub: "run", args: []string{"backup.sh"}},
		{name: "surrounding space", text: "  /hibiki ping  ", wantCmd: "ping"},
		{name: "empty", text: "/hibiki", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := r.Parse(tc.text)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if cmd.Name != tc.wantCmd {
				t.Errorf("name = %q, want %q", cmd.Name, tc.wantCmd)
			}
			if cmd.Subcommand != tc.wantSub {
				t.Errorf("subcommand = %q, want %q", cmd.Subcommand, tc.wantSub)
			}
			if len(tc.args) != len(cmd.Args) {
				t.Errorf("args = %v, want %v", cmd.Args, tc.args)
			}
			for k, v := range tc.flags {
				if cmd.GetFlag(k, "") != v {
					t.Errorf("flag %s = %q, want %q", k, cmd.GetFlag(k, ""), v)
				}
			}
		})
	}
}

func TestParseNotACommand(t *testing.T) {
	r := NewRouter("/hibiki")
	_, err := r.Parse("schedule a standup tomorrow")
	if !errors.Is(err, ErrNotACommand) {
		t.Fatalf("err = %v, want ErrNotACommand", err)
	}
}

func TestRoutePrefersSubcommandKey(t *testing.T) {
	r := NewRouter("/hibiki")
	r.Register("scripts", func(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
		return "bare", nil
	})
	r.Register("scripts.refresh", func(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
		return "refresh", nil
	})

	got, err := r.Route(context.Background(), "/hibiki scripts refresh", nil)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got != "refresh" {
		t.Fatalf("routed to %q, want the subcommand handler", got)
	}

	got, err = r.Route(context.Background(), "/hibiki scripts whatever", nil)
	if err != nil {
		t.Fatalf("Route fallback: %v", err)
	}
	if got != "bare" {
		t.Fatalf("routed to %q, want the bare handler", got)
	}
}

func TestRouteUnknownCommand(t *testing.T) {
	r := NewRouter("/hibiki")
	if _, err := r.Route(context.Background(), "/hibiki nope", nil); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestGetFlagDefault(t *testing.T) {
	cmd := &Command{Flags: map[string]string{}}
	if got := cmd.GetFlag("limit", "10"); got != "10" {
		t.Fatalf("default = %q, want 10", got)
	}
}
