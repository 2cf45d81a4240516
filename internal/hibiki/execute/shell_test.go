package execute

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/proc"
)

func shellAction(command string) *dispatch.Action {
	return &dispatch.Action{
		Domain: dispatch.DomainShell,
		Kind:   dispatch.KindRunCommand,
		Shell:  &dispatch.ShellPayload{Command: command},
	}
}

func TestShellExecuteSuccess(t *testing.T) {
	runner := &fakeRunner{fallback: &proc.Result{Stdout: "Filesystem  Size\n/dev/sda1   50G\n"}}
	e := NewShell(runner, nil)

	outcome := e.Execute(context.Background(), shellAction("df -h"))
	if outcome.Code != dispatch.OutcomeOK {
		t.Fatalf("code = %v, want ok", outcome.Code)
	}
	if !strings.Contains(outcome.Reply, "/dev/sda1") {
		t.Errorf("reply missing stdout: %q", outcome.Reply)
	}
	if call := runner.calls[0]; call[0] != "bash" || call[1] != "-c" || call[2] != "df -h" {
		t.Errorf("unexpected runner call: %v", call)
	}
}

func TestShellExecuteNoOutput(t *testing.T) {
	e := NewShell(&fakeRunner{fallback: &proc.Result{}}, nil)

	outcome := e.Execute(context.Background(), shellAction("true"))
	if outcome.Reply != "(no output)" {
		t.Errorf("reply = %q, want (no output)", outcome.Reply)
	}
}

func TestShellExecuteFailureWithExplanation(t *testing.T) {
	runner := &fakeRunner{fallback: &proc.Result{ExitCode: 1, Stderr: "ls: cannot access '/nope'"}}
	interp := &explainInterp{explanation: "The path /nope does not exist."}
	e := NewShell(runner, interp)

	outcome := e.Execute(context.Background(), shellAction("ls /nope"))
	if outcome.Code != dispatch.OutcomeExecutionFailure {
		t.Fatalf("code = %v, want execution_failure", outcome.Code)
	}
	if !strings.Contains(outcome.Reply, "exit 1") {
		t.Errorf("reply should state the exit code: %q", outcome.Reply)
	}
	if !strings.Contains(outcome.Reply, "cannot access") {
		t.Errorf("reply should include stderr: %q", outcome.Reply)
	}
	if !strings.Contains(outcome.Reply, "does not exist") {
		t.Errorf("reply should include the explanation: %q", outcome.Reply)
	}
}

func TestShellExecuteTimeout(t *testing.T) {
	runner := &fakeRunner{fallback: &proc.Result{ExitCode: -1, TimedOut: true}}
	e := NewShell(runner, nil)

	outcome := e.Execute(context.Background(), shellAction("sleep 600"))
	if outcome.Code != dispatch.OutcomeTimeout {
		t.Fatalf("code = %v, want timeout", outcome.Code)
	}
	if !strings.Contains(outcome.Reply, "killed") {
		t.Errorf("reply = %q", outcome.Reply)
	}
}

func TestShellExecuteStartFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no such binary")}
	e := NewShell(runner, nil)

	outcome := e.Execute(context.Background(), shellAction("df -h"))
	if outcome.Code != dispatch.OutcomeExecutionFailure {
		t.Fatalf("code = %v, want execution_failure", outcome.Code)
	}
}

func TestShellExecuteEmptyCommand(t *testing.T) {
	e := NewShell(&fakeRunner{}, nil)
	outcome := e.Execute(context.Background(), &dispatch.Action{
		Domain: dispatch.DomainShell,
		Kind:   dispatch.KindRunCommand,
	})
	if outcome.Code != dispatch.OutcomeExecutionFailure {
		t.Fatalf("code = %v, want execution_failure", outcome.Code)
	}
}
