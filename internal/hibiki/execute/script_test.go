package execute

import (
	"context"
	"strings"
	"testing"

	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/proc"
)

func scriptAction(invocations ...dispatch.ScriptInvocation) *dispatch.Action {
	return &dispatch.Action{
		Domain:  dispatch.DomainScript,
		Kind:    dispatch.KindRunScripts,
		Scripts: invocations,
	}
}

func TestScriptExecuteSuccess(t *testing.T) {
	runner := &fakeRunner{results: map[string]*proc.Result{
		"backup.sh": {Stdout: "backup complete\n"},
	}}
	e := NewScript(runner, nil, "")

	outcome := e.Execute(context.Background(), scriptAction(dispatch.ScriptInvocation{
		Name: "backup.sh", Path: "/srv/scripts/backup.sh", Interpreter: "bash", Known: true,
	}))
	if outcome.Code != dispatch.OutcomeOK {
		t.Fatalf("code = %v, want ok", outcome.Code)
	}
	if !strings.Contains(outcome.Reply, "backup complete") {
		t.Errorf("reply missing stdout: %q", outcome.Reply)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(runner.calls))
	}
	if call := runner.calls[0]; call[0] != "bash" || call[1] != "/srv/scripts/backup.sh" {
		t.Errorf("unexpected runner call: %v", call)
	}
}

func TestScriptExecuteBatchIndependent(t *testing.T) {
	runner := &fakeRunner{results: map[string]*proc.Result{
		"good.sh": {Stdout: "ok\n"},
		"bad.sh":  {ExitCode: 2, Stderr: "boom"},
	}}
	interp := &explainInterp{explanation: "The script hit an unexpected condition."}
	e := NewScript(runner, interp, "")

	outcome := e.Execute(context.Background(), scriptAction(
		dispatch.ScriptInvocation{Name: "good.sh", Path: "/s/good.sh", Interpreter: "bash", Known: true},
		dispatch.ScriptInvocation{Name: "bad.sh", Path: "/s/bad.sh", Interpreter: "bash", Known: true},
	))

	if outcome.Code != dispatch.OutcomeExecutionFailure {
		t.Fatalf("code = %v, want execution_failure", outcome.Code)
	}
	// Both scripts ran despite the failure.
	if len(runner.calls) != 2 {
		t.Fatalf("runner calls = %d, want 2", len(runner.calls))
	}
	if !strings.Contains(outcome.Reply, "good.sh") || !strings.Contains(outcome.Reply, "exit 2") {
		t.Errorf("reply should cover both scripts: %q", outcome.Reply)
	}
	if !strings.Contains(outcome.Reply, "unexpected condition") {
		t.Errorf("reply should include the failure explanation: %q", outcome.Reply)
	}
	if interp.calls != 1 {
		t.Errorf("explain calls = %d, want 1", interp.calls)
	}
}

func TestScriptExecuteTimeout(t *testing.T) {
	runner := &fakeRunner{fallback: &proc.Result{ExitCode: -1, TimedOut: true}}
	e := NewScript(runner, nil, "")

	outcome := e.Execute(context.Background(), scriptAction(dispatch.ScriptInvocation{
		Name: "slow.sh", Path: "/s/slow.sh", Interpreter: "bash", Known: true,
	}))
	if outcome.Code != dispatch.OutcomeTimeout {
		t.Fatalf("code = %v, want timeout", outcome.Code)
	}
	if !strings.Contains(outcome.Reply, "timed out") {
		t.Errorf("reply = %q", outcome.Reply)
	}
}

func TestScriptExecuteUnknownScript(t *testing.T) {
	runner := &fakeRunner{}
	e := NewScript(runner, nil, "")

	outcome := e.Execute(context.Background(), scriptAction(dispatch.ScriptInvocation{
		Name: "ghost.sh", Known: false,
	}))
	if outcome.Code != dispatch.OutcomeNotFound {
		t.Fatalf("code = %v, want not_found", outcome.Code)
	}
	if len(runner.calls) != 0 {
		t.Fatal("unknown scripts must not be run")
	}
	if !strings.Contains(outcome.Reply, "no such script") {
		t.Errorf("reply = %q", outcome.Reply)
	}
}

func TestScriptExecuteMountPathRewrite(t *testing.T) {
	runner := &fakeRunner{fallback: &proc.Result{Stdout: "ok"}}
	e := NewScript(runner, nil, "/opt/hibiki/scripts")

	e.Execute(context.Background(), scriptAction(dispatch.ScriptInvocation{
		Name: "backup.sh", Path: "/srv/scripts/backup.sh", Interpreter: "bash", Known: true,
	}))
	if call := runner.calls[0]; call[1] != "/opt/hibiki/scripts/backup.sh" {
		t.Errorf("sandboxed path = %q, want the mount path", call[1])
	}
}

func TestScriptExecuteEmptyBatch(t *testing.T) {
	e := NewScript(&fakeRunner{}, nil, "")
	outcome := e.Execute(context.Background(), scriptAction())
	if outcome.Code != dispatch.OutcomeExecutionFailure {
		t.Fatalf("code = %v, want execution_failure", outcome.Code)
	}
}
