package execute

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
	"github.com/dmoraru/hibiki/internal/hibiki/proc"
)

// Script executes script batch actions. Each invocation in the batch runs
// independently with its own deadline; one failure never stops the rest.
type Script struct {
	runner proc.Runner
	// interp is used to explain non-zero exits; nil disables explanations.
	interp nlp.Interpreter
	// mountPath, when set, replaces the directory part of every script path.
	// The sandbox runner sees scripts at its own mount point, not at the
	// host path the catalogue recorded.
	mountPath string
	timeout   time.Duration
}

var _ dispatch.Executor = (*Script)(nil)

// NewScript creates a script executor. mountPath is empty for the local
// runner.
func NewScript(runner proc.Runner, interp nlp.Interpreter, mountPath string) *Script {
	return &Script{runner: runner, interp: interp, mountPath: mountPath, timeout: ScriptTimeout}
}

// Execute implements dispatch.Executor.
func (e *Script) Execute(ctx context.Context, action *dispatch.Action) *dispatch.Outcome {
	if len(action.Scripts) == 0 {
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeExecutionFailure,
			Reply:  "This script action has nothing to run.",
			Detail: "empty invocation list",
		}
	}

	var (
		lines      []string
		details    []string
		anyTimeout bool
		anyFailed  bool
		anyMissing bool
	)

	for _, inv := range action.Scripts {
		if !inv.Known {
			anyMissing = true
			lines = append(lines, fmt.Sprintf("✗ %s: no such script", inv.Name))
			details = append(details, inv.Name+": not_found")
			continue
		}

		res := e.runOne(ctx, inv)
		switch {
		case res.TimedOut:
			anyTimeout = true
			lines = append(lines, fmt.Sprintf("✗ %s: timed out after %s", inv.Name, e.timeout))
			details = append(details, inv.Name+": timeout")

		case res.ExitCode != 0:
			anyFailed = true
			line := fmt.Sprintf("✗ %s: exit %d", inv.Name, res.ExitCode)
			if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
				line += "\n" + truncate(stderr)
				if explanation := e.explain(ctx, inv, stderr); explanation != "" {
					line += "\n" + explanation
				}
			}
			lines = append(lines, line)
			details = append(details, fmt.Sprintf("%s: exit %d", inv.Name, res.ExitCode))

		default:
			out := strings.TrimSpace(res.Stdout)
			if out == "" {
				out = "(no output)"
			}
			lines = append(lines, fmt.Sprintf("✓ %s:\n%s", inv.Name, truncate(out)))
			details = append(details, inv.Name+": ok")
		}
	}

	code := dispatch.OutcomeOK
	switch {
	case anyTimeout:
		code = dispatch.OutcomeTimeout
	case anyFailed:
		code = dispatch.OutcomeExecutionFailure
	case anyMissing:
		code = dispatch.OutcomeNotFound
	}

	return &dispatch.Outcome{
		Code:   code,
		Reply:  strings.Join(lines, "\n\n"),
		Detail: strings.Join(details, "; "),
	}
}

// runOne executes a single invocation with its own deadline. Runner errors
// (failing to start at all) are folded into a synthetic failed result.
func (e *Script) runOne(ctx context.Context, inv dispatch.ScriptInvocation) *proc.Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	scriptPath := inv.Path
	if e.mountPath != "" {
		scriptPath = path.Join(e.mountPath, inv.Name)
	}

	args := append([]string{scriptPath}, inv.Args...)
	res, err := e.runner.Run(ctx, inv.Interpreter, args...)
	if err != nil {
		slog.Error("script run failed to start", "script", inv.Name, "error", err)
		return &proc.Result{ExitCode: -1, Stderr: err.Error()}
	}
	return res
}

// explain asks the interpreter for a short explanation of a failure.
// Best-effort: any error just means no explanation.
func (e *Script) explain(ctx context.Context, inv dispatch.ScriptInvocation, stderr string) string {
	if e.interp == nil {
		return ""
	}
	explanation, err := e.interp.ExplainError(ctx, inv.Name+" "+strings.Join(inv.Args, " "), stderr)
	if err != nil {
		slog.Warn("error explanation failed", "script", inv.Name, "error", err)
		return ""
	}
	return explanation
}
