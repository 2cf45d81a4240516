package execute

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
	"github.com/dmoraru/hibiki/internal/hibiki/proc"
)

// Shell executes confirmed ad-hoc shell commands through bash -c.
type Shell struct {
	runner proc.Runner
	// interp is used to explain non-zero exits; nil disables explanations.
	interp  nlp.Interpreter
	timeout time.Duration
}

var _ dispatch.Executor = (*Shell)(nil)

// NewShell creates a shell executor.
func NewShell(runner proc.Runner, interp nlp.Interpreter) *Shell {
	return &Shell{runner: runner, interp: interp, timeout: ShellTimeout}
}

// Execute implements dispatch.Executor.
func (e *Shell) Execute(ctx context.Context, action *dispatch.Action) *dispatch.Outcome {
	if action.Shell == nil || strings.TrimSpace(action.Shell.Command) == "" {
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeExecutionFailure,
			Reply:  "This shell action has no command.",
			Detail: "empty shell payload",
		}
	}
	command := action.Shell.Command

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.runner.Run(ctx, "bash", "-c", command)
	if err != nil {
		slog.Error("shell command failed to start", "error", err)
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeExecutionFailure,
			Reply:  fmt.Sprintf("I couldn't start the command: %v", err),
			Detail: err.Error(),
		}
	}

	if res.TimedOut {
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeTimeout,
			Reply:  fmt.Sprintf("`%s` didn't finish within %s and was killed.", command, e.timeout),
			Detail: "timeout",
		}
	}

	if res.ExitCode != 0 {
		reply := fmt.Sprintf("`%s` failed with exit %d.", command, res.ExitCode)
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			reply += "\n" + truncate(stderr)
			if explanation := e.explain(ctx, command, stderr); explanation != "" {
				reply += "\n" + explanation
			}
		}
		return &dispatch.Outcome{
			Code:   dispatch.OutcomeExecutionFailure,
			Reply:  reply,
			Detail: fmt.Sprintf("exit %d", res.ExitCode),
		}
	}

	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		out = "(no output)"
	}
	return &dispatch.Outcome{
		Code:  dispatch.OutcomeOK,
		Reply: truncate(out),
	}
}

func (e *Shell) explain(ctx context.Context, command, stderr string) string {
	if e.interp == nil {
		return ""
	}
	explanation, err := e.interp.ExplainError(ctx, command, stderr)
	if err != nil {
		slog.Warn("error explanation failed", "command", command, "error", err)
		return ""
	}
	return explanation
}
