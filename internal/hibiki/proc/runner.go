// Package proc runs external processes (operator scripts and generated shell
// commands) and captures their outcome. Two runners exist: a local one built
// on os/exec and an optional Docker sandbox that runs each invocation in a
// throwaway container.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the captured outcome of one process run.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// TimedOut is true when the process was killed because the context
	// deadline expired before it finished.
	TimedOut bool
}

// Runner executes one command and captures its output. The context deadline
// bounds the run; implementations kill the process when it expires.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// Local runs processes directly on the host.
type Local struct {
	// Dir is the working directory for spawned processes. Empty means the
	// caller's working directory.
	Dir string
}

var _ Runner = (*Local)(nil)

// Run implements Runner. A non-zero exit status is reported through
// Result.ExitCode, not as an error; the error return is reserved for
// failures to start the process at all.
func (l *Local) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = l.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if res.TimedOut {
			res.ExitCode = -1
			return res, nil
		}
		return nil, err
	}
	return res, nil
}
