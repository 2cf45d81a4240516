package proc

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLocalRunCapturesOutput(t *testing.T) {
	runner := &Local{}

	res, err := runner.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit = %d, want 0", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("stderr = %q", res.Stderr)
	}
	if res.TimedOut {
		t.Error("run should not be marked as timed out")
	}
}

func TestLocalRunNonZeroExit(t *testing.T) {
	runner := &Local{}

	res, err := runner.Run(context.Background(), "sh", "-c", "exit 3")
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit = %d, want 3", res.ExitCode)
	}
}

func TestLocalRunTimeout(t *testing.T) {
	runner := &Local{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := runner.Run(ctx, "sh", "-c", "sleep 10")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("run should be marked as timed out")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timed-out process was not killed promptly")
	}
}

func TestLocalRunMissingBinary(t *testing.T) {
	runner := &Local{}

	if _, err := runner.Run(context.Background(), "definitely-not-a-binary-xyz"); err == nil {
		t.Fatal("expected an error for a missing binary")
	}
}
