package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

const (
	labelManagedBy = "hibiki.managed-by"
	managedByValue = "hibiki"

	// sandboxMountPath is where the scripts directory appears inside the
	// container.
	sandboxMountPath = "/opt/hibiki/scripts"
)

// Sandbox runs each invocation in a fresh throwaway container, with the
// scripts directory bind-mounted read-only. The container shares nothing
// else with the host.
type Sandbox struct {
	client *dockerclient.Client
	image  string
	// scriptsDir is the host path mounted at sandboxMountPath.
	scriptsDir string
}

var _ Runner = (*Sandbox)(nil)

// NewSandbox creates a sandbox runner. Uses the DOCKER_HOST env var or the
// default socket path. image must already be present or pullable by the
// daemon; no pull is attempted here.
func NewSandbox(image, scriptsDir string) (*Sandbox, error) {
	if image == "" {
		return nil, fmt.Errorf("sandbox image is required")
	}
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Sandbox{client: cli, image: image, scriptsDir: scriptsDir}, nil
}

// MountPath returns the in-container path of the scripts directory, so
// callers can rewrite host script paths before running them sandboxed.
func (s *Sandbox) MountPath() string {
	return sandboxMountPath
}

// Run implements Runner. The container is removed when the run finishes,
// whatever the outcome.
func (s *Sandbox) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	containerCfg := &container.Config{
		Image:      s.image,
		Cmd:        append([]string{name}, args...),
		WorkingDir: sandboxMountPath,
		Labels:     map[string]string{labelManagedBy: managedByValue},
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		AutoRemove:  false, // removed explicitly so logs survive the wait
	}
	if s.scriptsDir != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   s.scriptsDir,
			Target:   sandboxMountPath,
			ReadOnly: true,
		}}
	}

	containerName := "hibiki-run-" + uuid.NewString()[:8]
	resp, err := s.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, containerName)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		// Removal must not be cancelled along with the run.
		_ = s.client.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := s.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	exitCode, timedOut, err := s.wait(ctx, resp.ID)
	if err != nil {
		return nil, err
	}

	stdout, stderr, err := s.logs(context.WithoutCancel(ctx), resp.ID)
	if err != nil {
		return nil, err
	}

	return &Result{
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		TimedOut: timedOut,
	}, nil
}

// wait blocks until the container exits or ctx expires. On expiry the
// container is killed and the run is reported as timed out.
func (s *Sandbox) wait(ctx context.Context, id string) (exitCode int, timedOut bool, err error) {
	statusCh, errCh := s.client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return 0, false, fmt.Errorf("container wait: %s", status.Error.Message)
		}
		return int(status.StatusCode), false, nil
	case waitErr := <-errCh:
		if errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			_ = s.client.ContainerKill(context.WithoutCancel(ctx), id, "KILL")
			return -1, true, nil
		}
		return 0, false, fmt.Errorf("container wait: %w", waitErr)
	}
}

// logs fetches the demultiplexed stdout and stderr of a finished container.
func (s *Sandbox) logs(ctx context.Context, id string) (string, string, error) {
	rc, err := s.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return "", "", fmt.Errorf("read container logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}
