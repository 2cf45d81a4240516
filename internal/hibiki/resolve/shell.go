package resolve

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
)

// defaultDenySubstrings are command fragments that are always refused. The
// check is a plain substring match on the generated command, so it errs
// toward refusing: "rm " inside any composed pipeline blocks the whole
// command.
var defaultDenySubstrings = []string{
	"rm ",
	"shutdown",
	"reboot",
	"mkfs",
	":(){",
}

// ShellPolicy is the denylist applied to generated shell commands. The
// defaults are always in force; a policy file can only add entries.
type ShellPolicy struct {
	DenySubstrings []string `yaml:"deny_substrings"`
}

// LoadShellPolicy returns the default policy merged with the YAML file at
// path. An empty path yields the defaults alone.
func LoadShellPolicy(path string) (ShellPolicy, error) {
	policy := ShellPolicy{DenySubstrings: append([]string(nil), defaultDenySubstrings...)}
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ShellPolicy{}, fmt.Errorf("read shell policy %s: %w", path, err)
	}
	var extra ShellPolicy
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return ShellPolicy{}, fmt.Errorf("parse shell policy %s: %w", path, err)
	}
	policy.DenySubstrings = append(policy.DenySubstrings, extra.DenySubstrings...)
	return policy, nil
}

// Denies returns the first denylist entry the command contains, if any.
func (p ShellPolicy) Denies(command string) (string, bool) {
	for _, frag := range p.DenySubstrings {
		if strings.Contains(command, frag) {
			return frag, true
		}
	}
	return "", false
}

// Shell resolves requests for ad-hoc server commands: the interpreter
// generates a single shell command, and the denylist decides whether it may
// even be proposed.
type Shell struct {
	interp nlp.Interpreter
	policy ShellPolicy
}

var _ dispatch.Resolver = (*Shell)(nil)

// NewShell creates a shell resolver with the given policy.
func NewShell(interp nlp.Interpreter, policy ShellPolicy) *Shell {
	return &Shell{interp: interp, policy: policy}
}

// Resolve implements dispatch.Resolver.
func (r *Shell) Resolve(ctx context.Context, userID, message string) (*dispatch.Resolution, error) {
	details, err := r.interp.CommandDetails(ctx, message)
	if err != nil {
		return nil, err
	}

	command := strings.TrimSpace(details.Command)
	if command == "" {
		return &dispatch.Resolution{
			Status: dispatch.StatusUnresolvable,
			Reply:  "I couldn't turn that into a shell command.",
		}, nil
	}

	if frag, denied := r.policy.Denies(command); denied {
		return &dispatch.Resolution{
			Status: dispatch.StatusRejected,
			Reply:  fmt.Sprintf("I won't run that: the command contains %q, which is blocked.", frag),
		}, nil
	}

	return &dispatch.Resolution{
		Status: dispatch.StatusExecutable,
		Action: &dispatch.Action{
			Domain:  dispatch.DomainShell,
			Kind:    dispatch.KindRunCommand,
			Summary: fmt.Sprintf("Run shell command: `%s`", command),
			Shell:   &dispatch.ShellPayload{Command: command},
		},
	}, nil
}
