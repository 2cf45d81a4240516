package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmoraru/hibiki/internal/hibiki/dispatch"
	"github.com/dmoraru/hibiki/internal/hibiki/nlp"
)

func TestShellResolveBenignCommand(t *testing.T) {
	interp := &fakeInterp{commandDetails: &nlp.CommandDetails{Command: "df -h"}}
	r := NewShell(interp, ShellPolicy{DenySubstrings: defaultDenySubstrings})

	res, err := r.Resolve(context.Background(), "@op:example.org", "how much disk is left")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != dispatch.StatusExecutable {
		t.Fatalf("status = %v, want executable", res.Status)
	}
	if res.Action.Shell.Command != "df -h" {
		t.Errorf("command = %q", res.Action.Shell.Command)
	}
}

func TestShellResolveDenylist(t *testing.T) {
	denied := []string{
		"rm -rf /tmp/cache",
		"shutdown -h now",
		"reboot",
		"mkfs.ext4 /dev/sda1",
		":(){ :|:& };:",
		"du -sh /var && rm /var/log/old.log",
	}
	for _, cmd := range denied {
		interp := &fakeInterp{commandDetails: &nlp.CommandDetails{Command: cmd}}
		r := NewShell(interp, ShellPolicy{DenySubstrings: defaultDenySubstrings})

		res, err := r.Resolve(context.Background(), "@op:example.org", "please")
		if err != nil {
			t.Fatalf("Resolve(%q): %v", cmd, err)
		}
		if res.Status != dispatch.StatusRejected {
			t.Errorf("command %q: status = %v, want rejected", cmd, res.Status)
		}
		if res.Action != nil {
			t.Errorf("command %q: rejection must not carry an action", cmd)
		}
	}
}

func TestShellResolveEmptyCommand(t *testing.T) {
	interp := &fakeInterp{commandDetails: &nlp.CommandDetails{Command: "  "}}
	r := NewShell(interp, ShellPolicy{DenySubstrings: defaultDenySubstrings})

	res, err := r.Resolve(context.Background(), "@op:example.org", "do the needful")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != dispatch.StatusUnresolvable {
		t.Fatalf("status = %v, want unresolvable", res.Status)
	}
}

func TestLoadShellPolicyDefaults(t *testing.T) {
	policy, err := LoadShellPolicy("")
	if err != nil {
		t.Fatalf("LoadShellPolicy: %v", err)
	}
	if _, denied := policy.Denies("shutdown -r now"); !denied {
		t.Error("default policy should deny shutdown")
	}
	if _, denied := policy.Denies("uptime"); denied {
		t.Error("default policy should allow uptime")
	}
}

func TestLoadShellPolicyMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "deny_substrings:\n  - \"curl \"\n  - \"wget \"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadShellPolicy(path)
	if err != nil {
		t.Fatalf("LoadShellPolicy: %v", err)
	}
	if _, denied := policy.Denies("curl http://example.org"); !denied {
		t.Error("file entries should be enforced")
	}
	if _, denied := policy.Denies("rm -rf /"); !denied {
		t.Error("defaults must survive the merge")
	}
}

func TestLoadShellPolicyMissingFile(t *testing.T) {
	if _, err := LoadShellPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing policy file")
	}
}
