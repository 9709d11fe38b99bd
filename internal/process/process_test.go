package process

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestIsAlive(t *testing.T) {
	if !IsAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if IsAlive(0) || IsAlive(-5) {
		t.Error("non-positive pids are never alive")
	}

	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("cannot run true: %v", err)
	}
	if IsAlive(cmd.Process.Pid) {
		t.Error("reaped child should not be alive")
	}
}

func TestShellLauncher_ExitCode(t *testing.T) {
	var out bytes.Buffer
	code, err := NewShellLauncher().Launch(context.Background(), Spec{
		Command: "echo hello; exit 7",
		Dir:     t.TempDir(),
		Stdin:   strings.NewReader(""),
		Stdout:  &out,
		Stderr:  &out,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
	if strings.TrimSpace(out.String()) != "hello" {
		t.Errorf("output = %q", out.String())
	}
}

func TestShellLauncher_WorkingDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	_, err := NewShellLauncher().Launch(context.Background(), Spec{
		Command: `printf "%s|%s" "$PWD" "$CW_BRANCH"`,
		Dir:     dir,
		Env:     BuildEnv(os.Environ(), map[string]string{"CW_BRANCH": "feature"}),
		Stdin:   strings.NewReader(""),
		Stdout:  &out,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	resolved, _ := filepath.EvalSymlinks(dir)
	got := strings.SplitN(out.String(), "|", 2)
	if len(got) != 2 || (got[0] != dir && got[0] != resolved) || got[1] != "feature" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestShellLauncher_StartFailure(t *testing.T) {
	_, err := NewShellLauncher().Launch(context.Background(), Spec{
		Command: "true",
		Dir:     filepath.Join(t.TempDir(), "missing"),
	})
	if err == nil {
		t.Error("expected error for missing working directory")
	}
}

func TestDefaultShell(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/zsh")
	if DefaultShell() != "/usr/bin/zsh" {
		t.Errorf("DefaultShell = %q", DefaultShell())
	}
	t.Setenv("SHELL", "")
	if DefaultShell() != "/bin/sh" {
		t.Errorf("DefaultShell fallback = %q", DefaultShell())
	}
}

func TestBuildEnv(t *testing.T) {
	sep := string(os.PathListSeparator)
	base := []string{
		"HOME=/home/u",
		"VIRTUAL_ENV=/repo/.venv",
		"PATH=/usr/bin" + sep + "/opt/claudway/bin" + sep + "/bin",
		"CW_BRANCH=stale",
	}

	env := BuildEnv(base, map[string]string{"CW_BRANCH": "feature", "CW_SESSION_KIND": "temporary"})

	if slices.ContainsFunc(env, func(kv string) bool { return strings.HasPrefix(kv, "VIRTUAL_ENV=") }) {
		t.Error("VIRTUAL_ENV should be stripped")
	}
	if !slices.Contains(env, "PATH=/usr/bin"+sep+"/bin") {
		t.Errorf("PATH not cleaned: %v", env)
	}
	if slices.Contains(env, "CW_BRANCH=stale") || !slices.Contains(env, "CW_BRANCH=feature") {
		t.Errorf("extra vars should override base: %v", env)
	}
	if !slices.Contains(env, "HOME=/home/u") || !slices.Contains(env, "CW_SESSION_KIND=temporary") {
		t.Errorf("missing expected entries: %v", env)
	}
}
