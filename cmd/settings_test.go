package cmd

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/zhubert/claudway/internal/config"
	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/paths"
)

// isolateConfig points the config directory at a temp dir.
func isolateConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	t.Setenv(config.DefaultCommandEnv, "")
	paths.Reset()
	t.Cleanup(paths.Reset)
	return home
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func reload(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestSetDefaultCommand(t *testing.T) {
	isolateConfig(t)
	cmd, out := testCommand()

	if err := runSetDefaultCommand(cmd, []string{"claude", "--model", "opus"}); err != nil {
		t.Fatal(err)
	}
	if got := reload(t).GetDefaultCommand(); got != "claude --model opus" {
		t.Errorf("default command = %q", got)
	}
	if !strings.Contains(out.String(), "Default command set to: claude --model opus") {
		t.Errorf("output:\n%s", out.String())
	}
	if strings.Contains(out.String(), config.DefaultCommandEnv) {
		t.Error("no env note expected")
	}
}

func TestSetDefaultCommand_EnvNote(t *testing.T) {
	isolateConfig(t)
	t.Setenv(config.DefaultCommandEnv, "codex")
	cmd, out := testCommand()

	if err := runSetDefaultCommand(cmd, []string{"aider"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "takes precedence") {
		t.Errorf("expected an env override note:\n%s", out.String())
	}
}

func TestSetDefaultCommand_Empty(t *testing.T) {
	isolateConfig(t)
	cmd, _ := testCommand()
	if err := runSetDefaultCommand(cmd, []string{"  "}); err == nil {
		t.Error("expected an error for an empty command")
	}
}

func TestSetRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	isolateConfig(t)

	repo := t.TempDir()
	if out, err := exec.Command("git", "init", repo).CombinedOutput(); err != nil {
		t.Fatalf("git init: %v\n%s", err, out)
	}
	repo, _ = filepath.EvalSymlinks(repo)
	sub := filepath.Join(repo, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	cmd, out := testCommand()
	if err := runSetRepo(cmd, []string{sub}); err != nil {
		t.Fatal(err)
	}
	if got := reload(t).GetRepoLocation(); got != repo {
		t.Errorf("repo location = %q, want %q", got, repo)
	}
	if !strings.Contains(out.String(), repo) {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestSetRepo_NotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	isolateConfig(t)
	cmd, _ := testCommand()

	err := runSetRepo(cmd, []string{t.TempDir()})
	if !errors.Is(err, errors.KindNotARepository) {
		t.Errorf("err = %v, want NotARepository", err)
	}
	if got := reload(t).GetRepoLocation(); got != "" {
		t.Errorf("repo location should stay unset, got %q", got)
	}
}

func TestSetNotifications(t *testing.T) {
	isolateConfig(t)

	tests := []struct {
		arg  string
		want bool
	}{
		{"on", true},
		{"off", false},
		{"YES", true},
		{"false", false},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			cmd, _ := testCommand()
			if err := runSetNotifications(cmd, []string{tt.arg}); err != nil {
				t.Fatal(err)
			}
			if got := reload(t).GetNotificationsEnabled(); got != tt.want {
				t.Errorf("notifications = %v, want %v", got, tt.want)
			}
		})
	}

	cmd, _ := testCommand()
	if err := runSetNotifications(cmd, []string{"maybe"}); err == nil {
		t.Error("expected an error for an unknown value")
	}
}

func TestConfigRows(t *testing.T) {
	isolateConfig(t)
	cfg := reload(t)

	rows := configRows(cfg)
	byKey := make(map[string][2]string)
	for _, r := range rows {
		byKey[r.Key] = [2]string{r.Value, r.Source}
	}
	if got := byKey["default_command"]; got != [2]string{config.DefaultCommand, "default"} {
		t.Errorf("default_command = %v", got)
	}
	if got := byKey["repo_location"]; got[0] != "(not set)" {
		t.Errorf("repo_location = %v", got)
	}
	if got := byKey["notifications"]; got[0] != "off" {
		t.Errorf("notifications = %v", got)
	}

	cfg.SetDefaultCommand("aider")
	if got := configRows(cfg)[0]; got.Value != "aider" || got.Source != "config" {
		t.Errorf("configured command row = %+v", got)
	}

	t.Setenv(config.DefaultCommandEnv, "codex")
	if got := configRows(cfg)[0]; got.Value != "codex" || got.Source != config.DefaultCommandEnv {
		t.Errorf("env command row = %+v", got)
	}
}
