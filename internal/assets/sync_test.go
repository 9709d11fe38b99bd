package assets

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhubert/claudway/internal/config"
	"github.com/zhubert/claudway/internal/errors"
	pexec "github.com/zhubert/claudway/internal/exec"
	"github.com/zhubert/claudway/internal/git"
)

var ctx = context.Background()

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// setupCheckouts creates a primary checkout with a mix of untracked assets
// and a linked worktree on a new branch.
func setupCheckouts(t *testing.T) (source, dest string) {
	t.Helper()
	source, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runGit(t, source, "init", "-q")
	runGit(t, source, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, source, "config", "user.email", "test@example.com")
	runGit(t, source, "config", "user.name", "Test User")
	writeFile(t, filepath.Join(source, ".gitignore"), ".env.local\nnode_modules/\nbuild/\n*.pyc\n")
	writeFile(t, filepath.Join(source, "README.md"), "readme")
	runGit(t, source, "add", ".")
	runGit(t, source, "commit", "-q", "-m", "Initial commit")

	writeFile(t, filepath.Join(source, ".env.local"), "SECRET=1")
	writeFile(t, filepath.Join(source, "notes", "todo.txt"), "notes")
	writeFile(t, filepath.Join(source, "node_modules", "pkg", "index.js"), "module.exports = 1")
	writeFile(t, filepath.Join(source, "build", "out.js"), "built")
	writeFile(t, filepath.Join(source, "cache.pyc"), "bytecode")

	dest = filepath.Join(t.TempDir(), "wt")
	runGit(t, source, "worktree", "add", "-q", "-b", "feature", dest)
	return source, dest
}

func defaultOptions() Options {
	return Options{Exclude: config.DefaultExcludePatterns, Links: []string{"node_modules"}}
}

func newTestSynchronizer() *Synchronizer {
	s := NewSynchronizer(git.NewGitService(), pexec.NewRealExecutor())
	s.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	return s
}

func TestSync_CopiesUntrackedAndLinks(t *testing.T) {
	source, dest := setupCheckouts(t)

	report, err := newTestSynchronizer().Sync(ctx, source, dest, defaultOptions())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", report.Warnings)
	}

	for _, rel := range []string{".env.local", "notes/todo.txt"} {
		data, err := os.ReadFile(filepath.Join(dest, rel))
		if err != nil {
			t.Errorf("%s not copied: %v", rel, err)
			continue
		}
		want, _ := os.ReadFile(filepath.Join(source, rel))
		if string(data) != string(want) {
			t.Errorf("%s content = %q", rel, data)
		}
	}
	for _, rel := range []string{"build/out.js", "cache.pyc"} {
		if _, err := os.Lstat(filepath.Join(dest, rel)); !os.IsNotExist(err) {
			t.Errorf("%s should be excluded", rel)
		}
	}

	link, err := os.Readlink(filepath.Join(dest, "node_modules"))
	if err != nil {
		t.Fatalf("node_modules should be a symlink: %v", err)
	}
	if link != filepath.Join(source, "node_modules") {
		t.Errorf("link target = %q", link)
	}
	if report.Copied != 2 || report.Linked != 1 {
		t.Errorf("report = %+v, want 2 copied and 1 linked", report)
	}
}

func TestSync_Idempotent(t *testing.T) {
	source, dest := setupCheckouts(t)
	s := newTestSynchronizer()

	if _, err := s.Sync(ctx, source, dest, defaultOptions()); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(filepath.Join(dest, ".env.local"))

	report, err := s.Sync(ctx, source, dest, defaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if report.Copied != 0 || report.Linked != 0 {
		t.Errorf("second sync wrote files: %+v", report)
	}
	again, _ := os.Stat(filepath.Join(dest, ".env.local"))
	if !again.ModTime().Equal(info.ModTime()) {
		t.Error("unchanged file was rewritten")
	}

	// A changed source file is picked up on the next run.
	writeFile(t, filepath.Join(source, ".env.local"), "SECRET=2")
	future := time.Now().Add(time.Minute)
	os.Chtimes(filepath.Join(source, ".env.local"), future, future)
	report, _ = s.Sync(ctx, source, dest, defaultOptions())
	if report.Copied != 1 {
		t.Errorf("expected the changed file to be copied, report %+v", report)
	}
}

func TestSync_PreservesMode(t *testing.T) {
	source, dest := setupCheckouts(t)
	script := filepath.Join(source, "run.sh")
	writeFile(t, script, "#!/bin/sh\n")
	os.Chmod(script, 0755)

	if _, err := newTestSynchronizer().Sync(ctx, source, dest, defaultOptions()); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dest, "run.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestSync_NeverOverwritesTrackedFiles(t *testing.T) {
	source, dest := setupCheckouts(t)
	writeFile(t, filepath.Join(dest, "config.txt"), "tracked on feature")
	runGit(t, dest, "add", "config.txt")
	runGit(t, dest, "commit", "-q", "-m", "add config")
	writeFile(t, filepath.Join(source, "config.txt"), "untracked in primary")

	if _, err := newTestSynchronizer().Sync(ctx, source, dest, defaultOptions()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dest, "config.txt"))
	if string(data) != "tracked on feature" {
		t.Errorf("tracked file overwritten: %q", data)
	}
}

func TestSync_LinkReplacement(t *testing.T) {
	t.Run("stale link replaced", func(t *testing.T) {
		source, dest := setupCheckouts(t)
		os.Symlink(t.TempDir(), filepath.Join(dest, "node_modules"))

		report, _ := newTestSynchronizer().Sync(ctx, source, dest, defaultOptions())
		link, _ := os.Readlink(filepath.Join(dest, "node_modules"))
		if link != filepath.Join(source, "node_modules") || report.Linked != 1 {
			t.Errorf("stale link not replaced: %q %+v", link, report)
		}
	})

	t.Run("untracked directory replaced", func(t *testing.T) {
		source, dest := setupCheckouts(t)
		writeFile(t, filepath.Join(dest, "node_modules", "old.js"), "old")

		newTestSynchronizer().Sync(ctx, source, dest, defaultOptions())
		info, err := os.Lstat(filepath.Join(dest, "node_modules"))
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			t.Error("untracked directory should become a link")
		}
	})

	t.Run("directory with tracked files kept", func(t *testing.T) {
		source, dest := setupCheckouts(t)
		writeFile(t, filepath.Join(dest, "vendor", "lib.go"), "package lib")
		runGit(t, dest, "add", "vendor")
		runGit(t, dest, "commit", "-q", "-m", "vendor")
		writeFile(t, filepath.Join(source, "vendor", "lib.go"), "package lib")

		opts := defaultOptions()
		opts.Links = []string{"vendor"}
		report, _ := newTestSynchronizer().Sync(ctx, source, dest, opts)

		info, err := os.Lstat(filepath.Join(dest, "vendor"))
		if err != nil || info.Mode()&os.ModeSymlink != 0 {
			t.Error("directory with tracked files must not be replaced")
		}
		if len(report.Warnings) != 1 || !errors.Is(report.Warnings[0], errors.KindSyncWarning) {
			t.Errorf("expected one sync warning, got %v", report.Warnings)
		}
	})

	t.Run("missing source target skipped", func(t *testing.T) {
		source, dest := setupCheckouts(t)
		opts := defaultOptions()
		opts.Links = []string{"web/node_modules"}
		report, _ := newTestSynchronizer().Sync(ctx, source, dest, opts)
		if _, err := os.Lstat(filepath.Join(dest, "web", "node_modules")); !os.IsNotExist(err) {
			t.Error("no link expected when the source directory is absent")
		}
		if report.Linked != 0 {
			t.Errorf("report = %+v", report)
		}
	})
}

func TestSync_CopyFailureIsWarning(t *testing.T) {
	source, dest := setupCheckouts(t)
	// A directory where a file should go makes that one copy fail.
	os.MkdirAll(filepath.Join(dest, ".env.local"), 0755)

	report, err := newTestSynchronizer().Sync(ctx, source, dest, defaultOptions())
	if err != nil {
		t.Fatalf("per-file failures must not fail the sync: %v", err)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("warnings = %v", report.Warnings)
	}
	if errors.PathOf(report.Warnings[0]) != ".env.local" {
		t.Errorf("warning path = %q", errors.PathOf(report.Warnings[0]))
	}
	if _, err := os.Stat(filepath.Join(dest, "notes", "todo.txt")); err != nil {
		t.Error("other files should still be copied")
	}
}

func TestSync_Cancelled(t *testing.T) {
	source, dest := setupCheckouts(t)
	cctx, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := newTestSynchronizer().Sync(cctx, source, dest, defaultOptions()); err == nil {
		t.Error("expected cancellation error")
	}
}

func TestSync_PostSyncHooks(t *testing.T) {
	source, dest := setupCheckouts(t)
	opts := defaultOptions()
	opts.PostSync = []string{"touch hook-ran", "exit 3"}

	report, err := newTestSynchronizer().Sync(ctx, source, dest, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "hook-ran")); err != nil {
		t.Error("post-sync hook should run in the destination")
	}
	if len(report.Warnings) != 1 {
		t.Errorf("failing hook should be a warning, got %v", report.Warnings)
	}
}

func TestSync_MiseTrust(t *testing.T) {
	source, dest := setupCheckouts(t)
	writeFile(t, filepath.Join(dest, MiseConfigFile), "[tools]\n")

	mock := pexec.NewMockExecutor(pexec.NewRealExecutor())
	mock.AddExactMatch("mise", []string{"trust"}, pexec.MockResponse{})
	s := NewSynchronizer(git.NewGitService(), mock)
	s.lookPath = func(string) (string, error) { return "/usr/bin/mise", nil }

	if _, err := s.Sync(ctx, source, dest, defaultOptions()); err != nil {
		t.Fatal(err)
	}
	var trusted bool
	for _, call := range mock.GetCalls() {
		if call.Name == "mise" && call.Dir == dest {
			trusted = true
		}
	}
	if !trusted {
		t.Error("mise trust should run in the destination")
	}
}

func TestMatcher_DefaultPatterns(t *testing.T) {
	m := newMatcher(config.DefaultExcludePatterns)
	tests := []struct {
		path     string
		excluded bool
	}{
		{"node_modules/a/b.js", true},
		{"web/node_modules/x.js", true},
		{"app/__pycache__/m.pyc", true},
		{"db.sqlite3", true},
		{"sub/.DS_Store", true},
		{".env.local", false},
		{"src/build.go", false},
		{"build/out.js", true},
	}
	for _, tt := range tests {
		got := m.Match(strings.Split(tt.path, "/"), false)
		if got != tt.excluded {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.excluded)
		}
	}
}
