package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var ctx = context.Background()

// runGit runs git in dir and fails the test on error.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

// commitAt creates a commit on the current branch with a fixed committer date.
func commitAt(t *testing.T, dir, file, date string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, file), []byte(file+date), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", file)
	cmd := exec.Command("git", "commit", "-q", "-m", "commit "+file)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_COMMITTER_DATE="+date, "GIT_AUTHOR_DATE="+date)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("commit failed: %v\n%s", err, out)
	}
}

// createTestRepo creates a repository on branch main with one commit.
// The returned path has symlinks resolved so it compares equal to git output.
func createTestRepo(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	commitAt(t, dir, "test.txt", "2024-01-01T00:00:00Z")
	return dir
}

// createTestRepoWithRemote clones a bare origin so refs/remotes/origin/* exist.
func createTestRepoWithRemote(t *testing.T) (local, remote string) {
	t.Helper()

	seed := createTestRepo(t)
	remote = filepath.Join(t.TempDir(), "origin.git")
	runGit(t, seed, "clone", "-q", "--bare", seed, remote)

	parent, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	local = filepath.Join(parent, "local")
	runGit(t, parent, "clone", "-q", remote, local)
	runGit(t, local, "config", "user.email", "test@example.com")
	runGit(t, local, "config", "user.name", "Test User")
	return local, remote
}
