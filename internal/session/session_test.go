package session

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhubert/claudway/internal/errors"
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

// createTestRepo creates a repository on branch main with one commit.
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
	if err := os.WriteFile(filepath.Join(dir, "test.txt"), []byte("test content"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "test.txt")
	runGit(t, dir, "commit", "-q", "-m", "Initial commit")
	return dir
}

func newTestProvisioner(t *testing.T) *Provisioner {
	t.Helper()
	return NewProvisioner(git.NewGitService(), filepath.Join(t.TempDir(), "worktrees"), t.TempDir())
}

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		{"simple", "feature", false},
		{"nested", "feature/login-form", false},
		{"dots", "release-1.2.3", false},
		{"empty", "", true},
		{"leading dash", "-x", true},
		{"lock suffix", "feature.lock", true},
		{"double dot", "a..b", true},
		{"trailing slash", "feature/", true},
		{"double slash", "a//b", true},
		{"space", "my branch", true},
		{"tilde", "a~1", true},
		{"too long", strings.Repeat("a", MaxBranchNameLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateBranchName(tt.branch); (err != nil) != tt.wantErr {
				t.Errorf("ValidateBranchName(%q) error = %v, wantErr %v", tt.branch, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeBranch(t *testing.T) {
	if got := NormalizeBranch("origin/feature/x"); got != "feature/x" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeBranch(" main "); got != "main" {
		t.Errorf("got %q", got)
	}
}

func TestPersistentPath(t *testing.T) {
	a := PersistentPath("/data/worktrees", "/repo/a", "feature/x")
	b := PersistentPath("/data/worktrees", "/repo/b", "feature/x")

	if a == b {
		t.Error("same branch in different repos must map to different paths")
	}
	if a != PersistentPath("/data/worktrees", "/repo/a", "feature/x") {
		t.Error("path derivation must be deterministic")
	}
	base := filepath.Base(a)
	if !strings.HasPrefix(base, "feature-x-") || len(base) != len("feature-x-")+8 {
		t.Errorf("unexpected directory name %q", base)
	}
}

func TestTemporaryPath_Unique(t *testing.T) {
	a := TemporaryPath("/tmp", "feature")
	b := TemporaryPath("/tmp", "feature")
	if a == b {
		t.Error("temporary paths must be unique")
	}
	if !strings.HasPrefix(filepath.Base(a), "cw-feature-") {
		t.Errorf("unexpected name %q", filepath.Base(a))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Kind
		ok   bool
	}{
		{"/repo", KindPrimary, true},
		{"/data/worktrees/feature-1234abcd", KindPersistent, true},
		{"/tmp/cw-feature-1234abcd", KindTemporary, true},
		{"/tmp/other", "", false},
		{"/elsewhere/wt", "", false},
		{"/data/worktrees", "", false},
	}
	for _, tt := range tests {
		got, ok := Classify("/repo", tt.path, "/data/worktrees", "/tmp")
		if got != tt.want || ok != tt.ok {
			t.Errorf("Classify(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSession_Recency(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Session{CreatedAt: created}
	if !s.Recency().Equal(created) {
		t.Error("recency falls back to creation time")
	}
	s.LastUsedAt = created.Add(time.Hour)
	if !s.Recency().Equal(s.LastUsedAt) {
		t.Error("recency prefers last use")
	}
}

func TestKind_Rank(t *testing.T) {
	if !(KindPrimary.Rank() < KindPersistent.Rank() && KindPersistent.Rank() < KindTemporary.Rank()) {
		t.Error("rank must order primary, persistent, temporary")
	}
}

func TestCreate_NewBranch(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)

	sess, err := p.Create(ctx, repo, "feature", "main", KindTemporary)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Branch != "feature" || sess.Kind != KindTemporary || sess.BaseBranch != "main" {
		t.Errorf("unexpected session %+v", sess)
	}
	if _, err := os.Stat(filepath.Join(sess.Path, "test.txt")); err != nil {
		t.Errorf("worktree should contain tracked files: %v", err)
	}
	_, tempRoot := p.Roots()
	if kind, ok := Classify(repo, sess.Path, "", tempRoot); !ok || kind != KindTemporary {
		t.Errorf("temporary path %s not under temp root %s", sess.Path, tempRoot)
	}
}

func TestCreate_ExistingBranchAndOriginPrefix(t *testing.T) {
	repo := createTestRepo(t)
	runGit(t, repo, "branch", "existing")
	p := newTestProvisioner(t)

	sess, err := p.Create(ctx, repo, "origin/existing", "", KindPersistent)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Branch != "existing" {
		t.Errorf("branch = %q, want existing", sess.Branch)
	}
	persistentRoot, _ := p.Roots()
	if sess.Path != PersistentPath(persistentRoot, repo, "existing") {
		t.Errorf("path = %q", sess.Path)
	}
}

func TestCreate_PersistentAdoptsExistingWorktree(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)

	first, err := p.Create(ctx, repo, "keep", "main", KindPersistent)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Create(ctx, repo, "keep", "main", KindPersistent)
	if err != nil {
		t.Fatalf("second Create should adopt, got %v", err)
	}
	if first.Path != second.Path {
		t.Errorf("paths differ: %q vs %q", first.Path, second.Path)
	}
}

func TestCreate_BranchCheckedOutElsewhere(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)

	_, err := p.Create(ctx, repo, "main", "", KindTemporary)
	if !errors.Is(err, errors.KindBranchCheckedOutElsewhere) {
		t.Fatalf("expected BranchCheckedOutElsewhere, got %v", err)
	}
	if errors.PathOf(err) != repo {
		t.Errorf("conflict path = %q, want %q", errors.PathOf(err), repo)
	}
}

func TestCreate_DirtyPrimaryDoesNotBlock(t *testing.T) {
	repo := createTestRepo(t)
	os.WriteFile(filepath.Join(repo, "test.txt"), []byte("dirty"), 0644)
	os.WriteFile(filepath.Join(repo, "scratch.txt"), []byte("new"), 0644)

	if _, err := newTestProvisioner(t).Create(ctx, repo, "side", "main", KindTemporary); err != nil {
		t.Fatalf("dirty primary should not block: %v", err)
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)

	if _, err := p.Create(ctx, repo, "bad name", "", KindTemporary); !errors.Is(err, errors.KindInvalid) {
		t.Errorf("expected invalid branch error, got %v", err)
	}
	if _, err := p.Create(ctx, repo, "x", "", KindPrimary); !errors.Is(err, errors.KindInvalid) {
		t.Errorf("expected error provisioning primary, got %v", err)
	}
}

func TestPlan_NothingOnDisk(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)
	persistentRoot, tempRoot := p.Roots()

	sess, err := p.Plan(repo, "origin/feature/x", KindPersistent)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Branch != "feature/x" {
		t.Errorf("branch = %q", sess.Branch)
	}
	if sess.Path != PersistentPath(persistentRoot, repo, "feature/x") {
		t.Errorf("path = %s", sess.Path)
	}
	if sess.CreatedAt.IsZero() || !sess.LastUsedAt.Equal(sess.CreatedAt) {
		t.Error("timestamps should be set")
	}
	if _, err := os.Stat(sess.Path); !os.IsNotExist(err) {
		t.Error("Plan must not create anything")
	}

	tmp, err := p.Plan(repo, "scratch", KindTemporary)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(tmp.Path) != tempRoot {
		t.Errorf("temporary path %s not under %s", tmp.Path, tempRoot)
	}

	provisioned, err := p.Provision(ctx, tmp, "main")
	if err != nil {
		t.Fatal(err)
	}
	if provisioned.Path != tmp.Path || provisioned.BaseBranch != "main" {
		t.Errorf("provisioned %+v", provisioned)
	}
	if _, err := os.Stat(filepath.Join(provisioned.Path, "test.txt")); err != nil {
		t.Error("worktree should be checked out")
	}
}

func TestRemove(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)

	sess, err := p.Create(ctx, repo, "doomed", "main", KindTemporary)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Remove(ctx, sess); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(sess.Path); !os.IsNotExist(err) {
		t.Error("worktree directory should be gone")
	}
	if err := p.Remove(ctx, sess); err != nil {
		t.Errorf("second Remove should be a no-op: %v", err)
	}
	if err := p.Remove(ctx, Session{Repo: repo, Path: repo, Kind: KindPrimary}); err == nil {
		t.Error("removing the primary checkout must fail")
	}
}

func TestDiscover(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)

	if _, err := p.Create(ctx, repo, "p1", "main", KindPersistent); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Create(ctx, repo, "t1", "main", KindTemporary); err != nil {
		t.Fatal(err)
	}
	// A worktree outside the storage roots is ignored.
	runGit(t, repo, "worktree", "add", "-q", "-b", "outside", filepath.Join(t.TempDir(), "outside"))

	found, err := p.Discover(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	kinds := map[string]Kind{}
	for _, s := range found {
		kinds[s.Branch] = s.Kind
	}
	want := map[string]Kind{"main": KindPrimary, "p1": KindPersistent, "t1": KindTemporary}
	if len(kinds) != len(want) {
		t.Fatalf("Discover = %v, want %v", kinds, want)
	}
	for b, k := range want {
		if kinds[b] != k {
			t.Errorf("%s: kind %q, want %q", b, kinds[b], k)
		}
	}
}

func TestFindStale(t *testing.T) {
	repo := createTestRepo(t)
	p := newTestProvisioner(t)

	sess, err := p.Create(ctx, repo, "stale", "main", KindPersistent)
	if err != nil {
		t.Fatal(err)
	}
	live, err := p.Create(ctx, repo, "live", "main", KindPersistent)
	if err != nil {
		t.Fatal(err)
	}

	// Make git forget the worktree while the directory stays behind.
	os.Rename(sess.Path, sess.Path+".moved")
	runGit(t, repo, "worktree", "prune")
	os.Rename(sess.Path+".moved", sess.Path)

	stale, err := p.FindStale(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0] != sess.Path {
		t.Fatalf("FindStale = %v, want [%s]", stale, sess.Path)
	}

	if err := p.RemoveStale(ctx, repo, stale[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sess.Path); !os.IsNotExist(err) {
		t.Error("stale directory should be removed")
	}
	if _, err := os.Stat(live.Path); err != nil {
		t.Error("live worktree must be untouched")
	}
}
