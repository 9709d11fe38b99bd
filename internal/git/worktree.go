package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/logger"
)

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path     string
	Head     string
	Branch   string // short name; empty when detached or bare
	Bare     bool
	Detached bool
	Prunable bool
}

// ListWorktrees returns every worktree git knows about for repo, primary first.
func (s *GitService) ListWorktrees(ctx context.Context, repo string) ([]Worktree, error) {
	out, err := s.executor.Output(ctx, repo, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, errors.E(errors.Op("git.ListWorktrees"), errors.KindGit, errors.Path(repo), err)
	}
	return parseWorktreeList(string(out)), nil
}

func parseWorktreeList(out string) []Worktree {
	var (
		result  []Worktree
		current *Worktree
	)
	flush := func() {
		if current != nil {
			result = append(result, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			flush()
			current = &Worktree{Path: value}
		case "HEAD":
			if current != nil {
				current.Head = value
			}
		case "branch":
			if current != nil {
				current.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		case "bare":
			if current != nil {
				current.Bare = true
			}
		case "detached":
			if current != nil {
				current.Detached = true
			}
		case "prunable":
			if current != nil {
				current.Prunable = true
			}
		}
	}
	flush()
	return result
}

// FindWorktreeForBranch returns the path of the worktree that has branch
// checked out, if any.
func (s *GitService) FindWorktreeForBranch(ctx context.Context, repo, branch string) (string, bool) {
	worktrees, err := s.ListWorktrees(ctx, repo)
	if err != nil {
		return "", false
	}
	for _, wt := range worktrees {
		if wt.Branch == branch {
			return wt.Path, true
		}
	}
	return "", false
}

// AddMode selects how `git worktree add` binds the branch.
type AddMode int

const (
	// AddExisting checks out an existing local branch.
	AddExisting AddMode = iota
	// AddTracking creates a local branch tracking origin/<branch>.
	AddTracking
	// AddNew forks a new branch from a base ref.
	AddNew
)

func (m AddMode) String() string {
	switch m {
	case AddExisting:
		return "existing"
	case AddTracking:
		return "tracking"
	case AddNew:
		return "new"
	default:
		return "unknown"
	}
}

var alreadyCheckedOut = regexp.MustCompile(`(?:already checked out at|already used by worktree at) '([^']+)'`)

// AddWorktree creates a worktree for branch at path.
func (s *GitService) AddWorktree(ctx context.Context, repo, path, branch string, mode AddMode, base string) error {
	var args []string
	switch mode {
	case AddExisting:
		args = []string{"worktree", "add", path, branch}
	case AddTracking:
		args = []string{"worktree", "add", "--track", "-b", branch, path, "origin/" + branch}
	case AddNew:
		args = []string{"worktree", "add", "-b", branch, path, base}
	}

	logger.Debug("AddWorktree: git %s", strings.Join(args, " "))
	out, err := s.executor.CombinedOutput(ctx, repo, "git", args...)
	if err == nil {
		return nil
	}

	output := strings.TrimSpace(string(out))
	if m := alreadyCheckedOut.FindStringSubmatch(output); m != nil {
		return errors.BranchCheckedOutElsewhere(branch, m[1])
	}
	if strings.Contains(output, "already checked out") || strings.Contains(output, "already used by worktree") {
		conflict, _ := s.FindWorktreeForBranch(ctx, repo, branch)
		return errors.BranchCheckedOutElsewhere(branch, conflict)
	}
	return errors.ProvisionerFailure(errors.Op("git.AddWorktree"), branch, output, err)
}

// RemoveWorktree detaches and deletes the worktree at path. A path that is
// already gone is not an error.
func (s *GitService) RemoveWorktree(ctx context.Context, repo, path string) error {
	out, err := s.executor.CombinedOutput(ctx, repo, "git", "worktree", "remove", "--force", path)
	if err != nil {
		logger.Debug("RemoveWorktree: git worktree remove failed for %s: %s", path, strings.TrimSpace(string(out)))
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return errors.ProvisionerFailure(errors.Op("git.RemoveWorktree"), filepath.Base(path),
				fmt.Sprintf("cannot delete %s", path), rmErr)
		}
	}

	s.Prune(ctx, repo)
	return nil
}

// Prune drops administrative entries for worktrees whose directories vanished.
func (s *GitService) Prune(ctx context.Context, repo string) {
	if out, err := s.executor.CombinedOutput(ctx, repo, "git", "worktree", "prune"); err != nil {
		logger.Warn("Prune: git worktree prune failed (best-effort): %s - %v", strings.TrimSpace(string(out)), err)
	}
}

// WorktreeRepo reads the .git file of a linked worktree at path and returns
// the main repository root it belongs to, or "" if path is not a linked worktree.
func WorktreeRepo(path string) string {
	data, err := os.ReadFile(filepath.Join(path, ".git"))
	if err != nil {
		return ""
	}
	gitdir, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir: ")
	if !ok {
		return ""
	}
	// gitdir is <repo>/.git/worktrees/<name>
	worktreesDir := filepath.Dir(gitdir)
	if filepath.Base(worktreesDir) != "worktrees" {
		return ""
	}
	return filepath.Dir(filepath.Dir(worktreesDir))
}
