package git

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/zhubert/claudway/internal/errors"
	pexec "github.com/zhubert/claudway/internal/exec"
	"github.com/zhubert/claudway/internal/logger"
)

// GitService runs git plumbing through an injected executor so tests can
// substitute canned failures for individual commands.
type GitService struct {
	executor pexec.CommandExecutor
}

// NewGitService creates a GitService backed by the real git binary.
func NewGitService() *GitService {
	return &GitService{executor: pexec.NewRealExecutor()}
}

// NewGitServiceWithExecutor creates a GitService with a custom executor.
func NewGitServiceWithExecutor(exec pexec.CommandExecutor) *GitService {
	return &GitService{executor: exec}
}

// Locate resolves the main repository root controlling dir. Run from inside a
// linked worktree it still returns the primary checkout, because the common
// git dir is shared by every worktree.
func (s *GitService) Locate(ctx context.Context, dir string) (string, error) {
	out, err := s.executor.Output(ctx, dir, "git", "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		logger.Debug("Locate: %s is not in a repository: %v", dir, err)
		return "", errors.NotARepository(dir)
	}

	common := filepath.Clean(strings.TrimSpace(string(out)))
	if common == "" || common == "." {
		return "", errors.NotARepository(dir)
	}
	if filepath.Base(common) == ".git" {
		return filepath.Dir(common), nil
	}
	// Bare repository: the common dir is the repository itself.
	return common, nil
}

// CurrentBranch returns the branch checked out in dir, or "HEAD" when detached.
func (s *GitService) CurrentBranch(ctx context.Context, dir string) string {
	out, err := s.executor.Output(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "HEAD"
	}
	if branch := strings.TrimSpace(string(out)); branch != "" {
		return branch
	}
	return "HEAD"
}

// BranchExists reports whether refs/heads/<branch> exists.
func (s *GitService) BranchExists(ctx context.Context, repo, branch string) bool {
	_, _, err := s.executor.Run(ctx, repo, "git", "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// RemoteBranchExists reports whether refs/remotes/origin/<branch> exists.
func (s *GitService) RemoteBranchExists(ctx context.Context, repo, branch string) bool {
	_, _, err := s.executor.Run(ctx, repo, "git", "rev-parse", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	return err == nil
}

// UntrackedFiles lists files in dir that git does not track, ignored files
// included. Paths are relative to dir and use forward slashes.
func (s *GitService) UntrackedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := s.executor.Output(ctx, dir, "git", "ls-files", "--others", "-z")
	if err != nil {
		return nil, errors.E(errors.Op("git.UntrackedFiles"), errors.KindGit, errors.Path(dir), err)
	}
	return splitNul(out), nil
}

// TrackedFiles lists the files git tracks in dir, relative to dir.
func (s *GitService) TrackedFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := s.executor.Output(ctx, dir, "git", "ls-files", "-z")
	if err != nil {
		return nil, errors.E(errors.Op("git.TrackedFiles"), errors.KindGit, errors.Path(dir), err)
	}
	return splitNul(out), nil
}

// HasTrackedFiles reports whether any tracked file lives at or under rel in dir.
func (s *GitService) HasTrackedFiles(ctx context.Context, dir, rel string) bool {
	out, err := s.executor.Output(ctx, dir, "git", "ls-files", "-z", "--", rel)
	if err != nil {
		// Unknown: treat as tracked so callers never replace the directory.
		return true
	}
	return len(splitNul(out)) > 0
}

// StatusPorcelain returns one "XY path" record per changed path in dir.
// Output is read with -z so paths are never C-quoted; the original path that
// follows a rename or copy record is dropped.
func (s *GitService) StatusPorcelain(ctx context.Context, dir string) ([]string, error) {
	out, err := s.executor.Output(ctx, dir, "git", "status", "--porcelain", "-z", "-unormal")
	if err != nil {
		return nil, errors.E(errors.Op("git.StatusPorcelain"), errors.KindGit, errors.Path(dir), err)
	}
	return parseStatusZ(out), nil
}

func parseStatusZ(out []byte) []string {
	var lines []string
	fields := splitNul(out)
	for i := 0; i < len(fields); i++ {
		rec := fields[i]
		if len(rec) < 4 {
			continue
		}
		lines = append(lines, rec)
		if strings.ContainsAny(rec[:2], "RC") {
			i++
		}
	}
	return lines
}

func splitNul(out []byte) []string {
	var files []string
	for _, f := range strings.Split(string(out), "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}
