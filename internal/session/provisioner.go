package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/git"
	"github.com/zhubert/claudway/internal/logger"
	"github.com/zhubert/claudway/internal/paths"
)

// Provisioner creates and removes the checkout directories behind sessions.
type Provisioner struct {
	git            *git.GitService
	persistentRoot string
	tempRoot       string
}

// NewProvisioner creates a Provisioner storing persistent worktrees under
// persistentRoot and temporary ones under tempRoot. Roots are resolved
// through symlinks so they compare equal to paths reported by git.
func NewProvisioner(gs *git.GitService, persistentRoot, tempRoot string) *Provisioner {
	return &Provisioner{
		git:            gs,
		persistentRoot: resolveDir(persistentRoot),
		tempRoot:       resolveDir(tempRoot),
	}
}

// NewDefaultProvisioner uses the standard storage roots.
func NewDefaultProvisioner(gs *git.GitService) (*Provisioner, error) {
	root, err := paths.WorktreesDir()
	if err != nil {
		return nil, err
	}
	return NewProvisioner(gs, root, paths.TempRoot()), nil
}

// resolveDir resolves symlinks in the longest existing prefix of dir, so a
// root that has not been created yet still matches git's resolved paths.
func resolveDir(dir string) string {
	dir = filepath.Clean(dir)
	var rest []string
	for cur := dir; ; cur = filepath.Dir(cur) {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
	}
}

// Roots returns the persistent and temporary storage roots.
func (p *Provisioner) Roots() (persistent, temporary string) {
	return p.persistentRoot, p.tempRoot
}

// Plan validates branch and returns the session Create would provision,
// with its path chosen but nothing on disk yet.
func (p *Provisioner) Plan(repo, branch string, kind Kind) (Session, error) {
	const op = errors.Op("session.Plan")

	branch = NormalizeBranch(branch)
	if err := ValidateBranchName(branch); err != nil {
		return Session{}, errors.E(op, errors.KindInvalid, err)
	}

	var path string
	switch kind {
	case KindPersistent:
		path = PersistentPath(p.persistentRoot, repo, branch)
	case KindTemporary:
		path = TemporaryPath(p.tempRoot, branch)
	default:
		return Session{}, errors.E(op, errors.KindInvalid, fmt.Sprintf("cannot provision a %s session", kind))
	}

	now := time.Now()
	return Session{Repo: repo, Branch: branch, Kind: kind, Path: path, CreatedAt: now, LastUsedAt: now}, nil
}

// Create provisions a worktree for branch. An existing local branch is
// checked out as is; a branch that only exists on origin gets a tracking
// branch; anything else is forked from baseRef. A dirty primary checkout
// never blocks creation since only refs are read from it.
func (p *Provisioner) Create(ctx context.Context, repo, branch, baseRef string, kind Kind) (Session, error) {
	sess, err := p.Plan(repo, branch, kind)
	if err != nil {
		return Session{}, err
	}
	return p.Provision(ctx, sess, baseRef)
}

// Provision creates the worktree for a session returned by Plan.
func (p *Provisioner) Provision(ctx context.Context, sess Session, baseRef string) (Session, error) {
	const op = errors.Op("session.Provision")
	start := time.Now()
	repo, branch, path := sess.Repo, sess.Branch, sess.Path

	// A persistent worktree left behind without a registry entry is adopted.
	if sess.Kind == KindPersistent {
		if existing, ok := p.git.FindWorktreeForBranch(ctx, repo, branch); ok && filepath.Clean(existing) == path {
			logger.Info("Provisioner: adopting existing worktree for %s at %s", branch, path)
			return sess, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Session{}, errors.E(op, errors.KindIO, errors.Path(path), err)
	}

	mode := git.AddNew
	switch {
	case p.git.BranchExists(ctx, repo, branch):
		mode = git.AddExisting
	case p.git.RemoteBranchExists(ctx, repo, branch):
		mode = git.AddTracking
		sess.BaseBranch = "origin/" + branch
	default:
		if baseRef == "" {
			baseRef = "HEAD"
		}
		sess.BaseBranch = baseRef
	}

	logger.Info("Provisioner: creating %s worktree branch=%s mode=%s path=%s", sess.Kind, branch, mode, path)
	if err := p.git.AddWorktree(ctx, repo, path, branch, mode, baseRef); err != nil {
		logger.Error("Provisioner: worktree add failed after %v: %v", time.Since(start), err)
		return Session{}, err
	}
	logger.Debug("Provisioner: worktree created in %v", time.Since(start))
	return sess, nil
}

// Remove deletes the session's worktree directory. The branch is kept.
// Removing an already-removed session is a no-op. Callers are expected to
// consult the guard package first unless removal is forced.
func (p *Provisioner) Remove(ctx context.Context, s Session) error {
	if s.Kind == KindPrimary {
		return errors.E(errors.Op("session.Remove"), errors.KindInvalid, "the primary checkout cannot be removed")
	}
	logger.Info("Provisioner: removing %s worktree %s (branch %s)", s.Kind, s.Path, s.Branch)
	return p.git.RemoveWorktree(ctx, s.Repo, s.Path)
}

// Discover reports every git worktree of repo that lives in a storage root,
// plus the primary checkout, as sessions.
func (p *Provisioner) Discover(ctx context.Context, repo string) ([]Session, error) {
	worktrees, err := p.git.ListWorktrees(ctx, repo)
	if err != nil {
		return nil, err
	}

	var sessions []Session
	for _, wt := range worktrees {
		if wt.Bare || wt.Prunable || wt.Branch == "" {
			continue
		}
		kind, ok := Classify(repo, wt.Path, p.persistentRoot, p.tempRoot)
		if !ok {
			continue
		}
		sess := Session{Repo: repo, Branch: wt.Branch, Kind: kind, Path: wt.Path}
		if info, err := os.Stat(wt.Path); err == nil {
			sess.CreatedAt = info.ModTime()
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// FindStale lists directories in the storage roots that were worktrees of
// repo but that git no longer tracks, typically after a manual prune.
func (p *Provisioner) FindStale(ctx context.Context, repo string) ([]string, error) {
	worktrees, err := p.git.ListWorktrees(ctx, repo)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(worktrees))
	for _, wt := range worktrees {
		if !wt.Prunable {
			live[filepath.Clean(wt.Path)] = true
		}
	}

	var stale []string
	for _, root := range []string{p.persistentRoot, p.tempRoot} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if root == p.tempRoot && !strings.HasPrefix(e.Name(), paths.TempPrefix) {
				continue
			}
			dir := filepath.Join(root, e.Name())
			if live[dir] || git.WorktreeRepo(dir) != repo {
				continue
			}
			stale = append(stale, dir)
		}
	}
	return stale, nil
}

// RemoveStale deletes a directory reported by FindStale.
func (p *Provisioner) RemoveStale(ctx context.Context, repo, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.E(errors.Op("session.RemoveStale"), errors.KindIO, errors.Path(dir), err)
	}
	p.git.Prune(ctx, repo)
	return nil
}
