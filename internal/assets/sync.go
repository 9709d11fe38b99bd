// Package assets populates a fresh or reused worktree with the files git does
// not carry over: untracked and ignored files from the primary checkout, and
// symlinks to heavyweight dependency directories such as node_modules.
package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/zhubert/claudway/internal/errors"
	pexec "github.com/zhubert/claudway/internal/exec"
	"github.com/zhubert/claudway/internal/git"
	"github.com/zhubert/claudway/internal/logger"
)

// MiseConfigFile triggers `mise trust` in the destination when present.
const MiseConfigFile = "mise.toml"

// Options controls a single sync.
type Options struct {
	// Exclude holds gitignore-syntax patterns that are never copied.
	Exclude []string
	// Links are relative directories linked back to the source instead of copied.
	Links []string
	// PostSync commands run through sh -c in the destination afterwards.
	PostSync []string
	// Concurrency bounds parallel copies. Zero means GOMAXPROCS*2.
	Concurrency int
}

// Report summarizes what a sync did.
type Report struct {
	Copied   int
	Skipped  int
	Linked   int
	Warnings []error
}

// Synchronizer copies untracked assets between checkouts.
type Synchronizer struct {
	git      *git.GitService
	executor pexec.CommandExecutor
	lookPath func(string) (string, error)
}

// NewSynchronizer creates a Synchronizer. executor runs the post-sync hooks;
// nil means the real one.
func NewSynchronizer(gs *git.GitService, executor pexec.CommandExecutor) *Synchronizer {
	if executor == nil {
		executor = pexec.NewRealExecutor()
	}
	return &Synchronizer{git: gs, executor: executor, lookPath: osexec.LookPath}
}

type reporter struct {
	mu     sync.Mutex
	report Report
}

func (r *reporter) warn(rel string, err error) {
	logger.WithComponent("assets").Warn("sync warning", "path", rel, "error", err)
	r.mu.Lock()
	r.report.Warnings = append(r.report.Warnings, errors.SyncWarning(rel, err))
	r.mu.Unlock()
}

func (r *reporter) count(field *int) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

// Sync mirrors untracked files from source into dest and links dependency
// directories. Individual failures become warnings in the report; the only
// error returned is cancellation of ctx.
func (s *Synchronizer) Sync(ctx context.Context, source, dest string, opts Options) (Report, error) {
	log := logger.WithComponent("assets")
	rep := &reporter{}

	source, err := filepath.Abs(source)
	if err != nil {
		rep.warn(source, err)
		return rep.report, nil
	}

	matcher := newMatcher(opts.Exclude)
	linked := make(map[string]bool)
	for _, target := range opts.Links {
		target = filepath.ToSlash(filepath.Clean(target))
		if info, err := os.Stat(filepath.Join(source, target)); err != nil || !info.IsDir() {
			continue
		}
		linked[target] = true
		s.link(ctx, rep, source, dest, target)
	}

	files, err := s.git.UntrackedFiles(ctx, source)
	if err != nil {
		rep.warn(".", err)
		files = nil
	}
	tracked := make(map[string]bool)
	if list, err := s.git.TrackedFiles(ctx, dest); err == nil {
		for _, f := range list {
			tracked[f] = true
		}
	} else {
		log.Debug("cannot list tracked files in destination", "dest", dest, "error", err)
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0) * 2
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, rel := range files {
		if tracked[rel] || underAny(rel, linked) || matcher.Match(strings.Split(rel, "/"), false) {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			copied, err := copyFile(filepath.Join(source, filepath.FromSlash(rel)), filepath.Join(dest, filepath.FromSlash(rel)))
			switch {
			case err != nil:
				rep.warn(rel, err)
			case copied:
				rep.count(&rep.report.Copied)
			default:
				rep.count(&rep.report.Skipped)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep.report, err
	}
	if err := ctx.Err(); err != nil {
		return rep.report, err
	}

	s.runHooks(ctx, rep, dest, opts.PostSync)

	log.Info("sync finished", "source", source, "dest", dest,
		"copied", rep.report.Copied, "skipped", rep.report.Skipped,
		"linked", rep.report.Linked, "warnings", len(rep.report.Warnings))
	return rep.report, nil
}

func newMatcher(patterns []string) gitignore.Matcher {
	var ps []gitignore.Pattern
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(ps)
}

func underAny(rel string, dirs map[string]bool) bool {
	for dir := range dirs {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}

// link makes dest/target a symlink to source/target. A correct link is left
// alone and a stale one replaced; a real directory is only replaced when git
// tracks nothing inside it.
func (s *Synchronizer) link(ctx context.Context, rep *reporter, source, dest, target string) {
	src := filepath.Join(source, filepath.FromSlash(target))
	dst := filepath.Join(dest, filepath.FromSlash(target))

	info, err := os.Lstat(dst)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		if current, _ := os.Readlink(dst); current == src {
			rep.count(&rep.report.Skipped)
			return
		}
		if err := os.Remove(dst); err != nil {
			rep.warn(target, err)
			return
		}
	case err == nil:
		if s.git.HasTrackedFiles(ctx, dest, target) {
			rep.warn(target, fmt.Errorf("%s contains tracked files, not replacing it with a link", target))
			return
		}
		if err := os.RemoveAll(dst); err != nil {
			rep.warn(target, err)
			return
		}
	case !os.IsNotExist(err):
		rep.warn(target, err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		rep.warn(target, err)
		return
	}
	if err := os.Symlink(src, dst); err != nil {
		rep.warn(target, err)
		return
	}
	rep.count(&rep.report.Linked)
}

// copyFile copies src to dst keeping mode and mtime. It reports false when
// dst already has the same size and mtime.
func copyFile(src, dst string) (bool, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return false, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return copyLink(src, dst)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}

	if existing, err := os.Lstat(dst); err == nil && existing.Mode().IsRegular() &&
		existing.Size() == info.Size() && existing.ModTime().Equal(info.ModTime()) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, err
	}
	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	if err := out.Close(); err != nil {
		return false, err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return true, err
	}
	return true, os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func copyLink(src, dst string) (bool, error) {
	target, err := os.Readlink(src)
	if err != nil {
		return false, err
	}
	if current, err := os.Readlink(dst); err == nil && current == target {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, os.Symlink(target, dst)
}

func (s *Synchronizer) runHooks(ctx context.Context, rep *reporter, dest string, postSync []string) {
	log := logger.WithComponent("assets")

	if _, err := os.Stat(filepath.Join(dest, MiseConfigFile)); err == nil {
		if _, err := s.lookPath("mise"); err == nil {
			if out, err := s.executor.CombinedOutput(ctx, dest, "mise", "trust"); err != nil {
				rep.warn(MiseConfigFile, fmt.Errorf("mise trust: %w: %s", err, strings.TrimSpace(string(out))))
			}
		} else {
			log.Debug("mise.toml present but mise is not installed", "dest", dest)
		}
	}

	for _, cmd := range postSync {
		log.Info("running post-sync hook", "command", cmd, "dir", dest)
		if out, err := s.executor.CombinedOutput(ctx, dest, "sh", "-c", cmd); err != nil {
			rep.warn(cmd, fmt.Errorf("post-sync hook failed: %w: %s", err, strings.TrimSpace(string(out))))
		}
	}
}
