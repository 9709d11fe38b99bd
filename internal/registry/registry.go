// Package registry records every active session across cw invocations.
//
// Each repository gets its own JSON file under the registry directory,
// guarded by an flock on a sibling .lock file. Every read-modify-write runs
// under that lock, so concurrent invocations on one repository serialize
// while unrelated repositories never contend. On every access the file is
// reconciled with the filesystem: entries whose directory vanished are
// dropped unless a live process still owns them (it may be provisioning).
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/logger"
	"github.com/zhubert/claudway/internal/paths"
	"github.com/zhubert/claudway/internal/process"
	"github.com/zhubert/claudway/internal/session"
)

const fileVersion = 1

// lockRetry is how often a blocked invocation retries the registry lock.
const lockRetry = 50 * time.Millisecond

type registryFile struct {
	Version  int               `json:"version"`
	Repo     string            `json:"repo"`
	Sessions []session.Session `json:"sessions"`
}

// Registry is the durable, lock-guarded session store.
type Registry struct {
	dir     string
	isAlive func(pid int) bool
	now     func() time.Time
}

// New creates a Registry storing files in dir.
func New(dir string) *Registry {
	return &Registry{dir: dir, isAlive: process.IsAlive, now: time.Now}
}

// NewDefault creates a Registry in the standard data directory.
func NewDefault() (*Registry, error) {
	dir, err := paths.RegistryDir()
	if err != nil {
		return nil, err
	}
	return New(dir), nil
}

// SetLiveness replaces the owner liveness check. Intended for tests.
func (r *Registry) SetLiveness(fn func(pid int) bool) {
	r.isAlive = fn
}

// FileFor returns the registry file used for repo.
func (r *Registry) FileFor(repo string) string {
	sum := sha256.Sum256([]byte(repo))
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s.json", filepath.Base(repo), hex.EncodeToString(sum[:])[:8]))
}

// ownedByOther reports whether s is held by a live process other than pid.
func (r *Registry) ownedByOther(s session.Session, pid int) bool {
	return s.OwnerPID != 0 && s.OwnerPID != pid && r.isAlive(s.OwnerPID)
}

// OwnedByLiveProcess reports whether any live process currently owns s.
func (r *Registry) OwnedByLiveProcess(s session.Session) bool {
	return s.OwnerPID != 0 && r.isAlive(s.OwnerPID)
}

// update runs fn on the reconciled entry set of repo under the exclusive
// lock and persists the result when fn or reconciliation changed it.
func (r *Registry) update(ctx context.Context, repo string, fn func(entries map[string]session.Session) (changed bool, err error)) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return errors.E(errors.Op("registry.update"), errors.KindIO, errors.Path(r.dir), err)
	}

	path := r.FileFor(repo)
	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return errors.E(errors.Op("registry.lock"), errors.KindIO, errors.Path(path), err)
	}
	if !locked {
		return errors.E(errors.Op("registry.lock"), errors.KindIO, errors.Path(path), "registry is locked")
	}
	defer fl.Unlock()

	entries, dirty := r.load(path, repo)
	if r.reconcile(entries) {
		dirty = true
	}

	changed, err := fn(entries)
	if err != nil {
		return err
	}
	if !changed && !dirty {
		return nil
	}
	return r.save(path, repo, entries)
}

// load reads the registry file. A corrupt file is set aside and treated as
// empty so one bad write never wedges every later invocation.
func (r *Registry) load(path, repo string) (map[string]session.Session, bool) {
	log := logger.WithComponent("registry")
	entries := make(map[string]session.Session)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("cannot read registry", "path", path, "error", err)
		}
		return entries, false
	}

	var f registryFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.Error("registry corrupted, starting empty", "error", errors.RegistryCorruption(path, err))
		if rerr := os.Rename(path, path+".corrupt"); rerr != nil {
			log.Warn("cannot set corrupt registry aside", "error", rerr)
		}
		return entries, true
	}

	for _, s := range f.Sessions {
		if s.Repo == "" {
			s.Repo = repo
		}
		entries[s.Branch] = s
	}
	return entries, false
}

func (r *Registry) reconcile(entries map[string]session.Session) bool {
	log := logger.WithComponent("registry")
	changed := false
	for branch, s := range entries {
		if _, err := os.Stat(s.Path); err == nil {
			continue
		}
		if r.OwnedByLiveProcess(s) {
			// Still being provisioned by its owner.
			continue
		}
		log.Info("dropping entry whose directory is gone", "branch", branch, "path", s.Path)
		delete(entries, branch)
		changed = true
	}
	return changed
}

func (r *Registry) save(path, repo string, entries map[string]session.Session) error {
	f := registryFile{Version: fileVersion, Repo: repo, Sessions: Sorted(entries)}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.E(errors.Op("registry.save"), errors.KindIO, err)
	}

	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.E(errors.Op("registry.save"), errors.KindIO, errors.Path(path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.E(errors.Op("registry.save"), errors.KindIO, errors.Path(path), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.E(errors.Op("registry.save"), errors.KindIO, errors.Path(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.E(errors.Op("registry.save"), errors.KindIO, errors.Path(path), err)
	}
	return nil
}

// Sorted returns entries ordered by kind, then most recent use, then branch.
func Sorted(entries map[string]session.Session) []session.Session {
	list := make([]session.Session, 0, len(entries))
	for _, s := range entries {
		list = append(list, s)
	}
	Sort(list)
	return list
}

// Sort orders sessions primary, persistent, temporary; within a kind most
// recently used first; ties by branch name.
func Sort(list []session.Session) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() < b.Kind.Rank()
		}
		if !a.Recency().Equal(b.Recency()) {
			return a.Recency().After(b.Recency())
		}
		return a.Branch < b.Branch
	})
}

// List returns the reconciled sessions of repo in display order.
func (r *Registry) List(ctx context.Context, repo string) ([]session.Session, error) {
	var list []session.Session
	err := r.update(ctx, repo, func(entries map[string]session.Session) (bool, error) {
		list = Sorted(entries)
		return false, nil
	})
	return list, err
}

// Get returns the session for (repo, branch), if registered.
func (r *Registry) Get(ctx context.Context, repo, branch string) (session.Session, bool, error) {
	var (
		found session.Session
		ok    bool
	)
	err := r.update(ctx, repo, func(entries map[string]session.Session) (bool, error) {
		found, ok = entries[branch]
		return false, nil
	})
	return found, ok, err
}

// Put inserts or replaces the entry keyed by (s.Repo, s.Branch). It fails with
// DuplicateActiveSession when the stored entry belongs to another live process.
func (r *Registry) Put(ctx context.Context, s session.Session) error {
	return r.update(ctx, s.Repo, func(entries map[string]session.Session) (bool, error) {
		if existing, ok := entries[s.Branch]; ok && r.ownedByOther(existing, s.OwnerPID) {
			return false, errors.DuplicateActiveSession(s.Branch, existing.OwnerPID)
		}
		entries[s.Branch] = s
		return true, nil
	})
}

// Remove deletes the entry for (repo, branch). Missing entries are ignored.
func (r *Registry) Remove(ctx context.Context, repo, branch string) error {
	return r.update(ctx, repo, func(entries map[string]session.Session) (bool, error) {
		if _, ok := entries[branch]; !ok {
			return false, nil
		}
		delete(entries, branch)
		return true, nil
	})
}

// Claim marks pid as the owner of an existing entry and bumps its last use.
func (r *Registry) Claim(ctx context.Context, repo, branch string, pid int) (session.Session, error) {
	var claimed session.Session
	err := r.update(ctx, repo, func(entries map[string]session.Session) (bool, error) {
		s, ok := entries[branch]
		if !ok {
			return false, errors.E(errors.Op("registry.Claim"), errors.KindNotFound,
				fmt.Sprintf("no session registered for %s", branch))
		}
		if r.ownedByOther(s, pid) {
			return false, errors.DuplicateActiveSession(branch, s.OwnerPID)
		}
		s.OwnerPID = pid
		s.LastUsedAt = r.now()
		entries[branch] = s
		claimed = s
		return true, nil
	})
	return claimed, err
}

// Release clears ownership if pid still holds the entry.
func (r *Registry) Release(ctx context.Context, repo, branch string, pid int) error {
	return r.update(ctx, repo, func(entries map[string]session.Session) (bool, error) {
		s, ok := entries[branch]
		if !ok || s.OwnerPID != pid {
			return false, nil
		}
		s.OwnerPID = 0
		s.LastUsedAt = r.now()
		entries[branch] = s
		return true, nil
	})
}

// Touch records a use of the entry without changing ownership.
func (r *Registry) Touch(ctx context.Context, repo, branch string) error {
	return r.update(ctx, repo, func(entries map[string]session.Session) (bool, error) {
		s, ok := entries[branch]
		if !ok {
			return false, nil
		}
		s.LastUsedAt = r.now()
		entries[branch] = s
		return true, nil
	})
}

// Adopt registers discovered sessions that have no entry yet and returns the
// ones it added.
func (r *Registry) Adopt(ctx context.Context, repo string, found []session.Session) ([]session.Session, error) {
	var added []session.Session
	err := r.update(ctx, repo, func(entries map[string]session.Session) (bool, error) {
		for _, s := range found {
			if s.Kind == session.KindPrimary {
				continue
			}
			if _, ok := entries[s.Branch]; ok {
				continue
			}
			if s.CreatedAt.IsZero() {
				s.CreatedAt = r.now()
			}
			entries[s.Branch] = s
			added = append(added, s)
		}
		return len(added) > 0, nil
	})
	if len(added) > 0 {
		logger.WithComponent("registry").Info("adopted unregistered worktrees", "repo", repo, "count", len(added))
	}
	return added, err
}
