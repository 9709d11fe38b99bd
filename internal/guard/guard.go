// Package guard decides whether a worktree may be deleted without losing
// uncommitted work.
package guard

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/zhubert/claudway/internal/git"
	"github.com/zhubert/claudway/internal/logger"
)

// Entry is one `git status --porcelain -z` record.
type Entry struct {
	Status string
	Path   string
}

// ChangeSummary describes the uncommitted state of a worktree relative to
// its own branch tip.
type ChangeSummary struct {
	Modified  int
	Added     int
	Deleted   int
	Renamed   int
	Untracked int
	Entries   []Entry
}

// Empty reports whether the worktree has nothing to lose.
func (c ChangeSummary) Empty() bool {
	return len(c.Entries) == 0
}

// String renders counts such as "2 modified files, 1 untracked file".
func (c ChangeSummary) String() string {
	if c.Empty() {
		return "no uncommitted changes"
	}
	var parts []string
	add := func(n int, label string) {
		if n == 0 {
			return
		}
		noun := "files"
		if n == 1 {
			noun = "file"
		}
		parts = append(parts, fmt.Sprintf("%d %s %s", n, label, noun))
	}
	add(c.Modified, "modified")
	add(c.Added, "added")
	add(c.Deleted, "deleted")
	add(c.Renamed, "renamed")
	add(c.Untracked, "untracked")
	return strings.Join(parts, ", ")
}

// Preview renders at most limit entries, one per line, followed by a count of
// the rest.
func (c ChangeSummary) Preview(limit int) []string {
	var lines []string
	for i, e := range c.Entries {
		if i == limit {
			lines = append(lines, fmt.Sprintf("... and %d more", len(c.Entries)-limit))
			break
		}
		lines = append(lines, fmt.Sprintf("%-2s %s", e.Status, e.Path))
	}
	return lines
}

// Assess reports the uncommitted changes in the worktree at path. A missing
// directory has nothing to lose and yields an empty summary.
func Assess(ctx context.Context, gs *git.GitService, path string) (ChangeSummary, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ChangeSummary{}, nil
	}
	lines, err := gs.StatusPorcelain(ctx, path)
	if err != nil {
		return ChangeSummary{}, err
	}
	summary := Parse(lines)
	logger.WithComponent("guard").Debug("assessed worktree", "path", path, "summary", summary.String())
	return summary, nil
}

// Parse builds a summary from "XY path" porcelain records.
func Parse(lines []string) ChangeSummary {
	var c ChangeSummary
	for _, line := range lines {
		if len(line) < 4 {
			continue
		}
		c.add(Entry{Status: strings.TrimSpace(line[:2]), Path: line[3:]})
	}
	return c
}

func (c *ChangeSummary) add(e Entry) {
	c.Entries = append(c.Entries, e)
	switch {
	case e.Status == "??":
		c.Untracked++
	case strings.ContainsAny(e.Status, "RC"):
		c.Renamed++
	case strings.ContainsRune(e.Status, 'D'):
		c.Deleted++
	case strings.HasPrefix(e.Status, "A"):
		c.Added++
	default:
		c.Modified++
	}
}

// Excluding drops untracked entries for exactly the given paths. The
// dependency symlinks placed by the asset sync show up that way and are not
// work anyone could lose.
func (c ChangeSummary) Excluding(paths ...string) ChangeSummary {
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		skip[p] = true
	}
	var out ChangeSummary
	for _, e := range c.Entries {
		if e.Status == "??" && skip[e.Path] {
			continue
		}
		out.add(e)
	}
	return out
}

// Decision is the outcome of DecideRemoval.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// ConfirmFunc asks the user whether to discard the summarized changes.
type ConfirmFunc func(ChangeSummary) (bool, error)

// DecideRemoval allows removal of a clean worktree without asking, allows
// any removal when forced, and otherwise requires an explicit yes. A failed
// confirmation denies.
func DecideRemoval(summary ChangeSummary, force bool, confirm ConfirmFunc) Decision {
	if summary.Empty() || force {
		return Allow
	}
	if confirm == nil {
		return Deny
	}
	ok, err := confirm(summary)
	if err != nil {
		logger.WithComponent("guard").Warn("confirmation failed, keeping worktree", "error", err)
		return Deny
	}
	if ok {
		return Allow
	}
	return Deny
}
