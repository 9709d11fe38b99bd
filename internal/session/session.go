package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/claudway/internal/paths"
)

// Kind is the lifetime class of a session.
type Kind string

const (
	// KindPrimary is the main checkout. It is never created or destroyed.
	KindPrimary Kind = "primary"
	// KindPersistent survives across invocations and is reused.
	KindPersistent Kind = "persistent"
	// KindTemporary is removed when its interactive phase ends.
	KindTemporary Kind = "temporary"
)

// Rank orders kinds for display: primary, persistent, temporary.
func (k Kind) Rank() int {
	switch k {
	case KindPrimary:
		return 0
	case KindPersistent:
		return 1
	case KindTemporary:
		return 2
	default:
		return 3
	}
}

// Session is one working directory bound to a branch of a repository.
// (Repo, Branch) identifies it; Path is derived from those and Kind.
type Session struct {
	Repo       string    `json:"repo"`
	Branch     string    `json:"branch"`
	Kind       Kind      `json:"kind"`
	Path       string    `json:"path"`
	BaseBranch string    `json:"base_branch,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	OwnerPID   int       `json:"owner_pid,omitempty"`
}

// Recency is the timestamp sessions are ordered by, most recent first.
func (s Session) Recency() time.Time {
	if s.LastUsedAt.After(s.CreatedAt) {
		return s.LastUsedAt
	}
	return s.CreatedAt
}

// MaxBranchNameLength bounds user-supplied branch names.
const MaxBranchNameLength = 100

var validBranchNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9/_.-]*$`)

// ValidateBranchName checks a user-supplied branch name before any git call.
func ValidateBranchName(branch string) error {
	switch {
	case branch == "":
		return fmt.Errorf("branch name is required")
	case len(branch) > MaxBranchNameLength:
		return fmt.Errorf("branch name too long (max %d characters)", MaxBranchNameLength)
	case strings.HasPrefix(branch, "-"):
		return fmt.Errorf("branch name cannot start with '-'")
	case strings.HasSuffix(branch, ".lock"):
		return fmt.Errorf("branch name cannot end with '.lock'")
	case strings.HasSuffix(branch, "/"):
		return fmt.Errorf("branch name cannot end with '/'")
	case strings.Contains(branch, ".."):
		return fmt.Errorf("branch name cannot contain '..'")
	case strings.Contains(branch, "//"):
		return fmt.Errorf("branch name cannot contain '//'")
	case !validBranchNameRegex.MatchString(branch):
		return fmt.Errorf("branch name contains invalid characters (use letters, numbers, /, _, ., -)")
	}
	return nil
}

// NormalizeBranch strips a leading origin/ so a remote branch picked by its
// remote name maps to the local branch of the same name.
func NormalizeBranch(branch string) string {
	return strings.TrimPrefix(strings.TrimSpace(branch), "origin/")
}

// sanitize turns a branch name into a single path component.
func sanitize(branch string) string {
	return strings.NewReplacer("/", "-", "\\", "-").Replace(branch)
}

// PersistentPath is where a persistent session for (repo, branch) lives.
// The hash keeps same-named branches of different repositories apart.
func PersistentPath(root, repo, branch string) string {
	sum := sha256.Sum256([]byte(branch + ":" + repo))
	return filepath.Join(root, sanitize(branch)+"-"+hex.EncodeToString(sum[:])[:8])
}

// TemporaryPath returns a fresh, unique directory for a temporary session.
func TemporaryPath(root, branch string) string {
	return filepath.Join(root, paths.TempPrefix+sanitize(branch)+"-"+uuid.New().String()[:8])
}

// Classify maps a worktree path to the kind implied by where it lives.
// ok is false for worktrees outside cw's storage roots.
func Classify(repo, path, persistentRoot, tempRoot string) (Kind, bool) {
	clean := filepath.Clean(path)
	switch {
	case clean == filepath.Clean(repo):
		return KindPrimary, true
	case isUnder(clean, persistentRoot):
		return KindPersistent, true
	case isUnder(clean, tempRoot) && strings.HasPrefix(filepath.Base(clean), paths.TempPrefix):
		return KindTemporary, true
	}
	return "", false
}

func isUnder(path, root string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
