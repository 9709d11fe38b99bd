// Package errors provides structured error types for cw.
// Every failure surfaced to the user carries the operation that failed and a
// Kind that decides how the command line reports it.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Op describes an operation, usually as "package.Function".
type Op string

// Path names the filesystem location an error is about.
type Path string

// Kind categorizes the type of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalid
	KindIO
	KindConfig
	KindGit

	// KindNotARepository: the working directory is not inside a git repository.
	KindNotARepository
	// KindBranchCheckedOutElsewhere: git refuses because the branch is attached
	// to another worktree.
	KindBranchCheckedOutElsewhere
	// KindDuplicateActiveSession: another live process owns the session.
	KindDuplicateActiveSession
	// KindSelectionCancelled: the user aborted a picker or prompt.
	KindSelectionCancelled
	// KindUncommittedChangesBlockRemoval: removal was declined because of
	// outstanding changes.
	KindUncommittedChangesBlockRemoval
	// KindSyncWarning: a non-fatal asset synchronization failure.
	KindSyncWarning
	// KindProvisionerFailure: git failed to create or remove a worktree.
	KindProvisionerFailure
	// KindRegistryCorruption: the registry file could not be parsed.
	KindRegistryCorruption
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalid:
		return "invalid"
	case KindIO:
		return "I/O error"
	case KindConfig:
		return "configuration error"
	case KindGit:
		return "git error"
	case KindNotARepository:
		return "not a repository"
	case KindBranchCheckedOutElsewhere:
		return "branch checked out elsewhere"
	case KindDuplicateActiveSession:
		return "session already active"
	case KindSelectionCancelled:
		return "cancelled"
	case KindUncommittedChangesBlockRemoval:
		return "uncommitted changes"
	case KindSyncWarning:
		return "sync warning"
	case KindProvisionerFailure:
		return "worktree provisioning failed"
	case KindRegistryCorruption:
		return "registry corrupted"
	default:
		return "unknown error"
	}
}

// Error is the structured error type for cw.
type Error struct {
	Op      Op     // Operation that failed
	Kind    Kind   // Category of error
	Err     error  // Underlying error
	Context string // Additional context
	Path    string // Related filesystem path, if any
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Context, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error. Arguments can be:
// - Op: the operation name
// - Kind: the error kind
// - Path: the related path
// - string: context message
// - error: the underlying error
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case Path:
			e.Path = string(a)
		case string:
			e.Context = a
		case error:
			e.Err = a
		}
	}
	if e.Err == nil {
		e.Err = errors.New(e.Context)
		e.Context = ""
	}
	return e
}

// Is reports whether err, or anything it wraps, is of the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// GetKind returns the Kind of the outermost structured error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PathOf returns the path attached to the outermost structured error that has one.
func PathOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Path != "" {
			return e.Path
		}
		err = e.Err
	}
	return ""
}

// Exit codes reported by the cw binary.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 130
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case Is(err, KindSelectionCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	default:
		return ExitFailure
	}
}

// NotARepository reports that dir is not inside a git repository.
func NotARepository(dir string) error {
	return E(Op("git.Locate"), KindNotARepository, Path(dir), fmt.Sprintf("%s is not inside a git repository", dir))
}

// BranchCheckedOutElsewhere reports that branch is attached to the worktree at path.
func BranchCheckedOutElsewhere(branch, path string) error {
	msg := fmt.Sprintf("branch %s is already checked out", branch)
	if path != "" {
		msg = fmt.Sprintf("branch %s is already checked out at %s", branch, path)
	}
	return E(Op("session.Create"), KindBranchCheckedOutElsewhere, Path(path), msg)
}

// DuplicateActiveSession reports that pid still owns the session for branch.
func DuplicateActiveSession(branch string, pid int) error {
	return E(Op("registry.Put"), KindDuplicateActiveSession,
		fmt.Sprintf("a session for %s is already active (pid %d)", branch, pid))
}

// SelectionCancelled reports that the user aborted a choice.
func SelectionCancelled(op Op) error {
	return E(op, KindSelectionCancelled, "selection cancelled")
}

// UncommittedChangesBlockRemoval reports that removal of path was declined.
func UncommittedChangesBlockRemoval(path, summary string) error {
	return E(Op("guard.DecideRemoval"), KindUncommittedChangesBlockRemoval, Path(path),
		fmt.Sprintf("%s has %s", path, summary))
}

// SyncWarning reports a non-fatal failure while syncing rel.
func SyncWarning(rel string, err error) error {
	return E(Op("assets.Sync"), KindSyncWarning, Path(rel), rel, err)
}

// ProvisionerFailure wraps git output from a failed worktree operation.
func ProvisionerFailure(op Op, branch string, output string, err error) error {
	return E(op, KindProvisionerFailure, fmt.Sprintf("branch %s: %s", branch, output), err)
}

// RegistryCorruption reports an unreadable registry file.
func RegistryCorruption(path string, err error) error {
	return E(Op("registry.load"), KindRegistryCorruption, Path(path), fmt.Sprintf("cannot parse %s", path), err)
}

// ConfigLoadFailed reports an unreadable config file.
func ConfigLoadFailed(path string, err error) error {
	return E(Op("config.Load"), KindConfig, fmt.Sprintf("failed to load config from %s", path), err)
}

// ConfigSaveFailed reports a failed config write.
func ConfigSaveFailed(path string, err error) error {
	return E(Op("config.Save"), KindConfig, fmt.Sprintf("failed to save config to %s", path), err)
}

// CLINotFound reports a missing prerequisite binary.
func CLINotFound(name string) error {
	return E(Op("cli.Check"), KindNotFound, fmt.Sprintf("required CLI tool '%s' not found in PATH", name))
}
