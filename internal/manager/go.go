package manager

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/zhubert/claudway/internal/assets"
	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/git"
	"github.com/zhubert/claudway/internal/guard"
	"github.com/zhubert/claudway/internal/logger"
	"github.com/zhubert/claudway/internal/session"
	"github.com/zhubert/claudway/internal/ui"
)

// GoOptions selects the branch and command for Go.
type GoOptions struct {
	// Branch to work on. Empty opens the branch picker.
	Branch string
	// Command overrides the configured default command.
	Command string
	// ShellOnly launches an interactive shell instead of any command.
	ShellOnly bool
	// Persistent keeps the worktree for reuse after the command exits.
	Persistent bool
}

// Go runs the full lifecycle: resolve the branch, reuse or provision a
// worktree, sync assets into it, run the command, then keep or remove it.
func (m *Manager) Go(ctx context.Context, opts GoOptions) error {
	ws, err := m.resolveRepo(ctx)
	if err != nil {
		return err
	}

	branch, err := m.chooseBranch(ctx, ws, opts.Branch)
	if err != nil {
		return err
	}

	kind := session.KindTemporary
	if opts.Persistent {
		kind = session.KindPersistent
	}

	sess, reused, err := m.acquire(ctx, ws, branch, kind)
	if err != nil {
		return err
	}
	if !reused {
		if sess, err = m.provision(ctx, ws, sess); err != nil {
			return err
		}
	}

	if err := m.syncAssets(ctx, ws, sess); err != nil {
		return err
	}

	m.printf("\n%s %s\n", ui.SuccessStyle.Render("Worktree ready!"), ui.MutedStyle.Render(sess.Path))
	m.printf("%s %s\n\n", ui.MutedStyle.Render("Branch:"), ui.BranchStyle.Render(sess.Branch))

	// Interrupts from here on belong to the child; cleanup must still run.
	runCtx := context.WithoutCancel(ctx)
	runErr := m.run(runCtx, ws, sess, opts)

	var finalErr error
	if sess.Kind == session.KindTemporary {
		finalErr = m.finalizeTemporary(runCtx, ws, sess)
	} else {
		finalErr = m.finalizePersistent(runCtx, sess)
	}
	return stderrors.Join(runErr, finalErr)
}

// chooseBranch returns the normalized branch from arg, the picker or, without
// a terminal, a typed name.
func (m *Manager) chooseBranch(ctx context.Context, ws workspace, arg string) (string, error) {
	validate := func(s string) error {
		return session.ValidateBranchName(session.NormalizeBranch(s))
	}
	checked := func(name string) (string, error) {
		if err := validate(name); err != nil {
			return "", errors.E(errors.Op("manager.Go"), errors.KindInvalid, err)
		}
		return session.NormalizeBranch(name), nil
	}

	if arg != "" {
		return checked(arg)
	}
	if !m.prompter.Interactive() {
		name, err := m.prompter.Input(ctx, "Branch name", "feature/my-change", validate)
		if err != nil {
			return "", err
		}
		return checked(name)
	}

	items, err := m.branchItems(ctx, ws)
	if err != nil {
		return "", err
	}
	sel, err := m.prompter.Pick(ctx, "Select a branch", items, true)
	if err != nil {
		return "", err
	}
	if !sel.CreateNew {
		return sel.Item.Value, nil
	}

	name := strings.TrimSpace(sel.Name)
	if name == "" {
		if name, err = m.prompter.Input(ctx, "New branch name", "feature/my-change", validate); err != nil {
			return "", err
		}
	}
	return checked(name)
}

// branchItems lists local branches other than the primary checkout's, then
// branches that exist only on origin.
func (m *Manager) branchItems(ctx context.Context, ws workspace) ([]ui.Item, error) {
	branches, err := git.ListBranches(ws.repo)
	if err != nil {
		return nil, err
	}
	sessions, err := m.registry.List(ctx, ws.repo)
	if err != nil {
		return nil, err
	}
	kinds := make(map[string]session.Kind, len(sessions))
	for _, s := range sessions {
		kinds[s.Branch] = s.Kind
	}

	items := make([]ui.Item, 0, len(branches))
	for _, b := range branches {
		item := ui.Item{Label: b.Name, Value: b.Name, Group: "Local branches", Recency: b.CommitTime}
		if b.Remote {
			item.Label = "origin/" + b.Name
			item.Group = "Remote branches"
		} else if b.Name == ws.primary {
			continue
		}
		if k, ok := kinds[b.Name]; ok {
			item.Note = string(k)
		}
		items = append(items, item)
	}
	return items, nil
}

// acquire finds a reusable session for branch or reserves a new one. The
// reservation is recorded before anything touches the disk so a concurrent
// invocation for the same branch fails fast.
func (m *Manager) acquire(ctx context.Context, ws workspace, branch string, kind session.Kind) (session.Session, bool, error) {
	if branch == ws.primary {
		return session.Session{}, false, errors.BranchCheckedOutElsewhere(branch, ws.repo)
	}

	existing, ok, err := m.registry.Get(ctx, ws.repo, branch)
	if err != nil {
		return session.Session{}, false, err
	}
	if ok {
		switch existing.Kind {
		case session.KindPersistent:
			claimed, err := m.registry.Claim(ctx, ws.repo, branch, m.pid)
			if err != nil {
				return session.Session{}, false, err
			}
			m.printf("%s persistent session for %s\n", ui.SuccessStyle.Render("Reusing"), ui.BranchStyle.Render(branch))
			return claimed, true, nil

		case session.KindTemporary:
			if existing.OwnerPID != m.pid && m.registry.OwnedByLiveProcess(existing) {
				return session.Session{}, false, errors.DuplicateActiveSession(branch, existing.OwnerPID)
			}
			if _, err := os.Stat(existing.Path); err == nil {
				claimed, err := m.registry.Claim(ctx, ws.repo, branch, m.pid)
				if err != nil {
					return session.Session{}, false, err
				}
				logger.Info("Manager: adopting abandoned temporary session %s at %s", branch, existing.Path)
				m.printf("%s interrupted session for %s\n", ui.SuccessStyle.Render("Resuming"), ui.BranchStyle.Render(branch))
				if kind == session.KindPersistent {
					m.printf("%s\n", ui.WarningStyle.Render("This session was started as temporary and stays temporary; its worktree is removed on exit."))
				}
				return claimed, true, nil
			}
		}
	}

	planned, err := m.provisioner.Plan(ws.repo, branch, kind)
	if err != nil {
		return session.Session{}, false, err
	}
	planned.OwnerPID = m.pid
	if err := m.registry.Put(ctx, planned); err != nil {
		return session.Session{}, false, err
	}
	return planned, false, nil
}

// provision creates the worktree for a reserved session. A failed creation
// drops the reservation unless it was interrupted, in which case the entry
// lets a retry pick up whatever git managed to create.
func (m *Manager) provision(ctx context.Context, ws workspace, planned session.Session) (session.Session, error) {
	m.printf("Creating %s worktree for %s ...\n", planned.Kind, ui.BranchStyle.Render(planned.Branch))

	sess, err := m.provisioner.Provision(ctx, planned, ws.primary)
	if err != nil {
		if ctx.Err() == nil {
			if rmErr := m.registry.Remove(ctx, ws.repo, planned.Branch); rmErr != nil {
				logger.Warn("Manager: failed to drop reservation for %s: %v", planned.Branch, rmErr)
			}
		}
		return session.Session{}, err
	}

	sess.OwnerPID = m.pid
	if err := m.registry.Put(ctx, sess); err != nil {
		return session.Session{}, err
	}
	m.printf("%s Worktree created for %s\n", ui.SuccessStyle.Render("✓"), ui.BranchStyle.Render(sess.Branch))
	return sess, nil
}

// syncAssets populates the worktree. Only cancellation is fatal.
func (m *Manager) syncAssets(ctx context.Context, ws workspace, sess session.Session) error {
	report, err := m.sync.Sync(ctx, ws.repo, sess.Path, assets.Options{
		Exclude:  ws.settings.Exclude,
		Links:    ws.settings.Links,
		PostSync: ws.settings.PostSync,
	})
	if err != nil {
		return err
	}

	m.printf("%s Untracked files synced (%d copied, %d unchanged)\n", ui.SuccessStyle.Render("✓"), report.Copied, report.Skipped)
	if report.Linked > 0 {
		m.printf("%s Dependencies linked (%d)\n", ui.SuccessStyle.Render("✓"), report.Linked)
	}
	for _, w := range report.Warnings {
		m.printf("%s %v\n", ui.WarningStyle.Render("warning:"), w)
	}
	return nil
}

// run launches the session command and then, unless the user asked for a
// shell in the first place, drops into a shell in the worktree.
func (m *Manager) run(ctx context.Context, ws workspace, sess session.Session, opts GoOptions) error {
	if !opts.ShellOnly {
		command := opts.Command
		if command == "" {
			command = ws.settings.DefaultCommand
		}
		m.printf("%s %s\n\n", ui.TitleStyle.Render("Launching:"), command)

		code, err := m.launch(ctx, sess, command)
		if err != nil {
			m.printf("%s %v\n", ui.ErrorStyle.Render("failed to launch:"), err)
			return err
		}
		if code != 0 {
			m.printf("%s\n", ui.WarningStyle.Render(fmt.Sprintf("%s exited with status %d", command, code)))
		}
		if ws.settings.NotificationsEnabled {
			if err := m.notify(sess.Branch, code); err != nil {
				logger.Warn("Manager: notification failed: %v", err)
			}
		}
		m.printf("%s\n\n", ui.MutedStyle.Render("Dropping into shell. Type 'exit' to finish."))
	}

	_, err := m.launch(ctx, sess, "")
	return err
}

// finalizeTemporary removes the worktree once nothing would be lost. With
// uncommitted changes only an explicit yes discards them; any other answer
// goes back to a shell, repeatedly. When no answer can be obtained the
// worktree is kept.
func (m *Manager) finalizeTemporary(ctx context.Context, ws workspace, sess session.Session) error {
	for {
		summary, err := m.assess(ctx, ws, sess)
		if err != nil {
			return m.keep(ctx, sess, err)
		}

		var promptErr error
		decision := guard.DecideRemoval(summary, false, func(s guard.ChangeSummary) (bool, error) {
			m.printf("\n%s\n", ui.WarningStyle.Render("⚠  Uncommitted changes"))
			m.printf("%s\n\n", ui.MutedStyle.Render("These will be lost when the worktree is removed."))
			m.printf("%s\n", ui.RenderChanges(s, finalizePreviewLimit))
			discard, err := m.prompter.Confirm(ctx, "Discard "+s.String()+" and remove the worktree?",
				"Choose No to return to the shell and stash, stage or commit.", false)
			if err != nil {
				promptErr = err
				return false, err
			}
			return discard, nil
		})

		if decision == guard.Allow {
			return m.discard(ctx, sess)
		}
		if promptErr != nil {
			return m.keep(ctx, sess, promptErr)
		}

		m.printf("%s\n\n", ui.MutedStyle.Render("Returning to shell. Type 'exit' when done."))
		if _, err := m.launch(ctx, sess, ""); err != nil {
			return m.keep(ctx, sess, err)
		}
	}
}

func (m *Manager) discard(ctx context.Context, sess session.Session) error {
	m.printf("\n%s\n", ui.WarningStyle.Render("Cleaning up worktree ..."))
	if err := m.provisioner.Remove(ctx, sess); err != nil {
		return err
	}
	if err := m.registry.Remove(ctx, sess.Repo, sess.Branch); err != nil {
		return err
	}
	m.printf("%s\n", ui.SuccessStyle.Render("Done."))
	return nil
}

// keep leaves the worktree on disk and releases it so `cw rm` or `cw clean`
// can deal with it later.
func (m *Manager) keep(ctx context.Context, sess session.Session, cause error) error {
	logger.Warn("Manager: keeping %s at %s: %v", sess.Branch, sess.Path, cause)
	if err := m.registry.Release(ctx, sess.Repo, sess.Branch, m.pid); err != nil {
		return err
	}
	m.printf("\n%s %s\n", ui.WarningStyle.Render("Worktree kept at"), sess.Path)
	m.printf("%s\n", ui.MutedStyle.Render("Remove it later with: cw rm "+sess.Branch))
	return nil
}

func (m *Manager) finalizePersistent(ctx context.Context, sess session.Session) error {
	if err := m.registry.Touch(ctx, sess.Repo, sess.Branch); err != nil {
		return err
	}
	if err := m.registry.Release(ctx, sess.Repo, sess.Branch, m.pid); err != nil {
		return err
	}
	m.printf("\n%s %s\n", ui.SuccessStyle.Render("Session kept at"), sess.Path)
	return nil
}
