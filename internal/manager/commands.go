package manager

import (
	"context"
	"fmt"
	"os"

	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/guard"
	"github.com/zhubert/claudway/internal/logger"
	"github.com/zhubert/claudway/internal/session"
	"github.com/zhubert/claudway/internal/ui"
)

func findSession(sessions []session.Session, branch string) (session.Session, bool) {
	for _, s := range sessions {
		if s.Branch == branch {
			return s, true
		}
	}
	return session.Session{}, false
}

// lookup resolves branch, or asks for one, among the repository's sessions.
func (m *Manager) lookup(ctx context.Context, op errors.Op, title, branch string) (workspace, session.Session, error) {
	ws, err := m.resolveRepo(ctx)
	if err != nil {
		return workspace{}, session.Session{}, err
	}
	sessions, err := m.sessionsWithPrimary(ctx, ws)
	if err != nil {
		return workspace{}, session.Session{}, err
	}

	if branch == "" {
		if branch, err = m.pickSession(ctx, op, title, sessions); err != nil {
			return workspace{}, session.Session{}, err
		}
	}
	branch = session.NormalizeBranch(branch)

	sess, ok := findSession(sessions, branch)
	if !ok {
		return workspace{}, session.Session{}, errors.E(op, errors.KindNotFound,
			fmt.Sprintf("no session for %s; start one with: cw go %s", branch, branch))
	}
	return ws, sess, nil
}

// Switch opens a shell in an existing session.
func (m *Manager) Switch(ctx context.Context, branch string) error {
	const op = errors.Op("manager.Switch")

	_, sess, err := m.lookup(ctx, op, "Switch to session", branch)
	if err != nil {
		return err
	}
	if _, err := os.Stat(sess.Path); err != nil {
		return errors.E(op, errors.KindNotFound, errors.Path(sess.Path),
			fmt.Sprintf("worktree directory does not exist: %s", sess.Path))
	}

	if sess.Kind == session.KindTemporary {
		m.printf("\n%s\n", ui.WarningStyle.Render("Warning: this is a temporary worktree. It will be deleted when the original session exits."))
		m.printf("%s\n", ui.MutedStyle.Render("Tip: use 'cw go -p <branch>' to create persistent worktrees that won't be cleaned up."))
	}

	m.printf("\n%s %s\n", ui.SuccessStyle.Render("Switching to:"), ui.BranchStyle.Render(sess.Branch))
	m.printf("%s\n", ui.MutedStyle.Render(sess.Path))
	m.printf("%s\n\n", ui.MutedStyle.Render("Type 'exit' to leave."))

	runCtx := context.WithoutCancel(ctx)
	if _, err := m.launch(runCtx, sess, ""); err != nil {
		return err
	}
	if sess.Kind == session.KindPersistent {
		return m.registry.Touch(runCtx, sess.Repo, sess.Branch)
	}
	return nil
}

// Remove deletes a session's worktree after the safety guard allows it. The
// branch itself is kept.
func (m *Manager) Remove(ctx context.Context, branch string, force bool) error {
	const op = errors.Op("manager.Remove")

	ws, err := m.resolveRepo(ctx)
	if err != nil {
		return err
	}
	if branch == "" {
		list, err := m.registry.List(ctx, ws.repo)
		if err != nil {
			return err
		}
		if branch, err = m.pickSession(ctx, op, "Remove session", list); err != nil {
			return err
		}
	}
	branch = session.NormalizeBranch(branch)

	if branch == ws.primary {
		return errors.E(op, errors.KindInvalid, "the primary checkout cannot be removed")
	}
	sess, ok, err := m.registry.Get(ctx, ws.repo, branch)
	if err != nil {
		return err
	}
	if !ok {
		return errors.E(op, errors.KindNotFound, fmt.Sprintf("no session for %s", branch))
	}
	if sess.OwnerPID != m.pid && m.registry.OwnedByLiveProcess(sess) {
		return errors.DuplicateActiveSession(branch, sess.OwnerPID)
	}

	summary, err := m.assess(ctx, ws, sess)
	if err != nil {
		return err
	}
	decision := guard.DecideRemoval(summary, force, func(s guard.ChangeSummary) (bool, error) {
		m.printf("%s %s has %s:\n", ui.WarningStyle.Render("⚠"), ui.BranchStyle.Render(sess.Branch), s.String())
		m.printf("%s\n", ui.RenderChanges(s, removePreviewLimit))
		return m.prompter.Confirm(ctx, "Remove anyway?", "Uncommitted changes will be lost.", false)
	})
	if decision == guard.Deny {
		return errors.UncommittedChangesBlockRemoval(sess.Path, summary.String())
	}

	if err := m.provisioner.Remove(ctx, sess); err != nil {
		return err
	}
	if err := m.registry.Remove(ctx, ws.repo, branch); err != nil {
		return err
	}
	m.printf("%s Removed %s session %s\n", ui.SuccessStyle.Render("✓"), sess.Kind, ui.BranchStyle.Render(branch))
	return nil
}

// Overview is the data behind `cw status`.
type Overview struct {
	Repo string
	Rows []ui.SessionRow
}

// Status lists the repository's sessions, first recording any worktrees in
// the storage roots that the registry does not know about.
func (m *Manager) Status(ctx context.Context) (Overview, error) {
	ws, err := m.resolveRepo(ctx)
	if err != nil {
		return Overview{}, err
	}
	if err := m.adoptOrphans(ctx, ws); err != nil {
		return Overview{}, err
	}

	list, err := m.registry.List(ctx, ws.repo)
	if err != nil {
		return Overview{}, err
	}
	rows := make([]ui.SessionRow, 0, len(list)+1)
	rows = append(rows, ui.SessionRow{Session: ws.primarySession()})
	for _, s := range list {
		rows = append(rows, ui.SessionRow{Session: s, Active: m.registry.OwnedByLiveProcess(s)})
	}
	return Overview{Repo: ws.repo, Rows: rows}, nil
}

func (m *Manager) adoptOrphans(ctx context.Context, ws workspace) error {
	found, err := m.provisioner.Discover(ctx, ws.repo)
	if err != nil {
		return err
	}
	adopted, err := m.registry.Adopt(ctx, ws.repo, found)
	if err != nil {
		return err
	}
	for _, s := range adopted {
		logger.Info("Manager: adopted %s worktree %s at %s", s.Kind, s.Branch, s.Path)
	}
	return nil
}

// Path returns the working directory of the session for branch.
func (m *Manager) Path(ctx context.Context, branch string) (string, error) {
	_, sess, err := m.lookup(ctx, errors.Op("manager.Path"), "Select a session", branch)
	if err != nil {
		return "", err
	}
	return sess.Path, nil
}

// CleanPlan lists what Clean would remove.
type CleanPlan struct {
	Repo string
	// StaleDirs are directories in the storage roots git no longer tracks.
	StaleDirs []string
	// Abandoned are temporary sessions with no live owner and nothing to lose.
	Abandoned []session.Session
	// Dirty are abandoned temporary sessions kept for their uncommitted changes.
	Dirty []session.Session

	ws workspace
}

// Empty reports whether there is nothing to clean.
func (p CleanPlan) Empty() bool {
	return len(p.StaleDirs) == 0 && len(p.Abandoned) == 0
}

// CleanResult counts what Clean removed.
type CleanResult struct {
	RemovedDirs     int
	RemovedSessions int
	// Skipped counts planned sessions that were resumed or changed before
	// Clean got to them.
	Skipped  int
	Warnings []error
}

// PlanClean reconciles the registry with the disk and finds leftovers.
// Registry entries whose directory vanished are dropped on the way.
func (m *Manager) PlanClean(ctx context.Context) (CleanPlan, error) {
	ws, err := m.resolveRepo(ctx)
	if err != nil {
		return CleanPlan{}, err
	}
	if err := m.adoptOrphans(ctx, ws); err != nil {
		return CleanPlan{}, err
	}

	plan := CleanPlan{Repo: ws.repo, ws: ws}
	if plan.StaleDirs, err = m.provisioner.FindStale(ctx, ws.repo); err != nil {
		return CleanPlan{}, err
	}

	list, err := m.registry.List(ctx, ws.repo)
	if err != nil {
		return CleanPlan{}, err
	}
	for _, s := range list {
		if s.Kind != session.KindTemporary || m.registry.OwnedByLiveProcess(s) {
			continue
		}
		summary, err := m.assess(ctx, ws, s)
		if err != nil {
			logger.Warn("Manager: cannot assess %s: %v", s.Path, err)
			plan.Dirty = append(plan.Dirty, s)
			continue
		}
		if summary.Empty() {
			plan.Abandoned = append(plan.Abandoned, s)
		} else {
			plan.Dirty = append(plan.Dirty, s)
		}
	}
	return plan, nil
}

// Clean removes everything in plan. Each abandoned session is claimed and
// assessed again first, so one resumed or edited since the plan is left
// alone. Individual failures are collected as warnings.
func (m *Manager) Clean(ctx context.Context, plan CleanPlan) CleanResult {
	var res CleanResult
	for _, dir := range plan.StaleDirs {
		if err := m.provisioner.RemoveStale(ctx, plan.Repo, dir); err != nil {
			res.Warnings = append(res.Warnings, err)
			continue
		}
		res.RemovedDirs++
	}
	for _, s := range plan.Abandoned {
		removed, err := m.cleanSession(ctx, plan, s)
		if err != nil {
			res.Warnings = append(res.Warnings, err)
			continue
		}
		if removed {
			res.RemovedSessions++
		} else {
			res.Skipped++
		}
	}
	return res
}

func (m *Manager) cleanSession(ctx context.Context, plan CleanPlan, s session.Session) (bool, error) {
	claimed, err := m.registry.Claim(ctx, plan.Repo, s.Branch, m.pid)
	if err != nil {
		if errors.Is(err, errors.KindDuplicateActiveSession) || errors.Is(err, errors.KindNotFound) {
			logger.Info("Manager: skipping %s, claimed or removed since planning", s.Branch)
			return false, nil
		}
		return false, err
	}

	summary, err := m.assess(ctx, plan.ws, claimed)
	if err != nil || !summary.Empty() {
		if err == nil {
			logger.Info("Manager: skipping %s, %s since planning", s.Branch, summary.String())
		}
		if relErr := m.registry.Release(ctx, plan.Repo, s.Branch, m.pid); relErr != nil {
			logger.Warn("Manager: failed to release %s: %v", s.Branch, relErr)
		}
		return false, err
	}

	if err := m.provisioner.Remove(ctx, claimed); err != nil {
		if relErr := m.registry.Release(ctx, plan.Repo, s.Branch, m.pid); relErr != nil {
			logger.Warn("Manager: failed to release %s: %v", s.Branch, relErr)
		}
		return false, err
	}
	if err := m.registry.Remove(ctx, plan.Repo, s.Branch); err != nil {
		return false, err
	}
	return true, nil
}
