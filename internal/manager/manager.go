// Package manager drives the session lifecycle: it resolves a branch to a
// session, provisions and populates its worktree, runs a command in it and
// decides afterwards whether the worktree is kept or removed.
package manager

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/zhubert/claudway/internal/assets"
	"github.com/zhubert/claudway/internal/config"
	"github.com/zhubert/claudway/internal/errors"
	"github.com/zhubert/claudway/internal/git"
	"github.com/zhubert/claudway/internal/guard"
	"github.com/zhubert/claudway/internal/logger"
	"github.com/zhubert/claudway/internal/notification"
	"github.com/zhubert/claudway/internal/process"
	"github.com/zhubert/claudway/internal/registry"
	"github.com/zhubert/claudway/internal/session"
	"github.com/zhubert/claudway/internal/ui"
)

// Environment variables exported to every command launched in a session.
const (
	EnvBranch = "CW_BRANCH"
	EnvKind   = "CW_SESSION_KIND"
	EnvPath   = "CW_SESSION_PATH"
	EnvRepo   = "CW_REPO"
)

// Change previews are capped so a huge diff does not scroll the prompt away.
const (
	finalizePreviewLimit = 15
	removePreviewLimit   = 10
)

// Options wires a Manager. Zero fields get production defaults where one
// exists; Git, Provisioner and Registry are required.
type Options struct {
	Git          *git.GitService
	Provisioner  *session.Provisioner
	Registry     *registry.Registry
	Synchronizer *assets.Synchronizer
	Launcher     process.Launcher
	Prompter     ui.Prompter
	Config       *config.Config

	// Out receives user-facing progress; defaults to os.Stdout.
	Out io.Writer
	// Dir is where the repository is looked up from; defaults to the cwd.
	Dir string
	// PID identifies this invocation in the registry; defaults to os.Getpid().
	PID int
	// Environ is the base environment for launched commands.
	Environ func() []string
	// Notify is called when the session command exits and notifications are on.
	Notify func(branch string, exitCode int) error
}

// Manager composes the provisioner, registry, synchronizer, guard and
// launcher into the session lifecycle.
type Manager struct {
	git         *git.GitService
	provisioner *session.Provisioner
	registry    *registry.Registry
	sync        *assets.Synchronizer
	launcher    process.Launcher
	prompter    ui.Prompter
	cfg         *config.Config

	out     io.Writer
	dir     string
	pid     int
	environ func() []string
	notify  func(branch string, exitCode int) error
}

// New creates a Manager from opts.
func New(opts Options) *Manager {
	m := &Manager{
		git:         opts.Git,
		provisioner: opts.Provisioner,
		registry:    opts.Registry,
		sync:        opts.Synchronizer,
		launcher:    opts.Launcher,
		prompter:    opts.Prompter,
		cfg:         opts.Config,
		out:         opts.Out,
		dir:         opts.Dir,
		pid:         opts.PID,
		environ:     opts.Environ,
		notify:      opts.Notify,
	}
	if m.sync == nil {
		m.sync = assets.NewSynchronizer(m.git, nil)
	}
	if m.launcher == nil {
		m.launcher = process.NewShellLauncher()
	}
	if m.prompter == nil {
		m.prompter = ui.NewTerminal(os.Stdin, os.Stdout)
	}
	if m.cfg == nil {
		m.cfg = &config.Config{}
	}
	if m.out == nil {
		m.out = os.Stdout
	}
	if m.dir == "" {
		if wd, err := os.Getwd(); err == nil {
			m.dir = wd
		}
	}
	if m.pid == 0 {
		m.pid = os.Getpid()
	}
	if m.environ == nil {
		m.environ = os.Environ
	}
	if m.notify == nil {
		m.notify = notification.CommandFinished
	}
	return m
}

// workspace is the repository an operation runs against, with the settings
// resolved for it.
type workspace struct {
	repo     string
	primary  string
	settings config.Settings
}

// resolveRepo locates the controlling repository from the working directory,
// falling back to the configured repo_location outside any checkout.
func (m *Manager) resolveRepo(ctx context.Context) (workspace, error) {
	repo, err := m.git.Locate(ctx, m.dir)
	if err != nil {
		fallback := m.cfg.GetRepoLocation()
		if fallback == "" || !errors.Is(err, errors.KindNotARepository) {
			return workspace{}, err
		}
		logger.Debug("Manager: %s is not a repository, using repo_location %s", m.dir, fallback)
		if repo, err = m.git.Locate(ctx, fallback); err != nil {
			return workspace{}, err
		}
	}

	rc, err := config.LoadRepo(repo)
	if err != nil {
		return workspace{}, err
	}
	return workspace{
		repo:     repo,
		primary:  m.git.CurrentBranch(ctx, repo),
		settings: config.Resolve(m.cfg, rc),
	}, nil
}

// primarySession is the synthetic entry for the main checkout.
func (w workspace) primarySession() session.Session {
	return session.Session{Repo: w.repo, Branch: w.primary, Kind: session.KindPrimary, Path: w.repo}
}

func (m *Manager) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

// launch runs command in the session directory with the session environment.
func (m *Manager) launch(ctx context.Context, sess session.Session, command string) (int, error) {
	env := process.BuildEnv(m.environ(), map[string]string{
		EnvBranch: sess.Branch,
		EnvKind:   string(sess.Kind),
		EnvPath:   sess.Path,
		EnvRepo:   sess.Repo,
	})
	logger.WithSession(sess.Branch, string(sess.Kind)).Info("launching", "command", command, "dir", sess.Path)
	return m.launcher.Launch(ctx, process.Spec{Command: command, Dir: sess.Path, Env: env})
}

// sessionItems turns sessions into picker items grouped by kind.
func sessionItems(sessions []session.Session) []ui.Item {
	items := make([]ui.Item, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, ui.Item{
			Label:   s.Branch,
			Value:   s.Branch,
			Group:   kindGroup(s.Kind),
			Recency: s.Recency(),
			Note:    s.Path,
		})
	}
	return items
}

func kindGroup(k session.Kind) string {
	switch k {
	case session.KindPrimary:
		return "Primary"
	case session.KindPersistent:
		return "Persistent"
	default:
		return "Temporary"
	}
}

// pickSession asks the user to choose one of sessions. Without a terminal the
// branch has to be passed as an argument.
func (m *Manager) pickSession(ctx context.Context, op errors.Op, title string, sessions []session.Session) (string, error) {
	if len(sessions) == 0 {
		return "", errors.E(op, errors.KindNotFound, "no sessions to choose from")
	}
	if !m.prompter.Interactive() {
		return "", errors.E(op, errors.KindInvalid, "no terminal attached; pass a branch name")
	}
	sel, err := m.prompter.Pick(ctx, title, sessionItems(sessions), false)
	if err != nil {
		return "", err
	}
	return sel.Item.Value, nil
}

// sessionsWithPrimary lists registry sessions with the primary entry first.
func (m *Manager) sessionsWithPrimary(ctx context.Context, ws workspace) ([]session.Session, error) {
	list, err := m.registry.List(ctx, ws.repo)
	if err != nil {
		return nil, err
	}
	return append([]session.Session{ws.primarySession()}, list...), nil
}

// assess reports the uncommitted changes in a session, ignoring the
// dependency links the asset sync created.
func (m *Manager) assess(ctx context.Context, ws workspace, sess session.Session) (guard.ChangeSummary, error) {
	summary, err := guard.Assess(ctx, m.git, sess.Path)
	if err != nil {
		return guard.ChangeSummary{}, err
	}
	return summary.Excluding(ws.settings.Links...), nil
}
