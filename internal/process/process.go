// Package process launches the interactive command inside a session and
// answers whether a recorded owner process is still running.
package process

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/zhubert/claudway/internal/logger"
)

// Spec describes one interactive launch.
type Spec struct {
	// Command is a shell command line. Empty means an interactive login shell.
	Command string
	Dir     string
	Env     []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Launcher runs a terminal-attached child to completion.
type Launcher interface {
	Launch(ctx context.Context, spec Spec) (exitCode int, err error)
}

// ShellLauncher runs commands through sh -c, or $SHELL for interactive use.
type ShellLauncher struct{}

// NewShellLauncher returns a ShellLauncher.
func NewShellLauncher() *ShellLauncher {
	return &ShellLauncher{}
}

// forwardedSignals are relayed to the child. SIGINT is only swallowed: the
// terminal already delivers it to the whole foreground process group.
var forwardedSignals = []os.Signal{syscall.SIGTERM, syscall.SIGHUP}

// Launch starts the child, relays termination signals to it and waits for it
// to exit. A non-zero exit status is returned as exitCode with a nil error;
// err is reserved for failures to start or wait.
func (l *ShellLauncher) Launch(ctx context.Context, spec Spec) (int, error) {
	log := logger.WithComponent("process")

	var cmd *exec.Cmd
	if spec.Command == "" {
		cmd = exec.Command(DefaultShell())
	} else {
		cmd = exec.Command("/bin/sh", "-c", spec.Command)
	}
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	}

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, append([]os.Signal{os.Interrupt}, forwardedSignals...)...)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return -1, err
	}
	log.Debug("child started", "pid", cmd.Process.Pid, "dir", spec.Dir, "command", spec.Command)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigs:
			if sig == os.Interrupt {
				log.Debug("interrupt received while child running")
				continue
			}
			log.Info("forwarding signal to child", "signal", sig.String(), "pid", cmd.Process.Pid)
			_ = cmd.Process.Signal(sig)
		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
			<-done
			return -1, ctx.Err()
		case err := <-done:
			if err == nil {
				return 0, nil
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), nil
			}
			return -1, err
		}
	}
}

// DefaultShell returns $SHELL, or /bin/sh when unset.
func DefaultShell() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// BuildEnv derives a child environment from base. VIRTUAL_ENV is dropped so
// a virtualenv active in the primary checkout does not leak into the session,
// PATH entries belonging to cw's own installation are removed, and extra is
// applied last.
func BuildEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		key, value, _ := strings.Cut(kv, "=")
		if key == "VIRTUAL_ENV" {
			continue
		}
		if _, overridden := extra[key]; overridden {
			continue
		}
		if key == "PATH" {
			kv = "PATH=" + cleanPath(value)
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func cleanPath(value string) string {
	parts := filepath.SplitList(value)
	kept := parts[:0]
	for _, p := range parts {
		if strings.Contains(p, "claudway") {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, string(os.PathListSeparator))
}
