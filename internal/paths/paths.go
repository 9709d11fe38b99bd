// Package paths resolves where cw keeps its files.
//
// Three roots are used:
//
//   - Config (XDG_CONFIG_HOME): config.json
//   - Data (XDG_DATA_HOME): registry/*.json and persistent worktrees/
//   - State (XDG_STATE_HOME): logs/
//
// If ~/.claudway exists it wins and everything lives under it. Otherwise any
// XDG variable being set selects the XDG layout, and a fresh install without
// XDG variables falls back to ~/.claudway.
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

const appName = "claudway"

// TempPrefix prefixes every temporary session directory under TempRoot.
const TempPrefix = "cw-"

var (
	mu       sync.Mutex
	resolved *layout
)

type layout struct {
	config string
	data   string
	state  string
	legacy bool
}

func resolve() (*layout, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != nil {
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	legacy := filepath.Join(home, "."+appName)
	if info, err := os.Stat(legacy); err == nil && info.IsDir() {
		resolved = &layout{config: legacy, data: legacy, state: legacy, legacy: true}
		return resolved, nil
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	xdgData := os.Getenv("XDG_DATA_HOME")
	xdgState := os.Getenv("XDG_STATE_HOME")

	if xdgConfig == "" && xdgData == "" && xdgState == "" {
		resolved = &layout{config: legacy, data: legacy, state: legacy, legacy: true}
		return resolved, nil
	}

	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	if xdgData == "" {
		xdgData = filepath.Join(home, ".local", "share")
	}
	if xdgState == "" {
		xdgState = filepath.Join(home, ".local", "state")
	}
	resolved = &layout{
		config: filepath.Join(xdgConfig, appName),
		data:   filepath.Join(xdgData, appName),
		state:  filepath.Join(xdgState, appName),
	}
	return resolved, nil
}

// ConfigDir returns the directory holding config.json.
func ConfigDir() (string, error) {
	l, err := resolve()
	if err != nil {
		return "", err
	}
	return l.config, nil
}

// DataDir returns the directory for durable data (registry, persistent worktrees).
func DataDir() (string, error) {
	l, err := resolve()
	if err != nil {
		return "", err
	}
	return l.data, nil
}

// StateDir returns the directory for logs and other disposable state.
func StateDir() (string, error) {
	l, err := resolve()
	if err != nil {
		return "", err
	}
	return l.state, nil
}

func under(root func() (string, error), elem ...string) (string, error) {
	dir, err := root()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{dir}, elem...)...), nil
}

// ConfigFilePath returns the full path to config.json.
func ConfigFilePath() (string, error) { return under(ConfigDir, "config.json") }

// LogsDir returns the directory for log files.
func LogsDir() (string, error) { return under(StateDir, "logs") }

// LogFilePath returns the main log file.
func LogFilePath() (string, error) { return under(StateDir, "logs", "cw.log") }

// WorktreesDir returns the root for persistent session worktrees.
func WorktreesDir() (string, error) { return under(DataDir, "worktrees") }

// RegistryDir returns the directory of per-repository registry files.
func RegistryDir() (string, error) { return under(DataDir, "registry") }

// TempRoot returns the root for temporary session worktrees.
func TempRoot() string {
	return os.TempDir()
}

// IsLegacyLayout reports whether everything lives under ~/.claudway.
func IsLegacyLayout() bool {
	l, err := resolve()
	if err != nil {
		return true
	}
	return l.legacy
}

// Reset clears the cached layout. Tests call it after changing HOME or XDG vars.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = nil
}
