// Package logger writes cw's diagnostic log. Nothing here is shown to the
// user; terminal output goes through fmt and the ui package.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhubert/claudway/internal/paths"
)

// fallbackLogPath is used when the state directory cannot be resolved or created.
var fallbackLogPath = filepath.Join(os.TempDir(), "cw-debug.log")

var (
	mu       sync.Mutex
	base     *slog.Logger
	levelVar = new(slog.LevelVar)
	out      io.Closer
	logPath  string
	initDone bool
)

// SetDebug switches between debug and info level.
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init opens path for appending and routes all logging there.
// Calling Init again after a successful call is a no-op.
func Init(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}
	return open(path)
}

func open(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	out = f
	logPath = path
	base = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: levelVar}))
	initDone = true
	base.Debug("logger initialized", "path", path, "pid", os.Getpid())
	return nil
}

// ensureInit lazily opens the default log file. Caller must hold mu.
func ensureInit() {
	if initDone {
		return
	}
	path, err := paths.LogFilePath()
	if err == nil {
		err = open(path)
	}
	if err != nil {
		if ferr := open(fallbackLogPath); ferr != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", ferr)
			base = slog.New(slog.NewTextHandler(io.Discard, nil))
			initDone = true
		}
	}
}

func logf(level slog.Level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	if !base.Enabled(context.Background(), level) {
		return
	}
	base.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Debug writes a debug message.
func Debug(format string, args ...interface{}) { logf(slog.LevelDebug, format, args...) }

// Info writes an info message.
func Info(format string, args ...interface{}) { logf(slog.LevelInfo, format, args...) }

// Warn writes a warning message.
func Warn(format string, args ...interface{}) { logf(slog.LevelWarn, format, args...) }

// Error writes an error message.
func Error(format string, args ...interface{}) { logf(slog.LevelError, format, args...) }

// WithComponent returns a structured logger tagged with component.
//
//	log := logger.WithComponent("registry")
//	log.Info("entry dropped", "branch", branch, "path", path)
func WithComponent(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return base.With(slog.String("component", component))
}

// WithSession returns a structured logger tagged with a session's branch and kind.
func WithSession(branch, kind string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()
	return base.With(slog.String("branch", branch), slog.String("kind", kind))
}

// Path returns the file currently being written, or "" before initialization.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		out.Close()
		out = nil
	}
}

// Reset returns the package to its uninitialized state. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		out.Close()
		out = nil
	}
	base = nil
	logPath = ""
	initDone = false
	levelVar = new(slog.LevelVar)
}

// ClearLogs deletes every *.log file in the logs directory and returns how
// many were removed.
func ClearLogs() (int, error) {
	dir, err := paths.LogsDir()
	if err != nil {
		return 0, err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			count++
		} else if !os.IsNotExist(err) {
			return count, err
		}
	}
	return count, nil
}
