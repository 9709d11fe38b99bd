// Package notification provides cross-platform desktop notifications.
// It uses the beeep library to send notifications on macOS, Linux, and Windows.
package notification

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/zhubert/claudway/internal/logger"
)

// Title is shown on every notification cw sends.
const Title = "cw"

var (
	mu       sync.Mutex
	notifier = beeep.Notify
)

// SetNotifier replaces the function used to deliver notifications.
func SetNotifier(fn func(title, message string, icon any) error) {
	mu.Lock()
	defer mu.Unlock()
	notifier = fn
}

// ResetNotifier restores delivery through beeep.
func ResetNotifier() {
	SetNotifier(beeep.Notify)
}

// Send sends a desktop notification with the given title and message.
func Send(title, message string) error {
	log := logger.WithComponent("notification")
	log.Debug("sending notification", "title", title, "message", message)

	mu.Lock()
	notify := notifier
	mu.Unlock()

	// Empty icon: beeep picks the platform default.
	if err := notify(title, message, ""); err != nil {
		log.Warn("notification failed", "error", err)
		return err
	}
	return nil
}

// CommandFinished reports that the command launched in a session exited.
func CommandFinished(branch string, exitCode int) error {
	if exitCode == 0 {
		return Send(Title, fmt.Sprintf("%s: command finished", branch))
	}
	return Send(Title, fmt.Sprintf("%s: command exited with status %d", branch, exitCode))
}
