// Package notify delivers the end-of-scan summary as a desktop notification.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// DefaultTimeout bounds a single notification command.
const DefaultTimeout = 5 * time.Second

// Runner executes an external command. Tests substitute a recorder.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command with os/exec and includes its output in errors.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// CommandNotifier shows notifications by running a platform command.
type CommandNotifier struct {
	command string
	args    func(title, message string) []string
	run     Runner
	timeout time.Duration
}

// NewOSAScriptNotifier notifies through macOS Notification Center.
func NewOSAScriptNotifier(run Runner) *CommandNotifier {
	return &CommandNotifier{
		command: "osascript",
		args: func(title, message string) []string {
			script := fmt.Sprintf("display notification %s with title %s", appleScriptString(message), appleScriptString(title))
			return []string{"-e", script}
		},
		run:     run,
		timeout: DefaultTimeout,
	}
}

// NewNotifySendNotifier notifies through libnotify on Linux desktops.
func NewNotifySendNotifier(run Runner) *CommandNotifier {
	return &CommandNotifier{
		command: "notify-send",
		args: func(title, message string) []string {
			return []string{"--app-name=tidy", title, message}
		},
		run:     run,
		timeout: DefaultTimeout,
	}
}

// Command returns the executable this notifier runs.
func (n *CommandNotifier) Command() string { return n.command }

// Notify runs the notification command, giving up after the timeout.
func (n *CommandNotifier) Notify(ctx context.Context, title, message string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if err := n.run(ctx, n.command, n.args(title, message)...); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// NewNotifierFromConfig creates a Notifier based on the notify config type.
// An empty type picks the platform command when it is installed.
func NewNotifierFromConfig(cfg config.NotifyConfig) (tidy.Notifier, error) {
	return newNotifier(cfg.Type, runtime.GOOS, exec.LookPath, ExecRunner)
}

func newNotifier(kind, goos string, lookPath func(string) (string, error), run Runner) (tidy.Notifier, error) {
	switch kind {
	case "osascript":
		return NewOSAScriptNotifier(run), nil
	case "notify-send":
		return NewNotifySendNotifier(run), nil
	case "none":
		return tidy.NopNotifier{}, nil
	case "":
		var n *CommandNotifier
		switch goos {
		case "darwin":
			n = NewOSAScriptNotifier(run)
		case "linux", "freebsd", "openbsd", "netbsd":
			n = NewNotifySendNotifier(run)
		default:
			return tidy.NopNotifier{}, nil
		}
		if _, err := lookPath(n.command); err != nil {
			return tidy.NopNotifier{}, nil
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown notify type: %s", kind)
	}
}

// Compile-time check that CommandNotifier implements tidy.Notifier interface
var _ tidy.Notifier = (*CommandNotifier)(nil)
