// Package dispatch is the boundary to the OS automation that drives the
// external assistant's terminal window. Failures here are always structured
// results; nothing in this package may crash or block the reconciliation
// pipeline.
package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/logging"
	"github.com/bmad-tools/dash/pkg/models"
	"github.com/bmad-tools/dash/pkg/probe"
	"github.com/sirupsen/logrus"
)

// Action is a logical input action for the assistant window.
type Action string

const (
	ActionSend      Action = "send"
	ActionEnter     Action = "enter"
	ActionEscape    Action = "escape"
	ActionInterrupt Action = "interrupt"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionSend, ActionEnter, ActionEscape, ActionInterrupt:
		return true
	}
	return false
}

// Result reports the outcome of one dispatch.
type Result struct {
	Success     bool   `json:"success"`
	Detail      string `json:"detail"`
	WindowTitle string `json:"windowTitle,omitempty"`
}

// KeySender performs the platform keystroke automation. It is a black box
// from the pipeline's perspective.
type KeySender interface {
	// SendText types text into the window identified by target.
	SendText(ctx context.Context, target probe.Detection, text string) error
	// SendKey presses a single named key or chord (Return, Escape, ctrl+c).
	SendKey(ctx context.Context, target probe.Detection, key string) error
}

// Dispatcher resolves the assistant window for a project and forwards input
// to it. Target resolution uses the same probe chain as status detection so
// the two can never disagree about which process is "this project's
// assistant".
type Dispatcher struct {
	prober  *probe.Prober
	sender  KeySender
	timeout time.Duration
	logger  *logrus.Entry
}

// New creates a Dispatcher over the shared prober.
func New(prober *probe.Prober, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		prober:  prober,
		sender:  newPlatformSender(),
		timeout: timeout,
		logger:  logging.NewLogger("dispatch"),
	}
}

// NewWithSender injects a KeySender. Used in tests.
func NewWithSender(prober *probe.Prober, sender KeySender, timeout time.Duration) *Dispatcher {
	d := New(prober, timeout)
	d.sender = sender
	return d
}

// Send delivers text or a logical action to the project's assistant window.
// It returns a structured result; the only error case is an invalid request.
func (d *Dispatcher) Send(ctx context.Context, projectPath, text string, action Action) (*Result, error) {
	if !action.Valid() {
		return nil, errors.InvalidRequest(fmt.Sprintf("unsupported action: %s", action))
	}
	if action == ActionSend && text == "" {
		return nil, errors.InvalidRequest("text must not be empty")
	}
	if d.sender == nil {
		return nil, errors.New(errors.ErrCodeNotAvailable, "input automation is not available on this platform")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	target := d.prober.Detect(ctx, projectPath)
	if !target.Found {
		d.logger.WithField("project", projectPath).Warn("No assistant window found for input dispatch")
		return &Result{Success: false, Detail: "no assistant window found"}, nil
	}
	if target.MatchType != models.MatchProject {
		return &Result{
			Success:     false,
			Detail:      "assistant is attached to a different project",
			WindowTitle: target.WindowTitle,
		}, nil
	}

	var err error
	switch action {
	case ActionSend:
		err = d.sender.SendText(ctx, target, text)
	case ActionEnter:
		err = d.sender.SendKey(ctx, target, "Return")
	case ActionEscape:
		err = d.sender.SendKey(ctx, target, "Escape")
	case ActionInterrupt:
		err = d.sender.SendKey(ctx, target, "ctrl+c")
	}
	if err != nil {
		d.logger.WithError(err).Warn("Input transmission rejected")
		return &Result{Success: false, Detail: err.Error(), WindowTitle: target.WindowTitle}, nil
	}

	return &Result{Success: true, Detail: "input delivered", WindowTitle: target.WindowTitle}, nil
}

// Launch opens a new terminal running the assistant in the project
// directory. dangerous adds the permission-skipping flag.
func (d *Dispatcher) Launch(ctx context.Context, projectPath string, dangerous bool) error {
	claudeCmd := "claude"
	if dangerous {
		claudeCmd = "claude --dangerously-skip-permissions"
	}
	shellCmd := fmt.Sprintf("cd %q && %s", projectPath, claudeCmd)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("osascript", "-e", darwinLaunchScript(shellCmd))
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "cmd", "/k", shellCmd)
	default:
		cmd = d.linuxTerminal(shellCmd)
		if cmd == nil {
			return errors.New(errors.ErrCodeNotAvailable, "no supported terminal emulator found")
		}
	}

	if err := cmd.Start(); err != nil {
		return errors.LaunchFailed(err)
	}
	d.logger.WithFields(logrus.Fields{"project": projectPath, "dangerous": dangerous}).
		Info("Launched assistant in new terminal")
	// Detach: the terminal outlives the daemon.
	go func() { _ = cmd.Wait() }()
	return nil
}

// darwinLaunchScript wraps a shell command in a Terminal invocation. Go
// string quoting matches AppleScript's escapes for quotes and backslashes,
// so paths with spaces or quotes survive the round trip.
func darwinLaunchScript(shellCmd string) string {
	return fmt.Sprintf(`tell app "Terminal" to do script %q`, shellCmd)
}

func (d *Dispatcher) linuxTerminal(shellCmd string) *exec.Cmd {
	for _, terminal := range []string{"gnome-terminal", "konsole", "xterm"} {
		if _, err := exec.LookPath(terminal); err == nil {
			return exec.Command(terminal, "--", "bash", "-c", shellCmd)
		}
	}
	return nil
}
