package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/bmad-tools/dash/errors"
	"github.com/bmad-tools/dash/pkg/probe"
)

// newPlatformSender returns the keystroke backend for the current OS, or nil
// when the platform has no automation path.
func newPlatformSender() KeySender {
	switch runtime.GOOS {
	case "darwin":
		return &osascriptSender{}
	case "linux":
		return &xdotoolSender{}
	default:
		return nil
	}
}

// xdotoolSender drives X11 windows through xdotool. Windows are located by
// title search so the probe result and the keystroke target stay in sync.
type xdotoolSender struct{}

func (s *xdotoolSender) windowID(ctx context.Context, target probe.Detection) (string, error) {
	title := target.WindowTitle
	if title == "" {
		title = "claude"
	}
	out, err := exec.CommandContext(ctx, "xdotool", "search", "--name", title).Output()
	if err != nil {
		return "", errors.SendFailed(fmt.Sprintf("window lookup failed: %v", err))
	}
	ids := strings.Fields(string(out))
	if len(ids) == 0 {
		return "", errors.SendFailed("assistant window is gone")
	}
	return ids[0], nil
}

func (s *xdotoolSender) SendText(ctx context.Context, target probe.Detection, text string) error {
	id, err := s.windowID(ctx, target)
	if err != nil {
		return err
	}
	if out, err := exec.CommandContext(ctx, "xdotool", "type", "--window", id, "--delay", "12", text).CombinedOutput(); err != nil {
		return errors.SendFailed(strings.TrimSpace(string(out)))
	}
	return s.SendKey(ctx, target, "Return")
}

func (s *xdotoolSender) SendKey(ctx context.Context, target probe.Detection, key string) error {
	id, err := s.windowID(ctx, target)
	if err != nil {
		return err
	}
	if out, err := exec.CommandContext(ctx, "xdotool", "key", "--window", id, key).CombinedOutput(); err != nil {
		return errors.SendFailed(strings.TrimSpace(string(out)))
	}
	return nil
}

// osascriptSender drives Terminal.app through System Events. The target
// window must be frontmost within its process for keystrokes to land.
type osascriptSender struct{}

var macKeyCodes = map[string]string{
	"Return": "36",
	"Escape": "53",
}

func (s *osascriptSender) run(ctx context.Context, script string) error {
	if out, err := exec.CommandContext(ctx, "osascript", "-e", script).CombinedOutput(); err != nil {
		return errors.SendFailed(strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *osascriptSender) SendText(ctx context.Context, target probe.Detection, text string) error {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped)
	if err := s.run(ctx, script); err != nil {
		return err
	}
	return s.SendKey(ctx, target, "Return")
}

func (s *osascriptSender) SendKey(ctx context.Context, target probe.Detection, key string) error {
	if key == "ctrl+c" {
		return s.run(ctx, `tell application "System Events" to keystroke "c" using control down`)
	}
	code, ok := macKeyCodes[key]
	if !ok {
		return errors.SendFailed(fmt.Sprintf("unknown key: %s", key))
	}
	return s.run(ctx, fmt.Sprintf(`tell application "System Events" to key code %s`, code))
}
