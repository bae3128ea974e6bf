package automation

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
)

// key is a platform-neutral keystroke.
type key int

const (
	keyPaste key = iota
	keySelectAll
	keyEnter
	keyLineStart
	keyKillLine
	keyCopy
	keyHome
	keyShiftEnd
)

// System drives the real OS: atotto/clipboard for the clipboard and a
// per-platform command (osascript, xdotool, PowerShell) for keystrokes.
type System struct {
	execCmd func(ctx context.Context, name string, args ...string) *exec.Cmd
}

var _ Surface = (*System)(nil)

// NewSystem returns a Surface bound to the local desktop.
func NewSystem() *System {
	return &System{execCmd: exec.CommandContext}
}

// Available reports whether the clipboard and keystroke tool can be used.
func (s *System) Available() error {
	if clipboard.Unsupported {
		return apperrors.New(apperrors.CodeAutomationUnavailable, "no clipboard utility found")
	}
	name, _ := keystrokeCommand(keyPaste)
	if _, err := exec.LookPath(name); err != nil {
		return apperrors.Wrap(apperrors.CodeAutomationUnavailable, name+" is not installed", err)
	}
	return nil
}

func (s *System) WriteClipboard(_ context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return apperrors.StepFailed("clipboard write", err)
	}
	return nil
}

func (s *System) ReadClipboard(_ context.Context) (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", apperrors.StepFailed("clipboard read", err)
	}
	return text, nil
}

func (s *System) Paste(ctx context.Context) error     { return s.press(ctx, "paste", keyPaste) }
func (s *System) SelectAll(ctx context.Context) error { return s.press(ctx, "select-all", keySelectAll) }
func (s *System) Submit(ctx context.Context) error    { return s.press(ctx, "submit", keyEnter) }

func (s *System) ClearLine(ctx context.Context) error {
	if err := s.press(ctx, "clear-line", keyLineStart); err != nil {
		return err
	}
	if err := Sleep(ctx, clearLineGap); err != nil {
		return err
	}
	return s.press(ctx, "clear-line", keyKillLine)
}

func (s *System) CopyLine(ctx context.Context) error {
	if err := s.press(ctx, "copy-line", keyHome); err != nil {
		return err
	}
	if err := s.press(ctx, "copy-line", keyShiftEnd); err != nil {
		return err
	}
	return s.press(ctx, "copy-line", keyCopy)
}

func (s *System) press(ctx context.Context, step string, k key) error {
	name, args := keystrokeCommand(k)
	out, err := s.execCmd(ctx, name, args...).CombinedOutput()
	if err != nil {
		var ex *exec.Error
		if errors.As(err, &ex) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return apperrors.Wrap(apperrors.CodeAutomationUnavailable, name+" is unavailable", err)
		}
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return apperrors.Wrap(apperrors.CodeAutomationStepFailed, step+" failed: "+msg, err)
		}
		return apperrors.StepFailed(step, err)
	}
	return nil
}
