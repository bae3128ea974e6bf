// Package automation is the boundary to the operating system's clipboard and
// synthetic keyboard input. Everything above this package talks to a Surface.
package automation

import (
	"context"
	"time"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
)

// Surface is the focused input surface plus the system clipboard.
//
// Every method is a single fallible step. Keystroke methods return once the
// event has been handed to the OS; there is no signal that the target
// application has processed it.
type Surface interface {
	WriteClipboard(ctx context.Context, text string) error
	ReadClipboard(ctx context.Context) (string, error)
	Paste(ctx context.Context) error
	SelectAll(ctx context.Context) error
	Submit(ctx context.Context) error
	// ClearLine empties the focused line (start-of-line then kill-to-end).
	ClearLine(ctx context.Context) error
	// CopyLine selects the focused line and copies it to the clipboard.
	CopyLine(ctx context.Context) error
}

// StructuredPaster is implemented by surfaces that can insert text through an
// editor API instead of simulated keystrokes.
type StructuredPaster interface {
	InsertText(ctx context.Context, text string) error
}

// DefaultVerifyDelay is how long WriteVerified waits before reading back.
const DefaultVerifyDelay = 100 * time.Millisecond

// WriteVerified writes text to the clipboard, waits settle, and reads it back.
// A failed read or a mismatch yields automation.unconfirmed; the write itself
// may still have landed.
func WriteVerified(ctx context.Context, s Surface, text string, settle time.Duration) error {
	if err := s.WriteClipboard(ctx, text); err != nil {
		return apperrors.StepFailed("clipboard write", err)
	}
	if err := Sleep(ctx, settle); err != nil {
		return err
	}
	got, err := s.ReadClipboard(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAutomationUnconfirmed, "clipboard read-back failed", err)
	}
	if got != text {
		return apperrors.New(apperrors.CodeAutomationUnconfirmed, "clipboard read-back did not match")
	}
	return nil
}

// Sleep waits d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
