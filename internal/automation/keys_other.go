//go:build !darwin && !windows

package automation

import "time"

const clearLineGap = 20 * time.Millisecond

// keystrokeCommand maps a key to an xdotool invocation (X11).
func keystrokeCommand(k key) (string, []string) {
	var combo string
	switch k {
	case keyPaste:
		combo = "ctrl+v"
	case keySelectAll:
		combo = "ctrl+a"
	case keyEnter:
		combo = "Return"
	case keyLineStart:
		combo = "Home"
	case keyKillLine:
		combo = "shift+End"
		return "xdotool", []string{"key", "--clearmodifiers", combo, "BackSpace"}
	case keyCopy:
		combo = "ctrl+c"
	case keyHome:
		combo = "Home"
	case keyShiftEnd:
		combo = "shift+End"
	}
	return "xdotool", []string{"key", "--clearmodifiers", combo}
}
