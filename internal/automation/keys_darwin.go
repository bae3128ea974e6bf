//go:build darwin

package automation

import "time"

const clearLineGap = 20 * time.Millisecond

// keystrokeCommand maps a key to an osascript invocation. System Events
// needs the Accessibility permission for the terminal running the agent.
func keystrokeCommand(k key) (string, []string) {
	var script string
	switch k {
	case keyPaste:
		script = `keystroke "v" using command down`
	case keySelectAll:
		script = `keystroke "a" using command down`
	case keyEnter:
		script = `key code 36`
	case keyLineStart:
		script = `keystroke "a" using control down`
	case keyKillLine:
		script = `keystroke "k" using control down`
	case keyCopy:
		script = `keystroke "c" using command down`
	case keyHome:
		script = `key code 123 using command down`
	case keyShiftEnd:
		script = `key code 124 using {command down, shift down}`
	}
	return "osascript", []string{"-e", `tell application "System Events" to ` + script}
}
