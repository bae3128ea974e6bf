//go:build windows

package automation

import "time"

const clearLineGap = 20 * time.Millisecond

// keystrokeCommand maps a key to a PowerShell SendKeys call.
func keystrokeCommand(k key) (string, []string) {
	var keys string
	switch k {
	case keyPaste:
		keys = "^v"
	case keySelectAll:
		keys = "^a"
	case keyEnter:
		keys = "{ENTER}"
	case keyLineStart:
		keys = "{HOME}"
	case keyKillLine:
		keys = "+{END}{DEL}"
	case keyCopy:
		keys = "^c"
	case keyHome:
		keys = "{HOME}"
	case keyShiftEnd:
		keys = "+{END}"
	}
	script := "Add-Type -AssemblyName System.Windows.Forms; [System.Windows.Forms.SendKeys]::SendWait('" + keys + "')"
	return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
}
