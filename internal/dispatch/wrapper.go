package dispatch

import (
	"fmt"
	"strings"
)

// PromptWrapper decides how a prompt is altered when the phone asks for a
// reply. Implementations must return text unchanged when requested is false.
type PromptWrapper interface {
	Wrap(text string, requested bool) string
}

// NoWrap never alters text.
type NoWrap struct{}

func (NoWrap) Wrap(text string, _ bool) string { return text }

// DefaultSummarySuffix asks the agent to end its reply with a parseable
// summary line that relay.ExtractSummary understands.
const DefaultSummarySuffix = `

[Important: finish the task above first. When you are done, put a one-sentence summary (50 characters max) on the last line of your reply in this format so I can read it on my phone:
[Summary: what you did]]`

// SummaryWrapper appends a summary-request suffix. Used when the editor
// integration reads the agent's reply itself.
type SummaryWrapper struct {
	Suffix string
}

func (w SummaryWrapper) Wrap(text string, requested bool) string {
	if !requested || strings.TrimSpace(text) == "" {
		return text
	}
	suffix := w.Suffix
	if suffix == "" {
		suffix = DefaultSummarySuffix
	}
	return text + suffix
}

// CommandWrapper asks the agent to run the reply command itself. Used by the
// standalone agent, which cannot see the editor's output.
type CommandWrapper struct {
	// Command is the executable the agent should run, e.g. "voice-to-cursor".
	Command string
	// Port is the port the agent is listening on. The flag is omitted when it
	// equals DefaultPort.
	Port        int
	DefaultPort int
}

func (w CommandWrapper) Wrap(text string, requested bool) string {
	if !requested || strings.TrimSpace(text) == "" {
		return text
	}
	cmd := w.Command
	if cmd == "" {
		cmd = "voice-to-cursor"
	}
	portArg := ""
	if w.Port != 0 && w.Port != w.DefaultPort {
		portArg = fmt.Sprintf(" --port=%d", w.Port)
	}
	return text + fmt.Sprintf(`

[Important: when the task is done, run this command to send a short reply to my phone:
%s reply "your short summary (50 characters max)"%s
]`, cmd, portArg)
}
