// Package relay pushes short assistant replies to every connected phone.
package relay

import (
	"log"
	"regexp"
	"strings"

	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// Broadcaster delivers a frame to all currently open connections.
type Broadcaster interface {
	Broadcast(f protocol.Frame)
}

// Relay sends ai_reply frames. Delivery is best effort: nothing is queued for
// phones that connect later and no acknowledgement is expected.
type Relay struct {
	out Broadcaster
}

// New creates a relay over out.
func New(out Broadcaster) *Relay {
	return &Relay{out: out}
}

// SendAssistantReply broadcasts an ai_reply. An empty content defaults to
// summary.
func (r *Relay) SendAssistantReply(summary, content string) protocol.AIReply {
	reply := protocol.NewAIReply(summary, content)
	log.Printf("relay: ai_reply: %s", protocol.Preview(reply.Summary, 50))
	r.out.Broadcast(reply)
	return reply
}

// summaryLine matches "[Summary: ...]" and the fullwidth-colon and Chinese
// label forms agents sometimes produce.
var summaryLine = regexp.MustCompile(`\[(?:Summary|摘要)\s*[:：]\s*(.+?)\]`)

// maxFallbackRunes bounds the summary when no summary line is present.
const maxFallbackRunes = 100

// ExtractSummary pulls a summary out of a longer agent reply. It prefers the
// last "[Summary: ...]" line and otherwise returns the first 100 runes.
func ExtractSummary(text string) string {
	text = strings.TrimSpace(text)
	if matches := summaryLine.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		return strings.TrimSpace(matches[len(matches)-1][1])
	}
	runes := []rune(text)
	if len(runes) > maxFallbackRunes {
		return string(runes[:maxFallbackRunes])
	}
	return text
}
