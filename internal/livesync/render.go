// Package livesync mirrors staged content into the focused input surface,
// debouncing bursts of edits into a single apply.
package livesync

import (
	"fmt"
	"strings"

	"github.com/vonxq/voice-to-cursor/internal/session"
)

// ImageMarkdown renders one image reference.
func ImageMarkdown(ref string) string {
	return fmt.Sprintf("![image](%s)", ref)
}

// ImageBlock renders staged images one per line, in insertion order.
func ImageBlock(images []session.Image) string {
	lines := make([]string, 0, len(images))
	for _, img := range images {
		lines = append(lines, ImageMarkdown(img.Ref))
	}
	return strings.Join(lines, "\n")
}

// Render flattens text and images. Empty text with images yields only the
// image block; nothing staged yields "".
func Render(text string, images []session.Image) string {
	block := ImageBlock(images)
	switch {
	case block == "":
		return text
	case text == "":
		return block
	default:
		return text + "\n" + block
	}
}
