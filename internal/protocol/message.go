// Package protocol defines the JSON frames exchanged between the phone app and
// the desktop agent. Every frame is a single flat JSON object whose `type` field
// selects the remaining fields.
package protocol

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
)

// MessageType identifies the kind of frame being sent.
type MessageType string

// Phone to desktop.
const (
	// TypeSyncText replaces the staged text wholesale.
	TypeSyncText MessageType = "sync_text"

	// TypeSyncImageAdd stages an image under a client-generated id.
	TypeSyncImageAdd MessageType = "sync_image_add"

	// TypeSyncImageRemove drops a staged image.
	TypeSyncImageRemove MessageType = "sync_image_remove"

	// TypePasteOnly pastes the staged content without submitting.
	TypePasteOnly MessageType = "paste_only"

	// TypeSubmit pastes the staged content and presses the commit key.
	TypeSubmit MessageType = "submit"

	// TypeGetClipboard asks for the desktop clipboard text.
	TypeGetClipboard MessageType = "get_clipboard"

	// TypeGetCurrentLine copies the focused line (standalone variant only).
	TypeGetCurrentLine MessageType = "get_current_line"

	// TypeReplaceLine clears the focused line and pastes the clipboard.
	TypeReplaceLine MessageType = "replace_line"

	// TypeText and TypeImage are the legacy one-shot insertion frames.
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
)

// Desktop to phone.
const (
	TypeAck                MessageType = "ack"
	TypeError              MessageType = "error"
	TypeClipboardContent   MessageType = "clipboard_content"
	TypeCurrentLineContent MessageType = "current_line_content"

	// TypeAIReply carries an assistant reply summary. Reply tools connect as
	// ordinary clients and send it inbound; the desktop rebroadcasts it.
	TypeAIReply MessageType = "ai_reply"

	// TypeConnection is a UI-only sideband emitted to local observers.
	TypeConnection MessageType = "connection"
)

// AckStatusUnconfirmed marks an ack whose side effects could not be verified.
const AckStatusUnconfirmed = "unconfirmed"

// Frame is anything that can be written to the wire.
type Frame interface {
	FrameType() MessageType
}

// Message is the decoded view of any frame. Fields that a given type does not
// carry are left at their zero values.
type Message struct {
	Type        MessageType `json:"type"`
	Content     string      `json:"content,omitempty"`
	ID          string      `json:"id,omitempty"`
	Base64      string      `json:"base64,omitempty"`
	MimeType    string      `json:"mimeType,omitempty"`
	NeedAIReply bool        `json:"needAiReply,omitempty"`
	Action      string      `json:"action,omitempty"`
	Status      string      `json:"status,omitempty"`
	Code        string      `json:"code,omitempty"`
	Message     string      `json:"message,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Connected   bool        `json:"connected,omitempty"`

	// Timestamp is producer-side milliseconds since epoch. It is a logging hint
	// only and never decides ordering.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// FrameType implements Frame so decoded messages can be relayed unchanged.
func (m Message) FrameType() MessageType { return m.Type }

// Decode parses a raw frame. It fails with server.invalid_message when the
// payload is not a JSON object or carries no type. Unknown types decode
// successfully; rejecting them is the dispatcher's call.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, apperrors.Wrap(apperrors.CodeServerInvalidMessage, "invalid message format", err)
	}
	if strings.TrimSpace(string(msg.Type)) == "" {
		return Message{}, apperrors.InvalidMessage("message has no type")
	}
	return msg, nil
}

// Encode serializes a frame.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// now returns the current time in epoch milliseconds.
func now() int64 {
	return time.Now().UnixMilli()
}

// Preview shortens content for log lines to at most n runes.
func Preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
