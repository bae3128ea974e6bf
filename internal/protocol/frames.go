package protocol

// Outbound frames from the desktop.

// Ack confirms a command was issued. Status is "unconfirmed" when a step
// failed or a clipboard read-back did not match.
type Ack struct {
	Type      MessageType `json:"type"`
	Action    string      `json:"action"`
	ID        string      `json:"id,omitempty"`
	Status    string      `json:"status,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

func (a Ack) FrameType() MessageType { return a.Type }

// NewAck creates an ack for the given action.
func NewAck(action MessageType) Ack {
	return Ack{Type: TypeAck, Action: string(action)}
}

// NewAckWithID creates an ack that echoes an image id.
func NewAckWithID(action MessageType, id string) Ack {
	return Ack{Type: TypeAck, Action: string(action), ID: id}
}

// Unconfirmed returns a copy of the ack marked unconfirmed.
func (a Ack) Unconfirmed() Ack {
	a.Status = AckStatusUnconfirmed
	return a
}

// Error reports a rejected or malformed frame to the originating client.
type Error struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
}

func (e Error) FrameType() MessageType { return e.Type }

// NewError creates an error frame.
func NewError(code, message string) Error {
	return Error{Type: TypeError, Code: code, Message: message}
}

// ClipboardContent carries the literal clipboard text, empty string included.
type ClipboardContent struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
}

func (c ClipboardContent) FrameType() MessageType { return c.Type }

// NewClipboardContent creates a clipboard_content frame stamped with now.
func NewClipboardContent(content string) ClipboardContent {
	return ClipboardContent{Type: TypeClipboardContent, Content: content, Timestamp: now()}
}

// CurrentLineContent carries the trimmed text of the focused line.
type CurrentLineContent struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
}

func (c CurrentLineContent) FrameType() MessageType { return c.Type }

// NewCurrentLineContent creates a current_line_content frame stamped with now.
func NewCurrentLineContent(content string) CurrentLineContent {
	return CurrentLineContent{Type: TypeCurrentLineContent, Content: content, Timestamp: now()}
}

// AIReply relays a short assistant reply to every connected phone.
type AIReply struct {
	Type      MessageType `json:"type"`
	Summary   string      `json:"summary"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
}

func (r AIReply) FrameType() MessageType { return r.Type }

// NewAIReply creates an ai_reply frame. Content defaults to the summary.
func NewAIReply(summary, content string) AIReply {
	if content == "" {
		content = summary
	}
	return AIReply{Type: TypeAIReply, Summary: summary, Content: content, Timestamp: now()}
}

// Connection is the UI-only connected/disconnected sideband.
type Connection struct {
	Type      MessageType `json:"type"`
	Connected bool        `json:"connected"`
}

func (c Connection) FrameType() MessageType { return c.Type }

// NewConnection creates a connection sideband frame.
func NewConnection(connected bool) Connection {
	return Connection{Type: TypeConnection, Connected: connected}
}

// Inbound frames produced by the phone client.

// SyncText replaces the staged text. Content is always sent so that clearing
// the draft is expressible.
type SyncText struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

func (s SyncText) FrameType() MessageType { return s.Type }

// NewSyncText creates a sync_text frame.
func NewSyncText(content string) SyncText {
	return SyncText{Type: TypeSyncText, Content: content, Timestamp: now()}
}

// SyncImageAdd stages a base64 image under id.
type SyncImageAdd struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Base64    string      `json:"base64"`
	MimeType  string      `json:"mimeType"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

func (s SyncImageAdd) FrameType() MessageType { return s.Type }

// NewSyncImageAdd creates a sync_image_add frame. mimeType defaults to JPEG.
func NewSyncImageAdd(id, base64, mimeType string) SyncImageAdd {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return SyncImageAdd{Type: TypeSyncImageAdd, ID: id, Base64: base64, MimeType: mimeType, Timestamp: now()}
}

// SyncImageRemove drops a staged image.
type SyncImageRemove struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

func (s SyncImageRemove) FrameType() MessageType { return s.Type }

// NewSyncImageRemove creates a sync_image_remove frame.
func NewSyncImageRemove(id string) SyncImageRemove {
	return SyncImageRemove{Type: TypeSyncImageRemove, ID: id, Timestamp: now()}
}

// Command is a bare command frame (paste_only, submit, get_clipboard,
// get_current_line, replace_line).
type Command struct {
	Type        MessageType `json:"type"`
	NeedAIReply bool        `json:"needAiReply,omitempty"`
	Timestamp   int64       `json:"timestamp,omitempty"`
}

func (c Command) FrameType() MessageType { return c.Type }

// NewCommand creates a command frame.
func NewCommand(t MessageType, needAIReply bool) Command {
	return Command{Type: t, NeedAIReply: needAIReply, Timestamp: now()}
}

// LegacyText is the one-shot text insertion frame.
type LegacyText struct {
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

func (l LegacyText) FrameType() MessageType { return l.Type }

// NewLegacyText creates a legacy text frame.
func NewLegacyText(content string) LegacyText {
	return LegacyText{Type: TypeText, Content: content, Timestamp: now()}
}

// LegacyImage is the one-shot image insertion frame.
type LegacyImage struct {
	Type      MessageType `json:"type"`
	Base64    string      `json:"base64"`
	MimeType  string      `json:"mimeType"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

func (l LegacyImage) FrameType() MessageType { return l.Type }

// NewLegacyImage creates a legacy image frame.
func NewLegacyImage(base64, mimeType string) LegacyImage {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return LegacyImage{Type: TypeImage, Base64: base64, MimeType: mimeType, Timestamp: now()}
}
