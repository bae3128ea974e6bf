package client

import (
	"sync"

	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// DraftImage is an image attached to the phone's draft.
type DraftImage struct {
	ID       string
	Base64   string
	MimeType string
}

// Draft is what the phone is composing. It mirrors the desktop's staged
// content and is replayed after a reconnect.
type Draft struct {
	Text   string
	Images []DraftImage
}

// Empty reports whether the draft has neither text nor images.
func (d Draft) Empty() bool {
	return d.Text == "" && len(d.Images) == 0
}

// EventKind classifies what an inbound frame meant for the UI.
type EventKind int

const (
	EventNone EventKind = iota
	EventAcked
	EventPasted
	EventSubmitted
	EventError
	EventReply
	EventClipboard
	EventClipboardEmpty
	EventCurrentLine
)

// Event is the result of routing one inbound frame.
type Event struct {
	Kind EventKind

	// Action is the acknowledged command for ack events.
	Action string
	// Unconfirmed is set when the desktop could not verify the side effects.
	Unconfirmed bool

	// Code and Message describe an error event.
	Code    string
	Message string

	// Text is the draft text after a clipboard or current-line event. The
	// caller should sync it back to the desktop.
	Text string

	// Reply is the chat entry added for a reply event.
	Reply *ChatMessage
}

// Router folds desktop replies into the draft, the sending flag, and the
// chat log.
type Router struct {
	mu        sync.Mutex
	draft     Draft
	sending   bool
	lastError string
	chat      *ChatLog
}

// NewRouter creates a router writing replies into chat.
func NewRouter(chat *ChatLog) *Router {
	if chat == nil {
		chat = NewChatLog(MaxChatMessages)
	}
	return &Router{chat: chat}
}

// Chat returns the chat log.
func (r *Router) Chat() *ChatLog { return r.chat }

// SetText replaces the draft text.
func (r *Router) SetText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draft.Text = text
}

// AddImage appends img, or replaces an image with the same id in place.
func (r *Router) AddImage(img DraftImage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.draft.Images {
		if r.draft.Images[i].ID == img.ID {
			r.draft.Images[i] = img
			return
		}
	}
	r.draft.Images = append(r.draft.Images, img)
}

// RemoveImage drops the image with id. It reports whether one was removed.
func (r *Router) RemoveImage(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.draft.Images {
		if r.draft.Images[i].ID == id {
			r.draft.Images = append(r.draft.Images[:i], r.draft.Images[i+1:]...)
			return true
		}
	}
	return false
}

// Draft returns a copy of the draft.
func (r *Router) Draft() Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.draft
	d.Images = append([]DraftImage(nil), r.draft.Images...)
	return d
}

// BeginPaste marks a paste_only in flight.
func (r *Router) BeginPaste() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sending = true
}

// BeginSubmit marks a submit in flight and records the draft as a user
// message.
func (r *Router) BeginSubmit() ChatMessage {
	r.mu.Lock()
	r.sending = true
	text := r.draft.Text
	var ids []string
	for _, img := range r.draft.Images {
		ids = append(ids, img.ID)
	}
	r.mu.Unlock()

	return r.chat.AddUser(text, ids)
}

// Sending reports whether a paste or submit is awaiting its ack.
func (r *Router) Sending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sending
}

// LastError returns the message of the most recent error frame.
func (r *Router) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

// Handle routes one inbound frame.
func (r *Router) Handle(msg protocol.Message) Event {
	switch msg.Type {
	case protocol.TypeAck:
		return r.handleAck(msg)

	case protocol.TypeError:
		r.mu.Lock()
		r.sending = false
		r.lastError = msg.Message
		r.mu.Unlock()
		return Event{Kind: EventError, Code: msg.Code, Message: msg.Message}

	case protocol.TypeAIReply:
		reply := r.chat.AddAssistant(msg.Summary, msg.Content)
		return Event{Kind: EventReply, Reply: &reply}

	case protocol.TypeClipboardContent:
		if msg.Content == "" {
			return Event{Kind: EventClipboardEmpty}
		}
		r.mu.Lock()
		r.draft.Text += msg.Content
		text := r.draft.Text
		r.mu.Unlock()
		return Event{Kind: EventClipboard, Text: text}

	case protocol.TypeCurrentLineContent:
		r.mu.Lock()
		r.draft.Text = msg.Content
		r.mu.Unlock()
		return Event{Kind: EventCurrentLine, Text: msg.Content}
	}
	return Event{Kind: EventNone}
}

func (r *Router) handleAck(msg protocol.Message) Event {
	ev := Event{
		Kind:        EventAcked,
		Action:      msg.Action,
		Unconfirmed: msg.Status == protocol.AckStatusUnconfirmed,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch protocol.MessageType(msg.Action) {
	case protocol.TypeSubmit:
		r.sending = false
		r.draft = Draft{}
		ev.Kind = EventSubmitted
	case protocol.TypePasteOnly:
		r.sending = false
		ev.Kind = EventPasted
	}
	return ev
}
