package client

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxChatMessages bounds the chat log; the oldest messages go first.
const MaxChatMessages = 100

// Role says who wrote a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry in the conversation shown on the phone.
type ChatMessage struct {
	ID        string
	Role      Role
	Content   string
	Summary   string // assistant replies only
	Images    []string
	Timestamp time.Time
}

// ChatLog is an in-memory, bounded conversation history.
type ChatLog struct {
	mu       sync.Mutex
	max      int
	messages []ChatMessage
	now      func() time.Time
}

// NewChatLog creates a log holding at most max messages. max <= 0 uses
// MaxChatMessages.
func NewChatLog(max int) *ChatLog {
	if max <= 0 {
		max = MaxChatMessages
	}
	return &ChatLog{max: max, now: time.Now}
}

// AddUser records a prompt the user sent.
func (c *ChatLog) AddUser(content string, images []string) ChatMessage {
	return c.add(ChatMessage{Role: RoleUser, Content: content, Images: images})
}

// AddAssistant records an assistant reply. An empty content defaults to
// summary.
func (c *ChatLog) AddAssistant(summary, content string) ChatMessage {
	if content == "" {
		content = summary
	}
	return c.add(ChatMessage{Role: RoleAssistant, Content: content, Summary: summary})
}

func (c *ChatLog) add(msg ChatMessage) ChatMessage {
	msg.ID = uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = c.now()
	c.messages = append(c.messages, msg)
	if over := len(c.messages) - c.max; over > 0 {
		c.messages = append([]ChatMessage(nil), c.messages[over:]...)
	}
	return msg
}

// Messages returns a copy of the log, oldest first.
func (c *ChatLog) Messages() []ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatMessage(nil), c.messages...)
}

// Len returns the number of messages held.
func (c *ChatLog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear drops every message.
func (c *ChatLog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}
