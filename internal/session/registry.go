package session

import (
	"sync"
	"time"

	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// Session is one phone connection and its staged draft.
type Session struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time
	Stage       *StagedContent
}

// Registry tracks open sessions and the claim on the input surface.
//
// Only one connection may mutate staged content at a time. The first
// connection to issue a mutating command claims the surface and keeps it
// until it disconnects.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	owner    string
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Open registers a new connection with a fresh stage.
func (r *Registry) Open(id, remoteAddr string) *Session {
	sess := &Session{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ConnectedAt: r.now(),
		Stage:       NewStagedContent(),
	}
	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return sess
}

// Close removes a connection and releases its claim. It returns the number
// of sessions still open.
func (r *Registry) Close(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		sess.Stage.Reset()
		delete(r.sessions, id)
	}
	if r.owner == id {
		r.owner = ""
	}
	return len(r.sessions)
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Claim grants id the input surface if it is free or already held by id.
// On refusal it returns the current owner.
func (r *Registry) Claim(id string) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == "" || r.owner == id {
		if _, ok := r.sessions[id]; !ok {
			return false, r.owner
		}
		r.owner = id
		return true, id
	}
	return false, r.owner
}

// Owner returns the connection holding the claim, or "".
func (r *Registry) Owner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// IsMutating reports whether a command type touches staged content or the
// input surface and therefore needs the claim. get_current_line counts since
// it sends select and copy keystrokes; get_clipboard only reads.
func IsMutating(t protocol.MessageType) bool {
	switch t {
	case protocol.TypeSyncText,
		protocol.TypeSyncImageAdd,
		protocol.TypeSyncImageRemove,
		protocol.TypePasteOnly,
		protocol.TypeSubmit,
		protocol.TypeGetCurrentLine,
		protocol.TypeReplaceLine,
		protocol.TypeText,
		protocol.TypeImage:
		return true
	}
	return false
}
