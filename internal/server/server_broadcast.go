package server

import (
	"log"

	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// Broadcast sends a frame to all connected clients.
// This method is non-blocking; frames are queued for delivery.
// If the server has been stopped, this method does nothing.
func (s *Server) Broadcast(f protocol.Frame) {
	// Hold RLock while checking stopped AND sending to avoid race with Stop().
	// Stop() takes the write lock, sets stopped=true, then closes the channel.
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return
	}

	select {
	case s.broadcast <- f:
	default:
		log.Printf("server: broadcast channel full, dropping %s", f.FrameType())
	}
}
