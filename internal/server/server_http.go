package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/vonxq/voice-to-cursor/internal/relay"
)

// maxReplyBody bounds POST /reply payloads.
const maxReplyBody = 64 * 1024

// createMux creates the HTTP mux with all endpoints.
func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Phones may connect to either / or /ws.
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/ws", s.handleWebSocket)

	// Health check endpoint for monitoring
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Local tools push assistant replies here without opening a websocket.
	mux.HandleFunc("/reply", s.handleReply)

	s.mu.RLock()
	statusHandler := s.statusHandler
	s.mu.RUnlock()

	if statusHandler != nil {
		mux.Handle("/status", statusHandler)
	}

	return mux
}

// handleRoot upgrades websocket requests and otherwise prints how to connect.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "voice-to-cursor is running.\nConnect the phone app to ws://%s\n", r.Host)
}

// ReplyRequest is the body of POST /reply.
type ReplyRequest struct {
	Summary string `json:"summary"`
	Content string `json:"content,omitempty"`
	// Extract pulls the summary out of Content when Summary is empty.
	Extract bool `json:"extract,omitempty"`
}

// ReplyResponse reports how many phones were connected when the reply was sent.
type ReplyResponse struct {
	Clients int `json:"clients"`
}

// handleReply broadcasts an ai_reply from a local tool. Loopback only.
func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	if !isLoopbackRequest(r) {
		http.Error(w, "Forbidden: reply endpoint is local-only", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxReplyBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Summary) == "" && req.Extract {
		req.Summary = relay.ExtractSummary(req.Content)
	}
	if strings.TrimSpace(req.Summary) == "" {
		http.Error(w, "summary is required", http.StatusBadRequest)
		return
	}

	s.relay.SendAssistantReply(req.Summary, req.Content)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ReplyResponse{Clients: s.ClientCount()})
}

// isLoopbackRequest checks if the request originated from the local machine.
func isLoopbackRequest(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		log.Printf("server: failed to parse RemoteAddr %q: %v", r.RemoteAddr, err)
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		log.Printf("server: failed to parse IP from host %q", host)
		return false
	}
	return ip.IsLoopback()
}
