package server

import (
	"encoding/json"
	"net/http"
)

// StatusResponse contains agent status returned by the /status endpoint.
type StatusResponse struct {
	// ListeningAddress is the address the agent is bound to.
	ListeningAddress string `json:"listening_address"`

	// ConnectedClients is the number of connected phones.
	ConnectedClients int `json:"connected_clients"`

	// SurfaceOwner is the connection currently allowed to mutate staged
	// content, or empty.
	SurfaceOwner string `json:"surface_owner,omitempty"`

	Variant   string `json:"variant"`
	Workspace string `json:"workspace,omitempty"`
	LiveSync  bool   `json:"live_sync"`

	UptimeSeconds int64 `json:"uptime_seconds"`
}

// StatusHandler serves agent status. It only answers local requests.
type StatusHandler struct {
	server    *Server
	variant   string
	workspace string
	liveSync  bool
}

// NewStatusHandler creates a StatusHandler for s.
func NewStatusHandler(s *Server, variant, workspace string, liveSync bool) *StatusHandler {
	return &StatusHandler{
		server:    s,
		variant:   variant,
		workspace: workspace,
		liveSync:  liveSync,
	}
}

// ServeHTTP handles GET /status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isLoopbackRequest(r) {
		http.Error(w, "Forbidden: status endpoint is local-only", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := StatusResponse{
		ListeningAddress: h.server.Addr(),
		ConnectedClients: h.server.ClientCount(),
		SurfaceOwner:     h.server.registry.Owner(),
		Variant:          h.variant,
		Workspace:        h.workspace,
		LiveSync:         h.liveSync,
		UptimeSeconds:    int64(h.server.Uptime().Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
