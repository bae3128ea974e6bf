package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vonxq/voice-to-cursor/internal/protocol"
	"github.com/vonxq/voice-to-cursor/internal/relay"
	"github.com/vonxq/voice-to-cursor/internal/session"
)

// channelBufferSize is the buffer size for the broadcast channel and per-client
// send channels. If the buffer fills up, messages may be dropped for slow clients.
const channelBufferSize = 256

// Connection timing.
const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	replyTimeout = 5 * time.Second

	// maxMessageSize bounds a single frame. Images arrive base64-encoded, so
	// this caps a photo at roughly 15MB decoded.
	maxMessageSize = 20 * 1024 * 1024
)

// Default inbound rate: generous enough for per-keystroke sync_text.
const (
	DefaultRateLimit = 50
	DefaultRateBurst = 100
)

// Handler runs one decoded command for a session and returns the frames to
// send back to the originating connection.
type Handler interface {
	Handle(ctx context.Context, sess *session.Session, msg protocol.Message) []protocol.Frame
}

// ConnectionObserver is notified when a phone connects or disconnects. It
// receives the UI-only connection sideband and the resulting client count.
type ConnectionObserver func(clientID string, event protocol.Connection, count int)

// Options configures a Server.
type Options struct {
	// Host and Port are the preferred bind address.
	Host string
	Port int
	// PortAttempts is how many consecutive ports to try. 1 fails fast.
	PortAttempts int

	// RateLimit and RateBurst bound inbound frames per client.
	RateLimit float64
	RateBurst int
}

// Server manages WebSocket connections from phones, hands each inbound frame
// to the Handler, and broadcasts replies to every connected phone.
type Server struct {
	opts Options

	// addr is the address actually bound, set once listening.
	addr string

	// upgrader converts HTTP connections to WebSocket connections.
	// Phones connect from arbitrary LAN origins so the origin is not checked.
	upgrader websocket.Upgrader

	// clients tracks all connected WebSocket clients.
	clients map[*Client]bool

	// mu protects clients, stopped, and the setters below.
	mu sync.RWMutex

	// stopped indicates whether the server has been stopped.
	// This prevents sending to a closed broadcast channel.
	stopped bool

	// broadcast receives frames to send to all clients.
	broadcast chan protocol.Frame

	httpServer *http.Server
	listener   net.Listener

	registry *session.Registry
	handler  Handler
	relay    *relay.Relay

	// observer is told about connects and disconnects. May be nil.
	observer ConnectionObserver

	// statusHandler serves /status. Set via SetStatusHandler.
	statusHandler http.Handler

	// ctx is cancelled by Stop. A phone disconnecting does not cancel a
	// command already running for it.
	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
}

// Client represents a single phone connection.
// Each client has its own goroutine for writing messages,
// which prevents slow clients from blocking the broadcast.
type Client struct {
	// id is the opaque connection id, also the session id.
	id string

	conn *websocket.Conn

	// send is a buffered channel for outgoing frames.
	send chan protocol.Frame

	// done is closed to signal the client should shut down.
	done chan struct{}

	// sendOnce ensures done is only closed once.
	// Both Stop() and readPump() may try to close it.
	sendOnce sync.Once

	server  *Server
	session *session.Session

	// limiter rate-limits inbound frames.
	limiter *rate.Limiter
}

// closeSend safely signals the client to shut down exactly once.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.done)
	})
}
