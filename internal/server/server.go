// Package server provides the WebSocket endpoint phones connect to.
// Each connection gets its own session; frames are decoded, handed to the
// command handler in receipt order, and answered on the same connection.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
	"github.com/vonxq/voice-to-cursor/internal/relay"
	"github.com/vonxq/voice-to-cursor/internal/session"
)

// NewServer creates a server. Call StartAsync to begin accepting connections.
func NewServer(opts Options, registry *session.Registry, handler Handler) *Server {
	if opts.PortAttempts < 1 {
		opts.PortAttempts = 1
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:     opts,
		addr:     joinHostPort(opts.Host, opts.Port),
		clients:  make(map[*Client]bool),
		registry: registry,
		handler:  handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan protocol.Frame, channelBufferSize),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	s.relay = relay.New(s)
	return s
}

// Relay returns the reply relay bound to this server.
func (s *Server) Relay() *relay.Relay { return s.relay }

// Registry returns the session registry.
func (s *Server) Registry() *session.Registry { return s.registry }

// SetConnectionObserver registers the connect/disconnect observer. It
// replaces any earlier one.
func (s *Server) SetConnectionObserver(fn ConnectionObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// SetStatusHandler sets the handler for /status.
func (s *Server) SetStatusHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusHandler = h
}

// Addr returns the bound address, or the configured one before listening.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Uptime returns how long the server has existed.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// handleWebSocket upgrades an HTTP connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:      id,
		conn:    conn,
		send:    make(chan protocol.Frame, channelBufferSize),
		done:    make(chan struct{}),
		server:  s,
		session: s.registry.Open(id, r.RemoteAddr),
		limiter: rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.registry.Close(id)
		conn.Close()
		return
	}
	s.clients[client] = true
	count := len(s.clients)
	observer := s.observer
	s.mu.Unlock()

	log.Printf("server: client %s connected from %s (%d total)", id, r.RemoteAddr, count)
	if observer != nil {
		observer(id, protocol.NewConnection(true), count)
	}

	go client.writePump()
	go client.readPump()
}

// runBroadcaster reads from the broadcast channel and sends to all clients.
func (s *Server) runBroadcaster() {
	for msg := range s.broadcast {
		s.mu.RLock()
		for client := range s.clients {
			// Try to send to each client, but don't block if their buffer is full
			// or if the client is shutting down.
			select {
			case <-client.done:
			case client.send <- msg:
			default:
				log.Printf("server: client %s send buffer full, dropping %s", client.id, msg.FrameType())
			}
		}
		s.mu.RUnlock()
	}
}

// writePump sends frames from the send channel and pings periodically.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Shutdown signaled; send close frame and exit.
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("server: failed to marshal %s: %v", msg.FrameType(), err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("server: write to %s failed: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames and processes them one at a time, so commands from
// one phone run in the order they were sent.
func (c *Client) readPump() {
	defer func() {
		s := c.server
		s.mu.Lock()
		delete(s.clients, c)
		count := len(s.clients)
		observer := s.observer
		s.mu.Unlock()

		// Releases the surface claim and drops the staged draft.
		s.registry.Close(c.id)
		c.closeSend()

		log.Printf("server: client %s disconnected (%d remaining)", c.id, count)
		if observer != nil {
			observer(c.id, protocol.NewConnection(false), count)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				log.Printf("server: read from %s failed: %v", c.id, err)
			}
			return
		}
		// Any inbound frame proves the peer is alive.
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if !c.limiter.Allow() {
			c.reply(protocol.NewError(apperrors.CodeInputRateLimited, "too many messages, slow down"))
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			log.Printf("server: bad frame from %s: %v", c.id, err)
			code, message := apperrors.ToCodeAndMessage(err)
			c.reply(protocol.NewError(code, message))
			continue
		}

		if msg.Type == protocol.TypeAIReply {
			// Reply tools connect as ordinary clients; fan their reply out.
			c.server.relay.SendAssistantReply(msg.Summary, msg.Content)
			continue
		}

		for _, f := range c.server.handler.Handle(c.server.ctx, c.session, msg) {
			c.reply(f)
		}
	}
}

// reply queues a frame for this client only. It waits briefly for buffer
// space rather than dropping a command's answer.
func (c *Client) reply(f protocol.Frame) {
	select {
	case <-c.done:
	case c.send <- f:
	case <-time.After(replyTimeout):
		log.Printf("server: timed out replying %s to %s", f.FrameType(), c.id)
	}
}
