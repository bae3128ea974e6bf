package server

import (
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"syscall"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
)

// Listen binds host:port, moving on to the next port while the address is in
// use, for up to attempts ports. Exhausting the range yields
// server.address_in_use; any other bind error yields server.listen_failed
// immediately.
func Listen(host string, port, attempts int) (net.Listener, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		addr := joinHostPort(host, port+i)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			if i > 0 {
				log.Printf("server: port %d in use, using %d", port, port+i)
			}
			return ln, nil
		}
		if !isAddrInUse(err) {
			return nil, apperrors.ListenFailed(addr, err)
		}
		lastErr = err
	}
	if attempts == 1 {
		return nil, apperrors.AddressInUse(joinHostPort(host, port), lastErr)
	}
	rangeAddr := joinHostPort(host, port) + "-" + strconv.Itoa(port+attempts-1)
	return nil, apperrors.AddressInUse(rangeAddr, lastErr)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// StartAsync binds and starts serving in a goroutine.
//
// The returned channel receives nil if startup succeeded, or an error if
// no port could be bound. After receiving from the channel, the server is
// either running or failed.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)

	// Create the listener first to detect port conflicts immediately.
	ln, err := Listen(s.opts.Host, s.opts.Port, s.opts.PortAttempts)
	if err != nil {
		errCh <- err
		close(errCh)
		return errCh
	}
	return s.serve(ln, errCh)
}

// StartOn serves on an existing listener.
func (s *Server) StartOn(ln net.Listener) <-chan error {
	return s.serve(ln, make(chan error, 1))
}

func (s *Server) serve(ln net.Listener, errCh chan error) <-chan error {
	mux := s.createMux()

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{Handler: mux}
	httpServer := s.httpServer
	s.mu.Unlock()

	go s.runBroadcaster()

	go func() {
		log.Printf("server: listening on %s", ln.Addr())
		errCh <- nil
		close(errCh)

		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	return errCh
}

// Port returns the bound port, or the configured port before listening.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		if a, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return a.Port
		}
	}
	return s.opts.Port
}

// Stop gracefully shuts down the server.
// It sends close frames to all clients, closes connections, and stops
// accepting new ones.
func (s *Server) Stop() error {
	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true

	// writePump sends the close frame and closes the connection once it
	// sees done closed.
	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]bool)

	// Safe only after stopped=true so no Broadcast can race the close.
	close(s.broadcast)
	s.cancel()
	httpServer := s.httpServer

	s.mu.Unlock()

	if httpServer != nil {
		return httpServer.Close()
	}
	return nil
}
