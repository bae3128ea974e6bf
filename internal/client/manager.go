// Package client is the phone side of the protocol: it owns the websocket to
// the desktop agent, remembers the last good URL, reconnects when the app
// returns to the foreground, and folds replies into UI state.
package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// Defaults for Options.
const (
	DefaultConnectTimeout   = 5 * time.Second
	DefaultReconnectDelay   = 3 * time.Second
	DefaultReconnectRetries = 5
)

// writeTimeout bounds a single frame write.
const writeTimeout = 10 * time.Second

// URLStore persists the last URL that connected successfully.
type URLStore interface {
	LastURL() (string, error)
	SaveLastURL(url string) error
}

// Options configures a Manager. Zero values take the defaults.
type Options struct {
	ConnectTimeout   time.Duration
	ReconnectDelay   time.Duration
	ReconnectRetries uint64
}

// Manager owns at most one connection. Each event has a single handler;
// registering again replaces the previous one.
type Manager struct {
	store  URLStore
	opts   Options
	dialer websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	url  string

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	handlerMu sync.RWMutex
	onOpen    func()
	onClose   func()
	onError   func(error)
	onMessage func(protocol.Message)
}

// NewManager creates a Manager. store may be nil, in which case nothing is
// persisted and TryAutoConnect always reports false.
func NewManager(store URLStore, opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ReconnectRetries == 0 {
		opts.ReconnectRetries = DefaultReconnectRetries
	}
	return &Manager{
		store: store,
		opts:  opts,
		dialer: websocket.Dialer{
			HandshakeTimeout: opts.ConnectTimeout,
		},
	}
}

// OnOpen sets the handler called after a connection opens.
func (m *Manager) OnOpen(fn func()) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onOpen = fn
}

// OnClose sets the handler called when an open connection closes.
func (m *Manager) OnClose(fn func()) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onClose = fn
}

// OnError sets the handler called for connect and read errors.
func (m *Manager) OnError(fn func(error)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onError = fn
}

// OnMessage sets the handler called for every decoded inbound frame.
func (m *Manager) OnMessage(fn func(protocol.Message)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.onMessage = fn
}

func (m *Manager) emitOpen() {
	m.handlerMu.RLock()
	fn := m.onOpen
	m.handlerMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) emitClose() {
	m.handlerMu.RLock()
	fn := m.onClose
	m.handlerMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (m *Manager) emitError(err error) {
	m.handlerMu.RLock()
	fn := m.onError
	m.handlerMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (m *Manager) emitMessage(msg protocol.Message) {
	m.handlerMu.RLock()
	fn := m.onMessage
	m.handlerMu.RUnlock()
	if fn != nil {
		fn(msg)
	}
}

// Connect dials url, replacing any existing connection. It fails with
// client.connect_timeout if the handshake does not finish within the connect
// timeout and client.connect_failed otherwise. On success the URL is saved as
// the last known good one.
func (m *Manager) Connect(ctx context.Context, url string) error {
	return m.connect(ctx, url, true)
}

func (m *Manager) connect(ctx context.Context, url string, save bool) error {
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	conn, _, err := m.dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = apperrors.ConnectTimeout(url, err)
		} else {
			err = apperrors.ConnectFailed(url, err)
		}
		log.Printf("client: %v", err)
		m.emitError(err)
		return err
	}

	m.mu.Lock()
	old := m.conn
	m.conn = conn
	m.url = url
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}

	log.Printf("client: connected to %s", url)
	if save && m.store != nil {
		if err := m.store.SaveLastURL(url); err != nil {
			log.Printf("client: failed to save url: %v", err)
		}
	}

	m.emitOpen()
	go m.readLoop(conn)
	return nil
}

// TryAutoConnect connects to the last saved URL. Failure is silent: it only
// reports whether a connection is now open.
func (m *Manager) TryAutoConnect(ctx context.Context) bool {
	url := m.lastURL()
	if url == "" {
		return false
	}
	if err := m.connect(ctx, url, false); err != nil {
		log.Printf("client: auto-connect to %s failed", url)
		return false
	}
	return true
}

// Foreground is called when the app becomes active. If the connection was
// lost it auto-connects and replays draft so the desktop's staged content
// matches the phone again. It reports whether the manager is connected.
func (m *Manager) Foreground(ctx context.Context, draft Draft) bool {
	if m.IsConnected() {
		return true
	}
	if !m.TryAutoConnect(ctx) {
		return false
	}
	if err := m.Replay(draft); err != nil {
		log.Printf("client: replaying draft failed: %v", err)
	}
	return true
}

// Replay resends a draft's text and images.
func (m *Manager) Replay(draft Draft) error {
	if draft.Text != "" {
		if err := m.SyncText(draft.Text); err != nil {
			return err
		}
	}
	for _, img := range draft.Images {
		if err := m.AddImage(img.ID, img.Base64, img.MimeType); err != nil {
			return err
		}
	}
	return nil
}

// Reconnect retries the last URL on a constant backoff until it connects, the
// retries run out, or ctx is done.
func (m *Manager) Reconnect(ctx context.Context) error {
	url := m.lastURL()
	if url == "" {
		return apperrors.NotConnected()
	}

	attempt := 0
	op := func() error {
		attempt++
		log.Printf("client: reconnect attempt %d to %s", attempt, url)
		return m.connect(ctx, url, true)
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.ReconnectDelay), m.opts.ReconnectRetries),
		ctx,
	)
	return backoff.Retry(op, b)
}

// lastURL prefers the URL of this process's last connection.
func (m *Manager) lastURL() string {
	m.mu.Lock()
	url := m.url
	m.mu.Unlock()
	if url != "" || m.store == nil {
		return url
	}
	url, err := m.store.LastURL()
	if err != nil {
		log.Printf("client: failed to read saved url: %v", err)
		return ""
	}
	return url
}

// URL returns the URL of the current or most recent connection.
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// IsConnected reports whether the transport is open. It says nothing about
// whether the desktop has accepted any command.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Disconnect closes the connection. The close handler runs once the read
// loop notices.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return
	}
	m.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	m.writeMu.Unlock()
	conn.Close()
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		// A replaced connection closing is not a disconnect.
		superseded := m.conn != nil
		m.mu.Unlock()
		conn.Close()

		if superseded {
			return
		}
		log.Printf("client: connection closed")
		m.emitClose()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				m.emitError(err)
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Printf("client: dropping undecodable frame: %v", err)
			continue
		}
		m.emitMessage(msg)
	}
}

func (m *Manager) send(f protocol.Frame) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return apperrors.NotConnected()
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(f); err != nil {
		return apperrors.Wrap(apperrors.CodeClientNotConnected, "send "+string(f.FrameType())+" failed", err)
	}
	return nil
}

// SyncText replaces the desktop's staged text.
func (m *Manager) SyncText(content string) error {
	return m.send(protocol.NewSyncText(content))
}

// AddImage stages an image under a client-chosen id.
func (m *Manager) AddImage(id, base64, mimeType string) error {
	return m.send(protocol.NewSyncImageAdd(id, base64, mimeType))
}

// RemoveImage drops a staged image.
func (m *Manager) RemoveImage(id string) error {
	return m.send(protocol.NewSyncImageRemove(id))
}

// PasteOnly pastes the staged content without submitting.
func (m *Manager) PasteOnly(needAIReply bool) error {
	return m.send(protocol.NewCommand(protocol.TypePasteOnly, needAIReply))
}

// Submit pastes the staged content and presses Enter.
func (m *Manager) Submit(needAIReply bool) error {
	return m.send(protocol.NewCommand(protocol.TypeSubmit, needAIReply))
}

// GetClipboard asks for the desktop clipboard.
func (m *Manager) GetClipboard() error {
	return m.send(protocol.NewCommand(protocol.TypeGetClipboard, false))
}

// GetCurrentLine asks for the text of the focused line.
func (m *Manager) GetCurrentLine() error {
	return m.send(protocol.NewCommand(protocol.TypeGetCurrentLine, false))
}

// ReplaceLine clears the focused line and pastes the desktop clipboard.
func (m *Manager) ReplaceLine() error {
	return m.send(protocol.NewCommand(protocol.TypeReplaceLine, false))
}

// SendText is the legacy one-shot text insertion.
func (m *Manager) SendText(content string) error {
	return m.send(protocol.NewLegacyText(content))
}

// SendImage is the legacy one-shot image insertion.
func (m *Manager) SendImage(base64, mimeType string) error {
	return m.send(protocol.NewLegacyImage(base64, mimeType))
}
