package client

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
)

// State is the connection lifecycle. There is no automatic reconnect: after
// an unexpected close the manager stays Disconnected until the next
// externally-triggered Connect (navigation, auth change). Known limitation.
type State int

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Ready
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	default:
		return "disconnected"
	}
}

// Identity is the participant context supplied by the host application.
type Identity struct {
	ID   int64
	Role string
}

// Visitor is the anonymous participant context. Guests chat like anyone else.
func Visitor() Identity {
	return Identity{ID: models.AnonymousID, Role: models.RoleVisitor}
}

// Handlers receive inbound frames. All callbacks run on the single receive
// loop goroutine, so handler code needs no locking against other inbound
// frames.
type Handlers struct {
	OnMessage    func(*models.Message)
	OnAck        func(*models.Ack)
	OnTyping     func(*models.Typing)
	OnStatus     func(*models.Status)
	OnDisconnect func(error)
}

var (
	ErrNoIdentity    = errors.New("no participant context; set an identity or visitor mode first")
	ErrRouteExcluded = errors.New("current route does not permit chat")
	ErrNotReady      = errors.New("connection not ready")
)

// ConnManager owns the single persistent connection. All other components go
// through Send; nothing else touches the socket.
type ConnManager struct {
	mu         sync.Mutex
	url        string
	state      State
	identity   *Identity
	allowRoute func() bool
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	handlers   Handlers
}

func NewConnManager(url string, h Handlers) *ConnManager {
	return &ConnManager{url: url, handlers: h}
}

// SetIdentity installs the participant context. Passing nil is a logout: any
// live or in-progress connection is closed and the manager returns to
// Disconnected until a new context triggers Connect.
func (c *ConnManager) SetIdentity(id *Identity) {
	c.mu.Lock()
	c.identity = id
	conn := c.conn
	mustClose := id == nil && (c.state == Connecting || c.state == Authenticating || c.state == Ready)
	if mustClose {
		c.state = Disconnected
		c.conn = nil
		c.stopPumpLocked()
	}
	c.mu.Unlock()
	if mustClose && conn != nil {
		_ = conn.Close()
	}
}

// SetRoutePolicy installs the host's route check; chat never connects from
// excluded routes. A nil policy allows all routes.
func (c *ConnManager) SetRoutePolicy(f func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowRoute = f
}

func (c *ConnManager) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the relay and performs the auth handshake. It is driven by
// external lifecycle events only; a no-op when already connected.
func (c *ConnManager) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNoIdentity
	}
	if c.allowRoute != nil && !c.allowRoute() {
		c.mu.Unlock()
		return ErrRouteExcluded
	}
	ident := *c.identity
	c.state = Connecting
	url := c.url
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		logger.Warn("chat_connect_failed", "url", url, "error", err)
		return err
	}

	c.mu.Lock()
	if c.identity == nil {
		// logged out while dialing
		c.state = Disconnected
		c.mu.Unlock()
		_ = conn.Close()
		return ErrNoIdentity
	}
	c.state = Authenticating
	c.conn = conn
	c.mu.Unlock()

	auth := models.Auth{Type: models.FrameAuth, UserID: ident.ID, Role: ident.Role}
	if err := conn.WriteJSON(&auth); err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		return err
	}

	c.mu.Lock()
	c.state = Ready
	c.send = make(chan []byte, 32)
	c.done = make(chan struct{})
	ch, done := c.send, c.done
	c.mu.Unlock()

	go c.writePump(conn, ch, done)
	go c.receiveLoop(conn)
	logger.Info("chat_connected", "user", ident.ID, "role", ident.Role)
	return nil
}

// Close tears the connection down explicitly.
func (c *ConnManager) Close() {
	c.mu.Lock()
	conn := c.conn
	c.state = Disconnected
	c.conn = nil
	c.stopPumpLocked()
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// stopPumpLocked releases the write pump; callers hold c.mu.
func (c *ConnManager) stopPumpLocked() {
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}

// Send marshals and queues a frame. Blocks only while the transport buffer
// is full.
func (c *ConnManager) Send(v any) error {
	c.mu.Lock()
	if c.state != Ready {
		c.mu.Unlock()
		return ErrNotReady
	}
	ch, done := c.send, c.done
	c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case ch <- b:
		return nil
	case <-done:
		return ErrNotReady
	}
}

// writePump is the only writer on the socket after the handshake.
func (c *ConnManager) writePump(conn *websocket.Conn, ch chan []byte, done chan struct{}) {
	for {
		select {
		case frame := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Warn("chat_write_failed", "error", err)
				return
			}
		case <-done:
			return
		}
	}
}

// receiveLoop is the single dispatch point for inbound frames: one goroutine
// reads, decodes and calls the typed handlers, so state merges downstream
// are serialized without explicit locking.
func (c *ConnManager) receiveLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasCurrent := c.conn == conn
			if wasCurrent {
				c.state = Disconnected
				c.conn = nil
				c.stopPumpLocked()
			}
			c.mu.Unlock()
			if wasCurrent {
				logger.Info("chat_disconnected", "error", err)
				if c.handlers.OnDisconnect != nil {
					c.handlers.OnDisconnect(err)
				}
			}
			return
		}
		frame, err := models.DecodeFrame(data)
		if err != nil {
			// malformed frames never crash the connection
			logger.Warn("chat_frame_ignored", "error", err)
			continue
		}
		switch f := frame.(type) {
		case *models.Message:
			if c.handlers.OnMessage != nil {
				c.handlers.OnMessage(f)
			}
		case *models.Ack:
			if c.handlers.OnAck != nil {
				c.handlers.OnAck(f)
			}
		case *models.Typing:
			if c.handlers.OnTyping != nil {
				c.handlers.OnTyping(f)
			}
		case *models.Status:
			if c.handlers.OnStatus != nil {
				c.handlers.OnStatus(f)
			}
		default:
			logger.Warn("chat_frame_ignored", "reason", "unexpected type")
		}
	}
}

// WSURL converts a page URL to the relay websocket endpoint, choosing wss
// iff the page is served over TLS.
func WSURL(pageURL string) string {
	switch {
	case strings.HasPrefix(pageURL, "https://"):
		return "wss://" + strings.TrimPrefix(pageURL, "https://") + "/ws"
	case strings.HasPrefix(pageURL, "http://"):
		return "ws://" + strings.TrimPrefix(pageURL, "http://") + "/ws"
	default:
		return pageURL
	}
}
