package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/logger"
)

const (
	// writeWait bounds a single frame write to a peer.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before the read
	// side gives up; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Session is one live connection bound to a participant. Created on a
// successful auth handshake, destroyed on disconnect. The write pump is the
// only goroutine that touches conn for writes; everyone else goes through
// enqueue.
type Session struct {
	ID            string
	ParticipantID int64
	Role          string
	ConnectedAt   time.Time

	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	lastSeen atomic.Int64 // unix nanos
	closed   sync.Once
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// IdleFor reports how long the session has gone without inbound activity.
func (s *Session) IdleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}

// enqueue hands a frame to the write pump without blocking. A false return
// means the session is closed or its buffer is full (slow consumer).
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// close signals the write pump and shuts the underlying connection once. The
// send channel itself is never closed: a delivery holding a registry snapshot
// can race a close, and enqueue must drop the frame, not panic.
func (s *Session) close() {
	s.closed.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

// readPump consumes inbound frames until the connection dies. Frame handling
// is inline, which preserves sender order for a single connection.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.close()
	}()
	s.conn.SetReadLimit(s.hub.opts.MaxFrameBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.touch()
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("session_read_error", "session", s.ID, "participant", s.ParticipantID, "error", err)
			}
			return
		}
		s.touch()
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.hub.handleFrame(s, data)
	}
}

// writePump drains the send channel to the peer and keeps the connection
// alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}()
	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
