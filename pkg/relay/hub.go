package relay

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/telemetry"
	"chatrelay/pkg/validation"
)

// Options tune the hub. Zero values are replaced with the defaults from
// pkg/config at construction.
type Options struct {
	AuthTimeout    time.Duration
	SendBuffer     int
	MaxFrameBytes  int64
	AllowedOrigins []string
}

// Hub owns the session registry and implements delivery and presence
// fan-out. Messages are at-most-once: no recipient session means the frame
// is dropped, not queued.
type Hub struct {
	opts    Options
	reg     *registry
	started time.Time
}

func New(opts Options) *Hub {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 1 << 20
	}
	return &Hub{opts: opts, reg: newRegistry(), started: time.Now()}
}

// register binds an authenticated connection to a participant and announces
// the presence transition when this is their first session.
func (h *Hub) register(conn *websocket.Conn, auth *models.Auth) *Session {
	s := &Session{
		ID:            uuid.NewString(),
		ParticipantID: auth.UserID,
		Role:          auth.Role,
		ConnectedAt:   time.Now(),
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, h.opts.SendBuffer),
		done:          make(chan struct{}),
	}
	s.touch()
	first := h.reg.add(s)
	sessions, participants := h.reg.counts()
	telemetry.Sessions.Set(float64(sessions))
	telemetry.Participants.Set(float64(participants))
	logger.Info("session_registered", "session", s.ID, "participant", s.ParticipantID, "role", s.Role, "first", first)
	if first {
		h.broadcastPresence(s.ParticipantID, models.StatusOnline)
	}
	return s
}

// unregister removes a session and announces offline when it was the
// participant's last one. Safe to call more than once per session.
func (h *Hub) unregister(s *Session) {
	last, found := h.reg.remove(s)
	if !found {
		return
	}
	sessions, participants := h.reg.counts()
	telemetry.Sessions.Set(float64(sessions))
	telemetry.Participants.Set(float64(participants))
	logger.Info("session_unregistered", "session", s.ID, "participant", s.ParticipantID, "last", last)
	if last {
		h.broadcastPresence(s.ParticipantID, models.StatusOffline)
	}
}

// handleFrame processes one inbound frame from an authenticated session.
// Malformed frames are dropped without tearing the connection down.
func (h *Hub) handleFrame(s *Session, data []byte) {
	frame, err := models.DecodeFrame(data)
	if err != nil {
		telemetry.Dropped.WithLabelValues(telemetry.DropMalformed).Inc()
		logger.Warn("frame_discarded", "session", s.ID, "error", err)
		return
	}
	switch f := frame.(type) {
	case *models.Auth:
		// one auth per connection; the duplicate frame is rejected, the
		// session stays up
		telemetry.Dropped.WithLabelValues(telemetry.DropMalformed).Inc()
		logger.Warn("duplicate_auth_rejected", "session", s.ID, "participant", s.ParticipantID)
	case *models.Message:
		h.relayMessage(s, f)
	case *models.Typing:
		h.relayTyping(s, f)
	default:
		telemetry.Dropped.WithLabelValues(telemetry.DropMalformed).Inc()
		logger.Warn("frame_discarded", "session", s.ID, "reason", "wrong_direction")
	}
}

// relayMessage validates, assigns the authoritative id, stamps sender and
// timestamp, fans out to the recipient's sessions and acks the sender with
// the local->relay id mapping.
func (h *Hub) relayMessage(s *Session, m *models.Message) {
	telemetry.FramesIn.WithLabelValues(models.FrameMessage).Inc()
	if err := validation.ValidateMessage(m); err != nil {
		telemetry.Dropped.WithLabelValues(telemetry.DropMalformed).Inc()
		logger.Warn("message_rejected", "session", s.ID, "error", err)
		return
	}
	localID := m.ID
	m.ID = uuid.NewString()
	m.SenderID = s.ParticipantID
	m.Role = s.Role
	m.Read = false
	if m.Timestamp == "" {
		m.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	delivered := h.fanout(m.ReceiverID, mustMarshal(m), models.FrameMessage)
	if delivered == 0 {
		telemetry.Dropped.WithLabelValues(telemetry.DropNoRecipient).Inc()
		logger.Debug("message_dropped_no_recipient", "receiver", m.ReceiverID, "id", m.ID)
	}
	ack := models.Ack{Type: models.FrameAck, LocalID: localID, ID: m.ID, Timestamp: m.Timestamp}
	if !s.enqueue(mustMarshal(&ack)) {
		h.dropSlowConsumer(s)
	}
}

// relayTyping forwards a typing frame verbatim apart from restamping the
// sender. Typing is transient: no ack, no validation beyond the receiver id.
func (h *Hub) relayTyping(s *Session, t *models.Typing) {
	telemetry.FramesIn.WithLabelValues(models.FrameTyping).Inc()
	if err := validation.ValidateTyping(t); err != nil {
		telemetry.Dropped.WithLabelValues(telemetry.DropMalformed).Inc()
		logger.Warn("typing_rejected", "session", s.ID, "error", err)
		return
	}
	t.SenderID = s.ParticipantID
	t.Role = s.Role
	if h.fanout(t.ReceiverID, mustMarshal(t), models.FrameTyping) == 0 {
		telemetry.Dropped.WithLabelValues(telemetry.DropNoRecipient).Inc()
	}
}

// fanout enqueues a frame on every live session of the receiver and returns
// how many sessions got it.
func (h *Hub) fanout(receiverID int64, frame []byte, frameType string) int {
	delivered := 0
	for _, target := range h.reg.get(receiverID) {
		if target.enqueue(frame) {
			delivered++
			telemetry.Delivered.WithLabelValues(frameType).Inc()
		} else {
			h.dropSlowConsumer(target)
		}
	}
	return delivered
}

// broadcastPresence tells every connected session about a participant's
// online/offline transition. The relay keeps no contact graph; clients
// filter by whether the id is a known contact.
func (h *Hub) broadcastPresence(participantID int64, status string) {
	frame := mustMarshal(&models.Status{Type: models.FrameStatus, UserID: participantID, Status: status})
	for _, target := range h.reg.all() {
		if target.ParticipantID == participantID {
			continue
		}
		if !target.enqueue(frame) {
			h.dropSlowConsumer(target)
		}
	}
	telemetry.PresenceBroadcasts.Inc()
	logger.Info("presence_broadcast", "participant", participantID, "status", status)
}

func (h *Hub) dropSlowConsumer(s *Session) {
	telemetry.Dropped.WithLabelValues(telemetry.DropSlowConsumer).Inc()
	logger.Warn("slow_consumer_closed", "session", s.ID, "participant", s.ParticipantID)
	h.unregister(s)
	s.close()
}

// Stats returns live counts for the operational API.
func (h *Hub) Stats() (sessions, participants int, uptime time.Duration) {
	sessions, participants = h.reg.counts()
	return sessions, participants, time.Since(h.started)
}

// Online returns the sorted ids of participants with at least one session.
func (h *Hub) Online() []int64 {
	return h.reg.participants()
}

// SweepIdle closes sessions idle longer than maxIdle and returns how many
// were closed.
func (h *Hub) SweepIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	swept := 0
	for _, s := range h.reg.all() {
		if s.IdleFor() > maxIdle {
			logger.Info("idle_session_swept", "session", s.ID, "participant", s.ParticipantID, "idle", s.IdleFor().String())
			h.unregister(s)
			s.close()
			swept++
		}
	}
	if swept > 0 {
		telemetry.SweptSessions.Add(float64(swept))
	}
	return swept
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// frame structs contain no unmarshalable types
		panic(err)
	}
	return b
}
