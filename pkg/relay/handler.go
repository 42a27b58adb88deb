package relay

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/models"
	"chatrelay/pkg/telemetry"
	"chatrelay/pkg/validation"
)

// ServeWS upgrades the request and runs the auth handshake. The first frame
// must be a valid auth frame; anything else closes the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), h.opts.AllowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	go h.handshake(conn, r.RemoteAddr)
}

// handshake reads the mandatory first auth frame, registers the session and
// starts the pumps.
func (h *Hub) handshake(conn *websocket.Conn, remote string) {
	conn.SetReadLimit(h.opts.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.AuthTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.Warn("auth_read_failed", "remote", remote, "error", err)
		_ = conn.Close()
		return
	}
	frame, err := models.DecodeFrame(data)
	if err != nil {
		h.rejectHandshake(conn, remote, "malformed first frame")
		return
	}
	auth, ok := frame.(*models.Auth)
	if !ok {
		h.rejectHandshake(conn, remote, "first frame not auth")
		return
	}
	if err := validation.ValidateAuth(auth); err != nil {
		h.rejectHandshake(conn, remote, err.Error())
		return
	}
	telemetry.FramesIn.WithLabelValues(models.FrameAuth).Inc()

	s := h.register(conn, auth)
	go s.writePump()
	go s.readPump()
}

func (h *Hub) rejectHandshake(conn *websocket.Conn, remote, reason string) {
	telemetry.Dropped.WithLabelValues(telemetry.DropMalformed).Inc()
	logger.Warn("handshake_rejected", "remote", remote, "reason", reason)
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	_ = conn.Close()
}

// originAllowed mirrors the HTTP middleware's origin policy for the ws
// upgrade. No configured origins means same-host tools and non-browser
// clients (which send no Origin) are accepted.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
