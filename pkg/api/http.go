package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatrelay/pkg/logger"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/utils"
)

// Router returns the operational HTTP API:
// - GET /healthz            liveness probe
// - GET /v1/stats           live session/participant counts and uptime
// - GET /v1/presence        online participant ids
// - GET /ws                 the chat websocket endpoint
// Presence and stats are snapshots of in-memory registry state; nothing here
// reads or stores message content.
func Router(h *relay.Hub) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/stats", func(w http.ResponseWriter, _ *http.Request) {
		sessions, participants, uptime := h.Stats()
		out := struct {
			Sessions     int   `json:"sessions"`
			Participants int   `json:"participants"`
			UptimeS      int64 `json:"uptime_s"`
		}{Sessions: sessions, Participants: participants, UptimeS: int64(uptime.Seconds())}
		if err := utils.JSONWrite(w, http.StatusOK, out); err != nil {
			logger.Warn("stats_encode_failed", "error", err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/v1/presence", func(w http.ResponseWriter, _ *http.Request) {
		out := struct {
			Online []int64 `json:"online"`
		}{Online: h.Online()}
		if err := utils.JSONWrite(w, http.StatusOK, out); err != nil {
			logger.Warn("presence_encode_failed", "error", err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/ws", h.ServeWS).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.JSONError(w, http.StatusNotFound, "not found")
	})

	return r
}
