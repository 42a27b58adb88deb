package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Relay metrics exposed on /metrics. Delivery drops are labeled by reason so
// operators can tell offline recipients from protocol garbage.
var (
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_sessions",
		Help: "Currently registered live sessions.",
	})
	Participants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_participants",
		Help: "Participants with at least one live session.",
	})
	FramesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_frames_in_total",
		Help: "Inbound frames accepted, by frame type.",
	}, []string{"type"})
	Delivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_delivered_total",
		Help: "Frames fanned out to recipient sessions, by frame type.",
	}, []string{"type"})
	Dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_dropped_total",
		Help: "Frames dropped, by reason (no_recipient, malformed, slow_consumer).",
	}, []string{"reason"})
	PresenceBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_presence_broadcasts_total",
		Help: "Presence transitions broadcast to connected sessions.",
	})
	SweptSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_swept_sessions_total",
		Help: "Sessions closed by the idle sweeper.",
	})
)

// Drop reasons used with Dropped.
const (
	DropNoRecipient  = "no_recipient"
	DropMalformed    = "malformed"
	DropSlowConsumer = "slow_consumer"
)
