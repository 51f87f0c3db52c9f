package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "codeshot"

var (
	promRoomCurrent        prometheus.Gauge
	promParticipantCurrent prometheus.Gauge
	promClientCurrent      prometheus.Gauge
	promRoomDuration       prometheus.Histogram
	promRoomReaped         *prometheus.CounterVec
	promChatMessages       prometheus.Counter
	promSignalRelayed      *prometheus.CounterVec
	promSignalDropped      *prometheus.CounterVec
	promClientEvents       *prometheus.CounterVec
)

func init() {
	promRoomCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "total",
		Help:      "Rooms currently held in the registry.",
	})
	promParticipantCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "participant",
		Name:      "total",
		Help:      "Participants currently joined across all rooms.",
	})
	promClientCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "total",
		Help:      "Open websocket channels.",
	})
	promRoomDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "duration_seconds",
		Buckets: []float64{
			5, 10, 60, 5 * 60, 10 * 60, 30 * 60, 60 * 60, 2 * 60 * 60, 5 * 60 * 60,
		},
	})
	promRoomReaped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "reaped_total",
	}, []string{"reason"})
	promChatMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "chat",
		Name:      "messages_total",
	})
	promSignalRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "relayed_total",
	}, []string{"kind"})
	promSignalDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "dropped_total",
	}, []string{"kind", "reason"})
	promClientEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "events_total",
	}, []string{"event"})

	prometheus.MustRegister(promRoomCurrent)
	prometheus.MustRegister(promParticipantCurrent)
	prometheus.MustRegister(promClientCurrent)
	prometheus.MustRegister(promRoomDuration)
	prometheus.MustRegister(promRoomReaped)
	prometheus.MustRegister(promChatMessages)
	prometheus.MustRegister(promSignalRelayed)
	prometheus.MustRegister(promSignalDropped)
	prometheus.MustRegister(promClientEvents)
}

// SetRegistrySize publishes the current room and participant counts.
func SetRegistrySize(rooms, participants int) {
	promRoomCurrent.Set(float64(rooms))
	promParticipantCurrent.Set(float64(participants))
}

// ClientConnected and ClientDisconnected track open channels.
func ClientConnected() {
	promClientCurrent.Inc()
}

func ClientDisconnected() {
	promClientCurrent.Dec()
}

// RoomReaped records a room deletion. reason is "empty" or "stale".
func RoomReaped(reason string, lifetime time.Duration) {
	promRoomReaped.WithLabelValues(reason).Inc()
	promRoomDuration.Observe(lifetime.Seconds())
}

func ChatMessageRelayed() {
	promChatMessages.Inc()
}

func SignalRelayed(kind string) {
	promSignalRelayed.WithLabelValues(kind).Inc()
}

func SignalDropped(kind, reason string) {
	promSignalDropped.WithLabelValues(kind, reason).Inc()
}

// ClientEvent counts inbound events by name. Unknown names are folded into
// "unknown" to keep label cardinality bounded.
func ClientEvent(event string, known bool) {
	if !known {
		event = "unknown"
	}
	promClientEvents.WithLabelValues(event).Inc()
}
