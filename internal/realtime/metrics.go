package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	// wsConnections gauges open room channel connections.
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_ws_connections",
			Help: "Current number of open room channel websocket connections.",
		},
	)

	// unreadStreams gauges open unread stream subscriptions.
	unreadStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_unread_streams",
			Help: "Current number of open unread stream subscriptions.",
		},
	)

	// framesSent counts frames queued for delivery, by channel kind.
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_sent_total",
			Help: "Frames queued to subscribers.",
		},
		[]string{"channel"},
	)

	// framesDropped counts frames dropped because a subscriber was slow.
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_dropped_total",
			Help: "Frames dropped because the subscriber queue was full.",
		},
		[]string{"channel"},
	)

	// busPublishes counts cross-instance publishes by outcome.
	busPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_bus_publish_total",
			Help: "Cross-instance fan-out publishes by result (ok|error|dropped).",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, unreadStreams, framesSent, framesDropped, busPublishes)
}
