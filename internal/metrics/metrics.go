package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_presence_connections_active",
		Help: "Number of WebSocket connections registered with the hub",
	})
	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_presence_connections_total",
		Help: "The total number of accepted WebSocket connections",
	})

	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_presence_messages_routed_total",
		Help: "Chat messages classified by the router, by routing key",
	}, []string{"routing_key"})
	MessagesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_presence_messages_duplicate_total",
		Help: "Inbound messages whose id was already processed",
	})
	GroupSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_presence_group_sends_total",
		Help: "Hub group sends issued by the router, by result",
	}, []string{"result"})
	Faults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_presence_faults_total",
		Help: "Absorbed faults, by kind",
	}, []string{"kind"})

	Published = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_presence_envelopes_published_total",
		Help: "Envelopes handed to the broker, by driver and result",
	}, []string{"driver", "result"})
	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_presence_publish_duration_seconds",
		Help:    "Time taken to publish an envelope",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	PresenceTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_presence_monitor_ticks_total",
		Help: "Presence monitor ticks",
	})
	OfflineNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_presence_offline_notifications_total",
		Help: "Offline notifications sent, by stale party role",
	}, []string{"role"})
	PresenceLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_presence_links",
		Help: "Current number of officer/merchant links",
	})

	DedupSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_presence_dedup_swept_total",
		Help: "Processed-message records removed by the sweeper",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
