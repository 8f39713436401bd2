package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_events_published_total",
		Help: "Total number of envelopes handed to the bus transport, labelled by event type.",
	}, []string{"event_type"})

	EventsPublishFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_events_publish_failed_total",
		Help: "Total number of publish attempts rejected by validation or the transport.",
	}, []string{"reason"})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_events_received_total",
		Help: "Total number of well-formed envelopes delivered to subscribers, labelled by event type.",
	}, []string{"event_type"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_events_dropped_total",
		Help: "Total number of inbound messages dropped before reaching a handler, labelled by reason.",
	}, []string{"reason"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_notifications_created_total",
		Help: "Total number of notifications persisted by the translator, labelled by type.",
	}, []string{"type"})

	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_notifications_suppressed_total",
		Help: "Total number of self-notifications suppressed, labelled by event type.",
	}, []string{"event_type"})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedpulse_notifications_failed_total",
		Help: "Total number of notifications the translator could not persist.",
	})

	Pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpulse_realtime_pushes_total",
		Help: "Total number of per-connection pushes, labelled by result.",
	}, []string{"result"})

	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedpulse_realtime_connections",
		Help: "Current number of registered real-time connections.",
	})

	TranslationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedpulse_translation_duration_ms",
		Help:    "Time spent translating one envelope, including store and delivery, in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)
