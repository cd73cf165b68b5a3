package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the collection
type Metrics struct {
	// Ingest metrics
	EventsReceivedTotal  prometheus.Counter
	EventsDiscardedTotal *prometheus.CounterVec
	EditsAppliedTotal    prometheus.Counter
	RevertsTotal         prometheus.Counter
	BotEditsTotal        prometheus.Counter
	ControlEventsTotal   *prometheus.CounterVec

	// Sweep metrics
	SweepsTotal       prometheus.Counter
	SweepDuration     prometheus.Histogram
	PagesEvictedTotal prometheus.Counter
	PagesLive         prometheus.Gauge

	// Snapshot metrics
	SnapshotPersistsTotal prometheus.Counter
	SnapshotFailuresTotal prometheus.Counter

	// Notification metrics
	NotificationsSentTotal    prometheus.Counter
	NotificationsDroppedTotal prometheus.Counter

	// Stream metrics
	StreamConnected       prometheus.Gauge
	StreamReconnectsTotal prometheus.Counter
	StreamErrorsTotal     prometheus.Counter
}

// New creates all metrics registered against the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsReceivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "ingest",
			Name:      "events_received_total",
			Help:      "Total number of raw events received from the stream",
		}),
		EventsDiscardedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "ingest",
			Name:      "events_discarded_total",
			Help:      "Total number of events discarded before aggregation",
		}, []string{"reason"}),
		EditsAppliedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "ingest",
			Name:      "edits_applied_total",
			Help:      "Total number of edit events folded into page records",
		}),
		RevertsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "ingest",
			Name:      "reverts_total",
			Help:      "Total number of edits classified as reverts",
		}),
		BotEditsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "ingest",
			Name:      "bot_edits_total",
			Help:      "Total number of edits classified as bot edits",
		}),
		ControlEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "ingest",
			Name:      "control_events_total",
			Help:      "Total number of control (log) events handled",
		}, []string{"action"}),

		SweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "sweep",
			Name:      "sweeps_total",
			Help:      "Total number of eviction sweeps executed",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wikipulse",
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of eviction sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
		PagesEvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "sweep",
			Name:      "pages_evicted_total",
			Help:      "Total number of pages removed by the eviction policy",
		}),
		PagesLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "wikipulse",
			Subsystem: "sweep",
			Name:      "pages_live",
			Help:      "Number of pages currently tracked",
		}),

		SnapshotPersistsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "snapshot",
			Name:      "persists_total",
			Help:      "Total number of snapshot persists",
		}),
		SnapshotFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "snapshot",
			Name:      "failures_total",
			Help:      "Total number of snapshot persist or restore failures",
		}),

		NotificationsSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of edit notifications delivered",
		}),
		NotificationsDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Total number of edit notifications dropped on a full buffer",
		}),

		StreamConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "wikipulse",
			Subsystem: "stream",
			Name:      "connected",
			Help:      "Whether the stream client currently holds a connection",
		}),
		StreamReconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnect attempts",
		}),
		StreamErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "wikipulse",
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Total number of stream transport errors",
		}),
	}
}
