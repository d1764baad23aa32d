package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MailImported   prometheus.Counter
	ImportRuns     *prometheus.CounterVec
	ImportDuration prometheus.Histogram

	NotificationsPublished *prometheus.CounterVec
	NotificationsDropped   prometheus.Counter

	WSConnections prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MailImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mail_imported_total",
			Help: "Total number of mail messages persisted as tickets.",
		}),

		ImportRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_import_runs_total",
			Help: "Total import cycles by outcome (ok, error, skipped).",
		}, []string{"result"}),

		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mail_import_duration_seconds",
			Help:    "Wall-clock duration of completed import cycles.",
			Buckets: prometheus.DefBuckets,
		}),

		NotificationsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total notifications handed to the pub/sub channel, by audience.",
		}, []string{"audience"}),

		NotificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Total notifications dropped by the best-effort fanout.",
		}),

		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Currently attached WebSocket clients.",
		}),
	}

	reg.MustRegister(
		m.MailImported,
		m.ImportRuns,
		m.ImportDuration,
		m.NotificationsPublished,
		m.NotificationsDropped,
		m.WSConnections,
	)

	return m
}

// PollerHooks returns the callback expected by scheduler.Hooks.OnRun.
// Duration is only observed for cycles that actually ran.
func (m *Metrics) PollerHooks() func(result string, imported int, elapsed time.Duration) {
	return func(result string, imported int, elapsed time.Duration) {
		m.ImportRuns.WithLabelValues(result).Inc()
		if imported > 0 {
			m.MailImported.Add(float64(imported))
		}
		if result == "ok" || result == "error" {
			m.ImportDuration.Observe(elapsed.Seconds())
		}
	}
}

// FanoutHooks returns the metric callback functions expected by fanout.Hooks.
// Per-user groups collapse into a single "user" audience label to keep
// cardinality bounded.
func (m *Metrics) FanoutHooks() (onPublished func(group string), onDropped func()) {
	onPublished = func(group string) {
		m.NotificationsPublished.WithLabelValues(audience(group)).Inc()
	}
	onDropped = func() {
		m.NotificationsDropped.Inc()
	}
	return
}

// GatewayHooks returns the connect/disconnect callbacks for the WebSocket
// gateway's connection gauge.
func (m *Metrics) GatewayHooks() (onConnect func(), onDisconnect func()) {
	onConnect = func() { m.WSConnections.Inc() }
	onDisconnect = func() { m.WSConnections.Dec() }
	return
}

func audience(group string) string {
	if strings.HasPrefix(group, "user:") {
		return "user"
	}
	return group
}
