package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	Commands        *prometheus.CounterVec
	CommandErrors   *prometheus.CounterVec
	RoomsActive     prometheus.Gauge
	SlapReactionMs  prometheus.Histogram
	JournalRetries  prometheus.Counter
	JournalFailures prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slaphard_commands_total",
			Help: "Inbound commands by name.",
		}, []string{"cmd"}),
		CommandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slaphard_command_errors_total",
			Help: "Rejected commands by wire error code.",
		}, []string{"code"}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "slaphard_rooms_active",
			Help: "Rooms currently tracked by the orchestrator.",
		}),
		SlapReactionMs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slaphard_slap_reaction_ms",
			Help:    "Estimated reaction time of ranked slap attempts.",
			Buckets: []float64{60, 120, 200, 300, 450, 700, 1000, 1500, 2200, 3200, 5200},
		}),
		JournalRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slaphard_journal_retries_total",
			Help: "Journal writes that needed a retry.",
		}),
		JournalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slaphard_journal_failures_total",
			Help: "Journal writes dropped after the retry.",
		}),
	}
	m.registry.MustRegister(
		m.Commands,
		m.CommandErrors,
		m.RoomsActive,
		m.SlapReactionMs,
		m.JournalRetries,
		m.JournalFailures,
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
