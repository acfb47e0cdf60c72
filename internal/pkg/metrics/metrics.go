// Package metrics holds the Prometheus counters of the bet pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline counts what happens to every chat message the worker reads.
type Pipeline struct {
	MessagesReceived     prometheus.Counter
	MessagesIgnored      *prometheus.CounterVec // by reason: not_a_bet, incomplete, duplicate
	Outcomes             *prometheus.CounterVec // by status: success, failed
	PersistenceErrors    prometheus.Counter
	NotificationFailures prometheus.Counter
	ProcessingSeconds    prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewPipeline registers the counters on reg. A nil reg gets a private registry.
func NewPipeline(reg *prometheus.Registry) *Pipeline {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Pipeline{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betrunner_messages_received_total",
			Help: "chat messages read by the worker",
		}),
		MessagesIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betrunner_messages_ignored_total",
			Help: "chat messages dropped before execution",
		}, []string{"reason"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betrunner_bet_outcomes_total",
			Help: "terminal bet outcomes",
		}, []string{"status"}),
		PersistenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betrunner_history_append_errors_total",
			Help: "outcomes that could not be written to history",
		}),
		NotificationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betrunner_notification_failures_total",
			Help: "notifications not accepted by any notifier",
		}),
		ProcessingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "betrunner_bet_processing_seconds",
			Help:    "time spent in the execution engine per bet",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		p.MessagesReceived,
		p.MessagesIgnored,
		p.Outcomes,
		p.PersistenceErrors,
		p.NotificationFailures,
		p.ProcessingSeconds,
	)
	return p
}

// Handler serves the registry in the Prometheus text format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
