// Package metrics exposes the Prometheus instruments for call handling.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the service records.
type Metrics struct {
	registry *prometheus.Registry

	// CallsStarted counts call.initiated events that created a session.
	CallsStarted prometheus.Counter

	// CallsCompleted counts terminated calls by outcome.
	CallsCompleted *prometheus.CounterVec

	// ActiveCalls is the number of sessions currently in the store.
	ActiveCalls prometheus.Gauge

	// CallDuration measures call lifetime in seconds.
	CallDuration prometheus.Histogram

	// MenuSelections counts valid menu choices by keypress.
	MenuSelections *prometheus.CounterVec

	// Escalations counts operator transfers by reason.
	Escalations *prometheus.CounterVec

	// WebhookEvents counts received webhook events by type.
	WebhookEvents *prometheus.CounterVec

	// CommandErrors counts failed call control commands by action.
	CommandErrors *prometheus.CounterVec
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		CallsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicedesk_calls_started_total",
			Help: "Total number of inbound calls answered",
		}),

		CallsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicedesk_calls_completed_total",
				Help: "Total number of terminated calls by outcome",
			},
			[]string{"outcome"},
		),

		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voicedesk_active_calls",
			Help: "Current number of in-flight call sessions",
		}),

		CallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicedesk_call_duration_seconds",
			Help:    "Duration of completed calls in seconds",
			Buckets: []float64{15, 30, 60, 120, 300, 600, 1800},
		}),

		MenuSelections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicedesk_menu_selections_total",
				Help: "Total number of valid menu selections by keypress",
			},
			[]string{"keypress"},
		),

		Escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicedesk_escalations_total",
				Help: "Total number of operator escalations by reason",
			},
			[]string{"reason"},
		),

		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicedesk_webhook_events_total",
				Help: "Total number of webhook events received by type",
			},
			[]string{"event_type"},
		),

		CommandErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicedesk_command_errors_total",
				Help: "Total number of failed call control commands by action",
			},
			[]string{"action"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CallStarted records a newly answered call.
func (m *Metrics) CallStarted() {
	m.CallsStarted.Inc()
	m.ActiveCalls.Inc()
}

// CallEnded records a terminated call with its outcome and duration.
func (m *Metrics) CallEnded(outcome string, durationSeconds float64) {
	m.CallsCompleted.WithLabelValues(outcome).Inc()
	m.ActiveCalls.Dec()
	m.CallDuration.Observe(durationSeconds)
}

// MenuSelected records a valid keypress.
func (m *Metrics) MenuSelected(keypress string) {
	m.MenuSelections.WithLabelValues(keypress).Inc()
}

// Escalated records an operator transfer.
func (m *Metrics) Escalated(reason string) {
	m.Escalations.WithLabelValues(reason).Inc()
}

// EventReceived records an inbound webhook event.
func (m *Metrics) EventReceived(eventType string) {
	m.WebhookEvents.WithLabelValues(eventType).Inc()
}

// CommandFailed records a failed outbound command.
func (m *Metrics) CommandFailed(action string) {
	m.CommandErrors.WithLabelValues(action).Inc()
}
