package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registry          *prometheus.Registry
	provisions        *prometheus.CounterVec
	rollbackFailures  prometheus.Counter
	provisionDuration prometheus.Histogram
	deprovisions      prometheus.Counter
	logins            *prometheus.CounterVec
	messages          *prometheus.CounterVec
	contacts          *prometheus.CounterVec
}

// NewPrometheus creates a recorder backed by its own registry,
// including Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &PrometheusRecorder{
		registry: reg,
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_provisions_total",
			Help: "Provisioning workflow runs by outcome",
		}, []string{"outcome"}),
		rollbackFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_provision_rollback_failures_total",
			Help: "Compensations that failed to delete the created identity",
		}),
		provisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_provision_duration_seconds",
			Help:    "Provisioning workflow duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		deprovisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_deprovisions_total",
			Help: "Users deleted",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_messages_sent_total",
			Help: "Client messages relayed by outcome",
		}, []string{"outcome"}),
		contacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_contact_submissions_total",
			Help: "Contact form submissions by outcome",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.provisions,
		r.rollbackFailures,
		r.provisionDuration,
		r.deprovisions,
		r.logins,
		r.messages,
		r.contacts,
	)
	return r
}

// Gatherer exposes the registry to the /metrics handler.
func (r *PrometheusRecorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *PrometheusRecorder) IncProvision(outcome string) {
	r.provisions.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) IncRollbackFailure() {
	r.rollbackFailures.Inc()
}

func (r *PrometheusRecorder) ObserveProvisionDuration(duration time.Duration) {
	r.provisionDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) IncDeprovision() {
	r.deprovisions.Inc()
}

func (r *PrometheusRecorder) IncLogin(outcome string) {
	r.logins.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) IncMessageSent(outcome string) {
	r.messages.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRecorder) IncContactSubmitted(outcome string) {
	r.contacts.WithLabelValues(outcome).Inc()
}
