package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking and
// reconciliation flows.
type BookingMetrics struct {
	intentsTotal  *prometheus.CounterVec
	webhookTotal  *prometheus.CounterVec
	commitLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicore",
			Subsystem: "booking",
			Name:      "intents_total",
			Help:      "Booking intent creation attempts",
		}, []string{"outcome"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicore",
			Subsystem: "booking",
			Name:      "webhook_total",
			Help:      "Payment webhook deliveries by event type and outcome",
		}, []string{"event_type", "outcome"}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinicore",
			Subsystem: "booking",
			Name:      "commit_latency_seconds",
			Help:      "Latency of the webhook commit path",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.intentsTotal, m.webhookTotal, m.commitLatency)
	return m
}

func (m *BookingMetrics) ObserveIntent(outcome string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *BookingMetrics) ObserveCommitLatency(seconds float64) {
	if m == nil {
		return
	}
	m.commitLatency.Observe(seconds)
}
