package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveIntent("created")
	m.ObserveIntent("created")
	m.ObserveIntent("conflict")
	m.ObserveWebhook("payment_intent.succeeded", "committed")
	m.ObserveCommitLatency(0.05)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}

	counts := map[string]bool{}
	for _, mf := range families {
		counts[mf.GetName()] = true
		if mf.GetName() == "clinicore_booking_intents_total" {
			var total float64
			for _, metric := range mf.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
			if total != 3 {
				t.Errorf("intents_total = %v, want 3", total)
			}
		}
	}
	for _, name := range []string{
		"clinicore_booking_intents_total",
		"clinicore_booking_webhook_total",
		"clinicore_booking_commit_latency_seconds",
	} {
		if !counts[name] {
			t.Errorf("expected metric family %s to be registered", name)
		}
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveIntent("created")
	m.ObserveWebhook("payment_intent.succeeded", "committed")
	m.ObserveCommitLatency(0.1)
}
