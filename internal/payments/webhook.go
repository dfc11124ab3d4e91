package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/clinic-platform/internal/appointments"
	"github.com/clinicore/clinic-platform/internal/observability/metrics"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

var webhookTracer = otel.Tracer("clinicore.internal.payments.webhook")

// committer performs the atomic paid-commit.
type committer interface {
	CommitPaid(ctx context.Context, p appointments.CommitParams) (*appointments.Appointment, bool, error)
}

// bookedNotifier announces a freshly committed appointment.
type bookedNotifier interface {
	AppointmentBooked(ctx context.Context, appt *appointments.Appointment)
}

// refunder reverses the charge for a losing commit attempt.
type refunder interface {
	Refund(ctx context.Context, intentID string) error
}

// WebhookHandler reconciles asynchronous payment events against pending
// reservations. It is idempotent, race-safe, and fails toward refund rather
// than double-booking.
type WebhookHandler struct {
	webhookSecret string
	commits       committer
	gateway       refunder
	fanout        bookedNotifier
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
}

// NewWebhookHandler creates the reconciler endpoint.
func NewWebhookHandler(
	webhookSecret string,
	commits committer,
	gateway refunder,
	fanout bookedNotifier,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		webhookSecret: webhookSecret,
		commits:       commits,
		gateway:       gateway,
		fanout:        fanout,
		metrics:       m,
		logger:        logger,
	}
}

// Handle processes incoming payment gateway webhook events. The signature is
// verified against the raw body before any business logic runs.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if !verifyStripeSignature(h.webhookSecret, payload, sigHeader) {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var evt stripeWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	switch evt.Type {
	case "payment_intent.succeeded":
		h.handleSucceeded(w, r, evt)
	case "payment_intent.payment_failed":
		// No commitment ever existed, so there is nothing to unwind.
		h.logger.Info("payment failed, acknowledging", "event_id", evt.ID, "intent_id", evt.Data.Object.ID)
		h.metrics.ObserveWebhook(evt.Type, "acknowledged")
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *WebhookHandler) handleSucceeded(w http.ResponseWriter, r *http.Request, evt stripeWebhookEvent) {
	ctx, span := webhookTracer.Start(r.Context(), "webhook.reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("payments.event_id", evt.ID),
		attribute.String("payments.intent_id", evt.Data.Object.ID),
	)
	start := time.Now()

	intent := evt.Data.Object
	ri, ok := reservationFromMetadata(intent.Metadata)
	if !ok {
		// An intent this service did not create; acknowledge and move on.
		h.logger.Warn("webhook event without reservation metadata, ignoring",
			"event_id", evt.ID, "intent_id", intent.ID)
		h.metrics.ObserveWebhook(evt.Type, "not_ours")
		w.WriteHeader(http.StatusOK)
		return
	}

	appt, created, err := h.commits.CommitPaid(ctx, appointments.CommitParams{
		DoctorID:        ri.DoctorID,
		PatientID:       ri.PatientID,
		Date:            ri.Date,
		StartTime:       ri.StartTime,
		EndTime:         ri.EndTime,
		Type:            ri.Type,
		FeeCents:        ri.FeeCents,
		Symptoms:        ri.Symptoms,
		PaymentIntentID: intent.ID,
	})
	switch {
	case errors.Is(err, appointments.ErrSlotTaken):
		// Another payment won the race: refund the loser, never double-book.
		if err := h.gateway.Refund(ctx, intent.ID); err != nil {
			span.RecordError(err)
			h.logger.Error("refund for lost slot failed", "error", err, "intent_id", intent.ID)
			http.Error(w, "refund failed", http.StatusInternalServerError)
			return
		}
		h.logger.Info("slot lost, payment refunded",
			"event_id", evt.ID, "intent_id", intent.ID,
			"doctor_id", ri.DoctorID, "date", ri.Date, "start", ri.StartTime)
		h.metrics.ObserveWebhook(evt.Type, "refunded")
		w.WriteHeader(http.StatusOK)
		return
	case err != nil:
		// Our event, our failure: non-2xx so the gateway redelivers. The
		// commit is safe to retry because replay resolves via payment_id.
		span.RecordError(err)
		h.logger.Error("commit failed", "error", err, "event_id", evt.ID, "intent_id", intent.ID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	case !created:
		// Redelivery of an event we already committed.
		h.logger.Info("duplicate webhook, appointment already committed",
			"event_id", evt.ID, "appointment_id", appt.ID)
		h.metrics.ObserveWebhook(evt.Type, "duplicate")
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.fanout != nil {
		h.fanout.AppointmentBooked(ctx, appt)
	}
	h.metrics.ObserveWebhook(evt.Type, "committed")
	h.metrics.ObserveCommitLatency(time.Since(start).Seconds())
	h.logger.Info("appointment committed",
		"event_id", evt.ID, "appointment_id", appt.ID,
		"doctor_id", appt.DoctorID, "patient_id", appt.PatientID,
		"date", appt.Date, "start", appt.StartTime, "end", appt.EndTime)
	w.WriteHeader(http.StatusOK)
}

// stripeWebhookEvent represents a Stripe webhook event envelope.
type stripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeIntentObject `json:"object"`
	} `json:"data"`
}
