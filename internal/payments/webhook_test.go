package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-platform/internal/appointments"
	"github.com/clinicore/clinic-platform/pkg/logging"
)

type stubCommitter struct {
	params  appointments.CommitParams
	appt    *appointments.Appointment
	created bool
	err     error
	calls   int
}

func (s *stubCommitter) CommitPaid(_ context.Context, p appointments.CommitParams) (*appointments.Appointment, bool, error) {
	s.calls++
	s.params = p
	return s.appt, s.created, s.err
}

type stubRefunder struct {
	refunded []string
	err      error
}

func (s *stubRefunder) Refund(_ context.Context, intentID string) error {
	s.refunded = append(s.refunded, intentID)
	return s.err
}

type stubBookedNotifier struct {
	booked []*appointments.Appointment
}

func (s *stubBookedNotifier) AppointmentBooked(_ context.Context, appt *appointments.Appointment) {
	s.booked = append(s.booked, appt)
}

func buildIntentEvent(t *testing.T, eventID, eventType, intentID string, metadata map[string]string) []byte {
	t.Helper()
	evt := map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":       intentID,
				"status":   "succeeded",
				"metadata": metadata,
			},
		},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return data
}

func postWebhook(h *WebhookHandler, body []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhooks/stripe", bytes.NewReader(body))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func testReservation() ReservationIntent {
	return ReservationIntent{
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      "2026-09-15",
		StartTime: "09:00",
		EndTime:   "09:30",
		Type:      "video",
		FeeCents:  5000,
		Symptoms:  "headache",
	}
}

func TestWebhookCommitsReservation(t *testing.T) {
	ri := testReservation()
	appt := &appointments.Appointment{
		ID:        uuid.New(),
		DoctorID:  ri.DoctorID,
		PatientID: ri.PatientID,
		Date:      ri.Date,
		StartTime: ri.StartTime,
		EndTime:   ri.EndTime,
	}
	commits := &stubCommitter{appt: appt, created: true}
	refunds := &stubRefunder{}
	fanout := &stubBookedNotifier{}

	h := NewWebhookHandler("", commits, refunds, fanout, nil, logging.Default())
	body := buildIntentEvent(t, "evt_1", "payment_intent.succeeded", "pi_123", ri.Metadata())

	rr := postWebhook(h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if commits.calls != 1 {
		t.Fatalf("expected 1 commit call, got %d", commits.calls)
	}
	if commits.params.PaymentIntentID != "pi_123" {
		t.Fatalf("expected intent id to reach commit, got %q", commits.params.PaymentIntentID)
	}
	if commits.params.DoctorID != ri.DoctorID || commits.params.Date != ri.Date {
		t.Fatalf("reservation tuple did not propagate: %+v", commits.params)
	}
	if len(refunds.refunded) != 0 {
		t.Fatal("expected no refund on successful commit")
	}
	if len(fanout.booked) != 1 || fanout.booked[0].ID != appt.ID {
		t.Fatalf("expected booked fanout for committed appointment, got %+v", fanout.booked)
	}
}

func TestWebhookLostRaceRefunds(t *testing.T) {
	commits := &stubCommitter{err: appointments.ErrSlotTaken}
	refunds := &stubRefunder{}
	fanout := &stubBookedNotifier{}

	h := NewWebhookHandler("", commits, refunds, fanout, nil, logging.Default())
	body := buildIntentEvent(t, "evt_2", "payment_intent.succeeded", "pi_race", testReservation().Metadata())

	rr := postWebhook(h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after refund, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(refunds.refunded) != 1 || refunds.refunded[0] != "pi_race" {
		t.Fatalf("expected losing intent to be refunded, got %v", refunds.refunded)
	}
	if len(fanout.booked) != 0 {
		t.Fatal("expected no booked fanout for lost race")
	}
}

func TestWebhookRefundFailureReturns500(t *testing.T) {
	commits := &stubCommitter{err: appointments.ErrSlotTaken}
	refunds := &stubRefunder{err: errors.New("stripe down")}

	h := NewWebhookHandler("", commits, refunds, nil, nil, logging.Default())
	body := buildIntentEvent(t, "evt_3", "payment_intent.succeeded", "pi_race", testReservation().Metadata())

	rr := postWebhook(h, body, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the gateway redelivers, got %d", rr.Code)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	existing := &appointments.Appointment{ID: uuid.New()}
	commits := &stubCommitter{appt: existing, created: false}
	fanout := &stubBookedNotifier{}

	h := NewWebhookHandler("", commits, &stubRefunder{}, fanout, nil, logging.Default())
	body := buildIntentEvent(t, "evt_4", "payment_intent.succeeded", "pi_replay", testReservation().Metadata())

	rr := postWebhook(h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rr.Code)
	}
	if len(fanout.booked) != 0 {
		t.Fatal("expected no duplicate notifications on replay")
	}
}

func TestWebhookCommitErrorReturns500(t *testing.T) {
	commits := &stubCommitter{err: errors.New("db unreachable")}

	h := NewWebhookHandler("", commits, &stubRefunder{}, nil, nil, logging.Default())
	body := buildIntentEvent(t, "evt_5", "payment_intent.succeeded", "pi_err", testReservation().Metadata())

	rr := postWebhook(h, body, "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for retriable commit failure, got %d", rr.Code)
	}
}

func TestWebhookIgnoresForeignIntents(t *testing.T) {
	commits := &stubCommitter{}

	h := NewWebhookHandler("", commits, &stubRefunder{}, nil, nil, logging.Default())
	body := buildIntentEvent(t, "evt_6", "payment_intent.succeeded", "pi_foreign", map[string]string{"order_id": "123"})

	rr := postWebhook(h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for foreign intent, got %d", rr.Code)
	}
	if commits.calls != 0 {
		t.Fatal("expected no commit attempt for foreign intent")
	}
}

func TestWebhookAcknowledgesPaymentFailed(t *testing.T) {
	commits := &stubCommitter{}
	refunds := &stubRefunder{}

	h := NewWebhookHandler("", commits, refunds, nil, nil, logging.Default())
	body := buildIntentEvent(t, "evt_7", "payment_intent.payment_failed", "pi_fail", testReservation().Metadata())

	rr := postWebhook(h, body, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if commits.calls != 0 || len(refunds.refunded) != 0 {
		t.Fatal("expected failed payment to be acknowledged without side effects")
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	h := NewWebhookHandler("whsec_test123", nil, nil, nil, nil, logging.Default())
	body := buildIntentEvent(t, "evt_8", "payment_intent.succeeded", "pi_sig", nil)

	rr := postWebhook(h, body, "t=12345,v1=bad_signature")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rr.Code)
	}
}

func TestWebhookVerifiesSignatureAgainstRawBody(t *testing.T) {
	ri := testReservation()
	commits := &stubCommitter{appt: &appointments.Appointment{ID: uuid.New()}, created: true}

	h := NewWebhookHandler("whsec_test123", commits, &stubRefunder{}, nil, nil, logging.Default())
	body := buildIntentEvent(t, "evt_9", "payment_intent.succeeded", "pi_signed", ri.Metadata())

	rr := postWebhook(h, body, signPayload(body, "whsec_test123", time.Now().Unix()))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed body, got %d: %s", rr.Code, rr.Body.String())
	}
	if commits.calls != 1 {
		t.Fatal("expected commit after signature verification")
	}
}

func TestWebhookRejectsMalformedEnvelope(t *testing.T) {
	h := NewWebhookHandler("", nil, nil, nil, nil, logging.Default())

	rr := postWebhook(h, []byte("not json"), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}

	rr = postWebhook(h, []byte(`{"type":"payment_intent.succeeded"}`), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing event id, got %d", rr.Code)
	}
}
