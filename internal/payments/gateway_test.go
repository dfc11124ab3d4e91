package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clinicore/clinic-platform/pkg/logging"
)

func TestStripeGatewayCreateIntent(t *testing.T) {
	var gotForm map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/payment_intents" {
			t.Errorf("expected path /v1/payment_intents, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("expected auth header, got %q", got)
		}
		if r.Header.Get("Stripe-Version") == "" {
			t.Errorf("expected Stripe-Version header")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_test_abc",
			"client_secret": "pi_test_abc_secret_xyz",
			"status":        "requires_payment_method",
		})
	}))
	defer srv.Close()

	gw := NewStripeGateway("sk_test_123", logging.Default()).WithBaseURL(srv.URL)
	intent, err := gw.CreateIntent(context.Background(), IntentParams{
		AmountCents: 5000,
		Currency:    "usd",
		Description: "Video consultation",
		Metadata:    map[string]string{"appointment_date": "2026-09-15", "type": "video"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.ID != "pi_test_abc" {
		t.Fatalf("unexpected intent id: %s", intent.ID)
	}
	if intent.ClientSecret != "pi_test_abc_secret_xyz" {
		t.Fatalf("unexpected client secret: %s", intent.ClientSecret)
	}

	assertFormValue(t, gotForm, "amount", "5000")
	assertFormValue(t, gotForm, "currency", "usd")
	assertFormValue(t, gotForm, "automatic_payment_methods[enabled]", "true")
	assertFormValue(t, gotForm, "description", "Video consultation")
	assertFormValue(t, gotForm, "metadata[appointment_date]", "2026-09-15")
	assertFormValue(t, gotForm, "metadata[type]", "video")
}

func TestStripeGatewayCreateIntentMissingSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "pi_test_abc"})
	}))
	defer srv.Close()

	gw := NewStripeGateway("sk_test_123", logging.Default()).WithBaseURL(srv.URL)
	if _, err := gw.CreateIntent(context.Background(), IntentParams{AmountCents: 100, Currency: "usd"}); err == nil {
		t.Fatal("expected error when response omits client_secret")
	}
}

func TestStripeGatewayCreateIntentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"amount too small"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	gw := NewStripeGateway("sk_test_123", logging.Default()).WithBaseURL(srv.URL)
	if _, err := gw.CreateIntent(context.Background(), IntentParams{AmountCents: 1, Currency: "usd"}); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}

func TestStripeGatewayRefundIdempotencyKey(t *testing.T) {
	var gotKey, gotIntent string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/refunds" {
			t.Errorf("expected path /v1/refunds, got %s", r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotIntent = r.PostForm.Get("payment_intent")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "re_test_1", "status": "succeeded"})
	}))
	defer srv.Close()

	gw := NewStripeGateway("sk_test_123", logging.Default()).WithBaseURL(srv.URL)
	if err := gw.Refund(context.Background(), "pi_test_abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "refund-pi_test_abc" {
		t.Fatalf("expected idempotency key derived from intent id, got %q", gotKey)
	}
	if gotIntent != "pi_test_abc" {
		t.Fatalf("expected payment_intent form value, got %q", gotIntent)
	}
}

func assertFormValue(t *testing.T, form map[string][]string, key, want string) {
	t.Helper()
	values, ok := form[key]
	if !ok || len(values) == 0 {
		t.Errorf("missing form value %q", key)
		return
	}
	if values[0] != want {
		t.Errorf("form value %q = %q, want %q", key, values[0], want)
	}
}
