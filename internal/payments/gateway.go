package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicore/clinic-platform/pkg/logging"
)

var stripeTracer = otel.Tracer("clinicore.internal.payments.stripe")

// IntentParams describes a payment intent to create. Metadata must carry the
// full reservation tuple; it is the only thing that survives the asynchronous
// hop to the webhook.
type IntentParams struct {
	AmountCents int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Intent is the subset of the gateway's payment intent object we consume.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Metadata     map[string]string
}

// StripeGateway talks to the Stripe Payment Intents API. It is treated as an
// unreliable, asynchronous collaborator: callers never retry automatically.
type StripeGateway struct {
	secretKey  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewStripeGateway creates a gateway client.
func NewStripeGateway(secretKey string, logger *logging.Logger) *StripeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeGateway{
		secretKey:  secretKey,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (g *StripeGateway) WithBaseURL(baseURL string) *StripeGateway {
	if baseURL != "" {
		g.baseURL = strings.TrimRight(baseURL, "/")
	}
	return g
}

// CreateIntent creates a payment intent carrying the reservation metadata.
func (g *StripeGateway) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_payment_intent")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payments.amount_cents", params.AmountCents),
		attribute.String("payments.currency", params.Currency),
	)

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", params.Currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if params.Description != "" {
		form.Set("description", params.Description)
	}
	for key, value := range params.Metadata {
		form.Set("metadata["+key+"]", value)
	}

	var parsed stripeIntentObject
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", form, &parsed); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if parsed.ID == "" || parsed.ClientSecret == "" {
		return nil, fmt.Errorf("payments: stripe response missing intent id or client secret")
	}
	return parsed.toIntent(), nil
}

// RetrieveIntent fetches an intent by id.
func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	var parsed stripeIntentObject
	if err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, &parsed); err != nil {
		return nil, err
	}
	return parsed.toIntent(), nil
}

// Refund reverses the full charge behind a payment intent. The idempotency
// key is derived from the intent id so gateway redeliveries cannot
// double-refund.
func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	ctx, span := stripeTracer.Start(ctx, "stripe.refund")
	defer span.End()
	span.SetAttributes(attribute.String("payments.intent_id", intentID))

	form := url.Values{}
	form.Set("payment_intent", intentID)

	req, err := g.newRequest(ctx, http.MethodPost, "/v1/refunds", form)
	if err != nil {
		return err
	}
	req.Header.Set("Idempotency-Key", "refund-"+intentID)

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.send(req, &parsed); err != nil {
		span.RecordError(err)
		return err
	}

	g.logger.Info("refund issued", "intent_id", intentID, "refund_id", parsed.ID, "status", parsed.Status)
	return nil
}

func (g *StripeGateway) do(ctx context.Context, method, path string, form url.Values, out any) error {
	req, err := g.newRequest(ctx, method, path, form)
	if err != nil {
		return err
	}
	return g.send(req, out)
}

func (g *StripeGateway) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Stripe-Version", g.apiVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func (g *StripeGateway) send(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: stripe decode: %w", err)
	}
	return nil
}

// stripeIntentObject is the payment_intent object as Stripe serializes it.
type stripeIntentObject struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata"`
}

func (o stripeIntentObject) toIntent() *Intent {
	return &Intent{
		ID:           o.ID,
		ClientSecret: o.ClientSecret,
		Status:       o.Status,
		Metadata:     o.Metadata,
	}
}
