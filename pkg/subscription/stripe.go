package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/journalkit/pkg/webhook"
)

// StripeSignatureHeader carries "t=<unix>,v1=<hex>".
const StripeSignatureHeader = "Stripe-Signature"

// StripeConfig holds configuration for the Stripe provider.
// Secrets are optional at startup; a missing webhook secret rejects every event.
type StripeConfig struct {
	SecretKey     string        `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET"`
	APIBaseURL    string        `env:"STRIPE_API_URL" envDefault:"https://api.stripe.com"`
	Tolerance     time.Duration `env:"STRIPE_WEBHOOK_TOLERANCE" envDefault:"5m"`
}

// StripeProvider implements Provider for Stripe.
type StripeProvider struct {
	config StripeConfig
	api    *apiClient
	opts   providerOptions
}

// NewStripeProvider creates a Stripe provider.
func NewStripeProvider(config StripeConfig, opts ...ProviderOption) *StripeProvider {
	o := defaultProviderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = "https://api.stripe.com"
	}
	if config.Tolerance == 0 {
		config.Tolerance = webhook.DefaultTolerance
	}

	return &StripeProvider{
		config: config,
		opts:   o,
		api: newAPIClient(apiClientConfig{
			name:    string(ProviderStripe),
			baseURL: strings.TrimRight(config.APIBaseURL, "/"),
			timeout: o.timeout,
			client:  o.httpClient,
			logger:  o.logger,
			authorize: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+config.SecretKey)
			},
		}),
	}
}

func (p *StripeProvider) Name() ProviderName { return ProviderStripe }

// stripeID decodes a field that is either an ID string or an expanded object.
type stripeID string

func (s *stripeID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = stripeID(v)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*s = stripeID(obj.ID)
	return nil
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	Customer          stripeID          `json:"customer"`
	Subscription      stripeID          `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Status            string            `json:"status"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                string            `json:"id"`
	Customer          stripeID          `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event.
func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	if p.config.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret", ErrConfigMissing)
	}
	if err := webhook.VerifyTimestamped(p.config.WebhookSecret, payload, header.Get(StripeSignatureHeader), p.config.Tolerance, p.opts.now()); err != nil {
		return nil, signatureError(err)
	}

	var evt stripeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, fmt.Errorf("%w: missing event id or type", ErrMalformedPayload)
	}

	event := &WebhookEvent{
		ID:            evt.ID,
		Provider:      ProviderStripe,
		Type:          mapStripeEventType(evt.Type),
		ProviderEvent: evt.Type,
		OccurredAt:    time.Unix(evt.Created, 0).UTC(),
	}

	switch event.Type {
	case EventCheckoutCompleted:
		var s stripeCheckoutSession
		if err := json.Unmarshal(evt.Data.Object, &s); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		event.SessionID = s.ID
		event.CustomerID = string(s.Customer)
		event.SubscriptionID = string(s.Subscription)
		event.UserID = firstNonEmpty(metadataValue(s.Metadata, "userId", "user_id"), s.ClientReferenceID)
		event.PriceID = metadataValue(s.Metadata, "planId", "plan_id", "priceId", "price_id")
		event.Status = s.PaymentStatus

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionCancelled, EventSubscriptionExpired:
		var s stripeSubscription
		if err := json.Unmarshal(evt.Data.Object, &s); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
		event.SubscriptionID = s.ID
		event.CustomerID = string(s.Customer)
		event.UserID = metadataValue(s.Metadata, "userId", "user_id")
		event.Status = s.Status
		event.CancelAtPeriodEnd = s.CancelAtPeriodEnd
		periodEnd := s.CurrentPeriodEnd
		if len(s.Items.Data) > 0 {
			event.PriceID = s.Items.Data[0].Price.ID
			if periodEnd == 0 {
				periodEnd = s.Items.Data[0].CurrentPeriodEnd
			}
		}
		if event.PriceID == "" {
			event.PriceID = metadataValue(s.Metadata, "planId", "plan_id")
		}
		event.CurrentPeriodEnd = unixPtr(periodEnd)
	}

	return event, nil
}

// RetrieveCheckout fetches a Checkout Session by ID.
func (p *StripeProvider) RetrieveCheckout(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if p.config.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key", ErrConfigMissing)
	}
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	var s stripeCheckoutSession
	err := p.api.getJSON(ctx, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &s)
	if errors.Is(err, errNotFound) {
		return nil, errors.Join(ErrSessionNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		ID:             s.ID,
		Paid:           s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required",
		UserID:         firstNonEmpty(metadataValue(s.Metadata, "userId", "user_id"), s.ClientReferenceID),
		CustomerID:     string(s.Customer),
		SubscriptionID: string(s.Subscription),
		PriceID:        metadataValue(s.Metadata, "planId", "plan_id", "priceId", "price_id"),
	}, nil
}

func mapStripeEventType(t string) EventType {
	switch t {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return EventCheckoutCompleted
	case "customer.subscription.created":
		return EventSubscriptionCreated
	case "customer.subscription.updated", "customer.subscription.paused", "customer.subscription.resumed":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionExpired
	default:
		return EventUnknown
	}
}

// signatureError maps webhook package errors onto the subscription taxonomy.
func signatureError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrMissingSecret):
		return errors.Join(ErrConfigMissing, err)
	case errors.Is(err, webhook.ErrMalformedHeader), errors.Is(err, webhook.ErrInvalidPayload):
		return errors.Join(ErrMalformedPayload, err)
	default:
		return errors.Join(ErrSignatureInvalid, err)
	}
}

func metadataValue(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
