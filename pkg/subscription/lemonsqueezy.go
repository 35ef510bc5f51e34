package subscription

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrymomot/journalkit/pkg/webhook"
)

// LemonSqueezySignatureHeader carries the raw hex HMAC of the body.
const LemonSqueezySignatureHeader = "X-Signature"

// LemonSqueezyConfig holds configuration for the LemonSqueezy provider.
type LemonSqueezyConfig struct {
	APIKey        string `env:"LEMONSQUEEZY_API_KEY"`
	WebhookSecret string `env:"LEMONSQUEEZY_WEBHOOK_SECRET"`
	APIBaseURL    string `env:"LEMONSQUEEZY_API_URL" envDefault:"https://api.lemonsqueezy.com"`
}

// LemonSqueezyProvider implements Provider for LemonSqueezy.
type LemonSqueezyProvider struct {
	config LemonSqueezyConfig
	api    *apiClient
}

// NewLemonSqueezyProvider creates a LemonSqueezy provider.
func NewLemonSqueezyProvider(config LemonSqueezyConfig, opts ...ProviderOption) *LemonSqueezyProvider {
	o := defaultProviderOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = "https://api.lemonsqueezy.com"
	}

	return &LemonSqueezyProvider{
		config: config,
		api: newAPIClient(apiClientConfig{
			name:    string(ProviderLemonSqueezy),
			baseURL: strings.TrimRight(config.APIBaseURL, "/"),
			timeout: o.timeout,
			client:  o.httpClient,
			logger:  o.logger,
			authorize: func(r *http.Request) {
				r.Header.Set("Accept", "application/vnd.api+json")
				r.Header.Set("Authorization", "Bearer "+config.APIKey)
			},
		}),
	}
}

func (p *LemonSqueezyProvider) Name() ProviderName { return ProviderLemonSqueezy }

// lsID decodes IDs that LemonSqueezy sends either as numbers or strings.
type lsID string

func (id *lsID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = lsID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = lsID(n.String())
	return nil
}

type lsMeta struct {
	EventName  string         `json:"event_name"`
	CustomData map[string]any `json:"custom_data"`
}

type lsAttributes struct {
	Status         string `json:"status"`
	CustomerID     lsID   `json:"customer_id"`
	VariantID      lsID   `json:"variant_id"`
	OrderID        lsID   `json:"order_id"`
	Cancelled      bool   `json:"cancelled"`
	RenewsAt       string `json:"renews_at"`
	EndsAt         string `json:"ends_at"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	FirstOrderItem *struct {
		VariantID lsID `json:"variant_id"`
	} `json:"first_order_item"`
}

type lsPayload struct {
	Meta lsMeta `json:"meta"`
	Data struct {
		Type       string       `json:"type"`
		ID         lsID         `json:"id"`
		Attributes lsAttributes `json:"attributes"`
	} `json:"data"`
}

// ParseWebhook verifies X-Signature and normalizes the event.
// LemonSqueezy sends no per-delivery event ID, so the body digest is used.
func (p *LemonSqueezyProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	if p.config.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: lemonsqueezy webhook secret", ErrConfigMissing)
	}
	if err := webhook.Verify(p.config.WebhookSecret, payload, header.Get(LemonSqueezySignatureHeader)); err != nil {
		return nil, signatureError(err)
	}

	var body lsPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if body.Meta.EventName == "" {
		return nil, fmt.Errorf("%w: missing meta.event_name", ErrMalformedPayload)
	}

	attrs := body.Data.Attributes
	event := &WebhookEvent{
		ID:            bodyDigest(payload),
		Provider:      ProviderLemonSqueezy,
		Type:          mapLemonSqueezyEventType(body.Meta.EventName),
		ProviderEvent: body.Meta.EventName,
		UserID:        customDataValue(body.Meta.CustomData, "user_id", "userId"),
		CustomerID:    string(attrs.CustomerID),
		Status:        attrs.Status,
	}
	// Subscription objects keep created_at across updates; updated_at moves with each change.
	if t := parseTimePtr(cmp.Or(attrs.UpdatedAt, attrs.CreatedAt)); t != nil {
		event.OccurredAt = *t
	}

	switch body.Data.Type {
	case "orders":
		event.SessionID = string(body.Data.ID)
		if attrs.FirstOrderItem != nil {
			event.PriceID = string(attrs.FirstOrderItem.VariantID)
		}
	case "subscriptions":
		event.SubscriptionID = string(body.Data.ID)
		event.SessionID = string(attrs.OrderID)
		event.PriceID = string(attrs.VariantID)
		// ends_at is set once cancelled; renews_at otherwise
		if attrs.Cancelled || event.Type == EventSubscriptionCancelled {
			event.CancelAtPeriodEnd = true
			event.CurrentPeriodEnd = parseTimePtr(attrs.EndsAt)
		} else {
			event.CurrentPeriodEnd = parseTimePtr(attrs.RenewsAt)
		}
	}
	if planID := customDataValue(body.Meta.CustomData, "plan_id", "planId"); planID != "" && event.PriceID == "" {
		event.PriceID = planID
	}

	return event, nil
}

// RetrieveCheckout fetches the order created by a checkout. sessionID is the order ID.
func (p *LemonSqueezyProvider) RetrieveCheckout(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("%w: lemonsqueezy api key", ErrConfigMissing)
	}
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	var body lsPayload
	err := p.api.getJSON(ctx, "/v1/orders/"+url.PathEscape(sessionID), nil, &body)
	if errors.Is(err, errNotFound) {
		return nil, errors.Join(ErrSessionNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	attrs := body.Data.Attributes
	session := &CheckoutSession{
		ID:         string(body.Data.ID),
		Paid:       attrs.Status == "paid",
		UserID:     customDataValue(body.Meta.CustomData, "user_id", "userId"),
		CustomerID: string(attrs.CustomerID),
	}
	if attrs.FirstOrderItem != nil {
		session.PriceID = string(attrs.FirstOrderItem.VariantID)
	}
	return session, nil
}

func mapLemonSqueezyEventType(name string) EventType {
	switch name {
	case "order_created":
		return EventCheckoutCompleted
	case "subscription_created":
		return EventSubscriptionCreated
	case "subscription_updated", "subscription_resumed", "subscription_paused", "subscription_unpaused":
		return EventSubscriptionUpdated
	case "subscription_cancelled":
		return EventSubscriptionCancelled
	case "subscription_expired":
		return EventSubscriptionExpired
	default:
		return EventUnknown
	}
}

// customDataValue reads a checkout custom_data value, accepting strings and numbers.
func customDataValue(data map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
