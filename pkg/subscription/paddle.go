package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleSignatureHeader carries "ts=<unix>;h1=<hex>", verified by the Paddle SDK.
const PaddleSignatureHeader = "Paddle-Signature"

// PaddleConfig holds configuration for the Paddle provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	APIBaseURL    string `env:"PADDLE_API_URL"` // overrides the environment's API host
}

// PaddleProvider implements Provider for Paddle Billing.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	timeout  time.Duration
	config   PaddleConfig
}

// NewPaddleProvider creates a new Paddle billing provider.
// The API client is optional: without an API key only webhooks are accepted.
func NewPaddleProvider(config PaddleConfig, opts ...ProviderOption) (*PaddleProvider, error) {
	o := defaultProviderOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &PaddleProvider{config: config, timeout: o.timeout}

	if config.APIKey != "" {
		var sdkOpts []paddle.Option
		if config.APIBaseURL != "" {
			sdkOpts = append(sdkOpts, paddle.WithBaseURL(config.APIBaseURL))
		}
		var err error
		switch strings.ToLower(config.Environment) {
		case "sandbox":
			p.client, err = paddle.NewSandbox(config.APIKey, sdkOpts...)
		case "production", "":
			p.client, err = paddle.New(config.APIKey, sdkOpts...)
		default:
			return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create paddle client: %w", err)
		}
	}

	if config.WebhookSecret != "" {
		p.verifier = paddle.NewWebhookVerifier(config.WebhookSecret)
	}

	return p, nil
}

func (p *PaddleProvider) Name() ProviderName { return ProviderPaddle }

type paddleEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       paddleEventData `json:"data"`
}

type paddleEventData struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	CustomerID     string         `json:"customer_id"`
	SubscriptionID string         `json:"subscription_id"`
	CustomData     map[string]any `json:"custom_data"`
	Items          []struct {
		PriceID string `json:"price_id"`
		Price   struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"items"`
	CurrentBillingPeriod *struct {
		EndsAt string `json:"ends_at"`
	} `json:"current_billing_period"`
	BillingPeriod *struct {
		EndsAt string `json:"ends_at"`
	} `json:"billing_period"`
	ScheduledChange *struct {
		Action string `json:"action"`
	} `json:"scheduled_change"`
}

func (d paddleEventData) priceID() string {
	if len(d.Items) == 0 {
		return ""
	}
	return firstNonEmpty(d.Items[0].Price.ID, d.Items[0].PriceID)
}

// ParseWebhook validates the Paddle-Signature header with the SDK verifier and normalizes the event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	if p.verifier == nil {
		return nil, fmt.Errorf("%w: paddle webhook secret", ErrConfigMissing)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	signature := header.Get(PaddleSignatureHeader)
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", ErrMalformedPayload, PaddleSignatureHeader)
	}

	// The SDK verifies an *http.Request, so rebuild one around the raw body.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set(PaddleSignatureHeader, signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}
	if !valid {
		return nil, ErrSignatureInvalid
	}

	var evt paddleEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if evt.EventID == "" || evt.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_id or event_type", ErrMalformedPayload)
	}

	event := &WebhookEvent{
		ID:            evt.EventID,
		Provider:      ProviderPaddle,
		Type:          mapPaddleEventType(evt.EventType),
		ProviderEvent: evt.EventType,
		Status:        evt.Data.Status,
		CustomerID:    evt.Data.CustomerID,
		UserID:        customDataValue(evt.Data.CustomData, "user_id", "userId"),
		PriceID:       evt.Data.priceID(),
	}
	if t := parseTimePtr(evt.OccurredAt); t != nil {
		event.OccurredAt = *t
	}

	switch {
	case strings.HasPrefix(evt.EventType, "transaction."):
		event.SessionID = evt.Data.ID
		event.SubscriptionID = evt.Data.SubscriptionID
		if evt.Data.BillingPeriod != nil {
			event.CurrentPeriodEnd = parseTimePtr(evt.Data.BillingPeriod.EndsAt)
		}
	case strings.HasPrefix(evt.EventType, "subscription."):
		event.SubscriptionID = evt.Data.ID
		if evt.Data.CurrentBillingPeriod != nil {
			event.CurrentPeriodEnd = parseTimePtr(evt.Data.CurrentBillingPeriod.EndsAt)
		}
		if evt.Data.ScheduledChange != nil && evt.Data.ScheduledChange.Action == "cancel" {
			event.CancelAtPeriodEnd = true
		}
	}
	if event.PriceID == "" {
		event.PriceID = customDataValue(evt.Data.CustomData, "plan_id", "planId")
	}

	return event, nil
}

// RetrieveCheckout fetches the transaction created by a Paddle checkout.
func (p *PaddleProvider) RetrieveCheckout(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%w: paddle api key", ErrConfigMissing)
	}
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tx, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: sessionID,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, errors.Join(ErrProviderUnavailable, err)
		}
		if errors.Is(err, paddle.ErrNotFound) {
			return nil, errors.Join(ErrSessionNotFound, err)
		}
		return nil, errors.Join(ErrProviderUnavailable, fmt.Errorf("failed to get paddle transaction: %w", err))
	}

	session := &CheckoutSession{
		ID:     tx.ID,
		Paid:   string(tx.Status) == "completed" || string(tx.Status) == "paid",
		UserID: customDataValue(tx.CustomData, "user_id", "userId"),
	}
	if tx.CustomerID != nil {
		session.CustomerID = *tx.CustomerID
	}
	if tx.SubscriptionID != nil {
		session.SubscriptionID = *tx.SubscriptionID
	}
	if len(tx.Items) > 0 {
		session.PriceID = tx.Items[0].Price.ID
	}
	if tx.BillingPeriod != nil {
		session.CurrentPeriodEnd = parseTimePtr(tx.BillingPeriod.EndsAt)
	}
	if session.PriceID == "" {
		session.PriceID = customDataValue(tx.CustomData, "plan_id", "planId")
	}
	return session, nil
}

// mapPaddleEventType maps Paddle event types to internal EventType.
func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "transaction.completed":
		return EventCheckoutCompleted
	case "subscription.created":
		return EventSubscriptionCreated
	case "subscription.updated", "subscription.activated", "subscription.resumed", "subscription.paused", "subscription.past_due":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionCancelled
	default:
		return EventUnknown
	}
}
