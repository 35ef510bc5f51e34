package subscription

import (
	"time"
)

// Config holds the billing core settings loaded from the environment.
type Config struct {
	TrialDays       int               `env:"BILLING_TRIAL_DAYS" envDefault:"7"`
	ProviderTimeout time.Duration     `env:"BILLING_PROVIDER_TIMEOUT" envDefault:"5s"`
	IdempotencyTTL  time.Duration     `env:"BILLING_IDEMPOTENCY_TTL" envDefault:"72h"`
	MaxRetries      int               `env:"BILLING_MAX_RETRIES" envDefault:"5"`
	PricePlans      map[string]string `env:"BILLING_PRICE_PLANS"` // price_abc:pro,variant_123:unlimited

	Stripe       StripeConfig
	LemonSqueezy LemonSqueezyConfig
	Paddle       PaddleConfig
}

// PriceTable builds the price table from PricePlans.
func (c Config) PriceTable() (PriceTable, error) {
	return NewPriceTable(c.PricePlans)
}

// Providers builds every supported provider. Providers without secrets are
// still registered and reject their webhooks with ErrConfigMissing.
func (c Config) Providers(opts ...ProviderOption) ([]Provider, error) {
	opts = append([]ProviderOption{WithProviderTimeout(c.ProviderTimeout)}, opts...)

	paddle, err := NewPaddleProvider(c.Paddle, opts...)
	if err != nil {
		return nil, err
	}

	return []Provider{
		NewStripeProvider(c.Stripe, opts...),
		NewLemonSqueezyProvider(c.LemonSqueezy, opts...),
		paddle,
	}, nil
}

// ServiceOptions turns the numeric settings into service options.
func (c Config) ServiceOptions() []ServiceOption {
	opts := []ServiceOption{WithMaxRetries(c.MaxRetries)}
	if c.TrialDays != 0 {
		opts = append(opts, WithTrialDays(c.TrialDays))
	}
	return opts
}
