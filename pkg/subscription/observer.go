package subscription

import "time"

// Observer receives billing telemetry. pkg/metrics provides a Prometheus implementation.
type Observer interface {
	WebhookHandled(provider ProviderName, event EventType, outcome Outcome)
	StatusChecked(status Status, err error)
	ProviderCalled(provider ProviderName, operation string, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) WebhookHandled(ProviderName, EventType, Outcome) {}
func (nopObserver) StatusChecked(Status, error) {}
func (nopObserver) ProviderCalled(ProviderName, string, time.Duration, error) {}
