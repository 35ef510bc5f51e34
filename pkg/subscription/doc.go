// Package subscription keeps one subscription record per user and moves it
// through its lifecycle in response to payment provider webhooks, checkout
// verification and the passage of time.
//
// # Lifecycle
//
// A record is created in trial by StartTrial and can then become active,
// expired or cancelled. Allowed moves are declared once as a
// statemachine.Table; anything else fails with ErrInvalidTransition. Nothing
// re-enters trial, so replayed or out-of-order webhooks can never move a
// paying user backwards. Time-based moves are lazy: CheckStatus expires an
// elapsed trial, or cancels an elapsed pending cancellation, and persists the
// result before answering.
//
// # Providers
//
// Stripe, LemonSqueezy and Paddle implement Provider. Each verifies the
// webhook signature over the raw body before parsing anything and then
// normalizes the payload into a WebhookEvent. Provider price, variant and
// plan IDs become plans through a PriceTable loaded from configuration;
// unknown IDs resolve to entitlement.PlanNone and never fail a delivery.
//
//	cfg, err := config.Parse[subscription.Config]()
//	if err != nil {
//		return err
//	}
//	prices, err := cfg.PriceTable()
//	if err != nil {
//		return err
//	}
//	providers, err := cfg.Providers(subscription.WithProviderLogger(log))
//	if err != nil {
//		return err
//	}
//	svc, err := subscription.NewService(store, prices, providers,
//		append(cfg.ServiceOptions(),
//			subscription.WithLogger(log),
//			subscription.WithDeduplicator(idempotency.NewRedisStore(rdb), cfg.IdempotencyTTL),
//		)...,
//	)
//
// # Webhooks
//
// HandleWebhook verifies, claims the event in the Deduplicator under
// "provider:eventID" and applies it. Duplicates are acknowledged without
// being applied again. When applying fails the claim is released so the
// provider's retry is processed. The returned Outcome says what happened
// to the event.
//
// # Concurrency
//
// Store.Update is a compare-and-swap on Version. The service reloads and
// retries on ErrVersionConflict a bounded number of times and only writes
// when a mutation actually changed the record.
//
// # Errors
//
// Errors are sentinel values matched with errors.Is. Webhook verification
// fails with ErrSignatureInvalid, ErrMalformedPayload or ErrConfigMissing.
// Interactive status checks wrap store failures in ErrStatusUnavailable.
// Provider API failures surface as ErrProviderUnavailable.
package subscription
