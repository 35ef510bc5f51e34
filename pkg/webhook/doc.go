// Package webhook verifies and produces HMAC-SHA256 signatures for inbound
// payment provider webhooks.
//
// Two schemes are supported:
//
//   - Raw: the hex digest of the request body, sent as is in a header
//     (LemonSqueezy's X-Signature).
//   - Timestamped: the hex digest of "timestamp.body", sent as
//     "t=<unix>,v1=<hex>" (Stripe's Stripe-Signature). The timestamp is checked
//     against a tolerance window to reject replays.
//
// All comparisons are constant-time. A missing secret always fails verification.
//
// # Usage
//
//	if err := webhook.VerifyTimestamped(secret, body, r.Header.Get("Stripe-Signature"), webhook.DefaultTolerance, time.Now()); err != nil {
//	    // errors.Is(err, webhook.ErrSignatureMismatch) etc.
//	}
//
//	header, _ := webhook.NewTimestampedHeader(secret, body, time.Now())
//	req.Header.Set("Stripe-Signature", header.String())
package webhook
