// Package billing exposes subscription status, checkout verification,
// feature access and provider webhooks over HTTP.
//
// Module wraps a subscription.Service and an auth.Authenticator. Router
// places it behind request IDs, metrics and health probes. Domain errors are
// translated to statuses in one table (errors.go): signature failures are
// 401, malformed payloads 400, unknown providers 404, temporary store or
// provider outages 503 with a Retry-After hint. Webhooks answer
// {"received":true} for applied, ignored and duplicate events alike.
package billing
