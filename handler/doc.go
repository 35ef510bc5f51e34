// Package handler turns typed functions into http.HandlerFuncs.
//
// A HandlerFunc receives a Context and a request struct filled by binders
// (see pkg/binder) and returns a Response. JSON renders a value, JSONError
// renders an {"error": {...}} envelope whose status comes from HTTPError or
// ValidationError, and Empty answers without a body.
//
//	type verifyRequest struct {
//		Provider  string `json:"provider"`
//		SessionID string `json:"sessionId"`
//	}
//
//	r.Post("/subscription/verify-session", handler.Wrap(h.verifySession,
//		handler.WithBinders[handler.Context, verifyRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, verifyRequest](errHandler),
//	))
//
// NewErrorHandler builds the shared error handler: ErrorMapper functions
// translate domain errors into HTTPError values, the failure is logged with
// the request ID and a 503 gets a Retry-After hint.
package handler
