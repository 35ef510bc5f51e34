package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/journalkit/handler"
	"github.com/dmitrymomot/journalkit/pkg/auth"
	"github.com/dmitrymomot/journalkit/pkg/binder"
	"github.com/dmitrymomot/journalkit/pkg/entitlement"
	"github.com/dmitrymomot/journalkit/pkg/subscription"
)

var errBodyTooLarge = handler.NewHTTPError(http.StatusRequestEntityTooLarge, "payload_too_large")

type errorMapping struct {
	target error
	status int
	key    string
}

// The first matching entry wins. Configuration problems stay 500 so
// providers keep retrying until the deployment is fixed.
var errorMappings = []errorMapping{
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthenticated"},
	{subscription.ErrSignatureInvalid, http.StatusUnauthorized, "signature_invalid"},
	{subscription.ErrMalformedPayload, http.StatusBadRequest, "malformed_payload"},
	{subscription.ErrMissingUserID, http.StatusBadRequest, "missing_user_id"},
	{entitlement.ErrUnknownCapability, http.StatusBadRequest, "unknown_capability"},
	{binder.ErrMissingContentType, http.StatusUnsupportedMediaType, "unsupported_media_type"},
	{binder.ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type"},
	{binder.ErrRequestTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large"},
	{binder.ErrFailedToParseJSON, http.StatusBadRequest, "invalid_request"},
	{binder.ErrFailedToParsePath, http.StatusBadRequest, "invalid_request"},
	{subscription.ErrUnknownProvider, http.StatusNotFound, "unknown_provider"},
	{subscription.ErrSubscriptionNotFound, http.StatusNotFound, "subscription_not_found"},
	{subscription.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{subscription.ErrSessionMismatch, http.StatusForbidden, "session_mismatch"},
	{subscription.ErrCheckoutNotPaid, http.StatusPaymentRequired, "checkout_not_paid"},
	{subscription.ErrSubscriptionAlreadyExists, http.StatusConflict, "subscription_exists"},
	{subscription.ErrStatusUnavailable, http.StatusServiceUnavailable, "status_unavailable"},
	{subscription.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
	{subscription.ErrConfigMissing, http.StatusInternalServerError, "provider_not_configured"},
}

// mapError is the handler.ErrorMapper for billing endpoints.
func mapError(err error) (handler.HTTPError, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return handler.NewHTTPError(m.status, m.key), true
		}
	}
	return handler.HTTPError{}, false
}
