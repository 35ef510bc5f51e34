package subscription

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/journalkit/pkg/webhook"
)

// SignatureHeader builds the signature header a provider would send with
// payload, for local testing against a running server.
func SignatureHeader(provider ProviderName, secret string, payload []byte, at time.Time) (http.Header, error) {
	if secret == "" {
		return nil, webhook.ErrMissingSecret
	}
	h := http.Header{}
	switch provider {
	case ProviderStripe:
		sig, err := webhook.NewTimestampedHeader(secret, payload, at)
		if err != nil {
			return nil, err
		}
		h.Set(StripeSignatureHeader, sig.String())
	case ProviderLemonSqueezy:
		h.Set(LemonSqueezySignatureHeader, webhook.Sign(secret, payload))
	case ProviderPaddle:
		ts := strconv.FormatInt(at.Unix(), 10)
		signed := append([]byte(ts+":"), payload...)
		h.Set(PaddleSignatureHeader, "ts="+ts+";h1="+webhook.Sign(secret, signed))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return h, nil
}
