package clientip_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/journalkit/pkg/clientip"
	"github.com/dmitrymomot/journalkit/pkg/logger"
)

func TestFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "203.0.113.7:4711", nil, false, "203.0.113.7"},
		{"headers ignored without trust", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "198.51.100.1"}, false, "10.0.0.1"},
		{"cloudflare first", "10.0.0.1:80", map[string]string{"CF-Connecting-IP": "198.51.100.2", "X-Forwarded-For": "198.51.100.3"}, true, "198.51.100.2"},
		{"first valid forwarded", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.4, 10.0.0.2"}, true, "198.51.100.4"},
		{"real ip", "10.0.0.1:80", map[string]string{"X-Real-IP": "2001:db8::1"}, true, "2001:db8::1"},
		{"invalid headers fall back", "10.0.0.1:80", map[string]string{"X-Real-IP": "nope"}, true, "10.0.0.1"},
		{"mapped ipv4", "[::ffff:192.0.2.9]:443", nil, false, "192.0.2.9"},
		{"bare remote", "192.0.2.10", nil, false, "192.0.2.10"},
		{"unparseable remote", "not-an-ip", nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.FromRequest(r, tt.trustProxy))
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	h := clientip.Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = clientip.FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "198.51.100.9", got)
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithContextExtractors(clientip.LoggerExtractor()))

	log.InfoContext(context.Background(), "no ip")
	assert.NotContains(t, buf.String(), "client_ip")

	log.InfoContext(clientip.WithContext(context.Background(), "192.0.2.1"), "with ip")
	assert.Contains(t, buf.String(), `"client_ip":"192.0.2.1"`)

}
