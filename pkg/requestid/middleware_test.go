package requestid_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/journalkit/pkg/logger"
	"github.com/dmitrymomot/journalkit/pkg/requestid"
)

func capture(t *testing.T, incoming string) (ctxID, respID string) {
	t.Helper()
	h := requestid.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = requestid.FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
	if incoming != "" {
		req.Header.Set(requestid.Header, incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ctxID, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("generates a uuid", func(t *testing.T) {
		t.Parallel()
		ctxID, respID := capture(t, "")
		require.NotEmpty(t, ctxID)
		assert.Equal(t, ctxID, respID)
		_, err := uuid.Parse(ctxID)
		assert.NoError(t, err)
	})

	t.Run("keeps a valid incoming id", func(t *testing.T) {
		t.Parallel()
		ctxID, respID := capture(t, "evt_1PqR-st_42")
		assert.Equal(t, "evt_1PqR-st_42", ctxID)
		assert.Equal(t, "evt_1PqR-st_42", respID)
	})

	t.Run("replaces malformed ids", func(t *testing.T) {
		t.Parallel()
		for _, bad := range []string{
			"with space",
			"slash/separated",
			"<script>",
			"ünïcode",
			strings.Repeat("a", 129),
		} {
			ctxID, respID := capture(t, bad)
			assert.NotEqual(t, bad, ctxID, bad)
			assert.Equal(t, ctxID, respID)
		}
	})

	t.Run("ids are unique per request", func(t *testing.T) {
		t.Parallel()
		seen := make(map[string]struct{})
		for range 100 {
			id, _ := capture(t, "")
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, 100)
	})
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, requestid.Valid(strings.Repeat("x", 128)))
	assert.False(t, requestid.Valid(strings.Repeat("x", 129)))
	assert.False(t, requestid.Valid(""))
	assert.True(t, requestid.Valid("A-z_0"))
	assert.False(t, requestid.Valid("a.b"))
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(context.Background()))
	assert.Equal(t, "req-1", requestid.FromContext(requestid.WithContext(context.Background(), "req-1")))
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithContextExtractors(requestid.LoggerExtractor()))

	log.InfoContext(requestid.WithContext(context.Background(), "req-7"), "webhook received")
	assert.Contains(t, buf.String(), `"request_id":"req-7"`)

	buf.Reset()
	log.InfoContext(context.Background(), "background job")
	assert.NotContains(t, buf.String(), "request_id")
}
