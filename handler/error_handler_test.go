package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/journalkit/handler"
	"github.com/dmitrymomot/journalkit/pkg/requestid"
)

var errNotPaid = errors.New("checkout not paid")

func mapNotPaid(err error) (handler.HTTPError, bool) {
	if errors.Is(err, errNotPaid) {
		return handler.NewHTTPError(http.StatusPaymentRequired, "checkout_not_paid"), true
	}
	return handler.HTTPError{}, false
}

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("mapped error with request id", func(t *testing.T) {
		t.Parallel()
		var logs bytes.Buffer
		eh := handler.NewErrorHandler(slog.New(slog.NewJSONHandler(&logs, nil)), mapNotPaid)

		req := httptest.NewRequest(http.MethodPost, "/subscription/verify-session", nil)
		req = req.WithContext(requestid.WithContext(req.Context(), "req-1"))
		rec := httptest.NewRecorder()
		eh(handler.NewContext(rec, req), errNotPaid)

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		var body handler.ErrorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "checkout_not_paid", body.Error.Code)
		assert.Equal(t, "req-1", body.Error.RequestID)
		assert.Contains(t, logs.String(), `"level":"WARN"`)
	})

	t.Run("unmapped error is internal", func(t *testing.T) {
		t.Parallel()
		var logs bytes.Buffer
		eh := handler.NewErrorHandler(slog.New(slog.NewJSONHandler(&logs, nil)), mapNotPaid)

		rec := httptest.NewRecorder()
		eh(handler.NewContext(rec, httptest.NewRequest(http.MethodGet, "/", nil)), errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "boom")
		assert.Contains(t, logs.String(), `"level":"ERROR"`)
	})

	t.Run("unavailable adds retry hint", func(t *testing.T) {
		t.Parallel()
		eh := handler.NewErrorHandler(nil)

		rec := httptest.NewRecorder()
		eh(handler.NewContext(rec, httptest.NewRequest(http.MethodGet, "/", nil)), handler.ErrServiceUnavailable)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	})
}
