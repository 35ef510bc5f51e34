package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/journalkit/pkg/logger"
	"github.com/dmitrymomot/journalkit/pkg/requestid"
)

// ErrorMapper translates a domain error into an HTTPError.
// It returns false for errors it does not recognise.
type ErrorMapper func(err error) (HTTPError, bool)

// NewErrorHandler returns an ErrorHandler that maps err through mappers,
// logs it and writes a JSON ErrorBody. Client errors log at warn, server
// errors at error. Unmapped errors become 500.
func NewErrorHandler(log *slog.Logger, mappers ...ErrorMapper) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx Context, err error) {
		r := ctx.Request()
		mapped := err
		for _, m := range mappers {
			if httpErr, ok := m(err); ok {
				mapped = errors.Join(httpErr, err)
				break
			}
		}

		status, detail := errorDetail(mapped)
		detail.RequestID = requestid.FromContext(r.Context())

		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request failed",
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		resp := &jsonResponse{status: status, header: http.Header{}, body: ErrorBody{Error: detail}}
		if status == http.StatusServiceUnavailable {
			resp.header.Set("Retry-After", "5")
		}
		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}
