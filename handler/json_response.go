package handler

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
)

// ErrorBody is the JSON error envelope: {"error": {...}}.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	RequestID string              `json:"requestId,omitempty"`
	Details   map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	header http.Header
	body   any
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	for k, v := range j.header {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

// WithJSONStatus overrides the status code.
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) { r.status = status }
}

// WithHeader sets a response header, e.g. Retry-After.
func WithHeader(key, value string) JSONOption {
	return func(r *jsonResponse) { r.header.Set(key, value) }
}

// JSON renders v as the response body with 200 OK.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, header: http.Header{}, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err inside an ErrorBody. HTTPError and ValidationError
// pick the status; anything else is a 500 with a generic message so
// internal details never leak.
func JSONError(err error, opts ...JSONOption) Response {
	status, detail := errorDetail(err)
	r := &jsonResponse{status: status, header: http.Header{}, body: ErrorBody{Error: detail}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func errorDetail(err error) (int, ErrorDetail) {
	var valErr ValidationError
	if errors.As(err, &valErr) {
		d := ErrorDetail{Code: "validation_error", Message: "request validation failed"}
		if len(valErr) > 0 {
			d.Details = make(map[string][]string, len(valErr))
			maps.Copy(d.Details, valErr)
		}
		return http.StatusUnprocessableEntity, d
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, ErrorDetail{Code: httpErr.Key, Message: http.StatusText(httpErr.Code)}
	}

	return http.StatusInternalServerError, ErrorDetail{
		Code:    ErrInternalServerError.Key,
		Message: http.StatusText(http.StatusInternalServerError),
	}
}
