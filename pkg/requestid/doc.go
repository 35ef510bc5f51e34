// Package requestid tags each HTTP request with a correlation ID.
//
// Middleware accepts a client-supplied X-Request-ID when it is short and
// URL-safe, otherwise it generates a UUID. The ID lives in the request
// context (WithContext, FromContext) and reaches every log line through
// LoggerExtractor:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r.Use(requestid.Middleware)
package requestid
