package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". A nil err yields an empty Attr, which
// slog drops, so it can be passed unconditionally.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user under "user_id". Nil yields an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// RequestID records the correlation ID under "request_id". Nil yields an empty Attr.
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Billing keys.

func Provider(name string) slog.Attr { return slog.String("provider", name) }
func EventID(id string) slog.Attr { return slog.String("event_id", id) }
func EventType(eventType string) slog.Attr { return slog.String("event_type", eventType) }
func Outcome(outcome string) slog.Attr { return slog.String("outcome", outcome) }
func Status(status string) slog.Attr { return slog.String("status", status) }
func Plan(plan string) slog.Attr { return slog.String("plan", plan) }

// Operational keys.

func Component(name string) slog.Attr { return slog.String("component", name) }
func RetryCount(count int) slog.Attr { return slog.Int("retry_count", count) }
func Duration(d time.Duration) slog.Attr { return slog.Duration("duration", d) }
