package httpserver

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Option configures a Server. Invalid values panic at construction.
type Option func(*settings)

func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty listen address")
	}
	return func(s *settings) { s.addr = addr }
}

// WithListener serves on an existing listener instead of binding addr.
func WithListener(ln net.Listener) Option {
	if ln == nil {
		panic("httpserver: nil listener")
	}
	return func(s *settings) { s.listener = ln }
}

func WithReadHeaderTimeout(d time.Duration) Option {
	mustPositive("read header timeout", d)
	return func(s *settings) { s.readHeaderTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	mustPositive("read timeout", d)
	return func(s *settings) { s.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	mustPositive("write timeout", d)
	return func(s *settings) { s.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	mustPositive("idle timeout", d)
	return func(s *settings) { s.idleTimeout = d }
}

// WithShutdownTimeout bounds how long in-flight requests may drain.
func WithShutdownTimeout(d time.Duration) Option {
	mustPositive("shutdown timeout", d)
	return func(s *settings) { s.shutdownTimeout = d }
}

func WithMaxHeaderBytes(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("httpserver: max header bytes must be positive, got %d", n))
	}
	return func(s *settings) { s.maxHeaderBytes = n }
}

// WithLogger sets the lifecycle logger. Nil discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func mustPositive(name string, d time.Duration) {
	if d <= 0 {
		panic(fmt.Sprintf("httpserver: %s must be positive, got %v", name, d))
	}
}
