package httpserver

import "time"

// Config holds the HTTP_* settings for the billing API listener.
type Config struct {
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"` // webhook bodies are small
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"65536"`
}

// NewFromConfig creates a Server from cfg. Zero fields keep the defaults;
// opts are applied afterwards and win.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	return New(append([]Option{withConfig(cfg)}, opts...)...)
}

func withConfig(cfg Config) Option {
	return func(s *settings) {
		if cfg.Addr != "" {
			s.addr = cfg.Addr
		}
		s.readHeaderTimeout = positive(cfg.ReadHeaderTimeout, s.readHeaderTimeout)
		s.readTimeout = positive(cfg.ReadTimeout, s.readTimeout)
		s.writeTimeout = positive(cfg.WriteTimeout, s.writeTimeout)
		s.idleTimeout = positive(cfg.IdleTimeout, s.idleTimeout)
		s.shutdownTimeout = positive(cfg.ShutdownTimeout, s.shutdownTimeout)
		if cfg.MaxHeaderBytes > 0 {
			s.maxHeaderBytes = cfg.MaxHeaderBytes
		}
	}
}

func positive(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
