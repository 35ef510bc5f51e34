package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Deployment environment names recognized by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config is the LOG_* environment block. Empty fields keep whatever the
// environment preset chose.
type Config struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

type preset struct {
	name   string
	level  slog.Level
	format Format
}

var presets = map[string]preset{
	EnvDevelopment: {EnvDevelopment, slog.LevelDebug, FormatText},
	EnvStaging:     {EnvStaging, slog.LevelInfo, FormatJSON},
	"stage":        {EnvStaging, slog.LevelInfo, FormatJSON},
	EnvProduction:  {EnvProduction, slog.LevelInfo, FormatJSON},
	"prod":         {EnvProduction, slog.LevelInfo, FormatJSON},
}

type options struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
	redact     []string
	source     bool
}

// Option configures New.
type Option func(*options)

func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFormat panics on anything but FormatJSON or FormatText.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Sprintf("logger: unknown format %q", f))
	}
	return func(o *options) { o.format = f }
}

func WithTextFormatter() Option { return WithFormat(FormatText) }

func WithJSONFormatter() Option { return WithFormat(FormatJSON) }

// WithOutput sets the destination. Nil is ignored.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextExtractors registers per-record context lookups. Nil entries are skipped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) {
		for _, ex := range extractors {
			if ex != nil {
				o.extractors = append(o.extractors, ex)
			}
		}
	}
}

// WithRedactedKeys replaces DefaultRedactedKeys. No keys disables redaction.
func WithRedactedKeys(keys ...string) Option {
	return func(o *options) { o.redact = keys }
}

// WithSource records the caller file and line.
func WithSource() Option {
	return func(o *options) { o.source = true }
}

// WithEnvironment applies the level and format preset for env and tags
// records with service and env. Unknown environments use development.
func WithEnvironment(env, service string) Option {
	p, ok := presets[strings.ToLower(env)]
	if !ok {
		p = presets[EnvDevelopment]
	}
	return func(o *options) {
		o.level = p.level
		o.format = p.format
		if service != "" {
			o.attrs = append(o.attrs, slog.String("service", service))
		}
		o.attrs = append(o.attrs, slog.String("env", p.name))
	}
}

// WithConfig overrides level and format from cfg. Apply it after
// WithEnvironment.
func WithConfig(cfg Config) Option {
	var opts []Option
	if cfg.Level != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(cfg.Level)); err != nil {
			panic(fmt.Sprintf("logger: invalid LOG_LEVEL %q", cfg.Level))
		}
		opts = append(opts, WithLevel(l))
	}
	if cfg.Format != "" {
		opts = append(opts, WithFormat(Format(strings.ToLower(cfg.Format))))
	}
	return func(o *options) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

// New builds a logger. The default is JSON at info level on stdout with
// DefaultRedactedKeys masked.
func New(opts ...Option) *slog.Logger {
	o := options{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
		redact: DefaultRedactedKeys,
	}
	for _, opt := range opts {
		opt(&o)
	}

	hopts := &slog.HandlerOptions{
		Level:       o.level,
		AddSource:   o.source,
		ReplaceAttr: redactor(o.redact),
	}

	var h slog.Handler
	if o.format == FormatText {
		h = slog.NewTextHandler(o.output, hopts)
	} else {
		h = slog.NewJSONHandler(o.output, hopts)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	if len(o.extractors) > 0 {
		h = &contextHandler{next: h, extractors: o.extractors}
	}
	return slog.New(h)
}

func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}
