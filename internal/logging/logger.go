package logging

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps otelzap so call sites can do logger.Ctx(ctx).Info(...) and have
// trace context attached when a span is active.
type Logger struct {
	*otelzap.Logger
}

type LoggerOption struct {
	LogLevel string
	Fields   []zap.Field
}

type Option func(o *LoggerOption)

func WithLogLevel(logLevel string) Option {
	return func(o *LoggerOption) {
		o.LogLevel = logLevel
	}
}

// WithService tags every entry with the service name. Useful when the api and
// delivery services share one log stream.
func WithService(service string) Option {
	return func(o *LoggerOption) {
		o.Fields = append(o.Fields, zap.String("service", service))
	}
}

func NewLogger(opts ...Option) (*Logger, error) {
	option := &LoggerOption{LogLevel: "info"}
	for _, opt := range opts {
		opt(option)
	}

	level, err := zapcore.ParseLevel(option.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", option.LogLevel, err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	if len(option.Fields) > 0 {
		zapLogger = zapLogger.With(option.Fields...)
	}

	return &Logger{Logger: otelzap.New(zapLogger,
		otelzap.WithMinLevel(level),
	)}, nil
}

// NopLogger returns a logger that discards everything. Components fall back to
// it when constructed without a logger.
func NopLogger() *Logger {
	return &Logger{Logger: otelzap.New(zap.NewNop())}
}
