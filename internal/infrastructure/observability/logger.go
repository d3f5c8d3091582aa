package observability

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zatekoja/trafficpipeline/pkg/config"
)

// NewLogger builds the process logger. Development environments log to a
// console writer; everything else logs JSON. When cfg.File is set, output is
// also written to a size-rotated file. The returned closer flushes that file.
func NewLogger(cfg config.LogConfig, serviceName string) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var console io.Writer = os.Stdout
	if cfg.Environment == "development" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	writer := console
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err == nil {
			rotating := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				LocalTime:  true,
			}
			writer = zerolog.MultiLevelWriter(console, rotating)
			closer = rotating
		}
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	return logger, closer
}

// InitLogger builds the process logger and installs it as the global one
func InitLogger(cfg config.LogConfig, serviceName string) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = time.RFC3339
	logger, closer := NewLogger(cfg, serviceName)
	log.Logger = logger
	return logger, closer
}

// LoggerFromContext returns logger annotated with the active span's ids
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return logger
	}
	return logger.With().
		Str("trace_id", span.SpanContext().TraceID().String()).
		Str("span_id", span.SpanContext().SpanID().String()).
		Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
