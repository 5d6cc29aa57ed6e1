// Package observability configures process-wide logging and instruments
// outbound HTTP calls.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Supported log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTel = "otel" // OpenTelemetry log records on stderr
	FormatOTLP = "otlp" // OpenTelemetry log records exported over OTLP/HTTP
)

// instrumentationName identifies log records emitted through the OpenTelemetry bridge.
const instrumentationName = "github.com/florianilch/julekalender"

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger for the given level and format
// and returns a func that flushes pending records. Logs go to stderr so that
// command output on stdout stays machine readable.
func Instrument(ctx context.Context, level slog.Level, format string) (ShutdownFunc, error) {
	return instrument(ctx, os.Stderr, level, format)
}

func instrument(ctx context.Context, w io.Writer, level slog.Level, format string) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	switch format {
	case FormatText, "":
		slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
		return noop, nil
	case FormatJSON:
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
		return noop, nil
	case FormatOTel, FormatOTLP:
		exporter, err := newExporter(ctx, w, format)
		if err != nil {
			return nil, fmt.Errorf("creating %s log exporter: %w", format, err)
		}

		var processor sdklog.Processor
		if format == FormatOTLP {
			processor = sdklog.NewBatchProcessor(exporter)
		} else {
			processor = sdklog.NewSimpleProcessor(exporter)
		}

		provider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(minsev.NewLogProcessor(processor, severity(level))),
		)
		slog.SetDefault(slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))))
		return provider.Shutdown, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

func newExporter(ctx context.Context, w io.Writer, format string) (sdklog.Exporter, error) {
	if format == FormatOTLP {
		// Endpoint and headers come from the standard OTEL_EXPORTER_OTLP_* variables
		return otlploghttp.New(ctx)
	}
	return stdoutlog.New(stdoutlog.WithWriter(w))
}

// severity maps slog levels onto the minimum OpenTelemetry severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
