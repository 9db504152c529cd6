// Package telemetry exports traces and logs over OTLP/HTTP.
package telemetry

import (
	"context"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentuity/go-catalog/logger"
)

const exportTimeout = 10 * time.Second

type Options struct {
	// Endpoint is the OTLP collector base URL, such as http://localhost:4318.
	Endpoint    string
	Token       string
	ServiceName string
	Version     string
	// Level is the minimum level exported as log records.
	Level logger.LogLevel
}

// Telemetry holds the providers created by New.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	Logger         logger.Logger

	tp *sdktrace.TracerProvider
	lp *sdklog.LoggerProvider
}

// New creates OTLP trace and log exporters for opts.Endpoint. The tracer
// provider is also installed as the global one, with W3C trace context
// propagation.
func New(ctx context.Context, opts Options) (*Telemetry, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing otlp endpoint")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Newf("otlp endpoint %q must be http or https", opts.Endpoint)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName), semconv.ServiceVersion(opts.Version)),
	)
	if err != nil && !errors.Is(err, resource.ErrPartialResource) && !errors.Is(err, resource.ErrSchemaURLConflict) {
		return nil, errors.Wrap(err, "error creating resource")
	}

	headers := map[string]string{}
	if opts.Token != "" {
		headers["Authorization"] = "Bearer " + opts.Token
	}

	traceURL := *u
	traceURL.Path = "/v1/traces"
	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(traceURL.String()),
		otlptracehttp.WithHeaders(headers),
		otlptracehttp.WithTimeout(exportTimeout),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	logURL := *u
	logURL.Path = "/v1/logs"
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(logURL.String()),
		otlploghttp.WithHeaders(headers),
		otlploghttp.WithTimeout(exportTimeout),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if u.Scheme == "http" {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "error creating trace exporter")
	}
	logExporter, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "error creating log exporter")
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithBatcher(traceExporter))
	lp := sdklog.NewLoggerProvider(sdklog.WithResource(res), sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Telemetry{
		TracerProvider: tp,
		Logger:         logger.NewOtelLogger(lp.Logger(opts.ServiceName), opts.Level),
		tp:             tp,
		lp:             lp,
	}, nil
}

// Shutdown flushes and stops both exporters.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()
	return errors.CombineErrors(t.tp.Shutdown(ctx), t.lp.Shutdown(ctx))
}
