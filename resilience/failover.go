package resilience

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentuity/go-catalog/logger"
)

const tracerName = "github.com/agentuity/go-catalog/resilience"

// Provider is one implementation of capability C, tracked under ID.
type Provider[C any] struct {
	ID   ProviderID
	Impl C
}

// Dispatcher routes operations of capability C across an ordered list of
// providers, primary first. The health monitor is shared, so every attempt
// affects later calls through any dispatcher using the same monitor.
type Dispatcher[C any] struct {
	capability string
	providers  []Provider[C]
	monitor    *HealthMonitor
	logger     logger.Logger
	tracer     trace.Tracer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

type dispatcherConfig struct {
	logger         logger.Logger
	tracerProvider trace.TracerProvider
}

// WithLogger sets the logger used to report fallbacks and exhaustion.
func WithLogger(log logger.Logger) DispatcherOption {
	return func(c *dispatcherConfig) { c.logger = log }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. Defaults to the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(c *dispatcherConfig) { c.tracerProvider = tp }
}

// NewDispatcher creates a dispatcher for capability over providers, which
// must be non-empty and have distinct ids.
func NewDispatcher[C any](capability string, monitor *HealthMonitor, providers []Provider[C], opts ...DispatcherOption) (*Dispatcher[C], error) {
	if len(providers) == 0 {
		return nil, errors.Wrapf(ErrNoProviders, "dispatcher %s", capability)
	}
	if monitor == nil {
		return nil, errors.Newf("dispatcher %s: health monitor is required", capability)
	}
	seen := make(map[ProviderID]bool, len(providers))
	for _, p := range providers {
		if p.ID == "" {
			return nil, errors.Newf("dispatcher %s: provider id is required", capability)
		}
		if seen[p.ID] {
			return nil, errors.Newf("dispatcher %s: duplicate provider %s", capability, p.ID)
		}
		seen[p.ID] = true
	}
	cfg := dispatcherConfig{
		logger:         logger.Discard(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher[C]{
		capability: capability,
		providers:  append([]Provider[C](nil), providers...),
		monitor:    monitor,
		logger:     cfg.logger.WithPrefix("[" + capability + "]"),
		tracer:     cfg.tracerProvider.Tracer(tracerName),
	}, nil
}

// Capability returns the name the dispatcher was built with.
func (d *Dispatcher[C]) Capability() string {
	return d.capability
}

// Monitor returns the shared health monitor.
func (d *Dispatcher[C]) Monitor() *HealthMonitor {
	return d.monitor
}

// ProviderIDs returns the provider ids in dispatch order.
func (d *Dispatcher[C]) ProviderIDs() []ProviderID {
	ids := make([]ProviderID, len(d.providers))
	for i, p := range d.providers {
		ids[i] = p.ID
	}
	return ids
}

// selectStart returns the index of the first healthy provider, or the primary
// when none is healthy.
func (d *Dispatcher[C]) selectStart() int {
	for i, p := range d.providers {
		if d.monitor.IsHealthy(p.ID) {
			return i
		}
	}
	return 0
}

// Call runs fn against the first healthy provider of d and falls through the
// remaining providers, in order and one at a time, until one succeeds. Every
// attempt is reported to the health monitor. If every attempted provider
// fails the returned *ExhaustedError unwraps to the last provider's error.
// Errors marked Permanent end the call immediately. Errors marked Absent
// move on to the next provider without counting as failures; if no provider
// succeeds and at least one answered Absent, the last such answer is
// returned instead of an *ExhaustedError.
//
// Call never abandons a sequence half-way: the context is handed to fn but
// is not checked between attempts.
func Call[C, R any](ctx context.Context, d *Dispatcher[C], operation string, fn func(context.Context, C) (R, error)) (R, error) {
	ctx, span := d.tracer.Start(ctx, d.capability+"."+operation,
		trace.WithAttributes(
			attribute.String("catalog.capability", d.capability),
			attribute.String("catalog.operation", operation),
		),
	)
	defer span.End()

	var zero R
	start := d.selectStart()
	if start > 0 {
		d.logger.Debug("%s: skipping %d unhealthy provider(s), starting with %s", operation, start, d.providers[start].ID)
	}
	attempts := make([]Attempt, 0, len(d.providers)-start)
	var absent error
	for _, p := range d.providers[start:] {
		began := time.Now()
		result, err := fn(ctx, p.Impl)
		elapsed := time.Since(began)
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.String("catalog.provider", string(p.ID)),
			attribute.Bool("catalog.success", err == nil),
		))
		if err == nil {
			d.monitor.RecordSuccess(p.ID)
			if len(attempts) > 0 {
				d.logger.Info("%s served by %s after %d failed attempt(s)", operation, p.ID, len(attempts))
			}
			span.SetAttributes(attribute.String("catalog.provider", string(p.ID)))
			return result, nil
		}
		if IsPermanent(err) {
			d.monitor.RecordSuccess(p.ID)
			span.SetAttributes(attribute.String("catalog.provider", string(p.ID)))
			span.SetStatus(codes.Error, err.Error())
			return zero, err
		}
		if IsAbsent(err) {
			d.monitor.RecordSuccess(p.ID)
			span.AddEvent("absent", trace.WithAttributes(attribute.String("catalog.provider", string(p.ID))))
			d.logger.Debug("%s: %s does not hold the item", operation, p.ID)
			absent = err
			continue
		}
		d.monitor.RecordFailure(p.ID)
		span.RecordError(err, trace.WithAttributes(attribute.String("catalog.provider", string(p.ID))))
		d.logger.Warn("%s failed on %s: %s", operation, p.ID, err)
		attempts = append(attempts, Attempt{Provider: p.ID, Err: err, Duration: elapsed})
	}

	if absent != nil {
		span.SetStatus(codes.Error, absent.Error())
		return zero, absent
	}

	exhausted := &ExhaustedError{Capability: d.capability, Operation: operation, Attempts: attempts}
	span.SetStatus(codes.Error, exhausted.Error())
	d.logger.Error("%s", exhausted.Error())
	return zero, exhausted
}

// Do is Call for operations without a result.
func (d *Dispatcher[C]) Do(ctx context.Context, operation string, fn func(context.Context, C) error) error {
	_, err := Call(ctx, d, operation, func(ctx context.Context, impl C) (struct{}, error) {
		return struct{}{}, fn(ctx, impl)
	})
	return err
}
