package blob

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	metricsOnce     sync.Once
	storeOperations metric.Int64Counter
	storeDuration   metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/unveil/unveil-bridge/internal/blob")

		var err error
		storeOperations, err = meter.Int64Counter(
			"namestore.operations",
			metric.WithDescription("Total name store blob operations"),
		)
		if err != nil {
			otel.Handle(err)
		}

		storeDuration, err = meter.Float64Histogram(
			"namestore.operation.duration",
			metric.WithDescription("Name store blob operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented wraps a Store with metrics instrumentation.
type Instrumented[T any] struct {
	wrapped   Store[T]
	storeType string
}

// NewInstrumented creates an instrumented blob store wrapper.
func NewInstrumented[T any](store Store[T], storeType string) *Instrumented[T] {
	initMetrics()
	return &Instrumented[T]{
		wrapped:   store,
		storeType: storeType,
	}
}

// Get retrieves an origin's handle map.
func (i *Instrumented[T]) Get(ctx context.Context, origin string) (map[string]T, bool, error) {
	start := time.Now()

	entries, found, err := i.wrapped.Get(ctx, origin)

	duration := time.Since(start)
	i.recordDuration(ctx, "get", duration)

	status := "miss"
	if err != nil {
		status = "error"
	} else if found {
		status = "hit"
	}
	i.recordOperation(ctx, "get", status)
	i.setSpanAttributes(ctx, "get", status, duration)

	return entries, found, err
}

// Set replaces an origin's handle map.
func (i *Instrumented[T]) Set(ctx context.Context, origin string, entries map[string]T) error {
	start := time.Now()

	err := i.wrapped.Set(ctx, origin, entries)

	duration := time.Since(start)
	i.recordDuration(ctx, "set", duration)
	i.recordOperation(ctx, "set", successStatus(err))
	i.setSpanAttributes(ctx, "set", successStatus(err), duration)

	return err
}

// Delete removes an origin document.
func (i *Instrumented[T]) Delete(ctx context.Context, origin string) error {
	start := time.Now()

	err := i.wrapped.Delete(ctx, origin)

	duration := time.Since(start)
	i.recordDuration(ctx, "delete", duration)
	i.recordOperation(ctx, "delete", successStatus(err))
	i.setSpanAttributes(ctx, "delete", successStatus(err), duration)

	return err
}

// Origins lists every origin currently held by the store.
func (i *Instrumented[T]) Origins(ctx context.Context) ([]string, error) {
	start := time.Now()

	origins, err := i.wrapped.Origins(ctx)

	duration := time.Since(start)
	i.recordDuration(ctx, "origins", duration)
	i.recordOperation(ctx, "origins", successStatus(err))

	return origins, err
}

// Close releases any resources held by the store.
func (i *Instrumented[T]) Close() error {
	return i.wrapped.Close()
}

func successStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (i *Instrumented[T]) recordOperation(ctx context.Context, operation, status string) {
	if storeOperations == nil {
		return
	}
	storeOperations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("store.type", i.storeType),
			attribute.String("store.operation", operation),
			attribute.String("store.status", status),
		),
	)
}

func (i *Instrumented[T]) recordDuration(ctx context.Context, operation string, duration time.Duration) {
	if storeDuration == nil {
		return
	}
	storeDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("store.type", i.storeType),
			attribute.String("store.operation", operation),
		),
	)
}

func (i *Instrumented[T]) setSpanAttributes(ctx context.Context, operation, status string, duration time.Duration) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("store.type", i.storeType),
		attribute.String("store."+operation+".status", status),
		attribute.Float64("store."+operation+".duration", duration.Seconds()),
	)
}
