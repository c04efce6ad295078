// Package observe provides application-wide observability primitives for
// agmd: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all agm metrics.
const meterName = "github.com/qti-audio/agm"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// DeviceOpenDuration tracks device.Open latency (spec §4.2).
	DeviceOpenDuration metric.Float64Histogram

	// GraphPrepareDuration tracks graph.Prepare latency (spec §4.3).
	GraphPrepareDuration metric.Float64Histogram

	// SessionTransitionDuration tracks session lifecycle verb latency (open,
	// prepare, start, stop, pause, resume, close; spec §4.4).
	SessionTransitionDuration metric.Float64Histogram

	// --- Counters ---

	// SessionErrors counts session verb failures. Use with attributes:
	//   attribute.String("verb", ...), attribute.String("error_kind", ...)
	SessionErrors metric.Int64Counter

	// CallbackEvents counts engine events delivered to sessions. Use with
	// attribute: attribute.String("event_type", ...) ("data_path" or "module").
	CallbackEvents metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live sessions in the pool.
	ActiveSessions metric.Int64UpDownCounter

	// OpenDevices tracks the number of devices currently past CLOSED.
	OpenDevices metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for the sub-100ms state-machine verbs AGM issues against the engine
// boundary.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DeviceOpenDuration, err = m.Float64Histogram("agm.device.open.duration",
		metric.WithDescription("Latency of device.Open, the refcounted PCM open path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GraphPrepareDuration, err = m.Float64Histogram("agm.graph.prepare.duration",
		metric.WithDescription("Latency of graph.Prepare, including module configuration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionTransitionDuration, err = m.Float64Histogram("agm.session.transition.duration",
		metric.WithDescription("Latency of a session lifecycle verb."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SessionErrors, err = m.Int64Counter("agm.session.errors",
		metric.WithDescription("Total session verb failures by verb and error kind."),
	); err != nil {
		return nil, err
	}
	if met.CallbackEvents, err = m.Int64Counter("agm.callback.events",
		metric.WithDescription("Total engine events delivered to sessions by event type."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("agm.sessions.active",
		metric.WithDescription("Number of sessions currently tracked by the pool."),
	); err != nil {
		return nil, err
	}
	if met.OpenDevices, err = m.Int64UpDownCounter("agm.devices.open",
		metric.WithDescription("Number of devices with open_refcnt > 0."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("agm.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSessionError is a convenience method that records a session error
// counter increment with the standard attribute set.
func (m *Metrics) RecordSessionError(ctx context.Context, verb, errorKind string) {
	m.SessionErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("verb", verb),
			attribute.String("error_kind", errorKind),
		),
	)
}

// RecordCallbackEvent is a convenience method that records a delivered
// engine event by type.
func (m *Metrics) RecordCallbackEvent(ctx context.Context, eventType string) {
	m.CallbackEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("event_type", eventType)),
	)
}
